// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var bitsDatas = [][]byte{
	{0xfa, 0x00, 0x70, 0x38, 0x00, 0x1b, 0x21, 0xff, 0xfe, 0x00, 0x00, 0x01},
	{0x80, 0x01},
}

func TestReader_Sequence(t *testing.T) {
	r := NewReader(bitsDatas[0])
	assert.Equal(t, uint8(0xfa), r.Uint8())
	assert.Equal(t, uint8(0x00), r.Uint8())
	assert.Equal(t, uint16(0x0e), r.Masked16(0x1f, 11))
	assert.Equal(t, uint16(0x38), r.Masked16(0x07ff, 0))
	r.Skip(2)
	assert.Equal(t, uint64(0x001b21fffe000001), r.Uint64())
	assert.NoError(t, r.Err())
	assert.Equal(t, 0, r.Len())
}

func TestReader_OutOfRange(t *testing.T) {
	r := NewReader(bitsDatas[1])
	assert.Equal(t, uint32(0), r.Uint32())
	assert.Equal(t, ErrBufferTooSmall, r.Err())

	// 出错后保持错误状态
	assert.Equal(t, uint8(0), r.Uint8())
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 0, r.Offset())
}

func TestWriter_Masked(t *testing.T) {
	buf := make([]byte, 4)
	w := NewWriter(buf)
	w.Masked16(0xffff, 0x1f, 11)
	w.Masked16(56, 0x07ff, 0)
	assert.Equal(t, []byte{0xf8, 0x38, 0, 0}, buf)

	// 相邻位不受影响
	w.Masked16(0, 0x1f, 11)
	assert.Equal(t, []byte{0x00, 0x38, 0, 0}, buf)

	w.Skip(2)
	w.Uint16(0xbeef)
	assert.NoError(t, w.Err())
	assert.Equal(t, 4, w.Len())
	assert.Equal(t, []byte{0x00, 0x00, 0xbe, 0xef}, w.Bytes())
}

func TestWriter_OutOfRange(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
	}{
		{"u16", func(w *Writer) { w.Uint16(1) }},
		{"u32", func(w *Writer) { w.Uint32(1) }},
		{"u64", func(w *Writer) { w.Uint64(1) }},
		{"bytes", func(w *Writer) { w.Write([]byte{1, 2}) }},
		{"skip", func(w *Writer) { w.Skip(2) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWriter(make([]byte, 1))
			tt.write(w)
			assert.Equal(t, ErrBufferTooSmall, w.Err())
			assert.Equal(t, 0, w.Len())
		})
	}
}
