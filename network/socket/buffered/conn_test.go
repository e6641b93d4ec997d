// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buffered

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConn_Coalesce(t *testing.T) {
	fc := &fakeConn{}
	conn := NewConn(fc, FlushRate(1), BufferSize(0), WriteTimeout(time.Second))
	assert.Equal(t, minBufferSize, conn.bufferSize)

	// 第一次写入在频率内，直接刷出
	n, err := conn.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, conn.Buffered())
	assert.Len(t, fc.writes, 1)
	assert.False(t, fc.deadline.IsZero())

	for i := 0; i < 10; i++ {
		_, err = conn.Write([]byte{4, 5})
		require.NoError(t, err)
	}
	assert.Equal(t, 20, conn.Buffered())
	assert.Len(t, fc.writes, 1)

	require.NoError(t, conn.Flush())
	assert.Equal(t, 0, conn.Buffered())
	require.Len(t, fc.writes, 2)
	assert.Len(t, fc.writes[1], 20)
	require.NoError(t, conn.Flush())
	assert.Len(t, fc.writes, 2)
}

func TestConn_Overflow(t *testing.T) {
	fc := &fakeConn{}
	conn := NewConn(fc, FlushRate(1), BufferSize(minBufferSize))
	conn.Write([]byte{0})

	// 缓冲放不下时先刷出旧数据
	chunk := make([]byte, minBufferSize/2+1)
	conn.Write(chunk)
	conn.Write(chunk)
	assert.Equal(t, len(chunk), conn.Buffered())
	assert.Len(t, fc.writes, 2)

	// 大块绕过缓冲，分多次写完
	big := make([]byte, minBufferSize*3)
	n, err := conn.Write(big)
	require.NoError(t, err)
	assert.Equal(t, len(big), n)
	assert.Equal(t, 0, conn.Buffered())
	assert.Equal(t, minBufferSize, cap(conn.buf), "buffer can't extend")
}

func TestConn_WriteError(t *testing.T) {
	fc := &fakeConn{err: errors.New("broken pipe")}
	conn := NewConn(fc)
	_, err := conn.Write([]byte{1})
	assert.Error(t, err)
	assert.Equal(t, 0, conn.Buffered())
	assert.NoError(t, conn.Close())
}

// ------------------------------------------------------------------------------------

type fakeConn struct {
	net.Conn
	writes   [][]byte
	deadline time.Time
	err      error
}

func (m *fakeConn) Write(p []byte) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	if len(p) > minBufferSize {
		p = p[:minBufferSize]
	}
	m.writes = append(m.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (m *fakeConn) SetWriteDeadline(t time.Time) error {
	m.deadline = t
	return nil
}

func (m *fakeConn) Close() error {
	return nil
}
