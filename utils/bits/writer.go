// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"encoding/binary"
)

// Writer 定长缓冲上的网络字节序写游标，越界后保持错误状态
type Writer struct {
	buf []byte
	off int
	err error
}

// NewWriter 创建写游标，写入范围不会超过 buf 的长度
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Err 返回第一次越界产生的错误
func (w *Writer) Err() error { return w.err }

// Len 已写入的字节数
func (w *Writer) Len() int { return w.off }

// Bytes 返回已写入的部分
func (w *Writer) Bytes() []byte { return w.buf[:w.off] }

func (w *Writer) need(n int) bool {
	if w.err != nil {
		return false
	}
	if n < 0 || len(w.buf)-w.off < n {
		w.err = ErrBufferTooSmall
		return false
	}
	return true
}

// Skip 跳过 n 个字节并清零
func (w *Writer) Skip(n int) {
	if !w.need(n) {
		return
	}
	for i := 0; i < n; i++ {
		w.buf[w.off+i] = 0
	}
	w.off += n
}

// Uint8 写入一个字节
func (w *Writer) Uint8(v uint8) {
	if w.need(1) {
		w.buf[w.off] = v
		w.off++
	}
}

// Uint16 写入大端 uint16
func (w *Writer) Uint16(v uint16) {
	if w.need(2) {
		binary.BigEndian.PutUint16(w.buf[w.off:], v)
		w.off += 2
	}
}

// Uint32 写入大端 uint32
func (w *Writer) Uint32(v uint32) {
	if w.need(4) {
		binary.BigEndian.PutUint32(w.buf[w.off:], v)
		w.off += 4
	}
}

// Uint64 写入大端 uint64
func (w *Writer) Uint64(v uint64) {
	if w.need(8) {
		binary.BigEndian.PutUint64(w.buf[w.off:], v)
		w.off += 8
	}
}

// Write 写入原始字节
func (w *Writer) Write(p []byte) {
	if w.need(len(p)) {
		copy(w.buf[w.off:], p)
		w.off += len(p)
	}
}

// Masked8 将 value 写入当前字节的位域，保留其他位，不移动游标
func (w *Writer) Masked8(value, mask uint8, shift uint) {
	if !w.need(1) {
		return
	}
	b := w.buf[w.off] &^ (mask << shift)
	w.buf[w.off] = b | (value&mask)<<shift
}

// Masked16 将 value 写入当前 uint16 的位域，不移动游标
func (w *Writer) Masked16(value, mask uint16, shift uint) {
	if !w.need(2) {
		return
	}
	v := binary.BigEndian.Uint16(w.buf[w.off:]) &^ (mask << shift)
	binary.BigEndian.PutUint16(w.buf[w.off:], v|(value&mask)<<shift)
}

// Masked32 将 value 写入当前 uint32 的位域，不移动游标
func (w *Writer) Masked32(value, mask uint32, shift uint) {
	if !w.need(4) {
		return
	}
	v := binary.BigEndian.Uint32(w.buf[w.off:]) &^ (mask << shift)
	binary.BigEndian.PutUint32(w.buf[w.off:], v|(value&mask)<<shift)
}
