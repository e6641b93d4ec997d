// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package bits

import (
	"encoding/binary"
	"errors"
)

// ErrBufferTooSmall 缓冲区不足以容纳请求的字段
var ErrBufferTooSmall = errors.New("bits: buffer too small")

// Reader 网络字节序的只读游标。
// 任何一次越界都会使 Reader 进入错误状态，之后的读取全部返回零值。
type Reader struct {
	buf []byte
	off int
	err error
}

// NewReader retruns a new Reader.
func NewReader(buf []byte) *Reader {
	return &Reader{
		buf: buf,
	}
}

// Err 返回第一次越界产生的错误
func (r *Reader) Err() error { return r.err }

// Offset 当前读取位置
func (r *Reader) Offset() int { return r.off }

// Len 剩余未读字节数
func (r *Reader) Len() int {
	if r.err != nil {
		return 0
	}
	return len(r.buf) - r.off
}

func (r *Reader) need(n int) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || len(r.buf)-r.off < n {
		r.err = ErrBufferTooSmall
		return false
	}
	return true
}

// Skip skip n bytes.
func (r *Reader) Skip(n int) {
	if r.need(n) {
		r.off += n
	}
}

// Uint8 读取一个字节
func (r *Reader) Uint8() uint8 {
	if !r.need(1) {
		return 0
	}
	v := r.buf[r.off]
	r.off++
	return v
}

// Uint16 读取大端 uint16
func (r *Reader) Uint16() uint16 {
	if !r.need(2) {
		return 0
	}
	v := binary.BigEndian.Uint16(r.buf[r.off:])
	r.off += 2
	return v
}

// Uint32 读取大端 uint32
func (r *Reader) Uint32() uint32 {
	if !r.need(4) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.buf[r.off:])
	r.off += 4
	return v
}

// Uint64 读取大端 uint64
func (r *Reader) Uint64() uint64 {
	if !r.need(8) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.buf[r.off:])
	r.off += 8
	return v
}

// Bytes 读取 len(p) 个字节到 p
func (r *Reader) Bytes(p []byte) {
	if !r.need(len(p)) {
		return
	}
	copy(p, r.buf[r.off:])
	r.off += len(p)
}

// Masked8 读取当前字节中 (v >> shift) & mask 的位域，不移动游标
func (r *Reader) Masked8(mask uint8, shift uint) uint8 {
	if !r.need(1) {
		return 0
	}
	return (r.buf[r.off] >> shift) & mask
}

// Masked16 读取当前 uint16 中的位域，不移动游标
func (r *Reader) Masked16(mask uint16, shift uint) uint16 {
	if !r.need(2) {
		return 0
	}
	return (binary.BigEndian.Uint16(r.buf[r.off:]) >> shift) & mask
}

// Masked32 读取当前 uint32 中的位域，不移动游标
func (r *Reader) Masked32(mask uint32, shift uint) uint32 {
	if !r.need(4) {
		return 0
	}
	return (binary.BigEndian.Uint32(r.buf[r.off:]) >> shift) & mask
}

// ==== shortcut methods

// ReadBool 读取一个字节的布尔值
func (r *Reader) ReadBool() bool { return r.Uint8() != 0 }
