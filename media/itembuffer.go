// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

// itemBuffer 媒体单元缓冲
type itemBuffer struct {
	buf []*Item // contents are the items buf[off : len(buf)]
	off int     // read at &buf[off], write at &buf[len(buf)]
}

// 避免内存泄露，重置指针引用
func resetSlice(items []*Item) {
	for i := range items {
		items[i] = nil
	}
}

func (b *itemBuffer) empty() bool { return len(b.buf) <= b.off }

// Len 缓冲的单元数
func (b *itemBuffer) Len() int { return len(b.buf) - b.off }

// Reset 重置缓冲
func (b *itemBuffer) Reset() {
	resetSlice(b.buf[b.off:])
	b.buf = b.buf[:0]
	b.off = 0
}

// grow 为 1 个单元腾出空间，返回写入位置
func (b *itemBuffer) grow() int {
	m := b.Len()
	if m == 0 && b.off != 0 {
		b.Reset()
	}
	if l := len(b.buf); l < cap(b.buf) {
		b.buf = b.buf[:l+1]
		return l
	}
	c := cap(b.buf)
	if 1 <= c/2-m {
		// 前面读空的部分超过一半，下移而不重新分配
		copy(b.buf, b.buf[b.off:])
		resetSlice(b.buf[m:])
	} else {
		buf := make([]*Item, 2*c+1)
		copy(buf, b.buf[b.off:])
		resetSlice(b.buf[b.off:])
		b.buf = buf
	}
	b.off = 0
	b.buf = b.buf[:m+1]
	return m
}

// Write 写入单个单元
func (b *itemBuffer) Write(it *Item) {
	m := b.grow()
	b.buf[m] = it
}

// Peek 查看最早的单元
func (b *itemBuffer) Peek() *Item {
	if b.empty() {
		return nil
	}
	return b.buf[b.off]
}

// Read 读出最早的单元
func (b *itemBuffer) Read() *Item {
	if b.empty() {
		b.Reset()
		return nil
	}
	it := b.buf[b.off]
	b.buf[b.off] = nil // 释放指针引用，避免内存泄露
	b.off++
	return it
}
