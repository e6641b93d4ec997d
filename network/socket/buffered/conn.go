// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package buffered

import (
	"net"
	"time"

	"github.com/kelindar/rate"
)

const (
	defaultRate       = 50
	defaultBufferSize = 64 * 1024
	minBufferSize     = 8 * 1024
)

// Conn 合并小块写入的连接。
// 帧监听按帧写入，超过刷新频率的写入先进入缓冲，由 Flush 或后续写入带出。
// 非并发安全，只允许一个写协程。
type Conn struct {
	net.Conn
	buf          []byte
	limit        *rate.Limiter
	bufferSize   int
	writeTimeout time.Duration
}

// NewConn 包装 c
func NewConn(c net.Conn, options ...Option) *Conn {
	conn := &Conn{Conn: c}
	for _, option := range options {
		option.apply(conn)
	}

	if conn.limit == nil {
		conn.limit = rate.New(defaultRate, time.Second)
	}
	if conn.bufferSize <= 0 {
		conn.bufferSize = defaultBufferSize
	}
	conn.buf = make([]byte, 0, conn.bufferSize)
	return conn
}

// Buffered 返回待写字节数
func (c *Conn) Buffered() int {
	return len(c.buf)
}

// Write 缓冲写，返回值不含未成功刷出的缓冲
func (c *Conn) Write(p []byte) (int, error) {
	// 放不下时先腾空
	if len(c.buf)+len(p) > c.bufferSize {
		if err := c.Flush(); err != nil {
			return 0, err
		}
	}

	// 大块直接写，避免拷贝
	if len(p) >= c.bufferSize {
		return c.writeFull(p)
	}

	c.buf = append(c.buf, p...)
	if c.limit.Limit() {
		return len(p), nil
	}
	if err := c.Flush(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Flush 写出缓冲的全部数据
func (c *Conn) Flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	_, err := c.writeFull(c.buf)
	c.buf = c.buf[:0]
	return err
}

func (c *Conn) writeFull(p []byte) (nn int, err error) {
	if c.writeTimeout > 0 {
		if err = c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return 0, err
		}
	}

	var n int
	for len(p) > 0 && err == nil {
		n, err = c.Conn.Write(p)
		nn += n
		p = p[n:]
	}
	return nn, err
}

// Option 配置 Conn 的选项接口
type Option interface {
	apply(*Conn)
}

// OptionFunc 包装函数以便它满足 Option 接口
type optionFunc func(*Conn)

func (f optionFunc) apply(c *Conn) {
	f(c)
}

// FlushRate Conn 写操作的每秒刷新频率
func FlushRate(r int) Option {
	return optionFunc(func(c *Conn) {
		if r < 1 { // 如果不合规，设置成默认值
			r = defaultRate
		}
		c.limit = rate.New(r, time.Second)
	})
}

// BufferSize Conn 缓冲大小
func BufferSize(bufferSize int) Option {
	return optionFunc(func(c *Conn) {
		if bufferSize < minBufferSize { // 如果不合规，设置成最小值
			bufferSize = minBufferSize
		}
		c.bufferSize = bufferSize
	})
}

// WriteTimeout 每次写出的超时，0 表示不设置
func WriteTimeout(d time.Duration) Option {
	return optionFunc(func(c *Conn) {
		c.writeTimeout = d
	})
}
