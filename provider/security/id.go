// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package security 生成访问令牌。
package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// ID 进程内唯一的序号
type ID uint64

// 以启动时间为种子，重启后序号不重复
var next = uint64(time.Now().Unix()) << 16

// NewID 新的序号
func NewID() ID {
	return ID(atomic.AddUint64(&next, 1))
}

// String 十进制表示
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// Token 由序号、时间、随机数和盐派生不可预测的令牌，
// 长度由 size 字节决定，输出为无填充的 base32
func (id ID) Token(salt string, size int) string {
	var seed [24]byte
	binary.BigEndian.PutUint64(seed[:8], uint64(id))
	binary.BigEndian.PutUint64(seed[8:16], uint64(time.Now().UnixNano()))
	rand.Read(seed[16:])

	key := pbkdf2.Key(seed[:], []byte(salt), 1024, size, sha256.New)
	return encoding.EncodeToString(key)
}
