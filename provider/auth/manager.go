// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"fmt"
	"strings"

	"github.com/cnotch/avbhub/provider/store"
)

var users = store.New("users", (*User).init)

func init() {
	// 默认为内存提供者，避免没有初始化全局函数调用问题
	Reset(Memory)
}

// Reset 重置用户提供者
func Reset(provider UserProvider) error {
	if err := users.Reset(provider); err != nil {
		return fmt.Errorf("load users from %s provider: %w", provider.Name(), err)
	}
	return nil
}

// All 获取所有的用户，按名称排序
func All() []*User {
	return users.All()
}

// Get 获取取指定名称的用户，名称不区分大小写
func Get(userName string) *User {
	u, _ := users.Get(strings.ToLower(userName))
	return u
}

// Del 删除指定名称的用户
func Del(userName string) error {
	users.Del(strings.ToLower(userName))
	return nil
}

// Save 保存用户，updatePassword 为 false 时保留原口令
func Save(src *User, updatePassword bool) error {
	if err := src.init(); err != nil {
		return err
	}
	users.Save(src, func(dst, src *User) { dst.CopyFrom(src, updatePassword) })
	return nil
}

// Flush 刷新用户
func Flush() error {
	return users.Flush()
}
