// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package streams

import (
	"github.com/cnotch/avbhub/provider/store"
)

var table = store.New("streams", (*Stream).init)

func init() {
	// 默认为内存提供者，避免没有初始化全局函数调用问题
	table.Reset(Memory)
}

// Reset 重置流表提供者
func Reset(provider Provider) error {
	return table.Reset(provider)
}

// All 获取所有的流，按名称排序
func All() []*Stream {
	return table.All()
}

// Get 获取指定名称的流
func Get(name string) *Stream {
	s, _ := table.Get(name)
	return s
}

// Del 删除指定名称的流
func Del(name string) error {
	table.Del(name)
	return nil
}

// Save 保存流，已存在时就地更新
func Save(src *Stream) error {
	if err := src.init(); err != nil {
		return err
	}
	table.Save(src, (*Stream).CopyFrom)
	return nil
}

// Flush 刷新流表
func Flush() error {
	return table.Flush()
}
