// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package store 提供按名称索引、增量刷新到提供者的记录表。
package store

import (
	"sort"
	"sync"

	"github.com/cnotch/xlog"
)

// Record 表中的记录
type Record interface {
	Key() string
}

// Provider 记录的持久化提供者
type Provider[T Record] interface {
	LoadAll() ([]T, error)
	Flush(full []T, saves []T, removes []T) error
}

// Table 记录表，记录自上次 Flush 后的保存和删除
type Table[T Record] struct {
	lock     sync.RWMutex
	m        map[string]T
	saves    []T
	removes  []T
	provider Provider[T]
	validate func(T) error
	logger   *xlog.Logger
}

// New 创建记录表，validate 在加载时校验并规范化每条记录
func New[T Record](kind string, validate func(T) error) *Table[T] {
	return &Table[T]{
		m:        make(map[string]T),
		validate: validate,
		logger:   xlog.L().With(xlog.Fields(xlog.F("table", kind))),
	}
}

// Reset 从提供者重新加载，无效的记录被忽略
func (t *Table[T]) Reset(provider Provider[T]) error {
	records, err := provider.LoadAll()
	if err != nil {
		return err
	}

	m := make(map[string]T, len(records))
	for _, r := range records {
		if err := t.validate(r); err != nil {
			t.logger.Warnf("record ignored: %v", err)
			continue
		}
		m[r.Key()] = r
	}

	t.lock.Lock()
	t.m = m
	t.saves = t.saves[:0]
	t.removes = t.removes[:0]
	t.provider = provider
	t.lock.Unlock()
	return nil
}

// Get 获取记录
func (t *Table[T]) Get(key string) (T, bool) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	r, ok := t.m[key]
	return r, ok
}

// Del 删除记录
func (t *Table[T]) Del(key string) (T, bool) {
	t.lock.Lock()
	defer t.lock.Unlock()

	r, ok := t.m[key]
	if !ok {
		return r, false
	}
	delete(t.m, key)
	t.saves = without(t.saves, key)
	t.removes = append(t.removes, r)
	return r, true
}

// Save 新增或更新记录。记录已存在时调用 merge 把 r 合并到现有记录，
// merge 为 nil 则直接替换。
func (t *Table[T]) Save(r T, merge func(dst, src T)) {
	key := r.Key()

	t.lock.Lock()
	defer t.lock.Unlock()

	if old, ok := t.m[key]; ok && merge != nil {
		merge(old, r)
		r = old
	} else {
		t.m[key] = r
	}

	t.removes = without(t.removes, key)
	t.saves = append(without(t.saves, key), r)
}

// Flush 把变化交给提供者
func (t *Table[T]) Flush() error {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.saves)+len(t.removes) == 0 {
		return nil
	}
	if err := t.provider.Flush(t.list(), t.saves, t.removes); err != nil {
		return err
	}
	t.saves = t.saves[:0]
	t.removes = t.removes[:0]
	return nil
}

// Changes 未刷新的保存和删除数
func (t *Table[T]) Changes() (saves, removes int) {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return len(t.saves), len(t.removes)
}

// All 所有记录，按键排序
func (t *Table[T]) All() []T {
	t.lock.RLock()
	defer t.lock.RUnlock()
	return t.list()
}

func (t *Table[T]) list() []T {
	records := make([]T, 0, len(t.m))
	for _, r := range t.m {
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key() < records[j].Key() })
	return records
}

func without[T Record](records []T, key string) []T {
	for i, r := range records {
		if r.Key() == key {
			return append(records[:i], records[i+1:]...)
		}
	}
	return records
}
