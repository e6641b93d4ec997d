// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"errors"
	"sync"
)

// ErrTooManyStrings 单个语言的字符串超过引用可寻址的范围
var ErrTooManyStrings = errors.New("aem: too many localized strings")

type localeGroup struct {
	locale  *Locale
	strings []*Strings
	count   int
}

// LocaleStrings 按语言收集本地化字符串，生成 LOCALE 和 STRINGS 描述符
type LocaleStrings struct {
	mu     sync.Mutex
	groups []*localeGroup
}

// NewLocaleStrings 创建本地化字符串处理器
func NewLocaleStrings() *LocaleStrings {
	return &LocaleStrings{}
}

func (ls *LocaleStrings) group(localeID string) *localeGroup {
	for _, g := range ls.groups {
		if g.locale.LocaleIdentifier.String() == localeID {
			return g
		}
	}
	g := &localeGroup{locale: NewLocale(localeID)}
	ls.groups = append(ls.groups, g)
	return g
}

// AddString 加入一个字符串，返回相对该语言 base_strings 的引用
func (ls *LocaleStrings) AddString(localeID, s string) (StringRef, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	g := ls.group(localeID)
	offset := g.count / StringsPerDescriptor
	index := g.count % StringsPerDescriptor
	if offset >= 0x1fff {
		return NoString, ErrTooManyStrings
	}
	if index == 0 {
		g.strings = append(g.strings, NewStrings())
	}
	g.strings[offset].Strings[index] = NewString64(s)
	g.count++
	g.locale.NumberOfStrings = uint16(len(g.strings))
	return NewStringRef(uint16(offset), uint8(index)), nil
}

// Add 依次加入多个字符串
func (ls *LocaleStrings) Add(localeID string, ss ...string) ([]StringRef, error) {
	refs := make([]StringRef, 0, len(ss))
	for _, s := range ss {
		ref, err := ls.AddString(localeID, s)
		if err != nil {
			return refs, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Lookup 按引用取回字符串
func (ls *LocaleStrings) Lookup(localeID string, ref StringRef) (string, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, g := range ls.groups {
		if g.locale.LocaleIdentifier.String() != localeID {
			continue
		}
		off, idx := int(ref.Offset()), int(ref.Index())
		if off >= len(g.strings) || off*StringsPerDescriptor+idx >= g.count {
			return "", false
		}
		return g.strings[off].Strings[idx].String(), true
	}
	return "", false
}

// AddTo 将每种语言的 STRINGS 和 LOCALE 作为非顶层描述符加入模型
func (ls *LocaleStrings) AddTo(m *Model) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for _, g := range ls.groups {
		for i, s := range g.strings {
			idx, err := m.AddDescriptor(s, 0)
			if err != nil && err != ErrDuplicate {
				return err
			}
			if i == 0 {
				if err == ErrDuplicate {
					idx = s.Index
				}
				g.locale.BaseStrings = idx
			}
		}
		g.locale.NumberOfStrings = uint16(len(g.strings))
		if _, err := m.AddDescriptor(g.locale, 0); err != nil && err != ErrDuplicate {
			return err
		}
	}
	return nil
}
