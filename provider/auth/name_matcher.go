// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package auth

import "strings"

// 流名按 '/' 分段，如 "studio/mic"
const (
	sectionWildcard = "+" // 单段通配符
	endWildcard     = "*" // 0-n段通配符，必须位于结尾
)

// NameMatcher 流名匹配接口
type NameMatcher interface {
	Match(name string) bool
}

// NewNameMatcher 创建匹配器
func NewNameMatcher(mask string) NameMatcher {
	mask = strings.ToLower(strings.Trim(strings.TrimSpace(mask), "/"))
	if mask == endWildcard {
		return alwaysMatcher{}
	}

	parts := strings.Split(mask, "/")
	wildcard := parts[len(parts)-1] == endWildcard
	if wildcard {
		parts = parts[:len(parts)-1]
	}
	return &nameMatcher{parts: parts, wildcardEnd: wildcard}
}

type alwaysMatcher struct{}

func (alwaysMatcher) Match(string) bool { return true }

type nameMatcher struct {
	parts       []string
	wildcardEnd bool
}

func (m *nameMatcher) Match(name string) bool {
	segs := strings.Split(strings.ToLower(strings.Trim(name, "/")), "/")
	if len(segs) < len(m.parts) {
		return false
	}
	if len(segs) > len(m.parts) && !m.wildcardEnd {
		return false
	}

	for i, part := range m.parts {
		if part != sectionWildcard && part != segs[i] {
			return false
		}
	}
	return true
}
