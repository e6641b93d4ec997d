// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"strings"
)

// AccessRight 访问权限类型
type AccessRight int

// 权限常量
const (
	ViewRight    AccessRight = 1 << iota // 查看流状态、描述符
	ControlRight                         // 暂停、恢复流，修改流表
)

// ErrPassword 密码错误
var ErrPassword = errors.New("password error")

// UserProvider 用户提供者
type UserProvider interface {
	Name() string
	Configure(config map[string]interface{}) error
	LoadAll() ([]*User, error)
	Flush(full []*User, saves []*User, removes []*User) error
}

// User 管理接口用户
type User struct {
	Name     string `json:"name"`
	Password string `json:"password,omitempty"`
	Admin    bool   `json:"admin,omitempty"`
	View     string `json:"view,omitempty"`    // 可查看的流名掩码，';' 分隔
	Control  string `json:"control,omitempty"` // 可控制的流名掩码，';' 分隔

	viewMatchers    []NameMatcher
	controlMatchers []NameMatcher
}

func parseMatchers(access string) []NameMatcher {
	var matchers []NameMatcher
	for _, mask := range strings.Split(access, ";") {
		mask = strings.TrimSpace(mask)
		if mask == "" {
			continue
		}
		matchers = append(matchers, NewNameMatcher(mask))
	}
	return matchers
}

// Key 用户的索引键，即小写的名称
func (u *User) Key() string { return u.Name }

func (u *User) init() error {
	u.Name = strings.ToLower(strings.TrimSpace(u.Name))
	if u.Name == "" {
		return errors.New("user name is empty")
	}
	if u.Admin {
		if u.View == "" {
			u.View = endWildcard
		}
		if u.Control == "" {
			u.Control = endWildcard
		}
	}

	u.viewMatchers = parseMatchers(u.View)
	u.controlMatchers = parseMatchers(u.Control)
	// 能控制的流一定能查看
	u.viewMatchers = append(u.viewMatchers, u.controlMatchers...)
	return nil
}

// PasswordMD5 返回口令的MD5字串
func (u *User) PasswordMD5() string {
	if passwordNeedMD5(u.Password) {
		pw := md5.Sum([]byte(u.Password))
		return hex.EncodeToString(pw[:])
	}
	return u.Password
}

// ValidatePassword 验证密码
func (u *User) ValidatePassword(password string) error {
	if passwordNeedMD5(password) {
		pw := md5.Sum([]byte(password))
		password = hex.EncodeToString(pw[:])
	}

	if strings.EqualFold(u.PasswordMD5(), password) {
		return nil
	}
	return ErrPassword
}

// ValidatePermission 验证对指定流的权限
func (u *User) ValidatePermission(stream string, right AccessRight) bool {
	var matchers []NameMatcher
	switch right {
	case ControlRight:
		matchers = u.controlMatchers
	case ViewRight:
		matchers = u.viewMatchers
	}

	stream = strings.TrimSpace(stream)
	for _, matcher := range matchers {
		if matcher.Match(stream) {
			return true
		}
	}
	return false
}

// CopyFrom 从源属性并初始化
func (u *User) CopyFrom(src *User, withPassword bool) {
	if withPassword {
		u.Password = src.Password
	}
	u.Admin = src.Admin
	u.View = src.View
	u.Control = src.Control
	u.init()
}

// 密码是否需要进行md5处理，如果已经是md5则不处理
func passwordNeedMD5(password string) bool {
	if len(password) != 32 {
		return true
	}

	_, err := hex.DecodeString(password)
	return err != nil
}
