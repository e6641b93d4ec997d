// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"sync"
	"time"

	"github.com/cnotch/avbhub/provider/security"
)

// Token 有效期
const (
	AccessTokenTTL  = time.Hour * 2
	RefreshTokenTTL = time.Hour * 24 * 7
)

// Token 用户登录后的Token
type Token struct {
	Username string `json:"-"`
	AToken   string `json:"access_token"`
	AExp     int64  `json:"-"`
	RToken   string `json:"refresh_token"`
	RExp     int64  `json:"-"`
}

// TokenManager token管理
type TokenManager struct {
	tokens sync.Map // token->Token
}

// NewToken 给用户新建Token
func (tm *TokenManager) NewToken(username string) *Token {
	now := time.Now()
	token := &Token{
		Username: username,
		AToken:   security.NewID().Token(username, 20),
		AExp:     now.Add(AccessTokenTTL).Unix(),
		// 刷新 token 生命期长，取更长的令牌
		RToken: security.NewID().Token(username, 30),
		RExp:   now.Add(RefreshTokenTTL).Unix(),
	}

	tm.tokens.Store(token.AToken, token)
	tm.tokens.Store(token.RToken, token)
	return token
}

// Refresh 用刷新 token 换新的 Token，旧 Token 作废
func (tm *TokenManager) Refresh(rtoken string) *Token {
	token := tm.load(rtoken)
	if token == nil || token.RToken != rtoken {
		return nil
	}

	tm.tokens.Delete(token.AToken)
	tm.tokens.Delete(token.RToken)
	if token.RExp > time.Now().Unix() {
		return tm.NewToken(token.Username)
	}
	return nil
}

// AccessCheck 访问检测，返回 token 所属用户
func (tm *TokenManager) AccessCheck(atoken string) string {
	token := tm.load(atoken)
	if token == nil || token.AToken != atoken {
		return ""
	}
	if token.AExp > time.Now().Unix() {
		return token.Username
	}
	tm.tokens.Delete(token.AToken)
	return ""
}

// Revoke 作废用户的所有 Token
func (tm *TokenManager) Revoke(username string) {
	tm.tokens.Range(func(k, v interface{}) bool {
		if v.(*Token).Username == username {
			tm.tokens.Delete(k)
		}
		return true
	})
}

// ExpCheck 过期检测
func (tm *TokenManager) ExpCheck() {
	now := time.Now().Unix()
	tm.tokens.Range(func(k, v interface{}) bool {
		token := v.(*Token)
		if now > token.AExp {
			tm.tokens.Delete(token.AToken)
		}
		if now > token.RExp {
			tm.tokens.Delete(token.RToken)
		}
		return true
	})
}

func (tm *TokenManager) load(s string) *Token {
	ti, ok := tm.tokens.Load(s)
	if !ok {
		return nil
	}
	return ti.(*Token)
}
