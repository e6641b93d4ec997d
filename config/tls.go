// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"crypto/tls"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// TLSConfig 管理接口的 https 配置
type TLSConfig struct {
	ListenAddr  string `json:"listen"`
	Certificate string `json:"cert"`
	PrivateKey  string `json:"key"`
}

// Load 加载证书。证书和私钥可以是文件路径，也可以直接是 PEM 文本
func (c *TLSConfig) Load() (*tls.Config, error) {
	if c.PrivateKey == "" || c.Certificate == "" {
		return nil, errors.New("no certificate or private key configured")
	}

	certPEM, err := pemBytes(c.Certificate)
	if err != nil {
		return nil, err
	}
	keyPEM, err := pemBytes(c.PrivateKey)
	if err != nil {
		return nil, err
	}

	cer, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cer},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// pemBytes PEM 文本直接返回，否则按相对可执行文件目录的路径读取
func pemBytes(v string) ([]byte, error) {
	if strings.HasPrefix(v, "---") {
		return []byte(v), nil
	}
	if !filepath.IsAbs(v) {
		exe, err := os.Executable()
		if err != nil {
			return nil, err
		}
		v = filepath.Join(filepath.Dir(exe), v)
	}
	return os.ReadFile(v)
}
