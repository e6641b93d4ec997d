// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package auth

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cnotch/avbhub/utils"
)

// JSON json 提供者
var JSON = &jsonProvider{}

type jsonProvider struct {
	filePath string
}

func (p *jsonProvider) Name() string {
	return "json"
}

func (p *jsonProvider) Configure(config map[string]interface{}) error {
	p.filePath = "users.json"
	if v, ok := config["file"]; ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("invalid user config, file attr: %v", v)
		}
		p.filePath = s
	}

	if !filepath.IsAbs(p.filePath) {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		p.filePath = filepath.Join(filepath.Dir(exe), p.filePath)
	}
	return nil
}

// LoadAll 文件不存在时使用内置的 admin 用户
func (p *jsonProvider) LoadAll() ([]*User, error) {
	var users []*User
	found, err := utils.DecodeJSONFile(p.filePath, &users)
	if err != nil {
		return nil, err
	}
	if !found {
		return defaultUsers(), nil
	}
	return users, nil
}

func (p *jsonProvider) Flush(full []*User, saves []*User, removes []*User) error {
	return utils.EncodeJSONFile(p.filePath, full)
}
