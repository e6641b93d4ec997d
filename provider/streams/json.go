// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package streams

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
	path, err := configuredPath(config, "streams.json")
	if err != nil {
		return err
	}
	p.filePath = path
	return nil
}

func (p *jsonProvider) LoadAll() ([]*Stream, error) {
	var streams []*Stream
	if _, err := utils.DecodeJSONFile(p.filePath, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

func (p *jsonProvider) Flush(full []*Stream, saves []*Stream, removes []*Stream) error {
	return utils.EncodeJSONFile(p.filePath, full)
}

// configuredPath 读取 file 配置项，相对路径以可执行文件目录为基准
func configuredPath(config map[string]interface{}, def string) (string, error) {
	path := def
	if v, ok := config["file"]; ok {
		s, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("invalid stream table config, file attr: %v", v)
		}
		path = s
	}

	if !filepath.IsAbs(path) {
		exe, err := os.Executable()
		if err != nil {
			return "", err
		}
		path = filepath.Join(filepath.Dir(exe), path)
	}
	return path, nil
}
