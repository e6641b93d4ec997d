// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package streams

import (
	"github.com/cnotch/avbhub/utils"
	"gopkg.in/yaml.v3"
)

// YAML yaml 提供者
var YAML = &yamlProvider{}

type yamlProvider struct {
	filePath string
}

func (p *yamlProvider) Name() string {
	return "yaml"
}

func (p *yamlProvider) Configure(config map[string]interface{}) error {
	path, err := configuredPath(config, "streams.yaml")
	if err != nil {
		return err
	}
	p.filePath = path
	return nil
}

func (p *yamlProvider) LoadAll() ([]*Stream, error) {
	b, err := utils.ReadFileIfExists(p.filePath)
	if b == nil || err != nil {
		return nil, err
	}

	var streams []*Stream
	if err := yaml.Unmarshal(b, &streams); err != nil {
		return nil, err
	}
	return streams, nil
}

func (p *yamlProvider) Flush(full []*Stream, saves []*Stream, removes []*Stream) error {
	b, err := yaml.Marshal(full)
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(p.filePath, b)
}
