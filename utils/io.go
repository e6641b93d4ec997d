// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package utils

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
)

// ReadFileIfExists 读取文件，文件不存在时返回 nil, nil
func ReadFileIfExists(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// WriteFileAtomic 先写临时文件再改名，避免中途失败留下半个文件
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	f, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if _, err = f.Write(data); err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(tmp, path)
	}
	if err != nil {
		os.Remove(tmp)
	}
	return err
}

// EncodeJSONFile 编码 JSON 文件
func EncodeJSONFile(path string, obj interface{}) error {
	body, err := json.Marshal(obj)
	if err != nil {
		return err
	}

	var formatted bytes.Buffer
	if err := json.Indent(&formatted, body, "", "\t"); err != nil {
		return err
	}
	return WriteFileAtomic(path, formatted.Bytes())
}

// DecodeJSONFile 解码 JSON 文件，文件不存在时返回 false
func DecodeJSONFile(path string, obj interface{}) (bool, error) {
	b, err := ReadFileIfExists(path)
	if b == nil || err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, obj)
}
