// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/cnotch/xlog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig 日志配置
type LogConfig struct {
	Level      xlog.Level `json:"level"`
	ToFile     bool       `json:"tofile"`     // 同时写入轮转文件
	Filename   string     `json:"filename"`   // 相对路径以可执行文件目录为基准
	MaxSize    int        `json:"maxsize"`    // 单个文件的最大尺寸，MB
	MaxDays    int        `json:"maxdays"`    // 旧文件最多保留天数
	MaxBackups int        `json:"maxbackups"` // 旧文件最多保留个数
	Compress   bool       `json:"compress"`   // gzip 压缩旧文件

	file *lumberjack.Logger
}

func (c *LogConfig) initFlags() {
	flag.Var(&c.Level, "log-level", "Set the log level to output")
	flag.BoolVar(&c.ToFile, "log-tofile", false, "Determines if logs should be saved to file")
	flag.StringVar(&c.Filename, "log-filename", filepath.Join("logs", Name+".log"), "Set the file to write logs to")
	flag.IntVar(&c.MaxSize, "log-maxsize", 20, "Set the maximum size in megabytes of a log file")
	flag.IntVar(&c.MaxDays, "log-maxdays", 7, "Set the maximum days of old log files to retain")
	flag.IntVar(&c.MaxBackups, "log-maxbackups", 14, "Set the maximum number of old log files to retain")
	flag.BoolVar(&c.Compress, "log-compress", false, "Determines if old log files should be compressed")
}

// newLogger 控制台总是输出，tofile 时同时以 JSON 写入轮转文件
func (c *LogConfig) newLogger(base string) *xlog.Logger {
	console := xlog.NewCore(xlog.NewConsoleEncoder(xlog.LstdFlags|xlog.Lmicroseconds|xlog.Llongfile),
		xlog.Lock(os.Stderr), c.Level)
	if !c.ToFile {
		c.file = nil
		return xlog.New(console, xlog.AddCaller())
	}

	filename := c.Filename
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(base, filename)
	}
	c.file = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    c.MaxSize,
		MaxBackups: c.MaxBackups,
		MaxAge:     c.MaxDays,
		LocalTime:  true,
		Compress:   c.Compress,
	}
	return xlog.New(xlog.NewTee(console,
		xlog.NewCore(xlog.NewJSONEncoder(xlog.Llongfile), c.file, c.Level)),
		xlog.AddCaller())
}

// rotate 关闭当前日志文件并开始新文件
func (c *LogConfig) rotate() error {
	if c.file == nil {
		return nil
	}
	return c.file.Rotate()
}
