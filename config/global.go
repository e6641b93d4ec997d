// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cnotch/avbhub/avdecc"
	cfg "github.com/cnotch/loader"
	"github.com/cnotch/xlog"
)

// 服务名
const (
	Vendor  = "CAOHONGJU"
	Name    = "avbhub"
	Version = "V1.0.0"
)

var (
	globalC       *config
	consoleAppDir string
)

// InitConfig 初始化 Config
func InitConfig() {
	exe, err := os.Executable()
	if err != nil {
		xlog.Panic(err.Error())
	}

	configPath := filepath.Join(filepath.Dir(exe), Name+".conf")
	consoleAppDir = filepath.Join(filepath.Dir(exe), "console")

	globalC = new(config)
	globalC.initFlags()

	// 创建或加载配置文件
	if err := cfg.Load(globalC,
		&cfg.JSONLoader{Path: configPath, CreatedIfNonExsit: true},
		&cfg.EnvLoader{Prefix: strings.ToUpper(Name)},
		&cfg.FlagLoader{}); err != nil {
		// 异常，直接退出
		xlog.Panic(err.Error())
	}

	// 初始化日志
	xlog.ReplaceGlobal(globalC.Log.newLogger(filepath.Dir(exe)))
	globalC.Avdecc.normalize(xlog.L())
	globalC.Net.normalize()
}

// 未调用 InitConfig 时(如测试)使用的默认值
var defaultC = config{
	ListenAddr: ":1722",
	Avdecc:     AvdeccConfig{IfName: "eth0"},
	Net:        defaultNet,
}

func current() *config {
	if globalC == nil {
		return &defaultC
	}
	return globalC
}

// Addr 管理接口侦听地址
func Addr() string { return current().ListenAddr }

// TapAddr 帧监听地址，空表示不启用
func TapAddr() string { return current().TapAddr }

// Auth 是否启用验证
func Auth() bool { return current().Auth }

// Profile 是否启动 Http Profile
func Profile() bool { return current().Profile }

// GetTLSConfig 获取TLSConfig
func GetTLSConfig() *TLSConfig { return current().TLS }

// Avdecc 实体上下文配置
func Avdecc() (*avdecc.Config, error) { return current().Avdecc.Build() }

// RTP RTP 桥接配置
func RTP() avdecc.RTPConfig { return current().RTP.Build() }

// ConsoleAppDir 管理员控制台应用的目录
func ConsoleAppDir() (string, bool) {
	if consoleAppDir == "" {
		return "", false
	}
	finfo, err := os.Stat(consoleAppDir)
	if err != nil || !finfo.IsDir() {
		return "", false
	}
	return consoleAppDir, true
}

// NetTimeout 网络写超时
func NetTimeout() time.Duration { return current().Net.timeout() }

// NetHeartbeatInterval 事件推送的心跳间隔
func NetHeartbeatInterval() time.Duration { return current().Net.heartbeat() }

// NetBufferSize 帧监听连接的写缓冲
func NetBufferSize() int { return current().Net.BufferSize }

// NetFlushRate 帧监听连接每秒最多刷新次数
func NetFlushRate() int { return current().Net.FlushRate }

// RotateLog 日志写入文件时切换到新文件
func RotateLog() error { return current().Log.rotate() }

// LoadStreamsProvider 加载流表提供者
func LoadStreamsProvider(providers ...Provider) Provider {
	return LoadProvider(current().Streams, providers...)
}

// LoadUsersProvider 加载用户提供者
func LoadUsersProvider(providers ...Provider) Provider {
	return LoadProvider(current().Users, providers...)
}
