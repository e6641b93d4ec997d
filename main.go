// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package main

import (
	"context"

	"github.com/cnotch/avbhub/config"
	"github.com/cnotch/avbhub/provider/auth"
	"github.com/cnotch/avbhub/provider/streams"
	"github.com/cnotch/avbhub/service"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
)

func main() {
	// 初始化配置
	config.InitConfig()
	// 初始化全局计划任务
	scheduler.SetPanicHandler(func(job *scheduler.ManagedJob, r interface{}) {
		xlog.Errorf("scheduler task panic. tag: %v, recover: %v", job.Tag(), r)
	})

	// 初始化各类提供者
	// 流表提供者
	streamsProvider := config.LoadStreamsProvider(streams.JSON, streams.YAML, streams.Memory)
	if err := streams.Reset(streamsProvider.(streams.Provider)); err != nil {
		xlog.L().Panic(err.Error())
	}

	// 用户提供者
	userProvider := config.LoadUsersProvider(auth.JSON, auth.Memory)
	if err := auth.Reset(userProvider.(auth.UserProvider)); err != nil {
		xlog.L().Panic(err.Error())
	}

	// Start new service
	svc, err := service.NewService(context.Background(), xlog.L())
	if err != nil {
		xlog.L().Panic(err.Error())
	}

	// Listen and serve
	if err := svc.Listen(); err != nil {
		xlog.L().Panic(err.Error())
	}
}
