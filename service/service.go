// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/cnotch/avbhub/avdecc"
	"github.com/cnotch/avbhub/config"
	"github.com/cnotch/avbhub/events"
	"github.com/cnotch/avbhub/network"
	"github.com/cnotch/avbhub/provider/auth"
	"github.com/cnotch/avbhub/provider/streams"
	"github.com/cnotch/scheduler"
	"github.com/cnotch/xlog"
	"github.com/emitter-io/address"
)

// 默认端口
const (
	defaultHTTPPort  = 1722
	defaultHTTPSPort = 443
	defaultTapPort   = 17221
)

// Service 网络服务对象(服务的入口)
type Service struct {
	context   context.Context
	cancel    context.CancelFunc
	logger    *xlog.Logger
	tlsusing  bool
	http      *http.Server
	tap       *tapServer
	bus       *events.Bus
	avdecc    *avdecc.Context
	tokens    *auth.TokenManager
	listeners []net.Listener
	closeOnce sync.Once
}

// NewService 创建服务，按配置和流表建立 AVDECC 实体
func NewService(ctx context.Context, l *xlog.Logger, opts ...avdecc.Option) (s *Service, err error) {
	ctx, cancel := context.WithCancel(ctx)
	s = &Service{
		context: ctx,
		cancel:  cancel,
		logger:  l,
		http:    new(http.Server),
		tap:     newTapServer(l.With(xlog.Fields(xlog.F("module", "tap")))),
		bus:     events.NewBus(),
		tokens:  new(auth.TokenManager),
	}

	cfg, err := config.Avdecc()
	if err != nil {
		cancel()
		return nil, err
	}

	opts = append([]avdecc.Option{
		avdecc.WithPublisher(s.bus),
		avdecc.WithTap(s.tap.Publish),
		avdecc.WithRTP(config.RTP()),
	}, opts...)
	s.avdecc, err = avdecc.New(cfg, streams.All(), l, opts...)
	if err != nil {
		cancel()
		return nil, err
	}

	// 设置 http 的Handler
	mux := http.NewServeMux()

	// 管理员控制台
	if consoleAppDir, ok := config.ConsoleAppDir(); ok {
		mux.Handle("/", http.FileServer(http.Dir(consoleAppDir)))
	}

	if config.Profile() {
		mux.HandleFunc("/debug/pprof/", localOnly(pprof.Index))
		mux.HandleFunc("/debug/pprof/cmdline", localOnly(pprof.Cmdline))
		mux.HandleFunc("/debug/pprof/profile", localOnly(pprof.Profile))
		mux.HandleFunc("/debug/pprof/symbol", localOnly(pprof.Symbol))
		mux.HandleFunc("/debug/pprof/trace", localOnly(pprof.Trace))
	}

	s.initApis(mux)
	mux.HandleFunc("/ws/events", s.onEvents)
	s.http.Handler = mux

	// 启动定时存储流表和用户信息
	scheduler.PeriodFunc(time.Minute*5, time.Minute*5, func() {
		if err := streams.Flush(); err != nil {
			s.logger.Warnf("flush stream table: %v", err)
		}
		if err := auth.Flush(); err != nil {
			s.logger.Warnf("flush users: %v", err)
		}
		s.tokens.ExpCheck()
	}, "The task of scheduled storage of stream tables and authorization information tables(5minutes")

	s.logger.Info("service configured")
	return s, nil
}

// Listen 启动实体和各侦听端口，阻塞直到服务关闭
func (s *Service) Listen() (err error) {
	defer s.Close()
	s.hookSignals()

	if err = s.avdecc.Start(); err != nil {
		return err
	}

	// http ws
	addr, err := address.Parse(config.Addr(), defaultHTTPPort)
	if err != nil {
		return err
	}
	if err = s.listen(addr, nil); err != nil {
		return err
	}

	// https wss
	if tlsconf := config.GetTLSConfig(); tlsconf != nil {
		conf, err := tlsconf.Load()
		if err != nil {
			s.logger.Warnf("tls disabled: %v", err)
		} else if tlsAddr, err := address.Parse(tlsconf.ListenAddr, defaultHTTPSPort); err == nil {
			if err = s.listen(tlsAddr, conf); err == nil {
				s.tlsusing = true
			}
		}
	}

	// 帧监听
	if tapAddr := config.TapAddr(); tapAddr != "" {
		addr, err := address.Parse(tapAddr, defaultTapPort)
		if err != nil {
			return err
		}
		l, err := net.Listen("tcp", addr.String())
		if err != nil {
			return err
		}
		s.listeners = append(s.listeners, l)
		s.tap.Start()
		go s.tap.Serve(l)
		s.logger.Infof("frame tap listening, addr = %s.", addr.String())
	}

	s.logger.Infof("service started(%s).", config.Version)
	// Block
	<-s.context.Done()
	return nil
}

// listen 在指定地址上提供管理接口
func (s *Service) listen(addr *net.TCPAddr, conf *tls.Config) error {
	s.logger.Infof("starting the listener, addr = %s.", addr.String())

	l, err := net.Listen("tcp", addr.String())
	if err != nil {
		return err
	}
	if conf != nil {
		l = tls.NewListener(l, conf)
	}
	s.listeners = append(s.listeners, l)

	go func() {
		if err := s.http.Serve(l); err != nil && err != http.ErrServerClosed {
			s.logger.Warn(err.Error())
		}
	}()
	return nil
}

// Close closes gracefully the service.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}

		// 停止计划任务
		jobs := scheduler.Jobs()
		for _, job := range jobs {
			job.Cancel()
		}

		s.http.Close()
		for _, l := range s.listeners {
			l.Close()
		}
		s.tap.Close()
		if err := s.avdecc.Close(); err != nil {
			s.logger.Warnf("stop avdecc: %v", err)
		}

		// 退出前确保最新数据被存储
		streams.Flush()
		auth.Flush()
	})
}

// OnSignal starts the signal processing and makes su
func (s *Service) hookSignals() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range c {
			s.onSignal(sig)
		}
	}()
}

// OnSignal will be called when a OS-level signal is received.
func (s *Service) onSignal(sig os.Signal) {
	switch sig {
	case syscall.SIGHUP:
		if err := config.RotateLog(); err != nil {
			s.logger.Errorf("rotate log: %v", err)
		}
	case syscall.SIGTERM:
		fallthrough
	case syscall.SIGINT:
		s.logger.Warn(fmt.Sprintf("received signal %s, exiting...", sig.String()))
		s.Close()
		os.Exit(0)
	}
}

// localOnly 只允许本机访问
func localOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !network.IsLocalhostIP(network.RemoteIP(r.RemoteAddr)) {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		h(w, r)
	}
}
