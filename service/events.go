// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package service

import (
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/cnotch/avbhub/config"
	"github.com/cnotch/avbhub/events"
	"github.com/cnotch/avbhub/network/websocket"
	"github.com/cnotch/avbhub/stats"
)

// onEvents /ws/events?topics=adp,stream&token=
// 将总线事件以 JSON 文本消息推送给 websocket 客户端
func (s *Service) onEvents(w http.ResponseWriter, r *http.Request) {
	username, ok := s.checkToken(w, r)
	if !ok {
		return
	}

	var topics []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, strings.ToLower(t))
		}
	}

	c, ok := websocket.TryUpgrade(w, r, username, config.NetHeartbeatInterval())
	if !ok {
		// Upgrade 失败时已写入错误响应
		return
	}

	sub := s.bus.Subscribe(topics...)
	stats.EventConns.Add()
	s.logger.Infof("event feed opened, user = %q, topics = %v", username, topics)

	go func() {
		<-c.Done()
		sub.Close()
	}()
	go s.feed(c, sub)
}

func (s *Service) feed(c *websocket.Conn, sub *events.Subscription) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorf("event feed routine panic；r = %v \n %s", r, debug.Stack())
		}
		sub.Close()
		c.Close()
		stats.EventConns.Release()
	}()

	for {
		e, ok := sub.Next()
		if !ok {
			return
		}
		if err := c.WriteJSON(&e); err != nil {
			s.logger.Debugf("event feed closed: %v", err)
			return
		}
	}
}
