// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package websocket 管理接口的事件推送连接。
package websocket

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Subprotocol 事件推送子协议
const Subprotocol = "events"

const (
	writeWait        = 10 * time.Second // Time allowed to write a message to the peer.
	defaultHeartbeat = 30 * time.Second
	maxMessageSize   = 4 * 1024 // 客户端只发送控制帧
)

// The default upgrader to use
var upgrader = &websocket.Upgrader{
	Subprotocols: []string{Subprotocol},
	CheckOrigin:  func(r *http.Request) bool { return true },
}

// Conn 只推送 JSON 文本消息的 websocket 连接
type Conn struct {
	mu        sync.Mutex // 串行化写
	socket    *websocket.Conn
	username  string
	heartbeat time.Duration // ping 间隔，两个间隔内收不到 pong 则断开
	closing   chan struct{}
	once      sync.Once
}

// TryUpgrade 尝试将 HTTP 请求升级为事件推送连接，heartbeat 非正时使用默认值
func TryUpgrade(w http.ResponseWriter, r *http.Request, username string, heartbeat time.Duration) (*Conn, bool) {
	if w == nil || r == nil {
		return nil, false
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, false
	}
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return newConn(ws, username, heartbeat), true
}

func newConn(ws *websocket.Conn, username string, heartbeat time.Duration) *Conn {
	c := &Conn{
		socket:    ws,
		username:  username,
		heartbeat: heartbeat,
		closing:   make(chan struct{}),
	}

	pongWait := 2 * heartbeat
	ws.SetReadLimit(maxMessageSize)
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readLoop()
	go c.pingLoop()
	return c
}

// readLoop 丢弃客户端消息，处理 pong/close，出错时关闭连接
func (c *Conn) readLoop() {
	defer c.Close()
	for {
		if _, _, err := c.socket.NextReader(); err != nil {
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(c.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-c.closing:
			return
		case <-ticker.C:
			if err := c.socket.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		}
	}
}

// WriteJSON 以文本消息发送 v 的 JSON 编码
func (c *Conn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.socket.SetWriteDeadline(time.Now().Add(writeWait))
	return c.socket.WriteJSON(v)
}

// Done 连接关闭后返回的通道
func (c *Conn) Done() <-chan struct{} {
	return c.closing
}

// Username 接入时 http 验证后的用户名称
func (c *Conn) Username() string {
	return c.username
}

// Close 发送关闭帧并关闭连接，可重复调用
func (c *Conn) Close() (err error) {
	c.once.Do(func() {
		close(c.closing)
		c.mu.Lock()
		c.socket.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		err = c.socket.Close()
	})
	return
}
