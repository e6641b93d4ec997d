// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

import (
	"io"
	"time"
)

// Source talker 端接口模块，向媒体队列补充单元
type Source interface {
	// TxCB 补充媒体单元；源已结束返回 io.EOF
	TxCB(q *Queue) error
	io.Closer
}

// Sink listener 端接口模块，消费媒体队列中到期的单元
type Sink interface {
	RxCB(q *Queue) error
	io.Closer
}

// Discard 丢弃所有到期单元的 Sink
var Discard Sink = discard{}

type discard struct{}

func (discard) RxCB(q *Queue) error {
	now := time.Now()
	for q.PopDue(now) != nil {
	}
	return nil
}

func (discard) Close() error { return nil }
