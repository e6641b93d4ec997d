// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"
	"io"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/events"
	"github.com/cnotch/avbhub/media"
	"github.com/cnotch/avbhub/network/rawsock"
	"github.com/cnotch/avbhub/stats"
	"github.com/cnotch/xlog"
)

// talkerIdle 发送端没有到期数据时的最长休眠
const talkerIdle = time.Millisecond

// Event 流事件
type Event struct {
	Name  string `json:"name"`
	Event string `json:"event"`
}

// Runner 一个流的运行例程。
// talker 从 Source 取数据发送，listener 把收到的数据交给 Sink。
type Runner struct {
	stream *Stream
	index  uint16
	mapper *media.AAF
	source media.Source
	sink   media.Sink
	flow   stats.Flow
	events events.Publisher
	logger *xlog.Logger

	running     int32
	terminate   int32
	fastConnect int32
	wg          sync.WaitGroup

	framesTx      uint32
	framesRx      uint32
	seqMismatch   uint32
	mediaLocked   uint32
	mediaUnlocked uint32
	streamReset   uint32
	locked        int32
}

// NewTalker 创建发送例程
func NewTalker(cfg *Config, index uint16, sock rawsock.Socket, mapper *media.AAF, source media.Source, logger *xlog.Logger) (*Runner, error) {
	if source == nil {
		return nil, ErrInvalidConfig
	}
	s, err := OpenTx(cfg, sock, logger)
	if err != nil {
		return nil, err
	}
	return newRunner(s, index, mapper, logger, source, nil), nil
}

// NewListener 创建接收例程，sink 为 nil 时丢弃数据
func NewListener(cfg *Config, index uint16, sock rawsock.Socket, mapper *media.AAF, sink media.Sink, logger *xlog.Logger) (*Runner, error) {
	if sink == nil {
		sink = media.Discard
	}
	s, err := OpenRx(cfg, sock, logger)
	if err != nil {
		return nil, err
	}
	return newRunner(s, index, mapper, logger, nil, sink), nil
}

func newRunner(s *Stream, index uint16, mapper *media.AAF, logger *xlog.Logger, source media.Source, sink media.Sink) *Runner {
	if logger == nil {
		logger = xlog.L()
	}
	return &Runner{
		stream: s,
		index:  index,
		mapper: mapper,
		source: source,
		sink:   sink,
		flow:   stats.NewFlow(),
		events: events.Discard,
		logger: logger.With(xlog.Fields(xlog.F("stream", s.cfg.Name))),
	}
}

// Name 流名称
func (r *Runner) Name() string { return r.stream.cfg.Name }

// Talker 是否为发送端
func (r *Runner) Talker() bool { return r.stream.tx }

// DescriptorType 对应的描述符类型
func (r *Runner) DescriptorType() aem.DescriptorType {
	if r.stream.tx {
		return aem.TypeStreamOutput
	}
	return aem.TypeStreamInput
}

// DescriptorIndex 对应的描述符索引
func (r *Runner) DescriptorIndex() uint16 { return r.index }

// Stream 底层的流
func (r *Runner) Stream() *Stream { return r.stream }

// Mapper 格式映射
func (r *Runner) Mapper() *media.AAF { return r.mapper }

// Flow 流量统计
func (r *Runner) Flow() stats.Flow { return r.flow }

// Start 启动例程
func (r *Runner) Start() {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return
	}
	atomic.StoreInt32(&r.terminate, 0)
	r.wg.Add(1)
	if r.stream.tx {
		go r.talk()
	} else {
		go r.listen()
	}
	r.logger.Infof("stream started, format %s", r.mapper.Format().StreamFormat())
	r.publish("started")
}

// Stop 停止例程并释放资源，停止后不能再启动
func (r *Runner) Stop() {
	atomic.StoreInt32(&r.terminate, 1)
	r.stream.Close()
	r.mapper.Queue().Close()
	r.wg.Wait()
	r.close()
	r.logger.Infof("stream stopped")
	r.publish("stopped")
}

func (r *Runner) close() {
	if r.source != nil {
		r.source.Close()
	}
	if r.sink != nil {
		r.sink.Close()
	}
}

// Pause 暂停或恢复
func (r *Runner) Pause(pause bool) {
	if r.stream.Paused() == pause {
		return
	}
	r.stream.Pause(pause)
	if !pause {
		atomic.AddUint32(&r.streamReset, 1)
	}
	if pause {
		r.publish("paused")
	} else {
		r.publish("resumed")
	}
}

// SetFastConnect 标记 listener 由快速连接建立
func (r *Runner) SetFastConnect(v bool) {
	var n int32
	if v {
		n = 1
	}
	atomic.StoreInt32(&r.fastConnect, n)
}

// State 流的运行时状态
func (r *Runner) State() aem.StreamState {
	cfg := r.stream.cfg
	paused := r.stream.Paused()
	running := atomic.LoadInt32(&r.running) == 1
	connected := running
	if !r.stream.tx {
		connected = atomic.LoadInt32(&r.locked) == 1
	}
	return aem.StreamState{
		Running:        running,
		Paused:         paused,
		Connected:      connected,
		FastConnect:    atomic.LoadInt32(&r.fastConnect) == 1,
		StreamingWait:  !r.stream.tx && paused,
		Format:         r.mapper.Format().StreamFormat(),
		StreamID:       cfg.StreamID,
		DestMAC:        cfg.DestMAC,
		VlanID:         cfg.VlanID,
		FramesRx:       atomic.LoadUint32(&r.framesRx),
		FramesTx:       atomic.LoadUint32(&r.framesTx),
		SeqMismatch:    atomic.LoadUint32(&r.seqMismatch),
		MediaLocked:    atomic.LoadUint32(&r.mediaLocked),
		MediaUnlocked:  atomic.LoadUint32(&r.mediaUnlocked),
		StreamReset:    atomic.LoadUint32(&r.streamReset),
		UnsupportedFmt: r.mapper.Unsupported(),
	}
}

func (r *Runner) talk() {
	defer r.wg.Done()
	defer r.recoverRoutine("talker")
	defer atomic.StoreInt32(&r.running, 0)

	q := r.mapper.Queue()
	eof := false
	for atomic.LoadInt32(&r.terminate) == 0 {
		if !eof {
			if err := r.source.TxCB(q); err == io.EOF {
				eof = true
				r.logger.Infof("source reached the end")
			} else if err != nil {
				r.logger.Errorf("source failed: %v", err)
				return
			}
		}

		sent, err := r.stream.Tx(r.mapper)
		if err != nil {
			if atomic.LoadInt32(&r.terminate) == 0 {
				r.logger.Errorf("send failed: %v", err)
			}
			return
		}
		if sent {
			atomic.AddUint32(&r.framesTx, 1)
			r.flow.AddOut(int64(r.mapper.MaxDataSize()))
			continue
		}

		d, ok := q.TillTail(time.Now())
		if !ok || d > talkerIdle {
			d = talkerIdle
		}
		time.Sleep(d)
	}
}

func (r *Runner) listen() {
	defer r.wg.Done()
	defer r.recoverRoutine("listener")
	defer atomic.StoreInt32(&r.running, 0)

	q := r.mapper.Queue()
	var last time.Time
	for atomic.LoadInt32(&r.terminate) == 0 {
		d, pending := q.TillTail(time.Now())
		complete, err := r.stream.Rx(r.mapper, RxTimeout(d, pending))
		if err != nil {
			if !errors.Is(err, rawsock.ErrClosed) {
				r.logger.Errorf("receive failed: %v", err)
			}
			return
		}

		now := time.Now()
		if complete {
			last = now
			atomic.AddUint32(&r.framesRx, 1)
			r.flow.AddIn(int64(r.mapper.MaxDataSize()))
			if atomic.CompareAndSwapInt32(&r.locked, 0, 1) {
				atomic.AddUint32(&r.mediaLocked, 1)
				r.publish("media_locked")
			}
		} else if now.Sub(last) > MaxRxTimeout && atomic.CompareAndSwapInt32(&r.locked, 1, 0) {
			atomic.AddUint32(&r.mediaUnlocked, 1)
			r.logger.Warnf("no data for %v", MaxRxTimeout)
			r.publish("media_unlocked")
		}
		if lost := r.stream.Lost(); lost > 0 {
			atomic.AddUint32(&r.seqMismatch, lost)
		}

		if r.stream.Paused() {
			q.Reset()
			continue
		}
		if err = r.sink.RxCB(q); err != nil {
			r.logger.Errorf("sink failed: %v", err)
			return
		}
	}
}

func (r *Runner) publish(event string) {
	r.events.Publish(events.TopicStream, Event{Name: r.Name(), Event: event})
}

func (r *Runner) recoverRoutine(name string) {
	if rec := recover(); rec != nil {
		r.logger.Errorf("%s routine panic; r = %v \n %s", name, rec, debug.Stack())
	}
}
