// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"fmt"
)

// TSEvalConfig 时间戳评估参数，时间单位都是纳秒
type TSEvalConfig struct {
	RateInterval   uint32 `json:"rate_interval" yaml:"rate_interval"`     // 期望的时间戳间隔
	ReportInterval uint32 `json:"report_interval" yaml:"report_interval"` // 每多少个时间戳报告一次，0 不报告
	Smoothing      bool   `json:"smoothing" yaml:"smoothing"`
	MaxJitter      uint32 `json:"max_jitter" yaml:"max_jitter"`
	MaxDrift       uint32 `json:"max_drift" yaml:"max_drift"`
}

// TSReport 时间戳评估报告
type TSReport struct {
	Count     uint32 `json:"count"`
	Interval  uint32 `json:"interval"`
	Jitter    uint32 `json:"jitter"`
	MaxJitter uint32 `json:"max_jitter"`
	AvgJitter uint32 `json:"avg_jitter"`
	Drift     uint64 `json:"drift"`
	Smoothed  uint32 `json:"smoothed"`
}

func (r TSReport) String() string {
	return fmt.Sprintf("count=%d interval=%d jitter=%d max_jitter=%d avg_jitter=%d drift=%d smoothed=%d",
		r.Count, r.Interval, r.Jitter, r.MaxJitter, r.AvgJitter, r.Drift, r.Smoothed)
}

// TSEval 评估时间戳间隔的抖动和累计漂移。
// 开启平滑时，抖动超限但漂移未超限的时间戳被改写为上一个时间戳加期望间隔。
type TSEval struct {
	cfg    TSEvalConfig
	report func(TSReport)

	started     bool
	prev        uint32
	count       uint32
	interval    uint32
	jitter      uint32
	maxJitter   uint32
	accumJitter uint64
	ttlCalc     uint64
	ttlReal     uint64
	smoothed    uint32
}

// NewTSEval 创建评估器，report 可以为 nil
func NewTSEval(cfg TSEvalConfig, report func(TSReport)) *TSEval {
	return &TSEval{cfg: cfg, report: report}
}

// Eval 评估一个时间戳，返回应使用的时间戳
func (e *TSEval) Eval(ts uint32) uint32 {
	if !e.started {
		e.started = true
		e.prev = ts
		e.count = 1
		return ts
	}

	prev := e.prev
	// 32 位时间戳回绕时无符号减法仍得到正确间隔
	e.interval = ts - prev
	e.prev = ts
	e.count++

	e.ttlCalc += uint64(e.cfg.RateInterval)
	e.ttlReal += uint64(e.interval)
	e.jitter = absDiff32(e.cfg.RateInterval, e.interval)
	if e.jitter > e.maxJitter {
		e.maxJitter = e.jitter
	}
	e.accumJitter += uint64(e.jitter)

	out := ts
	if e.cfg.Smoothing && e.jitter > e.cfg.MaxJitter && e.Drift() <= uint64(e.cfg.MaxDrift) {
		out = prev + e.cfg.RateInterval
		e.smoothed++
	}

	if e.cfg.ReportInterval > 0 && e.count%e.cfg.ReportInterval == 0 && e.report != nil {
		e.report(e.Report())
	}
	return out
}

// Drift 期望累计时长与实际累计时长之差
func (e *TSEval) Drift() uint64 {
	if e.ttlCalc > e.ttlReal {
		return e.ttlCalc - e.ttlReal
	}
	return e.ttlReal - e.ttlCalc
}

// Report 当前统计
func (e *TSEval) Report() TSReport {
	r := TSReport{
		Count:     e.count,
		Interval:  e.interval,
		Jitter:    e.jitter,
		MaxJitter: e.maxJitter,
		Drift:     e.Drift(),
		Smoothed:  e.smoothed,
	}
	if e.count > 1 {
		r.AvgJitter = uint32(e.accumJitter / uint64(e.count-1))
	}
	return r
}

func absDiff32(a, b uint32) uint32 {
	if a > b {
		return a - b
	}
	return b - a
}
