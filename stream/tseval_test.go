// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTSEval(t *testing.T) {
	t.Run("Steady", func(t *testing.T) {
		var reports []TSReport
		e := NewTSEval(TSEvalConfig{RateInterval: 1000, ReportInterval: 4}, func(r TSReport) {
			reports = append(reports, r)
		})
		ts := uint32(0xffffff00) // 跨越回绕
		for i := 0; i < 8; i++ {
			assert.Equal(t, ts, e.Eval(ts))
			ts += 1000
		}
		assert.Len(t, reports, 2)
		assert.Equal(t, uint32(4), reports[0].Count)
		assert.Equal(t, uint32(1000), reports[1].Interval)
		assert.Equal(t, uint32(0), reports[1].MaxJitter)
		assert.Equal(t, uint64(0), e.Drift())
	})

	t.Run("Jitter", func(t *testing.T) {
		e := NewTSEval(TSEvalConfig{RateInterval: 1000}, nil)
		e.Eval(0)
		e.Eval(1000)
		e.Eval(2300)
		e.Eval(3000)
		r := e.Report()
		assert.Equal(t, uint32(700), r.Interval)
		assert.Equal(t, uint32(300), r.Jitter)
		assert.Equal(t, uint32(300), r.MaxJitter)
		assert.Equal(t, uint32(200), r.AvgJitter)
		assert.Equal(t, uint64(0), r.Drift)
	})

	t.Run("Smoothing", func(t *testing.T) {
		e := NewTSEval(TSEvalConfig{
			RateInterval: 1000,
			Smoothing:    true,
			MaxJitter:    100,
			MaxDrift:     500,
		}, nil)
		assert.Equal(t, uint32(0), e.Eval(0))
		assert.Equal(t, uint32(1050), e.Eval(1050), "within max jitter")
		assert.Equal(t, uint32(2050), e.Eval(2300), "jitter above max")
		assert.Equal(t, uint32(3300), e.Eval(3000), "based on the previous real timestamp")
		assert.Equal(t, uint32(2), e.Report().Smoothed)
	})

	t.Run("DriftTooLarge", func(t *testing.T) {
		e := NewTSEval(TSEvalConfig{
			RateInterval: 1000,
			Smoothing:    true,
			MaxJitter:    100,
			MaxDrift:     500,
		}, nil)
		e.Eval(0)
		assert.Equal(t, uint32(2000), e.Eval(2000), "drift 1000 exceeds max")
		assert.Equal(t, uint32(0), e.Report().Smoothed)
	})
}
