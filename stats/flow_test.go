// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlow(t *testing.T) {
	totalFlow := NewFlow()
	sub1 := NewChildFlow(totalFlow)
	sub2 := NewChildFlow(totalFlow)

	sub1.AddIn(100)
	sample := sub1.GetSample()
	assert.Equal(t, int64(1), sample.InFrames)
	assert.Equal(t, int64(100), sample.InBytes)

	sub2.AddIn(200)
	sub2.AddOut(68)
	sample = totalFlow.GetSample()
	assert.Equal(t, FlowSample{InFrames: 2, InBytes: 300, OutFrames: 1, OutBytes: 68}, sample)

	var sum FlowSample
	sum.Add(sub1.GetSample())
	sum.Add(sub2.GetSample())
	assert.Equal(t, sample, sum)
}

func TestConns(t *testing.T) {
	c := NewConns()
	assert.Equal(t, int64(1), c.Add())
	assert.Equal(t, int64(2), c.Add())
	assert.Equal(t, int64(1), c.Release())
	assert.Equal(t, ConnsSample{Total: 2, Active: 1, Peak: 2}, c.GetSample())
}
