// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMeasureRuntime(t *testing.T) {
	p := MeasureRuntime()
	assert.True(t, p.Goroutines > 0)
	assert.True(t, p.Uptime >= 0)

	runtime.GC()
	rt := MeasureFullRuntime()
	assert.True(t, rt.Heap.Sys > 0)
	assert.True(t, rt.GC.Cycles > 0)
	assert.Equal(t, runtime.NumCPU(), rt.Procs)
}
