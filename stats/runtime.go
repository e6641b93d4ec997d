// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stats

import (
	"runtime"
	"time"

	"github.com/kelindar/process"
)

// StartingTime 进程启动时间
var StartingTime = time.Now()

// Proc 进程信息，内存以 KB 计
type Proc struct {
	CPU        float64 `json:"cpu"`
	Priv       int64   `json:"priv"`
	Virt       int64   `json:"virt"`
	Goroutines int     `json:"goroutines"`
	Uptime     int64   `json:"uptime"` // 秒
}

// Memory 内存占用，以 KB 计
type Memory struct {
	Inuse int64 `json:"inuse"`
	Sys   int64 `json:"sys"`
}

// GC 垃圾回收信息
type GC struct {
	CPU     float64 `json:"cpu"`
	Sys     int64   `json:"sys"` // KB
	Cycles  uint32  `json:"cycles"`
	PauseNs uint64  `json:"pause_ns"` // 最近一次停顿
}

// Runtime Go 运行时的详细内存信息
type Runtime struct {
	Heap    Memory `json:"heap"`
	Objects uint64 `json:"objects"`
	Stack   Memory `json:"stack"`
	Off     Memory `json:"off"` // mspan + mcache
	GC      GC     `json:"gc"`
	Procs   int    `json:"procs"`
	Total   int64  `json:"total"` // KB，累计分配
}

// MeasureRuntime 采样进程信息
func MeasureRuntime() Proc {
	var cpu float64
	var priv, virt int64
	measureProc(&cpu, &priv, &virt)

	return Proc{
		CPU:        cpu,
		Priv:       priv / 1024,
		Virt:       virt / 1024,
		Goroutines: runtime.NumGoroutine(),
		Uptime:     int64(time.Since(StartingTime) / time.Second),
	}
}

// 非 linux 平台上 process 可能 panic
func measureProc(cpu *float64, priv, virt *int64) {
	defer func() { recover() }()
	process.ProcUsage(cpu, priv, virt)
}

// MeasureFullRuntime 采样 Go 运行时内存信息
func MeasureFullRuntime() *Runtime {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return &Runtime{
		Heap:    Memory{Inuse: kb(m.HeapInuse), Sys: kb(m.HeapSys)},
		Objects: m.HeapObjects,
		Stack:   Memory{Inuse: kb(m.StackInuse), Sys: kb(m.StackSys)},
		Off: Memory{
			Inuse: kb(m.MSpanInuse + m.MCacheInuse),
			Sys:   kb(m.MSpanSys + m.MCacheSys),
		},
		GC: GC{
			CPU:     m.GCCPUFraction,
			Sys:     kb(m.GCSys),
			Cycles:  m.NumGC,
			PauseNs: m.PauseNs[(m.NumGC+255)%256],
		},
		Procs: runtime.NumCPU(),
		Total: kb(m.TotalAlloc),
	}
}

func kb(v uint64) int64 { return int64(v / 1024) }
