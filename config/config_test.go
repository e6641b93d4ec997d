// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/cnotch/avbhub/avdecc"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/xlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testProvider struct {
	name string
	err  error
	cfg  map[string]interface{}
}

func (p *testProvider) Name() string { return p.name }

func (p *testProvider) Configure(config map[string]interface{}) error {
	p.cfg = config
	return p.err
}

func TestAvdeccNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   AvdeccConfig
		want AvdeccConfig
	}{
		{"valid", AvdeccConfig{ValidTime: 10, VlanID: 2, VlanPCP: 3}, AvdeccConfig{ValidTime: 10, VlanID: 2, VlanPCP: 3}},
		{"odd", AvdeccConfig{ValidTime: 7, VlanID: 2, VlanPCP: 3}, AvdeccConfig{ValidTime: 6, VlanID: 2, VlanPCP: 3}},
		{"small", AvdeccConfig{ValidTime: 0, VlanID: 2, VlanPCP: 3}, AvdeccConfig{ValidTime: 2, VlanID: 2, VlanPCP: 3}},
		{"large", AvdeccConfig{ValidTime: 100, VlanID: 5000, VlanPCP: 9}, AvdeccConfig{ValidTime: 62, VlanID: 0, VlanPCP: avdecc.DefaultVlanPCP}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := tt.in
			c.normalize(xlog.L())
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestAvdeccBuild(t *testing.T) {
	c := AvdeccConfig{
		IfName:        "eth1",
		VlanID:        2,
		VlanPCP:       3,
		ValidTime:     10,
		EntityID:      "00:1b:21:ff:fe:00:00:01",
		EntityModelID: "0x001b210000000002",
		EntityName:    "mixer",
		Grandmaster:   "001b21fffe000003",
	}
	cfg, err := c.Build()
	require.NoError(t, err)
	assert.Equal(t, "eth1", cfg.IfName)
	assert.Equal(t, uint16(2), cfg.VlanID)
	assert.Equal(t, uint8(3), cfg.VlanPCP)
	assert.Equal(t, "mixer", cfg.EntityName)
	assert.Equal(t, avtp.EUI64{0x00, 0x1b, 0x21, 0xff, 0xfe, 0, 0, 1}, cfg.EntityID)
	assert.Equal(t, avtp.EUI64{0x00, 0x1b, 0x21, 0, 0, 0, 0, 2}, cfg.EntityModelID)
	assert.Equal(t, avtp.EUI64{0x00, 0x1b, 0x21, 0xff, 0xfe, 0, 0, 3}, cfg.Grandmaster)

	c.EntityID = "bad"
	_, err = c.Build()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "entity_id")
}

func TestRTPBuild(t *testing.T) {
	c := RTPConfig{Dest: "239.1.1.1:5004", PayloadType: 97}
	assert.Equal(t, avdecc.RTPConfig{Dest: "239.1.1.1:5004", PayloadType: 97}, c.Build())

	c.PayloadType = 8
	assert.Equal(t, uint8(0), c.Build().PayloadType)
}

func TestProviderLoad(t *testing.T) {
	json := &testProvider{name: "json"}
	memory := &testProvider{name: "memory"}

	p := LoadProvider(nil, json, memory)
	assert.Equal(t, json, p)

	pc := &ProviderConfig{Provider: " Memory ", Config: map[string]interface{}{"file": "a.json"}}
	p, err := pc.Load(json, memory)
	require.NoError(t, err)
	assert.Equal(t, memory, p)
	assert.Equal(t, "a.json", memory.cfg["file"])

	_, err = (&ProviderConfig{Provider: "redis"}).Load(json, memory)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "json|memory")

	memory.err = errors.New("broken")
	_, err = pc.Load(json, memory)
	assert.True(t, errors.Is(err, memory.err))
	assert.Panics(t, func() { pc.LoadOrPanic(json, memory) })
}

func TestNewLogger(t *testing.T) {
	dir := t.TempDir()
	c := LogConfig{
		Level:    xlog.DebugLevel,
		ToFile:   true,
		Filename: "avbhub.log",
		MaxSize:  1,
	}
	l := c.newLogger(dir)
	require.NotNil(t, l)
	l.Info("hello")
	assert.FileExists(t, filepath.Join(dir, "avbhub.log"))
	assert.NoError(t, c.rotate())

	c.ToFile = false
	assert.NotNil(t, c.newLogger(dir))
	assert.NoError(t, c.rotate(), "no file")
}

func TestNetNormalize(t *testing.T) {
	c := NetConfig{Timeout: 0, Heartbeat: -1, BufferSize: 8192, FlushRate: 0}
	c.normalize()
	assert.Equal(t, NetConfig{Timeout: 45, Heartbeat: 30, BufferSize: 8192, FlushRate: 30}, c)
	assert.Equal(t, 45*time.Second, c.timeout())
}

func TestDefaults(t *testing.T) {
	require.Nil(t, globalC)
	assert.Equal(t, ":1722", Addr())
	assert.False(t, Auth())
	assert.Equal(t, 30*time.Second, NetHeartbeatInterval())
	cfg, err := Avdecc()
	require.NoError(t, err)
	assert.Equal(t, "eth0", cfg.IfName)
}
