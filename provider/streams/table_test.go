// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package streams

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_table(t *testing.T) {
	require.NoError(t, Reset(Memory))

	t.Run("table", func(t *testing.T) {
		require.NoError(t, Save(&Stream{Name: "mic", Direction: "talker", DestMAC: "91:e0:f0:00:fe:01"}))
		assert.Len(t, All(), 1)
		s := Get("mic")
		require.NotNil(t, s)
		assert.Equal(t, 48000, s.SampleRate)
		assert.Equal(t, uint8(24), s.BitDepth)

		require.NoError(t, Save(&Stream{Name: "spk", Direction: "Listener", DestMAC: "91:e0:f0:00:fe:02"}))
		assert.Equal(t, 2, len(All()))
		Del("mic")
		Save(&Stream{Name: "mic", Direction: "talker", DestMAC: "91:e0:f0:00:fe:01"})
		Save(&Stream{Name: "mic", Direction: "talker", DestMAC: "91:e0:f0:00:fe:01", Channels: 8})
		Del("mic")
		Save(&Stream{Name: "mic", Direction: "talker", DestMAC: "91:e0:f0:00:fe:01"})
		saves, removes := table.Changes()
		assert.Equal(t, 2, saves)
		assert.Equal(t, 0, removes)
		Flush()
		saves, _ = table.Changes()
		assert.Equal(t, 0, saves)
		assert.Equal(t, "mic", All()[0].Name)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name string
			s    Stream
		}{
			{"no name", Stream{Direction: "talker", DestMAC: "91:e0:f0:00:fe:01"}},
			{"direction", Stream{Name: "a", Direction: "both", DestMAC: "91:e0:f0:00:fe:01"}},
			{"dest", Stream{Name: "a", Direction: "talker", DestMAC: "nowhere"}},
			{"rate", Stream{Name: "a", Direction: "talker", DestMAC: "91:e0:f0:00:fe:01", SampleRate: 12345}},
			{"bit depth", Stream{Name: "a", Direction: "talker", DestMAC: "91:e0:f0:00:fe:01", BitDepth: 12}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				s := tt.s
				assert.Error(t, Save(&s))
			})
		}
	})
}

func TestStreamFormats(t *testing.T) {
	s := &Stream{
		Name:            "mic",
		Direction:       Talker,
		UniqueID:        3,
		DestMAC:         "91:e0:f0:00:fe:01",
		SampleRate:      48000,
		SampleRates:     []int{48000, 96000},
		Channels:        2,
		BitDepth:        16,
		SamplesPerFrame: 6,
		Source:          "wav:/tmp/tone.wav",
	}
	require.NoError(t, s.init())

	f := s.Format()
	assert.Equal(t, avtp.Nsr48KHz, f.Nsr)
	assert.Equal(t, avtp.AAFFormatInt16, f.Format)

	formats := s.Formats()
	require.Len(t, formats, 2)
	af, ok := formats[1].AAF()
	require.True(t, ok)
	assert.Equal(t, avtp.Nsr96KHz, af.Nsr)

	mac := net.HardwareAddr{0x02, 0, 0, 0, 0, 0x10}
	cfg := s.Config(mac, 2, 3)
	assert.Equal(t, avtp.StreamIDFrom(mac, 3), cfg.StreamID)
	assert.Equal(t, uint16(2), cfg.VlanID)
	assert.Equal(t, uint8(3), cfg.VlanPCP)

	kind, addr := Endpoint(s.Source)
	assert.Equal(t, "wav", kind)
	assert.Equal(t, "/tmp/tone.wav", addr)
	kind, addr = Endpoint("")
	assert.Equal(t, "", kind)
	assert.Equal(t, "", addr)
}

const yamlTable = `
- name: mic
  direction: talker
  unique_id: 1
  dest_mac: "91:e0:f0:00:fe:01"
  bit_depth: 16
  source: "wav:tone.wav"
  tseval:
    rate_interval: 125000
    smoothing: true
- name: broken
  direction: talker
`

func TestProviders(t *testing.T) {
	dir := t.TempDir()

	t.Run("yaml", func(t *testing.T) {
		path := filepath.Join(dir, "streams.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yamlTable), 0644))
		require.NoError(t, YAML.Configure(map[string]interface{}{"file": path}))
		require.NoError(t, Reset(YAML))

		all := All()
		require.Len(t, all, 1, "broken entry is skipped")
		assert.Equal(t, uint16(1), all[0].UniqueID)
		require.NotNil(t, all[0].TSEval)
		assert.Equal(t, uint32(125000), all[0].TSEval.RateInterval)
		assert.Equal(t, all[0].Format().StreamFormat(), all[0].Formats()[0])

		require.NoError(t, Save(&Stream{Name: "spk", Direction: Listener, DestMAC: "91:e0:f0:00:fe:02"}))
		require.NoError(t, Flush())
		require.NoError(t, Reset(YAML))
		assert.Len(t, All(), 2)
	})

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "streams.json")
		require.NoError(t, JSON.Configure(map[string]interface{}{"file": path}))
		require.NoError(t, Reset(JSON))
		assert.Empty(t, All(), "missing file")

		require.NoError(t, Save(&Stream{Name: "mic", Direction: Talker, DestMAC: "91:e0:f0:00:fe:01"}))
		require.NoError(t, Flush())
		require.NoError(t, Reset(JSON))
		require.Len(t, All(), 1)
		assert.Equal(t, "91:e0:f0:00:fe:01", All()[0].Dest().String())

		assert.Error(t, JSON.Configure(map[string]interface{}{"file": 1}))
	})
}
