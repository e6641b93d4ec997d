// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"encoding/json"
	"testing"

	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/stretchr/testify/assert"
)

func TestStreamFormat_AAF(t *testing.T) {
	a := AAFFormat{
		Nsr:              avtp.Nsr48KHz,
		Format:           avtp.AAFFormatInt32,
		BitDepth:         24,
		ChannelsPerFrame: 8,
		SamplesPerFrame:  6,
	}
	f := a.StreamFormat()
	assert.Equal(t, StreamFormat{0x02, 0x05, 0x02, 0x18, 0x02, 0x00, 0x60, 0x00}, f)
	assert.Equal(t, KindAAF, f.Kind())

	got, ok := f.AAF()
	assert.True(t, ok)
	assert.Equal(t, a, got)

	_, ok = f.IEC61883()
	assert.False(t, ok)
}

func TestStreamFormat_IEC61883(t *testing.T) {
	tests := []struct {
		name string
		x    IEC61883Format
		kind FormatKind
	}{
		{"61883-6 am824", IEC61883Format{Fmt: Fmt61883_6, FdfEvt: FdfEvtAM824, FdfSfc: 2,
			DBS: 8, B: true, LabelMBLA: 8}, KindIEC61883_6},
		{"61883-6 float", IEC61883Format{Fmt: Fmt61883_6, FdfEvt: FdfEvtFloat, FdfSfc: 2,
			DBS: 2, NB: true}, KindIEC61883_6},
		{"61883-4", IEC61883Format{Fmt: Fmt61883_4}, KindIEC61883_4},
		{"61883-8", IEC61883Format{Fmt: Fmt61883_8, VideoMode: 1, CompressMode: 2, ColorSpace: 3}, KindIEC61883_8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := tt.x.StreamFormat()
			assert.Equal(t, tt.kind, f.Kind())
			got, ok := f.IEC61883()
			assert.True(t, ok)
			assert.Equal(t, tt.x, got)
		})
	}
}

func TestStreamFormat_Others(t *testing.T) {
	iidc := IIDCFormat{Format: 1, Mode: 2, Rate: 3}
	f := iidc.StreamFormat()
	assert.Equal(t, KindIIDC, f.Kind())
	gotIIDC, ok := f.IIDC()
	assert.True(t, ok)
	assert.Equal(t, iidc, gotIIDC)

	cvf := CVFFormat{Format: 2}
	gotCVF, ok := cvf.StreamFormat().CVF()
	assert.True(t, ok)
	assert.Equal(t, cvf, gotCVF)

	ctl := ControlFormat{ProtocolType: 3, FormatID: [6]byte{1, 2, 3, 4, 5, 6}}
	gotCtl, ok := ctl.StreamFormat().Control()
	assert.True(t, ok)
	assert.Equal(t, ctl, gotCtl)

	vendor := VendorFormat{FormatID: [6]byte{0xa, 0xb, 0xc, 0xd, 0xe, 0xf}}
	gotVendor, ok := vendor.StreamFormat().Vendor()
	assert.True(t, ok)
	assert.Equal(t, vendor, gotVendor)

	assert.Equal(t, KindVendorSpecific, StreamFormat{0x80}.Kind())
	assert.Equal(t, KindExperimental, StreamFormat{0x7f}.Kind())
	assert.Equal(t, KindUnknown, StreamFormat{0x00, 0x3f}.Kind())
}

func TestStreamFormat_Text(t *testing.T) {
	f := StreamFormat{0x02, 0x05, 0x02, 0x18, 0x02, 0x00, 0x60, 0x00}
	data, err := json.Marshal(f)
	assert.NoError(t, err)
	assert.Equal(t, `"0205021802006000"`, string(data))

	var got StreamFormat
	assert.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, f, got)

	assert.Error(t, got.UnmarshalText([]byte("0205")))
	assert.Error(t, got.UnmarshalText([]byte("zz05021802006000")))
}

func TestSamplingRate(t *testing.T) {
	s := NewSamplingRate(1, 48000)
	assert.Equal(t, uint8(1), s.Pull())
	assert.Equal(t, uint32(48000), s.Base())
	assert.InDelta(t, 47952.05, s.Hz(), 0.01)
	assert.Equal(t, float64(44100), NewSamplingRate(0, 44100).Hz())
}
