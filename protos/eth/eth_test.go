// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package eth

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeader_EncodeParse(t *testing.T) {
	dst, _ := net.ParseMAC("91:e0:f0:01:00:00")
	src, _ := net.ParseMAC("00:1b:21:aa:bb:cc")
	tests := []struct {
		name string
		h    Header
		n    int
	}{
		{"plain", Header{Dst: dst, Src: src, EtherType: 0x22f0}, HeaderLen},
		{"vlan", Header{Dst: dst, Src: src, VLAN: true, VID: 2, PCP: 3, EtherType: 0x22f0}, VlanHeaderLen},
		{"vlan max", Header{Dst: dst, Src: src, VLAN: true, VID: 0x0fff, PCP: 7, EtherType: 0x22f0}, VlanHeaderLen},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 64)
			n, err := tt.h.Encode(buf)
			require.NoError(t, err)
			assert.Equal(t, tt.n, n)

			got, off, err := Parse(buf[:n])
			require.NoError(t, err)
			assert.Equal(t, tt.n, off)
			assert.Equal(t, tt.h, got)
		})
	}
}

func TestHeader_Errors(t *testing.T) {
	h := Header{VLAN: true, EtherType: 0x22f0}
	_, err := h.Encode(make([]byte, 14))
	assert.Equal(t, ErrFrameTooShort, err)
	_, err = h.Encode(make([]byte, 18))
	assert.Equal(t, ErrBadAddress, err)

	_, _, err = Parse(make([]byte, 10))
	assert.Equal(t, ErrFrameTooShort, err)

	short := make([]byte, 16)
	short[12], short[13] = 0x81, 0x00
	_, _, err = Parse(short)
	assert.Equal(t, ErrFrameTooShort, err)
}
