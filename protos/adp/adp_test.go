// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package adp

import (
	"testing"

	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPDU() *PDU {
	return &PDU{
		MessageType:          EntityAvailable,
		ValidTime:            31,
		EntityID:             avtp.EUI64FromUint64(0x001b21fffe0a0b0c),
		EntityModelID:        avtp.EUI64FromUint64(0x001b21ffff000001),
		EntityCapabilities:   0x0508,
		TalkerStreamSources:  1,
		TalkerCapabilities:   0x4001,
		ListenerStreamSinks:  2,
		ListenerCapabilities: 0x4001,
		AvailableIndex:       0x01020304,
		GptpGrandmasterID:    avtp.EUI64FromUint64(0x0011223344556677),
		GptpDomainNumber:     3,
		InterfaceIndex:       1,
	}
}

func TestPDU_Marshal(t *testing.T) {
	buf := make([]byte, 128)
	for i := range buf {
		buf[i] = 0xee
	}
	n, err := testPDU().Marshal(buf)
	require.NoError(t, err)
	assert.Equal(t, PDULen, n)

	// subtype, sv/version/message_type, valid_time/control_data_length
	assert.Equal(t, []byte{0xfa, 0x00, 0xf8, 0x38}, buf[:4])
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, buf[36:40])
	assert.Equal(t, []byte{0x03, 0x00, 0x00, 0x00}, buf[48:52])
	assert.Equal(t, []byte{0, 0, 0, 0}, buf[64:68])
	assert.Equal(t, byte(0xee), buf[68])
}

func TestPDU_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		pdu  *PDU
	}{
		{"available", testPDU()},
		{"departing", &PDU{MessageType: EntityDeparting, EntityID: avtp.EUI64FromUint64(9)}},
		{"discover", &PDU{MessageType: EntityDiscover}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, PDULen)
			_, err := tt.pdu.Marshal(buf)
			require.NoError(t, err)

			var got PDU
			require.NoError(t, got.Unmarshal(buf))
			assert.Equal(t, *tt.pdu, got)
		})
	}
}

func TestPDU_Errors(t *testing.T) {
	buf := make([]byte, PDULen)
	_, err := testPDU().Marshal(buf[:PDULen-1])
	assert.Equal(t, ErrBufferTooSmall, err)

	_, err = testPDU().Marshal(buf)
	require.NoError(t, err)

	var p PDU
	assert.Equal(t, ErrBufferTooSmall, p.Unmarshal(buf[:20]))

	buf[3] = 0x37
	assert.Equal(t, ErrBadLength, p.Unmarshal(buf))

	buf[0] = byte(avtp.SubtypeAECP)
	assert.Equal(t, ErrNotADP, p.Unmarshal(buf))
}
