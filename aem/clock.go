// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"net"

	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/utils/bits"
)

const (
	avbInterfaceLen = 98
	clockSourceLen  = 86
	clockDomainLen  = 76
)

// interface_flags
const (
	InterfaceFlagGptpGrandmasterSupported = 0x0001
	InterfaceFlagGptpSupported            = 0x0002
	InterfaceFlagSrpSupported             = 0x0004
)

// AvbInterface AVB_INTERFACE 描述符
type AvbInterface struct {
	Header
	Naming
	MacAddress              [6]byte    `json:"-"`
	InterfaceFlags          uint16     `json:"interface_flags"`
	ClockIdentity           avtp.EUI64 `json:"clock_identity"`
	Priority1               uint8      `json:"priority1"`
	ClockClass              uint8      `json:"clock_class"`
	OffsetScaledLogVariance uint16     `json:"offset_scaled_log_variance"`
	ClockAccuracy           uint8      `json:"clock_accuracy"`
	Priority2               uint8      `json:"priority2"`
	DomainNumber            uint8      `json:"domain_number"`
	LogSyncInterval         int8       `json:"log_sync_interval"`
	LogAnnounceInterval     int8       `json:"log_announce_interval"`
	LogPdelayInterval       int8       `json:"log_pdelay_interval"`
	PortNumber              uint16     `json:"port_number"`
}

// NewAvbInterface 创建 AVB_INTERFACE 描述符
func NewAvbInterface(mac net.HardwareAddr) *AvbInterface {
	d := &AvbInterface{
		Header:         Header{Type: TypeAvbInterface},
		Naming:         Naming{Description: NoString},
		InterfaceFlags: InterfaceFlagGptpSupported | InterfaceFlagSrpSupported,
	}
	copy(d.MacAddress[:], mac)
	return d
}

// MAC 接口地址
func (d *AvbInterface) MAC() net.HardwareAddr {
	return net.HardwareAddr(append([]byte(nil), d.MacAddress[:]...))
}

func encodeAvbInterface(w *bits.Writer, d *AvbInterface) {
	writeNaming(w, &d.Naming)
	w.Write(d.MacAddress[:])
	w.Uint16(d.InterfaceFlags)
	w.Write(d.ClockIdentity[:])
	w.Uint8(d.Priority1)
	w.Uint8(d.ClockClass)
	w.Uint16(d.OffsetScaledLogVariance)
	w.Uint8(d.ClockAccuracy)
	w.Uint8(d.Priority2)
	w.Uint8(d.DomainNumber)
	w.Uint8(uint8(d.LogSyncInterval))
	w.Uint8(uint8(d.LogAnnounceInterval))
	w.Uint8(uint8(d.LogPdelayInterval))
	w.Uint16(d.PortNumber)
}

func decodeAvbInterface(r *bits.Reader, d *AvbInterface) error {
	if err := need(r, avbInterfaceLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	r.Bytes(d.MacAddress[:])
	d.InterfaceFlags = r.Uint16()
	r.Bytes(d.ClockIdentity[:])
	d.Priority1 = r.Uint8()
	d.ClockClass = r.Uint8()
	d.OffsetScaledLogVariance = r.Uint16()
	d.ClockAccuracy = r.Uint8()
	d.Priority2 = r.Uint8()
	d.DomainNumber = r.Uint8()
	d.LogSyncInterval = int8(r.Uint8())
	d.LogAnnounceInterval = int8(r.Uint8())
	d.LogPdelayInterval = int8(r.Uint8())
	d.PortNumber = r.Uint16()
	return nil
}

// 接口描述符反映当前的 gPTP grandmaster
func updateAvbInterface(d *AvbInterface, live Live) error {
	gm, domain, err := live.Grandmaster()
	if err == ErrNotAvailable {
		return nil
	}
	if err != nil {
		return err
	}
	d.ClockIdentity = gm
	d.DomainNumber = domain
	return nil
}

// clock_source_type
const (
	ClockSourceInternal    = 0x0000
	ClockSourceExternal    = 0x0001
	ClockSourceInputStream = 0x0002
)

// ClockSource CLOCK_SOURCE 描述符
type ClockSource struct {
	Header
	Naming
	ClockSourceFlags      uint16         `json:"clock_source_flags"`
	ClockSourceType       uint16         `json:"clock_source_type"`
	ClockSourceIdentifier avtp.EUI64     `json:"clock_source_identifier"`
	LocationType          DescriptorType `json:"clock_source_location_type"`
	LocationIndex         uint16         `json:"clock_source_location_index"`
}

// NewClockSource 创建 CLOCK_SOURCE 描述符
func NewClockSource() *ClockSource {
	return &ClockSource{
		Header: Header{Type: TypeClockSource},
		Naming: Naming{Description: NoString},
	}
}

func encodeClockSource(w *bits.Writer, d *ClockSource) {
	writeNaming(w, &d.Naming)
	w.Uint16(d.ClockSourceFlags)
	w.Uint16(d.ClockSourceType)
	w.Write(d.ClockSourceIdentifier[:])
	w.Uint16(uint16(d.LocationType))
	w.Uint16(d.LocationIndex)
}

func decodeClockSource(r *bits.Reader, d *ClockSource) error {
	if err := need(r, clockSourceLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	d.ClockSourceFlags = r.Uint16()
	d.ClockSourceType = r.Uint16()
	r.Bytes(d.ClockSourceIdentifier[:])
	d.LocationType = DescriptorType(r.Uint16())
	d.LocationIndex = r.Uint16()
	return nil
}

// ClockDomain CLOCK_DOMAIN 描述符
type ClockDomain struct {
	Header
	Naming
	ClockSourceIndex uint16   `json:"clock_source_index"`
	ClockSources     []uint16 `json:"clock_sources"`
}

// NewClockDomain 创建 CLOCK_DOMAIN 描述符
func NewClockDomain() *ClockDomain {
	return &ClockDomain{
		Header: Header{Type: TypeClockDomain},
		Naming: Naming{Description: NoString},
	}
}

// HasSource index 是否为该域的时钟源
func (d *ClockDomain) HasSource(index uint16) bool {
	for _, s := range d.ClockSources {
		if s == index {
			return true
		}
	}
	return false
}

func encodeClockDomain(w *bits.Writer, d *ClockDomain) {
	writeNaming(w, &d.Naming)
	w.Uint16(d.ClockSourceIndex)
	w.Uint16(clockDomainLen)
	w.Uint16(uint16(len(d.ClockSources)))
	for _, s := range d.ClockSources {
		w.Uint16(s)
	}
}

func decodeClockDomain(r *bits.Reader, d *ClockDomain) error {
	if err := need(r, clockDomainLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	d.ClockSourceIndex = r.Uint16()
	r.Uint16() // clock_sources_offset
	n := int(r.Uint16())
	if err := need(r, clockDomainLen, n, 2); err != nil {
		return err
	}
	d.ClockSources = nil
	if n > 0 {
		d.ClockSources = make([]uint16, n)
	}
	for i := range d.ClockSources {
		d.ClockSources[i] = r.Uint16()
	}
	return nil
}
