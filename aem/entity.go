// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/utils/bits"
)

const (
	entityLen        = 312
	configurationLen = 74
)

// entity_capabilities
const (
	EntityCapEfuMode               = 0x00000001
	EntityCapAddressAccessSupport  = 0x00000002
	EntityCapGatewayEntity         = 0x00000004
	EntityCapAemSupported          = 0x00000008
	EntityCapLegacyAvc             = 0x00000010
	EntityCapAssociationIDSupport  = 0x00000020
	EntityCapAssociationIDValid    = 0x00000040
	EntityCapVendorUnique          = 0x00000080
	EntityCapClassASupported       = 0x00000100
	EntityCapClassBSupported       = 0x00000200
	EntityCapGptpSupported         = 0x00000400
	EntityCapAemAuthentication     = 0x00000800
	EntityCapAemPersistentAcquire  = 0x00001000
	EntityCapAemIdentifyControlIdx = 0x00008000
	EntityCapAemInterfaceIdxValid  = 0x00010000
)

// talker/listener capabilities
const (
	TalkerCapImplemented   = 0x0001
	TalkerCapAudioSource   = 0x4000
	ListenerCapImplemented = 0x0001
	ListenerCapAudioSink   = 0x4000
)

// Entity ENTITY 描述符
type Entity struct {
	Header
	EntityID               avtp.EUI64 `json:"entity_id"`
	EntityModelID          avtp.EUI64 `json:"entity_model_id"`
	EntityCapabilities     uint32     `json:"entity_capabilities"`
	TalkerStreamSources    uint16     `json:"talker_stream_sources"`
	TalkerCapabilities     uint16     `json:"talker_capabilities"`
	ListenerStreamSinks    uint16     `json:"listener_stream_sinks"`
	ListenerCapabilities   uint16     `json:"listener_capabilities"`
	ControllerCapabilities uint32     `json:"controller_capabilities"`
	AvailableIndex         uint32     `json:"available_index"`
	AssociationID          avtp.EUI64 `json:"association_id"`
	EntityName             String64   `json:"entity_name"`
	VendorNameString       StringRef  `json:"vendor_name_string"`
	ModelNameString        StringRef  `json:"model_name_string"`
	FirmwareVersion        String64   `json:"firmware_version"`
	GroupName              String64   `json:"group_name"`
	SerialNumber           String64   `json:"serial_number"`
	ConfigurationsCount    uint16     `json:"configurations_count"`
	CurrentConfiguration   uint16     `json:"current_configuration"`
}

// NewEntity 创建 ENTITY 描述符
func NewEntity() *Entity {
	return &Entity{
		Header:             Header{Type: TypeEntity},
		EntityCapabilities: EntityCapAemSupported | EntityCapClassASupported | EntityCapGptpSupported,
		VendorNameString:   NoString,
		ModelNameString:    NoString,
	}
}

// ObjectName entity_name
func (d *Entity) ObjectName() string { return d.EntityName.String() }

// SetObjectName 设置 entity_name
func (d *Entity) SetObjectName(name string) { d.EntityName = NewString64(name) }

func encodeEntity(w *bits.Writer, d *Entity) {
	w.Write(d.EntityID[:])
	w.Write(d.EntityModelID[:])
	w.Uint32(d.EntityCapabilities)
	w.Uint16(d.TalkerStreamSources)
	w.Uint16(d.TalkerCapabilities)
	w.Uint16(d.ListenerStreamSinks)
	w.Uint16(d.ListenerCapabilities)
	w.Uint32(d.ControllerCapabilities)
	w.Uint32(d.AvailableIndex)
	w.Write(d.AssociationID[:])
	w.Write(d.EntityName[:])
	w.Uint16(uint16(d.VendorNameString))
	w.Uint16(uint16(d.ModelNameString))
	w.Write(d.FirmwareVersion[:])
	w.Write(d.GroupName[:])
	w.Write(d.SerialNumber[:])
	w.Uint16(d.ConfigurationsCount)
	w.Uint16(d.CurrentConfiguration)
}

func decodeEntity(r *bits.Reader, d *Entity) error {
	if err := need(r, entityLen, 0, 0); err != nil {
		return err
	}
	r.Bytes(d.EntityID[:])
	r.Bytes(d.EntityModelID[:])
	d.EntityCapabilities = r.Uint32()
	d.TalkerStreamSources = r.Uint16()
	d.TalkerCapabilities = r.Uint16()
	d.ListenerStreamSinks = r.Uint16()
	d.ListenerCapabilities = r.Uint16()
	d.ControllerCapabilities = r.Uint32()
	d.AvailableIndex = r.Uint32()
	r.Bytes(d.AssociationID[:])
	r.Bytes(d.EntityName[:])
	d.VendorNameString = StringRef(r.Uint16())
	d.ModelNameString = StringRef(r.Uint16())
	r.Bytes(d.FirmwareVersion[:])
	r.Bytes(d.GroupName[:])
	r.Bytes(d.SerialNumber[:])
	d.ConfigurationsCount = r.Uint16()
	d.CurrentConfiguration = r.Uint16()
	return nil
}

// DescriptorCount 配置中某类描述符的数量
type DescriptorCount struct {
	Type  DescriptorType `json:"descriptor_type"`
	Count uint16         `json:"count"`
}

// Configuration CONFIGURATION 描述符
type Configuration struct {
	Header
	Naming
	DescriptorCounts []DescriptorCount `json:"descriptor_counts"`
}

// NewConfiguration 创建 CONFIGURATION 描述符
func NewConfiguration(name string) *Configuration {
	return &Configuration{
		Header: Header{Type: TypeConfiguration},
		Naming: Naming{Name: NewString64(name), Description: NoString},
	}
}

// Count 返回配置中 t 类描述符的数量
func (d *Configuration) Count(t DescriptorType) uint16 {
	for _, c := range d.DescriptorCounts {
		if c.Type == t {
			return c.Count
		}
	}
	return 0
}

// increment 按首次出现的顺序维护计数表
func (d *Configuration) increment(t DescriptorType) {
	for i := range d.DescriptorCounts {
		if d.DescriptorCounts[i].Type == t {
			d.DescriptorCounts[i].Count++
			return
		}
	}
	d.DescriptorCounts = append(d.DescriptorCounts, DescriptorCount{Type: t, Count: 1})
}

func encodeConfiguration(w *bits.Writer, d *Configuration) {
	writeNaming(w, &d.Naming)
	w.Uint16(uint16(len(d.DescriptorCounts)))
	w.Uint16(configurationLen)
	for _, c := range d.DescriptorCounts {
		w.Uint16(uint16(c.Type))
		w.Uint16(c.Count)
	}
}

func decodeConfiguration(r *bits.Reader, d *Configuration) error {
	if err := need(r, configurationLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	n := int(r.Uint16())
	r.Uint16() // descriptor_counts_offset
	if err := need(r, configurationLen, n, 4); err != nil {
		return err
	}
	d.DescriptorCounts = nil
	if n > 0 {
		d.DescriptorCounts = make([]DescriptorCount, n)
	}
	for i := range d.DescriptorCounts {
		d.DescriptorCounts[i].Type = DescriptorType(r.Uint16())
		d.DescriptorCounts[i].Count = r.Uint16()
	}
	return nil
}
