// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package avdecc

import (
	"fmt"
	"net"

	"github.com/cnotch/avbhub/aem"
	"github.com/cnotch/avbhub/protos/avtp"
	"github.com/cnotch/avbhub/provider/streams"
)

// defaultRate 没有流时音频单元的采样率
const defaultRate = 48000

// buildModel 由实体配置和流表构造实体模型。
// talker 对应 STREAM_OUTPUT，listener 对应 STREAM_INPUT，返回流名到描述符索引的映射。
func buildModel(c *Config, mac net.HardwareAddr, list []*streams.Stream) (*aem.Model, map[string]uint16, error) {
	ls := aem.NewLocaleStrings()
	refs, err := ls.Add(c.LocaleIdentifier, c.VendorName, c.ModelName)
	if err != nil {
		return nil, nil, err
	}

	entity := aem.NewEntity()
	entity.EntityID = c.EntityID
	if entity.EntityID.IsZero() {
		entity.EntityID = avtp.EntityIDFromMAC(mac, 0)
	}
	entity.EntityModelID = c.EntityModelID
	entity.EntityName = aem.NewString64(c.EntityName)
	entity.FirmwareVersion = aem.NewString64(c.FirmwareVersion)
	entity.GroupName = aem.NewString64(c.GroupName)
	entity.SerialNumber = aem.NewString64(c.SerialNumber)
	entity.VendorNameString = refs[0]
	entity.ModelNameString = refs[1]
	entity.EntityCapabilities |= aem.EntityCapAemInterfaceIdxValid

	var talkers, listeners []*streams.Stream
	for _, s := range list {
		if s.Talker() {
			talkers = append(talkers, s)
		} else {
			listeners = append(listeners, s)
		}
	}
	if len(talkers) > 0 {
		entity.TalkerStreamSources = uint16(len(talkers))
		entity.TalkerCapabilities = aem.TalkerCapImplemented | aem.TalkerCapAudioSource
	}
	if len(listeners) > 0 {
		entity.ListenerStreamSinks = uint16(len(listeners))
		entity.ListenerCapabilities = aem.ListenerCapImplemented | aem.ListenerCapAudioSink
	}

	model, err := aem.New(entity)
	if err != nil {
		return nil, nil, err
	}
	config, err := model.AddConfiguration(aem.NewConfiguration("default"))
	if err != nil {
		return nil, nil, err
	}

	b := &builder{model: model, config: config, indexes: make(map[string]uint16)}
	b.add(aem.NewAudioUnit(), func(d aem.Descriptor) {
		unit := d.(*aem.AudioUnit)
		unit.Name = aem.NewString64(c.EntityName)
		unit.StreamInputPorts = aem.PortRange{Number: uint16(len(listeners))}
		unit.StreamOutputPorts = aem.PortRange{Number: uint16(len(talkers))}
		unit.SamplingRates = samplingRates(list)
		unit.CurrentSamplingRate = unit.SamplingRates[0]
	})

	avbif := aem.NewAvbInterface(mac)
	avbif.Name = aem.NewString64(c.IfName)
	avbif.ClockIdentity = c.Grandmaster
	avbif.DomainNumber = c.GrandmasterDomain
	b.add(avbif, nil)

	source := aem.NewClockSource()
	source.Name = aem.NewString64("internal")
	source.ClockSourceType = aem.ClockSourceInternal
	source.ClockSourceIdentifier = entity.EntityID
	source.LocationType = aem.TypeAvbInterface
	b.add(source, nil)

	domain := aem.NewClockDomain()
	domain.Name = aem.NewString64("media clock")
	domain.ClockSources = []uint16{source.Index}
	b.add(domain, nil)

	for _, s := range talkers {
		b.addStream(s, aem.NewStreamOutput(), aem.NewStreamPortOutput())
	}
	for _, s := range listeners {
		b.addStream(s, aem.NewStreamInput(), aem.NewStreamPortInput())
	}
	if b.err != nil {
		return nil, nil, b.err
	}

	if err := ls.AddTo(model); err != nil {
		return nil, nil, err
	}
	return model, b.indexes, nil
}

// builder 依次加入描述符，记录第一个错误
type builder struct {
	model   *aem.Model
	config  uint16
	indexes map[string]uint16
	err     error
}

func (b *builder) add(d aem.Descriptor, init func(d aem.Descriptor)) uint16 {
	if b.err != nil {
		return 0
	}
	if init != nil {
		init(d)
	}
	index, err := b.model.AddDescriptor(d, b.config)
	if err != nil {
		b.err = fmt.Errorf("avdecc: add %s: %w", d.DescriptorType(), err)
	}
	return index
}

// addStream 加入流描述符、流端口以及每声道一个音频簇和一个音频映射
func (b *builder) addStream(s *streams.Stream, sio *aem.StreamIO, port *aem.StreamPort) {
	sio.Name = aem.NewString64(s.Name)
	sio.StreamFlags = aem.StreamFlagClassA
	sio.Formats = s.Formats()
	sio.CurrentFormat = sio.Formats[0]
	index := b.add(sio, nil)
	b.indexes[s.Name] = index

	amap := aem.NewAudioMap()
	var base uint16
	for ch := uint16(0); ch < s.Channels; ch++ {
		cluster := aem.NewAudioCluster()
		cluster.Name = aem.NewString64(fmt.Sprintf("%s %d", s.Name, ch+1))
		cluster.ChannelCount = 1
		ci := b.add(cluster, nil)
		if ch == 0 {
			base = ci
		}
		amap.Mappings = append(amap.Mappings, aem.AudioMapping{
			StreamIndex:   index,
			StreamChannel: ch,
			ClusterOffset: ch,
		})
	}
	mi := b.add(amap, nil)

	port.NumberOfClusters = s.Channels
	port.BaseCluster = base
	port.NumberOfMaps = 1
	port.BaseMap = mi
	b.add(port, nil)
}

// samplingRates 流表用到的所有采样率，第一个为首个流的当前采样率
func samplingRates(list []*streams.Stream) []aem.SamplingRate {
	var rates []aem.SamplingRate
	seen := make(map[int]bool)
	add := func(rate int) {
		if !seen[rate] {
			seen[rate] = true
			rates = append(rates, aem.NewSamplingRate(0, uint32(rate)))
		}
	}
	for _, s := range list {
		add(s.SampleRate)
		for _, rate := range s.SampleRates {
			add(rate)
		}
	}
	if len(rates) == 0 {
		add(defaultRate)
	}
	return rates
}
