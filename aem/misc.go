// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package aem

import (
	"github.com/cnotch/avbhub/utils/bits"
)

const (
	localeLen       = 72
	stringsLen      = 452
	jackIOLen       = 78
	externalPortLen = 24
)

// StringsPerDescriptor 每个 STRINGS 描述符容纳的字符串数
const StringsPerDescriptor = 7

// Locale LOCALE 描述符
type Locale struct {
	Header
	LocaleIdentifier String64 `json:"locale_identifier"`
	NumberOfStrings  uint16   `json:"number_of_strings"`
	BaseStrings      uint16   `json:"base_strings"`
}

// NewLocale 创建 LOCALE 描述符
func NewLocale(id string) *Locale {
	return &Locale{
		Header:           Header{Type: TypeLocale},
		LocaleIdentifier: NewString64(id),
	}
}

func encodeLocale(w *bits.Writer, d *Locale) {
	w.Write(d.LocaleIdentifier[:])
	w.Uint16(d.NumberOfStrings)
	w.Uint16(d.BaseStrings)
}

func decodeLocale(r *bits.Reader, d *Locale) error {
	if err := need(r, localeLen, 0, 0); err != nil {
		return err
	}
	r.Bytes(d.LocaleIdentifier[:])
	d.NumberOfStrings = r.Uint16()
	d.BaseStrings = r.Uint16()
	return nil
}

// Strings STRINGS 描述符
type Strings struct {
	Header
	Strings [StringsPerDescriptor]String64 `json:"strings"`
}

// NewStrings 创建 STRINGS 描述符
func NewStrings() *Strings {
	return &Strings{Header: Header{Type: TypeStrings}}
}

func encodeStrings(w *bits.Writer, d *Strings) {
	for i := range d.Strings {
		w.Write(d.Strings[i][:])
	}
}

func decodeStrings(r *bits.Reader, d *Strings) error {
	if err := need(r, stringsLen, 0, 0); err != nil {
		return err
	}
	for i := range d.Strings {
		r.Bytes(d.Strings[i][:])
	}
	return nil
}

// jack_type
const (
	JackTypeSpeaker     = 0x0000
	JackTypeHeadphone   = 0x0001
	JackTypeAnalogMic   = 0x0002
	JackTypeSPDIF       = 0x0003
	JackTypeADAT        = 0x0004
	JackTypeBalancedAna = 0x0008
	JackTypeDigital     = 0x0009
)

// JackIO JACK_INPUT / JACK_OUTPUT 描述符
type JackIO struct {
	Header
	Naming
	JackFlags        uint16 `json:"jack_flags"`
	JackType         uint16 `json:"jack_type"`
	NumberOfControls uint16 `json:"number_of_controls"`
	BaseControl      uint16 `json:"base_control"`
}

// NewJackInput 创建 JACK_INPUT 描述符
func NewJackInput() *JackIO {
	return &JackIO{
		Header: Header{Type: TypeJackInput},
		Naming: Naming{Description: NoString},
	}
}

// NewJackOutput 创建 JACK_OUTPUT 描述符
func NewJackOutput() *JackIO {
	return &JackIO{
		Header: Header{Type: TypeJackOutput},
		Naming: Naming{Description: NoString},
	}
}

func encodeJackIO(w *bits.Writer, d *JackIO) {
	writeNaming(w, &d.Naming)
	w.Uint16(d.JackFlags)
	w.Uint16(d.JackType)
	w.Uint16(d.NumberOfControls)
	w.Uint16(d.BaseControl)
}

func decodeJackIO(r *bits.Reader, d *JackIO) error {
	if err := need(r, jackIOLen, 0, 0); err != nil {
		return err
	}
	readNaming(r, &d.Naming)
	d.JackFlags = r.Uint16()
	d.JackType = r.Uint16()
	d.NumberOfControls = r.Uint16()
	d.BaseControl = r.Uint16()
	return nil
}

// ExternalPort EXTERNAL_PORT_INPUT / EXTERNAL_PORT_OUTPUT 描述符
type ExternalPort struct {
	Header
	ClockDomainIndex uint16         `json:"clock_domain_index"`
	PortFlags        uint16         `json:"port_flags"`
	NumberOfControls uint16         `json:"number_of_controls"`
	BaseControl      uint16         `json:"base_control"`
	SignalType       DescriptorType `json:"signal_type"`
	SignalIndex      uint16         `json:"signal_index"`
	SignalOutput     uint16         `json:"signal_output"`
	BlockLatency     uint32         `json:"block_latency"`
	JackIndex        uint16         `json:"jack_index"`
}

// NewExternalPortInput 创建 EXTERNAL_PORT_INPUT 描述符
func NewExternalPortInput() *ExternalPort {
	return &ExternalPort{Header: Header{Type: TypeExternalPortInput}, SignalType: TypeInvalid}
}

// NewExternalPortOutput 创建 EXTERNAL_PORT_OUTPUT 描述符
func NewExternalPortOutput() *ExternalPort {
	return &ExternalPort{Header: Header{Type: TypeExternalPortOutput}, SignalType: TypeInvalid}
}

func encodeExternalPort(w *bits.Writer, d *ExternalPort) {
	w.Uint16(d.ClockDomainIndex)
	w.Uint16(d.PortFlags)
	w.Uint16(d.NumberOfControls)
	w.Uint16(d.BaseControl)
	w.Uint16(uint16(d.SignalType))
	w.Uint16(d.SignalIndex)
	w.Uint16(d.SignalOutput)
	w.Uint32(d.BlockLatency)
	w.Uint16(d.JackIndex)
}

func decodeExternalPort(r *bits.Reader, d *ExternalPort) error {
	if err := need(r, externalPortLen, 0, 0); err != nil {
		return err
	}
	d.ClockDomainIndex = r.Uint16()
	d.PortFlags = r.Uint16()
	d.NumberOfControls = r.Uint16()
	d.BaseControl = r.Uint16()
	d.SignalType = DescriptorType(r.Uint16())
	d.SignalIndex = r.Uint16()
	d.SignalOutput = r.Uint16()
	d.BlockLatency = r.Uint32()
	d.JackIndex = r.Uint16()
	return nil
}
