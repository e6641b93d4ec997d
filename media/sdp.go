// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package media

import (
	"fmt"
	"net"
	"strings"

	"github.com/cnotch/avbhub/aem"
	"github.com/pixelbender/go-sdp/sdp"
)

// Describe 生成 RTP 桥接的会话描述，并用解析器校验
func Describe(name string, dst *net.UDPAddr, pt uint8, f aem.AAFFormat) (string, error) {
	enc := EncodingName(f.Format)
	if enc == "" {
		return "", fmt.Errorf("%w: no rtp encoding for %d", ErrUnsupportedFormat, f.Format)
	}

	ipver := "IP4"
	if dst.IP.To4() == nil {
		ipver = "IP6"
	}

	var b strings.Builder
	b.WriteString("v=0\r\n")
	fmt.Fprintf(&b, "o=- 0 0 IN %s %s\r\n", ipver, dst.IP)
	fmt.Fprintf(&b, "s=%s\r\n", name)
	fmt.Fprintf(&b, "c=IN %s %s\r\n", ipver, dst.IP)
	b.WriteString("t=0 0\r\n")
	fmt.Fprintf(&b, "m=audio %d RTP/AVP %d\r\n", dst.Port, pt)
	fmt.Fprintf(&b, "a=rtpmap:%d %s/%d/%d\r\n", pt, enc, f.Nsr.Rate(), f.ChannelsPerFrame)
	b.WriteString("a=recvonly\r\n")

	raw := b.String()
	if _, err := sdp.ParseString(raw); err != nil {
		return "", err
	}
	return raw, nil
}
