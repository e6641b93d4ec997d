// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package network

import (
	"net"

	"github.com/emitter-io/address"
)

// RemoteIP 解析 "host:port" 形式地址中的 IP，不做域名解析，失败返回 nil
func RemoteIP(hostport string) net.IP {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = hostport
	}
	return net.ParseIP(host)
}

// InterfaceIPs 网口的 IPv4 地址。网口不存在或没有地址时，
// 退回到本机所有公网和私网地址。
func InterfaceIPs(ifname string) []string {
	ips := []string{}
	if ifi, err := net.InterfaceByName(ifname); err == nil {
		addrs, _ := ifi.Addrs()
		for _, a := range addrs {
			if ipnet, ok := a.(*net.IPNet); ok && ipnet.IP.To4() != nil {
				ips = append(ips, ipnet.IP.String())
			}
		}
	}
	if len(ips) > 0 {
		return ips
	}

	for _, get := range []func() ([]net.IPAddr, error){address.GetPublic, address.GetPrivate} {
		addrs, err := get()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			if a.IP.To4() != nil && !a.IP.IsLoopback() {
				ips = append(ips, a.IP.String())
			}
		}
	}
	return ips
}

// IsLocalhostIP 是否为本机地址，包括回环地址和本机的私网地址
func IsLocalhostIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() || ip.IsUnspecified() {
		return true
	}

	privs, err := address.GetPrivate()
	if err != nil {
		return false
	}
	for _, priv := range privs {
		if priv.IP.Equal(ip) {
			return true
		}
	}
	return false
}
