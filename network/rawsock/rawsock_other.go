// Copyright (c) 2019,CAOHONGJU All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package rawsock

// Open 非 Linux 平台不支持原始套接字
func Open(ifname string, ethertype uint16) (Socket, error) {
	return nil, ErrUnsupported
}
