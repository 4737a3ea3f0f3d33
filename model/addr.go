// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import (
	"net"
	"strings"
)

const defaultPort = "27017"

// Addr is a network address. It can be either an IP address or a DNS name,
// optionally followed by a port.
type Addr string

// Network is the network protocol for this address. In most cases this will be
// "tcp" or "unix".
func (a Addr) Network() string {
	if strings.HasSuffix(string(a), "sock") {
		return "unix"
	}
	return "tcp"
}

// String is the canonical version of this address, e.g. localhost:27017,
// 1.2.3.4:27017, example.com:27017.
func (a Addr) String() string {
	return string(a.Canonicalize())
}

// Canonicalize lowercases the address and appends the default port when none
// is present.
func (a Addr) Canonicalize() Addr {
	// TODO: unicode case folding?
	s := strings.ToLower(string(a))
	if len(s) == 0 {
		return Addr("")
	}
	if a.Network() != "unix" {
		_, _, err := net.SplitHostPort(s)
		if err != nil && strings.Contains(err.Error(), "missing port in address") {
			s += ":" + defaultPort
		}
	}

	return Addr(s)
}

// Empty reports whether the address is unset.
func (a Addr) Empty() bool {
	return a == ""
}

// NewAddrs canonicalizes each of the given hosts, dropping empty values and
// duplicates while preserving order.
func NewAddrs(hosts ...string) []Addr {
	seen := make(map[Addr]struct{}, len(hosts))
	addrs := make([]Addr, 0, len(hosts))
	for _, h := range hosts {
		addr := Addr(h).Canonicalize()
		if addr.Empty() {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	return addrs
}
