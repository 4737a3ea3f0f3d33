// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"github.com/ikmak/rsmonitor/internal/randutil"
	"github.com/ikmak/rsmonitor/model"
)

// HostSelector picks one host out of the non-empty nearest window. The hosts
// are given in host order.
type HostSelector interface {
	SelectHost([]model.Addr) model.Addr
}

// HostSelectorFunc is a function that can be used as a HostSelector.
type HostSelectorFunc func([]model.Addr) model.Addr

// SelectHost implements the HostSelector interface.
func (f HostSelectorFunc) SelectHost(hosts []model.Addr) model.Addr {
	return f(hosts)
}

var random = randutil.NewCryptoSeededRand()

// RandomHostSelector picks a host uniformly at random.
func RandomHostSelector() HostSelector {
	return HostSelectorFunc(func(hosts []model.Addr) model.Addr {
		return hosts[random.Intn(len(hosts))]
	})
}

// FirstHostSelector always picks the first host.
func FirstHostSelector() HostSelector {
	return HostSelectorFunc(func(hosts []model.Addr) model.Addr {
		return hosts[0]
	})
}
