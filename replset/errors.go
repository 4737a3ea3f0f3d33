// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"github.com/ikmak/rsmonitor/readpref"
	"github.com/pkg/errors"
)

var (
	// ErrHostNotFound is returned when no host satisfies a read preference.
	ErrHostNotFound = errors.New("no host matching read preference")

	// ErrMonitorShutdown is returned by operations on a closed monitor.
	ErrMonitorShutdown = errors.New("replica set monitor is shut down")

	// ErrMonitorUnavailable is returned by a registry after Shutdown.
	ErrMonitorUnavailable = errors.New("replica set monitor registry is shut down")

	// ErrMonitorNotFound is returned by Registry.Get for an unknown set.
	ErrMonitorNotFound = errors.New("replica set monitor not found")
)

func hostNotFound(setName string, rp *readpref.ReadPref, reason string) error {
	return errors.Wrapf(ErrHostNotFound, "set %s, %v, %s", setName, rp, reason)
}
