// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package event defines the hooks a replica set monitor calls as its view of
// the set changes.
package event

import (
	"time"

	"github.com/ikmak/rsmonitor/model"
)

// MonitorOpeningEvent is an event generated when a set monitor is created.
type MonitorOpeningEvent struct {
	SetName string
	Seeds   []model.Addr
}

// MonitorClosedEvent is an event generated when a set monitor is closed.
type MonitorClosedEvent struct {
	SetName string
}

// HostCheckStartedEvent is an event generated when an isMaster is sent to a
// host.
type HostCheckStartedEvent struct {
	SetName string
	Host    model.Addr
	Round   uint64
}

// HostCheckSucceededEvent is an event generated when the isMaster succeeds.
type HostCheckSucceededEvent struct {
	SetName  string
	Host     model.Addr
	Round    uint64
	Duration time.Duration
	Reply    *model.IsMasterResult
}

// HostCheckFailedEvent is an event generated when the isMaster fails.
type HostCheckFailedEvent struct {
	SetName  string
	Host     model.Addr
	Round    uint64
	Duration time.Duration
	Failure  error
}

// NodeMarkedDownEvent is an event generated when a node that was up is
// marked down.
type NodeMarkedDownEvent struct {
	SetName string
	Host    model.Addr
	Reason  error
}

// PrimaryChangedEvent is an event generated when a different node, or no
// node, becomes the confirmed primary.
type PrimaryChangedEvent struct {
	SetName    string
	Previous   model.Addr
	New        model.Addr
	ElectionID string
}

// MembershipChangedEvent is an event generated when a primary's host list
// adds or removes members.
type MembershipChangedEvent struct {
	SetName string
	Added   []model.Addr
	Removed []model.Addr
}

// ScanCompletedEvent is an event generated at the end of each refresh round.
type ScanCompletedEvent struct {
	SetName                string
	Round                  uint64
	FoundPrimary           bool
	UpHosts                int
	ConsecutiveFailedScans int
}

// SetMonitor represents a monitor that is triggered for different replica
// set events. Any field may be left nil. Callbacks are never invoked while
// the monitor holds its internal lock, but they may be invoked concurrently
// from different goroutines.
type SetMonitor struct {
	MonitorOpening     func(*MonitorOpeningEvent)
	MonitorClosed      func(*MonitorClosedEvent)
	HostCheckStarted   func(*HostCheckStartedEvent)
	HostCheckSucceeded func(*HostCheckSucceededEvent)
	HostCheckFailed    func(*HostCheckFailedEvent)
	NodeMarkedDown     func(*NodeMarkedDownEvent)
	PrimaryChanged     func(*PrimaryChangedEvent)
	MembershipChanged  func(*MembershipChangedEvent)
	ScanCompleted      func(*ScanCompletedEvent)
}
