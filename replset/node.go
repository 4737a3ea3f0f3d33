// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"math"
	"time"

	"github.com/ikmak/rsmonitor/model"
)

// UnknownLatency is the latency of a node that has never replied.
const UnknownLatency int64 = math.MaxInt64

// Node is the monitor's view of one member of the set.
type Node struct {
	Host          model.Addr
	IsUp          bool
	IsMaster      bool
	Hidden        bool
	Tags          model.TagSet
	LatencyMicros int64
	LastWriteDate time.Time
	ElectionID    string
	LastRound     uint64
}

// NewNode returns a node that is down and has unknown latency.
func NewNode(host model.Addr) *Node {
	return &Node{
		Host:          host.Canonicalize(),
		LatencyMicros: UnknownLatency,
	}
}

// MarkFailed marks the node down. Its tags and role are kept for
// diagnostics.
func (n *Node) MarkFailed() {
	n.IsUp = false
}

// MarkOK marks the node up and updates it from reply. The latency is an
// exponentially weighted average of the samples seen so far.
func (n *Node) MarkOK(reply *model.IsMasterResult, latency time.Duration) {
	n.IsUp = true
	n.IsMaster = reply.IsMaster
	n.Hidden = reply.Hidden
	n.Tags = model.NewTagSetFromMap(reply.Tags)
	n.LastWriteDate = reply.LastWriteDate
	n.ElectionID = reply.ElectionID

	sample := latency.Microseconds()
	if sample < 0 {
		sample = 0
	}
	if n.LatencyMicros == UnknownLatency {
		n.LatencyMicros = sample
	} else {
		n.LatencyMicros = int64(0.8*float64(n.LatencyMicros) + 0.2*float64(sample))
	}
}

// Matches reports whether the node carries every tag of filter.
func (n *Node) Matches(filter model.TagSet) bool {
	return n.Tags.ContainsAll(filter)
}

func (n *Node) clone() Node {
	c := *n
	c.Tags = append(model.TagSet(nil), n.Tags...)
	return c
}
