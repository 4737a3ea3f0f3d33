// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ikmak/rsmonitor/event"
	"github.com/ikmak/rsmonitor/internal/logger"
	"github.com/ikmak/rsmonitor/model"
)

// SetState is the shared view of one replica set. All fields are guarded by
// mu, which is never held across a network call.
type SetState struct {
	mu sync.Mutex

	name  string
	seeds []model.Addr

	// nodes is sorted by host and holds at most one node per host.
	nodes                  []*Node
	latencyThresholdMicros int64
	lastSeenMaster         model.Addr
	maxSetVersion          int64
	maxElectionID          string
	round                  uint64
	currentScan            *ScanState
	consecutiveFailedScans int
	latencies              map[model.Addr]*latencyWindow

	selector HostSelector
	logger   *logger.Logger
	monitor  *event.SetMonitor

	// pending holds event callbacks queued under mu. They run once mu is
	// released.
	pending []func()

	waiters      map[int64]chan struct{}
	lastWaiterID int64
	waiterLock   sync.Mutex
}

func newSetState(name string, seeds []model.Addr, cfg *config) *SetState {
	s := &SetState{
		name:                   name,
		latencyThresholdMicros: cfg.latencyThreshold.Microseconds(),
		latencies:              make(map[model.Addr]*latencyWindow),
		selector:               cfg.selector,
		logger:                 cfg.logger,
		monitor:                cfg.monitor,
		waiters:                make(map[int64]chan struct{}),
	}

	if s.latencyThresholdMicros < 0 {
		s.latencyThresholdMicros = 0
	}

	for _, seed := range seeds {
		seed = seed.Canonicalize()
		if seed.Empty() || s.findNode(seed) != nil {
			continue
		}
		s.seeds = append(s.seeds, seed)
		s.addNode(seed)
	}

	return s
}

func (s *SetState) lock() {
	s.mu.Lock()
}

func (s *SetState) unlock() {
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// findNode returns the node for host, or nil. s.mu must be held.
func (s *SetState) findNode(host model.Addr) *Node {
	i := sort.Search(len(s.nodes), func(i int) bool { return s.nodes[i].Host >= host })
	if i < len(s.nodes) && s.nodes[i].Host == host {
		return s.nodes[i]
	}
	return nil
}

// addNode inserts a node for host keeping nodes sorted. s.mu must be held.
func (s *SetState) addNode(host model.Addr) *Node {
	n := NewNode(host)
	i := sort.Search(len(s.nodes), func(i int) bool { return s.nodes[i].Host >= n.Host })
	s.nodes = append(s.nodes, nil)
	copy(s.nodes[i+1:], s.nodes[i:])
	s.nodes[i] = n
	return n
}

func (s *SetState) findOrCreateNode(host model.Addr) *Node {
	if n := s.findNode(host); n != nil {
		return n
	}
	return s.addNode(host)
}

func (s *SetState) removeNode(host model.Addr) {
	i := sort.Search(len(s.nodes), func(i int) bool { return s.nodes[i].Host >= host })
	if i < len(s.nodes) && s.nodes[i].Host == host {
		s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
	}
	delete(s.latencies, host)
	if s.lastSeenMaster == host {
		s.lastSeenMaster = ""
	}
}

// markOK applies a reply to a known node. s.mu must be held.
func (s *SetState) markOK(n *Node, reply *model.IsMasterResult, latency time.Duration, round uint64) {
	n.MarkOK(reply, latency)
	n.LastRound = round

	w, ok := s.latencies[n.Host]
	if !ok {
		w = newLatencyWindow()
		s.latencies[n.Host] = w
	}
	w.add(latency)
}

// markFailed marks host down if it is known. s.mu must be held.
func (s *SetState) markFailed(host model.Addr, reason error) {
	n := s.findNode(host)
	if n == nil {
		return
	}

	wasUp := n.IsUp
	n.MarkFailed()
	if !wasUp {
		return
	}

	s.logger.Print(logger.InfoLevel, logger.ComponentTopology, "host marked down",
		"setName", s.name, "host", host.String(), "error", errString(reason))

	if m := s.monitor; m != nil && m.NodeMarkedDown != nil {
		evt := &event.NodeMarkedDownEvent{SetName: s.name, Host: host, Reason: reason}
		s.pending = append(s.pending, func() { m.NodeMarkedDown(evt) })
	}
}

// setPrimary records host as the confirmed primary and clears the flag on
// every other node. s.mu must be held.
func (s *SetState) setPrimary(host model.Addr, electionID string) {
	for _, n := range s.nodes {
		if n.Host != host {
			n.IsMaster = false
		}
	}

	prev := s.lastSeenMaster
	s.lastSeenMaster = host
	if prev == host {
		return
	}

	s.logger.Print(logger.InfoLevel, logger.ComponentTopology, "primary changed",
		"setName", s.name, "previous", prev.String(), "primary", host.String(), "electionId", electionID)

	if m := s.monitor; m != nil && m.PrimaryChanged != nil {
		evt := &event.PrimaryChangedEvent{SetName: s.name, Previous: prev, New: host, ElectionID: electionID}
		s.pending = append(s.pending, func() { m.PrimaryChanged(evt) })
	}
}

// awaitUpdates returns a channel which will be signaled when the set state
// changes, and an id which can later be used to remove this channel from
// the waiters map.
func (s *SetState) awaitUpdates() (<-chan struct{}, int64) {
	id := atomic.AddInt64(&s.lastWaiterID, 1)
	ch := make(chan struct{}, 1)
	s.waiterLock.Lock()
	s.waiters[id] = ch
	s.waiterLock.Unlock()
	return ch, id
}

func (s *SetState) removeWaiter(id int64) {
	s.waiterLock.Lock()
	delete(s.waiters, id)
	s.waiterLock.Unlock()
}

// notify wakes every waiter without blocking.
func (s *SetState) notify() {
	s.waiterLock.Lock()
	for _, ch := range s.waiters {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.waiterLock.Unlock()
}

// Nodes returns a copy of the nodes, in host order.
func (s *SetState) Nodes() []Node {
	s.lock()
	defer s.unlock()

	nodes := make([]Node, 0, len(s.nodes))
	for _, n := range s.nodes {
		nodes = append(nodes, n.clone())
	}
	return nodes
}

// IsPrimary reports whether host is the up primary.
func (s *SetState) IsPrimary(host model.Addr) bool {
	s.lock()
	defer s.unlock()

	n := s.findNode(host.Canonicalize())
	return n != nil && n.IsUp && n.IsMaster
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
