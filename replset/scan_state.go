// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"time"

	"github.com/ikmak/rsmonitor/model"
)

type unconfirmedReply struct {
	reply   *model.IsMasterResult
	latency time.Duration
}

// ScanState is the state of one refresh round. It is guarded by the mutex of
// the SetState that owns it.
type ScanState struct {
	round uint64

	// hostsToScan is the queue of hosts still to contact.
	hostsToScan []model.Addr
	// possibleNodes are hosts seen in any reply this round.
	possibleNodes map[model.Addr]struct{}
	// waitingFor are contacted hosts that have not answered yet.
	waitingFor map[model.Addr]struct{}
	// triedHosts are hosts contacted this round, answered or not.
	triedHosts map[model.Addr]struct{}
	// unconfirmedReplies are secondary replies from hosts not yet known to
	// be members.
	unconfirmedReplies map[model.Addr]unconfirmedReply

	foundUpMaster   bool
	foundAnyUpNodes bool

	// done is closed once the round's results are merged and its events
	// delivered.
	done chan struct{}
}

// newScan starts a new round. The last known primary is contacted first,
// then up nodes, then down nodes. s.mu must be held.
func (s *SetState) newScan() *ScanState {
	s.round++
	scan := &ScanState{
		round:              s.round,
		possibleNodes:      make(map[model.Addr]struct{}),
		waitingFor:         make(map[model.Addr]struct{}),
		triedHosts:         make(map[model.Addr]struct{}),
		unconfirmedReplies: make(map[model.Addr]unconfirmedReply),
		done:               make(chan struct{}),
	}

	if !s.lastSeenMaster.Empty() && s.findNode(s.lastSeenMaster) != nil {
		scan.enqueue(s.lastSeenMaster)
	}
	for _, n := range s.nodes {
		if n.IsUp {
			scan.enqueue(n.Host)
		}
	}
	for _, n := range s.nodes {
		if !n.IsUp {
			scan.enqueue(n.Host)
		}
	}
	if len(s.nodes) == 0 {
		scan.enqueue(s.seeds...)
	}

	return scan
}

func (scan *ScanState) queued(host model.Addr) bool {
	for _, h := range scan.hostsToScan {
		if h == host {
			return true
		}
	}
	return false
}

// enqueue appends hosts that have been neither tried nor queued.
func (scan *ScanState) enqueue(hosts ...model.Addr) {
	for _, h := range hosts {
		if h.Empty() {
			continue
		}
		if _, tried := scan.triedHosts[h]; tried || scan.queued(h) {
			continue
		}
		scan.hostsToScan = append(scan.hostsToScan, h)
	}
}

// enqueueFront moves host to the head of the queue unless it was tried.
func (scan *ScanState) enqueueFront(host model.Addr) {
	if host.Empty() {
		return
	}
	if _, tried := scan.triedHosts[host]; tried {
		return
	}
	for i, h := range scan.hostsToScan {
		if h == host {
			scan.hostsToScan = append(scan.hostsToScan[:i], scan.hostsToScan[i+1:]...)
			break
		}
	}
	scan.hostsToScan = append([]model.Addr{host}, scan.hostsToScan...)
}

// next pops the next untried host.
func (scan *ScanState) next() (model.Addr, bool) {
	for len(scan.hostsToScan) > 0 {
		host := scan.hostsToScan[0]
		scan.hostsToScan = scan.hostsToScan[1:]
		if _, tried := scan.triedHosts[host]; tried {
			continue
		}
		scan.triedHosts[host] = struct{}{}
		scan.waitingFor[host] = struct{}{}
		return host, true
	}
	return "", false
}
