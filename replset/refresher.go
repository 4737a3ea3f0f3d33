// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"context"
	"fmt"
	"time"

	"github.com/ikmak/rsmonitor/event"
	"github.com/ikmak/rsmonitor/internal/logger"
	"github.com/ikmak/rsmonitor/model"
	"github.com/pkg/errors"
)

// StepKind is the kind of a NextStep.
type StepKind uint8

// StepKind constants.
const (
	// StepContactHost means Host must be sent an isMaster, and the result
	// reported with ReceivedIsMaster or FailedHost.
	StepContactHost StepKind = iota
	// StepWait means every queued host has been contacted but some replies
	// are outstanding.
	StepWait
	// StepDone means the round is over.
	StepDone
)

func (k StepKind) String() string {
	switch k {
	case StepContactHost:
		return "ContactHost"
	case StepWait:
		return "Wait"
	case StepDone:
		return "Done"
	default:
		return fmt.Sprintf("StepKind(%d)", uint8(k))
	}
}

// NextStep tells the caller of GetNextStep what to do.
type NextStep struct {
	Kind StepKind
	Host model.Addr
}

// Refresher is a handle on one refresh round. Any number of goroutines may
// share a Refresher; each host is handed out by GetNextStep only once.
type Refresher struct {
	set     *SetState
	scan    *ScanState
	monitor *Monitor
}

// Round returns the round number of this refresher. Refreshers of the same
// round return the same number.
func (r *Refresher) Round() uint64 {
	return r.scan.round
}

// GetNextStep pops the next host to contact. When the queue is empty and no
// reply is outstanding, the round is finished and its results merged into
// the set state.
func (r *Refresher) GetNextStep() NextStep {
	s := r.set
	s.lock()
	defer s.unlock()

	if s.currentScan != r.scan {
		return NextStep{Kind: StepDone}
	}

	if host, ok := r.scan.next(); ok {
		return NextStep{Kind: StepContactHost, Host: host}
	}

	if len(r.scan.waitingFor) > 0 {
		return NextStep{Kind: StepWait}
	}

	s.finishScan(r.scan)
	return NextStep{Kind: StepDone}
}

// ReceivedIsMaster records a reply from host. It returns false when the
// reply was not accepted: it belongs to a finished round, or it comes from a
// host that is not a usable member of this set.
func (r *Refresher) ReceivedIsMaster(host model.Addr, latency time.Duration, reply *model.IsMasterResult) bool {
	s := r.set
	host = host.Canonicalize()

	s.lock()
	defer s.notify()
	defer s.unlock()

	if s.currentScan != r.scan {
		s.logger.Print(logger.DebugLevel, logger.ComponentTopology, "discarding reply from finished round",
			"setName", s.name, "host", host.String(), "round", r.scan.round)
		return false
	}

	delete(r.scan.waitingFor, host)

	switch {
	case reply == nil || !reply.OK:
		s.markFailed(host, errors.New("isMaster reply not ok"))
		return false
	case reply.SetName != s.name:
		s.logger.Print(logger.InfoLevel, logger.ComponentTopology, "host belongs to another set",
			"setName", s.name, "host", host.String(), "replySetName", reply.SetName)
		s.markFailed(host, errors.Errorf("host is in set %q", reply.SetName))
		return false
	case reply.Hidden:
		if n := s.findNode(host); n != nil {
			n.Hidden = true
		}
		s.markFailed(host, errors.New("host is hidden"))
		return false
	case reply.IsMaster:
		return r.receivedFromMaster(host, latency, reply)
	case reply.Secondary:
		return r.receivedFromSecondary(host, latency, reply)
	default:
		// Arbiters and members in transitional states are not eligible for
		// reads, but still tell us about the set.
		r.scan.enqueueFront(reply.Primary)
		if !r.scan.foundUpMaster {
			r.addPossible(reply.Members()...)
		}
		s.markFailed(host, errors.New("host is neither primary nor secondary"))
		return false
	}
}

func (r *Refresher) receivedFromMaster(host model.Addr, latency time.Duration, reply *model.IsMasterResult) bool {
	s := r.set
	scan := r.scan

	if s.isStalePrimary(reply) {
		s.logger.Print(logger.InfoLevel, logger.ComponentTopology, "ignoring primary with stale election id",
			"setName", s.name, "host", host.String(), "setVersion", reply.SetVersion, "electionId", reply.ElectionID,
			"maxSetVersion", s.maxSetVersion, "maxElectionId", s.maxElectionID)
		s.markFailed(host, errors.New("stale election id"))
		return false
	}

	members := make(map[model.Addr]struct{})
	for _, m := range reply.Members() {
		members[m] = struct{}{}
	}
	if _, ok := members[host]; !ok {
		s.logger.Print(logger.InfoLevel, logger.ComponentTopology, "primary is not in its own host list",
			"setName", s.name, "host", host.String())
		s.markFailed(host, errors.New("primary is not in its own host list"))
		return false
	}

	s.updateMaxElection(reply)

	var added, removed []model.Addr
	for _, n := range append([]*Node(nil), s.nodes...) {
		if _, ok := members[n.Host]; !ok {
			removed = append(removed, n.Host)
			s.removeNode(n.Host)
		}
	}
	for _, m := range reply.Members() {
		if s.findNode(m) == nil {
			added = append(added, m)
			s.addNode(m)
		}
		scan.enqueue(m)
	}

	s.setPrimary(host, reply.ElectionID)
	s.markOK(s.findNode(host), reply, latency, scan.round)
	scan.foundUpMaster = true
	scan.foundAnyUpNodes = true

	for h, ur := range scan.unconfirmedReplies {
		if n := s.findNode(h); n != nil {
			s.markOK(n, ur.reply, ur.latency, scan.round)
		}
		delete(scan.unconfirmedReplies, h)
	}
	scan.possibleNodes = members

	if len(added) > 0 || len(removed) > 0 {
		s.logger.Print(logger.InfoLevel, logger.ComponentTopology, "set membership changed",
			"setName", s.name, "added", added, "removed", removed)

		if m := s.monitor; m != nil && m.MembershipChanged != nil {
			evt := &event.MembershipChangedEvent{SetName: s.name, Added: added, Removed: removed}
			s.pending = append(s.pending, func() { m.MembershipChanged(evt) })
		}
	}

	return true
}

func (r *Refresher) receivedFromSecondary(host model.Addr, latency time.Duration, reply *model.IsMasterResult) bool {
	s := r.set
	scan := r.scan

	scan.foundAnyUpNodes = true
	scan.enqueueFront(reply.Primary)
	if !scan.foundUpMaster {
		r.addPossible(reply.Primary)
		r.addPossible(reply.Members()...)
	}

	n := s.findNode(host)
	if n == nil {
		if !scan.foundUpMaster {
			scan.unconfirmedReplies[host] = unconfirmedReply{reply: reply, latency: latency}
		}
		return false
	}

	s.markOK(n, reply, latency, scan.round)
	if s.lastSeenMaster == host {
		s.lastSeenMaster = ""
	}
	return true
}

// isStalePrimary reports whether a primary reply is older than the newest
// primary seen, ordering by setVersion and then electionId. s.mu must be held.
func (s *SetState) isStalePrimary(reply *model.IsMasterResult) bool {
	if reply.ElectionID == "" || s.maxElectionID == "" {
		return false
	}
	if reply.SetVersion != s.maxSetVersion {
		return reply.SetVersion < s.maxSetVersion
	}
	return reply.ElectionID < s.maxElectionID
}

// updateMaxElection records reply as the newest primary when it is. A higher
// setVersion replaces the election id even when the new id sorts lower.
// s.mu must be held.
func (s *SetState) updateMaxElection(reply *model.IsMasterResult) {
	switch {
	case reply.SetVersion > s.maxSetVersion:
		s.maxSetVersion = reply.SetVersion
		s.maxElectionID = reply.ElectionID
	case reply.SetVersion == s.maxSetVersion && reply.ElectionID > s.maxElectionID:
		s.maxElectionID = reply.ElectionID
	}
}

// addPossible records and queues hosts learned from an unconfirmed reply.
func (r *Refresher) addPossible(hosts ...model.Addr) {
	for _, h := range hosts {
		if h.Empty() {
			continue
		}
		r.scan.possibleNodes[h] = struct{}{}
		r.scan.enqueue(h)
	}
}

// FailedHost records that host could not be contacted. The node is marked
// down at once.
func (r *Refresher) FailedHost(host model.Addr, err error) {
	s := r.set
	host = host.Canonicalize()

	s.lock()
	defer s.notify()
	defer s.unlock()

	if s.currentScan != r.scan {
		return
	}

	delete(r.scan.waitingFor, host)
	s.logger.Print(logger.DebugLevel, logger.ComponentConnection, "isMaster failed",
		"setName", s.name, "host", host.String(), "error", errString(err))
	s.markFailed(host, err)
}

// finishScan merges what the round learned and discards it. s.mu must be
// held.
func (s *SetState) finishScan(scan *ScanState) {
	if !scan.foundUpMaster {
		for h, ur := range scan.unconfirmedReplies {
			s.markOK(s.findOrCreateNode(h), ur.reply, ur.latency, scan.round)
		}
		for h := range scan.possibleNodes {
			s.findOrCreateNode(h)
		}
	}

	if scan.foundAnyUpNodes {
		s.consecutiveFailedScans = 0
	} else {
		s.consecutiveFailedScans++
		s.logger.Print(logger.InfoLevel, logger.ComponentTopology, "no hosts of the set are reachable",
			"setName", s.name, "consecutiveFailedScans", s.consecutiveFailedScans)
	}

	s.currentScan = nil

	upHosts := 0
	for _, n := range s.nodes {
		if n.IsUp {
			upHosts++
		}
	}
	s.logger.Print(logger.DebugLevel, logger.ComponentTopology, "refresh round finished",
		"setName", s.name, "round", scan.round, "foundPrimary", scan.foundUpMaster, "upHosts", upHosts)

	if m := s.monitor; m != nil && m.ScanCompleted != nil {
		evt := &event.ScanCompletedEvent{
			SetName:                s.name,
			Round:                  scan.round,
			FoundPrimary:           scan.foundUpMaster,
			UpHosts:                upHosts,
			ConsecutiveFailedScans: s.consecutiveFailedScans,
		}
		s.pending = append(s.pending, func() { m.ScanCompleted(evt) })
	}

	s.pending = append(s.pending, func() {
		close(scan.done)
		s.notify()
	})
}

// RefreshAll contacts every host of the round and returns once it is done.
func (r *Refresher) RefreshAll(ctx context.Context) error {
	updated, id := r.set.awaitUpdates()
	defer r.set.removeWaiter(id)

	for {
		if step := r.dispatch(); step.Kind == StepDone {
			break
		}

		select {
		case <-updated:
		case <-ctx.Done():
			return ctx.Err()
		case <-r.monitor.done:
			return ErrMonitorShutdown
		}
	}

	// Another goroutine may have finished the round and still be delivering
	// its events.
	select {
	case <-r.scan.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.monitor.done:
		return ErrMonitorShutdown
	}
}

// dispatch starts a check for every queued host and returns the first step
// that is not StepContactHost.
func (r *Refresher) dispatch() NextStep {
	for {
		step := r.GetNextStep()
		if step.Kind != StepContactHost {
			return step
		}
		r.monitor.checkHost(r, step.Host)
	}
}
