// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"math"

	"github.com/ikmak/rsmonitor/model"
	"github.com/ikmak/rsmonitor/readpref"
)

// GetMatchingHost returns a host satisfying rp, or "" when there is none. It
// never starts a refresh.
func (s *SetState) GetMatchingHost(rp *readpref.ReadPref) model.Addr {
	if rp == nil {
		rp = readpref.Primary()
	}

	s.lock()
	defer s.unlock()

	switch rp.Mode() {
	case readpref.PrimaryMode:
		return s.upPrimary()
	case readpref.PrimaryPreferredMode:
		if p := s.upPrimary(); p != "" {
			return p
		}
		return s.selectFrom(s.upSecondaries(), rp.TagSets())
	case readpref.SecondaryMode:
		return s.selectFrom(s.upSecondaries(), rp.TagSets())
	case readpref.SecondaryPreferredMode:
		if h := s.selectFrom(s.upSecondaries(), rp.TagSets()); h != "" {
			return h
		}
		return s.upPrimary()
	case readpref.NearestMode:
		var up []*Node
		for _, n := range s.nodes {
			if n.IsUp {
				up = append(up, n)
			}
		}
		return s.selectFrom(up, rp.TagSets())
	default:
		return ""
	}
}

// upPrimary returns the up primary. If more than one node claims to be
// primary, the last confirmed one wins.
func (s *SetState) upPrimary() model.Addr {
	var found model.Addr
	for _, n := range s.nodes {
		if !n.IsUp || !n.IsMaster {
			continue
		}
		if n.Host == s.lastSeenMaster {
			return n.Host
		}
		if found.Empty() {
			found = n.Host
		}
	}
	return found
}

func (s *SetState) upSecondaries() []*Node {
	var out []*Node
	for _, n := range s.nodes {
		if n.IsUp && !n.IsMaster {
			out = append(out, n)
		}
	}
	return out
}

// selectFrom applies the first tag set matching any candidate, then the
// nearest window, then the host selector.
func (s *SetState) selectFrom(candidates []*Node, tagSets []model.TagSet) model.Addr {
	if len(candidates) == 0 {
		return ""
	}

	for _, ts := range tagSets {
		var matched []*Node
		for _, n := range candidates {
			if n.Matches(ts) {
				matched = append(matched, n)
			}
		}
		if len(matched) == 0 {
			continue
		}

		return s.selector.SelectHost(nearest(matched, s.latencyThresholdMicros))
	}

	return ""
}

// nearest returns the hosts whose latency is within threshold of the
// fastest one. Unknown latencies only fall in the window when no latency is
// known.
func nearest(nodes []*Node, thresholdMicros int64) []model.Addr {
	minLatency := UnknownLatency
	for _, n := range nodes {
		if n.LatencyMicros < minLatency {
			minLatency = n.LatencyMicros
		}
	}

	limit := int64(math.MaxInt64)
	if minLatency <= math.MaxInt64-thresholdMicros {
		limit = minLatency + thresholdMicros
	}

	hosts := make([]model.Addr, 0, len(nodes))
	for _, n := range nodes {
		if n.LatencyMicros <= limit {
			hosts = append(hosts, n.Host)
		}
	}
	return hosts
}
