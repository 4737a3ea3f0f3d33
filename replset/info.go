// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"time"

	"github.com/tidwall/pretty"
	"go.mongodb.org/mongo-driver/bson"
)

// HostInfo is the diagnostic view of one node.
type HostInfo struct {
	Addr           string            `bson:"addr"`
	OK             bool              `bson:"ok"`
	IsMaster       bool              `bson:"ismaster"`
	Hidden         bool              `bson:"hidden"`
	Secondary      bool              `bson:"secondary"`
	PingTimeMillis int64             `bson:"pingTimeMillis"`
	Tags           map[string]string `bson:"tags"`
	RTT90Millis    float64           `bson:"rtt90Millis,omitempty"`
	MinRTTMillis   float64           `bson:"minRTTMillis,omitempty"`
}

// SetInfo is the diagnostic view of a set.
type SetInfo struct {
	Name                   string     `bson:"name"`
	Hosts                  []HostInfo `bson:"hosts"`
	LastSeenMaster         string     `bson:"lastSeenMaster,omitempty"`
	MaxSetVersion          int64      `bson:"maxSetVersion,omitempty"`
	MaxElectionID          string     `bson:"maxElectionId,omitempty"`
	Round                  uint64     `bson:"round"`
	ConsecutiveFailedScans int        `bson:"consecutiveFailedScans"`
}

// JSON renders the info as relaxed extended JSON, indented when indent is
// true.
func (si SetInfo) JSON(indent bool) ([]byte, error) {
	b, err := bson.MarshalExtJSON(si, false, false)
	if err != nil {
		return nil, err
	}
	if indent {
		return pretty.Pretty(b), nil
	}
	return b, nil
}

// Info returns a snapshot of the set for diagnostics.
func (s *SetState) Info() SetInfo {
	s.lock()
	defer s.unlock()

	info := SetInfo{
		Name:                   s.name,
		Hosts:                  make([]HostInfo, 0, len(s.nodes)),
		LastSeenMaster:         string(s.lastSeenMaster),
		MaxSetVersion:          s.maxSetVersion,
		MaxElectionID:          s.maxElectionID,
		Round:                  s.round,
		ConsecutiveFailedScans: s.consecutiveFailedScans,
	}

	for _, n := range s.nodes {
		hi := HostInfo{
			Addr:           n.Host.String(),
			OK:             n.IsUp,
			IsMaster:       n.IsMaster,
			Hidden:         n.Hidden,
			Secondary:      n.IsUp && !n.IsMaster,
			Tags:           n.Tags.ToMap(),
		}
		if n.LatencyMicros != UnknownLatency {
			hi.PingTimeMillis = n.LatencyMicros / 1000
		}
		if w, ok := s.latencies[n.Host]; ok {
			hi.RTT90Millis = millis(w.percentile(90))
			hi.MinRTTMillis = millis(w.min())
		}
		info.Hosts = append(info.Hosts, hi)
	}

	return info
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Info returns a snapshot of the set for diagnostics.
func (m *Monitor) Info() SetInfo {
	return m.set.Info()
}

// AppendInfo adds the diagnostic view of the set to dst: an array under
// "hosts" with one document per node, each holding at least "addr".
func (m *Monitor) AppendInfo(dst map[string]interface{}) {
	info := m.Info()

	hosts := make([]interface{}, 0, len(info.Hosts))
	for _, h := range info.Hosts {
		tags := make(map[string]interface{}, len(h.Tags))
		for k, v := range h.Tags {
			tags[k] = v
		}
		hosts = append(hosts, map[string]interface{}{
			"addr":           h.Addr,
			"ok":             h.OK,
			"ismaster":       h.IsMaster,
			"hidden":         h.Hidden,
			"secondary":      h.Secondary,
			"pingTimeMillis": h.PingTimeMillis,
			"tags":           tags,
		})
	}
	dst["hosts"] = hosts
}
