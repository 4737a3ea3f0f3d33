// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"context"
	"testing"
	"time"

	"github.com/ikmak/rsmonitor/internal/rstest"
	"github.com/ikmak/rsmonitor/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newTestMonitor(t *testing.T, seeds ...string) *Monitor {
	t.Helper()

	rs := rstest.NewReplicaSet("test", 3)
	m := NewMonitor("test", model.NewAddrs(seeds...),
		WithDialer(rs.Dialer()),
		WithRefreshPeriod(0),
		WithDeterministicHostSelection(true),
	)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m
}

func primaryReply(hosts ...string) *model.IsMasterResult {
	return &model.IsMasterResult{
		OK:       true,
		IsMaster: true,
		SetName:  "test",
		Hosts:    model.NewAddrs(hosts...),
	}
}

func secondaryReply(primary string, hosts ...string) *model.IsMasterResult {
	return &model.IsMasterResult{
		OK:        true,
		Secondary: true,
		SetName:   "test",
		Primary:   model.Addr(primary).Canonicalize(),
		Hosts:     model.NewAddrs(hosts...),
	}
}

func requireStep(t *testing.T, r *Refresher, kind StepKind, host string) {
	t.Helper()

	step := r.GetNextStep()
	require.Equal(t, kind, step.Kind, "step %v", step)
	if host != "" {
		require.Equal(t, addr(host), step.Host)
	}
}

func nodeByHost(t *testing.T, m *Monitor, host string) Node {
	t.Helper()

	for _, n := range m.SetState().Nodes() {
		if n.Host == addr(host) {
			return n
		}
	}
	t.Fatalf("no node for %s", host)
	return Node{}
}

func TestStartOrContinueRefresh_is_idempotent(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "a")

	r1 := m.StartOrContinueRefresh()
	r2 := m.StartOrContinueRefresh()
	require.Equal(t, r1.Round(), r2.Round())

	// Both handles share one queue: the seed is handed out once.
	requireStep(t, r1, StepContactHost, "a")
	requireStep(t, r2, StepWait, "")

	r2.FailedHost("a", errors.New("boom"))
	requireStep(t, r1, StepDone, "")
	requireStep(t, r2, StepDone, "")

	r3 := m.StartOrContinueRefresh()
	require.Equal(t, r1.Round()+1, r3.Round())
}

func TestRefresher_discovers_members(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "a")
	r := m.StartOrContinueRefresh()

	requireStep(t, r, StepContactHost, "a")
	requireStep(t, r, StepWait, "")

	require.True(t, r.ReceivedIsMaster("a", time.Millisecond, primaryReply("a", "b", "c")))
	require.True(t, m.IsPrimary("a"))

	requireStep(t, r, StepContactHost, "b")
	requireStep(t, r, StepContactHost, "c")
	requireStep(t, r, StepWait, "")

	r.FailedHost("b", errors.New("connection refused"))
	require.False(t, nodeByHost(t, m, "b").IsUp)

	require.True(t, r.ReceivedIsMaster("c", time.Millisecond, secondaryReply("a", "a", "b", "c")))
	requireStep(t, r, StepDone, "")

	nodes := m.SetState().Nodes()
	require.Len(t, nodes, 3)
	require.True(t, nodes[0].IsUp && nodes[0].IsMaster)
	require.False(t, nodes[1].IsUp)
	require.True(t, nodes[2].IsUp && !nodes[2].IsMaster)
	require.Equal(t, r.Round(), nodes[2].LastRound)
}

func TestRefresher_discards_replies_from_finished_round(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "a")
	r := m.StartOrContinueRefresh()

	requireStep(t, r, StepContactHost, "a")
	r.FailedHost("a", errors.New("timeout"))
	requireStep(t, r, StepDone, "")

	require.False(t, r.ReceivedIsMaster("a", time.Millisecond, primaryReply("a")))
	require.False(t, nodeByHost(t, m, "a").IsUp)
	require.False(t, m.IsPrimary("a"))
}

func TestRefresher_rejects_stale_election_id(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "a", "b")

	r := m.StartOrContinueRefresh()
	requireStep(t, r, StepContactHost, "a")
	requireStep(t, r, StepContactHost, "b")

	newer := primaryReply("a", "b")
	newer.ElectionID = "000000000000000000000002"
	require.True(t, r.ReceivedIsMaster("a", time.Millisecond, newer))

	older := primaryReply("a", "b")
	older.ElectionID = "000000000000000000000001"
	require.False(t, r.ReceivedIsMaster("b", time.Millisecond, older))

	require.True(t, m.IsPrimary("a"))
	require.False(t, nodeByHost(t, m, "b").IsUp)
	require.Equal(t, "000000000000000000000002", m.Info().MaxElectionID)
}

func TestRefresher_higher_set_version_wins_over_election_id(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "a", "b")

	r := m.StartOrContinueRefresh()
	requireStep(t, r, StepContactHost, "a")
	requireStep(t, r, StepContactHost, "b")

	old := primaryReply("a", "b")
	old.SetVersion = 3
	old.ElectionID = "7fffffff0000000000000009"
	require.True(t, r.ReceivedIsMaster("a", time.Millisecond, old))

	// A rebuilt set starts its election ids over but bumps setVersion.
	rebuilt := primaryReply("a", "b")
	rebuilt.SetVersion = 4
	rebuilt.ElectionID = "000000000000000000000001"
	require.True(t, r.ReceivedIsMaster("b", time.Millisecond, rebuilt))

	require.True(t, m.IsPrimary("b"))
	require.False(t, m.IsPrimary("a"))
	info := m.Info()
	require.Equal(t, int64(4), info.MaxSetVersion)
	require.Equal(t, "000000000000000000000001", info.MaxElectionID)

	stale := primaryReply("a", "b")
	stale.SetVersion = 3
	stale.ElectionID = "7fffffff000000000000000a"
	require.False(t, r.ReceivedIsMaster("a", time.Millisecond, stale))
	require.True(t, m.IsPrimary("b"))
}

func TestRefresher_new_primary_demotes_old(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "a", "b")

	r := m.StartOrContinueRefresh()
	requireStep(t, r, StepContactHost, "a")
	requireStep(t, r, StepContactHost, "b")
	require.True(t, r.ReceivedIsMaster("a", time.Millisecond, primaryReply("a", "b")))
	require.True(t, r.ReceivedIsMaster("b", time.Millisecond, primaryReply("a", "b")))

	require.True(t, m.IsPrimary("b"))
	require.False(t, m.IsPrimary("a"))
	require.True(t, nodeByHost(t, m, "a").IsUp)
}

func TestRefresher_buffers_unconfirmed_secondaries(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "b")
	r := m.StartOrContinueRefresh()

	requireStep(t, r, StepContactHost, "b")
	require.True(t, r.ReceivedIsMaster("b", time.Millisecond, secondaryReply("a", "a", "b", "c")))

	// The primary hint is contacted first.
	requireStep(t, r, StepContactHost, "a")
	requireStep(t, r, StepContactHost, "c")

	require.False(t, r.ReceivedIsMaster("c", time.Millisecond, secondaryReply("a", "a", "b", "c")))
	require.Len(t, m.SetState().Nodes(), 1)

	require.True(t, r.ReceivedIsMaster("a", time.Millisecond, primaryReply("a", "b", "c")))
	require.True(t, nodeByHost(t, m, "c").IsUp)
	requireStep(t, r, StepDone, "")
}

func TestRefresher_merges_possible_nodes_without_primary(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "b")
	r := m.StartOrContinueRefresh()

	requireStep(t, r, StepContactHost, "b")
	require.True(t, r.ReceivedIsMaster("b", time.Millisecond, secondaryReply("a", "a", "b", "c")))
	requireStep(t, r, StepContactHost, "a")
	requireStep(t, r, StepContactHost, "c")

	r.FailedHost("a", errors.New("connection refused"))
	require.False(t, r.ReceivedIsMaster("c", time.Millisecond, secondaryReply("", "a", "b", "c")))
	requireStep(t, r, StepDone, "")

	nodes := m.SetState().Nodes()
	require.Len(t, nodes, 3)
	require.False(t, nodes[0].IsUp)
	require.True(t, nodes[1].IsUp)
	require.True(t, nodes[2].IsUp)
	require.Equal(t, 0, m.Info().ConsecutiveFailedScans)
}

func TestRefresher_rejects_bad_replies(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		reply *model.IsMasterResult
	}{
		{"not ok", &model.IsMasterResult{IsMaster: true, SetName: "test", Hosts: model.NewAddrs("a")}},
		{"other set", &model.IsMasterResult{OK: true, IsMaster: true, SetName: "other", Hosts: model.NewAddrs("a")}},
		{"hidden", &model.IsMasterResult{OK: true, Secondary: true, Hidden: true, SetName: "test"}},
		{"arbiter", &model.IsMasterResult{OK: true, ArbiterOnly: true, SetName: "test", Hosts: model.NewAddrs("a")}},
		{"primary missing from its host list", primaryReply("b", "c")},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m := newTestMonitor(t, "a")
			r := m.StartOrContinueRefresh()
			requireStep(t, r, StepContactHost, "a")
			require.False(t, r.ReceivedIsMaster("a", time.Millisecond, tc.reply))
			require.False(t, nodeByHost(t, m, "a").IsUp)
			require.False(t, m.IsPrimary("a"))
		})
	}
}

func TestRefresher_primary_removes_absent_members(t *testing.T) {
	t.Parallel()

	m := newTestMonitor(t, "a", "b", "c")
	r := m.StartOrContinueRefresh()

	requireStep(t, r, StepContactHost, "a")
	require.True(t, r.ReceivedIsMaster("a", time.Millisecond, primaryReply("a", "b", "d")))

	hosts := []model.Addr{}
	for _, n := range m.SetState().Nodes() {
		hosts = append(hosts, n.Host)
	}
	require.Equal(t, []model.Addr{addr("a"), addr("b"), addr("d")}, hosts)

	requireStep(t, r, StepContactHost, "b")
	requireStep(t, r, StepContactHost, "c")
	requireStep(t, r, StepContactHost, "d")
}
