// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"math"
	"testing"
	"time"

	"github.com/ikmak/rsmonitor/model"
	"github.com/ikmak/rsmonitor/readpref"
	"github.com/stretchr/testify/require"
)

func addr(host string) model.Addr {
	return model.Addr(host).Canonicalize()
}

// threeMemberWithTags builds a set where a and c are secondaries and b is
// the primary. All latencies are unknown.
func threeMemberWithTags(threshold time.Duration) *SetState {
	s := newSetState("test", nil, newConfig(
		WithDeterministicHostSelection(true),
		WithLatencyThreshold(threshold),
	))

	a := s.addNode("a")
	a.IsUp = true
	a.Tags = model.NewTagSet("dc", "nyc", "p", "1")

	b := s.addNode("b")
	b.IsUp = true
	b.IsMaster = true
	b.Tags = model.NewTagSet("dc", "sf")
	s.lastSeenMaster = b.Host

	c := s.addNode("c")
	c.IsUp = true
	c.Tags = model.NewTagSet("dc", "nyc", "p", "2")

	return s
}

func tagSets(pairs ...[]string) readpref.Option {
	sets := make([]model.TagSet, 0, len(pairs))
	for _, p := range pairs {
		sets = append(sets, model.NewTagSet(p...))
	}
	return readpref.WithTagSets(sets...)
}

func fail(hosts ...string) func(*SetState) {
	return func(s *SetState) {
		for _, h := range hosts {
			s.findNode(addr(h)).MarkFailed()
		}
	}
}

var (
	matchesFirst  = tagSets([]string{"p", "1"}, []string{"p", "2"})
	matchesSecond = tagSets([]string{"p", "3"}, []string{"p", "2"}, []string{"p", "1"})
	matchesLast   = tagSets([]string{"p", "12"}, []string{"p", "23"}, []string{"p", "19"}, []string{"p", "34"}, []string{"p", "1"})
	matchesPri    = tagSets([]string{"dc", "sf"}, []string{"p", "1"})
	multiNoMatch  = tagSets([]string{"mongo", "db"}, []string{"by", "10gen"})
	p2Tag         = readpref.WithTags("p", "2")
	noMatchTag    = readpref.WithTags("k", "x")
)

func TestGetMatchingHost(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		rp       *readpref.ReadPref
		setup    func(*SetState)
		expected string
	}{
		{"PrimaryOnly", readpref.Primary(), nil, "b"},
		{"PrimaryOnlyPriNotOk", readpref.Primary(), fail("b"), ""},
		{"PrimaryMissing", readpref.Primary(), func(s *SetState) { s.findNode(addr("b")).IsMaster = false }, ""},
		{"PriPrefWithPriOk", readpref.PrimaryPreferred(), nil, "b"},
		{"PriPrefWithPriNotOk", readpref.PrimaryPreferred(), fail("b"), "a"},
		{"SecOnly", readpref.Secondary(), nil, "a"},
		{"SecOnlyOnlyPriOk", readpref.Secondary(), fail("a", "c"), ""},
		{"SecPref", readpref.SecondaryPreferred(), nil, "a"},
		{"SecPrefWithNoSecOk", readpref.SecondaryPreferred(), fail("a", "c"), "b"},
		{"SecPrefWithNoNodeOk", readpref.SecondaryPreferred(), fail("a", "b", "c"), ""},
		{"PriOnlyWithTagsNoMatch", readpref.New(readpref.PrimaryMode, p2Tag), nil, "b"},
		{"PriPrefPriNotOkWithTags", readpref.PrimaryPreferred(p2Tag), fail("b"), "c"},
		{"PriPrefPriOkWithTagsNoMatch", readpref.PrimaryPreferred(noMatchTag), nil, "b"},
		{"PriPrefPriNotOkWithTagsNoMatch", readpref.PrimaryPreferred(noMatchTag), fail("b"), ""},
		{"SecOnlyWithTags", readpref.Secondary(p2Tag), nil, "c"},
		{"SecOnlyWithTagsMatchOnlyPri", readpref.Secondary(readpref.WithTags("dc", "sf")), nil, ""},
		{"SecPrefWithTags", readpref.SecondaryPreferred(p2Tag), nil, "c"},
		{"SecPrefSecNotOkWithTags", readpref.SecondaryPreferred(p2Tag), fail("c"), "b"},
		{"SecPrefPriOkWithTagsNoMatch", readpref.SecondaryPreferred(noMatchTag), nil, "b"},
		{"SecPrefPriNotOkWithTagsNoMatch", readpref.SecondaryPreferred(noMatchTag), fail("b"), ""},
		{"SecPrefPriOkWithSecNotMatchTag", readpref.SecondaryPreferred(readpref.WithTags("dc", "sf")), nil, "b"},
		{"NearestWithTags", readpref.Nearest(readpref.WithTags("p", "1")), nil, "a"},
		{"NearestWithTagsNoMatch", readpref.Nearest(noMatchTag), nil, ""},
		{"MultiPriOnlyTag", readpref.New(readpref.PrimaryMode, matchesFirst), nil, "b"},
		{"MultiPriOnlyPriNotOkTag", readpref.New(readpref.PrimaryMode, matchesFirst), fail("b"), ""},
		{"PriPrefPriOk", readpref.PrimaryPreferred(matchesFirst), nil, "b"},
		{"MultiTagsMatchesFirst", readpref.PrimaryPreferred(matchesFirst), fail("b"), "a"},
		{"PriPrefPriNotOkMatchesFirstNotOk", readpref.PrimaryPreferred(matchesFirst), fail("a", "b"), "c"},
		{"PriPrefPriNotOkMatchesSecond", readpref.PrimaryPreferred(matchesSecond), fail("b"), "c"},
		{"PriPrefPriNotOkMatchesSecondNotOk", readpref.PrimaryPreferred(matchesSecond), fail("b", "c"), "a"},
		{"PriPrefPriNotOkMatchesLast", readpref.PrimaryPreferred(matchesLast), fail("b"), "a"},
		{"PriPrefPriNotOkMatchesLastNotOk", readpref.PrimaryPreferred(matchesLast), fail("a", "b"), ""},
		{"PriPrefPriOkNoMatch", readpref.PrimaryPreferred(multiNoMatch), nil, "b"},
		{"PriPrefPriNotOkNoMatch", readpref.PrimaryPreferred(multiNoMatch), fail("b"), ""},
		{"SecOnlyMatchesFirst", readpref.Secondary(matchesFirst), nil, "a"},
		{"SecOnlyMatchesFirstNotOk", readpref.Secondary(matchesFirst), fail("a"), "c"},
		{"SecOnlyMatchesPri", readpref.Secondary(matchesPri), nil, "a"},
		{"SecPrefMatchesSecond", readpref.SecondaryPreferred(matchesSecond), nil, "c"},
		{"SecPrefMultiTagsNoMatch", readpref.SecondaryPreferred(multiNoMatch), nil, "b"},
		{"SecPrefMultiTagsNoMatchPriNotOk", readpref.SecondaryPreferred(multiNoMatch), fail("b"), ""},
		{"NearestMatchesFirst", readpref.Nearest(matchesFirst), nil, "a"},
		{"NearestMatchesFirstNotOk", readpref.Nearest(matchesPri), fail("a"), "b"},
		{"NearestMatchesPriFirst", readpref.Nearest(matchesPri), nil, "b"},
		{"NearestMatchesSecond", readpref.Nearest(matchesSecond), nil, "c"},
		{"NearestMatchesSecondNotOk", readpref.Nearest(matchesSecond), fail("c"), "a"},
		{"NearestMultiTagsNoMatch", readpref.Nearest(multiNoMatch), nil, ""},
	}

	for _, tc := range testCases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := threeMemberWithTags(3 * time.Millisecond)
			if tc.setup != nil {
				tc.setup(s)
			}

			var expected model.Addr
			if tc.expected != "" {
				expected = addr(tc.expected)
			}
			require.Equal(t, expected, s.GetMatchingHost(tc.rp))
		})
	}
}

func TestGetMatchingHost_nearest(t *testing.T) {
	t.Parallel()

	setLatencies := func(s *SetState, micros ...int64) {
		for i, n := range s.nodes {
			n.LatencyMicros = micros[i]
		}
	}

	t.Run("all local", func(t *testing.T) {
		t.Parallel()

		s := threeMemberWithTags(3 * time.Millisecond)
		setLatencies(s, 1000, 2000, 3000)
		require.Equal(t, []model.Addr{addr("a"), addr("b"), addr("c")}, nearest(s.nodes, s.latencyThresholdMicros))
		require.Equal(t, addr("a"), s.GetMatchingHost(readpref.Nearest()))
	})

	t.Run("one local", func(t *testing.T) {
		t.Parallel()

		s := threeMemberWithTags(3 * time.Millisecond)
		setLatencies(s, 10000, 20000, 30000)
		require.Equal(t, []model.Addr{addr("a")}, nearest(s.nodes, s.latencyThresholdMicros))

		s.findNode(addr("a")).MarkFailed()
		require.Equal(t, addr("b"), s.GetMatchingHost(readpref.Nearest()))
		require.Equal(t, addr("c"), s.GetMatchingHost(readpref.Secondary()))
	})

	t.Run("unknown latency is outside a known window", func(t *testing.T) {
		t.Parallel()

		s := threeMemberWithTags(15 * time.Millisecond)
		setLatencies(s, UnknownLatency, 5000, UnknownLatency)
		require.Equal(t, []model.Addr{addr("b")}, nearest(s.nodes, s.latencyThresholdMicros))
	})

	t.Run("threshold does not overflow", func(t *testing.T) {
		t.Parallel()

		s := threeMemberWithTags(15 * time.Millisecond)
		setLatencies(s, math.MaxInt64-10, UnknownLatency, math.MaxInt64-20)
		require.Len(t, nearest(s.nodes, s.latencyThresholdMicros), 3)
	})
}

func TestGetMatchingHost_random_stays_in_window(t *testing.T) {
	t.Parallel()

	s := threeMemberWithTags(3 * time.Millisecond)
	s.selector = RandomHostSelector()

	seen := map[model.Addr]bool{}
	for i := 0; i < 200; i++ {
		host := s.GetMatchingHost(readpref.Secondary())
		require.NotEqual(t, addr("b"), host)
		seen[host] = true
	}
	require.Len(t, seen, 2)
}

func TestGetMatchingHost_concrete_scenario(t *testing.T) {
	t.Parallel()

	s := threeMemberWithTags(15 * time.Millisecond)

	require.Equal(t, addr("b"), s.GetMatchingHost(readpref.Primary()))
	require.Equal(t, addr("c"), s.GetMatchingHost(readpref.Secondary(readpref.WithTags("p", "2"))))
	require.Equal(t, addr("b"), s.GetMatchingHost(readpref.SecondaryPreferred(readpref.WithTags("k", "x"))))

	s.findNode(addr("b")).MarkFailed()
	require.Equal(t, model.Addr(""), s.GetMatchingHost(readpref.Primary()))
	require.Contains(t, []model.Addr{addr("a"), addr("c")}, s.GetMatchingHost(readpref.SecondaryPreferred()))
}

func TestGetMatchingHost_prefers_last_seen_master(t *testing.T) {
	t.Parallel()

	s := threeMemberWithTags(15 * time.Millisecond)
	s.findNode(addr("a")).IsMaster = true

	require.Equal(t, addr("b"), s.GetMatchingHost(readpref.Primary()))
	require.True(t, s.IsPrimary("b"))
}
