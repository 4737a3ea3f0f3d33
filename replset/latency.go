// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"time"

	"github.com/montanaflynn/stats"
)

const (
	latencySamples    = 10
	minLatencySamples = 2
)

// latencyWindow keeps the most recent isMaster round trip times of a host.
type latencyWindow struct {
	samples []time.Duration
	offset  int
	count   int
}

func newLatencyWindow() *latencyWindow {
	return &latencyWindow{samples: make([]time.Duration, latencySamples)}
}

func (w *latencyWindow) add(rtt time.Duration) {
	w.samples[w.offset] = rtt
	w.offset = (w.offset + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
}

func (w *latencyWindow) floats() []float64 {
	out := make([]float64, 0, w.count)
	for _, s := range w.samples[:w.count] {
		out = append(out, float64(s))
	}
	return out
}

// min returns the smallest sample, or 0 with too few samples.
func (w *latencyWindow) min() time.Duration {
	if w.count < minLatencySamples {
		return 0
	}
	m, err := stats.Min(w.floats())
	if err != nil {
		return 0
	}
	return time.Duration(m)
}

// percentile returns the perc percentile of the samples, or 0 with too few
// samples.
func (w *latencyWindow) percentile(perc float64) time.Duration {
	if w.count < minLatencySamples {
		return 0
	}
	p, err := stats.Percentile(w.floats(), perc)
	if err != nil {
		return 0
	}
	return time.Duration(p)
}
