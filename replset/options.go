// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"time"

	"github.com/ikmak/rsmonitor/conn"
	"github.com/ikmak/rsmonitor/event"
	"github.com/ikmak/rsmonitor/internal/logger"
)

const (
	defaultLatencyThreshold       = 15 * time.Millisecond
	defaultRefreshPeriod          = 30 * time.Second
	defaultServerSelectionTimeout = 15 * time.Second
	defaultConnectTimeout         = 5 * time.Second
	defaultMaxConcurrentChecks    = 16

	// minRefreshInterval rate limits background rounds started by
	// RequestImmediateCheck.
	minRefreshInterval = 500 * time.Millisecond
)

func newConfig(opts ...Option) *config {
	cfg := &config{
		latencyThreshold:       defaultLatencyThreshold,
		refreshPeriod:          defaultRefreshPeriod,
		serverSelectionTimeout: defaultServerSelectionTimeout,
		connectTimeout:         defaultConnectTimeout,
		maxConcurrentChecks:    defaultMaxConcurrentChecks,
	}

	cfg.apply(opts...)

	if cfg.dialer == nil {
		cfg.dialer = conn.NewDriverDialer(conn.ConnectTimeout(cfg.connectTimeout))
	}
	if cfg.selector == nil {
		cfg.selector = RandomHostSelector()
	}
	if cfg.maxConcurrentChecks < 1 {
		cfg.maxConcurrentChecks = 1
	}

	return cfg
}

// Option configures a Monitor, or every Monitor of a Registry.
type Option func(*config)

type config struct {
	latencyThreshold       time.Duration
	refreshPeriod          time.Duration
	serverSelectionTimeout time.Duration
	connectTimeout         time.Duration
	maxConcurrentChecks    int64
	dialer                 conn.Dialer
	selector               HostSelector
	logSink                logger.LogSink
	componentLevels        map[logger.Component]logger.Level
	monitor                *event.SetMonitor

	// logger is shared by the monitors of a registry.
	logger *logger.Logger
}

func (c *config) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// WithLatencyThreshold sets the width of the nearest window: hosts whose
// latency is within d of the fastest candidate are eligible.
func WithLatencyThreshold(d time.Duration) Option {
	return func(c *config) {
		c.latencyThreshold = d
	}
}

// WithRefreshPeriod sets how often the set is refreshed in the background.
// A period of zero or less disables background refreshes.
func WithRefreshPeriod(d time.Duration) Option {
	return func(c *config) {
		c.refreshPeriod = d
	}
}

// WithServerSelectionTimeout bounds how long GetHostOrRefresh waits for a
// matching host.
func WithServerSelectionTimeout(d time.Duration) Option {
	return func(c *config) {
		c.serverSelectionTimeout = d
	}
}

// WithConnectTimeout bounds each dial and isMaster sent to a host.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *config) {
		c.connectTimeout = d
	}
}

// WithDialer sets the dialer used to reach hosts.
func WithDialer(d conn.Dialer) Option {
	return func(c *config) {
		c.dialer = d
	}
}

// WithHostSelector sets the strategy choosing among the hosts of the nearest
// window.
func WithHostSelector(s HostSelector) Option {
	return func(c *config) {
		c.selector = s
	}
}

// WithDeterministicHostSelection makes selection always pick the first
// eligible host in host order instead of a random one.
func WithDeterministicHostSelection(deterministic bool) Option {
	return func(c *config) {
		if deterministic {
			c.selector = FirstHostSelector()
		} else {
			c.selector = RandomHostSelector()
		}
	}
}

// WithMaxConcurrentChecks bounds the number of hosts contacted at the same
// time by one monitor.
func WithMaxConcurrentChecks(n int64) Option {
	return func(c *config) {
		c.maxConcurrentChecks = n
	}
}

// WithLogSink sets the sink for log messages.
func WithLogSink(sink logger.LogSink) Option {
	return func(c *config) {
		c.logSink = sink
	}
}

// WithComponentLevels sets the log level of each component, taking
// precedence over the MONGODB_LOG_* environment variables.
func WithComponentLevels(levels map[logger.Component]logger.Level) Option {
	return func(c *config) {
		c.componentLevels = levels
	}
}

// WithMonitor sets the hooks called on topology changes.
func WithMonitor(m *event.SetMonitor) Option {
	return func(c *config) {
		c.monitor = m
	}
}

func withLogger(l *logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}
