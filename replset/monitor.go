// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package replset monitors MongoDB replica sets and selects members for a
// read preference.
package replset

import (
	"context"
	"sync"
	"time"

	"github.com/ikmak/rsmonitor/conn"
	"github.com/ikmak/rsmonitor/event"
	"github.com/ikmak/rsmonitor/internal/logger"
	"github.com/ikmak/rsmonitor/model"
	"github.com/ikmak/rsmonitor/readpref"
	"golang.org/x/sync/semaphore"
)

// Monitor keeps the view of one replica set up to date and selects hosts
// from it.
type Monitor struct {
	cfg        *config
	set        *SetState
	ownsLogger bool

	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	checkNow chan struct{}
	checks   *semaphore.Weighted
	wg       sync.WaitGroup

	mu     sync.Mutex
	closed bool
	conns  map[model.Addr]conn.Connection
}

// NewMonitor creates a monitor for the set name seeded with seeds. No host
// is contacted until a selection or refresh needs it, or the first
// background refresh is due.
func NewMonitor(name string, seeds []model.Addr, opts ...Option) *Monitor {
	cfg := newConfig(opts...)

	ownsLogger := false
	if cfg.logger == nil {
		cfg.logger = logger.New(cfg.logSink, cfg.componentLevels)
		ownsLogger = true
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Monitor{
		cfg:        cfg,
		set:        newSetState(name, seeds, cfg),
		ownsLogger: ownsLogger,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		checkNow:   make(chan struct{}, 1),
		checks:     semaphore.NewWeighted(cfg.maxConcurrentChecks),
		conns:      make(map[model.Addr]conn.Connection),
	}

	cfg.logger.Print(logger.InfoLevel, logger.ComponentTopology, "starting replica set monitor",
		"setName", name, "seeds", m.set.seeds)

	if em := cfg.monitor; em != nil && em.MonitorOpening != nil {
		em.MonitorOpening(&event.MonitorOpeningEvent{SetName: name, Seeds: m.SeedAddrs()})
	}

	if cfg.refreshPeriod > 0 {
		m.wg.Add(1)
		go m.run()
	}

	return m
}

// Name returns the set name.
func (m *Monitor) Name() string {
	return m.set.name
}

// SeedAddrs returns the seeds the monitor was created with.
func (m *Monitor) SeedAddrs() []model.Addr {
	return append([]model.Addr(nil), m.set.seeds...)
}

// SetState returns the monitor's view of the set.
func (m *Monitor) SetState() *SetState {
	return m.set
}

// GetHostOrRefresh returns a host matching rp. When none matches, it joins
// the current refresh round, starting one if needed, and rechecks every time
// the round learns something. It fails with ErrHostNotFound when the round
// ends without a match, the server selection timeout passes or ctx is done.
func (m *Monitor) GetHostOrRefresh(ctx context.Context, rp *readpref.ReadPref) (model.Addr, error) {
	if rp == nil {
		rp = readpref.Primary()
	}
	if m.isClosed() {
		return "", ErrMonitorShutdown
	}

	if host := m.set.GetMatchingHost(rp); host != "" {
		return host, nil
	}

	timer := time.NewTimer(m.cfg.serverSelectionTimeout)
	defer timer.Stop()

	updated, id := m.set.awaitUpdates()
	defer m.set.removeWaiter(id)

	r := m.StartOrContinueRefresh()
	for {
		select {
		case <-m.done:
			return "", ErrMonitorShutdown
		default:
		}

		step := r.dispatch()

		if host := m.set.GetMatchingHost(rp); host != "" {
			return host, nil
		}
		if step.Kind == StepDone {
			m.cfg.logger.Print(logger.DebugLevel, logger.ComponentServerSelection, "no matching host after refresh",
				"setName", m.Name(), "readPreference", rp.String())
			return "", hostNotFound(m.Name(), rp, "refresh finished without a match")
		}

		select {
		case <-updated:
		case <-timer.C:
			return "", hostNotFound(m.Name(), rp, "server selection timed out")
		case <-ctx.Done():
			return "", hostNotFound(m.Name(), rp, ctx.Err().Error())
		case <-m.done:
			return "", ErrMonitorShutdown
		}
	}
}

// StartOrContinueRefresh returns a handle on the current round, starting a
// new round when none is in progress.
func (m *Monitor) StartOrContinueRefresh() *Refresher {
	s := m.set
	s.lock()
	defer s.unlock()

	if s.currentScan == nil {
		s.currentScan = s.newScan()
		s.logger.Print(logger.DebugLevel, logger.ComponentTopology, "starting refresh round",
			"setName", s.name, "round", s.currentScan.round)
	}
	return &Refresher{set: s, scan: s.currentScan, monitor: m}
}

// RefreshAll drives the current round, or a new one, to completion.
func (m *Monitor) RefreshAll(ctx context.Context) error {
	if m.isClosed() {
		return ErrMonitorShutdown
	}
	return m.StartOrContinueRefresh().RefreshAll(ctx)
}

// FailedHost marks host down at once, e.g. after an error on a connection
// the caller got from selection, and requests a background refresh.
func (m *Monitor) FailedHost(host model.Addr, err error) {
	s := m.set
	s.lock()
	s.markFailed(host.Canonicalize(), err)
	s.unlock()
	s.notify()

	m.RequestImmediateCheck()
}

// IsPrimary reports whether host is the up primary.
func (m *Monitor) IsPrimary(host model.Addr) bool {
	return m.set.IsPrimary(host)
}

// RequestImmediateCheck starts a background refresh without waiting for the
// refresh period. It does nothing when background refreshes are disabled.
func (m *Monitor) RequestImmediateCheck() {
	select {
	case m.checkNow <- struct{}{}:
	default:
	}
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.refreshPeriod)
	defer ticker.Stop()
	rateLimit := time.NewTimer(0)
	defer rateLimit.Stop()

	for {
		select {
		case <-ticker.C:
		case <-m.checkNow:
		case <-m.ctx.Done():
			return
		}

		select {
		case <-rateLimit.C:
		case <-m.ctx.Done():
			return
		}

		if err := m.RefreshAll(m.ctx); err != nil && m.ctx.Err() == nil {
			m.cfg.logger.Print(logger.InfoLevel, logger.ComponentTopology, "background refresh failed",
				"setName", m.Name(), "error", err.Error())
		}

		rateLimit.Reset(minRefreshInterval)
	}
}

// checkHost sends an isMaster to host in its own goroutine and reports the
// result to r.
func (m *Monitor) checkHost(r *Refresher, host model.Addr) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		r.FailedHost(host, ErrMonitorShutdown)
		return
	}
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		m.runCheck(r, host)

		// Contact the hosts the reply revealed. After the last reply of the
		// round this finishes it.
		r.dispatch()
	}()
}

func (m *Monitor) runCheck(r *Refresher, host model.Addr) {
	if err := m.checks.Acquire(m.ctx, 1); err != nil {
		r.FailedHost(host, err)
		return
	}
	defer m.checks.Release(1)

	if em := m.cfg.monitor; em != nil && em.HostCheckStarted != nil {
		em.HostCheckStarted(&event.HostCheckStartedEvent{SetName: m.Name(), Host: host, Round: r.Round()})
	}

	start := time.Now()
	reply, rtt, err := m.isMaster(host)
	if err != nil {
		if em := m.cfg.monitor; em != nil && em.HostCheckFailed != nil {
			em.HostCheckFailed(&event.HostCheckFailedEvent{
				SetName: m.Name(), Host: host, Round: r.Round(), Duration: time.Since(start), Failure: err,
			})
		}
		r.FailedHost(host, err)
		return
	}

	if !compatibleWireVersion(reply.WireVersion) {
		m.cfg.logger.Print(logger.InfoLevel, logger.ComponentTopology, "host wire version is outside the supported range",
			"setName", m.Name(), "host", host.String(), "wireVersion", reply.WireVersion.String(),
			"supported", supportedWireVersions.String())
	}

	m.cfg.logger.Print(logger.DebugLevel, logger.ComponentTopology, "isMaster succeeded",
		"setName", m.Name(), "host", host.String(), "kind", reply.Kind().String(),
		"wireVersion", reply.WireVersion.String(), "rttMicros", rtt.Microseconds())

	if em := m.cfg.monitor; em != nil && em.HostCheckSucceeded != nil {
		em.HostCheckSucceeded(&event.HostCheckSucceededEvent{
			SetName: m.Name(), Host: host, Round: r.Round(), Duration: rtt, Reply: reply,
		})
	}
	r.ReceivedIsMaster(host, rtt, reply)
}

// supportedWireVersions are the wire versions of the servers whose isMaster
// replies this monitor understands.
var supportedWireVersions = model.Range{Min: 0, Max: 25}

// compatibleWireVersion reports whether a server's wire version range
// overlaps supportedWireVersions.
func compatibleWireVersion(r model.Range) bool {
	return supportedWireVersions.Includes(r.Max) || r.Includes(supportedWireVersions.Max)
}

// isMaster runs isMaster on host, reusing the cached connection when there
// is one. A failed cached connection is replaced and the command retried
// once.
func (m *Monitor) isMaster(host model.Addr) (*model.IsMasterResult, time.Duration, error) {
	const maxRetryCount = 2

	var err error
	for i := 0; i < maxRetryCount; i++ {
		c, reused := m.takeConn(host)
		if c == nil {
			ctx, cancel := context.WithTimeout(m.ctx, m.cfg.connectTimeout)
			c, err = m.cfg.dialer.Dial(ctx, host)
			cancel()
			if err != nil {
				m.cfg.logger.Print(logger.DebugLevel, logger.ComponentConnection, "dial failed",
					"setName", m.Name(), "host", host.String(), "error", err.Error())
				return nil, 0, err
			}
		}

		ctx, cancel := context.WithTimeout(m.ctx, m.cfg.connectTimeout)
		reply, rtt, cmdErr := conn.IsMaster(ctx, c, host)
		cancel()
		if cmdErr == nil {
			m.putConn(host, c)
			return reply, rtt, nil
		}

		_ = c.Close()
		err = cmdErr
		if !reused {
			break
		}
	}

	return nil, 0, err
}

func (m *Monitor) takeConn(host model.Addr) (conn.Connection, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conns[host]
	if !ok {
		return nil, false
	}
	delete(m.conns, host)
	if !c.Alive() {
		_ = c.Close()
		return nil, false
	}
	return c, true
}

func (m *Monitor) putConn(host model.Addr, c conn.Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.conns[host]; ok || m.closed {
		_ = c.Close()
		return
	}
	m.conns[host] = c
}

func (m *Monitor) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Close stops background refreshes, wakes every waiter with
// ErrMonitorShutdown and closes the cached connections. It waits for
// in-flight checks until ctx is done.
func (m *Monitor) Close(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.cancel()
	close(m.done)
	m.set.notify()

	finished := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		err = ctx.Err()
	}

	m.mu.Lock()
	for host, c := range m.conns {
		_ = c.Close()
		delete(m.conns, host)
	}
	m.mu.Unlock()

	m.cfg.logger.Print(logger.InfoLevel, logger.ComponentTopology, "stopped replica set monitor", "setName", m.Name())
	if m.ownsLogger {
		m.cfg.logger.Close()
	}

	if em := m.cfg.monitor; em != nil && em.MonitorClosed != nil {
		em.MonitorClosed(&event.MonitorClosedEvent{SetName: m.Name()})
	}

	return err
}
