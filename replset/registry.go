// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package replset

import (
	"context"
	"sort"
	"sync"

	"github.com/ikmak/rsmonitor/internal/logger"
	"github.com/ikmak/rsmonitor/model"
	"golang.org/x/sync/errgroup"
)

type registryState uint8

const (
	registryRunning registryState = iota
	registryShutdown
)

// Registry owns the monitors of a process, one per set name. Monitors
// returned by a Registry must not be used after Shutdown.
type Registry struct {
	opts []Option

	mu       sync.Mutex
	state    registryState
	monitors map[string]*Monitor
	logger   *logger.Logger
}

// NewRegistry returns a running registry. opts apply to every monitor it
// creates.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{opts: opts}
	r.Initialize()
	return r
}

// Initialize makes a shut down registry usable again. It does nothing on a
// running registry.
func (r *Registry) Initialize() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.monitors != nil && r.state == registryRunning {
		return
	}

	cfg := &config{}
	cfg.apply(r.opts...)

	r.state = registryRunning
	r.monitors = make(map[string]*Monitor)
	r.logger = logger.New(cfg.logSink, cfg.componentLevels)
}

// CreateIfNeeded returns the monitor for name, creating it with seeds when
// there is none. The seeds of an existing monitor are not changed.
func (r *Registry) CreateIfNeeded(name string, seeds []model.Addr) (*Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != registryRunning {
		return nil, ErrMonitorUnavailable
	}

	if m, ok := r.monitors[name]; ok {
		return m, nil
	}

	opts := append(append([]Option(nil), r.opts...), withLogger(r.logger))
	m := NewMonitor(name, seeds, opts...)
	r.monitors[name] = m
	return m, nil
}

// Get returns the monitor for name.
func (r *Registry) Get(name string) (*Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != registryRunning {
		return nil, ErrMonitorUnavailable
	}

	m, ok := r.monitors[name]
	if !ok {
		return nil, ErrMonitorNotFound
	}
	return m, nil
}

// Remove closes and forgets the monitor for name.
func (r *Registry) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	if r.state != registryRunning {
		r.mu.Unlock()
		return ErrMonitorUnavailable
	}
	m, ok := r.monitors[name]
	delete(r.monitors, name)
	r.mu.Unlock()

	if !ok {
		return ErrMonitorNotFound
	}
	return m.Close(ctx)
}

// Names returns the names of the monitored sets, sorted.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.monitors))
	for name := range r.monitors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Report returns the diagnostic view of every set.
func (r *Registry) Report() map[string]SetInfo {
	r.mu.Lock()
	monitors := make([]*Monitor, 0, len(r.monitors))
	for _, m := range r.monitors {
		monitors = append(monitors, m)
	}
	r.mu.Unlock()

	report := make(map[string]SetInfo, len(monitors))
	for _, m := range monitors {
		report[m.Name()] = m.Info()
	}
	return report
}

// Shutdown closes every monitor. Callers blocked in a monitor fail with
// ErrMonitorShutdown, and later registry calls fail with
// ErrMonitorUnavailable until Initialize is called.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if r.state == registryShutdown {
		r.mu.Unlock()
		return nil
	}
	r.state = registryShutdown
	monitors := r.monitors
	r.monitors = map[string]*Monitor{}
	l := r.logger
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, m := range monitors {
		m := m
		g.Go(func() error {
			return m.Close(gctx)
		})
	}
	err := g.Wait()

	l.Close()
	return err
}
