// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package config loads monitor settings from a TOML file and from RSM_*
// environment variables, the latter optionally read from dotenv files.
package config

import (
	"io/ioutil"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ikmak/rsmonitor/conn"
	"github.com/ikmak/rsmonitor/internal/logger"
	"github.com/ikmak/rsmonitor/model"
	"github.com/ikmak/rsmonitor/replset"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Environment variables overriding the file settings.
const (
	EnvSetName                    = "RSM_SET_NAME"
	EnvSeeds                      = "RSM_SEEDS"
	EnvLatencyThreshold           = "RSM_LATENCY_THRESHOLD"
	EnvRefreshPeriod              = "RSM_REFRESH_PERIOD"
	EnvServerSelectionTimeout     = "RSM_SERVER_SELECTION_TIMEOUT"
	EnvConnectTimeout             = "RSM_CONNECT_TIMEOUT"
	EnvMaxConcurrentChecks        = "RSM_MAX_CONCURRENT_CHECKS"
	EnvMaxConnections             = "RSM_MAX_CONNECTIONS"
	EnvDeterministicHostSelection = "RSM_DETERMINISTIC_HOST_SELECTION"
	EnvAppName                    = "RSM_APP_NAME"
	EnvClientURI                  = "RSM_CLIENT_URI"
	EnvLogLevel                   = "RSM_LOG_LEVEL"
)

// Config holds the settings of one monitored set. Durations are strings in
// time.ParseDuration format; empty values keep the monitor defaults.
type Config struct {
	SetName                    string   `toml:"set_name"`
	Seeds                      []string `toml:"seeds"`
	LatencyThreshold           string   `toml:"latency_threshold"`
	RefreshPeriod              string   `toml:"refresh_period"`
	ServerSelectionTimeout     string   `toml:"server_selection_timeout"`
	ConnectTimeout             string   `toml:"connect_timeout"`
	MaxConcurrentChecks        int64    `toml:"max_concurrent_checks"`
	DeterministicHostSelection bool     `toml:"deterministic_host_selection"`

	// AppName and ClientURI configure the driver connections used for
	// checks. ClientURI carries credentials and TLS settings; its hosts are
	// ignored.
	AppName   string `toml:"app_name"`
	ClientURI string `toml:"client_uri"`

	// MaxConnections caps the open driver connections of the monitor. A
	// monitor keeps one connection per member, so it must not be lower
	// than the member count. Zero means no cap.
	MaxConnections int64 `toml:"max_connections"`

	// LogLevel applies to every log component.
	LogLevel string `toml:"log_level"`
}

// Load reads the TOML file at path, when path is not empty, and applies the
// RSM_* variables found in envFiles and in the process environment. The
// process environment wins over the files.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "reading config file")
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parsing config file %s", path)
		}
	}

	env := map[string]string{}
	if len(envFiles) > 0 {
		fileEnv, err := godotenv.Read(envFiles...)
		if err != nil {
			return nil, errors.Wrap(err, "reading env files")
		}
		env = fileEnv
	}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "RSM_") {
			if i := strings.IndexByte(kv, '='); i > 0 {
				env[kv[:i]] = kv[i+1:]
			}
		}
	}

	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	strs := map[string]*string{
		EnvSetName:                &c.SetName,
		EnvLatencyThreshold:       &c.LatencyThreshold,
		EnvRefreshPeriod:          &c.RefreshPeriod,
		EnvServerSelectionTimeout: &c.ServerSelectionTimeout,
		EnvConnectTimeout:         &c.ConnectTimeout,
		EnvAppName:                &c.AppName,
		EnvClientURI:              &c.ClientURI,
		EnvLogLevel:               &c.LogLevel,
	}
	for key, dst := range strs {
		if v, ok := env[key]; ok {
			*dst = v
		}
	}

	if v, ok := env[EnvSeeds]; ok {
		c.Seeds = nil
		for _, seed := range strings.Split(v, ",") {
			if seed = strings.TrimSpace(seed); seed != "" {
				c.Seeds = append(c.Seeds, seed)
			}
		}
	}
	ints := map[string]*int64{
		EnvMaxConcurrentChecks: &c.MaxConcurrentChecks,
		EnvMaxConnections:      &c.MaxConnections,
	}
	for key, dst := range ints {
		v, ok := env[key]
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", key)
		}
		*dst = n
	}
	if v, ok := env[EnvDeterministicHostSelection]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvDeterministicHostSelection)
		}
		c.DeterministicHostSelection = b
	}
	return nil
}

// SeedAddrs returns the canonical seed addresses.
func (c *Config) SeedAddrs() []model.Addr {
	seeds := make([]model.Addr, 0, len(c.Seeds))
	for _, seed := range c.Seeds {
		seeds = append(seeds, model.Addr(seed).Canonicalize())
	}
	return seeds
}

// MonitorOptions converts c to monitor options.
func (c *Config) MonitorOptions() ([]replset.Option, error) {
	var opts []replset.Option

	durations := []struct {
		name  string
		value string
		opt   func(time.Duration) replset.Option
	}{
		{"latency_threshold", c.LatencyThreshold, replset.WithLatencyThreshold},
		{"refresh_period", c.RefreshPeriod, replset.WithRefreshPeriod},
		{"server_selection_timeout", c.ServerSelectionTimeout, replset.WithServerSelectionTimeout},
		{"connect_timeout", c.ConnectTimeout, replset.WithConnectTimeout},
	}
	var connectTimeout time.Duration
	for _, d := range durations {
		if d.value == "" {
			continue
		}
		v, err := time.ParseDuration(d.value)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid %s", d.name)
		}
		if d.name == "connect_timeout" {
			connectTimeout = v
		}
		opts = append(opts, d.opt(v))
	}

	if c.MaxConcurrentChecks > 0 {
		opts = append(opts, replset.WithMaxConcurrentChecks(c.MaxConcurrentChecks))
	}
	if c.DeterministicHostSelection {
		opts = append(opts, replset.WithDeterministicHostSelection(true))
	}

	if c.AppName != "" || c.ClientURI != "" || c.MaxConnections > 0 {
		var dialOpts []conn.Option
		if c.AppName != "" {
			dialOpts = append(dialOpts, conn.AppName(c.AppName))
		}
		if connectTimeout > 0 {
			dialOpts = append(dialOpts, conn.ConnectTimeout(connectTimeout))
		}
		if c.ClientURI != "" {
			clientOpts := options.Client().ApplyURI(c.ClientURI)
			if err := clientOpts.Validate(); err != nil {
				return nil, errors.Wrap(err, "invalid client_uri")
			}
			dialOpts = append(dialOpts, conn.ClientOptions(clientOpts))
		}
		opts = append(opts, replset.WithDialer(c.limitDialer(conn.NewDriverDialer(dialOpts...))))
	}

	if c.LogLevel != "" {
		opts = append(opts, replset.WithComponentLevels(map[logger.Component]logger.Level{
			logger.ComponentAll: logger.ParseLevel(c.LogLevel),
		}))
	}

	return opts, nil
}

func (c *Config) limitDialer(d conn.Dialer) conn.Dialer {
	if c.MaxConnections <= 0 {
		return d
	}
	return conn.LimitedDialer(c.MaxConnections, d)
}
