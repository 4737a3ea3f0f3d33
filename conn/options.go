// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package conn

import (
	"time"

	"go.mongodb.org/mongo-driver/mongo/options"
)

func newConfig(opts ...Option) *config {
	cfg := &config{
		connectTimeout: 5 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return cfg
}

// Option configures a dialer.
type Option func(*config)

type config struct {
	appName        string
	connectTimeout time.Duration
	clientOpts     []*options.ClientOptions
}

// AppName sets the application name which gets
// sent to MongoDB on first connection.
func AppName(name string) Option {
	return func(c *config) {
		c.appName = name
	}
}

// ConnectTimeout bounds establishing a connection.
func ConnectTimeout(d time.Duration) Option {
	return func(c *config) {
		c.connectTimeout = d
	}
}

// ClientOptions adds driver client options, e.g. TLS or credentials. The
// host list and direct connection settings are always overridden.
func ClientOptions(opts ...*options.ClientOptions) Option {
	return func(c *config) {
		c.clientOpts = append(c.clientOpts, opts...)
	}
}
