// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package conn

import (
	"context"
	"sync/atomic"

	"github.com/ikmak/rsmonitor/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// NewDriverDialer returns a Dialer that opens a direct connection to each
// host with the official Go driver.
func NewDriverDialer(opts ...Option) Dialer {
	cfg := newConfig(opts...)
	return DialerFunc(func(ctx context.Context, addr model.Addr) (Connection, error) {
		return dialDriver(ctx, cfg, addr)
	})
}

func dialDriver(ctx context.Context, cfg *config, addr model.Addr) (Connection, error) {
	clientOpts := make([]*options.ClientOptions, 0, len(cfg.clientOpts)+1)
	clientOpts = append(clientOpts, cfg.clientOpts...)

	own := options.Client().
		SetHosts([]string{addr.String()}).
		SetDirect(true).
		SetConnectTimeout(cfg.connectTimeout).
		SetServerSelectionTimeout(cfg.connectTimeout)
	if cfg.appName != "" {
		own.SetAppName(cfg.appName)
	}
	clientOpts = append(clientOpts, own)

	client, err := mongo.Connect(ctx, options.MergeClientOptions(clientOpts...))
	if err != nil {
		return nil, NewDialError(addr, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()
	if err = client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, NewDialError(addr, err)
	}

	return &driverConnection{addr: addr, client: client}, nil
}

type driverConnection struct {
	addr   model.Addr
	client *mongo.Client
	closed int32
}

func (c *driverConnection) RunCommand(ctx context.Context, cmd interface{}) (bson.Raw, error) {
	raw, err := c.client.Database("admin").RunCommand(ctx, cmd).DecodeBytes()
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (c *driverConnection) Alive() bool {
	return atomic.LoadInt32(&c.closed) == 0
}

func (c *driverConnection) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	return c.client.Disconnect(context.Background())
}
