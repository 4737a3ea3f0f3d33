// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package conn defines the connection collaborator used by the replica set
// monitor: something that can open a connection to a host and run a command
// on it.
package conn

import (
	"context"
	"time"

	"github.com/ikmak/rsmonitor/model"
	"go.mongodb.org/mongo-driver/bson"
)

// Connection runs commands against a single server.
type Connection interface {
	// RunCommand runs cmd against the admin database and returns the reply
	// document.
	RunCommand(context.Context, interface{}) (bson.Raw, error)
	// Alive reports whether the connection can still be used.
	Alive() bool
	// Close closes the connection.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(context.Context, model.Addr) (Connection, error)
}

// DialerFunc is a function that can be used as a Dialer.
type DialerFunc func(context.Context, model.Addr) (Connection, error)

// Dial implements the Dialer interface.
func (df DialerFunc) Dial(ctx context.Context, addr model.Addr) (Connection, error) {
	return df(ctx, addr)
}

var isMasterCmd = bson.D{{Key: "isMaster", Value: 1}}

// IsMaster runs the isMaster command on c and returns the parsed reply along
// with the round trip time of the command.
func IsMaster(ctx context.Context, c Connection, addr model.Addr) (*model.IsMasterResult, time.Duration, error) {
	start := time.Now()
	raw, err := c.RunCommand(ctx, isMasterCmd)
	if err != nil {
		return nil, 0, ConnectionError{Addr: addr, Wrapped: err, message: "isMaster failed"}
	}
	rtt := time.Since(start)

	reply := model.ParseIsMaster(raw)
	if !reply.OK {
		return nil, rtt, ConnectionError{Addr: addr, message: "isMaster returned ok: 0"}
	}

	return reply, rtt, nil
}
