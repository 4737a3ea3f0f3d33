// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package conn

import (
	"context"

	"github.com/ikmak/rsmonitor/model"
	"golang.org/x/sync/semaphore"
)

// LimitedDialer returns a Dialer that allows at most max connections from
// dialer to be open at the same time. Dial blocks until a permit is
// available or ctx is done.
func LimitedDialer(max int64, dialer Dialer) Dialer {
	permits := semaphore.NewWeighted(max)
	return DialerFunc(func(ctx context.Context, addr model.Addr) (Connection, error) {
		if err := permits.Acquire(ctx, 1); err != nil {
			return nil, NewDialError(addr, err)
		}

		c, err := dialer.Dial(ctx, addr)
		if err != nil {
			permits.Release(1)
			return nil, err
		}
		return &limitedConn{Connection: c, permits: permits}, nil
	})
}

type limitedConn struct {
	Connection
	permits  *semaphore.Weighted
	released bool
}

func (c *limitedConn) Close() error {
	if !c.released {
		c.released = true
		c.permits.Release(1)
	}
	return c.Connection.Close()
}
