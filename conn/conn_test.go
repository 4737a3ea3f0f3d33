// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package conn

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ikmak/rsmonitor/model"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

type fakeConn struct {
	reply  bson.D
	err    error
	closed bool
}

func (c *fakeConn) RunCommand(context.Context, interface{}) (bson.Raw, error) {
	if c.err != nil {
		return nil, c.err
	}
	return bson.Marshal(c.reply)
}

func (c *fakeConn) Alive() bool { return !c.closed }

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestIsMaster(t *testing.T) {
	t.Parallel()

	addr := model.Addr("a:27017")

	t.Run("ok", func(t *testing.T) {
		t.Parallel()

		c := &fakeConn{reply: bson.D{
			{Key: "ismaster", Value: true},
			{Key: "setName", Value: "rs"},
			{Key: "hosts", Value: bson.A{"a:27017", "b:27017"}},
			{Key: "ok", Value: 1.0},
		}}
		reply, _, err := IsMaster(context.Background(), c, addr)
		require.NoError(t, err)
		require.True(t, reply.IsMaster)
		require.Equal(t, "rs", reply.SetName)
	})
	t.Run("not ok", func(t *testing.T) {
		t.Parallel()

		c := &fakeConn{reply: bson.D{{Key: "ok", Value: 0.0}}}
		_, _, err := IsMaster(context.Background(), c, addr)
		require.Error(t, err)

		var connErr ConnectionError
		require.True(t, errors.As(err, &connErr))
		require.Equal(t, addr, connErr.Addr)
	})
	t.Run("command error", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("socket closed")
		c := &fakeConn{err: cause}
		_, _, err := IsMaster(context.Background(), c, addr)
		require.True(t, errors.Is(err, cause))
		require.Contains(t, err.Error(), "connection(a:27017) isMaster failed: socket closed")
	})
}

func TestConnectionError(t *testing.T) {
	t.Parallel()

	cause := errors.New("refused")
	err := NewDialError("a:27017", cause)

	require.True(t, errors.Is(err, cause))
	require.Equal(t, "connection(a:27017) error occurred during connection handshake: refused", err.Error())

	err = ConnectionError{Addr: "b:27017", message: "isMaster returned ok: 0"}
	require.Equal(t, "connection(b:27017) isMaster returned ok: 0", err.Error())
}

func TestLimitedDialer(t *testing.T) {
	t.Parallel()

	var dialed int
	base := DialerFunc(func(context.Context, model.Addr) (Connection, error) {
		dialed++
		return &fakeConn{}, nil
	})
	d := LimitedDialer(1, base)

	c1, err := d.Dial(context.Background(), "a:27017")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = d.Dial(ctx, "b:27017")
	require.True(t, errors.Is(err, context.DeadlineExceeded))
	require.Equal(t, 1, dialed)

	require.NoError(t, c1.Close())
	require.NoError(t, c1.Close())

	c2, err := d.Dial(context.Background(), "b:27017")
	require.NoError(t, err)
	require.True(t, c2.Alive())
	require.Equal(t, 2, dialed)

	// A failed dial gives its permit back.
	require.NoError(t, c2.Close())
	failing := LimitedDialer(1, DialerFunc(func(context.Context, model.Addr) (Connection, error) {
		return nil, errors.New("refused")
	}))
	for i := 0; i < 3; i++ {
		_, err = failing.Dial(context.Background(), "c:27017")
		require.EqualError(t, err, "refused")
	}
}
