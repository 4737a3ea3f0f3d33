// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package rstest provides an in-memory replica set that answers isMaster
// commands, for testing the monitor without a running deployment.
package rstest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ikmak/rsmonitor/conn"
	"github.com/ikmak/rsmonitor/model"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrHostDown is returned by dials and commands against a killed member.
var ErrHostDown = errors.New("connection refused")

// ReplyHook may rewrite the reply a member sends. It runs under the replica
// set's lock and must not call back into it.
type ReplyHook func(host model.Addr, reply bson.D) bson.D

type member struct {
	addr    model.Addr
	tags    map[string]string
	hidden  bool
	passive bool
	arbiter bool
	removed bool
	down    bool
	delay   time.Duration
}

// ReplicaSet is a mock replica set. All methods are safe for concurrent use.
type ReplicaSet struct {
	mu         sync.Mutex
	name       string
	members    []*member
	primary    model.Addr
	electionID primitive.ObjectID
	setVersion int64
	hook       ReplyHook
	commands   map[model.Addr]int
	dials      map[model.Addr]int
}

// NewReplicaSet creates a set named name with n members called
// "<name>-<i>:27017". The first member is primary.
func NewReplicaSet(name string, n int) *ReplicaSet {
	rs := &ReplicaSet{
		name:       name,
		electionID: primitive.NewObjectID(),
		setVersion: 1,
		commands:   make(map[model.Addr]int),
		dials:      make(map[model.Addr]int),
	}
	for i := 0; i < n; i++ {
		rs.members = append(rs.members, &member{
			addr: model.Addr(fmt.Sprintf("%s-%d:27017", name, i)),
			tags: map[string]string{},
		})
	}
	if n > 0 {
		rs.primary = rs.members[0].addr
	}
	return rs
}

// Name returns the set name.
func (rs *ReplicaSet) Name() string {
	return rs.name
}

// Hosts returns every configured member, in configuration order.
func (rs *ReplicaSet) Hosts() []model.Addr {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var hosts []model.Addr
	for _, m := range rs.members {
		if !m.removed {
			hosts = append(hosts, m.addr)
		}
	}
	return hosts
}

// Primary returns the current primary, or "" when there is none.
func (rs *ReplicaSet) Primary() model.Addr {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.primary
}

// Secondaries returns the configured members that are not primary or arbiter.
func (rs *ReplicaSet) Secondaries() []model.Addr {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	var hosts []model.Addr
	for _, m := range rs.members {
		if !m.removed && !m.arbiter && m.addr != rs.primary {
			hosts = append(hosts, m.addr)
		}
	}
	return hosts
}

// SetPrimary makes host the primary with a new election id. An empty host
// leaves the set without a primary.
func (rs *ReplicaSet) SetPrimary(host model.Addr) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.primary = host
	rs.electionID = primitive.NewObjectID()
}

// Kill makes the given members refuse connections and fail commands.
func (rs *ReplicaSet) Kill(hosts ...model.Addr) {
	rs.update(hosts, func(m *member) { m.down = true })
}

// Restore brings killed members back.
func (rs *ReplicaSet) Restore(hosts ...model.Addr) {
	rs.update(hosts, func(m *member) { m.down = false })
}

// SetTags replaces a member's tags.
func (rs *ReplicaSet) SetTags(host model.Addr, tags map[string]string) {
	rs.update([]model.Addr{host}, func(m *member) {
		m.tags = make(map[string]string, len(tags))
		for k, v := range tags {
			m.tags[k] = v
		}
	})
	rs.bumpVersion()
}

// SetHidden hides or unhides a member.
func (rs *ReplicaSet) SetHidden(host model.Addr, hidden bool) {
	rs.update([]model.Addr{host}, func(m *member) { m.hidden = hidden })
	rs.bumpVersion()
}

// SetPassive makes a member priority zero, listing it under passives.
func (rs *ReplicaSet) SetPassive(host model.Addr, passive bool) {
	rs.update([]model.Addr{host}, func(m *member) { m.passive = passive })
	rs.bumpVersion()
}

// SetArbiter turns a member into an arbiter.
func (rs *ReplicaSet) SetArbiter(host model.Addr, arbiter bool) {
	rs.update([]model.Addr{host}, func(m *member) { m.arbiter = arbiter })
	rs.bumpVersion()
}

// SetDelay delays every command sent to host.
func (rs *ReplicaSet) SetDelay(host model.Addr, d time.Duration) {
	rs.update([]model.Addr{host}, func(m *member) { m.delay = d })
}

// AddMember adds a new member to the configuration.
func (rs *ReplicaSet) AddMember(host model.Addr) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	host = host.Canonicalize()
	for _, m := range rs.members {
		if m.addr == host {
			m.removed = false
			rs.setVersion++
			return
		}
	}
	rs.members = append(rs.members, &member{addr: host, tags: map[string]string{}})
	rs.setVersion++
}

// RemoveMember removes a member from the configuration. The removed process
// keeps answering, but no longer as a member of the set.
func (rs *ReplicaSet) RemoveMember(host model.Addr) {
	rs.update([]model.Addr{host}, func(m *member) { m.removed = true })
	rs.mu.Lock()
	if rs.primary == host.Canonicalize() {
		rs.primary = ""
	}
	rs.mu.Unlock()
	rs.bumpVersion()
}

// SetReplyHook installs a hook that can rewrite replies. A nil hook removes
// it.
func (rs *ReplicaSet) SetReplyHook(hook ReplyHook) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.hook = hook
}

// CommandCount returns the number of commands host has received.
func (rs *ReplicaSet) CommandCount(host model.Addr) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.commands[host.Canonicalize()]
}

// DialCount returns the number of connections opened to host.
func (rs *ReplicaSet) DialCount(host model.Addr) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.dials[host.Canonicalize()]
}

// Dialer returns a conn.Dialer connecting to the set's members.
func (rs *ReplicaSet) Dialer() conn.Dialer {
	return conn.DialerFunc(rs.dial)
}

func (rs *ReplicaSet) dial(ctx context.Context, addr model.Addr) (conn.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, conn.NewDialError(addr, err)
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()

	m := rs.find(addr)
	if m == nil || m.down {
		return nil, conn.NewDialError(addr, ErrHostDown)
	}
	rs.dials[m.addr]++
	return &mockConnection{rs: rs, addr: m.addr}, nil
}

func (rs *ReplicaSet) update(hosts []model.Addr, fn func(*member)) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	for _, h := range hosts {
		if m := rs.find(h); m != nil {
			fn(m)
		}
	}
}

func (rs *ReplicaSet) bumpVersion() {
	rs.mu.Lock()
	rs.setVersion++
	rs.mu.Unlock()
}

func (rs *ReplicaSet) find(addr model.Addr) *member {
	addr = addr.Canonicalize()
	for _, m := range rs.members {
		if m.addr == addr {
			return m
		}
	}
	return nil
}

// reply builds the isMaster document host would send. rs.mu must be held.
func (rs *ReplicaSet) reply(m *member) bson.D {
	if m.removed {
		return bson.D{
			{Key: "ismaster", Value: false},
			{Key: "secondary", Value: false},
			{Key: "info", Value: "Does not have a valid replica set config"},
			{Key: "isreplicaset", Value: true},
			{Key: "ok", Value: 1.0},
		}
	}

	var hosts, passives, arbiters bson.A
	for _, other := range rs.members {
		switch {
		case other.removed || other.hidden:
		case other.arbiter:
			arbiters = append(arbiters, other.addr.String())
		case other.passive:
			passives = append(passives, other.addr.String())
		default:
			hosts = append(hosts, other.addr.String())
		}
	}

	isPrimary := m.addr == rs.primary
	tags := bson.D{}
	for _, t := range model.NewTagSetFromMap(m.tags) {
		tags = append(tags, bson.E{Key: t.Name, Value: t.Value})
	}

	doc := bson.D{
		{Key: "setName", Value: rs.name},
		{Key: "setVersion", Value: rs.setVersion},
		{Key: "ismaster", Value: isPrimary},
		{Key: "secondary", Value: !isPrimary && !m.arbiter},
		{Key: "hosts", Value: hosts},
	}
	if len(passives) > 0 {
		doc = append(doc, bson.E{Key: "passives", Value: passives})
	}
	if len(arbiters) > 0 {
		doc = append(doc, bson.E{Key: "arbiters", Value: arbiters})
	}
	if p := rs.find(rs.primary); p != nil && !p.down {
		doc = append(doc, bson.E{Key: "primary", Value: p.addr.String()})
	}
	if m.hidden {
		doc = append(doc, bson.E{Key: "hidden", Value: true})
	}
	if m.passive {
		doc = append(doc, bson.E{Key: "passive", Value: true})
	}
	if m.arbiter {
		doc = append(doc, bson.E{Key: "arbiterOnly", Value: true})
	}
	if isPrimary {
		doc = append(doc, bson.E{Key: "electionId", Value: rs.electionID})
	}
	doc = append(doc,
		bson.E{Key: "me", Value: m.addr.String()},
		bson.E{Key: "tags", Value: tags},
		bson.E{Key: "lastWrite", Value: bson.D{{Key: "lastWriteDate", Value: primitive.NewDateTimeFromTime(time.Now())}}},
		bson.E{Key: "minWireVersion", Value: int32(0)},
		bson.E{Key: "maxWireVersion", Value: int32(17)},
		bson.E{Key: "ok", Value: 1.0},
	)

	if rs.hook != nil {
		doc = rs.hook(m.addr, doc)
	}
	return doc
}

type mockConnection struct {
	rs   *ReplicaSet
	addr model.Addr

	mu   sync.Mutex
	dead bool
}

var _ conn.Connection = &mockConnection{}

func (c *mockConnection) RunCommand(ctx context.Context, _ interface{}) (bson.Raw, error) {
	c.rs.mu.Lock()
	m := c.rs.find(c.addr)
	var delay time.Duration
	if m != nil {
		delay = m.delay
	}
	c.rs.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			c.markDead()
			return nil, ctx.Err()
		}
	}

	c.rs.mu.Lock()
	defer c.rs.mu.Unlock()

	c.rs.commands[c.addr]++
	if m == nil || m.down || !c.Alive() {
		c.markDead()
		return nil, ErrHostDown
	}

	return bson.Marshal(c.rs.reply(m))
}

func (c *mockConnection) markDead() {
	c.mu.Lock()
	c.dead = true
	c.mu.Unlock()
}

func (c *mockConnection) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.dead
}

func (c *mockConnection) Close() error {
	c.markDead()
	return nil
}
