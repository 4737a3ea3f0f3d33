// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// IsMasterResult is the parsed reply of an isMaster command.
type IsMasterResult struct {
	Arbiters      []Addr
	ArbiterOnly   bool
	ElectionID    string
	Hidden        bool
	Hosts         []Addr
	IsMaster      bool
	IsReplicaSet  bool
	LastWriteDate time.Time
	Me            Addr
	Msg           string
	OK            bool
	Passives      []Addr
	Primary       Addr
	Secondary     bool
	SetName       string
	SetVersion    int64
	Tags          map[string]string
	WireVersion   Range
}

// ParseIsMaster extracts an IsMasterResult from a raw reply document. Fields
// that are missing or carry an unexpected type are left at their zero value
// instead of failing the whole reply.
func ParseIsMaster(doc bson.Raw) *IsMasterResult {
	r := &IsMasterResult{Tags: map[string]string{}}

	r.OK = lookupTruthy(doc, "ok")
	r.IsMaster = lookupBool(doc, "ismaster")
	r.Secondary = lookupBool(doc, "secondary")
	r.Hidden = lookupBool(doc, "hidden")
	r.ArbiterOnly = lookupBool(doc, "arbiterOnly")
	r.IsReplicaSet = lookupBool(doc, "isreplicaset")
	r.SetName = lookupString(doc, "setName")
	r.Msg = lookupString(doc, "msg")
	r.Me = Addr(lookupString(doc, "me")).Canonicalize()
	r.Primary = Addr(lookupString(doc, "primary")).Canonicalize()
	r.Hosts = lookupAddrs(doc, "hosts")
	r.Passives = lookupAddrs(doc, "passives")
	r.Arbiters = lookupAddrs(doc, "arbiters")
	r.SetVersion, _ = lookupInt(doc, "setVersion")

	minWire, _ := lookupInt(doc, "minWireVersion")
	maxWire, _ := lookupInt(doc, "maxWireVersion")
	r.WireVersion = Range{Min: int32(minWire), Max: int32(maxWire)}

	if val, err := doc.LookupErr("electionId"); err == nil {
		if oid, ok := val.ObjectIDOK(); ok {
			r.ElectionID = oid.Hex()
		}
	}

	if val, err := doc.LookupErr("lastWrite", "lastWriteDate"); err == nil {
		if ms, ok := val.DateTimeOK(); ok {
			r.LastWriteDate = time.Unix(ms/1e3, ms%1e3*1e6).UTC()
		}
	}

	if val, err := doc.LookupErr("tags"); err == nil {
		if tags, ok := val.DocumentOK(); ok {
			elems, err := tags.Elements()
			if err == nil {
				for _, elem := range elems {
					if s, ok := elem.Value().StringValueOK(); ok {
						r.Tags[elem.Key()] = s
					}
				}
			}
		}
	}

	return r
}

// Members returns the hosts and passives listed in the reply. Arbiters are
// excluded because they never serve reads.
func (r *IsMasterResult) Members() []Addr {
	members := make([]Addr, 0, len(r.Hosts)+len(r.Passives))
	members = append(members, r.Hosts...)
	members = append(members, r.Passives...)
	return members
}

// Kind classifies the reply.
func (r *IsMasterResult) Kind() ServerKind {
	if !r.OK {
		return Unknown
	}

	switch {
	case r.IsReplicaSet:
		return RSGhost
	case r.SetName != "":
		switch {
		case r.IsMaster:
			return RSPrimary
		case r.Hidden:
			return RSMember
		case r.Secondary:
			return RSSecondary
		case r.ArbiterOnly:
			return RSArbiter
		default:
			return RSMember
		}
	case r.Msg == "isdbgrid":
		return Mongos
	}

	return Standalone
}

func lookupBool(doc bson.Raw, key string) bool {
	val, err := doc.LookupErr(key)
	if err != nil {
		return false
	}
	b, _ := val.BooleanOK()
	return b
}

// lookupTruthy accepts both boolean and numeric values, as "ok" is usually
// sent as a double.
func lookupTruthy(doc bson.Raw, key string) bool {
	val, err := doc.LookupErr(key)
	if err != nil {
		return false
	}
	if b, ok := val.BooleanOK(); ok {
		return b
	}
	if n, ok := rawInt(val); ok {
		return n != 0
	}
	return false
}

func lookupString(doc bson.Raw, key string) string {
	val, err := doc.LookupErr(key)
	if err != nil {
		return ""
	}
	s, _ := val.StringValueOK()
	return s
}

func lookupInt(doc bson.Raw, key string) (int64, bool) {
	val, err := doc.LookupErr(key)
	if err != nil {
		return 0, false
	}
	return rawInt(val)
}

func rawInt(val bson.RawValue) (int64, bool) {
	if i, ok := val.Int32OK(); ok {
		return int64(i), true
	}
	if i, ok := val.Int64OK(); ok {
		return i, true
	}
	if f, ok := val.DoubleOK(); ok {
		return int64(f), true
	}
	return 0, false
}

func lookupAddrs(doc bson.Raw, key string) []Addr {
	val, err := doc.LookupErr(key)
	if err != nil {
		return nil
	}
	arr, ok := val.ArrayOK()
	if !ok {
		return nil
	}
	values, err := arr.Values()
	if err != nil {
		return nil
	}

	hosts := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.StringValueOK(); ok {
			hosts = append(hosts, s)
		}
	}
	return NewAddrs(hosts...)
}
