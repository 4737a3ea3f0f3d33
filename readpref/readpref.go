// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

// Package readpref defines read preferences: the role a replica set member
// must have to serve a read, plus the ordered tag sets used to narrow the
// eligible members.
package readpref

import (
	"bytes"
	"fmt"

	"github.com/ikmak/rsmonitor/model"
)

var primary = ReadPref{mode: PrimaryMode}

// Primary constructs a read preference with a PrimaryMode.
func Primary() *ReadPref {
	return &primary
}

// PrimaryPreferred constructs a read preference with a PrimaryPreferredMode.
func PrimaryPreferred(opts ...Option) *ReadPref {
	return New(PrimaryPreferredMode, opts...)
}

// SecondaryPreferred constructs a read preference with a SecondaryPreferredMode.
func SecondaryPreferred(opts ...Option) *ReadPref {
	return New(SecondaryPreferredMode, opts...)
}

// Secondary constructs a read preference with a SecondaryMode.
func Secondary(opts ...Option) *ReadPref {
	return New(SecondaryMode, opts...)
}

// Nearest constructs a read preference with a NearestMode.
func Nearest(opts ...Option) *ReadPref {
	return New(NearestMode, opts...)
}

// New creates a new ReadPref. Tag sets given to a PrimaryMode read preference
// are kept but never consulted.
func New(mode Mode, opts ...Option) *ReadPref {
	rp := &ReadPref{
		mode: mode,
	}

	for _, opt := range opts {
		opt(rp)
	}

	return rp
}

// ReadPref determines which servers are considered suitable for read operations.
type ReadPref struct {
	mode    Mode
	tagSets []model.TagSet
}

// Mode indicates the mode of the read preference.
func (r *ReadPref) Mode() Mode {
	return r.mode
}

// TagSets are multiple tag sets indicating which servers should be
// considered. They are tried in order and the first one matching at least
// one server wins. When none were configured, a single empty tag set is
// returned, which matches every server.
func (r *ReadPref) TagSets() []model.TagSet {
	if len(r.tagSets) == 0 {
		return []model.TagSet{{}}
	}
	return r.tagSets
}

// Equal reports whether both read preferences select the same servers.
func (r *ReadPref) Equal(other *ReadPref) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.mode != other.mode {
		return false
	}
	a, b := r.TagSets(), other.TagSets()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) || !a[i].ContainsAll(b[i]) {
			return false
		}
	}
	return true
}

// String returns a human-readable description of the read preference.
func (r *ReadPref) String() string {
	var b bytes.Buffer
	b.WriteString(r.mode.String())
	if len(r.tagSets) > 0 {
		b.WriteString("(tagSets=[")
		for i, ts := range r.tagSets {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(ts.String())
		}
		b.WriteString("])")
	}
	return b.String()
}

// GoString implements fmt.GoStringer so read preferences print readably with %#v.
func (r *ReadPref) GoString() string {
	return fmt.Sprintf("readpref.ReadPref{%s}", r.String())
}
