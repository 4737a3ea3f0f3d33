// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import (
	"bytes"
	"sort"
)

// Tag is a name/value pair.
type Tag struct {
	Name  string
	Value string
}

// NewTagSet creates a new tag set by taking the entries in pairs.
func NewTagSet(tags ...string) TagSet {
	if len(tags)%2 != 0 {
		panic("model.NewTagSet: argument count is odd")
	}

	set := TagSet{}
	for i := 0; i < len(tags); i += 2 {
		set = append(set, Tag{Name: tags[i], Value: tags[i+1]})
	}
	return set
}

// NewTagSetFromMap creates a new tag set from a map. The resulting set is
// ordered by tag name.
func NewTagSetFromMap(m map[string]string) TagSet {
	set := make(TagSet, 0, len(m))
	for k, v := range m {
		set = append(set, Tag{Name: k, Value: v})
	}
	sort.Slice(set, func(i, j int) bool { return set[i].Name < set[j].Name })

	return set
}

// NewTagSetsFromMaps creates new tag sets from maps.
func NewTagSetsFromMaps(maps []map[string]string) []TagSet {
	sets := make([]TagSet, 0, len(maps))
	for _, m := range maps {
		sets = append(sets, NewTagSetFromMap(m))
	}
	return sets
}

// TagSet is an ordered list of Tags. As a filter, an empty TagSet matches
// every node.
type TagSet []Tag

// Contains indicates whether the name/value pair
// exists in the tag set.
func (ts TagSet) Contains(name, value string) bool {
	for _, t := range ts {
		if t.Name == name && t.Value == value {
			return true
		}
	}

	return false
}

// ContainsAll indicates whether all the name/value pairs
// exist in the tag set.
func (ts TagSet) ContainsAll(other []Tag) bool {
	for _, ot := range other {
		if !ts.Contains(ot.Name, ot.Value) {
			return false
		}
	}

	return true
}

// ToMap returns the tag set as a name to value map.
func (ts TagSet) ToMap() map[string]string {
	m := make(map[string]string, len(ts))
	for _, t := range ts {
		m[t.Name] = t.Value
	}
	return m
}

func (ts TagSet) String() string {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range ts {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(t.Name)
		buf.WriteString(": ")
		buf.WriteString(t.Value)
	}
	buf.WriteByte('}')
	return buf.String()
}
