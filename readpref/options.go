// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package readpref

import (
	"github.com/ikmak/rsmonitor/model"
)

// Option configures a read preference
type Option func(*ReadPref)

// WithTags sets a single tag set used to match
// a server. The last call to WithTags or WithTagSets
// overrides all previous calls to either method.
func WithTags(tags ...string) Option {
	return WithTagSets(model.NewTagSet(tags...))
}

// WithTagSets sets the tag sets used to match
// a server. The last call to WithTags or WithTagSets
// overrides all previous calls to either method.
func WithTagSets(tagSets ...model.TagSet) Option {
	return func(rp *ReadPref) {
		rp.tagSets = tagSets
	}
}

// WithTagMaps is WithTagSets for filters expressed as maps.
func WithTagMaps(maps ...map[string]string) Option {
	return WithTagSets(model.NewTagSetsFromMaps(maps)...)
}
