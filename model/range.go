// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package model

import "fmt"

// Range is an inclusive range of wire versions.
type Range struct {
	Min int32
	Max int32
}

// Includes returns a bool indicating whether the supplied
// integer is included in the range.
func (r Range) Includes(i int32) bool {
	return i >= r.Min && i <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d]", r.Min, r.Max)
}
