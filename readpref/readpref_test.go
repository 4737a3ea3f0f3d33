// Copyright (C) MongoDB, Inc. 2017-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package readpref

import (
	"testing"

	"github.com/ikmak/rsmonitor/model"
	"github.com/stretchr/testify/require"
)

func TestPrimary(t *testing.T) {
	subject := Primary()

	require.Equal(t, PrimaryMode, subject.Mode())
	require.Equal(t, []model.TagSet{{}}, subject.TagSets())
	require.Equal(t, "primary", subject.String())
}

func TestSecondary_with_options(t *testing.T) {
	subject := Secondary(
		WithTags("a", "1", "b", "2"),
	)

	require.Equal(t, SecondaryMode, subject.Mode())
	require.Equal(t, []model.TagSet{model.NewTagSet("a", "1", "b", "2")}, subject.TagSets())
	require.Equal(t, "secondary(tagSets=[{a: 1, b: 2}])", subject.String())
}

func TestWithTagSets_last_call_wins(t *testing.T) {
	subject := Nearest(
		WithTags("a", "1"),
		WithTagMaps(map[string]string{"p": "1"}, map[string]string{}),
	)

	require.Equal(t, []model.TagSet{model.NewTagSet("p", "1"), {}}, subject.TagSets())
}

func TestModeFromString(t *testing.T) {
	testCases := []struct {
		in   string
		mode Mode
	}{
		{"primary", PrimaryMode},
		{"PrimaryPreferred", PrimaryPreferredMode},
		{"secondary", SecondaryMode},
		{"secondaryPreferred", SecondaryPreferredMode},
		{"NEAREST", NearestMode},
	}

	for _, tc := range testCases {
		mode, err := ModeFromString(tc.in)
		require.NoError(t, err)
		require.Equal(t, tc.mode, mode)
		require.True(t, mode.IsValid())
	}

	_, err := ModeFromString("fastest")
	require.Error(t, err)
	require.False(t, Mode(42).IsValid())
}

func TestReadPref_Equal(t *testing.T) {
	require.True(t, Secondary().Equal(Secondary(WithTagSets(model.TagSet{}))))
	require.True(t, Nearest(WithTags("a", "1", "b", "2")).Equal(Nearest(WithTags("b", "2", "a", "1"))))
	require.False(t, Nearest(WithTags("a", "1")).Equal(Nearest(WithTags("a", "2"))))
	require.False(t, Nearest().Equal(Secondary()))
	require.False(t, Nearest().Equal(nil))
}
