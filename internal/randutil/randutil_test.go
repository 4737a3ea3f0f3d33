// Copyright (C) MongoDB, Inc. 2022-present.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may
// not use this file except in compliance with the License. You may obtain
// a copy of the License at http://www.apache.org/licenses/LICENSE-2.0

package randutil

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLockedRandConcurrent(t *testing.T) {
	t.Parallel()

	r := NewLockedRand(rand.NewSource(1))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				x := r.Intn(3)
				if x < 0 || x >= 3 {
					t.Errorf("Intn(3) returned %d", x)
				}
			}
		}()
	}
	wg.Wait()
}

func TestLockedRandDeterministic(t *testing.T) {
	t.Parallel()

	a := NewLockedRand(rand.NewSource(42))
	b := NewLockedRand(rand.NewSource(42))
	for i := 0; i < 10; i++ {
		require.Equal(t, a.Intn(100), b.Intn(100))
	}

	x := NewCryptoSeededRand().Intn(4)
	require.True(t, x >= 0 && x < 4)
}
