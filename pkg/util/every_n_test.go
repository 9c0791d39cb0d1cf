// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEveryN(t *testing.T) {
	start := time.Now()
	en := Every(time.Minute)
	testCases := []struct {
		t        time.Duration // time since start
		expected bool
	}{
		{0, true}, // the first attempt should always succeed
		{0, false},
		{time.Second, false},
		{time.Minute - 1, false},
		{time.Minute, true},
		{time.Minute, false},
		{time.Minute + 30*time.Second, false},
		{10 * time.Minute, true},
		{10 * time.Minute, false},
		{11 * time.Minute, true},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.expected, en.ShouldProcess(start.Add(tc.t)), "at %s", tc.t)
	}
}

func TestEveryNZeroValue(t *testing.T) {
	var en EveryN
	now := time.Now()
	for i := 0; i < 3; i++ {
		require.True(t, en.ShouldProcess(now))
	}
}
