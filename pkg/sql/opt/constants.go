// Copyright 2019 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

// Epsilon is the tolerance used when comparing estimated frequencies and row
// counts, which accumulate floating point error across operators.
const Epsilon = 1e-10
