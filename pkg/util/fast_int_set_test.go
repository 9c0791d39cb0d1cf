// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package util

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"
)

func TestFastIntSet(t *testing.T) {
	for _, mVal := range []int{1, 8, 30, smallCutoff, 2 * smallCutoff, 4 * smallCutoff} {
		m := mVal
		t.Run(fmt.Sprintf("%d", m), func(t *testing.T) {
			rng := rand.New(rand.NewSource(int64(m)))
			in := make([]bool, m)

			var s FastIntSet
			for i := 0; i < 500; i++ {
				v := rng.Intn(m)
				if rng.Intn(2) == 0 {
					in[v] = true
					s.Add(v)
				} else {
					in[v] = false
					s.Remove(v)
				}
				var expected []int
				for j := 0; j < m; j++ {
					if in[j] != s.Contains(j) {
						t.Fatalf("incorrect result for Contains(%d), expected %t", j, in[j])
					}
					if in[j] {
						expected = append(expected, j)
					}
				}
				if (len(expected) == 0) != s.Empty() {
					t.Fatalf("incorrect result for Empty(), expected %t", len(expected) == 0)
				}
				if s.Len() != len(expected) {
					t.Fatalf("incorrect result for Len(): %d, expected %d", s.Len(), len(expected))
				}
				if o := s.Ordered(); !reflect.DeepEqual(expected, o) {
					t.Fatalf("Ordered returned %v, expected %v", o, expected)
				}
				c := s.Copy()
				if !c.Equals(s) || !s.Equals(c) {
					t.Fatalf("expected equality: %v, %v", s, c)
				}
				c.Add(m + 1)
				if s.Contains(m + 1) {
					t.Fatalf("copy is not independent of %v", s)
				}
			}
		})
	}
}

func TestFastIntSetSetOps(t *testing.T) {
	testCases := []struct {
		a, b                      []int
		union, intersection, diff string
		intersects, subset        bool
	}{
		{
			a: []int{1, 2, 3}, b: []int{3, 4},
			union: "(1-4)", intersection: "(3)", diff: "(1,2)",
			intersects: true, subset: false,
		},
		{
			a: []int{1, 2}, b: []int{1, 2, 100},
			union: "(1,2,100)", intersection: "(1,2)", diff: "()",
			intersects: true, subset: true,
		},
		{
			a: []int{200, 300}, b: []int{5},
			union: "(5,200,300)", intersection: "()", diff: "(200,300)",
			intersects: false, subset: false,
		},
	}
	for i, tc := range testCases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			a, b := MakeFastIntSet(tc.a...), MakeFastIntSet(tc.b...)
			if s := a.Union(b).String(); s != tc.union {
				t.Errorf("union: expected %s, got %s", tc.union, s)
			}
			if s := a.Intersection(b).String(); s != tc.intersection {
				t.Errorf("intersection: expected %s, got %s", tc.intersection, s)
			}
			if s := a.Difference(b).String(); s != tc.diff {
				t.Errorf("difference: expected %s, got %s", tc.diff, s)
			}
			if a.Intersects(b) != tc.intersects {
				t.Errorf("intersects: expected %t", tc.intersects)
			}
			if a.SubsetOf(b) != tc.subset {
				t.Errorf("subset: expected %t", tc.subset)
			}
			// The receivers must not change.
			if !a.Equals(MakeFastIntSet(tc.a...)) || !b.Equals(MakeFastIntSet(tc.b...)) {
				t.Errorf("set operation modified its inputs: %s %s", a, b)
			}
		})
	}
}

func TestFastIntSetAddRange(t *testing.T) {
	max := smallCutoff + 20
	for from := -5; from <= max; from += 3 {
		for to := from; to <= max; to += 7 {
			var set FastIntSet
			set.AddRange(from, to)
			expected := from
			set.ForEach(func(actual int) {
				if expected != actual {
					t.Fatalf("expected next value in FastIntSet to be %d, got %d", expected, actual)
				}
				expected++
			})
			if expected != to+1 {
				t.Fatalf("expected last value %d, got %d", to, expected-1)
			}
		}
	}
}

func TestFastIntSetString(t *testing.T) {
	testCases := []struct {
		vals []int
		exp  string
	}{
		{vals: []int{}, exp: "()"},
		{vals: []int{-5, -3, -2, -1, 0, 1, 2, 3, 4, 5}, exp: "(-5,-3,-2,-1,0-5)"},
		{vals: []int{0, 1, 3, 4, 5}, exp: "(0,1,3-5)"},
	}
	for i, tc := range testCases {
		t.Run(fmt.Sprintf("%d", i), func(t *testing.T) {
			s := MakeFastIntSet(tc.vals...)
			if str := s.String(); str != tc.exp {
				t.Errorf("expected %s, got %s", tc.exp, str)
			}
		})
	}
}
