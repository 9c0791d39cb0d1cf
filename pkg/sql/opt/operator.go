// Copyright 2017 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

package opt

import "fmt"

// Operator is a scalar comparison operator that can drive a statistics
// estimate.
type Operator uint8

const (
	// UnknownOp is the zero value; it is never a valid comparison.
	UnknownOp Operator = iota

	// EqOp is =.
	EqOp
	// NeOp is <>.
	NeOp
	// LtOp is <.
	LtOp
	// LeOp is <=.
	LeOp
	// GtOp is >.
	GtOp
	// GeOp is >=.
	GeOp

	numOperators
)

var operatorNames = [...]string{
	UnknownOp: "unknown",
	EqOp:      "=",
	NeOp:      "<>",
	LtOp:      "<",
	LeOp:      "<=",
	GtOp:      ">",
	GeOp:      ">=",
}

func (op Operator) String() string {
	if op >= numOperators {
		return fmt.Sprintf("Operator(%d)", op)
	}
	return operatorNames[op]
}

// SafeValue implements redact.SafeValue.
func (Operator) SafeValue() {}

// IsComparison returns true for the six comparison operators.
func (op Operator) IsComparison() bool {
	return op > UnknownOp && op < numOperators
}

// IsRange returns true for <, <=, > and >=.
func (op Operator) IsRange() bool {
	switch op {
	case LtOp, LeOp, GtOp, GeOp:
		return true
	}
	return false
}

// Commute returns the operator that gives the same result when the operands
// are swapped: a < b is equivalent to b > a.
func (op Operator) Commute() Operator {
	switch op {
	case LtOp:
		return GtOp
	case LeOp:
		return GeOp
	case GtOp:
		return LtOp
	case GeOp:
		return LeOp
	}
	return op
}

// Negate returns the operator that is the logical complement of op for
// non-NULL operands: NOT (a < b) is equivalent to a >= b.
func (op Operator) Negate() Operator {
	switch op {
	case EqOp:
		return NeOp
	case NeOp:
		return EqOp
	case LtOp:
		return GeOp
	case LeOp:
		return GtOp
	case GtOp:
		return LeOp
	case GeOp:
		return LtOp
	}
	return op
}

// ParseOperator returns the operator with the given SQL spelling.
func ParseOperator(s string) (Operator, bool) {
	switch s {
	case "!=":
		return NeOp, true
	case "==":
		return EqOp, true
	}
	for op := EqOp; op < numOperators; op++ {
		if operatorNames[op] == s {
			return op, true
		}
	}
	return UnknownOp, false
}
