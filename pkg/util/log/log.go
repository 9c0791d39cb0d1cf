// Copyright 2024 The Cockroach Authors.
//
// Use of this software is governed by the CockroachDB Software License
// included in the /LICENSE file.

// Package log is the logging facade used throughout the estimator. It keeps
// the call shape of the CockroachDB log package (context first, printf
// style, verbosity-gated events) on top of a zerolog backend.
package log

import (
	"context"
	"sync/atomic"

	"github.com/cockroachdb/logtags"
	"github.com/cockroachdb/redact"
	"github.com/rs/zerolog"
)

// Level specifies a level of verbosity for V logs. Higher is more verbose.
type Level int32

// Severity identifies the sort of log: info, warning etc.
type Severity int8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) zerologLevel() zerolog.Level {
	switch s {
	case SeverityWarning:
		return zerolog.WarnLevel
	case SeverityError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

type logState struct {
	logger zerolog.Logger
	// redactable keeps the redaction markers in the emitted messages.
	redactable bool
}

var (
	state     atomic.Pointer[logState]
	verbosity atomic.Int32
)

func init() {
	SetLogger(zerolog.Nop())
}

// SetLogger installs the zerolog logger all log calls are routed to.
func SetLogger(logger zerolog.Logger) {
	prev := state.Load()
	s := &logState{logger: logger}
	if prev != nil {
		s.redactable = prev.redactable
	}
	state.Store(s)
}

// SetRedactable controls whether messages keep their redaction markers.
func SetRedactable(redactable bool) {
	prev := state.Load()
	state.Store(&logState{logger: prev.logger, redactable: redactable})
}

// SetVerbosity sets the global verbosity level and returns a function that
// restores the previous one.
func SetVerbosity(level Level) (restore func()) {
	old := verbosity.Swap(int32(level))
	return func() { verbosity.Store(old) }
}

// V returns true if the logging verbosity is set to the specified level or
// higher.
func V(level Level) bool {
	return Level(verbosity.Load()) >= level
}

// ExpensiveLogEnabled is used to test whether effort should be used to
// produce log messages whose construction has a measurable cost.
func ExpensiveLogEnabled(ctx context.Context, level Level) bool {
	return V(level)
}

// Infof logs to the INFO severity.
func Infof(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, SeverityInfo, format, args...)
}

// Warningf logs to the WARNING severity.
func Warningf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, SeverityWarning, format, args...)
}

// Errorf logs to the ERROR severity.
func Errorf(ctx context.Context, format string, args ...interface{}) {
	logf(ctx, SeverityError, format, args...)
}

// VEventf logs the formatted message at INFO severity if the verbosity is at
// least the given level.
func VEventf(ctx context.Context, level Level, format string, args ...interface{}) {
	if V(level) {
		logf(ctx, SeverityInfo, format, args...)
	}
}

// VWarningf is like VEventf but logs at WARNING severity.
func VWarningf(ctx context.Context, level Level, format string, args ...interface{}) {
	if V(level) {
		logf(ctx, SeverityWarning, format, args...)
	}
}

func logf(ctx context.Context, sev Severity, format string, args ...interface{}) {
	s := state.Load()
	ev := s.logger.WithLevel(sev.zerologLevel())
	if ev == nil {
		return
	}
	if tags := logtags.FromContext(ctx); tags != nil {
		ev = ev.Str("tags", tags.String())
	}
	msg := redact.Sprintf(format, args...)
	if s.redactable {
		ev.Msg(string(msg))
		return
	}
	ev.Msg(msg.StripMarkers())
}
