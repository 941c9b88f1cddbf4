// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package codegen

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// ErrNilDecider is returned by Register when called with a nil Decider.
var ErrNilDecider = errors.New("codegen: decider must not be nil")

// Decider decides whether source may be compiled.
// Implementations are shared by every installed runtime and may be called
// from several goroutines at once.
type Decider interface {
	Decide(ctx context.Context, source string) (Verdict, error)
}

// DecisionFunc adapts an ordinary function to the Decider interface.
type DecisionFunc func(ctx context.Context, source string) (Verdict, error)

// Decide calls f(ctx, source).
func (f DecisionFunc) Decide(ctx context.Context, source string) (Verdict, error) {
	return f(ctx, source)
}

// AllowAll permits every compilation. Register it to lift a previous policy.
var AllowAll Decider = DecisionFunc(func(context.Context, string) (Verdict, error) {
	return Allow(), nil
})

// FromMessageFunc adapts a function in "absent-or-message" form: returning
// deny=false allows, returning deny=true blocks with msg verbatim.
func FromMessageFunc(fn func(ctx context.Context, source string) (msg string, deny bool)) Decider {
	return DecisionFunc(func(ctx context.Context, source string) (Verdict, error) {
		if msg, deny := fn(ctx, source); deny {
			return Deny(msg), nil
		}
		return Allow(), nil
	})
}

// registration boxes a Decider so the active one can be swapped atomically.
type registration struct {
	decider Decider
}

var active atomic.Pointer[registration]

// Register replaces the process-wide decider. The new decider applies to
// every interception event that starts after Register returns; events
// already dispatched finish with the decider they started with.
func Register(d Decider) error {
	if d == nil {
		return ErrNilDecider
	}
	active.Store(&registration{decider: d})
	return nil
}

// outcome is the dispatcher's result for one event.
type outcome struct {
	verdict Verdict
	fault   *DecisionFault
}

// dispatch asks the active decider about source. With nothing registered it
// allows. No lock is held while the decider runs, so a decider may trigger
// nested events.
func dispatch(ctx context.Context, source string) (out outcome) {
	reg := active.Load()
	if reg == nil {
		return outcome{verdict: Allow()}
	}

	defer func() {
		if r := recover(); r != nil {
			out = outcome{fault: faultFromPanic(r)}
		}
	}()

	v, err := reg.decider.Decide(ctx, source)
	if err != nil {
		return outcome{fault: &DecisionFault{Err: err}}
	}
	return outcome{verdict: v}
}

func faultFromPanic(r any) *DecisionFault {
	if err, ok := r.(error); ok {
		return &DecisionFault{Err: err, Panicked: true}
	}
	return &DecisionFault{Err: fmt.Errorf("%v", r), Panicked: true}
}
