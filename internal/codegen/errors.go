// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package codegen

import (
	"errors"
	"fmt"

	"github.com/dop251/goja"
)

// InitializationError reports that the hook could not be installed.
// It is fatal: callers should abort startup rather than run unguarded.
type InitializationError struct {
	Op  string
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("codegen: %s: %v", e.Op, e.Err)
}

func (e *InitializationError) Unwrap() error {
	return e.Err
}

// DecisionFault reports that the registered decider failed instead of
// returning a verdict. It is thrown at the call site and is never turned
// into an allow or a deny.
type DecisionFault struct {
	Err      error
	Panicked bool
}

func (e *DecisionFault) Error() string {
	if e.Panicked {
		return fmt.Sprintf("code generation decision panicked: %v", e.Err)
	}
	return fmt.Sprintf("code generation decision failed: %v", e.Err)
}

func (e *DecisionFault) Unwrap() error {
	return e.Err
}

// translator raises the script-visible error for a blocked or faulted event.
type translator struct {
	vm        *goja.Runtime
	evalError *goja.Object
}

// raise throws the JS error for out. It must only be called from inside a
// native function running on t.vm, and it does not return for non-allow
// outcomes.
func (t *translator) raise(out outcome) {
	if out.fault != nil {
		t.raiseFault(out.fault)
	}
	if !out.verdict.Allowed() {
		t.raiseBlocked(out.verdict.Message())
	}
}

// raiseBlocked throws new EvalError(msg) built from the intrinsic
// constructor captured at install time, so it matches the engine's own kind
// even if the script has since reassigned the global EvalError.
func (t *translator) raiseBlocked(msg string) {
	obj, err := t.vm.New(t.evalError, t.vm.ToValue(msg))
	if err != nil {
		panic(err)
	}
	panic(obj)
}

func (t *translator) raiseFault(f *DecisionFault) {
	var ex *goja.Exception
	if errors.As(f.Err, &ex) {
		panic(ex)
	}
	var interrupted *goja.InterruptedError
	if errors.As(f.Err, &interrupted) {
		panic(interrupted)
	}
	panic(t.vm.NewGoError(f))
}
