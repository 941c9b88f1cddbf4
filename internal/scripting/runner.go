// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package scripting runs JavaScript in runtimes whose code generation is
// gated by the process-wide decider.
package scripting

import "context"

// ScriptError represents an exception thrown by a script.
type ScriptError struct {
	// Name is the constructor name of the thrown error, e.g. "EvalError".
	// Empty when the script threw a non-Error value.
	Name    string
	Message string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Result holds the outcome of running a script.
type Result struct {
	// Value is the exported result value (nil if IsEmpty is true)
	Value interface{}
	// IsEmpty is true if the script returned undefined/null/void
	IsEmpty bool
}

// Runner is the low-level VM abstraction for executing scripts.
// It keeps one persistent runtime, so it suits line-by-line REPL use.
// A Runner is not safe for concurrent Run calls.
type Runner interface {
	// Run executes the given code and returns the result.
	// Errors include syntax errors, runtime exceptions, etc.
	Run(code string) (Result, error)

	// RunContext is Run with an ambient context. Code generation decisions
	// made while the script runs see ctx, and cancelling ctx interrupts
	// the script.
	RunContext(ctx context.Context, code string) (Result, error)

	// SetOutput sets the function used for print() output.
	SetOutput(fn func(string))

	// Interrupt stops the currently running script.
	// Safe to call from another goroutine.
	Interrupt()
}
