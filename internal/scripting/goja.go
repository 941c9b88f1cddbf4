// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/aplane-algo/jsguard/internal/codegen"
	"github.com/aplane-algo/jsguard/internal/engine"
	"github.com/aplane-algo/jsguard/internal/jsapi"
)

// Options configures a GojaRunner.
type Options struct {
	// Engine names the backend; empty means engine.GojaName.
	Engine string
	// MaxCallStack limits JS call depth; zero keeps the engine default.
	MaxCallStack int
}

// GojaRunner implements Runner using the Goja JavaScript interpreter.
type GojaRunner struct {
	vm     *goja.Runtime
	output func(string)
	// ctx is the ambient context of the script currently running.
	ctx context.Context
}

// NewGojaRunner resolves the engine backend for this platform, creates a
// runtime and installs the code generation hook before any script runs.
func NewGojaRunner(opts Options) (*GojaRunner, error) {
	name := opts.Engine
	if name == "" {
		name = engine.GojaName
	}
	backend, err := engine.Resolve(name, engine.CurrentPlatform())
	if err != nil {
		return nil, err
	}

	r := &GojaRunner{
		output: func(s string) {}, // Default: discard output
		ctx:    context.Background(),
	}

	vm := backend.NewRuntime()
	if opts.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(opts.MaxCallStack)
	}

	if _, err := codegen.Install(vm, codegen.WithContext(r.ambient)); err != nil {
		return nil, err
	}

	// Output wrapper so SetOutput works after creation
	api := jsapi.NewAPI(func(msg string) { r.output(msg) }, r.ambient)
	if err := api.RegisterAll(vm); err != nil {
		return nil, fmt.Errorf("failed to register JS API: %w", err)
	}

	r.vm = vm
	return r, nil
}

func (r *GojaRunner) ambient() context.Context {
	return r.ctx
}

// Run executes JavaScript code with a background context.
func (r *GojaRunner) Run(code string) (Result, error) {
	return r.RunContext(context.Background(), code)
}

// RunContext executes JavaScript code with ctx as the ambient context.
func (r *GojaRunner) RunContext(ctx context.Context, code string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	prev := r.ctx
	r.ctx = ctx
	defer func() { r.ctx = prev }()

	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		r.vm.Interrupt(ctx.Err())
		close(interrupted)
	})
	defer func() {
		if !stop() {
			// The interrupt may have landed after the script finished.
			<-interrupted
			r.vm.ClearInterrupt()
		}
	}()

	result, err := r.vm.RunString(code)
	if err != nil {
		return Result{}, convertError(ctx, err)
	}

	// Check for empty/void results
	if result == nil || goja.IsUndefined(result) || goja.IsNull(result) {
		return Result{IsEmpty: true}, nil
	}

	return Result{Value: result.Export()}, nil
}

func convertError(ctx context.Context, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("script interrupted: %w", ctxErr)
		}
		return fmt.Errorf("script interrupted: %v", interrupted.Value())
	}

	var jsErr *goja.Exception
	if errors.As(err, &jsErr) {
		// String() carries the stack; Export() would give map[] for Error objects
		se := &ScriptError{Message: jsErr.String()}
		if obj, ok := jsErr.Value().(*goja.Object); ok {
			if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
				se.Name = name.String()
			}
		}
		return se
	}
	return err
}

// SetOutput sets the function used for print() output.
func (r *GojaRunner) SetOutput(fn func(string)) {
	if fn == nil {
		r.output = func(s string) {}
	} else {
		r.output = fn
	}
}

// Interrupt stops the currently running script.
// Safe to call from another goroutine (e.g., for timeout enforcement).
func (r *GojaRunner) Interrupt() {
	r.vm.Interrupt("script interrupted")
}

// Compile-time interface check
var _ Runner = (*GojaRunner)(nil)
