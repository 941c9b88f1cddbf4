// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package jsapi provides the host bindings exposed to guarded scripts:
//   - print(...args): write a line to the runner's output
//   - log(...args): write a line to the structured log
//   - request(): the ambient request ({requestId, blocked}) or null
//   - sourceHash(text): the audit digest of text, for matching audit rows
package jsapi

import (
	"context"
	"fmt"

	"github.com/dop251/goja"

	"github.com/aplane-algo/jsguard/internal/audit"
	"github.com/aplane-algo/jsguard/internal/reqctx"
	"github.com/aplane-algo/jsguard/internal/util"
)

// API provides JavaScript bindings for a guarded runtime.
type API struct {
	runtime *goja.Runtime
	output  func(string)
	context func() context.Context
}

// NewAPI creates a new JavaScript API instance. ctxFn supplies the ambient
// context of the script currently running; it may be nil.
func NewAPI(output func(string), ctxFn func() context.Context) *API {
	return &API{
		output:  output,
		context: ctxFn,
	}
}

// RegisterAll registers all API functions on the given Goja runtime.
func (a *API) RegisterAll(vm *goja.Runtime) error {
	a.runtime = vm

	set := func(name string, fn func(goja.FunctionCall) goja.Value) error {
		return vm.Set(name, fn)
	}

	if err := set("print", a.jsPrint); err != nil {
		return fmt.Errorf("failed to register print: %w", err)
	}
	if err := set("log", a.jsLog); err != nil {
		return fmt.Errorf("failed to register log: %w", err)
	}
	if err := set("request", a.jsRequest); err != nil {
		return fmt.Errorf("failed to register request: %w", err)
	}
	if err := set("sourceHash", a.jsSourceHash); err != nil {
		return fmt.Errorf("failed to register sourceHash: %w", err)
	}
	return nil
}

func (a *API) ambient() context.Context {
	if a.context == nil {
		return context.Background()
	}
	return a.context()
}

// jsPrint outputs a message to the console.
func (a *API) jsPrint(call goja.FunctionCall) goja.Value {
	a.outputMsg(joinArgs(call.Arguments))
	return goja.Undefined()
}

// jsLog writes a message to the structured log, tagged with the request.
func (a *API) jsLog(call goja.FunctionCall) goja.Value {
	attrs := []any{"message", joinArgs(call.Arguments)}
	if req, ok := reqctx.FromContext(a.ambient()); ok {
		attrs = append(attrs, "request_id", req.ID)
	}
	util.Logger.Info("script log", attrs...)
	return goja.Undefined()
}

// jsRequest returns the ambient request, or null outside one.
func (a *API) jsRequest(call goja.FunctionCall) goja.Value {
	req, ok := reqctx.FromContext(a.ambient())
	if !ok {
		return goja.Null()
	}
	return a.runtime.ToValue(req)
}

// jsSourceHash returns the audit digest of its argument.
func (a *API) jsSourceHash(call goja.FunctionCall) goja.Value {
	a.requireArgs(call, 1, "sourceHash() requires a string argument")
	return a.runtime.ToValue(audit.HashSource(call.Arguments[0].String()))
}

// output helper for internal use.
func (a *API) outputMsg(msg string) {
	if a.output != nil {
		a.output(msg)
	} else {
		fmt.Println(msg)
	}
}
