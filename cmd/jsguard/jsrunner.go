// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/aplane-algo/jsguard/internal/reqctx"
	"github.com/aplane-algo/jsguard/internal/scripting"
	"github.com/aplane-algo/jsguard/internal/util"
)

func newRunner(config util.Config) (*scripting.GojaRunner, error) {
	runner, err := scripting.NewGojaRunner(scripting.Options{
		Engine:       config.Engine,
		MaxCallStack: config.MaxCallStack,
	})
	if err != nil {
		return nil, err
	}
	runner.SetOutput(func(msg string) {
		fmt.Println(msg)
	})
	return runner, nil
}

// runContext derives the context for one script run: interruptible with
// Ctrl+C and carrying req when present.
func runContext(parent context.Context, req reqctx.Request, hasReq bool) (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt)
	if hasReq {
		ctx = reqctx.WithRequest(ctx, req)
	}
	return ctx, cancel
}

// runJSScriptMode runs a JavaScript script file and returns the exit code.
func runJSScriptMode(ctx context.Context, config util.Config, req reqctx.Request, hasReq bool, scriptPath string) int {
	var content []byte
	var err error
	if scriptPath == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(scriptPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read script: %v\n", err)
		return 1
	}

	runner, err := newRunner(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	runCtx, cancel := runContext(ctx, req, hasReq)
	defer cancel()

	if _, err := runner.RunContext(runCtx, string(content)); err != nil {
		fmt.Fprintln(os.Stderr, formatRunError(err))
		return 1
	}
	return 0
}

// runJSExpression runs a single JavaScript expression and prints its value.
func runJSExpression(ctx context.Context, config util.Config, req reqctx.Request, hasReq bool, expr string) int {
	runner, err := newRunner(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	runCtx, cancel := runContext(ctx, req, hasReq)
	defer cancel()

	result, err := runner.RunContext(runCtx, expr)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatRunError(err))
		return 1
	}
	if !result.IsEmpty {
		fmt.Println(util.FormatResult(formatValue(result.Value)))
	}
	return 0
}

// formatRunError highlights blocked code generation apart from other errors.
func formatRunError(err error) string {
	var se *scripting.ScriptError
	if errors.As(err, &se) && se.Name == "EvalError" {
		return util.FormatBlocked(se.Message)
	}
	return util.FormatError("Error: " + err.Error())
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
