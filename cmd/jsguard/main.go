// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// jsguard runs JavaScript with dynamic code generation (eval, Function and
// friends) gated by a request-aware policy.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aplane-algo/jsguard/internal/reqctx"
	"github.com/aplane-algo/jsguard/internal/util"
	"github.com/aplane-algo/jsguard/internal/version"
)

func main() {
	// Define all flags upfront before parsing
	printVersion := flag.Bool("version", false, "Print version and exit")
	dataDir := flag.String("d", "", "Data directory (default: ~/.jsguard or JSGUARD_DATA)")
	policyFile := flag.String("policy", "", "Policy file (overrides policy_file in config.yaml)")
	jsScript := flag.String("js", "", "Execute JavaScript script file (use '-' for stdin)")
	jsExpr := flag.String("e", "", "Execute JavaScript expression")
	requestID := flag.String("request", "", "Run inside a request with this ID ('auto' generates one)")
	blocked := flag.Bool("blocked", false, "Flag the request as blocked")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address (overrides config)")
	flag.Parse()

	if *printVersion {
		fmt.Printf("jsguard %s\n", version.String())
		os.Exit(0)
	}

	// Logs go to stderr (supports JSGUARD_DEBUG environment variable)
	util.InitLogger()

	// Resolve data directory: -d flag > JSGUARD_DATA env var > ~/.jsguard
	resolvedDataDir := util.GetDataDir(*dataDir)

	config, err := util.LoadConfig(resolvedDataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Invalid configuration: %v\n", err)
		os.Exit(1)
	}
	if *policyFile != "" {
		config.PolicyFile = *policyFile
		config.PolicyOptional = false
	}
	if *metricsAddr != "" {
		config.MetricsAddr = *metricsAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	g, err := newGuard(ctx, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	req, hasReq := requestFromFlags(*requestID, *blocked)

	var code int
	switch {
	case *jsExpr != "":
		code = runJSExpression(ctx, config, req, hasReq, *jsExpr)
	case *jsScript != "":
		code = runJSScriptMode(ctx, config, req, hasReq, *jsScript)
	default:
		code = startREPL(ctx, config, g, req, hasReq)
	}

	g.Close()
	stop()
	os.Exit(code)
}

// requestFromFlags builds the ambient request for script modes. -blocked
// without -request still creates a request, with a generated ID.
func requestFromFlags(id string, blocked bool) (reqctx.Request, bool) {
	if id == "" && !blocked {
		return reqctx.Request{}, false
	}
	if id == "" || id == "auto" {
		id = reqctx.NewRequestID()
	}
	return reqctx.Request{ID: id, Blocked: blocked}, true
}
