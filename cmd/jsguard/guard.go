// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aplane-algo/jsguard/internal/audit"
	"github.com/aplane-algo/jsguard/internal/codegen"
	"github.com/aplane-algo/jsguard/internal/policy"
	"github.com/aplane-algo/jsguard/internal/util"
)

// guard owns the process-wide decider: the compiled policy, the audit
// pipeline around it and the optional metrics endpoint.
type guard struct {
	policyPath     string
	policyOptional bool
	policy     atomic.Pointer[policy.Policy]

	registry *prometheus.Registry
	recorder *audit.Recorder
	store    *audit.Store
	server   *http.Server
}

// newGuard loads the policy, registers it and starts the watcher and the
// metrics server as configured. The watcher stops when ctx is cancelled.
func newGuard(ctx context.Context, config util.Config) (*guard, error) {
	g := &guard{
		policyPath:     config.PolicyFile,
		policyOptional: config.PolicyOptional,
		registry:       prometheus.NewRegistry(),
	}
	g.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	recCfg := audit.RecorderConfig{
		Logger:     util.Logger,
		Metrics:    audit.NewMetrics(g.registry),
		BufferSize: config.Audit.BufferSize,
		LogSources: config.Audit.LogSources,
	}
	if config.Audit.Enabled && config.Audit.DBPath != "" {
		store, err := audit.OpenStore(config.Audit.DBPath)
		if err != nil {
			return nil, err
		}
		g.store = store
		recCfg.Store = store
	}
	g.recorder = audit.NewRecorder(recCfg)

	p, err := g.loadPolicy()
	if err != nil {
		g.Close()
		return nil, err
	}
	if err := g.apply(p); err != nil {
		g.Close()
		return nil, err
	}

	if config.WatchPolicy && g.policyPath != "" {
		if err := policy.Watch(ctx, g.policyPath, func(p *policy.Policy) {
			if err := g.apply(p); err != nil {
				util.Logger.Warn("failed to apply reloaded policy", "error", err)
			}
		}); err != nil {
			// A missing directory only disables reloading.
			util.Logger.Warn("policy watching disabled", "error", err)
		}
	}

	if config.MetricsAddr != "" {
		if err := g.serveMetrics(config.MetricsAddr); err != nil {
			g.Close()
			return nil, err
		}
	}
	return g, nil
}

func (g *guard) loadPolicy() (*policy.Policy, error) {
	if g.policyPath == "" {
		return policy.DefaultDocument().Compile()
	}
	p, err := policy.LoadPolicy(g.policyPath)
	if errors.Is(err, fs.ErrNotExist) && g.policyOptional {
		util.Logger.Debug("no policy file, using default policy", "path", g.policyPath)
		return policy.DefaultDocument().Compile()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load policy %s: %w", g.policyPath, err)
	}
	return p, nil
}

// apply makes p the active decider, wrapped for auditing.
func (g *guard) apply(p *policy.Policy) error {
	if err := codegen.Register(audit.Wrap(p, g.recorder)); err != nil {
		return err
	}
	g.policy.Store(p)
	return nil
}

// reload re-reads the policy file on demand.
func (g *guard) reload() error {
	p, err := g.loadPolicy()
	if err != nil {
		return err
	}
	return g.apply(p)
}

func (g *guard) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on metrics address %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	}))
	g.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.Logger.Warn("metrics server stopped", "error", err)
		}
	}()
	util.Logger.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// recent returns the newest audit events, or an error when auditing to
// SQLite is off.
func (g *guard) recent(ctx context.Context, n int) ([]audit.Event, error) {
	if g.store == nil {
		return nil, errors.New("audit database is not enabled (set audit.enabled in config.yaml)")
	}
	return g.store.Recent(ctx, n)
}

// Close flushes pending audit events and stops the metrics server.
func (g *guard) Close() {
	if g.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = g.server.Shutdown(ctx)
		cancel()
	}
	if g.recorder != nil {
		g.recorder.Close()
	}
	if g.store != nil {
		_ = g.store.Close()
	}
}
