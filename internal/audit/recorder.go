// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package audit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aplane-algo/jsguard/internal/codegen"
)

// DefaultBufferSize is the audit queue length used when none is configured.
const DefaultBufferSize = 1024

// RecorderConfig configures a Recorder. Every field is optional.
type RecorderConfig struct {
	Logger  *slog.Logger
	Metrics *Metrics
	// Store receives events asynchronously. The Recorder does not close it.
	Store      *Store
	BufferSize int
	// LogSources includes the full source text in decision logs.
	LogSources bool
}

// Recorder logs, counts and persists decisions. Persisting never blocks the
// decision: when the queue is full the event is dropped and counted.
type Recorder struct {
	logger     *slog.Logger
	metrics    *Metrics
	store      *Store
	logSources bool

	mu     sync.RWMutex
	closed bool
	events chan Event
	done   chan struct{}
}

// NewRecorder creates a Recorder and starts its writer if cfg.Store is set.
func NewRecorder(cfg RecorderConfig) *Recorder {
	r := &Recorder{
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
		store:      cfg.Store,
		logSources: cfg.LogSources,
		done:       make(chan struct{}),
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	if r.store == nil {
		close(r.done)
		return r
	}

	size := cfg.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	r.events = make(chan Event, size)
	go r.writeLoop()
	return r
}

func (r *Recorder) writeLoop() {
	defer close(r.done)
	for ev := range r.events {
		if _, err := r.store.Insert(context.Background(), ev); err != nil {
			r.logger.Warn("failed to persist audit event", "error", err)
		}
	}
}

// Record audits one decision that took d.
func (r *Recorder) Record(ctx context.Context, source string, v codegen.Verdict, err error, d time.Duration) {
	ev := NewEvent(ctx, source, v, err)
	r.metrics.ObserveDecision(ev.Verdict, d)
	r.log(ev, source)
	r.enqueue(ev)
}

func (r *Recorder) log(ev Event, source string) {
	attrs := []any{
		"request_id", ev.RequestID,
		"verdict", ev.Verdict,
		"source_hash", ev.SourceHash,
		"source_len", ev.SourceLen,
	}
	if r.logSources {
		attrs = append(attrs, "source", source)
	}

	switch ev.Verdict {
	case VerdictFault:
		r.logger.Warn("code generation decision failed", append(attrs, "error", ev.Message)...)
	case codegen.KindAllow.String():
		r.logger.Debug("code generation allowed", attrs...)
	default:
		r.logger.Info("code generation blocked", append(attrs, "message", ev.Message)...)
	}
}

func (r *Recorder) enqueue(ev Event) {
	if r.store == nil {
		return
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}

	select {
	case r.events <- ev:
	default:
		r.metrics.ObserveDropped()
		r.logger.Debug("audit buffer full, dropping event", "request_id", ev.RequestID)
	}
}

// Close stops accepting events and waits for queued events to be written.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed && r.events != nil {
		close(r.events)
	}
	r.closed = true
	r.mu.Unlock()
	<-r.done
}

// Wrap returns a Decider that delegates to d and records every decision,
// including ones that panic. The panic is re-raised after recording.
func Wrap(d codegen.Decider, r *Recorder) codegen.Decider {
	return codegen.DecisionFunc(func(ctx context.Context, source string) (v codegen.Verdict, err error) {
		start := time.Now()
		defer func() {
			if p := recover(); p != nil {
				r.Record(ctx, source, codegen.Verdict{}, fmt.Errorf("panic: %v", p), time.Since(start))
				panic(p)
			}
		}()

		v, err = d.Decide(ctx, source)
		r.Record(ctx, source, v, err, time.Since(start))
		return v, err
	})
}
