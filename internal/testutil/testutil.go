// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package testutil provides reusable test infrastructure and utilities.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/aplane-algo/jsguard/internal/codegen"
	"github.com/aplane-algo/jsguard/internal/reqctx"
)

// UseDecider registers d as the process-wide decider for the rest of the
// test and restores AllowAll afterwards.
func UseDecider(t *testing.T, d codegen.Decider) {
	t.Helper()
	if err := codegen.Register(d); err != nil {
		t.Fatalf("Register: %v", err)
	}
	t.Cleanup(func() { _ = codegen.Register(codegen.AllowAll) })
}

// InRequest returns a background context carrying a request.
func InRequest(id string, blocked bool) context.Context {
	return reqctx.WithRequest(context.Background(), reqctx.Request{ID: id, Blocked: blocked})
}

// WriteFile writes content to name inside dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// AssertError checks that an error matches expected criteria.
func AssertError(t *testing.T, err error, shouldError bool, msgContains string) {
	t.Helper()

	if !shouldError {
		if err != nil {
			t.Errorf("Unexpected error: %v", err)
		}
		return
	}
	if err == nil {
		t.Error("Expected an error but got nil")
		return
	}
	if msgContains != "" && !strings.Contains(err.Error(), msgContains) {
		t.Errorf("Error message %q should contain %q", err.Error(), msgContains)
	}
}
