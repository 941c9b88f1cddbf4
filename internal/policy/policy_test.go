// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package policy

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/dop251/goja"

	"github.com/aplane-algo/jsguard/internal/codegen"
	"github.com/aplane-algo/jsguard/internal/reqctx"
	"github.com/aplane-algo/jsguard/internal/testutil"
)

func mustCompile(t *testing.T, yamlText string) *Policy {
	t.Helper()
	doc, err := Parse([]byte(yamlText))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, err := doc.Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return p
}

func decide(t *testing.T, p *Policy, ctx context.Context, source string) codegen.Verdict {
	t.Helper()
	v, err := p.Decide(ctx, source)
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	return v
}

func TestDefaultDocumentBlocksFlaggedRequests(t *testing.T) {
	p, err := DefaultDocument().Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	allowed := reqctx.WithRequest(context.Background(), reqctx.Request{ID: "req-123"})
	if v := decide(t, p, allowed, "1+1"); !v.Allowed() {
		t.Errorf("unflagged request: got %v", v)
	}

	blocked := reqctx.WithRequest(context.Background(), reqctx.Request{ID: "req-456", Blocked: true})
	v := decide(t, p, blocked, "1+1")
	if v.Allowed() || v.Message() != "Blocked eval in request req-456" {
		t.Errorf("flagged request: got %v", v)
	}

	if v := decide(t, p, context.Background(), "1+1"); !v.Allowed() {
		t.Errorf("no request: got %v", v)
	}
}

func TestEvaluationOrder(t *testing.T) {
	p := mustCompile(t, `
default: deny
message: "{reason} ({request_id})"
max_source_bytes: 40
allow_patterns:
  - '^\d+\s*[-+*/]\s*\d+$'
  - '^JSON\.parse'
deny_patterns:
  - 'process|require'
`)
	plain := reqctx.WithRequest(context.Background(), reqctx.Request{ID: "r1"})
	flagged := reqctx.WithRequest(context.Background(), reqctx.Request{ID: "r2", Blocked: true})

	tests := []struct {
		name    string
		ctx     context.Context
		source  string
		allowed bool
		message string
	}{
		{"flagged beats allow pattern", flagged, "1+1", false, "request is blocked (r2)"},
		{"size limit beats allow pattern", plain, "JSON.parse('" + string(make([]byte, 40)) + "')", false, "source is 54 bytes, limit 40 (r1)"},
		{"allow pattern", plain, "2 * 3", true, ""},
		{"allow beats deny", plain, "JSON.parse(process)", true, ""},
		{"deny pattern", plain, "require('fs')", false, "source matches process|require (r1)"},
		{"default deny", plain, "Math.max(1, 2)", false, "denied by default (r1)"},
		{"no request id", context.Background(), "Math.max(1, 2)", false, "denied by default (none)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := decide(t, p, tt.ctx, tt.source)
			if v.Allowed() != tt.allowed {
				t.Fatalf("Allowed() = %v, want %v (%v)", v.Allowed(), tt.allowed, v)
			}
			if !tt.allowed && v.Message() != tt.message {
				t.Errorf("Message() = %q, want %q", v.Message(), tt.message)
			}
		})
	}
}

func TestEmptyMessageDeniesWithDefault(t *testing.T) {
	p := mustCompile(t, "default: deny\nmessage: \"\"\n")
	v := decide(t, p, context.Background(), "x")
	if v.Kind() != codegen.KindDenyDefault {
		t.Fatalf("Kind() = %v, want deny_default", v.Kind())
	}
	if v.Message() != codegen.DefaultBlockedMessage {
		t.Errorf("Message() = %q", v.Message())
	}
}

func TestBlockFlaggedRequestsDisabled(t *testing.T) {
	p := mustCompile(t, "block_flagged_requests: false\n")
	ctx := reqctx.WithRequest(context.Background(), reqctx.Request{ID: "r", Blocked: true})
	if v := decide(t, p, ctx, "1"); !v.Allowed() {
		t.Errorf("got %v, want allow", v)
	}
}

func TestInvalidDocuments(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"bad default", "default: maybe", "default"},
		{"negative limit", "max_source_bytes: -1", "max_source_bytes"},
		{"bad allow regexp", "allow_patterns: ['(']", "allow_patterns[0]"},
		{"bad deny regexp", "deny_patterns: ['ok', '[z-a]']", "deny_patterns[1]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Parse([]byte(tt.yaml))
			if err == nil {
				_, err = doc.Compile()
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
		})
	}

	if _, err := Parse([]byte("default: [")); err == nil {
		t.Error("expected yaml syntax error")
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	if _, err := Load(filepath.Join(dir, "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load missing: expected fs.ErrNotExist, got %v", err)
	}
	if _, err := LoadPolicy(filepath.Join(dir, "missing.yaml")); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("LoadPolicy missing: expected fs.ErrNotExist, got %v", err)
	}

	p, err := LoadPolicy(testutil.WriteFile(t, dir, "policy.yaml", "default: deny\n"))
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if v := decide(t, p, context.Background(), "1"); v.Allowed() {
		t.Errorf("expected deny, got %v", v)
	}
}

func TestPolicyAsRegisteredDecider(t *testing.T) {
	p := mustCompile(t, "deny_patterns: ['secret']\nmessage: 'no: {reason}'\n")
	testutil.UseDecider(t, p)

	vm := goja.New()
	if _, err := codegen.Install(vm); err != nil {
		t.Fatalf("Install: %v", err)
	}

	v, err := vm.RunString("eval('6 * 7')")
	if err != nil || v.ToInteger() != 42 {
		t.Fatalf("allowed eval: %v, %v", v, err)
	}

	v, err = vm.RunString(`try { eval("var secret = 1"); "no error" } catch (e) { e.name + ": " + e.message }`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if got, want := v.String(), "EvalError: no: source matches secret"; got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
