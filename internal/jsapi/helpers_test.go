// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package jsapi

import (
	"context"
	"strings"
	"testing"

	"github.com/dop251/goja"

	"github.com/aplane-algo/jsguard/internal/audit"
	"github.com/aplane-algo/jsguard/internal/reqctx"
)

func newTestRuntime(t *testing.T, ctx context.Context) (*goja.Runtime, *[]string) {
	t.Helper()
	var out []string
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	api := NewAPI(func(s string) { out = append(out, s) }, func() context.Context { return ctx })
	if err := api.RegisterAll(vm); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	return vm, &out
}

func TestPrint(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"single string", `print("hello")`, "hello"},
		{"mixed", `print("n =", 42, true)`, "n = 42 true"},
		{"object", `print({})`, "[object Object]"},
		{"undefined", `print(undefined, null)`, "undefined null"},
		{"no args", `print()`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			vm, out := newTestRuntime(t, context.Background())
			if _, err := vm.RunString(tt.code); err != nil {
				t.Fatalf("RunString: %v", err)
			}
			if len(*out) != 1 || (*out)[0] != tt.want {
				t.Errorf("output = %q, want [%q]", *out, tt.want)
			}
		})
	}
}

func TestRequestBinding(t *testing.T) {
	ctx := reqctx.WithRequest(context.Background(), reqctx.Request{ID: "req-42", Blocked: true})
	vm, _ := newTestRuntime(t, ctx)

	v, err := vm.RunString(`var r = request(); r.requestId + ":" + r.blocked`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if v.String() != "req-42:true" {
		t.Errorf("request() = %s", v)
	}

	vm, _ = newTestRuntime(t, context.Background())
	v, err = vm.RunString(`request() === null`)
	if err != nil || !v.ToBoolean() {
		t.Errorf("request() outside a request should be null: %v, %v", v, err)
	}
}

func TestSourceHash(t *testing.T) {
	vm, _ := newTestRuntime(t, context.Background())

	v, err := vm.RunString(`sourceHash("1 + 1")`)
	if err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if v.String() != audit.HashSource("1 + 1") {
		t.Errorf("sourceHash = %s", v)
	}

	_, err = vm.RunString(`sourceHash()`)
	if err == nil || !strings.Contains(err.Error(), "sourceHash() requires a string argument") {
		t.Errorf("expected TypeError, got %v", err)
	}
}

func TestLogDoesNotPrint(t *testing.T) {
	vm, out := newTestRuntime(t, context.Background())
	if _, err := vm.RunString(`log("quiet")`); err != nil {
		t.Fatalf("RunString: %v", err)
	}
	if len(*out) != 0 {
		t.Errorf("log() should not write to output, got %q", *out)
	}
}
