// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package scripting

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aplane-algo/jsguard/internal/codegen"
	"github.com/aplane-algo/jsguard/internal/policy"
	"github.com/aplane-algo/jsguard/internal/reqctx"
	"github.com/aplane-algo/jsguard/internal/testutil"
)

func newRunner(t *testing.T) *GojaRunner {
	t.Helper()
	r, err := NewGojaRunner(Options{})
	if err != nil {
		t.Fatalf("NewGojaRunner: %v", err)
	}
	return r
}

func TestRunResults(t *testing.T) {
	r := newRunner(t)

	res, err := r.Run("1 + 1")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.IsEmpty || res.Value != int64(2) {
		t.Errorf("Run(1 + 1) = %+v", res)
	}

	res, err = r.Run("var x = 5")
	if err != nil || !res.IsEmpty {
		t.Errorf("declaration should be empty: %+v, %v", res, err)
	}

	// State persists between runs.
	res, err = r.Run("x * 2")
	if err != nil || res.Value != int64(10) {
		t.Errorf("x * 2 = %+v, %v", res, err)
	}
}

func TestRequestScopedPolicy(t *testing.T) {
	p, err := policy.DefaultDocument().Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	testutil.UseDecider(t, p)
	r := newRunner(t)

	if res, err := r.Run("eval('1 + 1')"); err != nil || res.Value != int64(2) {
		t.Errorf("no request: %+v, %v", res, err)
	}
	if res, err := r.RunContext(testutil.InRequest("req-123", false), "eval('2 + 2')"); err != nil || res.Value != int64(4) {
		t.Errorf("unflagged request: %+v, %v", res, err)
	}

	blocked := []struct {
		id   string
		code string
	}{
		{"req-456", "eval('3 + 3')"},
		{"req-789", "new Function('return 1')"},
		{"req-proto", "({}).constructor.constructor('return 1')()"},
	}
	for _, tt := range blocked {
		t.Run(tt.id, func(t *testing.T) {
			_, err := r.RunContext(testutil.InRequest(tt.id, true), tt.code)
			var se *ScriptError
			if !errors.As(err, &se) {
				t.Fatalf("expected ScriptError, got %v", err)
			}
			if se.Name != "EvalError" {
				t.Errorf("Name = %q, want EvalError", se.Name)
			}
			if want := "Blocked eval in request " + tt.id; !strings.Contains(se.Message, want) {
				t.Errorf("Message = %q, want it to contain %q", se.Message, want)
			}
		})
	}

	// Replacing the decider lifts the block for later runs.
	testutil.UseDecider(t, codegen.AllowAll)
	if res, err := r.RunContext(testutil.InRequest("req-allow", true), "eval('4 + 4')"); err != nil || res.Value != int64(8) {
		t.Errorf("after AllowAll: %+v, %v", res, err)
	}
}

func TestRunContextRestoresAmbientContext(t *testing.T) {
	var seen []string
	testutil.UseDecider(t, codegen.DecisionFunc(func(ctx context.Context, source string) (codegen.Verdict, error) {
		req, _ := reqctx.FromContext(ctx)
		seen = append(seen, req.ID)
		return codegen.Allow(), nil
	}))
	r := newRunner(t)

	if _, err := r.RunContext(testutil.InRequest("first", false), "eval('1')"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Run("eval('2')"); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "first" || seen[1] != "" {
		t.Errorf("decider saw %q", seen)
	}
}

func TestRunContextCancellation(t *testing.T) {
	r := newRunner(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.RunContext(ctx, "for (;;) {}")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}

	// The runtime stays usable afterwards.
	if res, err := r.Run("3"); err != nil || res.Value != int64(3) {
		t.Errorf("after interrupt: %+v, %v", res, err)
	}

	cancelled, cancelNow := context.WithCancel(context.Background())
	cancelNow()
	if _, err := r.RunContext(cancelled, "1"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestInterrupt(t *testing.T) {
	r := newRunner(t)

	time.AfterFunc(50*time.Millisecond, r.Interrupt)
	_, err := r.Run("for (;;) {}")
	if err == nil || !strings.Contains(err.Error(), "script interrupted") {
		t.Fatalf("expected interruption, got %v", err)
	}
}

func TestScriptErrors(t *testing.T) {
	r := newRunner(t)

	_, err := r.Run("throw new TypeError('bad type')")
	var se *ScriptError
	if !errors.As(err, &se) || se.Name != "TypeError" || !strings.Contains(se.Message, "bad type") {
		t.Errorf("TypeError: got %#v", err)
	}

	_, err = r.Run("throw 'plain string'")
	if !errors.As(err, &se) || se.Name != "" {
		t.Errorf("string throw: got %#v", err)
	}

	if _, err := r.Run("function ("); err == nil {
		t.Error("expected syntax error")
	}
}

func TestSetOutput(t *testing.T) {
	r := newRunner(t)

	var lines []string
	r.SetOutput(func(s string) { lines = append(lines, s) })
	if _, err := r.RunContext(testutil.InRequest("req-out", false), "print('id', request().requestId)"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 1 || lines[0] != "id req-out" {
		t.Errorf("output = %q", lines)
	}

	r.SetOutput(nil)
	if _, err := r.Run("print('dropped')"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(lines) != 1 {
		t.Errorf("nil output should discard, got %q", lines)
	}
}

func TestNewGojaRunnerOptions(t *testing.T) {
	if _, err := NewGojaRunner(Options{Engine: "spidermonkey"}); err == nil {
		t.Error("expected unknown engine to fail")
	} else {
		var initErr *codegen.InitializationError
		if !errors.As(err, &initErr) {
			t.Errorf("expected InitializationError, got %T", err)
		}
	}

	r, err := NewGojaRunner(Options{MaxCallStack: 50})
	if err != nil {
		t.Fatalf("NewGojaRunner: %v", err)
	}
	if _, err := r.Run("(function f() { f() })()"); err == nil {
		t.Error("expected call stack overflow")
	}
}
