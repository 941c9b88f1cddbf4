// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package reqctx

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestWithRequestRoundTrip(t *testing.T) {
	ctx := WithRequest(context.Background(), Request{ID: "req-123", Blocked: true})

	req, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected request in context")
	}
	if req.ID != "req-123" || !req.Blocked {
		t.Errorf("got %+v", req)
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("expected no request in empty context")
	}
}

func TestInnerScopeShadowsOuter(t *testing.T) {
	outer := WithRequest(context.Background(), Request{ID: "outer"})
	inner := WithRequest(outer, Request{ID: "inner", Blocked: true})

	if req, _ := FromContext(inner); req.ID != "inner" || !req.Blocked {
		t.Errorf("inner = %+v", req)
	}
	if req, _ := FromContext(outer); req.ID != "outer" || req.Blocked {
		t.Errorf("outer = %+v", req)
	}
}

func TestNewRequestID(t *testing.T) {
	a, b := NewRequestID(), NewRequestID()
	if a == b {
		t.Error("expected distinct request IDs")
	}
	if !strings.HasPrefix(a, "req-") {
		t.Errorf("id %q missing req- prefix", a)
	}
	if _, err := uuid.Parse(strings.TrimPrefix(a, "req-")); err != nil {
		t.Errorf("id %q does not carry a uuid: %v", a, err)
	}
}
