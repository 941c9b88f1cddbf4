// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package reqctx carries the caller-scoped request state that decision
// functions consult, propagated through context.Context.
package reqctx

import (
	"context"

	"github.com/google/uuid"
)

// Request is the ambient state established by an enclosing scope.
type Request struct {
	ID      string `json:"requestId"`
	Blocked bool   `json:"blocked"`
}

type contextKey struct{}

// WithRequest returns a copy of ctx carrying req.
func WithRequest(ctx context.Context, req Request) context.Context {
	return context.WithValue(ctx, contextKey{}, req)
}

// FromContext returns the request stored in ctx, if any.
func FromContext(ctx context.Context) (Request, bool) {
	if ctx == nil {
		return Request{}, false
	}
	req, ok := ctx.Value(contextKey{}).(Request)
	return req, ok
}

// NewRequestID returns a fresh random request identifier.
func NewRequestID() string {
	return "req-" + uuid.NewString()
}

// New returns a request with a fresh identifier.
func New(blocked bool) Request {
	return Request{ID: NewRequestID(), Blocked: blocked}
}
