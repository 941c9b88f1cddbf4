// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package audit observes code generation decisions. It logs them, counts
// them in Prometheus metrics and optionally persists them to SQLite.
// Source text is never stored, only its BLAKE2b-256 digest and length.
package audit

import (
	"context"
	"encoding/hex"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/aplane-algo/jsguard/internal/codegen"
	"github.com/aplane-algo/jsguard/internal/reqctx"
)

// VerdictFault labels a decision whose decider failed.
const VerdictFault = "fault"

// Event is one audited decision.
type Event struct {
	ID         int64     `json:"id"`
	RequestID  string    `json:"requestId"`
	Verdict    string    `json:"verdict"`
	Message    string    `json:"message"`
	SourceHash string    `json:"sourceHash"`
	SourceLen  int       `json:"sourceLen"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NewEvent builds the audit record for a decision.
func NewEvent(ctx context.Context, source string, v codegen.Verdict, err error) Event {
	ev := Event{
		SourceHash: HashSource(source),
		SourceLen:  len(source),
		CreatedAt:  time.Now(),
	}
	if req, ok := reqctx.FromContext(ctx); ok {
		ev.RequestID = req.ID
	}

	switch {
	case err != nil:
		ev.Verdict = VerdictFault
		ev.Message = err.Error()
	case v.Allowed():
		ev.Verdict = v.Kind().String()
	default:
		ev.Verdict = v.Kind().String()
		ev.Message = v.Message()
	}
	return ev
}

// HashSource returns the hex BLAKE2b-256 digest of source.
func HashSource(source string) string {
	sum := blake2b.Sum256([]byte(source))
	return hex.EncodeToString(sum[:])
}
