// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package codegen

import "fmt"

// DefaultBlockedMessage is the message used when a verdict denies without detail.
const DefaultBlockedMessage = "Code generation from strings disallowed for this context"

// VerdictKind identifies the shape of a Verdict.
type VerdictKind int

const (
	// KindAllow lets the engine compile the source.
	KindAllow VerdictKind = iota
	// KindDeny blocks compilation with a caller-supplied message.
	KindDeny
	// KindDenyDefault blocks compilation with DefaultBlockedMessage.
	KindDenyDefault
)

// String returns the string representation of the kind.
func (k VerdictKind) String() string {
	switch k {
	case KindAllow:
		return "allow"
	case KindDeny:
		return "deny"
	case KindDenyDefault:
		return "deny_default"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of one decision.
// The zero value is Allow.
type Verdict struct {
	kind    VerdictKind
	message string
}

// Allow returns a verdict that lets compilation proceed.
func Allow() Verdict {
	return Verdict{kind: KindAllow}
}

// Deny returns a verdict that blocks compilation with msg.
// An empty msg is a valid (if uninformative) deny, not an allow.
func Deny(msg string) Verdict {
	return Verdict{kind: KindDeny, message: msg}
}

// DenyDefault returns a verdict that blocks compilation with DefaultBlockedMessage.
func DenyDefault() Verdict {
	return Verdict{kind: KindDenyDefault}
}

// Kind returns the verdict's kind.
func (v Verdict) Kind() VerdictKind {
	return v.kind
}

// Allowed reports whether the verdict lets compilation proceed.
func (v Verdict) Allowed() bool {
	return v.kind == KindAllow
}

// Message returns the diagnostic message thrown for a deny verdict.
// It is empty for Allow.
func (v Verdict) Message() string {
	switch v.kind {
	case KindDeny:
		return v.message
	case KindDenyDefault:
		return DefaultBlockedMessage
	default:
		return ""
	}
}

func (v Verdict) String() string {
	if v.kind == KindAllow {
		return v.kind.String()
	}
	return fmt.Sprintf("%s(%q)", v.kind, v.Message())
}
