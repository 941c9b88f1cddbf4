// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package policy compiles a YAML policy document into a code generation
// decider.
//
// Rules are evaluated in a fixed order and the first match wins:
//  1. block_flagged_requests: deny if the ambient request is flagged blocked
//  2. max_source_bytes: deny sources longer than the limit
//  3. allow_patterns: allow if any pattern matches the source
//  4. deny_patterns: deny if any pattern matches the source
//  5. default: allow or deny
//
// Deny messages are rendered from the message template; {request_id} and
// {reason} are substituted. An empty template denies with the engine's
// default message.
package policy

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aplane-algo/jsguard/internal/codegen"
	"github.com/aplane-algo/jsguard/internal/reqctx"
)

const (
	DefaultAllow = "allow"
	DefaultDeny  = "deny"
)

// Document is the on-disk policy format.
type Document struct {
	Default              string   `yaml:"default" description:"Verdict when no rule matches: allow or deny" default:"allow"`
	Message              string   `yaml:"message" description:"Deny message template; {request_id} and {reason} are substituted, empty uses the engine default" default:"Blocked eval in request {request_id}"`
	BlockFlaggedRequests *bool    `yaml:"block_flagged_requests" description:"Deny all code generation in requests flagged as blocked" default:"true"`
	MaxSourceBytes       int      `yaml:"max_source_bytes" description:"Deny sources longer than this (0 = no limit)" default:"0"`
	AllowPatterns        []string `yaml:"allow_patterns" description:"Regular expressions; a matching source is allowed"`
	DenyPatterns         []string `yaml:"deny_patterns" description:"Regular expressions; a matching source is denied"`
}

// ValidationError reports an invalid policy field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("policy: %s: %s", e.Field, e.Message)
}

// DefaultDocument returns the policy used when no file is configured:
// allow everything except code generation in flagged requests.
func DefaultDocument() Document {
	return Document{
		Default: DefaultAllow,
		Message: "Blocked eval in request {request_id}",
	}
}

// Parse decodes and validates a policy document.
func Parse(data []byte) (Document, error) {
	doc := DefaultDocument()
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to parse policy: %w", err)
	}
	if doc.Default == "" {
		doc.Default = DefaultAllow
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Load reads and parses the policy file at path. A missing file is an
// error matching fs.ErrNotExist.
func Load(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to read policy file: %w", err)
	}
	return Parse(data)
}

// Validate checks field values without compiling patterns.
func (d Document) Validate() error {
	switch d.Default {
	case DefaultAllow, DefaultDeny:
	default:
		return &ValidationError{Field: "default", Message: fmt.Sprintf("must be %q or %q, got %q", DefaultAllow, DefaultDeny, d.Default)}
	}
	if d.MaxSourceBytes < 0 {
		return &ValidationError{Field: "max_source_bytes", Message: "must not be negative"}
	}
	return nil
}

// Policy is a compiled Document. It is immutable and safe for concurrent use.
type Policy struct {
	defaultDeny  bool
	message      string
	blockFlagged bool
	maxBytes     int
	allow        []*regexp.Regexp
	deny         []*regexp.Regexp
}

// Compile validates d and compiles its patterns.
func (d Document) Compile() (*Policy, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	p := &Policy{
		defaultDeny:  d.Default == DefaultDeny,
		message:      d.Message,
		blockFlagged: d.BlockFlaggedRequests == nil || *d.BlockFlaggedRequests,
		maxBytes:     d.MaxSourceBytes,
	}

	var err error
	if p.allow, err = compilePatterns("allow_patterns", d.AllowPatterns); err != nil {
		return nil, err
	}
	if p.deny, err = compilePatterns("deny_patterns", d.DenyPatterns); err != nil {
		return nil, err
	}
	return p, nil
}

func compilePatterns(field string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, pat := range patterns {
		re, err := regexp.Compile(pat)
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("%s[%d]", field, i), Message: err.Error()}
		}
		out = append(out, re)
	}
	return out, nil
}

// LoadPolicy reads, parses and compiles the policy file at path.
func LoadPolicy(path string) (*Policy, error) {
	doc, err := Load(path)
	if err != nil {
		return nil, err
	}
	return doc.Compile()
}

// Decide implements codegen.Decider.
func (p *Policy) Decide(ctx context.Context, source string) (codegen.Verdict, error) {
	req, hasReq := reqctx.FromContext(ctx)

	if p.blockFlagged && hasReq && req.Blocked {
		return p.denyVerdict(req, "request is blocked"), nil
	}
	if p.maxBytes > 0 && len(source) > p.maxBytes {
		return p.denyVerdict(req, fmt.Sprintf("source is %d bytes, limit %d", len(source), p.maxBytes)), nil
	}
	for _, re := range p.allow {
		if re.MatchString(source) {
			return codegen.Allow(), nil
		}
	}
	for _, re := range p.deny {
		if re.MatchString(source) {
			return p.denyVerdict(req, "source matches "+re.String()), nil
		}
	}
	if p.defaultDeny {
		return p.denyVerdict(req, "denied by default"), nil
	}
	return codegen.Allow(), nil
}

func (p *Policy) denyVerdict(req reqctx.Request, reason string) codegen.Verdict {
	if p.message == "" {
		return codegen.DenyDefault()
	}
	id := req.ID
	if id == "" {
		id = "none"
	}
	msg := strings.NewReplacer("{request_id}", id, "{reason}", reason).Replace(p.message)
	return codegen.Deny(msg)
}

var _ codegen.Decider = (*Policy)(nil)
