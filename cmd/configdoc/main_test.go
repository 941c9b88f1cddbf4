// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package main

import (
	"bytes"
	"strings"
	"testing"
)

func TestWriteReference(t *testing.T) {
	var buf bytes.Buffer
	writeReference(&buf)
	out := buf.String()

	for _, want := range []string{
		"| `policy_file` | string | `policy.yaml` |",
		"| `audit` | object | (none) |",
		"| `audit.buffer_size` | int | `1024` |",
		"| `block_flagged_requests` | *bool | `true` |",
		"| `deny_patterns` | []string | `(none)` |",
		"| `JSGUARD_DATA` |",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("reference missing %q", want)
		}
	}
}
