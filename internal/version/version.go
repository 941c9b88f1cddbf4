// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package version holds build information for jsguard, injected via -ldflags:
//
//	go build -ldflags "-X github.com/aplane-algo/jsguard/internal/version.Version=0.1.0" ./cmd/jsguard
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "dev"
	GitCommit = "unknown"
	// BuildTime is RFC3339.
	BuildTime = "unknown"
)

// String returns the -version line: version, commit, build time and the
// platform tuple the engine backend is resolved against.
func String() string {
	return fmt.Sprintf("%s (commit: %s, built: %s, %s/%s %s)",
		Version, GitCommit, BuildTime, runtime.GOOS, runtime.GOARCH, runtime.Version())
}
