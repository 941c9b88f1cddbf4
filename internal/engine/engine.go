// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package engine resolves the script engine backend for the running
// platform. Resolution fails loudly: an unknown backend, an unsupported
// os/arch pair or a Go runtime older than the backend supports is an
// initialization error, never a silent fallback to an unguarded runtime.
package engine

import (
	"errors"
	"fmt"
	"path"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/dop251/goja"

	"github.com/aplane-algo/jsguard/internal/codegen"
)

// ErrUnsupported is wrapped by resolution failures for a known backend.
var ErrUnsupported = errors.New("backend does not support this platform")

// Platform identifies the host an engine backend must run on.
type Platform struct {
	OS        string
	Arch      string
	GoVersion string
}

// CurrentPlatform returns the platform of the running process.
func CurrentPlatform() Platform {
	return Platform{OS: runtime.GOOS, Arch: runtime.GOARCH, GoVersion: runtime.Version()}
}

func (p Platform) String() string {
	return fmt.Sprintf("%s/%s %s", p.OS, p.Arch, p.GoVersion)
}

// GoMinor extracts the minor version from a Go version string such as
// "go1.25.3", "go1.26rc1" or "devel go1.26-abcdef".
func (p Platform) GoMinor() (int, error) {
	v := p.GoVersion
	i := strings.Index(v, "go1.")
	if i < 0 {
		return 0, fmt.Errorf("unrecognized Go version %q", v)
	}
	v = v[i+len("go1."):]
	end := 0
	for end < len(v) && v[end] >= '0' && v[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("unrecognized Go version %q", p.GoVersion)
	}
	return strconv.Atoi(v[:end])
}

// Backend describes one script engine implementation.
type Backend struct {
	Name string
	// Platforms lists supported "os/arch" patterns; path.Match syntax, so
	// "*/*" means everywhere.
	Platforms []string
	// MinGoMinor is the oldest supported Go 1.x minor version.
	MinGoMinor int
	// NewRuntime creates a fresh runtime. The code generation hook is not
	// installed yet.
	NewRuntime func() *goja.Runtime
}

// Supports reports why b cannot run on p, or nil if it can.
func (b Backend) Supports(p Platform) error {
	target := p.OS + "/" + p.Arch
	matched := false
	for _, pattern := range b.Platforms {
		if ok, _ := path.Match(pattern, target); ok {
			matched = true
			break
		}
	}
	if !matched {
		return fmt.Errorf("%w: %s not in %v", ErrUnsupported, target, b.Platforms)
	}

	minor, err := p.GoMinor()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if minor < b.MinGoMinor {
		return fmt.Errorf("%w: Go %s is older than required go1.%d", ErrUnsupported, p.GoVersion, b.MinGoMinor)
	}
	return nil
}

var (
	mu       sync.RWMutex
	backends = make(map[string]Backend)
)

// Register adds a backend. Registering a name twice is an error.
func Register(b Backend) error {
	if b.Name == "" || b.NewRuntime == nil {
		return fmt.Errorf("engine: backend needs a name and a runtime constructor")
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := backends[b.Name]; exists {
		return fmt.Errorf("engine: backend %q already registered", b.Name)
	}
	backends[b.Name] = b
	return nil
}

// Names returns the registered backend names, sorted alphabetically.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the named backend if it supports p.
// Failures are *codegen.InitializationError naming the platform tuple.
func Resolve(name string, p Platform) (Backend, error) {
	mu.RLock()
	b, ok := backends[name]
	mu.RUnlock()

	if !ok {
		return Backend{}, &codegen.InitializationError{
			Op:  "resolve engine",
			Err: fmt.Errorf("no backend %q for %s (available: %s)", name, p, strings.Join(Names(), ", ")),
		}
	}
	if err := b.Supports(p); err != nil {
		return Backend{}, &codegen.InitializationError{
			Op:  "resolve engine",
			Err: fmt.Errorf("backend %q on %s: %w", name, p, err),
		}
	}
	return b, nil
}
