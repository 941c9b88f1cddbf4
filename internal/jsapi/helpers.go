// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package jsapi

import (
	"strings"

	"github.com/dop251/goja"
)

// requireArgs panics with a JS exception if the call has fewer than n arguments.
func (a *API) requireArgs(call goja.FunctionCall, n int, msg string) {
	if len(call.Arguments) < n {
		panic(a.runtime.NewTypeError(msg))
	}
}

// joinArgs renders arguments the way console output does: strings verbatim,
// everything else through its JS string conversion, separated by spaces.
func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		if arg == nil {
			parts[i] = "undefined"
			continue
		}
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}
