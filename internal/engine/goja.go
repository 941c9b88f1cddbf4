// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package engine

import "github.com/dop251/goja"

// GojaName is the name of the built-in goja backend.
const GojaName = "goja"

func init() {
	// goja is pure Go; the hook's weak-keyed install table needs go1.24.
	if err := Register(Backend{
		Name:       GojaName,
		Platforms:  []string{"*/*"},
		MinGoMinor: 24,
		NewRuntime: func() *goja.Runtime {
			vm := goja.New()
			vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
			return vm
		},
	}); err != nil {
		panic(err)
	}
}
