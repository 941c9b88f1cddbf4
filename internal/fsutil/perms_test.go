// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package fsutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureParentAndTouch(t *testing.T) {
	file := filepath.Join(t.TempDir(), "a", "b", "audit.db")

	if err := EnsureParent(file); err != nil {
		t.Fatalf("EnsureParent: %v", err)
	}
	info, err := os.Stat(filepath.Dir(file))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != DataDirPerm {
		t.Errorf("dir perm = %o, want %o", perm, DataDirPerm)
	}

	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := TouchPrivate(file); err != nil {
		t.Fatalf("TouchPrivate: %v", err)
	}
	info, err = os.Stat(file)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != DataFilePerm {
		t.Errorf("file perm = %o, want %o", perm, DataFilePerm)
	}
	if info.Size() != 1 {
		t.Error("TouchPrivate must not truncate")
	}
}
