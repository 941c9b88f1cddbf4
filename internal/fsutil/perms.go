// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

// Package fsutil provides filesystem helpers for the jsguard data directory.
// The audit database and REPL history can contain request IDs and deny
// messages, so they are kept private to the owning user (0700 dirs, 0600
// files).
package fsutil

import (
	"os"
	"path/filepath"
)

// DataDirPerm is the permission mode for data directories.
const DataDirPerm os.FileMode = 0700

// DataFilePerm is the permission mode for data files.
const DataFilePerm os.FileMode = 0600

// MkdirAll creates a directory and all parents with data permissions.
// Unlike os.MkdirAll, this explicitly sets permissions after creation to
// bypass umask restrictions.
func MkdirAll(path string) error {
	if err := os.MkdirAll(path, DataDirPerm); err != nil {
		return err
	}
	return os.Chmod(path, DataDirPerm)
}

// EnsureParent creates the parent directory of file if it is missing.
func EnsureParent(file string) error {
	dir := filepath.Dir(file)
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return MkdirAll(dir)
}

// TouchPrivate creates file with data permissions if it does not exist and
// tightens the permissions of an existing one.
func TouchPrivate(file string) error {
	f, err := os.OpenFile(file, os.O_CREATE|os.O_RDONLY, DataFilePerm)
	if err != nil {
		return err
	}
	if err := f.Chmod(DataFilePerm); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
