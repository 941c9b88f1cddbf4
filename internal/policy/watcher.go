// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (C) 2026 aPlane Authors

package policy

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/aplane-algo/jsguard/internal/util"
)

// DebounceDelay collapses bursts of editor writes into one reload.
const DebounceDelay = 250 * time.Millisecond

// Watch reloads the policy file at path whenever it changes and passes each
// successfully compiled policy to onReload. A file that is removed or fails
// to parse or compile is logged and the previous policy stays in effect.
//
// The parent directory is watched so that editors which replace the file by
// rename are seen. Reloads run one at a time on the watcher goroutine.
// Watching stops when ctx is cancelled.
func Watch(ctx context.Context, path string, onReload func(*Policy)) error {
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch policy directory: %w", err)
	}

	util.Logger.Info("watching policy file", "path", path)

	go func() {
		defer func() { _ = watcher.Close() }()

		// Debounce timer; pending is nil while no reload is scheduled.
		timer := time.NewTimer(DebounceDelay)
		timer.Stop()
		defer timer.Stop()
		var pending <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path {
					continue
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
					continue
				}
				timer.Reset(DebounceDelay)
				pending = timer.C

			case <-pending:
				pending = nil
				reload(path, onReload)

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				util.Logger.Warn("policy watcher error", "error", err)
			}
		}
	}()

	return nil
}

func reload(path string, onReload func(*Policy)) {
	p, err := LoadPolicy(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			util.Logger.Warn("policy file removed, keeping previous policy", "path", path)
			return
		}
		util.Logger.Warn("policy reload failed, keeping previous policy", "path", path, "error", err)
		return
	}
	util.Logger.Info("policy reloaded", "path", path)
	onReload(p)
}
