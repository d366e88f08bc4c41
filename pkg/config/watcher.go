// Copyright 2026 New Relic Corporation. All rights reserved.
// SPDX-License-Identifier: Apache-2.0
package config

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/amratab/xctool/pkg/log"
)

// ChangesWatcher reports changes of a configuration file. The parent
// directory is watched so editors replacing the file are noticed too.
type ChangesWatcher struct {
	watcher *fsnotify.Watcher
	logger  log.Entry
	path    string
}

// NewChangesWatcher creates a watcher for path. Watch is a no-op when the
// platform cannot provide file notifications.
func NewChangesWatcher(path string) *ChangesWatcher {
	logger := log.WithComponent("Configuration").WithField("process", "config-changes-watcher")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.WithError(err).Warn("Cannot enable configuration automatic reloading.")
	}
	return &ChangesWatcher{
		watcher: watcher,
		logger:  logger,
		path:    filepath.Clean(path),
	}
}

// Watch pushes to changes, without blocking, every time the file is written,
// created or replaced. It stops when ctx is done.
func (w *ChangesWatcher) Watch(ctx context.Context, changes chan<- struct{}) error {
	if w.watcher == nil {
		return nil
	}
	dir := filepath.Dir(w.path)
	w.logger.WithField("dir", dir).Debug("Adding path to watch.")
	if err := w.watcher.Add(dir); err != nil {
		_ = w.watcher.Close()
		return err
	}

	go w.watchForChanges(ctx, changes)
	return nil
}

func (w *ChangesWatcher) watchForChanges(ctx context.Context, changes chan<- struct{}) {
	defer func() {
		if err := w.watcher.Close(); err != nil {
			w.logger.WithError(err).Debug("Error stopping configuration watcher.")
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleFileEvent(event, changes)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Debug("Error watching configuration file.")
		case <-ctx.Done():
			w.logger.Debug("Stopping configuration watcher.")
			return
		}
	}
}

func (w *ChangesWatcher) handleFileEvent(event fsnotify.Event, changes chan<- struct{}) {
	if filepath.Clean(event.Name) != w.path {
		return
	}
	elog := w.logger.WithField("event", event.String())
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		elog.Debug("Ignoring file event.")
		return
	}
	elog.Debug("Configuration file changed.")

	select {
	case changes <- struct{}{}:
	default:
	}
}
