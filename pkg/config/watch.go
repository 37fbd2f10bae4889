// Copyright 2020 The Kubernetes Authors.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"k8s.io/klog/v2"
)

// ChangeFunc is invoked with a freshly loaded PAC whenever the Watcher
// observes a change. A non-nil err means the source changed but failed
// to load or compile; the previous CompiledPAC (if any) keeps running
// per spec §4.C10's "never take the whole run down" rule.
type ChangeFunc func(pac *CompiledPAC, err error)

// Watcher observes one PAC source for changes and invokes a ChangeFunc
// on every update, until its context is cancelled.
type Watcher interface {
	Watch(ctx context.Context, onChange ChangeFunc) error
}

// FileWatcher watches a local PAC file with fsnotify, reloading it on
// every write. This is the common case for integrations developed and
// run against a file on disk rather than a Port-hosted PAC.
type FileWatcher struct {
	Path   string
	Loader *Loader
}

// NewFileWatcher returns a Watcher over a local PAC file.
func NewFileWatcher(path string, loader *Loader) *FileWatcher {
	return &FileWatcher{Path: path, Loader: loader}
}

// Watch blocks until ctx is cancelled or an unrecoverable watcher error
// occurs. It fires onChange once immediately with the file's current
// contents, then again on every subsequent write.
func (w *FileWatcher) Watch(ctx context.Context, onChange ChangeFunc) error {
	w.load(onChange)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("starting file watcher for %q: %w", w.Path, err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Path); err != nil {
		return fmt.Errorf("watching %q: %w", w.Path, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.load(onChange)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			klog.Errorf("port-app-config watch error for %q: %v", w.Path, err)
		}
	}
}

func (w *FileWatcher) load(onChange ChangeFunc) {
	f, err := os.Open(w.Path)
	if err != nil {
		onChange(nil, fmt.Errorf("opening %q: %w", w.Path, err))
		return
	}
	defer f.Close()

	pac, err := w.Loader.Load(f)
	if err != nil {
		onChange(nil, err)
		return
	}
	onChange(pac, nil)
}

// FetchFunc retrieves the current raw bytes of a remote PAC source (for
// example, Port's integration-config API).
type FetchFunc func(ctx context.Context) ([]byte, error)

// PollWatcher polls a remote PAC source on a fixed interval. Remote
// sources rarely offer a push notification, so polling is the
// substitute for fsnotify there; FileWatcher is used instead wherever
// the source is a local file.
type PollWatcher struct {
	Interval time.Duration
	Fetch    FetchFunc
	Loader   *Loader
}

// NewPollWatcher returns a Watcher that re-fetches a remote PAC every
// interval via fetch.
func NewPollWatcher(interval time.Duration, fetch FetchFunc, loader *Loader) *PollWatcher {
	return &PollWatcher{Interval: interval, Fetch: fetch, Loader: loader}
}

// Watch blocks until ctx is cancelled. It fires onChange once
// immediately, then again every Interval, skipping a cycle's callback
// entirely if the fetched bytes are byte-for-byte identical to the last
// successful load.
func (w *PollWatcher) Watch(ctx context.Context, onChange ChangeFunc) error {
	var lastRaw []byte

	poll := func() {
		raw, err := w.Fetch(ctx)
		if err != nil {
			onChange(nil, fmt.Errorf("fetching port-app-config: %w", err))
			return
		}
		if lastRaw != nil && string(raw) == string(lastRaw) {
			return
		}
		pac, err := w.Loader.LoadBytes(raw)
		if err != nil {
			onChange(nil, err)
			return
		}
		lastRaw = raw
		onChange(pac, nil)
	}

	poll()

	ticker := time.NewTicker(w.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			poll()
		}
	}
}
