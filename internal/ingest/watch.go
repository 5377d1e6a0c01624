// Copyright 2020 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-lpc/csi/archive"
)

// Watch processes the logger files already present in the data root, then
// the ones appearing in it, once they have not been modified for settle.
// The outcome of every run is handed to done.
// Watch returns when ctx is canceled.
func (p *Pipeline) Watch(ctx context.Context, settle time.Duration, done func(Report, error)) error {
	if settle <= 0 {
		settle = time.Second
	}
	if done == nil {
		done = func(Report, error) {}
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: could not create watcher: %w", err)
	}
	defer w.Close()

	err = w.Add(p.cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("ingest: could not watch %q: %w", p.cfg.DataRoot, err)
	}

	fnames, err := archive.List(p.cfg.DataRoot)
	if err != nil {
		return fmt.Errorf("ingest: could not list logger files: %w", err)
	}
	if len(fnames) > 0 {
		done(p.Run(ctx, fnames...))
	}

	tick := time.NewTicker(settle / 2)
	defer tick.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !archive.Match(name) {
				continue
			}
			pending[name] = time.Now()

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			p.msg.Printf("watcher error: %+v", err)

		case now := <-tick.C:
			var ready []string
			for name, last := range pending {
				if now.Sub(last) < settle {
					continue
				}
				delete(pending, name)
				if _, err := os.Stat(filepath.Join(p.cfg.DataRoot, name)); err != nil {
					continue
				}
				ready = append(ready, name)
			}
			if len(ready) == 0 {
				continue
			}
			sort.Strings(ready)
			done(p.Run(ctx, ready...))
		}
	}
}
