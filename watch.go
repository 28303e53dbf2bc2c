// Copyright 2026 The Ecovisor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ecovisor

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchDelay is how long a burst of file changes must settle before the
// app is restarted.
const watchDelay = 500 * time.Millisecond

// Paths never worth a restart, whatever ignore_watch says.
var watchSkip = []string{"node_modules", ".git", "*.log"}

// watcher restarts an app when files under its working directory change.
type watcher struct {
	m      *Manager
	app    string
	root   string
	ignore []string
	fw     *fsnotify.Watcher
	done   chan struct{}
	wg     sync.WaitGroup
}

func newWatcher(m *Manager, app, root string, ignore []string) (*watcher, error) {
	fw, e := fsnotify.NewWatcher()
	if e != nil {
		return nil, e
	}
	w := &watcher{
		m:      m,
		app:    app,
		root:   filepath.Clean(root),
		ignore: append(append([]string{}, watchSkip...), ignore...),
		fw:     fw,
		done:   make(chan struct{}),
	}
	if e := w.addTree(w.root); e != nil {
		fw.Close()
		return nil, e
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// ignored reports whether any pattern matches the path, its base name, or
// one of the directories leading to it (relative to the root).
func (w *watcher) ignored(path string) bool {
	rel, e := filepath.Rel(w.root, path)
	if e != nil {
		rel = path
	}
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	for _, pat := range w.ignore {
		if ok, _ := filepath.Match(pat, rel); ok {
			return true
		}
		for _, part := range parts {
			if ok, _ := filepath.Match(pat, part); ok {
				return true
			}
		}
	}
	return false
}

// addTree watches dir and every directory below it that is not ignored.
func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, e error) error {
		if e != nil {
			if path == dir {
				return e
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(path) {
			return filepath.SkipDir
		}
		return w.fw.Add(path)
	})
}

func (w *watcher) run() {
	defer w.wg.Done()
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if ev.Op == fsnotify.Chmod || w.ignored(ev.Name) {
				continue
			}
			if ev.Has(fsnotify.Create) {
				if fi, e := os.Stat(ev.Name); e == nil && fi.IsDir() {
					if e := w.addTree(ev.Name); e != nil {
						w.m.logf("Cannot watch %s: %v", ev.Name, e)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(watchDelay)
			} else {
				timer.Reset(watchDelay)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.m.logf("Change detected under %s, restarting %s", w.root, w.app)
			if e := w.m.RestartApp(w.app); e != nil {
				w.m.logf("Restart of %s failed: %v", w.app, e)
			}

		case e, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.m.logf("Watch error for %s: %v", w.app, e)
		}
	}
}

// Close stops watching.  It must not be called with the manager lock
// held, as a restart may be in progress.
func (w *watcher) Close() {
	close(w.done)
	w.fw.Close()
	w.wg.Wait()
}
