package registry

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads a corpus whenever its corpus or stopword file is written,
// created or renamed into place. Directories are watched rather than files
// so editors that replace files atomically are seen. Watch blocks until ctx
// is done.
func (r *Registry) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer w.Close()

	targets := r.watchTargets()
	dirs := make(map[string]struct{})
	for path := range targets {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			r.logger.Warn("cannot watch directory", "dir", dir, "error", err)
		}
	}
	r.logger.Info("watching corpus files", "files", len(targets), "dirs", len(dirs))

	var (
		mu     sync.Mutex
		timers = make(map[string]*time.Timer)
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		mu.Unlock()
	}()
	schedule := func(name string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[name]; ok {
			t.Reset(r.debounce)
			return
		}
		timers[name] = time.AfterFunc(r.debounce, func() {
			mu.Lock()
			delete(timers, name)
			mu.Unlock()
			if ctx.Err() != nil {
				return
			}
			if stats, err := r.Reload(name); err != nil {
				r.logger.Error("reload after file change failed", "corpus", name, "error", err)
			} else {
				r.logger.Info("corpus reloaded after file change", "corpus", name, "documents", stats.Documents, "generation", stats.Generation)
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			path, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			for _, name := range targets[path] {
				schedule(name)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			r.logger.Error("file watcher error", "error", err)
		}
	}
}

// watchTargets maps absolute file paths to the corpora that read them.
func (r *Registry) watchTargets() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	targets := make(map[string][]string)
	add := func(path, name string) {
		if path == "" {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return
		}
		targets[abs] = append(targets[abs], name)
	}
	for name, e := range r.entries {
		add(e.source.Path, name)
		add(e.source.Stopwords, name)
	}
	return targets
}
