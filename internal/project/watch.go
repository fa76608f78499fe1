package project

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/blockc/internal/config"
)

// settleDelay is how long the tree must stay quiet before a rebuild.
// Editors often save a file in several writes.
const settleDelay = 150 * time.Millisecond

// Watch builds the project and rebuilds it after every change to its
// sources until ctx is done. load is called before each build so edits to
// the project file take effect; report receives every outcome, including
// failed loads. A failed build does not stop the watch.
func Watch(ctx context.Context, load func() (*config.Config, error), opts Options, report func(*Result, error)) error {
	cfg, err := load()
	if err != nil {
		return err
	}
	log := discardIfNil(opts.Logger)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, dir := range watchRoots(cfg) {
		if err := addTree(watcher, dir, cfg); err != nil {
			return err
		}
	}

	report(Build(ctx, cfg, opts))

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevant(ev, cfg) {
				continue
			}
			log.Debug("source changed", "path", ev.Name, "op", ev.Op.String())
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					if err := addTree(watcher, ev.Name, cfg); err != nil {
						log.Warn("cannot watch new directory", "path", ev.Name, "err", err)
					}
				}
			}
			if timer == nil {
				timer = time.NewTimer(settleDelay)
			} else {
				timer.Reset(settleDelay)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("watch error", "err", err)

		case <-fire:
			fire = nil
			next, err := load()
			if err != nil {
				report(nil, err)
				continue
			}
			cfg = next
			report(Build(ctx, cfg, opts))
		}
	}
}

// watchRoots lists the directories holding the project's inputs: the
// project root, package paths and the extensions directory.
func watchRoots(cfg *config.Config) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p == "" {
			return
		}
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			p = filepath.Dir(p)
		}
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	add(cfg.Root)
	for _, p := range cfg.Project.Packages {
		add(p)
	}
	add(cfg.Project.ExtensionsDir)
	return out
}

// addTree watches dir and its subdirectories, skipping hidden directories
// and the build output.
func addTree(w *fsnotify.Watcher, dir string, cfg *config.Config) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && (hidden(d.Name()) || generated(path, cfg)) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

// relevant reports whether ev may change the build.
func relevant(ev fsnotify.Event, cfg *config.Config) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Base(ev.Name)
	if hidden(name) || strings.HasSuffix(name, "~") {
		return false
	}
	return !generated(ev.Name, cfg)
}

// generated reports whether path is written by the build itself.
func generated(path string, cfg *config.Config) bool {
	switch {
	case cfg.Project.Cache != "" && strings.HasPrefix(path, cfg.Project.Cache):
		// The database and its -wal and -shm files.
		return true
	case path == cfg.ArchivePath(), path == filepath.Join(cfg.Project.Output, projectEntry):
		return true
	}
	for _, dir := range []string{cfg.Project.Output, filepath.Dir(cfg.Project.Cache)} {
		if dir == "" || dir == cfg.Root || dir == "." {
			continue
		}
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func hidden(name string) bool { return strings.HasPrefix(name, ".") }
