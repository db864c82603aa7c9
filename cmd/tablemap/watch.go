package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/tablemap/tablemap/internal/config"
)

const watchSettle = 500 * time.Millisecond

var (
	watchOut      string
	watchExisting bool
	watchFlags    strategyFlags
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Extract tables from every PDF or primitives file dropped into a directory",
	Long: `Watch a directory and run the full pipeline on each new or rewritten
.pdf or .json file once it has stopped changing. The config file is
reloaded on change; the next file picks up the new settings.

Examples:
  tablemap watch inbox -o out
  tablemap watch inbox -o out --existing --no-text-only`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		var current atomic.Pointer[config.Config]
		cfg := watchFlags.apply(*mgr.Get())
		current.Store(&cfg)
		mgr.OnChange(func(c *config.Config) {
			next := watchFlags.apply(*c)
			current.Store(&next)
		})
		mgr.WatchConfig()

		w := &dirWatcher{
			dir:    args[0],
			settle: watchSettle,
			handle: func(ctx context.Context, path string) {
				if _, err := process(ctx, path, watchOut, *current.Load()); err != nil {
					Logger.Error("processing failed", "path", path, "err", err)
				}
			},
		}
		if watchExisting {
			if err := w.scan(cmd.Context()); err != nil {
				return err
			}
		}
		return w.run(cmd.Context())
	},
}

func init() {
	watchCmd.Flags().StringVarP(&watchOut, "out", "o", ".", "output directory")
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "process files already in the directory first")
	watchFlags.register(watchCmd)
}

// dirWatcher hands each candidate file to handle once no event has touched it
// for settle.
type dirWatcher struct {
	dir    string
	settle time.Duration
	handle func(ctx context.Context, path string)
}

// watchable skips hidden and temp files and our own structure maps.
func watchable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, ".tmp") {
		return false
	}
	if strings.Contains(base, "_structure_map.") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".pdf", ".json":
		return true
	}
	return false
}

func (w *dirWatcher) scan(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		path := filepath.Join(w.dir, e.Name())
		if !e.IsDir() && watchable(path) {
			w.handle(ctx, path)
		}
	}
	return nil
}

func (w *dirWatcher) run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	Logger.Info("watching directory", "dir", w.dir)

	pending := map[string]time.Time{}
	tick := time.NewTicker(w.settle / 2)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) {
				if watchable(ev.Name) {
					pending[ev.Name] = time.Now()
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			Logger.Warn("watcher error", "err", err)
		case now := <-tick.C:
			for path, seen := range pending {
				if now.Sub(seen) < w.settle {
					continue
				}
				delete(pending, path)
				Logger.Debug("file settled", "path", path)
				w.handle(ctx, path)
			}
		}
	}
}
