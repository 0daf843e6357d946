package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/lectern/lectern/internal/config"
	"github.com/lectern/lectern/internal/jobs"
)

func newWatchCmd() *cobra.Command {
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "watch <course> <dir>",
		Short: "Watch a directory and keep a course's index in sync",
		Long: `Start a long-running watcher over a directory of text exports. New and
modified .txt/.md files are re-ingested under the given course; removed
files have their passages dropped. Changes are debounced so a batch of
saved files becomes one ingest pass.

While watching, the memory sweep and index snapshot jobs run on their
configured cron schedules.

Press Ctrl-C to stop.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			course := args[0]
			dir, err := filepath.Abs(args[1])
			if err != nil {
				return err
			}
			if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
				return fmt.Errorf("%s is not a directory", dir)
			}

			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			if err := watcher.Add(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			scheduler := jobs.NewCronScheduler(a.logger)
			_ = scheduler.AddJob(&jobs.SweepJob{
				Store:    a.memStore,
				TurnsTTL: a.cfg.Memory.ShortTermTTL.Duration,
				Logger:   a.logger,
			}, a.cfg.Jobs.SweepSpec)
			_ = scheduler.AddJob(&jobs.SnapshotJob{
				Store:  a.index,
				Path:   config.IndexPath(a.dataDir),
				Logger: a.logger,
			}, a.cfg.Jobs.RebuildSpec)
			scheduler.Start(ctx)
			defer scheduler.Stop()

			if debounceMs <= 0 {
				debounceMs = a.cfg.Jobs.DebounceMs
			}
			debounce := time.Duration(debounceMs) * time.Millisecond

			fmt.Printf("Watching %s for course %s (debounce %s). Press Ctrl-C to stop.\n", dir, course, debounce)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			pending := make(map[string]fsnotify.Op)
			timer := time.NewTimer(debounce)
			timer.Stop()

			for {
				select {
				case <-sigCh:
					fmt.Println("\nStopping watcher.")
					return a.saveIndex()

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if !watchableFile(event.Name) {
						continue
					}
					pending[event.Name] = pending[event.Name] | event.Op
					timer.Reset(debounce)

				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					fmt.Fprintf(os.Stderr, "  watch error: %v\n", err)

				case <-timer.C:
					if len(pending) == 0 {
						continue
					}
					batch := pending
					pending = make(map[string]fsnotify.Op)
					processBatch(ctx, a, course, batch)

				case <-ctx.Done():
					return nil
				}
			}
		},
	}

	cmd.Flags().IntVar(&debounceMs, "debounce", 0, "debounce interval in milliseconds (default from config)")

	return cmd
}

// watchableFile reports whether a path is one of the text formats we
// ingest.
func watchableFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		return true
	}
	return false
}

// processBatch re-ingests one debounced batch of changed files.
func processBatch(ctx context.Context, a *app, course string, batch map[string]fsnotify.Op) {
	var added, removed int

	for path, op := range batch {
		src := sourceFromPath(path)

		if op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename) {
			if _, err := os.Stat(path); os.IsNotExist(err) {
				removed += a.index.RemoveSource(src)
				continue
			}
		}

		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}

		// Replace rather than merge so stale passages of the old
		// revision do not linger.
		a.index.RemoveSource(src)
		report, err := a.index.Add(ctx, splitChunks(src, course, string(data)))
		if err != nil {
			fmt.Fprintf(os.Stderr, "  warning: %s: %v\n", path, err)
			continue
		}
		added += report.Added
	}

	if added == 0 && removed == 0 {
		return
	}

	if err := a.saveIndex(); err != nil {
		fmt.Fprintf(os.Stderr, "  warning: save index: %v\n", err)
	}

	ts := time.Now().Format("15:04:05")
	fmt.Printf("[%s] +%d passages, -%d removed\n", ts, added, removed)
}
