package cli

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/scanner"
	"github.com/memvra/branchmind/internal/session"
)

func newWatchCmd() *cobra.Command {
	var debounceMs int

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch the notes for changes and keep the graph current",
		Long: `Start a long-running watcher that ingests the project notes, then picks up
every created or modified note file and re-runs the cross-reference pass.

Changes are debounced so that rapid edits (e.g. saving several notes at once)
are batched into a single pass. Thoughts are append-only: removing a note
or a paragraph does not remove its thoughts from the running graph.

Press Ctrl-C to stop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findRoot()
			if err != nil {
				return err
			}
			sess, err := openSession(root)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			if _, err := ingestNotes(ctx, sess, root, true); err != nil {
				return err
			}
			recomputeOrWarn(ctx, sess, out)

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			defer watcher.Close()

			ignore := scanner.NewIgnoreMatcher(root)

			// Add all non-ignored directories recursively.
			if err := addWatchDirs(watcher, root, ignore); err != nil {
				return fmt.Errorf("add watch directories: %w", err)
			}

			debounce := time.Duration(debounceMs) * time.Millisecond
			fmt.Fprintf(out, "Watching %s for note changes (debounce %s). Press Ctrl-C to stop.\n", root, debounce)

			// Collect changed relative paths, debounce, then process.
			pending := make(map[string]struct{})
			timer := time.NewTimer(debounce)
			timer.Stop() // Don't fire immediately.

			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(out, "\nStopping watcher.")
					return nil

				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}

					rel, err := filepath.Rel(root, event.Name)
					if err != nil || rel == "." {
						continue
					}

					// Skip events inside hard-ignored or .branchmind dirs.
					if shouldIgnoreEvent(rel, ignore) {
						continue
					}

					// If a new directory was created, start watching it.
					if event.Has(fsnotify.Create) {
						if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
							if !scanner.HardIgnore(filepath.Base(event.Name)) {
								_ = watcher.Add(event.Name)
							}
							continue
						}
					}

					if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
						continue
					}
					if !scanner.IsNoteFile(filepath.Base(rel)) {
						continue
					}

					pending[rel] = struct{}{}
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
					batch := make([]string, 0, len(pending))
					for rel := range pending {
						batch = append(batch, rel)
					}
					pending = make(map[string]struct{})

					processChanges(ctx, out, root, batch, sess, ignore)
				}
			}
		},
	}

	cmd.Flags().IntVar(&debounceMs, "debounce", 500, "debounce interval in milliseconds")

	return cmd
}

// addWatchDirs recursively adds directories to the watcher, skipping ignored ones.
func addWatchDirs(watcher *fsnotify.Watcher, root string, ignore *scanner.IgnoreMatcher) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if scanner.HardIgnore(d.Name()) {
			return filepath.SkipDir
		}
		rel, _ := filepath.Rel(root, path)
		if rel != "." && ignore.Match(rel) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// shouldIgnoreEvent checks whether a relative path should be ignored by the watcher.
func shouldIgnoreEvent(rel string, ignore *scanner.IgnoreMatcher) bool {
	for _, p := range strings.Split(rel, string(filepath.Separator)) {
		if scanner.HardIgnore(p) {
			return true
		}
	}
	return ignore.Match(rel)
}

// processChanges rescans a batch of changed notes, ingests them and
// refreshes cross-references. It returns the ingest counts.
func processChanges(
	ctx context.Context,
	out io.Writer,
	root string,
	batch []string,
	sess *session.Session,
	ignore *scanner.IgnoreMatcher,
) session.IngestStats {
	sort.Strings(batch)
	notes := make([]scanner.Note, 0, len(batch))
	for _, rel := range batch {
		note, err := scanner.ScanFile(root, rel, scanner.DefaultMaxLines, ignore)
		if err != nil {
			logger.Warn("rescan note", zap.String("path", rel), zap.Error(err))
			continue
		}
		if note != nil {
			notes = append(notes, *note)
		}
	}

	stats, err := sess.Ingest(notes)
	if err != nil {
		fmt.Fprintf(os.Stderr, "  warning: %v\n", err)
		return stats
	}
	if stats.Thoughts == 0 {
		return stats
	}

	ts := time.Now().Format("15:04:05")
	fmt.Fprintf(out, "[%s] %d note(s) changed, +%d thoughts", ts, stats.Notes, stats.Thoughts)
	if rs, err := sess.Recompute(ctx); err != nil {
		fmt.Fprintf(out, " (cross-references stale: %v)", err)
	} else {
		fmt.Fprintf(out, " (%d direct, %d multi-hop refs)", rs.DirectRefs, rs.MultiHopRefs)
	}
	fmt.Fprintln(out)
	return stats
}
