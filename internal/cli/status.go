package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/memvra/branchmind/internal/config"
	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/scanner"
	"github.com/memvra/branchmind/internal/session"
)

// approxTokens makes sessions estimate token counts instead of loading the
// tiktoken encoding. Tests set it to stay offline.
var approxTokens bool

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Ingest the project notes and show every branch's status",
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

			ctx := cmd.Context()
			if _, err := ingestNotes(ctx, sess, root, false); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			recomputeOrWarn(ctx, sess, out)

			branches := sess.Branches()
			if len(branches) == 0 {
				fmt.Fprintln(out, "No branches yet. Add notes (.md, .txt) under", root)
			}
			for _, b := range branches {
				view, err := sess.BranchStatus(b.ID)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, view)
			}

			sum := sess.SummarizeTasks()
			fmt.Fprintf(out, "Tasks:    %d total, %d open, %d overdue\n",
				sum.Total, sum.ByStatus[memory.StatusOpen], len(sum.Overdue))

			var dbSize int64
			if fi, err := os.Stat(config.ProjectDBPath(root)); err == nil {
				dbSize = fi.Size()
			}
			info := sess.EmbedderInfo()
			fmt.Fprintf(out, "Embedder: %s (%s)\n", info.Provider, info.Name)
			fmt.Fprintf(out, "DB size:  %s\n", formatBytes(dbSize))
			return nil
		},
	}
}

// recomputeOrWarn runs a scoring pass; a gateway failure leaves the graph
// as it was and is reported without failing the command.
func recomputeOrWarn(ctx context.Context, sess *session.Session, out io.Writer) {
	if _, err := sess.Recompute(ctx); err != nil {
		fmt.Fprintf(out, "Warning: cross-references not refreshed: %v\n", err)
	}
}

// findRoot returns --root if given, else the nearest directory containing
// .branchmind/, else the detected project root.
func findRoot() (string, error) {
	if flagRoot != "" {
		return filepath.Abs(flagRoot)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	dir, _ := filepath.Abs(cwd)
	for {
		if _, err := os.Stat(filepath.Join(dir, config.DirName)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	// Fall back to project root detection.
	return scanner.FindProjectRoot(cwd)
}

// openSession loads the effective config for root and opens a session.
func openSession(root string) (*session.Session, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	sess, err := session.Open(session.Options{
		Root:         root,
		Config:       cfg,
		ApproxTokens: approxTokens,
		Log:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	logger.Debug("session ready", zap.String("root", root))
	return sess, nil
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
