package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/memvra/branchmind/internal/scanner"
	"github.com/memvra/branchmind/internal/session"
)

func newIngestCmd() *cobra.Command {
	var (
		format string
		out    string
	)

	cmd := &cobra.Command{
		Use:   "ingest [dir]",
		Short: "Ingest a directory of notes as branches of thoughts",
		Long: `Scan note files (.md, .markdown, .txt, .org, .rst), honouring .gitignore.
Each file becomes a branch named after its path; each paragraph becomes a
thought, labelled with the heading above it. A cross-reference pass then
links related thoughts across every branch.

Examples:
  branchmind ingest notes/
  branchmind ingest notes/ --export mermaid --out graph.mmd`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findRoot()
			if err != nil {
				return err
			}
			dir := root
			if len(args) == 1 {
				if dir, err = filepath.Abs(args[0]); err != nil {
					return err
				}
			}

			sess, err := openSession(root)
			if err != nil {
				return err
			}
			defer sess.Close()

			ctx := cmd.Context()
			w := cmd.OutOrStdout()
			stats, err := ingestNotes(ctx, sess, dir, true)
			if err != nil {
				return err
			}

			bar := spinner("  Cross-referencing")
			rs, err := sess.Recompute(ctx)
			_ = bar.Finish()
			if err != nil {
				fmt.Fprintf(w, "Warning: cross-references not refreshed: %v\n", err)
			}

			fmt.Fprintf(w, "%d notes ingested (%d unchanged), %d thoughts added\n", stats.Notes, stats.Skipped, stats.Thoughts)
			fmt.Fprintf(w, "%d direct and %d multi-hop references across %d thoughts\n", rs.DirectRefs, rs.MultiHopRefs, rs.Thoughts)

			if format == "" {
				return nil
			}
			return writeExport(sess, w, exportOptions{format: format, out: out})
		},
	}

	cmd.Flags().StringVarP(&format, "export", "e", "", "also export the graph (json, markdown, mermaid, dot)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the export to a file instead of stdout")
	return cmd
}

// ingestNotes scans dir and feeds the notes into sess.
func ingestNotes(ctx context.Context, sess *session.Session, dir string, progress bool) (session.IngestStats, error) {
	var bar *progressbar.ProgressBar
	if progress {
		bar = spinner("  Scanning notes")
	}
	result := scanner.Scan(scanner.ScanOptions{Root: dir})
	if bar != nil {
		_ = bar.Finish()
	}
	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stderr, "  Warning: %d file(s) could not be read\n", len(result.Errors))
	}
	if err := ctx.Err(); err != nil {
		return session.IngestStats{}, err
	}
	return sess.Ingest(result.Notes)
}

func spinner(desc string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)
}
