package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memvra/branchmind/internal/export"
	"github.com/memvra/branchmind/internal/memory"
	"github.com/memvra/branchmind/internal/session"
	"github.com/memvra/branchmind/internal/visualize"
)

type exportOptions struct {
	format string
	out    string
	viz    visualize.Options
}

func newExportCmd() *cobra.Command {
	var (
		opts  exportOptions
		level string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the thought graph as JSON, markdown, Mermaid, or DOT",
		Long: `Ingest the project notes, score them, and render the graph.
Output is written to stdout unless --out is given.

Examples:
  branchmind export --format mermaid > graph.mmd
  branchmind export --format dot --level full --cluster | dot -Tsvg > graph.svg
  branchmind export --format markdown --branch notes/design`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.viz.Level = visualize.Level(strings.ToLower(level))

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
			recomputeOrWarn(ctx, sess, cmd.ErrOrStderr())
			return writeExport(sess, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "markdown",
		"output format: "+strings.Join(export.ValidFormats(), ", "))
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "write to a file instead of stdout")
	cmd.Flags().StringVar(&level, "level", string(visualize.LevelDetailed), "detail level: basic, detailed, full")
	cmd.Flags().StringSliceVarP(&opts.viz.Branches, "branch", "b", nil, "restrict to these branches (repeatable)")
	cmd.Flags().BoolVar(&opts.viz.Cluster, "cluster", false, "group thoughts into semantic clusters")
	cmd.Flags().BoolVar(&opts.viz.Centrality, "centrality", false, "compute node centrality")
	cmd.Flags().StringVar(&opts.viz.Focus, "focus", "", "only show the neighbourhood of this node")

	return cmd
}

// writeExport renders the session's graph with the named exporter and writes
// it to opts.out, or w when no file is set.
func writeExport(sess *session.Session, w io.Writer, opts exportOptions) error {
	exp, ok := export.Get(strings.ToLower(opts.format))
	if !ok {
		return fmt.Errorf("unknown format %q; valid formats: %s",
			opts.format, strings.Join(export.ValidFormats(), ", "))
	}

	g, err := sess.Visualize(opts.viz)
	if err != nil {
		return err
	}
	data := export.ExportData{
		Graph:    g,
		Branches: sess.Branches(),
		Tasks:    sess.ListTasks(memory.TaskFilter{}),
	}
	if active, err := sess.ActiveBranch(); err == nil {
		data.ActiveBranch = active.ID
	}

	output, err := exp.Export(data)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	if opts.out == "" {
		_, err = io.WriteString(w, output)
		return err
	}
	if err := os.WriteFile(opts.out, []byte(output), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	fmt.Fprintf(w, "Wrote %s export to %s\n", strings.ToLower(opts.format), opts.out)
	return nil
}
