package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newSearchCmd() *cobra.Command {
	var (
		limit int
		hubs  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the thoughts closest in meaning to a query",
		Long: `Ingest the project notes and rank every thought by semantic similarity
to the query. With --hubs, list the most central thoughts instead.

Examples:
  branchmind search "retry policy for the uploader"
  branchmind search --hubs -n 10`,
		Args: func(cmd *cobra.Command, args []string) error {
			if hubs {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.MinimumNArgs(1)(cmd, args)
		},
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
			out := cmd.OutOrStdout()
			if _, err := ingestNotes(ctx, sess, root, false); err != nil {
				return err
			}

			if hubs {
				recomputeOrWarn(ctx, sess, cmd.ErrOrStderr())
				for i, h := range sess.HubThoughts(limit) {
					fmt.Fprintf(out, "%2d. [%.4f] %s  %s\n", i+1, h.Rank, h.Thought.BranchID, preview(h.Thought.Content, 80))
				}
				return nil
			}

			results, err := sess.SemanticSearch(ctx, strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintln(out, "No matching thoughts.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%2d. [%.2f] %s (%s)\n    %s\n",
					i+1, r.Similarity, r.Thought.BranchID, r.Thought.ID, preview(r.Thought.Content, 120))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of results")
	cmd.Flags().BoolVar(&hubs, "hubs", false, "list the most central thoughts")
	return cmd
}

// preview collapses whitespace and cuts s to at most n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
