package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memvra/branchmind/internal/cache"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the embedding and summary caches",
		Long: `Only the persistent embedding tier outlives a process; the in-memory
tiers start empty on every command. Use "branchmind serve --metrics-addr"
to watch a long-running session.`,
	}
	cmd.AddCommand(newCacheStatsCmd(), newCacheClearCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entries, hits and misses per cache tier",
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

			st := sess.CacheStats()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TIER\tENTRIES\tHITS\tMISSES")
			for _, t := range st.Tiers {
				fmt.Fprintf(tw, "%s\t%d\t%.0f\t%.0f\n", t.Name, t.Entries, t.Hits, t.Misses)
			}
			_ = tw.Flush()
			fmt.Fprintf(cmd.OutOrStdout(), "Gateway calls: %.0f (%.0f errors)\n", st.GatewayCalls, st.GatewayErrors)
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "clear [tier]",
		Short:     "Clear one cache tier, or all of them",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{cache.TierEmbeddings, cache.TierPersistent, cache.TierSummaries, cache.TierFormatting, cache.TierAll},
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := cache.TierAll
			if len(args) == 1 {
				tier = args[0]
			}

			root, err := findRoot()
			if err != nil {
				return err
			}
			sess, err := openSession(root)
			if err != nil {
				return err
			}
			defer sess.Close()

			if err := sess.ClearCache(tier); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s cache.\n", tier)
			return nil
		},
	}
}
