// Package cli defines the Cobra command tree for the branchmind CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	flagRoot    string
	flagVerbose bool

	// logger is built once per invocation; it writes to stderr so stdout
	// stays free for command output and the MCP transport.
	logger = zap.NewNop()
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "branchmind",
	Short: "A knowledge graph of branching thoughts, cross-referenced by meaning",
	Long: `branchmind keeps thoughts organized in branches, links them to each other by
semantic similarity, scores them, extracts tasks from their text and renders
the resulting graph.

Point it at a directory of notes ('branchmind ingest'), talk to it over MCP
('branchmind serve'), or explore interactively ('branchmind repl').`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(flagVerbose)
		if err != nil {
			return fmt.Errorf("build logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagRoot, "root", "r", "", "project root (default: auto-detect from cwd)")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "verbose development logging to stderr")

	rootCmd.AddCommand(
		newInitCmd(),
		newIngestCmd(),
		newWatchCmd(),
		newServeCmd(),
		newReplCmd(),
		newStatusCmd(),
		newSearchCmd(),
		newExportCmd(),
		newTasksCmd(),
		newSnippetCmd(),
		newCacheCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "branchmind %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
