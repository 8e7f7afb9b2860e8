package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memvra/branchmind/internal/adapter"
	"github.com/memvra/branchmind/internal/config"
	"github.com/memvra/branchmind/internal/scanner"
)

func newInitCmd() *cobra.Command {
	var skipPrompt bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize branchmind in the current project",
		Long: `Create the .branchmind/ directory with a project config, the task and
snippet database, and the embedding cache, then ingest any notes found.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			root := flagRoot
			if root == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("get working directory: %w", err)
				}
				if root, err = scanner.FindProjectRoot(cwd); err != nil {
					return err
				}
			}
			root, _ = filepath.Abs(root)
			out := cmd.OutOrStdout()

			if err := os.MkdirAll(config.ProjectConfigDirPath(root), 0o755); err != nil {
				return fmt.Errorf("create %s: %w", config.DirName, err)
			}

			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			if cfg.Project.Name == "" {
				cfg.Project.Name = filepath.Base(root)
			}
			if !skipPrompt {
				cfg.DefaultEmbedder = promptEmbedder(cmd.InOrStdin(), out, cfg.DefaultEmbedder)
			}
			if err := config.SaveProject(root, cfg); err != nil {
				fmt.Fprintf(os.Stderr, "  Warning: could not write project config: %v\n", err)
			}

			sess, err := openSession(root)
			if err != nil {
				return err
			}
			defer sess.Close()

			stats, err := ingestNotes(cmd.Context(), sess, root, true)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d notes found, %d thoughts across %d branches\n",
				stats.Notes, stats.Thoughts, len(sess.Branches()))

			ensureGitignore(root)

			fmt.Fprintln(out)
			fmt.Fprintf(out, "branchmind initialized for %s. State saved to %s/\n", cfg.Project.Name, config.DirName)
			fmt.Fprintln(out, `Tip: Run "branchmind serve" to expose the graph to an MCP client.`)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipPrompt, "no-prompt", false, "Keep the configured embedder without asking")
	return cmd
}

// promptEmbedder asks for an embedding provider; an empty or unknown answer
// keeps current.
func promptEmbedder(in io.Reader, out io.Writer, current string) string {
	fmt.Fprintf(out, "Embedding provider (%s) [%s]: ", strings.Join(adapter.ValidProviders, ", "), current)
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	if line == "" {
		return current
	}
	if !slices.Contains(adapter.ValidProviders, line) {
		fmt.Fprintf(out, "  Unknown provider %q, keeping %s\n", line, current)
		return current
	}
	return line
}

// ensureGitignore appends .branchmind/ to .gitignore if not already present.
func ensureGitignore(root string) {
	entry := config.DirName + "/"
	path := filepath.Join(root, ".gitignore")
	content, err := os.ReadFile(path)
	if err == nil && strings.Contains(string(content), entry) {
		return
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()

	if len(content) > 0 && !strings.HasSuffix(string(content), "\n") {
		_, _ = f.WriteString("\n")
	}
	_, _ = f.WriteString(entry + "\n")
}
