package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/memvra/branchmind/internal/memory"
)

func newSnippetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snippet",
		Aliases: []string{"snippets"},
		Short:   "Store and search code snippets",
	}
	cmd.AddCommand(newSnippetAddCmd(), newSnippetListCmd(), newSnippetSearchCmd())
	return cmd
}

func newSnippetAddCmd() *cobra.Command {
	var (
		in   memory.SnippetInput
		file string
	)
	cmd := &cobra.Command{
		Use:   "add [content]",
		Short: "Store a snippet from an argument, --file, or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case len(args) == 1:
				in.Content = args[0]
			case file != "":
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read snippet: %w", err)
				}
				in.Content = string(data)
				if in.Language == "" {
					in.Language = strings.TrimPrefix(filepath.Ext(file), ".")
				}
			default:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read snippet: %w", err)
				}
				in.Content = string(data)
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

			sn, err := sess.AddSnippet(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Snippet saved (id: %s)\n", sn.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the snippet from a file")
	cmd.Flags().StringVarP(&in.Language, "lang", "l", "", "language (default: file extension)")
	cmd.Flags().StringVarP(&in.Description, "desc", "d", "", "short description")
	cmd.Flags().StringSliceVarP(&in.Tags, "tag", "t", nil, "tag (repeatable)")
	return cmd
}

func newSnippetListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent snippets",
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

			snippets := sess.ListSnippets(limit)
			if len(snippets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No snippets.")
			}
			for _, sn := range snippets {
				printSnippet(cmd.OutOrStdout(), sn, -1)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of snippets")
	return cmd
}

func newSnippetSearchCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find snippets similar to a query",
		Args:  cobra.MinimumNArgs(1),
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

			hits, err := sess.SearchSnippets(cmd.Context(), strings.Join(args, " "), limit)
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No matching snippets.")
			}
			for _, h := range hits {
				printSnippet(cmd.OutOrStdout(), h.Snippet, h.Similarity)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of results")
	return cmd
}

// printSnippet writes a one-line header and an indented preview. A negative
// similarity is omitted.
func printSnippet(w io.Writer, sn memory.Snippet, similarity float64) {
	header := sn.ID
	if similarity >= 0 {
		header = fmt.Sprintf("[%.2f] %s", similarity, header)
	}
	if sn.Language != "" {
		header += " (" + sn.Language + ")"
	}
	if sn.Description != "" {
		header += " " + sn.Description
	}
	if len(sn.Tags) > 0 {
		header += " #" + strings.Join(sn.Tags, " #")
	}
	fmt.Fprintln(w, header)
	fmt.Fprintf(w, "    %s\n", preview(sn.Content, 100))
}
