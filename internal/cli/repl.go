package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	bmmcp "github.com/memvra/branchmind/internal/mcp"
)

const replHelp = `Commands:
  branch <id> [parent]            create a branch
  switch <id>                     set the active branch
  think <text>                    add a thought to the active branch
  link <from> <to> <type> [why]   link two thoughts (supports, contradicts, related, expands, refines)
  merge <source> <target>         merge source into target
  history [branch]                thought history
  status [branch]                 branch status
  insights [branch]               branch insights
  summary [branch]                summarize a branch
  recompute                       refresh cross-references
  search <query>                  semantic search
  hubs [n]                        most central thoughts
  viz [format]                    export the graph (json, markdown, mermaid, dot)
  tasks                           extract and list tasks
  stats                           cache statistics
  help                            this text
  quit                            leave`

var errQuit = errors.New("quit")

func newReplCmd() *cobra.Command {
	var noIngest bool

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Explore and extend the thought graph interactively",
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
			if !noIngest {
				if _, err := ingestNotes(ctx, sess, root, false); err != nil {
					return err
				}
				recomputeOrWarn(ctx, sess, cmd.ErrOrStderr())
			}

			interactive := term.IsTerminal(int(os.Stdin.Fd()))
			srv := bmmcp.NewServer(sess, version, logger)
			return runRepl(ctx, srv, cmd.InOrStdin(), cmd.OutOrStdout(), interactive)
		},
	}

	cmd.Flags().BoolVar(&noIngest, "no-ingest", false, "start with an empty graph")
	return cmd
}

// runRepl reads commands from in until EOF or quit. Prompts are printed
// only when interactive.
func runRepl(ctx context.Context, srv *bmmcp.Server, in io.Reader, out io.Writer, interactive bool) error {
	if interactive {
		fmt.Fprintln(out, "branchmind "+version+". Type 'help' for commands.")
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		if interactive {
			fmt.Fprint(out, "\nbranchmind> ")
		}
		if !sc.Scan() {
			return sc.Err()
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "help" {
			fmt.Fprintln(out, replHelp)
			continue
		}

		calls, err := parseReplLine(line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			fmt.Fprintln(out, err)
			continue
		}
		for _, c := range calls {
			res, err := srv.Call(ctx, c.tool, c.args)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				break
			}
			if text := resultText(res); text != "" {
				fmt.Fprintln(out, text)
			}
			if res.IsError {
				break
			}
		}
	}
}

type toolCall struct {
	tool string
	args map[string]any
}

// parseReplLine maps one input line to the tool calls it stands for.
func parseReplLine(line string) ([]toolCall, error) {
	parts := strings.Fields(line)
	verb := strings.ToLower(parts[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, parts[0]))
	one := func(tool string, args map[string]any) ([]toolCall, error) {
		return []toolCall{{tool: tool, args: args}}, nil
	}
	// optional passes an optional single branch argument.
	optional := func(tool string) ([]toolCall, error) {
		args := map[string]any{}
		if len(parts) > 1 {
			args["branchId"] = parts[1]
		}
		return one(tool, args)
	}

	switch verb {
	case "quit", "exit":
		return nil, errQuit
	case "branch":
		if len(parts) < 2 {
			return nil, errors.New("usage: branch <id> [parent]")
		}
		args := map[string]any{"id": parts[1]}
		if len(parts) > 2 {
			args["parentId"] = parts[2]
		}
		return one("create_branch", args)
	case "switch":
		if len(parts) != 2 {
			return nil, errors.New("usage: switch <id>")
		}
		return one("set_active_branch", map[string]any{"id": parts[1]})
	case "think":
		if rest == "" {
			return nil, errors.New("usage: think <text>")
		}
		return one("add_thought", map[string]any{"content": rest})
	case "link":
		if len(parts) < 4 {
			return nil, errors.New("usage: link <from> <to> <type> [reason]")
		}
		args := map[string]any{"fromId": parts[1], "toId": parts[2], "type": strings.ToLower(parts[3])}
		if len(parts) > 4 {
			args["reason"] = strings.Join(parts[4:], " ")
		}
		return one("link_thoughts", args)
	case "merge":
		if len(parts) != 3 {
			return nil, errors.New("usage: merge <source> <target>")
		}
		return one("merge_branches", map[string]any{"sourceId": parts[1], "targetId": parts[2]})
	case "history":
		return optional("branch_history")
	case "status":
		return optional("branch_status")
	case "insights":
		return optional("get_insights")
	case "summary":
		return optional("summarize_branch")
	case "recompute":
		return one("recompute", map[string]any{})
	case "search":
		if rest == "" {
			return nil, errors.New("usage: search <query>")
		}
		return one("semantic_search", map[string]any{"query": rest})
	case "hubs":
		args := map[string]any{}
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil || n <= 0 {
				return nil, errors.New("usage: hubs [n]")
			}
			args["limit"] = n
		}
		return one("hub_thoughts", args)
	case "viz":
		format := "mermaid"
		if len(parts) > 1 {
			format = strings.ToLower(parts[1])
		}
		return one("visualize", map[string]any{"format": format})
	case "tasks":
		return []toolCall{
			{tool: "extract_tasks", args: map[string]any{}},
			{tool: "summarize_tasks", args: map[string]any{}},
		}, nil
	case "stats":
		return one("cache_stats", map[string]any{})
	}
	return nil, fmt.Errorf("unknown command %q. Type 'help' for commands.", verb)
}

func resultText(res *mcp.CallToolResult) string {
	var b strings.Builder
	for _, c := range res.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			b.WriteString(tc.Text)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
