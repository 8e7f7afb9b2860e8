package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/memvra/branchmind/internal/memory"
)

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Extract and manage tasks found in thoughts",
		Long: `Tasks come from markers in thoughts of the form

  KEYWORD[(assignee)]: description [by YYYY-MM-DD]

where KEYWORD is TODO, FIXME, ACTION or TASK. FIXME tasks get high priority.
Tasks are stored in the project database with an audit trail of every change.`,
	}
	cmd.AddCommand(newTasksExtractCmd(), newTasksListCmd(), newTasksUpdateCmd(), newTasksAssignCmd(), newTasksSummaryCmd())
	return cmd
}

func newTasksExtractCmd() *cobra.Command {
	var branch string
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Ingest the notes and extract tasks from their thoughts",
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

			if _, err := ingestNotes(cmd.Context(), sess, root, false); err != nil {
				return err
			}
			tasks, err := sess.ExtractTasks(branch)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d task(s) extracted\n", len(tasks))
			printTasks(cmd.OutOrStdout(), tasks)
			return nil
		},
	}
	cmd.Flags().StringVarP(&branch, "branch", "b", "", "only this branch")
	return cmd
}

func newTasksListCmd() *cobra.Command {
	var (
		filter                 memory.TaskFilter
		status, typ, branchArg string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter.Status = memory.TaskStatus(strings.ToLower(status))
			filter.Type = memory.TaskType(strings.ToUpper(typ))
			filter.BranchID = branchArg
			if filter.Status != "" && !memory.ValidTaskStatus(filter.Status) {
				return fmt.Errorf("unknown status %q; valid: open, in_progress, closed", status)
			}
			return withTaskSession(func(sess taskSession) error {
				tasks := sess.ListTasks(filter)
				if len(tasks) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No tasks.")
					return nil
				}
				printTasks(cmd.OutOrStdout(), tasks)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status")
	cmd.Flags().StringVarP(&typ, "type", "t", "", "filter by marker (TODO, FIXME, ACTION, TASK)")
	cmd.Flags().StringVarP(&filter.Assignee, "assignee", "a", "", "filter by assignee")
	cmd.Flags().StringVarP(&branchArg, "branch", "b", "", "filter by branch")
	return cmd
}

func newTasksUpdateCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "update <task-id> <status>",
		Short: "Change a task's status (open, in_progress, closed)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTaskSession(func(sess taskSession) error {
				t, err := sess.UpdateTaskStatus(args[0], memory.TaskStatus(strings.ToLower(args[1])), orUser(user))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s is now %s\n", t.ID, t.Status)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "who made the change (default $USER)")
	return cmd
}

func newTasksAssignCmd() *cobra.Command {
	var user string
	cmd := &cobra.Command{
		Use:   "assign <task-id> <assignee>",
		Short: "Assign a task",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTaskSession(func(sess taskSession) error {
				t, err := sess.AssignTask(args[0], args[1], orUser(user))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Task %s assigned to %s\n", t.ID, t.Assignee)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&user, "user", "u", "", "who made the change (default $USER)")
	return cmd
}

func newTasksSummaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Count tasks by status and type, and list overdue ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTaskSession(func(sess taskSession) error {
				printTaskSummary(cmd.OutOrStdout(), sess.SummarizeTasks())
				return nil
			})
		},
	}
}

// taskSession is the part of a session the task commands use.
type taskSession interface {
	ListTasks(memory.TaskFilter) []memory.Task
	SummarizeTasks() memory.TaskSummary
	UpdateTaskStatus(id string, status memory.TaskStatus, user string) (memory.Task, error)
	AssignTask(id, assignee, user string) (memory.Task, error)
}

// withTaskSession opens a session without ingesting notes; stored tasks do
// not depend on the graph.
func withTaskSession(fn func(taskSession) error) error {
	root, err := findRoot()
	if err != nil {
		return err
	}
	sess, err := openSession(root)
	if err != nil {
		return err
	}
	defer sess.Close()
	return fn(sess)
}

func printTasks(w io.Writer, tasks []memory.Task) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPRIORITY\tASSIGNEE\tDUE\tCONTENT")
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Type, t.Status, t.Priority, dash(t.Assignee), dash(t.Due), preview(t.Content, 60))
	}
	_ = tw.Flush()
}

func printTaskSummary(w io.Writer, sum memory.TaskSummary) {
	fmt.Fprintf(w, "Total: %d\n", sum.Total)
	statuses := make([]string, 0, len(sum.ByStatus))
	for s, n := range sum.ByStatus {
		statuses = append(statuses, fmt.Sprintf("%s=%d", s, n))
	}
	sort.Strings(statuses)
	types := make([]string, 0, len(sum.ByType))
	for t, n := range sum.ByType {
		types = append(types, fmt.Sprintf("%s=%d", t, n))
	}
	sort.Strings(types)
	fmt.Fprintf(w, "By status: %s\n", strings.Join(statuses, " "))
	fmt.Fprintf(w, "By type:   %s\n", strings.Join(types, " "))
	if len(sum.Overdue) > 0 {
		fmt.Fprintf(w, "Overdue (%d):\n", len(sum.Overdue))
		printTasks(w, sum.Overdue)
	}
}

func orUser(u string) string {
	if u != "" {
		return u
	}
	if u = os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
