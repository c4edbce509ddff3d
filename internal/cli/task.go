package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления tasks.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskShowCmd(clientFn, outputFn),
		newTaskActionCmd(clientFn, outputFn),
		newTaskStatsCmd(clientFn, outputFn),
	)

	return cmd
}

func taskRow(t TaskResponse) []string {
	return []string{
		t.ID, t.Name, t.Type, t.Status, t.Priority,
		strconv.Itoa(t.Progress) + "%", t.Error,
	}
}

var taskHeaders = []string{"ID", "NAME", "TYPE", "STATUS", "PRIORITY", "PROGRESS", "ERROR"}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string
	var taskType string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(ListTasksOpts{
				Status: status,
				Type:   taskType,
				Limit:  limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(tasks))
			for i, t := range tasks {
				rows[i] = taskRow(t)
			}

			out.Print(taskHeaders, rows, tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, PAUSED, COMPLETED, FAILED, CANCELLED)")
	cmd.Flags().StringVar(&taskType, "type", "", "Filter by task type")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var priority int
	var maxRetries int
	var configJSON string
	var configKV []string

	cmd := &cobra.Command{
		Use:   "create TYPE",
		Short: "Create a new task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := CreateTaskRequest{
				Name:       name,
				Type:       args[0],
				MaxRetries: maxRetries,
			}
			if cmd.Flags().Changed("priority") {
				req.Priority = &priority
			}

			if configJSON != "" {
				if err := json.Unmarshal([]byte(configJSON), &req.Config); err != nil {
					return fmt.Errorf("invalid --config JSON: %w", err)
				}
			}
			for _, kv := range configKV {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid config format %q, expected KEY=VALUE", kv)
				}
				if req.Config == nil {
					req.Config = make(map[string]any)
				}
				req.Config[parts[0]] = parts[1]
			}

			task, err := client.CreateTask(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task created: %s", task.ID))
			out.Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human readable task name")
	cmd.Flags().IntVar(&priority, "priority", 1, "Priority (0=LOW, 1=NORMAL, 2=HIGH, 3=URGENT)")
	cmd.Flags().IntVar(&maxRetries, "max-retries", 0, "Maximum retry attempts")
	cmd.Flags().StringVar(&configJSON, "config", "", "Executor config as JSON object")
	cmd.Flags().StringSliceVar(&configKV, "set", nil, "Config values as KEY=VALUE (repeatable)")

	return cmd
}

func newTaskShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show task details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			task, err := client.GetTask(args[0])
			if err != nil {
				return err
			}

			out.Print(taskHeaders, [][]string{taskRow(*task)}, task)
			return nil
		},
	}
}

func newTaskActionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "action ACTION ID [ID...]",
		Short: "Execute an action (start, pause, resume, cancel, retry) on tasks",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			action := args[0]
			ids := args[1:]

			if len(ids) == 1 {
				task, err := client.ExecuteAction(ids[0], action)
				if err != nil {
					return err
				}
				out.Success(fmt.Sprintf("Action %s applied: %s", action, task.ID))
				out.Print(taskHeaders, [][]string{taskRow(*task)}, task)
				return nil
			}

			results, err := client.ExecuteBatch(ids, action)
			if err != nil {
				return err
			}

			rows := make([][]string, len(results))
			for i, r := range results {
				ok := "OK"
				if !r.OK {
					ok = "FAILED"
				}
				rows[i] = []string{r.ID, ok, r.Error}
			}
			out.Print([]string{"ID", "RESULT", "ERROR"}, rows, results)
			return nil
		},
	}
}

func newTaskStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.GetTaskStats()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"total", strconv.Itoa(stats.Total)},
				{"queue_depth", strconv.Itoa(stats.QueueDepth)},
				{"avg_duration_s", fmt.Sprintf("%.2f", stats.AvgDurationSeconds)},
			}
			for status, count := range stats.ByStatus {
				rows = append(rows, []string{"status:" + status, strconv.Itoa(count)})
			}

			out.Print([]string{"METRIC", "VALUE"}, rows, stats)
			return nil
		},
	}
}
