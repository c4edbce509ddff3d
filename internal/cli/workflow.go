package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Manage workflows and their instances",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowRegisterCmd(clientFn, outputFn),
		newWorkflowStartCmd(clientFn, outputFn),
		newWorkflowInstancesCmd(clientFn, outputFn),
		newWorkflowShowInstanceCmd(clientFn, outputFn),
		newWorkflowCancelCmd(clientFn, outputFn),
	)

	return cmd
}

var instanceHeaders = []string{"ID", "WORKFLOW", "STATUS", "TASKS", "ERROR", "CREATED"}

func instanceRow(i InstanceResponse) []string {
	return []string{
		i.ID, i.WorkflowID, i.Status,
		strconv.Itoa(len(i.TaskInstances)), i.Error, i.CreatedAt,
	}
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				rows[i] = []string{
					wf.ID, wf.Name, strconv.Itoa(len(wf.Tasks)),
					wf.Strategy, strconv.Itoa(wf.MaxParallelTasks),
				}
			}

			out.Print([]string{"ID", "NAME", "STEPS", "STRATEGY", "MAX_PARALLEL"}, rows, workflows)
			return nil
		},
	}
}

func newWorkflowRegisterCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "register FILE",
		Short: "Register a workflow definition from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			definition, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read definition file: %w", err)
			}

			workflow, err := client.RegisterWorkflow(definition)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow registered: %s", workflow.ID))
			return nil
		},
	}
}

func newWorkflowStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var contextKV []string

	cmd := &cobra.Command{
		Use:   "start WORKFLOW_ID",
		Short: "Start a new workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			var execCtx map[string]any
			if len(contextKV) > 0 {
				execCtx = make(map[string]any)
				for _, kv := range contextKV {
					parts := strings.SplitN(kv, "=", 2)
					if len(parts) != 2 {
						return fmt.Errorf("invalid context format %q, expected KEY=VALUE", kv)
					}
					execCtx[parts[0]] = parts[1]
				}
			}

			instance, err := client.StartWorkflow(args[0], execCtx)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance started: %s", instance.ID))
			out.Print(instanceHeaders, [][]string{instanceRow(*instance)}, instance)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&contextKV, "context", nil, "Execution context as KEY=VALUE (repeatable)")

	return cmd
}

func newWorkflowInstancesCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "instances",
		Short: "List workflow instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instances, err := client.ListInstances()
			if err != nil {
				return err
			}

			rows := make([][]string, len(instances))
			for i, instance := range instances {
				rows[i] = instanceRow(instance)
			}

			out.Print(instanceHeaders, rows, instances)
			return nil
		},
	}
}

func newWorkflowShowInstanceCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show-instance ID",
		Short: "Show instance details with per-step tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instance, err := client.GetInstance(args[0])
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(instance.TaskInstances))
			for step, taskID := range instance.TaskInstances {
				rows = append(rows, []string{step, taskID})
			}

			out.Success(fmt.Sprintf("Instance %s: %s", instance.ID, instance.Status))
			out.Print([]string{"STEP", "TASK_ID"}, rows, instance)
			return nil
		},
	}
}

func newWorkflowCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a workflow instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			instance, err := client.CancelInstance(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Instance cancelled: %s", instance.ID))
			return nil
		},
	}
}
