package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewNodeCmd создаёт группу команд для управления worker-узлами.
func NewNodeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage worker nodes",
	}

	cmd.AddCommand(
		newNodeListCmd(clientFn, outputFn),
		newNodeAddCmd(clientFn, outputFn),
		newNodeShowCmd(clientFn, outputFn),
		newNodeRemoveCmd(clientFn, outputFn),
		newNodeHeartbeatCmd(clientFn, outputFn),
	)

	return cmd
}

var nodeHeaders = []string{"ID", "NAME", "HEALTHY", "ACTIVE_TASKS", "LOAD", "HEARTBEAT"}

func nodeRow(n NodeResponse) []string {
	loads := make([]string, 0, len(n.CurrentLoad))
	for res, load := range n.CurrentLoad {
		loads = append(loads, fmt.Sprintf("%s=%.0f/%.0f", res, load, n.Capacity[res]))
	}
	return []string{
		n.ID, n.Name, strconv.FormatBool(n.Healthy),
		strconv.Itoa(n.ActiveTasks), strings.Join(loads, " "), n.LastHeartbeat,
	}
}

func newNodeListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List worker nodes",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			nodes, err := client.ListNodes()
			if err != nil {
				return err
			}

			rows := make([][]string, len(nodes))
			for i, n := range nodes {
				rows[i] = nodeRow(n)
			}

			out.Print(nodeHeaders, rows, nodes)
			return nil
		},
	}
}

func newNodeAddCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var capacityKV []string

	cmd := &cobra.Command{
		Use:   "add ID",
		Short: "Add a worker node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			capacity := make(map[string]float64, len(capacityKV))
			for _, kv := range capacityKV {
				parts := strings.SplitN(kv, "=", 2)
				if len(parts) != 2 {
					return fmt.Errorf("invalid capacity format %q, expected RESOURCE=AMOUNT", kv)
				}
				amount, err := strconv.ParseFloat(parts[1], 64)
				if err != nil {
					return fmt.Errorf("invalid capacity amount %q: %w", parts[1], err)
				}
				capacity[parts[0]] = amount
			}
			if len(capacity) == 0 {
				return fmt.Errorf("at least one --capacity RESOURCE=AMOUNT is required")
			}

			node, err := client.AddNode(args[0], name, capacity)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node added: %s", node.ID))
			out.Print(nodeHeaders, [][]string{nodeRow(*node)}, node)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Human readable node name")
	cmd.Flags().StringSliceVar(&capacityKV, "capacity", nil, "Capacity as RESOURCE=AMOUNT (repeatable)")

	return cmd
}

func newNodeShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show node details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			node, err := client.GetNode(args[0])
			if err != nil {
				return err
			}

			out.Print(nodeHeaders, [][]string{nodeRow(*node)}, node)
			return nil
		},
	}
}

func newNodeRemoveCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "remove ID",
		Short: "Remove a worker node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.RemoveNode(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Node removed: %s", args[0]))
			return nil
		},
	}
}

func newNodeHeartbeatCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "heartbeat ID",
		Short: "Send a heartbeat for a node",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.HeartbeatNode(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Heartbeat sent: %s", args[0]))
			return nil
		},
	}
}
