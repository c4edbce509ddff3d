package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду статуса системы.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show system status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetSystemStatus()
			if err != nil {
				return err
			}

			running := "stopped"
			if status.Running {
				running = "running"
			}
			out.Success(fmt.Sprintf("System %s: %d active, %d errors",
				running, status.ActiveCount, status.ErrorCount))

			rows := make([][]string, 0, len(status.Components))
			for _, comp := range status.Components {
				rows = append(rows, []string{
					comp.Name, comp.Status, strconv.Itoa(comp.ErrorCount), comp.LastError,
				})
			}

			out.Print([]string{"COMPONENT", "STATUS", "ERRORS", "LAST_ERROR"}, rows, status)
			return nil
		},
	}

	cmd.AddCommand(newSchedulingMetricsCmd(clientFn, outputFn))
	return cmd
}

func newSchedulingMetricsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show scheduling metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			metrics, err := client.GetSchedulingMetrics()
			if err != nil {
				return err
			}

			rows := [][]string{
				{"avg_wait_s", fmt.Sprintf("%.3f", metrics.AvgWaitSeconds)},
				{"avg_execution_s", fmt.Sprintf("%.3f", metrics.AvgExecutionSeconds)},
				{"throughput_per_min", fmt.Sprintf("%.1f", metrics.ThroughputPerMinute)},
				{"load_balance_score", fmt.Sprintf("%.1f", metrics.LoadBalanceScore)},
			}
			for res, pct := range metrics.ResourceUtilization {
				rows = append(rows, []string{"util:" + res, fmt.Sprintf("%.1f%%", pct)})
			}

			out.Print([]string{"METRIC", "VALUE"}, rows, metrics)
			return nil
		},
	}
}
