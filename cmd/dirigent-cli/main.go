// Dirigent CLI — инструмент командной строки для управления
// tasks, workflows и worker-узлами через HTTP API.
//
// Использование:
//
//	dirigent-cli [--api-url URL] [--json] <command> <subcommand> [flags]
//
// Команды:
//
//	task      Управление tasks
//	workflow  Управление workflows и instances
//	node      Управление worker-узлами
//	status    Статус системы и метрики планировщика
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Dirigent/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "dirigent-cli",
		Short:         "Dirigent CLI — proxy crawl orchestration tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "API server URL")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewTaskCmd(clientFn, outputFn),
		cli.NewWorkflowCmd(clientFn, outputFn),
		cli.NewNodeCmd(clientFn, outputFn),
		cli.NewStatusCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
