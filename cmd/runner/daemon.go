package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/victorarias/policy-hook-runner/internal/llmdaemon"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Manage the LLM-fallback collaborator daemon",
	Long:  "The LLM-fallback daemon is a long-lived process the llm_fallback task queries over a Unix socket (§4.8).",
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground (used internally by auto-start)",
	RunE: func(cmd *cobra.Command, args []string) error {
		// This is only the process-level fallback: each EvalRequest carries
		// its own resolved model (global_config.yaml's llm_fallback.model,
		// with the per-task config override already applied) and the
		// evaluator honors that per request. This default only matters for
		// a request that arrives without one.
		model := llmdaemon.Model("")
		evaluator := llmdaemon.NewClaudeEvaluator(model)
		d := llmdaemon.New(evaluator, llmdaemon.Config{IdleTimeout: 5 * time.Minute})
		return d.Run()
	},
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the daemon is running",
	RunE: func(cmd *cobra.Command, args []string) error {
		running, _, message := llmdaemon.Status()
		fmt.Println(message)
		if !running {
			os.Exit(1)
		}
		return nil
	},
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(llmdaemon.Stop())
		return nil
	},
}

var daemonRestartCmd = &cobra.Command{
	Use:   "restart",
	Short: "Restart the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		msg, err := llmdaemon.Restart()
		fmt.Println(msg)
		return err
	},
}

func init() {
	daemonCmd.AddCommand(daemonRunCmd, daemonStatusCmd, daemonStopCmd, daemonRestartCmd)
}
