// Command runner is the policy-enforcement hook runner's CLI entrypoint.
// The host invokes it once per hook event with `runner --hook <kind>`,
// piping the event JSON on stdin and reading the merged AggregateResponse
// back from stdout (§6). `runner daemon ...` manages the separate,
// long-lived LLM-fallback collaborator process (§4.8).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/victorarias/policy-hook-runner/internal/dispatcher"

	// Blank-imported so each task subpackage's init() registers itself with
	// the task registry (§9's "Tasks are registered at init() time in each
	// task subpackage").
	_ "github.com/victorarias/policy-hook-runner/internal/tasks/llmfallback"
	_ "github.com/victorarias/policy-hook-runner/internal/tasks/securityguard"
	_ "github.com/victorarias/policy-hook-runner/internal/tasks/settingspermissions"
	_ "github.com/victorarias/policy-hook-runner/internal/tasks/worktreepermissions"
)

var (
	hookKind         string
	hooksConfigPath  string
	globalConfigPath string
	rulesPath        string
	worktreePermsPath string
)

var rootCmd = &cobra.Command{
	Use:   "runner",
	Short: "Policy-enforcement hook runner for an AI coding agent",
	Long: `runner sits between an AI coding agent host and the tools it executes.
Invoked once per hook event with the event JSON on stdin, it decides whether
a tool call is allowed, must be confirmed, or must be blocked, by merging the
independent verdicts of its configured tasks.`,
	RunE: runHook,
}

func init() {
	rootCmd.Flags().StringVar(&hookKind, "hook", "", "hook kind to dispatch (PreToolUse, PostToolUse, UserPromptSubmit, SessionStart, Stop, Notification, PreCompact)")
	rootCmd.Flags().StringVar(&hooksConfigPath, "hooks-config", "hooks_config.yaml", "path to the hooks-config YAML document")
	rootCmd.Flags().StringVar(&globalConfigPath, "global-config", "global_config.yaml", "path to the global-config YAML document")
	rootCmd.Flags().StringVar(&rulesPath, "security-rules", "security_rules.yaml", "path to the security-rules YAML document")
	rootCmd.Flags().StringVar(&worktreePermsPath, "worktree-permissions", "worktree_permissions.yaml", "path to the worktree-permissions YAML document")
	rootCmd.MarkFlagRequired("hook")

	rootCmd.AddCommand(daemonCmd)
}

func runHook(cmd *cobra.Command, args []string) error {
	paths := dispatcher.Paths{
		HooksConfigPath:         hooksConfigPath,
		GlobalConfigPath:        globalConfigPath,
		SecurityRulesPath:       rulesPath,
		WorktreePermissionsPath: worktreePermsPath,
	}
	return dispatcher.Dispatch(cmd.Context(), hookKind, os.Stdin, os.Stdout, paths)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(0) // §6: the runner's own exit code is always zero.
	}
}
