// Package dispatcher implements §4.1's per-invocation pipeline: load
// configuration, read the event, run each enabled task in declared order
// with fail-open isolation, merge the results, and write the
// AggregateResponse to stdout. Exactly one Dispatch call happens per
// process invocation (§4.9's state machine has no retries or persistent
// state).
package dispatcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/victorarias/policy-hook-runner/internal/applog"
	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/decisionlog"
	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/merge"
	"github.com/victorarias/policy-hook-runner/internal/registry"
)

// Paths names the four configuration-file locations §6 describes, all
// project-relative.
type Paths struct {
	HooksConfigPath        string
	GlobalConfigPath       string
	SecurityRulesPath      string
	WorktreePermissionsPath string
}

// DefaultPaths returns the conventional file names used when the CLI is
// invoked without overrides.
func DefaultPaths() Paths {
	return Paths{
		HooksConfigPath:         "hooks_config.yaml",
		GlobalConfigPath:        "global_config.yaml",
		SecurityRulesPath:       "security_rules.yaml",
		WorktreePermissionsPath: "worktree_permissions.yaml",
	}
}

// Dispatch runs the pipeline for hookKind, reading the event from stdin and
// writing the merged AggregateResponse to stdout. Unreadable stdin, an
// unparsable event or a bad hooks config still produce a response carrying
// a systemMessage; the returned error is non-nil only when writing the
// response to stdout fails. Per §4.1/§6 the runner's own exit code is always
// zero, so callers should log a returned error rather than propagate it as
// the process's decision.
func Dispatch(ctx context.Context, hookKind string, stdin io.Reader, stdout io.Writer, paths Paths) error {
	global, err := config.LoadGlobalConfig(paths.GlobalConfigPath)
	if err != nil {
		// A malformed (not merely absent) global config still yields
		// permissive defaults per §4.9, but the failure is worth surfacing.
		applog.Warnf("dispatcher: global config: %v", err)
		global, _ = config.LoadGlobalConfig("")
	}
	applog.Configure(global.VerboseLogging, global.ShowErrors)

	hooksConfig, err := config.LoadHooksConfig(paths.HooksConfigPath)
	if err != nil {
		return writeResponse(stdout, event.AggregateResponse{
			Continue:      true,
			SystemMessage: fmt.Sprintf("Task: 'dispatcher'\nMessage: failed to load hooks config: %v", err),
		})
	}

	data, err := io.ReadAll(stdin)
	if err != nil {
		return writeResponse(stdout, event.AggregateResponse{
			Continue:      true,
			SystemMessage: fmt.Sprintf("Task: 'dispatcher'\nMessage: failed to read event: %v", err),
		})
	}

	var evt event.Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return writeResponse(stdout, event.AggregateResponse{
			Continue:      true,
			SystemMessage: fmt.Sprintf("Task: 'dispatcher'\nMessage: failed to parse event JSON: %v", err),
		})
	}
	evt.HookEventName = event.Kind(hookKind)

	specs, ok := hooksConfig.TasksFor(hookKind)
	if !ok {
		return writeResponse(stdout, event.AggregateResponse{
			Continue:      true,
			SystemMessage: fmt.Sprintf("Task: 'dispatcher'\nMessage: no hooks configured for hook kind %q", hookKind),
		})
	}

	taskConfig := withDefaultPaths(paths)
	results := runTasks(ctx, specs, &evt, global, taskConfig)

	aggregate, mergeErr := merge.Combine(results)
	if mergeErr != nil {
		applog.Errorf("dispatcher: %v", mergeErr)
		aggregate.Continue = true
		if aggregate.SystemMessage != "" {
			aggregate.SystemMessage += "\n\n"
		}
		aggregate.SystemMessage += fmt.Sprintf("Task: 'dispatcher'\nMessage: %v", mergeErr)
		aggregate.HookSpecificOutput = nil
	}

	logDecision(global, hookKind, &evt, aggregate)
	return writeResponse(stdout, aggregate)
}

// withDefaultPaths lets every registered task resolve the four
// project-relative config documents without each hooks_config.yaml entry
// having to repeat them, while still letting a task-specific config
// override (e.g. a different rules_path for a validate_only session_start
// invocation).
func withDefaultPaths(paths Paths) map[string]any {
	return map[string]any{
		"__rules_path":              paths.SecurityRulesPath,
		"__worktree_permissions_path": paths.WorktreePermissionsPath,
	}
}

// runTasks invokes each enabled task in declared order, isolating both
// returned errors and panics as a synthetic TaskResponse so one task's
// failure never aborts the pipeline (§4.1/§4.9 "fail-open").
func runTasks(ctx context.Context, specs []config.TaskSpec, evt *event.Event, global *config.GlobalConfig, defaults map[string]any) []merge.Named {
	results := make([]merge.Named, 0, len(specs))
	for _, spec := range specs {
		if !spec.Enabled {
			continue
		}
		results = append(results, merge.Named{TaskName: spec.Name, Response: invoke(ctx, spec, evt, global, defaults)})
	}
	return results
}

func invoke(ctx context.Context, spec config.TaskSpec, evt *event.Event, global *config.GlobalConfig, defaults map[string]any) (resp *event.TaskResponse) {
	defer func() {
		if r := recover(); r != nil {
			applog.Errorf("dispatcher: task %q panicked: %v", spec.Name, r)
			resp = &event.TaskResponse{SystemMessage: fmt.Sprintf("task %q panicked: %v", spec.Name, r)}
		}
	}()

	key := registry.Key(spec.Module, spec.Function)
	task, err := registry.Lookup(key)
	if err != nil {
		applog.Warnf("dispatcher: %v", err)
		return &event.TaskResponse{SystemMessage: fmt.Sprintf("task %q: %v", spec.Name, err)}
	}

	taskConfig := mergeConfig(defaults, spec.Config)
	r, err := task.Run(ctx, evt, global, taskConfig)
	if err != nil {
		applog.Warnf("dispatcher: task %q: %v", spec.Name, err)
		return &event.TaskResponse{SystemMessage: fmt.Sprintf("task %q failed: %v", spec.Name, err)}
	}
	if r == nil {
		return &event.TaskResponse{}
	}
	return r
}

func mergeConfig(defaults, override map[string]any) map[string]any {
	out := map[string]any{
		"rules_path":                defaults["__rules_path"],
		"worktree_permissions_path": defaults["__worktree_permissions_path"],
		"permissions_path":          defaults["__worktree_permissions_path"],
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func logDecision(global *config.GlobalConfig, hookKind string, evt *event.Event, aggregate event.AggregateResponse) {
	decision := ""
	reason := ""
	if aggregate.HookSpecificOutput != nil {
		decision = string(aggregate.HookSpecificOutput.PermissionDecision)
		reason = aggregate.HookSpecificOutput.PermissionDecisionReason
	}
	rec := decisionlog.NewRecord(hookKind, evt.SessionID, evt.ToolName, evt.CWD, decision, reason)
	if err := decisionlog.Append(global.LogDirectory, hookKind, rec); err != nil {
		applog.Debugf("dispatcher: decision log: %v", err)
	}
}

func writeResponse(w io.Writer, resp event.AggregateResponse) error {
	enc := json.NewEncoder(w)
	return enc.Encode(resp)
}
