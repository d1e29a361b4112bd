// Package worktreepermissions registers the "worktree_permissions" task:
// git-worktree detection plus the branch-type permission lookup of §4.6.
package worktreepermissions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/victorarias/policy-hook-runner/internal/applog"
	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/registry"
	"github.com/victorarias/policy-hook-runner/internal/worktree"
)

const RegistryKey = "worktree_permissions.evaluate"

func init() {
	registry.Register(RegistryKey, registry.TaskFunc(Run))
}

// Run detects the worktree context for evt.CWD and evaluates the
// worktree-permissions lookup against it. A missing cwd, a cwd outside any
// git worktree, or a missing git binary are all recoverable: the task
// contributes nothing (§4.9/§4.10 "the worktree task returns without
// deciding").
func Run(ctx context.Context, evt *event.Event, global *config.GlobalConfig, taskConfig map[string]any) (*event.TaskResponse, error) {
	if evt.ToolName == "" || evt.CWD == "" {
		return nil, nil
	}

	permsPath, _ := taskConfig["permissions_path"].(string)
	if permsPath == "" {
		permsPath = "worktree_permissions.yaml"
	}

	cfg, err := config.LoadWorktreePermissions(permsPath)
	if err != nil {
		applog.Warnf("worktree_permissions: %v", err)
		return &event.TaskResponse{SystemMessage: fmt.Sprintf("worktree_permissions: failed to load config: %v", err)}, nil
	}
	if !cfg.Global.Enabled {
		return nil, nil
	}

	wtCtx, err := worktree.Detect(ctx, evt.CWD)
	if err != nil || wtCtx == nil {
		return nil, nil
	}

	bashCommand, filePath := extractPayload(evt)
	result := worktree.CheckToolPermission(evt.ToolName, bashCommand, filePath, wtCtx, cfg, evt.CWD)
	if result.Decision == event.PermissionIgnore {
		return nil, nil
	}

	reason := result.Reason
	if result.MatchedPattern != "" {
		reason = fmt.Sprintf("[%s] %s", result.MatchedPattern, result.Reason)
	}
	return &event.TaskResponse{
		HookSpecificOutput: &event.HookSpecificOutput{
			HookEventName:            string(event.KindPreToolUse),
			PermissionDecision:       result.Decision,
			PermissionDecisionReason: reason,
		},
	}, nil
}

func extractPayload(evt *event.Event) (bashCommand, filePath string) {
	if len(evt.ToolInput) == 0 {
		return "", ""
	}
	if evt.ToolName == "Bash" {
		var bi event.BashInput
		if err := json.Unmarshal(evt.ToolInput, &bi); err == nil {
			return bi.Command, ""
		}
		return "", ""
	}
	var fi event.FileInput
	if err := json.Unmarshal(evt.ToolInput, &fi); err == nil {
		return "", fi.Path()
	}
	return "", ""
}
