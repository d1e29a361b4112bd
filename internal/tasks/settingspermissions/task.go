// Package settingspermissions registers the "settings_permissions" task:
// the §4.7 global allow/deny table of tool-identifier patterns, composed
// with the worktree matcher only through the merger (§4.2), not by one task
// calling another.
package settingspermissions

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/victorarias/policy-hook-runner/internal/applog"
	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/matcher"
	"github.com/victorarias/policy-hook-runner/internal/registry"
)

const RegistryKey = "settings_permissions.evaluate"

func init() {
	registry.Register(RegistryKey, registry.TaskFunc(Run))
}

func Run(ctx context.Context, evt *event.Event, global *config.GlobalConfig, taskConfig map[string]any) (*event.TaskResponse, error) {
	if evt.ToolName == "" {
		return nil, nil
	}

	settingsPath, _ := taskConfig["settings_path"].(string)
	if settingsPath == "" {
		settingsPath = "settings.yaml"
	}

	cfg, err := config.LoadSettingsPermissions(settingsPath)
	if err != nil {
		applog.Warnf("settings_permissions: %v", err)
		return &event.TaskResponse{SystemMessage: fmt.Sprintf("settings_permissions: failed to load config: %v", err)}, nil
	}

	command := extractCommand(evt)

	for _, rule := range cfg.AlwaysDeny {
		if matcher.MatchToolIdentifier(evt.ToolName, command, rule.Pattern) {
			return response(event.PermissionDeny, rule.Pattern, rule.Reason), nil
		}
	}
	for _, pattern := range cfg.AlwaysAllow {
		if matcher.MatchToolIdentifier(evt.ToolName, command, pattern) {
			return response(event.PermissionAllow, pattern, "Tool allowed by always_allow rule"), nil
		}
	}
	if cfg.DefaultPermission != "" {
		return response(event.Permission(cfg.DefaultPermission), "default_permission", "No specific rule matched; using default permission"), nil
	}
	return nil, nil
}

func response(perm event.Permission, pattern, reason string) *event.TaskResponse {
	return &event.TaskResponse{
		HookSpecificOutput: &event.HookSpecificOutput{
			HookEventName:            string(event.KindPreToolUse),
			PermissionDecision:       perm,
			PermissionDecisionReason: fmt.Sprintf("[%s] %s", pattern, reason),
		},
	}
}

func extractCommand(evt *event.Event) string {
	if evt.ToolName != "Bash" || len(evt.ToolInput) == 0 {
		return ""
	}
	var bi event.BashInput
	if err := json.Unmarshal(evt.ToolInput, &bi); err == nil {
		return bi.Command
	}
	return ""
}
