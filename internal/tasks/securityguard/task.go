// Package securityguard registers the "security_guard" task: the
// whitelist-then-blacklist rule evaluation of §3/§4.3/§4.5, backed by
// internal/matcher and internal/config.SecurityRules, the schema-validated
// form loaded from the security-rules document.
package securityguard

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/victorarias/policy-hook-runner/internal/applog"
	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/matcher"
	"github.com/victorarias/policy-hook-runner/internal/registry"
	"github.com/victorarias/policy-hook-runner/internal/validate"
)

const RegistryKey = "security_guard.evaluate"

func init() {
	registry.Register(RegistryKey, registry.TaskFunc(Run))
}

// Run is the security-guard task entry point. Two modes, selected by the
// task config:
//
//   - validate_only: true — used by session_start (§7): validates the
//     security-rules document (and, if configured, the worktree-permissions
//     document) against their JSON Schemas and returns continue=false with
//     a stop reason on violation.
//   - otherwise — evaluates tool_input against the security rules loaded
//     from rules_path, whitelist buckets first, then blacklist, each
//     checked deny/ask/allow in turn. No match at all leaves the event
//     Uncertain: Run returns a nil response, contributing nothing to the
//     merge.
func Run(ctx context.Context, evt *event.Event, global *config.GlobalConfig, taskConfig map[string]any) (*event.TaskResponse, error) {
	rulesPath, _ := taskConfig["rules_path"].(string)
	if rulesPath == "" {
		rulesPath = "security_rules.yaml"
	}

	if validateOnly, _ := taskConfig["validate_only"].(bool); validateOnly {
		return runValidateOnly(rulesPath, taskConfig)
	}

	rules, err := config.LoadSecurityRules(rulesPath)
	if err != nil {
		applog.Warnf("security_guard: %v", err)
		return &event.TaskResponse{SystemMessage: fmt.Sprintf("security_guard: failed to load rules: %v", err)}, nil
	}

	bashCommand, filePath := extractPayload(evt)

	if match := evaluateBuckets(evt.ToolName, filePath, bashCommand, rules.Whitelist); match != nil {
		return toResponse(match), nil
	}
	if match := evaluateBuckets(evt.ToolName, filePath, bashCommand, rules.Blacklist); match != nil {
		return toResponse(match), nil
	}
	return nil, nil
}

func runValidateOnly(rulesPath string, taskConfig map[string]any) (*event.TaskResponse, error) {
	if err := validate.SecurityRules(rulesPath); err != nil {
		return &event.TaskResponse{Continue: boolPtr(false), StopReason: err.Error()}, nil
	}
	if wtPath, _ := taskConfig["worktree_permissions_path"].(string); wtPath != "" {
		if err := validate.WorktreePermissions(wtPath); err != nil {
			return &event.TaskResponse{Continue: boolPtr(false), StopReason: err.Error()}, nil
		}
	}
	return nil, nil
}

func boolPtr(b bool) *bool { return &b }

type verdict struct {
	permission event.Permission
	message    string
	pattern    string
}

func evaluateBuckets(toolName, filePath, bashCommand string, buckets []config.PermissionBucket) *verdict {
	for _, bucket := range buckets {
		perm := event.Permission(bucket.Permission)
		if fm := matcher.CheckFileRules(toolName, filePath, bashCommand, bucket.Files, perm); fm != nil {
			return &verdict{permission: fm.Permission, message: fm.Message, pattern: fm.Pattern}
		}
		if cm := matcher.CheckCommandRules(toolName, bashCommand, bucket.Commands, perm); cm != nil {
			return &verdict{permission: cm.Permission, message: cm.Message, pattern: cm.BaseCommand}
		}
	}
	return nil
}

func toResponse(v *verdict) *event.TaskResponse {
	reason := v.message
	if v.pattern != "" {
		reason = fmt.Sprintf("[%s] %s", v.pattern, v.message)
	}
	return &event.TaskResponse{
		HookSpecificOutput: &event.HookSpecificOutput{
			HookEventName:            string(event.KindPreToolUse),
			PermissionDecision:       v.permission,
			PermissionDecisionReason: reason,
		},
	}
}

// extractPayload pulls the Bash command and/or file path out of the
// heterogeneous tool_input payload per the tagged-variant design of
// SPEC_FULL.md §9.
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
