// Package llmfallback registers the "llm_fallback" task (§4.8): when
// global_config.llm_fallback.enabled is true and a Bash command has no
// whitelist/blacklist rule match (the same Uncertain condition the
// security-guard task computes), this task queries the long-lived
// LLM-fallback daemon over a Unix socket and returns its ALLOW/ASK verdict.
package llmfallback

import (
	"context"
	"encoding/json"
	"time"

	"github.com/victorarias/policy-hook-runner/internal/applog"
	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/llmdaemon"
	"github.com/victorarias/policy-hook-runner/internal/matcher"
	"github.com/victorarias/policy-hook-runner/internal/registry"
)

const RegistryKey = "llm_fallback.evaluate"

func init() {
	registry.Register(RegistryKey, registry.TaskFunc(Run))
}

func Run(ctx context.Context, evt *event.Event, global *config.GlobalConfig, taskConfig map[string]any) (*event.TaskResponse, error) {
	if global == nil || !global.LLMFallback.Enabled {
		return nil, nil
	}
	if evt.HookEventName != event.KindPreToolUse || evt.ToolName != "Bash" {
		return nil, nil
	}

	var bi event.BashInput
	if err := json.Unmarshal(evt.ToolInput, &bi); err != nil || bi.Command == "" {
		return nil, nil
	}

	rulesPath, _ := taskConfig["rules_path"].(string)
	if rulesPath == "" {
		rulesPath = "security_rules.yaml"
	}
	rules, err := config.LoadSecurityRules(rulesPath)
	if err != nil {
		applog.Warnf("llm_fallback: %v", err)
		return nil, nil
	}

	// A heuristic task already produced a verdict for this command; defer
	// to it entirely rather than let the fallback change the outcome.
	if ruleMatched(bi.Command, rules) {
		return nil, nil
	}

	deadline := time.Duration(global.SubprocessTimeoutSeconds) * time.Second
	model := llmdaemon.Model(global.LLMFallback.Model)
	if configuredModel, _ := taskConfig["model"].(string); configuredModel != "" {
		model = configuredModel
	}

	resp, err := llmdaemon.Query(global.LLMFallback.SocketPath, llmdaemon.EvalRequest{
		ToolName:  evt.ToolName,
		ToolInput: string(evt.ToolInput),
		WorkDir:   evt.CWD,
		Model:     model,
	}, deadline)
	if err != nil {
		// Daemon unavailable or timed out: fail conservative, never silently
		// to allow (§4.9/§4.10).
		applog.Debugf("llm_fallback: daemon unavailable: %v", err)
		return asResponse(event.PermissionAsk, "LLM-fallback daemon unavailable: "+err.Error()), nil
	}

	perm := event.PermissionAsk
	if resp.Decision == "ALLOW" {
		perm = event.PermissionAllow
	}
	return asResponse(perm, resp.Reason), nil
}

func ruleMatched(command string, rules *config.SecurityRules) bool {
	for _, buckets := range [][]config.PermissionBucket{rules.Whitelist, rules.Blacklist} {
		for _, bucket := range buckets {
			perm := event.Permission(bucket.Permission)
			if matcher.CheckFileRules("Bash", "", command, bucket.Files, perm) != nil {
				return true
			}
			if matcher.CheckCommandRules("Bash", command, bucket.Commands, perm) != nil {
				return true
			}
		}
	}
	return false
}

func asResponse(perm event.Permission, reason string) *event.TaskResponse {
	return &event.TaskResponse{
		HookSpecificOutput: &event.HookSpecificOutput{
			HookEventName:            string(event.KindPreToolUse),
			PermissionDecision:       perm,
			PermissionDecisionReason: reason,
		},
	}
}
