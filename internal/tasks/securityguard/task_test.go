package securityguard

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
)

func writeRules(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "security_rules.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunBlacklistDeniesCommand(t *testing.T) {
	path := writeRules(t, `
blacklist:
  deny:
    commands:
      - command: rm
        flags: [["-rf"]]
        message: recursive delete is forbidden
`)

	evt := &event.Event{
		HookEventName: event.KindPreToolUse,
		ToolName:      "Bash",
		ToolInput:     json.RawMessage(`{"command":"rm -rf /tmp/x"}`),
	}

	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{"rules_path": path})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp == nil || resp.HookSpecificOutput == nil {
		t.Fatal("expected a decision, got nil")
	}
	if resp.HookSpecificOutput.PermissionDecision != event.PermissionDeny {
		t.Errorf("expected deny, got %s", resp.HookSpecificOutput.PermissionDecision)
	}
}

func TestRunWhitelistWinsOverBlacklist(t *testing.T) {
	path := writeRules(t, `
whitelist:
  allow:
    commands:
      - command: git
        message: git commands are safe
blacklist:
  deny:
    commands:
      - command: git
        block_always: true
        message: blocked
`)

	evt := &event.Event{
		HookEventName: event.KindPreToolUse,
		ToolName:      "Bash",
		ToolInput:     json.RawMessage(`{"command":"git status"}`),
	}

	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{"rules_path": path})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp == nil || resp.HookSpecificOutput == nil {
		t.Fatal("expected a decision, got nil")
	}
	if resp.HookSpecificOutput.PermissionDecision != event.PermissionAllow {
		t.Errorf("whitelist should win: expected allow, got %s", resp.HookSpecificOutput.PermissionDecision)
	}
}

func TestRunNoMatchIsUncertain(t *testing.T) {
	path := writeRules(t, `
blacklist:
  deny:
    commands:
      - command: rm
        flags: [["-rf"]]
        message: no
`)

	evt := &event.Event{
		HookEventName: event.KindPreToolUse,
		ToolName:      "Bash",
		ToolInput:     json.RawMessage(`{"command":"ls -la"}`),
	}

	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{"rules_path": path})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response on no rule match, got %+v", resp)
	}
}

func TestRunValidateOnlyRejectsMalformedDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "security_rules.yaml")
	if err := os.WriteFile(path, []byte("whitelist: not-a-mapping-of-buckets\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	evt := &event.Event{HookEventName: event.KindSessionStart}
	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{
		"rules_path":    path,
		"validate_only": true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp == nil || resp.Continue == nil || *resp.Continue {
		t.Fatal("expected continue=false for an invalid security-rules document")
	}
	if resp.StopReason == "" {
		t.Error("expected a non-empty stop reason")
	}
}

func TestRunValidateOnlyAcceptsValidDocument(t *testing.T) {
	path := writeRules(t, `
whitelist:
  allow:
    commands:
      - command: git
        message: ok
`)

	evt := &event.Event{HookEventName: event.KindSessionStart}
	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{
		"rules_path":    path,
		"validate_only": true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response for a valid document, got %+v", resp)
	}
}
