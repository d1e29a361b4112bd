package llmfallback

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/llmdaemon"
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

func TestRunSkipsWhenDisabled(t *testing.T) {
	evt := &event.Event{HookEventName: event.KindPreToolUse, ToolName: "Bash", ToolInput: json.RawMessage(`{"command":"ls"}`)}
	global := &config.GlobalConfig{}
	resp, err := Run(context.Background(), evt, global, map[string]any{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response when llm_fallback is disabled, got %+v", resp)
	}
}

func TestRunSkipsNonBashTools(t *testing.T) {
	global := &config.GlobalConfig{}
	global.LLMFallback.Enabled = true
	evt := &event.Event{HookEventName: event.KindPreToolUse, ToolName: "Write", ToolInput: json.RawMessage(`{"file_path":"a.go"}`)}
	resp, err := Run(context.Background(), evt, global, map[string]any{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response for a non-Bash tool, got %+v", resp)
	}
}

func TestRunDefersWhenRuleAlreadyMatched(t *testing.T) {
	path := writeRules(t, `
blacklist:
  deny:
    commands:
      - command: rm
        flags: [["-rf"]]
        message: no
`)

	global := &config.GlobalConfig{}
	global.LLMFallback.Enabled = true
	evt := &event.Event{HookEventName: event.KindPreToolUse, ToolName: "Bash", ToolInput: json.RawMessage(`{"command":"rm -rf /tmp/x"}`)}
	resp, err := Run(context.Background(), evt, global, map[string]any{"rules_path": path})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response deferring to the rule that already matched, got %+v", resp)
	}
}

func TestRunAsksWhenDaemonUnavailable(t *testing.T) {
	path := writeRules(t, `
blacklist:
  deny:
    commands:
      - command: rm
        flags: [["-rf"]]
        message: no
`)

	tmpDir := t.TempDir()
	global := &config.GlobalConfig{SubprocessTimeoutSeconds: 1}
	global.LLMFallback.Enabled = true
	global.LLMFallback.SocketPath = filepath.Join(tmpDir, "nonexistent.sock")

	evt := &event.Event{HookEventName: event.KindPreToolUse, ToolName: "Bash", ToolInput: json.RawMessage(`{"command":"some-uncategorized-tool --flag"}`)}
	resp, err := Run(context.Background(), evt, global, map[string]any{"rules_path": path})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp == nil || resp.HookSpecificOutput == nil {
		t.Fatal("expected an ask verdict when the daemon cannot be reached")
	}
	if resp.HookSpecificOutput.PermissionDecision != event.PermissionAsk {
		t.Errorf("expected ask (fail-conservative), got %s", resp.HookSpecificOutput.PermissionDecision)
	}
}

// Ensure the daemon path is at least reachable through llmdaemon.Query with
// a real listener, proving the task's wiring (not just its short-circuits).
func TestRunQueriesDaemonWhenUncertain(t *testing.T) {
	tmpDir := t.TempDir()
	socketPath := filepath.Join(tmpDir, "llmfallback.sock")
	pidPath := filepath.Join(tmpDir, "llmfallback.pid")

	d := llmdaemon.New(&fixedEvaluator{decision: "ALLOW", reason: "looks fine"}, llmdaemon.Config{
		IdleTimeout: 5 * time.Second, SocketPath: socketPath, PIDPath: pidPath,
	})
	go d.Run()
	defer d.Shutdown()
	waitForSocket(t, socketPath, 2*time.Second)

	global := &config.GlobalConfig{SubprocessTimeoutSeconds: 2}
	global.LLMFallback.Enabled = true
	global.LLMFallback.SocketPath = socketPath

	evt := &event.Event{HookEventName: event.KindPreToolUse, ToolName: "Bash", ToolInput: json.RawMessage(`{"command":"some-uncategorized-tool --flag"}`)}
	resp, err := Run(context.Background(), evt, global, map[string]any{"rules_path": filepath.Join(tmpDir, "missing.yaml")})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp == nil || resp.HookSpecificOutput == nil {
		t.Fatal("expected a decision from the daemon")
	}
	if resp.HookSpecificOutput.PermissionDecision != event.PermissionAllow {
		t.Errorf("expected allow from the daemon's verdict, got %s", resp.HookSpecificOutput.PermissionDecision)
	}
}

type fixedEvaluator struct {
	decision string
	reason   string
}

func (f *fixedEvaluator) Evaluate(ctx context.Context, req llmdaemon.EvalRequest) (llmdaemon.EvalResponse, error) {
	return llmdaemon.EvalResponse{Decision: f.decision, Reason: f.reason}, nil
}

func (f *fixedEvaluator) Close() error { return nil }

func waitForSocket(t *testing.T, socketPath string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(socketPath); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("socket %s not ready after %s", socketPath, timeout)
}
