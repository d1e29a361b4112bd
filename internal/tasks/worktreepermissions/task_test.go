package worktreepermissions

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
)

func TestRunSkipsWithoutCWD(t *testing.T) {
	evt := &event.Event{ToolName: "Bash"}
	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response without a cwd, got %+v", resp)
	}
}

func TestRunSkipsWhenDisabled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worktree_permissions.yaml")
	if err := os.WriteFile(path, []byte("global:\n  enabled: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	evt := &event.Event{ToolName: "Bash", CWD: dir, ToolInput: json.RawMessage(`{"command":"ls"}`)}
	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{"permissions_path": path})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response when globally disabled, got %+v", resp)
	}
}

func TestRunOutsideWorktreeContributesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "worktree_permissions.yaml")
	if err := os.WriteFile(path, []byte("global:\n  enabled: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	// dir is not inside any git worktree, so worktree.Detect should find
	// nothing and the task should stay silent rather than guess.
	evt := &event.Event{ToolName: "Bash", CWD: dir, ToolInput: json.RawMessage(`{"command":"ls"}`)}
	resp, err := Run(context.Background(), evt, &config.GlobalConfig{}, map[string]any{"permissions_path": path})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response outside any worktree, got %+v", resp)
	}
}
