package worktree

import (
	"testing"

	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
)

func baseConfig() *config.WorktreePermissions {
	return &config.WorktreePermissions{
		Global: config.WorktreeGlobalConfig{
			Enabled: true, DefaultPermission: "ask", EnforceBoundaries: true,
		},
		MainWorktree: config.MainWorktreeConfig{Enabled: false},
		UnknownBranch: config.UnknownBranchConfig{
			Reason: "unknown branch", Permissions: map[string]string{},
		},
	}
}

func TestCheckToolPermission_CDWithinBoundaryAllowed(t *testing.T) {
	ctx := &Context{IsWorktree: true, WorktreeRoot: "/w/worktrees/feat-x", BranchType: "feat"}
	cfg := baseConfig()
	cfg.Global.AlwaysAllow = []string{"Bash(ls:*)"}
	r := CheckToolPermission("Bash", "cd src && ls", "", ctx, cfg, "/w/worktrees/feat-x")
	if r.Decision != event.PermissionAllow {
		t.Errorf("got %s, want allow", r.Decision)
	}
}

func TestCheckToolPermission_CDOutsideBoundaryDenied(t *testing.T) {
	ctx := &Context{IsWorktree: true, WorktreeRoot: "/w/worktrees/feat-x", BranchType: "feat"}
	r := CheckToolPermission("Bash", "cd /etc && ls", "", ctx, baseConfig(), "/w/worktrees/feat-x")
	if r.Decision != event.PermissionDeny {
		t.Errorf("got %s, want deny", r.Decision)
	}
	if r.Reason == "" {
		t.Error("expected a boundary-violation reason")
	}
}

func TestCheckToolPermission_ReadExemptFromBoundary(t *testing.T) {
	cfg := baseConfig()
	ctx := &Context{IsWorktree: true, WorktreeRoot: "/w/worktrees/feat-x", BranchType: "feat"}
	r := CheckToolPermission("Read", "", "/etc/passwd", ctx, cfg, "/w/worktrees/feat-x")
	if r.Decision == event.PermissionDeny {
		t.Error("Read should be exempt from boundary enforcement")
	}
}

func TestCheckToolPermission_AlwaysDenyBeatsEverything(t *testing.T) {
	cfg := baseConfig()
	cfg.Global.AlwaysDeny = []config.AlwaysDenyRule{{Pattern: "Bash(rm -rf:*)", Reason: "never"}}
	ctx := &Context{IsWorktree: true, WorktreeRoot: "/w", BranchType: "feat"}
	r := CheckToolPermission("Bash", "rm -rf /tmp/x", "", ctx, cfg, "/w")
	if r.Decision != event.PermissionDeny {
		t.Errorf("got %s, want deny", r.Decision)
	}
}

func TestCheckToolPermission_BranchTypeMapping(t *testing.T) {
	cfg := baseConfig()
	cfg.BranchPermissions = []config.BranchPermissionEntry{{
		BranchTypes: []string{"feat"}, Reason: "feature branch",
		Permissions: map[string]string{"Bash(git push:*)": "ask"},
	}}
	ctx := &Context{IsWorktree: true, WorktreeRoot: "/w/worktrees/feat-x", BranchType: "feat"}
	r := CheckToolPermission("Bash", "git push -f origin main", "", ctx, cfg, "/w/worktrees/feat-x")
	if r.Decision != event.PermissionAsk {
		t.Errorf("got %s, want ask", r.Decision)
	}
	if r.MatchedPattern != "Bash(git push:*)" && r.Reason != "feature branch" {
		t.Errorf("expected reason to reference the branch rule, got reason=%q pattern=%q", r.Reason, r.MatchedPattern)
	}
}

func TestCheckToolPermission_MultiCommandMostRestrictive(t *testing.T) {
	cfg := baseConfig()
	cfg.Global.AlwaysDeny = []config.AlwaysDenyRule{{Pattern: "Bash(rm -rf:*)", Reason: "never"}}
	ctx := &Context{IsWorktree: true, WorktreeRoot: "/w", BranchType: "feat"}
	r := CheckToolPermission("Bash", "git add . && rm -rf /tmp/x", "", ctx, cfg, "/w")
	if r.Decision != event.PermissionDeny {
		t.Errorf("got %s, want deny (most restrictive of the chain)", r.Decision)
	}
}

func TestCheckToolPermission_MainWorktreeDisabledIgnores(t *testing.T) {
	cfg := baseConfig()
	ctx := &Context{IsWorktree: true, IsMain: true, WorktreeRoot: "/w"}
	r := CheckToolPermission("Write", "", "/w/main.go", ctx, cfg, "/w")
	if r.Decision != event.PermissionIgnore {
		t.Errorf("got %s, want ignore", r.Decision)
	}
}

func TestCheckToolPermission_UnknownBranchFallsBackToDefault(t *testing.T) {
	cfg := baseConfig()
	ctx := &Context{IsWorktree: true, WorktreeRoot: "/w", BranchType: ""}
	r := CheckToolPermission("Write", "", "/w/main.go", ctx, cfg, "/w")
	if r.Decision != event.PermissionAsk {
		t.Errorf("got %s, want ask (default_permission)", r.Decision)
	}
}

func TestMostRestrictivePermission(t *testing.T) {
	got := MostRestrictivePermission(event.PermissionAllow, event.PermissionAsk, event.PermissionIgnore)
	if got != event.PermissionAsk {
		t.Errorf("got %s, want ask", got)
	}
	if MostRestrictivePermission() != event.PermissionIgnore {
		t.Error("empty input should yield ignore")
	}
}
