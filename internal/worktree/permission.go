package worktree

import (
	"fmt"
	"path/filepath"

	"github.com/victorarias/policy-hook-runner/internal/config"
	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/matcher"
	"github.com/victorarias/policy-hook-runner/internal/shellparse"
)

// PermissionResult is the richer of the two worktree permission-checker
// shapes the source carries (see SPEC_FULL.md §9): besides the verdict it
// carries a MatchedPattern, which the worktree-permissions task puts in
// brackets in front of the reason. MatchedPattern is the always_deny or
// always_allow pattern that fired, "cd boundary enforcement" for the cd
// check, or "branch_type=<type>" for a permissions-table lookup. A table
// lookup does not record which tool-identifier pattern in the table
// matched, and a file-boundary denial carries no pattern.
type PermissionResult struct {
	Decision       event.Permission
	Reason         string
	MatchedPattern string
}

var permissionPrecedence = map[event.Permission]int{
	event.PermissionDeny: 4, event.PermissionAsk: 3, event.PermissionAllow: 2, event.PermissionIgnore: 1,
}

// MostRestrictivePermission returns the most restrictive of decisions, by
// the precedence deny > ask > allow > ignore. An unrecognised or empty
// input list yields ignore.
func MostRestrictivePermission(decisions ...event.Permission) event.Permission {
	most := event.PermissionIgnore
	maxP := 0
	for _, d := range decisions {
		if p, ok := permissionPrecedence[d]; ok && p > maxP {
			maxP = p
			most = d
		}
	}
	return most
}

// CheckToolPermission is the worktree matcher's entry point (§4.6 "Lookup").
func CheckToolPermission(toolName, bashCommand, filePath string, ctx *Context, cfg *config.WorktreePermissions, cwd string) PermissionResult {
	if ctx.IsMain && !cfg.MainWorktree.Enabled {
		return PermissionResult{Decision: event.PermissionIgnore, Reason: "Main worktree permissions are disabled"}
	}

	if toolName == "Bash" {
		commands := shellparse.SplitQuotedAware(bashCommand)
		if len(commands) > 1 {
			var most PermissionResult
			for i, cmd := range commands {
				r := checkSingleCommandPermission("Bash", cmd, "", ctx, cfg, cwd)
				if i == 0 || permissionPrecedence[r.Decision] >= permissionPrecedence[most.Decision] {
					most = r
				}
			}
			return most
		}
	}

	return checkSingleCommandPermission(toolName, bashCommand, filePath, ctx, cfg, cwd)
}

func checkSingleCommandPermission(toolName, bashCommand, filePath string, ctx *Context, cfg *config.WorktreePermissions, cwd string) PermissionResult {
	for _, rule := range cfg.Global.AlwaysDeny {
		if matcher.MatchToolIdentifier(toolName, bashCommand, rule.Pattern) {
			return PermissionResult{Decision: event.PermissionDeny, Reason: rule.Reason, MatchedPattern: rule.Pattern}
		}
	}
	for _, pattern := range cfg.Global.AlwaysAllow {
		if matcher.MatchToolIdentifier(toolName, bashCommand, pattern) {
			return PermissionResult{Decision: event.PermissionAllow, Reason: "Tool allowed by always_allow rule", MatchedPattern: pattern}
		}
	}

	if toolName == "Bash" {
		if target := shellparse.ExtractCDTarget(bashCommand); target != "" {
			ok, reason := validateCDCommand(target, cwd, ctx.WorktreeRoot)
			if ok {
				return PermissionResult{Decision: event.PermissionAllow, Reason: "cd within worktree boundary", MatchedPattern: "cd boundary enforcement"}
			}
			return PermissionResult{Decision: event.PermissionDeny, Reason: reason, MatchedPattern: "cd boundary enforcement"}
		}
	}

	permission, reason := findPermissionForTool(toolName, bashCommand, ctx, cfg)

	if cfg.Global.EnforceBoundaries && !ctx.IsMain {
		if ok, reason := validateToolPaths(toolName, filePath, cwd, ctx.WorktreeRoot); !ok {
			return PermissionResult{Decision: event.PermissionDeny, Reason: reason}
		}
	}

	return PermissionResult{Decision: event.Permission(permission), Reason: reason, MatchedPattern: fmt.Sprintf("branch_type=%s", ctx.BranchType)}
}

func findPermissionForTool(toolName, bashCommand string, ctx *Context, cfg *config.WorktreePermissions) (string, string) {
	if ctx.IsMain && cfg.MainWorktree.Enabled {
		for pattern, perm := range cfg.MainWorktree.Permissions {
			if matcher.MatchToolIdentifier(toolName, bashCommand, pattern) {
				return perm, "Main worktree permission rule"
			}
		}
		return cfg.Global.DefaultPermission, "Default permission"
	}

	if ctx.BranchType != "" {
		for _, entry := range cfg.BranchPermissions {
			if contains(entry.BranchTypes, ctx.BranchType) {
				for pattern, perm := range entry.Permissions {
					if matcher.MatchToolIdentifier(toolName, bashCommand, pattern) {
						return perm, entry.Reason
					}
				}
				return cfg.Global.DefaultPermission, entry.Reason + " (using default permission)"
			}
		}
	}

	for pattern, perm := range cfg.UnknownBranch.Permissions {
		if matcher.MatchToolIdentifier(toolName, bashCommand, pattern) {
			return perm, cfg.UnknownBranch.Reason
		}
	}
	return cfg.Global.DefaultPermission, cfg.UnknownBranch.Reason + " (using default permission)"
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// validateCDCommand implements the cd-boundary special case: an
// unresolvable target is denied, not allowed — this is deliberately
// stricter than validateToolPaths below (see SPEC_FULL.md §4.6's "Open
// Question resolved").
func validateCDCommand(target, cwd, worktreeRoot string) (bool, string) {
	absTarget := target
	if !filepath.IsAbs(target) {
		absTarget = filepath.Join(cwd, target)
	}
	resolved, err := filepath.Abs(absTarget)
	if err != nil {
		return false, fmt.Sprintf("Error resolving cd target: %v", err)
	}
	root, err := filepath.Abs(worktreeRoot)
	if err != nil {
		return false, fmt.Sprintf("Error resolving cd target: %v", err)
	}
	if IsWithinWorktree(resolved, root) {
		return true, ""
	}
	return false, fmt.Sprintf("Cannot cd outside worktree boundary: %s", resolved)
}

// validateFilePath implements the general file-boundary check: unlike
// validateCDCommand, a path that cannot be resolved is allowed — it might be
// a legitimate path the runner simply can't normalise (see SPEC_FULL.md
// §4.6's "Open Question resolved" for why this asymmetry is preserved).
func validateFilePath(filePath, cwd, worktreeRoot string) (bool, string) {
	absPath := filePath
	if !filepath.IsAbs(filePath) {
		absPath = filepath.Join(cwd, filePath)
	}
	resolved, err := filepath.Abs(absPath)
	if err != nil {
		return true, ""
	}
	root, err := filepath.Abs(worktreeRoot)
	if err != nil {
		return true, ""
	}
	if IsWithinWorktree(resolved, root) {
		return true, ""
	}
	return false, fmt.Sprintf("File path outside worktree boundary: %s", resolved)
}

var boundaryCheckedTools = map[string]bool{"Write": true, "Edit": true, "MultiEdit": true, "NotebookEdit": true}

// validateToolPaths implements §4.6 step 7: Read is exempt, other
// file-writing tools have their file_path checked against the worktree
// boundary.
func validateToolPaths(toolName, filePath, cwd, worktreeRoot string) (bool, string) {
	if toolName == "Read" {
		return true, ""
	}
	if !boundaryCheckedTools[toolName] || filePath == "" {
		return true, ""
	}
	return validateFilePath(filePath, cwd, worktreeRoot)
}
