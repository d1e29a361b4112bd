// Package worktree detects git worktree context and evaluates the
// worktree-permissions lookup (§4.6): which worktree a cwd belongs to, its
// branch type, and the permission that type maps to.
package worktree

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Context is the per-invocation worktree detection result.
type Context struct {
	IsWorktree   bool
	IsMain       bool
	WorktreeRoot string
	BranchName   string
	BranchType   string
}

type porcelainEntry struct {
	path   string
	branch string
	bare   bool
}

// Detect runs `git worktree list --porcelain` with cwd as the working
// directory, selects the worktree whose path is the longest prefix of cwd,
// and derives branch type. Returns nil, nil for every recoverable failure
// (not a repo, git missing, timeout, cwd outside any worktree) — the source
// swallows all such cases to None rather than surfacing them as errors.
func Detect(ctx context.Context, cwd string) (*Context, error) {
	runCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "git", "worktree", "list", "--porcelain")
	cmd.Dir = cwd
	out, err := cmd.Output()
	if err != nil {
		return nil, nil
	}

	entries := parsePorcelain(string(out))
	if len(entries) == 0 {
		return nil, nil
	}

	resolvedCWD, err := filepath.EvalSymlinks(cwd)
	if err != nil {
		resolvedCWD = cwd
	}
	resolvedCWD = filepath.Clean(resolvedCWD)

	bestIndex := -1
	bestLen := -1
	for i, e := range entries {
		root, err := filepath.EvalSymlinks(e.path)
		if err != nil {
			root = e.path
		}
		root = filepath.Clean(root)
		if !isWithinPath(resolvedCWD, root) {
			continue
		}
		if len(root) > bestLen {
			bestLen = len(root)
			bestIndex = i
		}
	}
	if bestIndex == -1 {
		return nil, nil
	}

	best := entries[bestIndex]
	root, err := filepath.EvalSymlinks(best.path)
	if err != nil {
		root = best.path
	}

	return &Context{
		IsWorktree:   true,
		IsMain:       bestIndex == 0,
		WorktreeRoot: filepath.Clean(root),
		BranchName:   best.branch,
		BranchType:   extractBranchType(best.branch),
	}, nil
}

// isWithinPath reports whether candidate is root itself or a descendant of it.
func isWithinPath(candidate, root string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") )
}

func parsePorcelain(output string) []porcelainEntry {
	var entries []porcelainEntry
	var current porcelainEntry
	hasCurrent := false

	flush := func() {
		if hasCurrent {
			entries = append(entries, current)
		}
		current = porcelainEntry{}
		hasCurrent = false
	}

	for _, rawLine := range strings.Split(strings.TrimSpace(output), "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			flush()
			continue
		}
		hasCurrent = true
		switch {
		case strings.HasPrefix(line, "worktree "):
			current.path = strings.TrimPrefix(line, "worktree ")
		case strings.HasPrefix(line, "branch "):
			ref := strings.TrimPrefix(line, "branch ")
			if strings.HasPrefix(ref, "refs/heads/") {
				current.branch = strings.TrimPrefix(ref, "refs/heads/")
			}
		case strings.HasPrefix(line, "bare"):
			current.bare = true
		}
	}
	flush()
	return entries
}

// extractBranchType returns the segment of branchName before the first "/",
// or "" if there is none.
func extractBranchType(branchName string) string {
	if i := strings.Index(branchName, "/"); i >= 0 {
		return branchName[:i]
	}
	return ""
}

// IsWithinWorktree reports whether path, once resolved, lies within root.
func IsWithinWorktree(path, root string) bool {
	resolvedPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		resolvedPath = path
	}
	resolvedRoot, err := filepath.EvalSymlinks(root)
	if err != nil {
		resolvedRoot = root
	}
	return isWithinPath(filepath.Clean(resolvedPath), filepath.Clean(resolvedRoot))
}
