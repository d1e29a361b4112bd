// Package matcher implements the pattern-matching engines the security-guard
// and worktree tasks share: the gitignore-style file matcher, the two-phase
// command matcher, and tool-identifier pattern matching.
package matcher

import (
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/shellparse"
)

// FileRule is one entry of a security rules document's files list.
type FileRule struct {
	Pattern string
	Tools   []string
	Message string
}

// FileMatch is the result of a successful file-rule match.
type FileMatch struct {
	Permission event.Permission
	Message    string
	Pattern    string
}

var fileCheckedTools = map[string]bool{
	"Read": true, "Edit": true, "MultiEdit": true, "Write": true, "Bash": true,
}

// CheckFileRules applies file-path rules to a tool invocation, returning the
// first matching rule's verdict. Only file-reading/writing tools and Bash
// are considered; for Bash, a single candidate path is extracted from the
// command text (the first quoted-or-unquoted path-like token).
func CheckFileRules(toolName string, filePath, bashCommand string, rules []FileRule, permission event.Permission) *FileMatch {
	if !fileCheckedTools[toolName] {
		return nil
	}

	candidate := filePath
	if toolName == "Bash" {
		candidate = extractFileFromBash(bashCommand)
	}
	if candidate == "" {
		return nil
	}

	normalized := path.Clean(candidate)

	for _, rule := range rules {
		if len(rule.Tools) > 0 && !contains(rule.Tools, toolName) {
			continue
		}
		if MatchesFilePattern(normalized, rule.Pattern) {
			msg := rule.Message
			if msg == "" {
				msg = "Sensitive file access prevented for safety: " + rule.Pattern
			}
			return &FileMatch{Permission: permission, Message: msg, Pattern: rule.Pattern}
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func extractFileFromBash(command string) string {
	paths := shellparse.ExtractPathsFromCommand(command)
	if len(paths) == 0 {
		return ""
	}
	return shellparse.NormalizePathWithQuotes(paths[0])
}

// MatchesFilePattern checks filePath against a gitignore-style pattern,
// case-insensitively. A pattern with no "/" is lifted to "**/pattern" before
// matching (a bare filename pattern applies at any depth). A leading "!" is
// stripped before matching — its whitelist/blacklist intent is resolved by
// the caller, not by this function. As a fallback for filename-only
// patterns, a path also matches when its basename ends with the pattern
// text, so "my secrets.json" matches pattern "secrets.json".
func MatchesFilePattern(filePath, pattern string) bool {
	pattern = strings.TrimPrefix(pattern, "!")

	filePathLower := strings.ToLower(filePath)
	patternLower := strings.ToLower(pattern)

	isFilenamePattern := !strings.Contains(patternLower, "/") && !strings.HasPrefix(patternLower, "**")
	if isFilenamePattern {
		patternLower = "**/" + patternLower
	}

	if ok, _ := doublestar.Match(patternLower, filePathLower); ok {
		return true
	}

	if isFilenamePattern {
		basename := path.Base(filePathLower)
		filenamePattern := strings.TrimPrefix(patternLower, "**/")
		if strings.HasSuffix(basename, filenamePattern) {
			return true
		}
	}
	return false
}
