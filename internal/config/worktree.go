package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// validPermissions is the closed set of permission lexemes accepted in a
// worktree-permissions document; matching is case-insensitive.
var validPermissions = map[string]bool{"allow": true, "ask": true, "deny": true, "ignore": true}

func normalizePermission(field, v string) (string, error) {
	v = strings.ToLower(v)
	if !validPermissions[v] {
		return "", fmt.Errorf("config: invalid permission %q for %s, must be one of allow/ask/deny/ignore", v, field)
	}
	return v, nil
}

// AlwaysDenyRule pairs a tool-identifier pattern with the reason to report
// when it fires. The document supports both a bare-string legacy form and
// this richer {pattern, reason} form; both are normalised to this type.
type AlwaysDenyRule struct {
	Pattern string
	Reason  string
}

// WorktreeGlobalConfig is the worktree-permissions document's "global"
// section.
type WorktreeGlobalConfig struct {
	Enabled           bool
	DefaultPermission string
	EnforceBoundaries bool
	AlwaysAllow       []string
	AlwaysDeny        []AlwaysDenyRule
}

// MainWorktreeConfig is the "main_worktree" section.
type MainWorktreeConfig struct {
	Enabled     bool
	Permissions map[string]string
}

// BranchPermissionEntry is one entry of "branch_permissions".
type BranchPermissionEntry struct {
	BranchTypes []string
	Reason      string
	Permissions map[string]string
}

// UnknownBranchConfig is the "unknown_branch" section.
type UnknownBranchConfig struct {
	Reason      string
	Permissions map[string]string
}

// WorktreePermissions is the validated in-memory form of the
// worktree-permissions document (§3).
type WorktreePermissions struct {
	Global            WorktreeGlobalConfig
	MainWorktree      MainWorktreeConfig
	BranchPermissions []BranchPermissionEntry
	UnknownBranch     UnknownBranchConfig
}

type rawAlwaysDenyEntry struct {
	asString  string
	asMapping map[string]string
}

func (e *rawAlwaysDenyEntry) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.asString)
	}
	return node.Decode(&e.asMapping)
}

type rawWorktreeGlobal struct {
	Enabled           *bool                `yaml:"enabled"`
	DefaultPermission string               `yaml:"default_permission"`
	EnforceBoundaries *bool                `yaml:"enforce_boundaries"`
	AlwaysAllow       []string             `yaml:"always_allow"`
	AlwaysDeny        []rawAlwaysDenyEntry `yaml:"always_deny"`
}

type rawMainWorktree struct {
	Enabled     bool              `yaml:"enabled"`
	Permissions map[string]string `yaml:"permissions"`
}

type rawBranchPermissionEntry struct {
	BranchTypes []string          `yaml:"branch_types"`
	Reason      string            `yaml:"reason"`
	Permissions map[string]string `yaml:"permissions"`
}

type rawUnknownBranch struct {
	Reason      string            `yaml:"reason"`
	Permissions map[string]string `yaml:"permissions"`
}

type rawWorktreePermissions struct {
	Global            rawWorktreeGlobal           `yaml:"global"`
	MainWorktree      rawMainWorktree             `yaml:"main_worktree"`
	BranchPermissions []rawBranchPermissionEntry  `yaml:"branch_permissions"`
	UnknownBranch     rawUnknownBranch            `yaml:"unknown_branch"`
}

// LoadWorktreePermissions reads and validates a worktree-permissions YAML
// document. A missing file yields a disabled, fully-permissive document
// (global.enabled=false), matching §4.9's "missing optional config ⇒ empty,
// permissive defaults".
func LoadWorktreePermissions(path string) (*WorktreePermissions, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &WorktreePermissions{
			Global: WorktreeGlobalConfig{Enabled: false, DefaultPermission: "ask", EnforceBoundaries: false},
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading worktree permissions %s: %w", path, err)
	}

	var raw rawWorktreePermissions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing worktree permissions %s: %w", path, err)
	}

	wp := &WorktreePermissions{}

	wp.Global.Enabled = true
	if raw.Global.Enabled != nil {
		wp.Global.Enabled = *raw.Global.Enabled
	}
	defaultPerm := raw.Global.DefaultPermission
	if defaultPerm == "" {
		defaultPerm = "ask"
	}
	normalizedDefault, err := normalizePermission("global.default_permission", defaultPerm)
	if err != nil {
		return nil, err
	}
	wp.Global.DefaultPermission = normalizedDefault
	wp.Global.EnforceBoundaries = true
	if raw.Global.EnforceBoundaries != nil {
		wp.Global.EnforceBoundaries = *raw.Global.EnforceBoundaries
	}
	wp.Global.AlwaysAllow = raw.Global.AlwaysAllow
	for _, entry := range raw.Global.AlwaysDeny {
		if entry.asString != "" {
			wp.Global.AlwaysDeny = append(wp.Global.AlwaysDeny, AlwaysDenyRule{
				Pattern: entry.asString,
				Reason:  "Tool denied by always_deny rule",
			})
			continue
		}
		pattern := entry.asMapping["pattern"]
		if pattern == "" {
			return nil, fmt.Errorf("config: always_deny entry missing 'pattern' field")
		}
		reason := entry.asMapping["reason"]
		if reason == "" {
			reason = "Tool denied by always_deny rule"
		}
		wp.Global.AlwaysDeny = append(wp.Global.AlwaysDeny, AlwaysDenyRule{Pattern: pattern, Reason: reason})
	}

	wp.MainWorktree.Enabled = raw.MainWorktree.Enabled
	wp.MainWorktree.Permissions, err = normalizePermissionMap("main_worktree", raw.MainWorktree.Permissions)
	if err != nil {
		return nil, err
	}

	for _, e := range raw.BranchPermissions {
		perms, err := normalizePermissionMap("branch_permissions", e.Permissions)
		if err != nil {
			return nil, err
		}
		wp.BranchPermissions = append(wp.BranchPermissions, BranchPermissionEntry{
			BranchTypes: e.BranchTypes, Reason: e.Reason, Permissions: perms,
		})
	}

	wp.UnknownBranch.Reason = raw.UnknownBranch.Reason
	wp.UnknownBranch.Permissions, err = normalizePermissionMap("unknown_branch", raw.UnknownBranch.Permissions)
	if err != nil {
		return nil, err
	}

	return wp, nil
}

func normalizePermissionMap(section string, in map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(in))
	for tool, perm := range in {
		normalized, err := normalizePermission(fmt.Sprintf("%s[%s]", section, tool), perm)
		if err != nil {
			return nil, err
		}
		out[tool] = normalized
	}
	return out, nil
}
