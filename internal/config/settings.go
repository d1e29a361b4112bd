package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// SettingsPermissions is the §4.7 "additional table of tool-identifier
// patterns": always_allow / always_deny plus a default_permission consulted
// when nothing more specific fires. It composes with the worktree matcher
// only through the merger (§4.2), not by direct reference between tasks.
type SettingsPermissions struct {
	AlwaysAllow       []string
	AlwaysDeny        []AlwaysDenyRule
	DefaultPermission string // "" means: contribute nothing (ignore)
}

type rawSettingsPermissions struct {
	AlwaysAllow       []string             `yaml:"always_allow"`
	AlwaysDeny        []rawAlwaysDenyEntry `yaml:"always_deny"`
	DefaultPermission string               `yaml:"default_permission"`
}

// LoadSettingsPermissions reads the settings allow/deny YAML document. A
// missing file yields an empty, fully-permissive document (§4.9): no
// always_allow/always_deny entries and no default_permission, so the task
// contributes nothing to the merge.
func LoadSettingsPermissions(path string) (*SettingsPermissions, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &SettingsPermissions{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading settings permissions %s: %w", path, err)
	}

	var raw rawSettingsPermissions
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parsing settings permissions %s: %w", path, err)
	}

	sp := &SettingsPermissions{AlwaysAllow: raw.AlwaysAllow}
	for _, entry := range raw.AlwaysDeny {
		if entry.asString != "" {
			sp.AlwaysDeny = append(sp.AlwaysDeny, AlwaysDenyRule{
				Pattern: entry.asString, Reason: "Tool denied by always_deny rule",
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
		sp.AlwaysDeny = append(sp.AlwaysDeny, AlwaysDenyRule{Pattern: pattern, Reason: reason})
	}

	if raw.DefaultPermission != "" {
		normalized, err := normalizePermission("default_permission", strings.ToLower(raw.DefaultPermission))
		if err != nil {
			return nil, err
		}
		sp.DefaultPermission = normalized
	}
	return sp, nil
}
