package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/victorarias/policy-hook-runner/internal/matcher"
)

// rawFileRule/rawCommandRule mirror the YAML shape of §3's FileRule/CommandRule
// before regex compilation and validation.
type rawFileRule struct {
	Pattern string   `yaml:"pattern"`
	Tools   []string `yaml:"tools"`
	Message string   `yaml:"message"`
}

type rawCommandRule struct {
	Command     string     `yaml:"command"`
	Flags       [][]string `yaml:"flags"`
	Paths       []string   `yaml:"paths"`
	Patterns    []string   `yaml:"patterns"`
	BlockAlways bool       `yaml:"block_always"`
	Tools       []string   `yaml:"tools"`
	Message     string     `yaml:"message"`
}

type rawPermissionBucket struct {
	Files    []rawFileRule    `yaml:"files"`
	Commands []rawCommandRule `yaml:"commands"`
}

type rawSecurityRules struct {
	Whitelist map[string]rawPermissionBucket `yaml:"whitelist"`
	Blacklist map[string]rawPermissionBucket `yaml:"blacklist"`
}

// PermissionBucket holds the validated, regex-compiled rules for one
// permission level (allow/ask/deny) within whitelist or blacklist.
type PermissionBucket struct {
	Permission string
	Files      []matcher.FileRule
	Commands   []matcher.CommandRule
}

// SecurityRules is the validated in-memory form of the security rules
// document (§3): whitelist buckets, evaluated strictly before blacklist
// buckets, each keyed by permission level.
type SecurityRules struct {
	Whitelist []PermissionBucket
	Blacklist []PermissionBucket
}

// permissionOrder fixes bucket evaluation order within a list: deny is checked before
// ask before allow, matching the source's conservative-first convention.
var permissionOrder = []string{"deny", "ask", "allow"}

// LoadSecurityRules reads and validates a security-rules YAML document at
// path. A missing file is treated as an empty, fully-permissive document
// (§4.9/§7's "missing config is empty, permissive defaults").
func LoadSecurityRules(path string) (*SecurityRules, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &SecurityRules{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: reading security rules %s: %w", path, err)
	}

	var raw rawSecurityRules
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return &SecurityRules{}, fmt.Errorf("config: parsing security rules %s: %w", path, err)
	}

	rules := &SecurityRules{}
	rules.Whitelist, err = buildBuckets(raw.Whitelist)
	if err != nil {
		return nil, err
	}
	rules.Blacklist, err = buildBuckets(raw.Blacklist)
	if err != nil {
		return nil, err
	}
	return rules, nil
}

func buildBuckets(raw map[string]rawPermissionBucket) ([]PermissionBucket, error) {
	var buckets []PermissionBucket
	for _, perm := range permissionOrder {
		bucket, ok := raw[perm]
		if !ok {
			continue
		}
		b, err := buildBucket(perm, bucket)
		if err != nil {
			return nil, err
		}
		buckets = append(buckets, b)
	}
	return buckets, nil
}

func buildBucket(perm string, raw rawPermissionBucket) (PermissionBucket, error) {
	b := PermissionBucket{Permission: perm}
	for _, f := range raw.Files {
		if f.Pattern == "" {
			return b, fmt.Errorf("config: file rule missing pattern in %s bucket", perm)
		}
		b.Files = append(b.Files, matcher.FileRule{Pattern: f.Pattern, Tools: f.Tools, Message: f.Message})
	}
	for _, c := range raw.Commands {
		if c.Command == "" {
			return b, fmt.Errorf("config: command rule missing command in %s bucket", perm)
		}
		var compiled []*regexp.Regexp
		for _, p := range c.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return b, fmt.Errorf("config: invalid pattern %q for rule %q: %w", p, c.Command, err)
			}
			compiled = append(compiled, re)
		}
		b.Commands = append(b.Commands, matcher.CommandRule{
			Command:     c.Command,
			Flags:       c.Flags,
			Paths:       c.Paths,
			Patterns:    compiled,
			BlockAlways: c.BlockAlways,
			Tools:       c.Tools,
			Message:     c.Message,
		})
	}
	return b, nil
}
