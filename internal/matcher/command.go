package matcher

import (
	"regexp"
	"strings"

	"github.com/victorarias/policy-hook-runner/internal/event"
	"github.com/victorarias/policy-hook-runner/internal/shellparse"
)

// CommandRule is one entry of a security rules document's commands list.
type CommandRule struct {
	Command     string
	Flags       [][]string
	Paths       []string
	Patterns    []*regexp.Regexp
	BlockAlways bool
	Tools       []string
	Message     string
}

// CommandMatch is the result of a successful command-rule match.
type CommandMatch struct {
	Permission event.Permission
	Message    string
	BaseCommand string
}

// CheckCommandRules runs the two-phase command matcher (§4.5) against a Bash
// command: first the full-command regex sweep (Phase A), then per-subcommand
// rule evaluation over every command extracted by the shell parser (Phase B).
// Only applies to the Bash tool.
func CheckCommandRules(toolName, command string, rules []CommandRule, permission event.Permission) *CommandMatch {
	if toolName != "Bash" || command == "" {
		return nil
	}

	if m := checkFullCommandPatterns(command, rules, permission); m != nil {
		return m
	}

	for _, cmd := range shellparse.ExtractAllCommands(command) {
		if m := checkSingleCommand(cmd, rules, permission); m != nil {
			return m
		}
	}
	return nil
}

// checkFullCommandPatterns is Phase A: every rule with a non-empty Patterns
// list is tested against the original, unsplit command. A rule only
// qualifies if its base command string also appears somewhere in the
// whitespace-normalised full command — this is stricter than "regex alone"
// and catches constructs like "curl ... | sh" that per-subcommand matching
// would lose after splitting.
func checkFullCommandPatterns(command string, rules []CommandRule, permission event.Permission) *CommandMatch {
	normalized := normalizeWhitespace(strings.ToLower(command))

	for _, rule := range rules {
		if len(rule.Patterns) == 0 {
			continue
		}
		base := strings.ToLower(rule.Command)
		if !strings.Contains(normalized, base) {
			continue
		}
		if matchesAnyPattern(command, rule.Patterns) {
			msg := rule.Message
			if msg == "" {
				msg = "Dangerous command prevented for safety: " + base
			}
			return &CommandMatch{Permission: permission, Message: msg, BaseCommand: base}
		}
	}
	return nil
}

// checkSingleCommand is Phase B for one already-split command.
func checkSingleCommand(command string, rules []CommandRule, permission event.Permission) *CommandMatch {
	normalized := normalizeWhitespace(strings.ToLower(command))

	for _, rule := range rules {
		base := strings.ToLower(rule.Command)
		if !strings.HasPrefix(normalized, base) {
			continue
		}

		if rule.BlockAlways {
			msg := rule.Message
			if msg == "" {
				msg = "Dangerous command prevented for safety: " + base
			}
			return &CommandMatch{Permission: permission, Message: msg, BaseCommand: base}
		}

		hasConditions := len(rule.Flags) > 0 || len(rule.Paths) > 0 || len(rule.Patterns) > 0
		if !hasConditions {
			msg := rule.Message
			if msg == "" {
				msg = "Command matched: " + base
			}
			return &CommandMatch{Permission: permission, Message: msg, BaseCommand: base}
		}

		flagsMatch := len(rule.Flags) == 0 || hasDangerousFlags(normalized, rule.Flags)
		pathsMatch := len(rule.Paths) == 0 || hasDangerousPaths(command, rule.Paths)
		patternsMatch := len(rule.Patterns) == 0 || matchesAnyPattern(command, rule.Patterns)

		if flagsMatch && pathsMatch && patternsMatch {
			msg := rule.Message
			if msg == "" {
				msg = "Dangerous command prevented for safety: " + base
			}
			return &CommandMatch{Permission: permission, Message: msg, BaseCommand: base}
		}
	}
	return nil
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// hasDangerousFlags reports whether every flag in at least one conjunction
// of dangerousFlags appears as a whole whitespace-delimited token of the
// (already-normalised, lower-cased) command.
func hasDangerousFlags(normalizedCommand string, dangerousFlags [][]string) bool {
	tokens := strings.Fields(normalizedCommand)
	tokenSet := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = true
	}
	for _, combo := range dangerousFlags {
		all := true
		for _, flag := range combo {
			if !tokenSet[strings.ToLower(flag)] {
				all = false
				break
			}
		}
		if all {
			return true
		}
	}
	return false
}

// hasDangerousPaths reports whether a listed path appears as a whole token
// of the (un-normalised, to preserve variable casing) command, or whether
// any non-flag token contains an unresolved variable reference — variables
// are pessimistically treated as potentially expanding to a dangerous path.
func hasDangerousPaths(command string, dangerousPaths []string) bool {
	tokens := strings.Fields(command)

	for _, wantPath := range dangerousPaths {
		wantLower := strings.ToLower(wantPath)
		for _, tok := range tokens {
			if strings.ToLower(tok) == wantLower {
				return true
			}
		}
	}

	for _, tok := range tokens {
		if strings.HasPrefix(tok, "-") {
			continue
		}
		if shellparse.ContainsVariableReference(tok) {
			return true
		}
	}
	return false
}

func matchesAnyPattern(command string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(command) {
			return true
		}
	}
	return false
}
