// Package shellparse decomposes a raw shell command string the way the
// command and file matchers need: splitting chained commands, pulling
// subshell bodies out recursively, extracting cd targets and path-like
// tokens, and flagging unresolved shell variable references.
//
// The splitter is a small hand-written tokenizer with five states (normal,
// single-quote, double-quote, dollar-paren with depth, backtick) rather than
// a regex sweep, so quoting inside an operator-looking string (e.g. a commit
// message containing ";") can never cause a false split.
package shellparse

import (
	"regexp"
	"strings"
)

var separatorRunes = map[byte]bool{'&': true, '|': true, ';': true}

// ExtractAllCommands returns every executable command in cmd: subshell
// bodies (recursively, from $(...) and `...`) first, then the top-level
// commands left after those subshells are stripped and the residue is split
// on &&, ||, ;, |, &. Order is preserved; quoted regions are never split.
func ExtractAllCommands(cmd string) []string {
	var commands []string
	commands = append(commands, extractSubshellCommands(cmd)...)

	cleaned := removeSubshells(cmd)
	for _, part := range splitOnSeparators(cleaned, false) {
		part = strings.TrimSpace(part)
		if part != "" {
			commands = append(commands, part)
		}
	}
	return commands
}

// SplitQuotedAware splits cmd on the same separators as ExtractAllCommands
// but, unlike it, does not recurse into or strip subshells — it suppresses
// splitting inside them (and inside quotes) instead. Used by the worktree
// matcher's tool-identifier matching, which needs the original subshell text
// kept intact within each segment.
func SplitQuotedAware(cmd string) []string {
	return splitOnSeparators(cmd, true)
}

// dollarParenPattern matches an innermost $(...) span (one whose body holds
// no parentheses); nested spans are peeled from the inside out.
var dollarParenPattern = regexp.MustCompile(`\$\(([^()]+)\)`)
var backtickPattern = regexp.MustCompile("`([^`]+)`")

func extractSubshellCommands(cmd string) []string {
	var out []string
	for dollarParenPattern.MatchString(cmd) {
		for _, m := range dollarParenPattern.FindAllStringSubmatch(cmd, -1) {
			if sub := strings.TrimSpace(m[1]); sub != "" {
				out = append(out, ExtractAllCommands(sub)...)
			}
		}
		cmd = dollarParenPattern.ReplaceAllString(cmd, "__SUBSHELL__")
	}
	for _, m := range backtickPattern.FindAllStringSubmatch(cmd, -1) {
		if sub := strings.TrimSpace(m[1]); sub != "" {
			out = append(out, ExtractAllCommands(sub)...)
		}
	}
	return out
}

func removeSubshells(cmd string) string {
	for dollarParenPattern.MatchString(cmd) {
		cmd = dollarParenPattern.ReplaceAllString(cmd, "__SUBSHELL__")
	}
	cmd = backtickPattern.ReplaceAllString(cmd, "__SUBSHELL__")
	return cmd
}

// splitOnSeparators runs the five-state tokenizer over cmd. When
// preserveSubshells is true, $(...) / `...` spans are walked (so nesting
// depth is respected) but kept verbatim in the emitted segment instead of
// being replaced by a placeholder.
func splitOnSeparators(cmd string, preserveSubshells bool) []string {
	var commands []string
	var current strings.Builder

	var inSingle, inDouble, inBacktick bool
	parenDepth := 0

	flush := func() {
		text := strings.TrimSpace(current.String())
		if text != "" {
			commands = append(commands, text)
		}
		current.Reset()
	}

	runes := []rune(cmd)
	n := len(runes)
	for i := 0; i < n; i++ {
		c := runes[i]

		if c == '\'' && !inDouble && !(preserveSubshells && parenDepth > 0) {
			inSingle = !inSingle
			current.WriteRune(c)
			continue
		}
		if c == '"' && !inSingle && !(preserveSubshells && parenDepth > 0) {
			inDouble = !inDouble
			current.WriteRune(c)
			continue
		}
		if c == '`' && !inSingle && !inDouble {
			inBacktick = !inBacktick
			current.WriteRune(c)
			continue
		}
		if preserveSubshells {
			if c == '$' && i+1 < n && runes[i+1] == '(' && !inSingle && !inDouble {
				parenDepth++
				current.WriteRune(c)
				current.WriteRune('(')
				i++
				continue
			}
			if c == '(' && parenDepth > 0 && !inSingle && !inDouble {
				parenDepth++
				current.WriteRune(c)
				continue
			}
			if c == ')' && parenDepth > 0 && !inSingle && !inDouble {
				parenDepth--
				current.WriteRune(c)
				continue
			}
		}

		inQuoteOrSubshell := inSingle || inDouble || inBacktick || (preserveSubshells && parenDepth > 0)
		if !inQuoteOrSubshell {
			if c == '&' && i+1 < n && runes[i+1] == '&' {
				flush()
				i++
				continue
			}
			if c == '|' && i+1 < n && runes[i+1] == '|' {
				flush()
				i++
				continue
			}
			if separatorRunes[byte(c)] {
				flush()
				continue
			}
		}

		current.WriteRune(c)
	}
	flush()
	return commands
}

var cdPattern = regexp.MustCompile(`^\s*cd\s+(?:-[LP]\s+)?(.+)$`)

// ExtractCDTarget recognises `cd [-L|-P] TARGET` and returns TARGET with
// surrounding quotes stripped, or "" if cmd is not a cd invocation.
func ExtractCDTarget(cmd string) string {
	m := cdPattern.FindStringSubmatch(strings.TrimSpace(cmd))
	if m == nil {
		return ""
	}
	target := strings.TrimSpace(m[1])
	if len(target) >= 2 {
		if (target[0] == '"' && target[len(target)-1] == '"') ||
			(target[0] == '\'' && target[len(target)-1] == '\'') {
			target = target[1 : len(target)-1]
		}
	}
	return target
}

var quotedTokenPattern = regexp.MustCompile(`["']([^"']+)["']`)
var operatorTokens = map[string]bool{"&&": true, "||": true, ";": true, "|": true, "&": true}

// ExtractPathsFromCommand emits quoted path-like tokens (containing "/" or
// ".") followed by unquoted path-like tokens (containing "/" or starting
// with "~" or "."), skipping flags and operators. Mirrors the source's two-pass
// quoted-then-unquoted extraction order.
func ExtractPathsFromCommand(cmd string) []string {
	var paths []string

	for _, m := range quotedTokenPattern.FindAllStringSubmatch(cmd, -1) {
		path := m[1]
		if strings.Contains(path, "/") || strings.Contains(path, ".") {
			paths = append(paths, path)
		}
	}

	unquoted := quotedTokenPattern.ReplaceAllString(cmd, "")
	for _, tok := range strings.Fields(unquoted) {
		if strings.HasPrefix(tok, "-") || operatorTokens[tok] {
			continue
		}
		if strings.Contains(tok, "/") || strings.HasPrefix(tok, "~") || strings.HasPrefix(tok, ".") {
			paths = append(paths, tok)
		}
	}
	return paths
}

// NormalizePathWithQuotes strips a single layer of surrounding matching
// quotes and unescapes `\ ` to a literal space.
func NormalizePathWithQuotes(path string) string {
	if len(path) >= 2 {
		if (path[0] == '"' && path[len(path)-1] == '"') ||
			(path[0] == '\'' && path[len(path)-1] == '\'') {
			path = path[1 : len(path)-1]
		}
	}
	return strings.ReplaceAll(path, `\ `, " ")
}

var variablePattern = regexp.MustCompile(`\$\{?\w+\}?`)

// ContainsVariableReference reports whether tok contains an unresolved
// shell variable reference ($VAR, ${VAR}) or begins with a home-directory
// tilde. Pessimistic by design: it never attempts to resolve a value.
func ContainsVariableReference(tok string) bool {
	if strings.Contains(tok, "$") {
		return true
	}
	if strings.HasPrefix(tok, "~") {
		return true
	}
	return variablePattern.MatchString(tok)
}
