package matcher

import "testing"

func TestMatchesFilePattern_BasenameLiftedToGlobstar(t *testing.T) {
	if !MatchesFilePattern("src/config/.env", ".env") {
		t.Error("bare filename pattern should match at any depth")
	}
}

func TestMatchesFilePattern_CaseInsensitive(t *testing.T) {
	if !MatchesFilePattern("SRC/SECRETS.JSON", "secrets.json") {
		t.Error("matching should be case-insensitive")
	}
}

func TestMatchesFilePattern_BasenameSuffixFallback(t *testing.T) {
	if !MatchesFilePattern("my secrets.json", "secrets.json") {
		t.Error("basename-suffix fallback should match 'my secrets.json' against 'secrets.json'")
	}
}

func TestMatchesFilePattern_NegationPrefixStripped(t *testing.T) {
	if !MatchesFilePattern(".env.sample", "!.env.sample") {
		t.Error("leading ! should be stripped before matching")
	}
}

func TestMatchesFilePattern_NoMatch(t *testing.T) {
	if MatchesFilePattern("src/main.go", "secrets.json") {
		t.Error("unrelated file should not match")
	}
}

func TestMatchesFilePattern_GlobPatternWithPath(t *testing.T) {
	if !MatchesFilePattern("config/prod/.env", "config/**/.env") {
		t.Error("explicit path pattern with ** should match nested dirs")
	}
}

func TestCheckFileRules_DotEnvDenied(t *testing.T) {
	rules := []FileRule{{Pattern: ".env", Message: "no env files"}}
	m := CheckFileRules("Write", "/w/.env", "", rules, "deny")
	if m == nil || m.Permission != "deny" {
		t.Fatalf("expected deny match, got %v", m)
	}
}

func TestCheckFileRules_ToolsRestriction(t *testing.T) {
	rules := []FileRule{{Pattern: ".env", Tools: []string{"Read"}}}
	m := CheckFileRules("Write", "/w/.env", "", rules, "deny")
	if m != nil {
		t.Fatalf("rule scoped to Read should not match Write, got %v", m)
	}
}

func TestCheckFileRules_BashExtractsPathFromCommand(t *testing.T) {
	rules := []FileRule{{Pattern: ".env", Message: "no env files"}}
	m := CheckFileRules("Bash", "", "cat /w/.env", rules, "deny")
	if m == nil {
		t.Fatal("expected match extracted from bash command")
	}
}

func TestCheckFileRules_UnrelatedToolSkipped(t *testing.T) {
	rules := []FileRule{{Pattern: ".env"}}
	if m := CheckFileRules("Glob", "/w/.env", "", rules, "deny"); m != nil {
		t.Fatalf("Glob is not a checked tool, got %v", m)
	}
}
