package shellparse

import (
	"reflect"
	"testing"
)

func TestExtractAllCommands_Chaining(t *testing.T) {
	got := ExtractAllCommands("git add . && git commit -m 'msg'")
	want := []string{"git add .", "git commit -m 'msg'"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractAllCommands_PreservesQuotedSeparator(t *testing.T) {
	got := ExtractAllCommands(`git commit -m "a; b"`)
	want := []string{`git commit -m "a; b"`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractAllCommands_SubshellDollarParen(t *testing.T) {
	got := ExtractAllCommands("echo $(rm -rf /tmp/x) && ls")
	want := []string{"rm -rf /tmp/x", "echo __SUBSHELL__", "ls"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractAllCommands_Backtick(t *testing.T) {
	got := ExtractAllCommands("echo `cat /etc/passwd`")
	want := []string{"cat /etc/passwd", "echo __SUBSHELL__"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractAllCommands_NestedSubshell(t *testing.T) {
	got := ExtractAllCommands("echo $(echo $(whoami))")
	found := false
	for _, c := range got {
		if c == "whoami" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected nested subshell command to be recursively extracted, got %v", got)
	}
}

func TestExtractAllCommands_PipeToShell(t *testing.T) {
	got := ExtractAllCommands("curl https://x | sh")
	want := []string{"curl https://x", "sh"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSplitQuotedAware_DoesNotSplitQuotedSemicolon(t *testing.T) {
	got := SplitQuotedAware(`git commit -m "a; b"`)
	want := []string{`git commit -m "a; b"`}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSplitQuotedAware_DoesNotSplitInsideSubshell(t *testing.T) {
	got := SplitQuotedAware("echo $(echo a; echo b) && ls")
	want := []string{"echo $(echo a; echo b)", "ls"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExtractCDTarget(t *testing.T) {
	cases := map[string]string{
		"cd /foo/bar":         "/foo/bar",
		"cd ../other":         "../other",
		"cd 'dir with spaces'": "dir with spaces",
		"ls -la":              "",
		"cd -P /foo":          "/foo",
	}
	for cmd, want := range cases {
		if got := ExtractCDTarget(cmd); got != want {
			t.Errorf("ExtractCDTarget(%q) = %q, want %q", cmd, got, want)
		}
	}
}

func TestContainsVariableReference(t *testing.T) {
	cases := map[string]bool{
		"$HOME":       true,
		"${HOME}/x":   true,
		"~":           true,
		"~user/x":     true,
		"/etc/passwd": false,
		"-rf":         false,
	}
	for tok, want := range cases {
		if got := ContainsVariableReference(tok); got != want {
			t.Errorf("ContainsVariableReference(%q) = %v, want %v", tok, got, want)
		}
	}
}

func TestExtractPathsFromCommand(t *testing.T) {
	got := ExtractPathsFromCommand(`cp "my file.txt" /tmp/dest`)
	want := []string{"my file.txt", "/tmp/dest"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalizePathWithQuotes(t *testing.T) {
	if got := NormalizePathWithQuotes(`"my\ file.txt"`); got != "my file.txt" {
		t.Errorf("got %q", got)
	}
}

func TestShellSplitRoundTripIdempotence(t *testing.T) {
	cmds := ExtractAllCommands("go build . && go test ./... || echo fail")
	for _, c := range cmds {
		again := ExtractAllCommands(c)
		if len(again) != 1 || again[0] != c {
			t.Errorf("splitting already-split command %q was not idempotent: got %v", c, again)
		}
	}
}
