// Package decisionlog implements the append-only, per-hook-kind JSON event
// log described in §3/§6/§5: "<log_dir>/<hook_kind>.json", a JSON array of
// event records grown by append, guarded against concurrent-invocation
// corruption with an exclusive file lock (github.com/gofrs/flock), exactly
// as §5 calls for ("should use an exclusive file lock ... to avoid
// corrupting the JSON array").
package decisionlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// Record is one entry of a hook kind's append-only log. ID is a fresh UUID
// per invocation so a log entry can be cross-referenced with, e.g., an
// LLM-fallback daemon request sharing the same correlation ID.
type Record struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	HookKind  string `json:"hook_kind"`
	SessionID string `json:"session_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	CWD       string `json:"cwd,omitempty"`
	Decision  string `json:"decision,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// NewRecord stamps a record with a fresh correlation ID and the current
// time.
func NewRecord(hookKind, sessionID, toolName, cwd, decision, reason string) Record {
	return Record{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		HookKind:  hookKind,
		SessionID: sessionID,
		ToolName:  toolName,
		CWD:       cwd,
		Decision:  decision,
		Reason:    reason,
	}
}

// Append locks logDir/<hookKind>.json, reads the existing JSON array
// (treating a missing, empty, or invalid file as an empty array — per §5
// "readers must tolerate truncation... treat as empty"), appends rec, and
// rewrites the file. Failure to lock or write is non-fatal to callers: the
// caller decides whether to surface it via systemMessage.
func Append(logDir, hookKind string, rec Record) error {
	if logDir == "" {
		return fmt.Errorf("decisionlog: empty log directory")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return fmt.Errorf("decisionlog: creating log dir %s: %w", logDir, err)
	}

	path := filepath.Join(logDir, hookKind+".json")
	lockPath := path + ".lock"
	fl := flock.New(lockPath)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	locked, err := fl.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil || !locked {
		return fmt.Errorf("decisionlog: could not acquire lock on %s: %w", lockPath, err)
	}
	defer fl.Unlock()

	records := readExisting(path)
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("decisionlog: marshalling %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("decisionlog: writing %s: %w", path, err)
	}
	return nil
}

// readExisting parses path as a JSON array of Record. Any read or parse
// failure — missing file, empty file, truncated file from a signalled
// process — is treated as an empty log rather than an error, per §5.
func readExisting(path string) []Record {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil
	}
	return records
}
