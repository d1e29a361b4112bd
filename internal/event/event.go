// Package event defines the wire types exchanged between the host and the
// runner: the inbound hook Event, the per-task TaskResponse, and the merged
// AggregateResponse written back to stdout.
package event

import "encoding/json"

// Kind enumerates the hook event names the host may invoke the runner with.
type Kind string

const (
	KindPreToolUse       Kind = "PreToolUse"
	KindPostToolUse      Kind = "PostToolUse"
	KindUserPromptSubmit Kind = "UserPromptSubmit"
	KindSessionStart     Kind = "SessionStart"
	KindStop             Kind = "Stop"
	KindNotification     Kind = "Notification"
	KindPreCompact       Kind = "PreCompact"
)

// Permission is the allow/ask/deny/ignore verdict lexeme used throughout the
// matchers and the merger. Ignore contributes nothing to a merge.
type Permission string

const (
	PermissionAllow  Permission = "allow"
	PermissionAsk    Permission = "ask"
	PermissionDeny   Permission = "deny"
	PermissionIgnore Permission = "ignore"
)

// priority implements the most-restrictive calculus: deny=3, ask=2, allow=1,
// ignore=0. Higher wins; ties are resolved by the caller using order.
var priority = map[Permission]int{
	PermissionDeny:   3,
	PermissionAsk:    2,
	PermissionAllow:  1,
	PermissionIgnore: 0,
}

// Priority returns the numeric rank of p for use in most-restrictive
// comparisons. Unknown values rank 0, the same as ignore.
func Priority(p Permission) int {
	return priority[p]
}

// MoreRestrictiveOrEqual reports whether a is at least as restrictive as b,
// i.e. priority(a) >= priority(b). Callers use >= so that, fed in order, the
// last argument of equal severity wins.
func MoreRestrictiveOrEqual(a, b Permission) bool {
	return priority[a] >= priority[b]
}

// Event is the JSON object the host writes to the runner's stdin.
type Event struct {
	HookEventName  Kind            `json:"hook_event_name"`
	SessionID      string          `json:"session_id"`
	ToolName       string          `json:"tool_name,omitempty"`
	ToolInput      json.RawMessage `json:"tool_input,omitempty"`
	CWD            string          `json:"cwd"`
	TranscriptPath string          `json:"transcript_path,omitempty"`

	// extra carries any unrecognised top-level fields so they are not
	// silently dropped when the event is forwarded to a task.
	extra map[string]json.RawMessage `json:"-"`
}

// UnmarshalJSON decodes known fields and stashes everything else so unknown
// fields survive round-tripping into task-specific code.
func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*e = Event(a)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{
		"hook_event_name": true, "session_id": true, "tool_name": true,
		"tool_input": true, "cwd": true, "transcript_path": true,
	}
	e.extra = map[string]json.RawMessage{}
	for k, v := range raw {
		if !known[k] {
			e.extra[k] = v
		}
	}
	return nil
}

// Extra returns the raw value of an unrecognised top-level field, if present.
func (e *Event) Extra(key string) (json.RawMessage, bool) {
	v, ok := e.extra[key]
	return v, ok
}

// BashInput is the tagged-variant case for Bash tool_input payloads.
type BashInput struct {
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
}

// FileInput is the tagged-variant case for file-touching tools.
type FileInput struct {
	FilePath     string `json:"file_path,omitempty"`
	NotebookPath string `json:"notebook_path,omitempty"`
}

// Path returns whichever of FilePath/NotebookPath is set.
func (f FileInput) Path() string {
	if f.FilePath != "" {
		return f.FilePath
	}
	return f.NotebookPath
}

var fileTools = map[string]bool{
	"Write": true, "Edit": true, "MultiEdit": true, "NotebookEdit": true,
	"Read": true,
}

// IsFileTool reports whether toolName is one of the tools whose tool_input
// carries a file_path/notebook_path the file matcher should consider.
func IsFileTool(toolName string) bool {
	return fileTools[toolName]
}

// HookSpecificOutput carries the PreToolUse permission verdict, or whatever
// shape other hook kinds attach (treated opaquely and forwarded unmodified
// when there's exactly one in a non-PreToolUse response).
type HookSpecificOutput struct {
	HookEventName            string         `json:"hookEventName,omitempty"`
	PermissionDecision        Permission     `json:"permissionDecision,omitempty"`
	PermissionDecisionReason  string         `json:"permissionDecisionReason,omitempty"`
	AdditionalContext         string         `json:"additionalContext,omitempty"`
	extra                     map[string]any `json:"-"`
}

// TaskResponse is the optional structured result a task returns.
type TaskResponse struct {
	Continue           *bool                `json:"continue,omitempty"`
	SuppressOutput     *bool                `json:"suppressOutput,omitempty"`
	StopReason         string               `json:"stopReason,omitempty"`
	Decision           string               `json:"decision,omitempty"`
	Reason             string               `json:"reason,omitempty"`
	SystemMessage      string               `json:"systemMessage,omitempty"`
	HookSpecificOutput *HookSpecificOutput  `json:"hookSpecificOutput,omitempty"`
}

// IsEmpty reports whether r carries no information at all, matching the
// source's "null treated as empty" handling for nil task responses.
func (r *TaskResponse) IsEmpty() bool {
	if r == nil {
		return true
	}
	return r.Continue == nil && r.SuppressOutput == nil && r.StopReason == "" &&
		r.Decision == "" && r.Reason == "" && r.SystemMessage == "" && r.HookSpecificOutput == nil
}

// AggregateResponse is the merged response written back to stdout.
type AggregateResponse struct {
	Continue           bool                `json:"continue"`
	SuppressOutput     bool                `json:"suppressOutput"`
	StopReason         string              `json:"stopReason,omitempty"`
	Decision           string              `json:"decision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	SystemMessage      string              `json:"systemMessage,omitempty"`
	HookSpecificOutput *HookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}
