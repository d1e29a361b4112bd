// Package merge implements the response-merge algebra: combining an ordered
// list of per-task TaskResponses into a single AggregateResponse using the
// most-restrictive-wins, later-task-breaks-ties calculus.
package merge

import (
	"fmt"
	"strings"

	"github.com/victorarias/policy-hook-runner/internal/event"
)

// Named pairs a task's stable name with the response it returned, preserving
// the declared task order the tiebreak rule depends on.
type Named struct {
	TaskName string
	Response *event.TaskResponse
}

// Combine folds an ordered sequence of task responses into one
// AggregateResponse per the rules of the response-merge algebra. Responses
// that are nil or empty are skipped entirely, matching the source's
// "collect the task response only if task_output is truthy" behaviour.
func Combine(results []Named) (event.AggregateResponse, error) {
	var out event.AggregateResponse
	var systemMessages []string
	var hookOutputs []Named
	var sawContinueFalse, decisionSet bool

	for _, r := range results {
		resp := r.Response
		if resp.IsEmpty() {
			continue
		}

		if resp.Continue != nil && !*resp.Continue {
			sawContinueFalse = true
		}
		if resp.SuppressOutput != nil && *resp.SuppressOutput {
			out.SuppressOutput = true
		}
		if resp.StopReason != "" && out.StopReason == "" {
			out.StopReason = resp.StopReason
		}
		if resp.Decision == "block" && !decisionSet {
			out.Decision = "block"
			out.Reason = resp.Reason
			decisionSet = true
		}
		if resp.SystemMessage != "" {
			systemMessages = append(systemMessages,
				fmt.Sprintf("Task: '%s'\nMessage: %s", r.TaskName, resp.SystemMessage))
		}
		if resp.HookSpecificOutput != nil {
			hookOutputs = append(hookOutputs, Named{TaskName: r.TaskName, Response: resp})
		}
	}

	out.Continue = !sawContinueFalse
	if len(systemMessages) > 0 {
		out.SystemMessage = strings.Join(systemMessages, "\n\n")
	}

	merged, err := mergeHookOutputs(hookOutputs)
	if err != nil {
		return out, err
	}
	out.HookSpecificOutput = merged
	return out, nil
}

// mergeHookOutputs implements §4.2's per-hook-kind hookSpecificOutput merge:
// for PreToolUse, the most-restrictive permission wins with later-task
// ties-breaking; for every other hook kind, at most one task may produce a
// hookSpecificOutput.
func mergeHookOutputs(named []Named) (*event.HookSpecificOutput, error) {
	if len(named) == 0 {
		return nil, nil
	}

	var preToolUse []Named
	for _, n := range named {
		if n.Response.HookSpecificOutput.HookEventName == string(event.KindPreToolUse) &&
			n.Response.HookSpecificOutput.PermissionDecision != "" {
			preToolUse = append(preToolUse, n)
		}
	}

	if len(preToolUse) > 0 {
		var best *event.HookSpecificOutput
		highest := -1
		for _, n := range preToolUse {
			out := n.Response.HookSpecificOutput
			p := event.Priority(out.PermissionDecision)
			if p >= highest {
				highest = p
				best = out
			}
		}
		return best, nil
	}

	if len(named) > 1 {
		return nil, fmt.Errorf("merge: %d tasks produced a non-PreToolUse hookSpecificOutput, only one is allowed (%s, %s, ...)",
			len(named), named[0].TaskName, named[1].TaskName)
	}
	return named[0].Response.HookSpecificOutput, nil
}
