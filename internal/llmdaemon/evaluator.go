package llmdaemon

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/victorarias/claude-agent-sdk-go/sdk"
	"github.com/victorarias/claude-agent-sdk-go/types"
)

// DefaultModel is used when RUNNER_LLM_MODEL is unset (§6's "Environment
// variables").
const DefaultModel = "claude-opus-4-5-20251101"

// systemPrompt narrows the evaluator's scope to exactly the cases the
// heuristic matchers in internal/matcher leave Uncertain: a Bash command
// with no whitelist or blacklist rule match.
const systemPrompt = `You are a security evaluator for a policy-enforcement hook runner. Your job is to decide if a Bash command that no configured rule matched is safe to auto-approve or should require user confirmation.

RESPOND WITH ONLY ONE WORD: "ALLOW" or "ASK"

# Decision Guidelines

1. When in doubt, ASK
2. Read-only inspection, search, and development commands (git status/diff/log, build/test/run, package managers): ALLOW
3. Destructive cloud/infra writes (kubectl apply/delete, cloud CLI create/delete/update): ASK unless clearly safe
4. git push --force / branch deletion on main or master: ASK
5. rm -rf targeting home, system paths, or paths outside the project: ASK
6. Piping a remote fetch into a shell (curl/wget | sh): ASK
7. sudo, dd, or other commands that can affect the whole system: ASK
8. Deleting ephemeral resources (pods, containers, temp files): ALLOW
9. Deleting persistent resources (deployments, services, databases): ASK`

// Evaluator evaluates a Bash command the heuristic matchers could not
// classify.
type Evaluator interface {
	Evaluate(ctx context.Context, req EvalRequest) (EvalResponse, error)
	Close() error
}

// ClaudeEvaluator wraps the Claude Agent SDK for fallback evaluation.
type ClaudeEvaluator struct {
	model string
}

// NewClaudeEvaluator creates an evaluator bound to model.
func NewClaudeEvaluator(model string) *ClaudeEvaluator {
	return &ClaudeEvaluator{model: model}
}

func (e *ClaudeEvaluator) Evaluate(ctx context.Context, req EvalRequest) (EvalResponse, error) {
	prompt := FormatPrompt(req.ToolName, req.ToolInput, req.WorkDir)

	model := e.model
	if req.Model != "" {
		model = req.Model
	}

	messages, err := sdk.RunQuery(ctx, prompt,
		types.WithModel(model),
		types.WithMaxTurns(1),
		types.WithSystemPrompt(systemPrompt),
	)
	if err != nil {
		return EvalResponse{Decision: "ASK", Reason: "SDK error: " + err.Error()}, nil
	}

	var responseText string
	for _, msg := range messages {
		if m, ok := msg.(*types.AssistantMessage); ok {
			responseText = m.Text()
			break
		}
	}
	if responseText == "" {
		return EvalResponse{Decision: "ASK", Reason: "empty response"}, nil
	}

	return EvalResponse{Decision: ParseDecision(responseText), Reason: strings.TrimSpace(responseText)}, nil
}

func (e *ClaudeEvaluator) Close() error {
	return nil
}

// FormatPrompt builds the fallback evaluation prompt.
func FormatPrompt(toolName, toolInput, workDir string) string {
	return fmt.Sprintf("Tool: %s\nInput: %s\nWorking directory: %s\n\nRespond with ALLOW or ASK.", toolName, toolInput, workDir)
}

// ParseDecision extracts ALLOW or ASK from a model response, defaulting to
// the conservative ASK when the response is unclear (§4.9/§7's
// fail-conservative stance for collaborator failures).
func ParseDecision(responseText string) string {
	upper := strings.ToUpper(strings.TrimSpace(responseText))
	if strings.Contains(upper, "ALLOW") {
		return "ALLOW"
	}
	return "ASK"
}

// Model resolves the fallback model: the task config's explicit model wins,
// then the RUNNER_LLM_MODEL environment variable, then DefaultModel.
func Model(configured string) string {
	if configured != "" {
		return configured
	}
	if model := os.Getenv("RUNNER_LLM_MODEL"); model != "" {
		return model
	}
	return DefaultModel
}
