package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/taskorchestrator/llm"
)

const decisionSystemPrompt = "You are a thin orchestrator lead. Return strict JSON only. " +
	"No markdown. No prose. Keep reason_short concise. " +
	"Decisions should be routing/state updates only."

// LLMProvider asks an llm.Client for a round decision, truncating the
// marshaled snapshot JSON to maxInputChars characters and parsing the
// model's response as strict decision JSON (tolerating a markdown code
// fence and leading/trailing prose around the JSON object).
type LLMProvider struct {
	client       *llm.Client
	capability   string
	maxInputChars int
	name         string
}

// NewLLMProvider builds an LLMProvider that requests completions under
// capability (e.g. "planning", "fast") from client.
func NewLLMProvider(client *llm.Client, capability string, maxInputChars int) *LLMProvider {
	if maxInputChars <= 0 {
		maxInputChars = 16000
	}
	return &LLMProvider{client: client, capability: capability, maxInputChars: maxInputChars, name: "llm"}
}

func (p *LLMProvider) Name() string { return p.name }

func (p *LLMProvider) Run(ctx context.Context, snapshot Snapshot) (Decision, error) {
	compact, err := json.Marshal(snapshot)
	if err != nil {
		return Decision{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	body := compact
	if len(body) > p.maxInputChars {
		body = body[:p.maxInputChars]
	}

	resp, err := p.client.Complete(ctx, llm.Request{
		Capability: p.capability,
		Messages: []llm.Message{
			{Role: "system", Content: decisionSystemPrompt},
			{Role: "user", Content: fmt.Sprintf("Return decision_json only. Follow the required keys exactly. Do not add explanations.\nSnapshot:\n%s", body)},
		},
	})
	if err != nil {
		return Decision{}, fmt.Errorf("llm provider: %w", err)
	}

	raw := stripMarkdownFence(resp.Content)
	var decoded Decision
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		candidate, ok := extractJSONObject(raw)
		if !ok {
			return Decision{}, &ValidationError{Reason: fmt.Sprintf("llm provider returned invalid json: %v", err)}
		}
		if err := json.Unmarshal([]byte(candidate), &decoded); err != nil {
			return Decision{}, &ValidationError{Reason: fmt.Sprintf("llm provider returned invalid json: %v", err)}
		}
	}
	decoded.Meta.Provider = p.name
	decoded.Meta.Model = resp.Model
	return Validate(decoded)
}

func stripMarkdownFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") && strings.HasSuffix(trimmed, "```") {
		lines := strings.Split(trimmed, "\n")
		if len(lines) >= 3 {
			return strings.TrimSpace(strings.Join(lines[1:len(lines)-1], "\n"))
		}
	}
	return trimmed
}

func extractJSONObject(text string) (string, bool) {
	first := strings.Index(text, "{")
	last := strings.LastIndex(text, "}")
	if first == -1 || last == -1 || last <= first {
		return "", false
	}
	return text[first : last+1], true
}
