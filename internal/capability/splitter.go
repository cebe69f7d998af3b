package capability

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"specprobe/internal/policy"
)

// LLMClauseSplitter asks an upstream model to segment a policy into
// normative clauses with extracted entities. It satisfies
// policy.ClauseSplitter; extraction falls back to the heuristic path
// when any call or parse fails.
type LLMClauseSplitter struct {
	client LLMClient
}

// NewLLMClauseSplitter wraps an LLMClient as a clause splitter.
func NewLLMClauseSplitter(client LLMClient) *LLMClauseSplitter {
	return &LLMClauseSplitter{client: client}
}

const splitterSystemPrompt = `You segment policy documents into individual normative clauses. Reply with a JSON array only, where each element is {"text": "<one self-contained clause>", "entities": ["<key noun phrases>"]}. Do not merge distinct obligations into one clause.`

// SplitClauses segments the policy text via the upstream model.
func (s *LLMClauseSplitter) SplitClauses(ctx context.Context, text string) ([]policy.Clause, error) {
	raw, err := s.client.CompleteWithSystem(ctx, splitterSystemPrompt, text)
	if err != nil {
		return nil, err
	}

	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("splitter response contained no JSON array")
	}

	var parsed []struct {
		Text     string   `json:"text"`
		Entities []string `json:"entities"`
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse splitter response: %w", err)
	}

	clauses := make([]policy.Clause, 0, len(parsed))
	for _, item := range parsed {
		t := strings.TrimSpace(item.Text)
		if t == "" {
			continue
		}
		clauses = append(clauses, policy.Clause{Text: t, Entities: item.Entities})
	}
	if len(clauses) == 0 {
		return nil, fmt.Errorf("splitter returned no clauses")
	}
	return clauses, nil
}
