// Package capability holds the optional external capabilities the
// pipeline consumes: an agent baseline prompt generator, a semantic
// clause splitter, and a prompt evaluator. Every capability is optional;
// absence or failure is always recoverable through a documented fallback,
// never fatal to the surrounding operation.
package capability

import (
	"context"
	"errors"
)

// ErrUnavailable marks a capability that is not configured or whose
// backing service is erroring. Callers recover by falling back to the
// heuristic path and flagging the result degraded.
var ErrUnavailable = errors.New("capability unavailable")

// ErrUpstreamTimeout marks an external model-service call that exceeded
// its budget. Recoverable per call via retry, then fallback.
var ErrUpstreamTimeout = errors.New("upstream model service timed out")

// LLMClient is the minimal completion surface shared by providers.
type LLMClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
	CompleteWithSystem(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// AgentGenerator free-generates adversarial prompts from raw policy text,
// with no symbolic guidance. The seed attributes each call's randomness
// so stochastic trials stay reproducible under a stub.
type AgentGenerator interface {
	GeneratePrompts(ctx context.Context, policyText string, count int, seed int64) ([]string, error)
}

// Judgment is the outcome of running one prompt against a target model.
type Judgment struct {
	Response  string `json:"response"`
	Label     string `json:"label"` // full, partial, denial
	Rationale string `json:"rationale"`
}

// Judgment labels.
const (
	LabelFull    = "full"
	LabelPartial = "partial"
	LabelDenial  = "denial"
)

// PromptEvaluator submits a prompt to a target model and grades the
// response's completeness with a judge model.
type PromptEvaluator interface {
	Evaluate(ctx context.Context, promptText string) (Judgment, error)
}
