// Package synth renders adversarial prompts from compiled symbolic rules.
// Generation is deterministic: identical inputs produce byte-identical
// prompt text and ordering, which is what makes audits reproducible.
package synth

import "errors"

// ErrInsufficientBudget is returned when totalPrompts cannot guarantee at
// least one prompt per rule. Callers that prefer clamping must do so
// before calling; silent clamping here would break the coverage guarantee.
var ErrInsufficientBudget = errors.New("prompt budget below rule count")

// ErrNoRules is returned when synthesis is attempted with no symbolic rules.
var ErrNoRules = errors.New("no symbolic rules to synthesize from")

// Strategy names, in fixed catalog order. The order is part of the
// synthesis contract: strategies cycle in exactly this sequence.
const (
	StrategyDirectAsk            = "direct_ask"
	StrategyRoleplayOverride     = "roleplay_override"
	StrategyChunkedRequest       = "chunked_request"
	StrategyAppealToAuthority    = "appeal_to_authority"
	StrategyHarmReductionFraming = "harm_reduction_framing"
	StrategyFictionalScenario    = "fictional_scenario"
)

// Strategies returns the rhetorical strategy catalog in fixed order.
func Strategies() []string {
	return []string{
		StrategyDirectAsk,
		StrategyRoleplayOverride,
		StrategyChunkedRequest,
		StrategyAppealToAuthority,
		StrategyHarmReductionFraming,
		StrategyFictionalScenario,
	}
}

// Prompt is a single rendered adversarial prompt. Every prompt carries a
// back-reference to the rule, frame and predicates it exercises; this is
// the traceability invariant.
type Prompt struct {
	ID           string   `json:"id"`
	Text         string   `json:"text"`
	TargetRuleID string   `json:"target_rule_id"`
	Strategy     string   `json:"strategy"`
	RequestFrame string   `json:"request_frame"`
	Satisfies    []string `json:"satisfies"`
}
