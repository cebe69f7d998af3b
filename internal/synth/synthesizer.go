package synth

import (
	"fmt"
	"strings"

	"specprobe/internal/policy"
	"specprobe/internal/symbolic"
)

// Synthesizer renders prompts from (rule, frame, strategy) triples. The
// zero value is ready to use; it holds no mutable state and is safe for
// concurrent use.
type Synthesizer struct{}

// NewSynthesizer returns a Synthesizer.
func NewSynthesizer() *Synthesizer { return &Synthesizer{} }

// candidate is one scheduled (rule, frame) pair; the strategy is assigned
// from the catalog by global position.
type candidate struct {
	rule  policy.Rule
	sym   symbolic.Rule
	frame string
}

// Synthesize renders exactly totalPrompts prompts. Scheduling is
// round-robin: each pass visits every rule that still has an unvisited
// admissible frame, so every rule and every admissible frame is covered
// before any (rule, frame) pair repeats, even when rules have narrowed
// frame sets of different sizes. Once the pair grid is exhausted it
// cycles from the start. Strategies cycle through the catalog by global
// prompt index.
func (s *Synthesizer) Synthesize(rules []policy.Rule, compiled []symbolic.Rule, totalPrompts int) ([]Prompt, error) {
	if len(rules) == 0 || len(compiled) == 0 {
		return nil, ErrNoRules
	}
	if len(rules) != len(compiled) {
		return nil, fmt.Errorf("rule count mismatch: %d policy rules, %d symbolic rules", len(rules), len(compiled))
	}
	if totalPrompts < len(rules) {
		return nil, fmt.Errorf("%w: budget %d, rules %d", ErrInsufficientBudget, totalPrompts, len(rules))
	}

	var pairs []candidate
	for pass := 0; ; pass++ {
		added := false
		for i := range rules {
			frames := compiled[i].RequestFrames()
			if pass < len(frames) {
				pairs = append(pairs, candidate{
					rule:  rules[i],
					sym:   compiled[i],
					frame: frames[pass],
				})
				added = true
			}
		}
		if !added {
			break
		}
	}

	strategies := Strategies()
	prompts := make([]Prompt, 0, totalPrompts)
	for len(prompts) < totalPrompts {
		cand := pairs[len(prompts)%len(pairs)]
		strategy := strategies[len(prompts)%len(strategies)]
		prompts = append(prompts, s.render(cand, strategy, len(prompts)+1))
	}
	return prompts, nil
}

func (s *Synthesizer) render(cand candidate, strategy string, seq int) Prompt {
	tmpl := templateFor(cand.rule.Category, cand.frame, strategy)
	text := renderTemplate(tmpl, cand.rule.Category,
		primaryTopic(cand.rule), secondaryTopic(cand.rule))

	satisfies := make([]string, len(cand.sym.Predicates))
	copy(satisfies, cand.sym.Predicates)

	return Prompt{
		ID:           fmt.Sprintf("P%d", seq),
		Text:         text,
		TargetRuleID: cand.rule.ID,
		Strategy:     strategy,
		RequestFrame: cand.frame,
		Satisfies:    satisfies,
	}
}

// primaryTopic picks the phrase substituted for {topic}.
func primaryTopic(rule policy.Rule) string {
	if len(rule.Keywords) > 0 {
		return rule.Keywords[0]
	}
	return "that behavior"
}

// secondaryTopic picks the phrase substituted for {secondary}, falling
// back to the clause tail when the rule has a single keyword.
func secondaryTopic(rule policy.Rule) string {
	if len(rule.Keywords) >= 2 {
		return rule.Keywords[1]
	}
	words := strings.Fields(rule.Text)
	if len(words) >= 4 {
		return strings.ToLower(strings.Join(words[len(words)-4:], " "))
	}
	return strings.ToLower(rule.Text)
}
