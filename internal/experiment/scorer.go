package experiment

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"specprobe/internal/policy"
	"specprobe/internal/symbolic"
	"specprobe/internal/synth"
)

var tokenPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z\-']+`)

// Scorer measures rule and region coverage of a prompt set. Symbolic
// prompts score through their recorded satisfaction sets; free-text
// agent prompts are matched best effort by keyword overlap. When an
// engine is attached, the covered regions are derived through the
// Datalog coverage rules as a cross-check on the direct tally.
type Scorer struct {
	logger *zap.Logger
	engine *symbolic.Engine
}

// NewScorer builds a scorer. A nil engine skips the Datalog cross-check.
func NewScorer(engine *symbolic.Engine, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{logger: logger, engine: engine}
}

type region struct {
	ruleID    string
	predicate string
}

// ScoreSymbolic scores synthesized prompts through their recorded
// satisfaction sets, so coverage is exact. The result is traceable iff
// every prompt carries both a target rule id and a non-empty satisfies
// set; the synthesizer guarantees this, the scorer verifies it.
func (s *Scorer) ScoreSymbolic(prompts []synth.Prompt, rules []policy.Rule, compiled []symbolic.Rule) (Metrics, error) {
	regions := make(map[region]bool)
	covered := make(map[string]bool)
	traceable := true
	for _, p := range prompts {
		if p.TargetRuleID == "" || len(p.Satisfies) == 0 {
			traceable = false
			continue
		}
		for _, pred := range p.Satisfies {
			regions[region{p.TargetRuleID, pred}] = true
		}
		covered[p.TargetRuleID] = true
	}

	if s.engine != nil {
		if err := s.crossCheck(prompts, rules, compiled, len(regions)); err != nil {
			return Metrics{}, err
		}
	}

	return s.metrics(len(prompts), covered, regions, compiled, traceable), nil
}

// ScoreAgent scores free-generated prompt texts. A prompt hits a rule
// when at least one rule keyword appears as a token in the text. The hit
// covers every predicate whose source keyword appears, or the rule's
// first predicate when none of the predicate keywords match directly.
func (s *Scorer) ScoreAgent(texts []string, rules []policy.Rule, compiled []symbolic.Rule) (Metrics, error) {
	if len(rules) != len(compiled) {
		return Metrics{}, fmt.Errorf("rule sets differ in length: %d vs %d", len(rules), len(compiled))
	}

	regions := make(map[region]bool)
	covered := make(map[string]bool)
	for _, text := range texts {
		tokens := tokenSet(text)
		for i, rule := range rules {
			if !keywordHit(tokens, rule.Keywords) {
				continue
			}
			covered[rule.ID] = true
			hit := false
			for j, kw := range rule.Keywords {
				if j >= len(compiled[i].Predicates) {
					break
				}
				if tokens[strings.ToLower(kw)] {
					regions[region{rule.ID, compiled[i].Predicates[j]}] = true
					hit = true
				}
			}
			if !hit && len(compiled[i].Predicates) > 0 {
				regions[region{rule.ID, compiled[i].Predicates[0]}] = true
			}
		}
	}

	return s.metrics(len(texts), covered, regions, compiled, false), nil
}

// crossCheck replays the hits through the Datalog engine and compares
// the derived region count to the direct tally.
func (s *Scorer) crossCheck(prompts []synth.Prompt, rules []policy.Rule, compiled []symbolic.Rule, want int) error {
	s.engine.Clear()
	if err := s.engine.LoadRules(rules, compiled); err != nil {
		return fmt.Errorf("load rules for coverage check: %w", err)
	}
	for _, p := range prompts {
		if p.TargetRuleID == "" {
			continue
		}
		for _, pred := range p.Satisfies {
			if err := s.engine.RecordHit(p.ID, p.TargetRuleID, pred); err != nil {
				return fmt.Errorf("record hit %s: %w", p.ID, err)
			}
		}
	}
	if err := s.engine.Eval(); err != nil {
		return fmt.Errorf("evaluate coverage program: %w", err)
	}
	derived, err := s.engine.CoveredRegions()
	if err != nil {
		return fmt.Errorf("read derived regions: %w", err)
	}
	if len(derived) != want {
		return fmt.Errorf("derived coverage disagrees: engine %d, direct %d", len(derived), want)
	}
	s.logger.Debug("coverage cross-check passed", zap.Int("regions", want))
	return nil
}

func (s *Scorer) metrics(promptCount int, covered map[string]bool, regions map[region]bool, compiled []symbolic.Rule, traceable bool) Metrics {
	total := 0
	for _, c := range compiled {
		total += len(c.Predicates)
	}
	pct := 0.0
	if total > 0 {
		pct = round1(float64(len(regions)) / float64(total) * 100)
	}
	return Metrics{
		PromptsGenerated: promptCount,
		RulesCovered:     len(covered),
		RegionsCovered:   len(regions),
		Traceable:        traceable,
		CoveragePercent:  pct,
	}
}

func tokenSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text), -1) {
		set[tok] = true
	}
	return set
}

func keywordHit(tokens map[string]bool, keywords []string) bool {
	for _, kw := range keywords {
		if tokens[strings.ToLower(kw)] {
			return true
		}
	}
	return false
}
