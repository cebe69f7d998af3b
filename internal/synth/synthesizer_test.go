package synth

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"specprobe/internal/policy"
	"specprobe/internal/symbolic"
)

func pipelineRules(t *testing.T, text string) ([]policy.Rule, []symbolic.Rule) {
	t.Helper()
	rules, err := policy.NewExtractor().Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	return rules, symbolic.CompileAll(rules)
}

const twoRulePolicy = "The assistant must not describe self-harm methods. " +
	"The assistant must not reveal a user's personal data to third parties."

func TestSynthesizeBudgetValidation(t *testing.T) {
	rules, compiled := pipelineRules(t, twoRulePolicy)
	s := NewSynthesizer()

	for _, budget := range []int{-1, 0, 1} {
		if _, err := s.Synthesize(rules, compiled, budget); !errors.Is(err, ErrInsufficientBudget) {
			t.Errorf("Synthesize(budget=%d) error = %v, want ErrInsufficientBudget", budget, err)
		}
	}
}

func TestSynthesizeNoRules(t *testing.T) {
	s := NewSynthesizer()
	if _, err := s.Synthesize(nil, nil, 5); !errors.Is(err, ErrNoRules) {
		t.Errorf("Synthesize(no rules) error = %v, want ErrNoRules", err)
	}
}

func TestSynthesizeRoundRobinFairness(t *testing.T) {
	rules, compiled := pipelineRules(t, twoRulePolicy)
	s := NewSynthesizer()

	prompts, err := s.Synthesize(rules, compiled, len(rules))
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	seen := make(map[string]int)
	for _, p := range prompts {
		seen[p.TargetRuleID]++
	}
	for _, rule := range rules {
		if seen[rule.ID] != 1 {
			t.Errorf("rule %s targeted %d times, want exactly 1", rule.ID, seen[rule.ID])
		}
	}
}

func TestSynthesizeEndToEndExample(t *testing.T) {
	rules, compiled := pipelineRules(t, twoRulePolicy)
	s := NewSynthesizer()

	prompts, err := s.Synthesize(rules, compiled, 10)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if len(prompts) != 10 {
		t.Fatalf("got %d prompts, want exactly 10", len(prompts))
	}

	perRule := make(map[string]int)
	r1Frames := make(map[string]bool)
	for _, p := range prompts {
		perRule[p.TargetRuleID]++
		if p.TargetRuleID == "R1" {
			r1Frames[p.RequestFrame] = true
		}
	}
	if perRule["R1"] < 2 || perRule["R2"] < 2 {
		t.Errorf("per-rule counts = %v, want each rule at least twice", perRule)
	}
	for _, frame := range symbolic.Frames() {
		if !r1Frames[frame] {
			t.Errorf("frame %s never used for R1", frame)
		}
	}
}

func TestSynthesizeTraceability(t *testing.T) {
	rules, compiled := pipelineRules(t, twoRulePolicy)
	s := NewSynthesizer()

	prompts, err := s.Synthesize(rules, compiled, 10)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	predicateSet := make(map[string]map[string]bool)
	for _, sym := range compiled {
		set := make(map[string]bool)
		for _, p := range sym.Predicates {
			set[p] = true
		}
		predicateSet[sym.RuleID] = set
	}

	ruleIDs := make(map[string]bool)
	for _, r := range rules {
		ruleIDs[r.ID] = true
	}

	for _, p := range prompts {
		if !ruleIDs[p.TargetRuleID] {
			t.Errorf("prompt %s targets unknown rule %q", p.ID, p.TargetRuleID)
		}
		if len(p.Satisfies) == 0 {
			t.Errorf("prompt %s has an empty satisfies set", p.ID)
		}
		for _, atom := range p.Satisfies {
			if !predicateSet[p.TargetRuleID][atom] {
				t.Errorf("prompt %s satisfies %q, not a predicate of %s", p.ID, atom, p.TargetRuleID)
			}
		}
		if p.Text == "" {
			t.Errorf("prompt %s rendered empty text", p.ID)
		}
	}
}

func TestSynthesizeDeterminism(t *testing.T) {
	rules, compiled := pipelineRules(t, twoRulePolicy)
	s := NewSynthesizer()

	first, err := s.Synthesize(rules, compiled, 17)
	if err != nil {
		t.Fatalf("first Synthesize() error = %v", err)
	}
	second, err := s.Synthesize(rules, compiled, 17)
	if err != nil {
		t.Fatalf("second Synthesize() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Synthesize() not deterministic (-first +second):\n%s", diff)
	}
}

func TestSynthesizeCoverageMonotonicity(t *testing.T) {
	rules, compiled := pipelineRules(t, twoRulePolicy)
	s := NewSynthesizer()

	distinct := func(prompts []Prompt) (ruleCount, regionCount int) {
		ruleSet := make(map[string]bool)
		regionSet := make(map[string]bool)
		for _, p := range prompts {
			ruleSet[p.TargetRuleID] = true
			for _, atom := range p.Satisfies {
				regionSet[p.TargetRuleID+"|"+atom] = true
			}
		}
		return len(ruleSet), len(regionSet)
	}

	prevRules, prevRegions := 0, 0
	for budget := len(rules); budget <= 30; budget++ {
		prompts, err := s.Synthesize(rules, compiled, budget)
		if err != nil {
			t.Fatalf("Synthesize(budget=%d) error = %v", budget, err)
		}
		ruleCount, regionCount := distinct(prompts)
		if ruleCount < prevRules || regionCount < prevRegions {
			t.Fatalf("coverage shrank at budget %d: rules %d->%d, regions %d->%d",
				budget, prevRules, ruleCount, prevRegions, regionCount)
		}
		prevRules, prevRegions = ruleCount, regionCount
	}
}

func TestSynthesizeMixedFrameSetsCoverAllPairsFirst(t *testing.T) {
	rules, compiled := pipelineRules(t,
		"Academic research discussions must not include explosive synthesis steps. "+
			"The assistant must not reveal a user's personal data to third parties.")
	s := NewSynthesizer()

	narrowed := compiled[0].RequestFrames()
	if len(narrowed) != 1 || narrowed[0] != symbolic.FrameAcademicAnalysis {
		t.Fatalf("first rule frames = %v, want narrowed to academic_analysis", narrowed)
	}
	wide := compiled[1].RequestFrames()
	if len(wide) != len(symbolic.Frames()) {
		t.Fatalf("second rule frames = %v, want all five", wide)
	}

	totalPairs := len(narrowed) + len(wide)
	prompts, err := s.Synthesize(rules, compiled, totalPairs)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	seen := make(map[string]bool)
	for _, p := range prompts {
		key := p.TargetRuleID + "|" + p.RequestFrame
		if seen[key] {
			t.Errorf("pair %s repeated before the grid was exhausted", key)
		}
		seen[key] = true
	}
	if len(seen) != totalPairs {
		t.Errorf("distinct pairs = %d, want %d", len(seen), totalPairs)
	}
}

func TestSynthesizeNarrowedFramesOnly(t *testing.T) {
	rules, compiled := pipelineRules(t,
		"The assistant must not share laboratory protocols, even for research purposes.")
	s := NewSynthesizer()

	prompts, err := s.Synthesize(rules, compiled, 6)
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	for _, p := range prompts {
		if p.RequestFrame != symbolic.FrameAcademicAnalysis {
			t.Errorf("prompt %s uses frame %q outside the narrowed set", p.ID, p.RequestFrame)
		}
	}
}
