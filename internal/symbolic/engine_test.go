package symbolic

import (
	"testing"

	"specprobe/internal/policy"
)

func testRules() ([]policy.Rule, []Rule) {
	rules := []policy.Rule{
		{ID: "R1", Text: "The assistant must not describe self-harm methods.",
			Category: policy.CategorySafety, Keywords: []string{"self-harm", "methods"}},
		{ID: "R2", Text: "The assistant must not reveal personal data.",
			Category: policy.CategoryPrivacy, Keywords: []string{"personal", "data"}},
	}
	return rules, CompileAll(rules)
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if engine == nil {
		t.Fatal("NewEngine() returned nil engine")
	}
}

func TestEngineLoadRules(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	rules, compiled := testRules()
	if err := engine.LoadRules(rules, compiled); err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
}

func TestEngineLoadRulesMismatch(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	rules, compiled := testRules()
	if err := engine.LoadRules(rules, compiled[:1]); err == nil {
		t.Fatal("LoadRules() with mismatched slices did not fail")
	}
}

func TestEngineDerivedCoverage(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	rules, compiled := testRules()
	if err := engine.LoadRules(rules, compiled); err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}

	if err := engine.RecordHit("P1", "R1", compiled[0].Predicates[0]); err != nil {
		t.Fatalf("RecordHit() error = %v", err)
	}
	if err := engine.RecordHit("P2", "R1", compiled[0].Predicates[0]); err != nil {
		t.Fatalf("RecordHit() error = %v", err)
	}
	if err := engine.Eval(); err != nil {
		t.Fatalf("Eval() error = %v", err)
	}

	regions, err := engine.CoveredRegions()
	if err != nil {
		t.Fatalf("CoveredRegions() error = %v", err)
	}
	// Two prompts into the same region still count once.
	if len(regions) != 1 {
		t.Fatalf("regions = %v, want exactly one distinct region", regions)
	}
	if regions[0][0] != "R1" || regions[0][1] != compiled[0].Predicates[0] {
		t.Errorf("region = %v, want [R1 %s]", regions[0], compiled[0].Predicates[0])
	}

	covered, err := engine.CoveredRules()
	if err != nil {
		t.Fatalf("CoveredRules() error = %v", err)
	}
	if len(covered) != 1 || covered[0] != "R1" {
		t.Errorf("covered rules = %v, want [R1]", covered)
	}
}

func TestEngineUndeclaredPredicate(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	if err := engine.addFact("nonsense", "a", "b"); err == nil {
		t.Fatal("addFact() with an undeclared predicate did not fail")
	}
}

func TestEngineClear(t *testing.T) {
	engine, err := NewEngine()
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	rules, compiled := testRules()
	if err := engine.LoadRules(rules, compiled); err != nil {
		t.Fatalf("LoadRules() error = %v", err)
	}
	engine.Clear()

	regions, err := engine.CoveredRegions()
	if err != nil {
		t.Fatalf("CoveredRegions() error = %v", err)
	}
	if len(regions) != 0 {
		t.Errorf("regions after Clear() = %v, want empty", regions)
	}
}
