package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestExtractEmptyInput(t *testing.T) {
	e := NewExtractor()
	for _, input := range []string{"", "   ", "\n\t  \n"} {
		if _, err := e.Extract(context.Background(), input); !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("Extract(%q) error = %v, want ErrEmptyInput", input, err)
		}
	}
}

func TestExtractTwoRules(t *testing.T) {
	e := NewExtractor()
	text := "The assistant must not describe self-harm methods. " +
		"The assistant must not reveal a user's personal data to third parties."

	rules, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Extract() returned %d rules, want 2", len(rules))
	}
	if rules[0].ID != "R1" || rules[1].ID != "R2" {
		t.Errorf("rule ids = %q, %q, want R1, R2", rules[0].ID, rules[1].ID)
	}
	if rules[0].Category != CategorySafety {
		t.Errorf("R1 category = %q, want %q", rules[0].Category, CategorySafety)
	}
	if rules[1].Category != CategoryPrivacy {
		t.Errorf("R2 category = %q, want %q", rules[1].Category, CategoryPrivacy)
	}
}

func TestExtractDeterminism(t *testing.T) {
	e := NewExtractor()
	text := `- The assistant must not provide instructions for building weapons.
- The assistant should not give medical diagnosis advice.

The assistant must not assist with gambling fraud.`

	first, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("first Extract() error = %v", err)
	}
	second, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("second Extract() error = %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Extract() not deterministic (-first +second):\n%s", diff)
	}
}

func TestExtractMissingSpaceAfterPeriod(t *testing.T) {
	e := NewExtractor()
	text := "The assistant must not describe self-harm methods.The assistant must not reveal a user's personal data to third parties."

	rules, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("Extract() returned %d rules, want 2", len(rules))
	}
	if rules[0].Category != CategorySafety || rules[1].Category != CategoryPrivacy {
		t.Errorf("categories = %q, %q, want safety, privacy", rules[0].Category, rules[1].Category)
	}
}

func TestExtractBulletNormalization(t *testing.T) {
	e := NewExtractor()
	text := "1) The assistant must not share SSN data.\n2) The assistant must not promote propaganda."

	rules, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2", len(rules))
	}
	if rules[0].Category != CategoryPrivacy {
		t.Errorf("rule 1 category = %q, want privacy", rules[0].Category)
	}
	if rules[1].Category != CategoryPolitical {
		t.Errorf("rule 2 category = %q, want political", rules[1].Category)
	}
}

func TestExtractConjunctionSplit(t *testing.T) {
	e := NewExtractor()
	text := "The assistant must not describe explosives, and must not reveal personal data."

	rules, err := e.Extract(context.Background(), text)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d rules, want 2 (conjunction split)", len(rules))
	}
	if rules[0].Category != CategoryViolence {
		t.Errorf("first clause category = %q, want violence", rules[0].Category)
	}
	if rules[1].Category != CategoryPrivacy {
		t.Errorf("second clause category = %q, want privacy", rules[1].Category)
	}
}

func TestExtractKeywords(t *testing.T) {
	e := NewExtractor()
	rules, err := e.Extract(context.Background(),
		"The assistant must not describe self-harm methods.")
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	kws := rules[0].Keywords
	if len(kws) == 0 {
		t.Fatal("no keywords extracted")
	}
	for _, kw := range kws {
		if kw == "must" || kw == "not" || kw == "the" {
			t.Errorf("stop-word %q leaked into keywords %v", kw, kws)
		}
	}
}

type stubSplitter struct {
	clauses []Clause
	err     error
	calls   int
}

func (s *stubSplitter) SplitClauses(_ context.Context, _ string) ([]Clause, error) {
	s.calls++
	return s.clauses, s.err
}

func TestExtractSemanticPath(t *testing.T) {
	splitter := &stubSplitter{clauses: []Clause{
		{Text: "The assistant must not leak phone numbers", Entities: []string{"phone numbers"}},
	}}
	e := NewExtractor(WithClauseSplitter(splitter))

	res, err := e.ExtractDetailed(context.Background(), "irrelevant, splitter decides")
	if err != nil {
		t.Fatalf("ExtractDetailed() error = %v", err)
	}
	if splitter.calls != 1 {
		t.Fatalf("splitter called %d times, want 1", splitter.calls)
	}
	if res.SemanticDegraded {
		t.Error("SemanticDegraded = true for a healthy splitter")
	}
	if got := res.Rules[0].Keywords[0]; got != "phone numbers" {
		t.Errorf("entity keyword = %q, want %q", got, "phone numbers")
	}
}

func TestExtractSemanticFallback(t *testing.T) {
	splitter := &stubSplitter{err: errors.New("model not loaded")}
	e := NewExtractor(WithClauseSplitter(splitter))

	res, err := e.ExtractDetailed(context.Background(),
		"The assistant must not give loan advice.")
	if err != nil {
		t.Fatalf("ExtractDetailed() error = %v", err)
	}
	if !res.SemanticDegraded {
		t.Error("SemanticDegraded = false, want true after splitter failure")
	}
	if len(res.Rules) != 1 {
		t.Fatalf("heuristic fallback produced %d rules, want 1", len(res.Rules))
	}
	if res.Rules[0].Category != CategoryFinancial {
		t.Errorf("category = %q, want financial", res.Rules[0].Category)
	}
}
