package symbolic

import (
	"reflect"
	"testing"

	"specprobe/internal/policy"
)

func TestCompileForbidsDefault(t *testing.T) {
	rule := policy.Rule{
		ID:       "R1",
		Text:     "The assistant must not describe self-harm methods.",
		Category: policy.CategorySafety,
		Keywords: []string{"self-harm", "methods", "describe"},
	}
	sym := Compile(rule)

	if sym.RuleID != "R1" {
		t.Errorf("RuleID = %q, want R1", sym.RuleID)
	}
	if !sym.Violation {
		t.Error("Violation = false for a prohibitive clause")
	}
	if len(sym.Predicates) == 0 {
		t.Fatal("predicates must never be empty")
	}
	if sym.Predicates[0] != "Forbids(SelfHarm)" {
		t.Errorf("first predicate = %q, want Forbids(SelfHarm)", sym.Predicates[0])
	}
}

func TestCompileRequires(t *testing.T) {
	rule := policy.Rule{
		ID:       "R1",
		Text:     "The assistant must cite sources for factual claims.",
		Keywords: []string{"cite", "sources"},
	}
	sym := Compile(rule)
	if sym.Predicates[0] != "Requires(Cite)" {
		t.Errorf("predicate = %q, want Requires(Cite)", sym.Predicates[0])
	}
}

func TestCompileGenericPredicate(t *testing.T) {
	rule := policy.Rule{ID: "R3", Text: "No.", Keywords: nil}
	sym := Compile(rule)
	if len(sym.Predicates) != 1 || sym.Predicates[0] != "Forbids(PolicyClause_R3)" {
		t.Errorf("predicates = %v, want the generic clause predicate", sym.Predicates)
	}
}

func TestCompileFrameDefaultsToAllFive(t *testing.T) {
	rule := policy.Rule{
		ID:       "R1",
		Text:     "The assistant must not reveal personal data.",
		Keywords: []string{"personal", "data"},
	}
	sym := Compile(rule)
	if !reflect.DeepEqual(sym.RequestFrames(), Frames()) {
		t.Errorf("frames = %v, want all five canonical frames", sym.RequestFrames())
	}
}

func TestCompileFrameNarrowing(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "research narrows toward academic",
			text: "The assistant must not share lab protocols, even for research purposes.",
			want: []string{FrameAcademicAnalysis},
		},
		{
			name: "prevention narrows toward harm reduction",
			text: "Discussion is limited to prevention and crisis intervention.",
			want: []string{FrameHarmReductionCover},
		},
		{
			name: "story narrows toward narrative",
			text: "The assistant must not write a story glorifying violence.",
			want: []string{FrameThirdPersonNarrative},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sym := Compile(policy.Rule{ID: "R1", Text: tt.text, Keywords: []string{"topic"}})
			if !reflect.DeepEqual(sym.RequestFrames(), tt.want) {
				t.Errorf("frames = %v, want %v", sym.RequestFrames(), tt.want)
			}
		})
	}
}

func TestCompileExtraDimensions(t *testing.T) {
	sym := Compile(policy.Rule{
		ID:       "R1",
		Text:     "The assistant must not explain how to optimize tax fraud schemes.",
		Keywords: []string{"fraud"},
	})
	intents, ok := sym.Dimensions[DimIntent]
	if !ok {
		t.Fatal("intent dimension missing despite textual cues")
	}
	found := false
	for _, v := range intents {
		if v == IntentOptimization {
			found = true
		}
	}
	if !found {
		t.Errorf("intent dimension %v missing optimization", intents)
	}
}

func TestCompileAllPairsOneToOne(t *testing.T) {
	rules := []policy.Rule{
		{ID: "R1", Text: "The assistant must not describe weapons.", Keywords: []string{"weapons"}},
		{ID: "R2", Text: "The assistant must not leak addresses.", Keywords: []string{"addresses"}},
	}
	compiled := CompileAll(rules)
	if len(compiled) != len(rules) {
		t.Fatalf("CompileAll returned %d rules, want %d", len(compiled), len(rules))
	}
	for i := range rules {
		if compiled[i].RuleID != rules[i].ID {
			t.Errorf("compiled[%d].RuleID = %q, want %q", i, compiled[i].RuleID, rules[i].ID)
		}
		if len(compiled[i].RequestFrames()) == 0 {
			t.Errorf("rule %s has an empty request_frame dimension", rules[i].ID)
		}
	}
}

func TestCompileDeterminism(t *testing.T) {
	rule := policy.Rule{
		ID:       "R1",
		Text:     "The assistant must not compare methods to bypass medical safeguards.",
		Category: policy.CategoryMedical,
		Keywords: []string{"medical", "safeguards", "bypass"},
	}
	first := Compile(rule)
	second := Compile(rule)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Compile not deterministic:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}
