package symbolic

import (
	"fmt"
	"strings"

	"specprobe/internal/policy"
)

// Modal language markers. Prohibitive markers win over obligatory ones,
// and ambiguity defaults to Forbids since restrictive policy dominates.
var (
	prohibitiveMarkers = []string{
		"must not", "mustn't", "may not", "is not allowed", "are not allowed",
		"cannot", "can't", "never", "prohibit", "forbid", "ban", "should not",
		"shall not", "do not", "don't",
	}
	obligatoryMarkers = []string{"must ", "shall ", "is required", "should ", "always "}
	allowanceMarkers  = []string{"allow", "permitted", "may provide"}
)

// frameCues narrow the request_frame dimension when the rule text names a
// specific setting. Cues are checked in canonical frame order so the
// resulting subset stays canonically ordered.
var frameCues = map[string][]string{
	FrameHarmReductionCover:   {"prevention", "harm reduction", "harm-reduction", "crisis", "hotline", "intervention"},
	FrameAcademicAnalysis:     {"academic", "research", "study", "paper", "peer reviewed", "laboratory"},
	FrameThirdPersonNarrative: {"story", "narrative", "fiction", "third person", "third-person"},
	FrameHypotheticalPlanning: {"hypothetical", "scenario", "imagine", "suppose", "what if"},
}

var intentCues = map[string][]string{
	IntentProcedural:   {"how to", "instruction", "steps", "procedure", "method", "plan", "blueprint", "walk me through"},
	IntentComparative:  {"compare", "versus", "vs.", "difference", "pros and cons", "better than", "worse than"},
	IntentOptimization: {"optimize", "maximize", "minimize", "most efficient", "best way", "streamline", "improve"},
}

var perspectiveCues = map[string][]string{
	PerspectiveThirdPerson:  {"third person", "third-person", "narrate", "describe them"},
	PerspectiveHypothetical: {"hypothetical", "imagine", "suppose", "scenario", "what if"},
	PerspectiveFirstPerson:  {"first person", "as myself"},
}

// Compile translates one policy rule into its symbolic form. Compilation
// is pure and deterministic; the result is never mutated afterwards.
func Compile(rule policy.Rule) Rule {
	lower := strings.ToLower(rule.Text)

	verb := "Forbids"
	if !containsAny(lower, prohibitiveMarkers) && containsAny(lower, obligatoryMarkers) {
		verb = "Requires"
	}

	predicates := buildPredicates(verb, rule)
	dimensions := map[string][]string{
		DimRequestFrame: admissibleFrames(lower),
	}
	if intents := detectValues(lower, intentCues, []string{IntentProcedural, IntentComparative, IntentOptimization}); len(intents) > 0 {
		dimensions[DimIntent] = intents
	}
	if perspectives := detectValues(lower, perspectiveCues, []string{PerspectiveFirstPerson, PerspectiveThirdPerson, PerspectiveHypothetical}); len(perspectives) > 0 {
		dimensions[DimPerspective] = perspectives
	}

	return Rule{
		RuleID:     rule.ID,
		Predicates: predicates,
		Violation:  isViolation(lower),
		Dimensions: dimensions,
	}
}

// CompileAll compiles rules in order, preserving the 1:1 pairing.
func CompileAll(rules []policy.Rule) []Rule {
	compiled := make([]Rule, len(rules))
	for i, rule := range rules {
		compiled[i] = Compile(rule)
	}
	return compiled
}

// buildPredicates derives predicate atoms from the rule's topic keywords.
// The set is never empty: a rule without topic keywords still gets a
// generic clause predicate so it stays addressable.
func buildPredicates(verb string, rule policy.Rule) []string {
	var predicates []string
	seen := make(map[string]struct{})
	add := func(p string) {
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			predicates = append(predicates, p)
		}
	}

	// Two topic atoms at most: the leading keywords carry the topic.
	for i, kw := range rule.Keywords {
		if i >= 2 {
			break
		}
		add(fmt.Sprintf("%s(%s)", verb, camelize(kw)))
	}
	if len(predicates) == 0 {
		add(fmt.Sprintf("Forbids(PolicyClause_%s)", rule.ID))
	}
	return predicates
}

// admissibleFrames restricts the frame set when the text carries a cue
// for a narrower framing, otherwise all five canonical frames apply.
func admissibleFrames(lower string) []string {
	var narrowed []string
	for _, frame := range Frames() {
		if containsAny(lower, frameCues[frame]) {
			narrowed = append(narrowed, frame)
		}
	}
	if len(narrowed) == 0 {
		return Frames()
	}
	return narrowed
}

// detectValues returns dimension values whose cues appear in the text,
// in the given stable order.
func detectValues(lower string, cues map[string][]string, order []string) []string {
	var values []string
	for _, value := range order {
		if containsAny(lower, cues[value]) {
			values = append(values, value)
		}
	}
	return values
}

func isViolation(lower string) bool {
	if containsAny(lower, prohibitiveMarkers) {
		return true
	}
	return !containsAny(lower, allowanceMarkers)
}

func containsAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// camelize turns a keyword like "self-harm" into a topic atom "SelfHarm".
func camelize(keyword string) string {
	parts := strings.FieldsFunc(keyword, func(r rune) bool {
		return r == '-' || r == '_' || r == ' ' || r == '\''
	})
	var b strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	if b.Len() == 0 {
		return "Topic"
	}
	return b.String()
}
