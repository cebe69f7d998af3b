// Package symbolic compiles policy rules into tagged logical predicates.
// A compiled rule carries predicate atoms (Forbids/Requires) plus named
// dimensions; the request_frame dimension is always populated. Compiled
// rules can additionally be loaded into a Datalog engine (google/mangle)
// as facts so coverage becomes a derived relation.
package symbolic

// Canonical request frames, in canonical order. The order is part of the
// synthesis contract: candidate (rule, frame, strategy) triples enumerate
// frames in exactly this sequence.
const (
	FrameDirectRequest        = "direct_request"
	FrameHarmReductionCover   = "harm_reduction_cover"
	FrameAcademicAnalysis     = "academic_analysis"
	FrameThirdPersonNarrative = "third_person_narrative"
	FrameHypotheticalPlanning = "hypothetical_planning"
)

// Frames returns the canonical frame list in canonical order.
func Frames() []string {
	return []string{
		FrameDirectRequest,
		FrameHarmReductionCover,
		FrameAcademicAnalysis,
		FrameThirdPersonNarrative,
		FrameHypotheticalPlanning,
	}
}

// Dimension names.
const (
	DimRequestFrame = "request_frame"
	DimIntent       = "intent"
	DimPerspective  = "perspective"
)

// Intent dimension values.
const (
	IntentProcedural   = "procedural"
	IntentComparative  = "comparative"
	IntentOptimization = "optimization"
)

// Perspective dimension values.
const (
	PerspectiveFirstPerson  = "first_person"
	PerspectiveThirdPerson  = "third_person"
	PerspectiveHypothetical = "hypothetical"
)

// Rule is the symbolic compilation of a single policy rule. One Rule per
// policy rule; never mutated after compilation.
type Rule struct {
	RuleID     string              `json:"rule_id"`
	Predicates []string            `json:"predicates"`
	Violation  bool                `json:"violation"`
	Dimensions map[string][]string `json:"dimensions"`
}

// RequestFrames returns the admissible request frames for this rule.
// Never empty for a compiled rule.
func (r Rule) RequestFrames() []string {
	return r.Dimensions[DimRequestFrame]
}
