// Package policy converts free-text policy statements into structured,
// independently addressable rules. Extraction is deterministic: the same
// input always yields the same rules in the same order with the same ids.
package policy

import "context"

// Rule is a single extracted policy clause.
type Rule struct {
	ID       string   `json:"id"`
	Text     string   `json:"text"`
	Category string   `json:"category"`
	Keywords []string `json:"keywords"`
}

// Rule categories. Unmatched clauses fall back to CategoryOther.
const (
	CategorySafety    = "safety"
	CategoryViolence  = "violence"
	CategoryPrivacy   = "privacy"
	CategoryMedical   = "medical"
	CategoryFinancial = "financial"
	CategoryCopyright = "copyright"
	CategoryLegal     = "legal"
	CategoryPolitical = "political"
	CategoryOther     = "other"
)

// Clause is a candidate rule statement produced by a splitter.
type Clause struct {
	Text     string
	Entities []string
}

// ClauseSplitter produces finer-grained clause boundaries and named
// entities than the built-in heuristics. Implementations may be backed
// by a statistical model and may fail; the extractor always falls back
// to its heuristic path.
type ClauseSplitter interface {
	SplitClauses(ctx context.Context, text string) ([]Clause, error)
}
