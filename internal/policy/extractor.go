package policy

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// ErrEmptyInput is returned when the policy text is blank or whitespace-only.
// It is fatal to the parse operation and surfaced to the caller unchanged.
var ErrEmptyInput = errors.New("policy text is empty")

var (
	bulletPrefix = regexp.MustCompile(`^[\-\*\d\.\)\(]+\s*`)
	wordPattern  = regexp.MustCompile(`[a-zA-Z][a-zA-Z\-']+`)
)

// conjunctionMarkers split a sentence into clause-level statements when a
// single sentence carries more than one obligation.
var conjunctionMarkers = []string{
	", and must not ",
	" and must not ",
	", and must ",
	", and should not ",
	" and should not ",
	", and is prohibited from ",
	" and is prohibited from ",
}

// Result carries the extracted rules plus provenance about how they
// were produced.
type Result struct {
	Rules []Rule
	// SemanticDegraded is true when a configured clause splitter failed
	// and the heuristic path was used instead.
	SemanticDegraded bool
}

// Extractor splits policy text into rules. The zero value is usable;
// a ClauseSplitter and logger are optional.
type Extractor struct {
	splitter ClauseSplitter
	log      *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithClauseSplitter installs an optional semantic clause splitter.
func WithClauseSplitter(s ClauseSplitter) Option {
	return func(e *Extractor) { e.splitter = s }
}

// WithLogger sets the logger used for degradation warnings.
func WithLogger(log *zap.Logger) Option {
	return func(e *Extractor) { e.log = log }
}

// NewExtractor builds an extractor.
func NewExtractor(opts ...Option) *Extractor {
	e := &Extractor{log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract converts policy text into ordered rules. Ids are assigned in
// textual order (R1, R2, ...) and are stable across runs.
func (e *Extractor) Extract(ctx context.Context, policyText string) ([]Rule, error) {
	res, err := e.ExtractDetailed(ctx, policyText)
	if err != nil {
		return nil, err
	}
	return res.Rules, nil
}

// ExtractDetailed is Extract plus provenance flags.
func (e *Extractor) ExtractDetailed(ctx context.Context, policyText string) (*Result, error) {
	if strings.TrimSpace(policyText) == "" {
		return nil, ErrEmptyInput
	}

	clauses, degraded := e.splitClauses(ctx, policyText)

	rules := make([]Rule, 0, len(clauses))
	for _, clause := range clauses {
		text := strings.TrimSpace(clause.Text)
		if text == "" {
			continue
		}
		keywords := extractKeywords(text)
		// Entity keywords from the semantic path lead; heuristic
		// keywords fill the remaining slots.
		if len(clause.Entities) > 0 {
			keywords = mergeKeywords(clause.Entities, keywords)
		}
		rules = append(rules, Rule{
			ID:       fmt.Sprintf("R%d", len(rules)+1),
			Text:     text,
			Category: inferCategory(text),
			Keywords: keywords,
		})
	}

	if len(rules) == 0 {
		return nil, ErrEmptyInput
	}
	return &Result{Rules: rules, SemanticDegraded: degraded}, nil
}

// splitClauses prefers the configured semantic splitter and falls back to
// the heuristic path. The second return value reports whether a configured
// splitter failed.
func (e *Extractor) splitClauses(ctx context.Context, text string) ([]Clause, bool) {
	if e.splitter != nil {
		clauses, err := e.splitter.SplitClauses(ctx, text)
		if err == nil && len(clauses) > 0 {
			return clauses, false
		}
		if err != nil {
			e.log.Warn("semantic clause splitter failed, using heuristic path",
				zap.Error(err))
		}
		return heuristicClauses(text), true
	}
	return heuristicClauses(text), false
}

// heuristicClauses normalizes bullets and numbering, splits at sentence
// terminators and conjunction markers, and merges continuation lines.
func heuristicClauses(text string) []Clause {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")

	var lines []string
	for _, raw := range strings.Split(normalized, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			lines = append(lines, "") // paragraph boundary
			continue
		}
		lines = append(lines, bulletPrefix.ReplaceAllString(line, ""))
	}

	// Merge contiguous non-empty lines into candidate statements.
	var statements []string
	var buffer []string
	flush := func() {
		if len(buffer) > 0 {
			statements = append(statements, strings.Join(buffer, " "))
			buffer = nil
		}
	}
	for _, line := range lines {
		if line == "" {
			flush()
			continue
		}
		buffer = append(buffer, line)
	}
	flush()

	var clauses []Clause
	for _, statement := range statements {
		for _, sentence := range splitSentences(statement) {
			for _, clause := range splitConjunctions(sentence) {
				clause = strings.TrimSpace(clause)
				if clause != "" {
					clauses = append(clauses, Clause{Text: clause})
				}
			}
		}
	}
	return clauses
}

// splitSentences cuts on sentence terminators. The terminator need not
// be followed by a space, so sentences squeezed together during line
// merging still separate.
func splitSentences(statement string) []string {
	var sentences []string
	var b strings.Builder
	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}
	for _, r := range statement {
		if r == '.' || r == '!' || r == '?' {
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return sentences
}

// splitConjunctions cuts a sentence at conjunction markers so each
// obligation becomes its own clause. The marker's modal verb stays with
// the trailing clause ("and must not X" -> "must not X").
func splitConjunctions(sentence string) []string {
	clauses := []string{sentence}
	for _, marker := range conjunctionMarkers {
		var next []string
		keep := strings.TrimSpace(strings.TrimPrefix(marker, ","))
		keep = strings.TrimSpace(strings.TrimPrefix(keep, "and "))
		for _, clause := range clauses {
			lower := strings.ToLower(clause)
			idx := strings.Index(lower, marker)
			if idx < 0 {
				next = append(next, clause)
				continue
			}
			head := strings.TrimSpace(clause[:idx])
			tail := keep + " " + strings.TrimSpace(clause[idx+len(marker):])
			if head != "" {
				next = append(next, head)
			}
			next = append(next, tail)
		}
		clauses = next
	}
	return clauses
}

func inferCategory(text string) string {
	lower := strings.ToLower(text)
	for _, entry := range categoryMarkers {
		for _, marker := range entry.markers {
			if strings.Contains(lower, marker) {
				return entry.category
			}
		}
	}
	return CategoryOther
}

// extractKeywords keeps the content words of a clause in order of first
// appearance, dropping stop-words and anything shorter than four runes.
func extractKeywords(text string) []string {
	tokens := wordPattern.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(tokens))
	var keywords []string
	for _, token := range tokens {
		if len(token) < 4 {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		keywords = append(keywords, token)
		if len(keywords) >= maxKeywords {
			break
		}
	}
	return keywords
}

// mergeKeywords prepends entity keywords, deduplicating against the
// heuristic set while preserving order.
func mergeKeywords(entities, heuristic []string) []string {
	seen := make(map[string]struct{}, len(entities)+len(heuristic))
	merged := make([]string, 0, maxKeywords)
	for _, list := range [][]string{entities, heuristic} {
		for _, kw := range list {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			merged = append(merged, kw)
			if len(merged) >= maxKeywords {
				return merged
			}
		}
	}
	return merged
}
