package symbolic

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/google/mangle/analysis"
	"github.com/google/mangle/ast"
	_ "github.com/google/mangle/builtin"
	mengine "github.com/google/mangle/engine"
	"github.com/google/mangle/factstore"
	"github.com/google/mangle/parse"

	"specprobe/internal/policy"
)

// coverageSchema declares the fact shape for compiled rules and prompt
// hits, and derives coverage as Datalog relations. region_covered is the
// (rule, predicate) relation the scorer reads back after evaluation.
const coverageSchema = `
Decl policy_rule(RuleID, Category).
Decl rule_predicate(RuleID, Predicate).
Decl rule_frame(RuleID, Frame).
Decl prompt_hit(PromptID, RuleID, Predicate).
Decl region_covered(RuleID, Predicate).
Decl rule_covered(RuleID).

region_covered(R, P) :- prompt_hit(Id, R, P).
rule_covered(R) :- prompt_hit(Id, R, P).
`

// Engine is a small Datalog engine holding compiled rules and prompt hits
// as facts. Evaluation materializes the derived coverage relations.
type Engine struct {
	mu             sync.RWMutex
	store          factstore.ConcurrentFactStore
	programInfo    *analysis.ProgramInfo
	predicateIndex map[string]ast.PredicateSym
	factCount      int
	factLimit      int
}

// NewEngine builds an engine with the coverage schema loaded.
func NewEngine() (*Engine, error) {
	unit, err := parse.Unit(bytes.NewReader([]byte(coverageSchema)))
	if err != nil {
		return nil, fmt.Errorf("parse coverage schema: %w", err)
	}
	programInfo, err := analysis.AnalyzeOneUnit(unit, nil)
	if err != nil {
		return nil, fmt.Errorf("analyze coverage schema: %w", err)
	}

	index := make(map[string]ast.PredicateSym, len(programInfo.Decls))
	for sym := range programInfo.Decls {
		index[sym.Symbol] = sym
	}

	base := factstore.NewSimpleInMemoryStore()
	return &Engine{
		store:          factstore.NewConcurrentFactStore(base),
		programInfo:    programInfo,
		predicateIndex: index,
		factLimit:      100000,
	}, nil
}

// LoadRules inserts one fact per rule, predicate and admissible frame.
// Rules and compiled must be the aligned 1:1 pairing from CompileAll.
func (e *Engine) LoadRules(rules []policy.Rule, compiled []Rule) error {
	if len(rules) != len(compiled) {
		return fmt.Errorf("rule count mismatch: %d policy rules, %d symbolic rules", len(rules), len(compiled))
	}
	for i, rule := range rules {
		if err := e.addFact("policy_rule", rule.ID, rule.Category); err != nil {
			return err
		}
		for _, predicate := range compiled[i].Predicates {
			if err := e.addFact("rule_predicate", rule.ID, predicate); err != nil {
				return err
			}
		}
		for _, frame := range compiled[i].RequestFrames() {
			if err := e.addFact("rule_frame", rule.ID, frame); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordHit inserts a prompt_hit fact tying a prompt to the (rule,
// predicate) region it exercises.
func (e *Engine) RecordHit(promptID, ruleID, predicate string) error {
	return e.addFact("prompt_hit", promptID, ruleID, predicate)
}

// Eval recomputes the derived coverage relations.
func (e *Engine) Eval() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := mengine.EvalProgramWithStats(e.programInfo, e.store); err != nil {
		return fmt.Errorf("evaluate coverage program: %w", err)
	}
	return nil
}

// CoveredRegions returns the distinct (rule, predicate) pairs derived
// from the recorded hits, sorted for stable output.
func (e *Engine) CoveredRegions() ([][2]string, error) {
	facts, err := e.facts("region_covered")
	if err != nil {
		return nil, err
	}
	regions := make([][2]string, 0, len(facts))
	for _, args := range facts {
		if len(args) == 2 {
			regions = append(regions, [2]string{args[0], args[1]})
		}
	}
	sort.Slice(regions, func(i, j int) bool {
		if regions[i][0] != regions[j][0] {
			return regions[i][0] < regions[j][0]
		}
		return regions[i][1] < regions[j][1]
	})
	return regions, nil
}

// CoveredRules returns the distinct rule ids with at least one hit, sorted.
func (e *Engine) CoveredRules() ([]string, error) {
	facts, err := e.facts("rule_covered")
	if err != nil {
		return nil, err
	}
	rules := make([]string, 0, len(facts))
	for _, args := range facts {
		if len(args) == 1 {
			rules = append(rules, args[0])
		}
	}
	sort.Strings(rules)
	return rules, nil
}

// Clear drops all facts, keeping the schema.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	base := factstore.NewSimpleInMemoryStore()
	e.store = factstore.NewConcurrentFactStore(base)
	e.factCount = 0
}

func (e *Engine) addFact(predicate string, args ...string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sym, ok := e.predicateIndex[predicate]
	if !ok {
		return fmt.Errorf("predicate %s is not declared in the coverage schema", predicate)
	}
	if len(args) != sym.Arity {
		return fmt.Errorf("predicate %s expects %d args, got %d", predicate, sym.Arity, len(args))
	}
	if e.factLimit > 0 && e.factCount >= e.factLimit {
		return fmt.Errorf("fact limit exceeded: %d", e.factLimit)
	}

	terms := make([]ast.BaseTerm, len(args))
	for i, arg := range args {
		terms[i] = ast.String(arg)
	}
	if e.store.Add(ast.Atom{Predicate: sym, Args: terms}) {
		e.factCount++
	}
	return nil
}

func (e *Engine) facts(predicate string) ([][]string, error) {
	e.mu.RLock()
	sym, ok := e.predicateIndex[predicate]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("predicate %s is not declared", predicate)
	}

	var results [][]string
	err := e.store.GetFacts(ast.NewQuery(sym), func(atom ast.Atom) error {
		row := make([]string, 0, len(atom.Args))
		for _, arg := range atom.Args {
			if c, ok := arg.(ast.Constant); ok {
				switch c.Type {
				case ast.StringType, ast.NameType:
					row = append(row, c.Symbol)
				default:
					row = append(row, c.String())
				}
			}
		}
		results = append(results, row)
		return nil
	})
	return results, err
}
