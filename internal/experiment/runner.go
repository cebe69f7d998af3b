package experiment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"specprobe/internal/capability"
	"specprobe/internal/policy"
	"specprobe/internal/symbolic"
	"specprobe/internal/synth"
)

// Defaults applied when Run is called with non-positive arguments.
const (
	DefaultTotalPrompts = 10
	DefaultTrials       = 5
)

// Runner executes the full comparison: symbolic pipeline once, agent
// baseline over repeated trials.
type Runner struct {
	extractor   *policy.Extractor
	synthesizer *synth.Synthesizer
	scorer      *Scorer
	generator   capability.AgentGenerator
	fallback    capability.FallbackGenerator
	logger      *zap.Logger

	parallelism  int
	agentTimeout time.Duration
	retryBackoff time.Duration
}

// RunnerOption adjusts a Runner.
type RunnerOption func(*Runner)

// WithExtractor replaces the default heuristic extractor.
func WithExtractor(e *policy.Extractor) RunnerOption {
	return func(r *Runner) { r.extractor = e }
}

// WithGenerator sets the agent baseline generator. Without one, every
// trial runs on the offline fallback sampler.
func WithGenerator(g capability.AgentGenerator) RunnerOption {
	return func(r *Runner) { r.generator = g }
}

// WithRunnerLogger sets the logger.
func WithRunnerLogger(log *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = log }
}

// WithParallelism bounds concurrent agent trials.
func WithParallelism(n int) RunnerOption {
	return func(r *Runner) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithAgentTimeout bounds each upstream generation call.
func WithAgentTimeout(d time.Duration) RunnerOption {
	return func(r *Runner) {
		if d > 0 {
			r.agentTimeout = d
		}
	}
}

// NewRunner builds a runner with a Datalog-checked scorer.
func NewRunner(opts ...RunnerOption) (*Runner, error) {
	engine, err := symbolic.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("create coverage engine: %w", err)
	}
	r := &Runner{
		synthesizer:  synth.NewSynthesizer(),
		logger:       zap.NewNop(),
		parallelism:  2,
		agentTimeout: 60 * time.Second,
		retryBackoff: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.extractor == nil {
		r.extractor = policy.NewExtractor(policy.WithLogger(r.logger))
	}
	r.scorer = NewScorer(engine, r.logger)
	return r, nil
}

// Run executes the experiment over policyText. Empty input and an
// insufficient prompt budget fail fast; agent-side failures degrade to
// the fallback sampler instead of failing. Cancellation stops launching
// new trials and returns the completed ones.
func (r *Runner) Run(ctx context.Context, policyText string, totalPrompts, trials int) (*Result, error) {
	if totalPrompts <= 0 {
		totalPrompts = DefaultTotalPrompts
	}
	if trials <= 0 {
		trials = DefaultTrials
	}

	rules, err := r.extractor.Extract(ctx, policyText)
	if err != nil {
		return nil, err
	}
	compiled := symbolic.CompileAll(rules)

	prompts, err := r.synthesizer.Synthesize(rules, compiled, totalPrompts)
	if err != nil {
		return nil, err
	}

	symMetrics, err := r.scorer.ScoreSymbolic(prompts, rules, compiled)
	if err != nil {
		return nil, fmt.Errorf("score symbolic prompts: %w", err)
	}
	rescored, err := r.scorer.ScoreSymbolic(prompts, rules, compiled)
	if err != nil {
		return nil, fmt.Errorf("re-score symbolic prompts: %w", err)
	}
	if rescored != symMetrics {
		return nil, fmt.Errorf("symbolic scoring is not deterministic: %+v vs %+v", symMetrics, rescored)
	}

	sensitivity, err := r.specificationSensitivity(rules, compiled, totalPrompts, symMetrics)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Symbolic:                 symMetrics,
		SpecificationSensitivity: sensitivity,
	}

	trialMetrics, completed, degraded := r.runAgentTrials(ctx, policyText, rules, compiled, totalPrompts, trials)
	result.AgentTrials = trialMetrics
	result.TrialsCompleted = completed
	result.CapabilityDegraded = degraded

	coverages := agentCoverages(trialMetrics)
	result.AgentMeanCoverage = round1(mean(coverages))
	result.CoverageVariance = sampleVariance(coverages)
	result.SpecGap = round1(symMetrics.CoveragePercent - result.AgentMeanCoverage)
	result.ComparisonSummary = comparisonSummary(result)

	r.logger.Info("experiment complete",
		zap.Float64("symbolic_coverage", symMetrics.CoveragePercent),
		zap.Float64("agent_mean_coverage", result.AgentMeanCoverage),
		zap.Float64("spec_gap", result.SpecGap),
		zap.Int("trials_completed", completed),
		zap.Bool("degraded", degraded))
	return result, nil
}

// specificationSensitivity re-runs the symbolic side with the first rule
// removed and reports the relative drop in covered regions. A one-rule
// policy has nothing to remove and reports zero.
func (r *Runner) specificationSensitivity(rules []policy.Rule, compiled []symbolic.Rule, totalPrompts int, full Metrics) (float64, error) {
	if len(rules) < 2 || full.RegionsCovered == 0 {
		return 0, nil
	}
	reducedRules := rules[1:]
	reducedCompiled := compiled[1:]
	prompts, err := r.synthesizer.Synthesize(reducedRules, reducedCompiled, totalPrompts)
	if err != nil {
		return 0, fmt.Errorf("synthesize reduced policy: %w", err)
	}
	reduced, err := r.scorer.ScoreSymbolic(prompts, reducedRules, reducedCompiled)
	if err != nil {
		return 0, fmt.Errorf("score reduced policy: %w", err)
	}
	drop := float64(full.RegionsCovered-reduced.RegionsCovered) / float64(full.RegionsCovered)
	if drop < 0 {
		drop = 0
	}
	return drop, nil
}

// runAgentTrials runs the stochastic baseline with bounded parallelism.
// Trials already running finish after cancellation; new ones are not
// launched. Per-trial generation failures fall back to the offline
// sampler so a trial never fails outright.
func (r *Runner) runAgentTrials(ctx context.Context, policyText string, rules []policy.Rule, compiled []symbolic.Rule, count, trials int) ([]Metrics, int, bool) {
	var mu sync.Mutex
	results := make(map[int]Metrics, trials)
	degraded := false

	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(r.parallelism)

	for trial := 0; trial < trials; trial++ {
		if ctx.Err() != nil {
			r.logger.Warn("cancelled before launching trial", zap.Int("trial", trial))
			break
		}
		trial := trial
		g.Go(func() error {
			texts, usedFallback := r.generateWithRetry(gctx, policyText, count, int64(trial))
			m, err := r.scorer.ScoreAgent(texts, rules, compiled)
			if err != nil {
				return fmt.Errorf("score trial %d: %w", trial, err)
			}
			mu.Lock()
			results[trial] = m
			if usedFallback {
				degraded = true
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.logger.Error("agent trial failed", zap.Error(err))
	}

	keys := make([]int, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	out := make([]Metrics, 0, len(keys))
	for _, k := range keys {
		out = append(out, results[k])
	}
	return out, len(out), degraded
}

// generateWithRetry tries the configured generator up to three times
// with exponential backoff, then degrades to the fallback sampler.
func (r *Runner) generateWithRetry(ctx context.Context, policyText string, count int, seed int64) ([]string, bool) {
	if r.generator == nil {
		texts, _ := r.fallback.GeneratePrompts(ctx, policyText, count, seed)
		return texts, true
	}

	const maxRetries = 2
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.retryBackoff << uint(attempt-1)):
			case <-ctx.Done():
				attempt = maxRetries
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, r.agentTimeout)
		texts, err := r.generator.GeneratePrompts(callCtx, policyText, count, seed)
		cancel()
		if err == nil && len(texts) > 0 {
			return texts, false
		}
		r.logger.Warn("agent generation attempt failed",
			zap.Int64("seed", seed),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	r.logger.Warn("agent generation exhausted retries, using fallback sampler", zap.Int64("seed", seed))
	texts, _ := r.fallback.GeneratePrompts(ctx, policyText, count, seed)
	return texts, true
}
