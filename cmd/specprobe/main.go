// specprobe converts free-text policies into structured rules, symbolic
// compilations, and traceable adversarial prompts, and compares the
// symbolic pipeline against a stochastic agent baseline.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specprobe/internal/capability"
	"specprobe/internal/config"
	"specprobe/internal/experiment"
	"specprobe/internal/logging"
	"specprobe/internal/policy"
	"specprobe/internal/store"
	"specprobe/internal/symbolic"
	"specprobe/internal/synth"
	"specprobe/internal/watch"
)

var (
	cfgPath string
	verbose bool

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "specprobe",
	Short: "Probe content policies with symbolically generated adversarial prompts",
	Long: `specprobe turns a free-text policy into structured rules, compiles
them into symbolic predicates tagged by request frame, synthesizes a
deterministic prompt set covering every rule and frame, and measures
the coverage gap against a stochastic agent baseline.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse [policy-file]",
	Short: "Extract structured rules from a policy document",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readPolicy(args)
		if err != nil {
			return err
		}

		extractor := buildExtractor(cmd.Context())
		result, err := extractor.ExtractDetailed(cmd.Context(), text)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Rules            []policy.Rule   `json:"rules"`
			Symbolic         []symbolic.Rule `json:"symbolic_rules"`
			SemanticDegraded bool            `json:"semantic_degraded"`
		}{result.Rules, symbolic.CompileAll(result.Rules), result.SemanticDegraded})
	},
}

var generateCmd = &cobra.Command{
	Use:   "generate [policy-file]",
	Short: "Synthesize traceable adversarial prompts for a policy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readPolicy(args)
		if err != nil {
			return err
		}
		totalPrompts, _ := cmd.Flags().GetInt("prompts")
		if totalPrompts <= 0 {
			totalPrompts = cfg.TotalPrompts
		}

		extractor := buildExtractor(cmd.Context())
		rules, err := extractor.Extract(cmd.Context(), text)
		if err != nil {
			return err
		}
		compiled := symbolic.CompileAll(rules)
		prompts, err := synth.NewSynthesizer().Synthesize(rules, compiled, totalPrompts)
		if err != nil {
			return err
		}
		return printJSON(struct {
			Rules    []policy.Rule   `json:"rules"`
			Symbolic []symbolic.Rule `json:"symbolic_rules"`
			Prompts  []synth.Prompt  `json:"prompts"`
		}{rules, compiled, prompts})
	},
}

var experimentCmd = &cobra.Command{
	Use:   "experiment [policy-file]",
	Short: "Compare symbolic prompt generation against the agent baseline",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := readPolicy(args)
		if err != nil {
			return err
		}
		totalPrompts, _ := cmd.Flags().GetInt("prompts")
		trials, _ := cmd.Flags().GetInt("trials")
		evaluate, _ := cmd.Flags().GetBool("evaluate")
		if totalPrompts <= 0 {
			totalPrompts = cfg.TotalPrompts
		}
		if trials <= 0 {
			trials = cfg.Trials
		}

		provider, err := newProvider(cmd.Context())
		if err != nil {
			return err
		}

		runner, err := experiment.NewRunner(
			experiment.WithGenerator(provider.Generator),
			experiment.WithRunnerLogger(logging.For(logger, logging.CategoryExperiment)),
			experiment.WithParallelism(cfg.TrialParallelism),
			experiment.WithAgentTimeout(time.Duration(cfg.AgentTimeoutSeconds)*time.Second),
		)
		if err != nil {
			return err
		}

		result, err := runner.Run(cmd.Context(), text, totalPrompts, trials)
		if err != nil {
			return err
		}

		output := struct {
			*experiment.Result
			Judgments []promptJudgment `json:"judgments,omitempty"`
			RunID     string           `json:"run_id,omitempty"`
		}{Result: result}

		// Persistence and evaluation re-derive the deterministic
		// prompt set the runner scored.
		rules, prompts, err := derivePromptSet(cmd.Context(), text, totalPrompts)
		if err != nil {
			return err
		}

		if evaluate {
			if provider.Evaluator == nil {
				return fmt.Errorf("provider %q cannot evaluate prompts", provider.Name)
			}
			output.Judgments, err = evaluatePrompts(cmd.Context(), provider.Evaluator, prompts)
			if err != nil {
				return err
			}
		}

		if cfg.StorePath != "" {
			audit, err := store.Open(cfg.StorePath)
			if err != nil {
				return err
			}
			defer audit.Close()
			output.RunID, err = audit.SaveRun(text, totalPrompts, trials, rules, prompts, result)
			if err != nil {
				return err
			}
		}

		fmt.Fprintln(os.Stderr, result.ComparisonSummary)
		return printJSON(output)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch <policy-file>",
	Short: "Re-synthesize prompts whenever the policy file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		totalPrompts, _ := cmd.Flags().GetInt("prompts")
		if totalPrompts <= 0 {
			totalPrompts = cfg.TotalPrompts
		}

		handler := func(ctx context.Context, text string) {
			extractor := buildExtractor(ctx)
			rules, err := extractor.Extract(ctx, text)
			if err != nil {
				logger.Warn("extraction failed", zap.Error(err))
				return
			}
			compiled := symbolic.CompileAll(rules)
			prompts, err := synth.NewSynthesizer().Synthesize(rules, compiled, totalPrompts)
			if err != nil {
				logger.Warn("synthesis failed", zap.Error(err))
				return
			}
			printJSON(struct {
				Rules   []policy.Rule  `json:"rules"`
				Prompts []synth.Prompt `json:"prompts"`
			}{rules, prompts})
		}

		w, err := watch.New(args[0], handler, logging.For(logger, logging.CategoryWatch))
		if err != nil {
			return err
		}
		if err := w.Start(cmd.Context()); err != nil {
			return err
		}
		defer w.Stop()

		// Run once on startup, then on every change.
		if data, err := os.ReadFile(args[0]); err == nil {
			handler(cmd.Context(), string(data))
		}
		<-cmd.Context().Done()
		return nil
	},
}

type promptJudgment struct {
	PromptID string `json:"prompt_id"`
	capability.Judgment
}

func evaluatePrompts(ctx context.Context, eval capability.PromptEvaluator, prompts []synth.Prompt) ([]promptJudgment, error) {
	out := make([]promptJudgment, 0, len(prompts))
	for _, p := range prompts {
		j, err := eval.Evaluate(ctx, p.Text)
		if err != nil {
			return nil, fmt.Errorf("evaluate %s: %w", p.ID, err)
		}
		out = append(out, promptJudgment{PromptID: p.ID, Judgment: j})
	}
	return out, nil
}

func derivePromptSet(ctx context.Context, text string, totalPrompts int) ([]policy.Rule, []synth.Prompt, error) {
	extractor := buildExtractor(ctx)
	rules, err := extractor.Extract(ctx, text)
	if err != nil {
		return nil, nil, err
	}
	compiled := symbolic.CompileAll(rules)
	prompts, err := synth.NewSynthesizer().Synthesize(rules, compiled, totalPrompts)
	if err != nil {
		return nil, nil, err
	}
	return rules, prompts, nil
}

// buildExtractor attaches the semantic clause splitter when a provider
// offers one; extraction falls back to heuristics on any failure.
func buildExtractor(ctx context.Context) *policy.Extractor {
	opts := []policy.Option{policy.WithLogger(logging.For(logger, logging.CategoryExtract))}
	if provider, err := newProvider(ctx); err == nil && provider.Splitter != nil {
		opts = append(opts, policy.WithClauseSplitter(provider.Splitter))
	}
	return policy.NewExtractor(opts...)
}

func newProvider(ctx context.Context) (*capability.Provider, error) {
	return capability.NewProvider(ctx, cfg.Provider, cfg.APIKey, cfg.Model,
		logging.For(logger, logging.CategoryCapability))
}

func readPolicy(args []string) (string, error) {
	if len(args) > 0 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to read policy file: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	return string(data), nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "specprobe.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	generateCmd.Flags().Int("prompts", 0, "total prompt budget")
	experimentCmd.Flags().Int("prompts", 0, "total prompt budget")
	experimentCmd.Flags().Int("trials", 0, "agent baseline trials")
	experimentCmd.Flags().Bool("evaluate", false, "run each symbolic prompt against the target model and judge the responses")
	watchCmd.Flags().Int("prompts", 0, "total prompt budget")

	rootCmd.AddCommand(parseCmd, generateCmd, experimentCmd, watchCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
