// Package logging provides categorized zap loggers for specprobe.
// Each subsystem logs under a named child so log lines attribute to the
// stage that emitted them.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category names a subsystem's logger.
type Category string

const (
	CategoryExtract    Category = "extract"    // policy text -> structured rules
	CategoryCompile    Category = "compile"    // rules -> symbolic predicates
	CategorySynth      Category = "synth"      // symbolic rules -> prompts
	CategoryExperiment Category = "experiment" // symbolic vs agent comparison
	CategoryCapability Category = "capability" // upstream model services
	CategoryStore      Category = "store"      // audit persistence
	CategoryWatch      Category = "watch"      // policy file watching
)

// New builds the root logger. Verbose enables debug level; output is the
// production JSON encoding either way.
func New(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// For returns the named child logger for a category.
func For(root *zap.Logger, cat Category) *zap.Logger {
	if root == nil {
		return zap.NewNop()
	}
	return root.Named(string(cat))
}
