package preflight

import (
	"context"
	"strings"

	"emotrack/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional checks do not fail the overall run.
	Optional bool
}

// RunAll executes every readiness check for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Storage root", cfg.Paths.StorageRoot),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckModelFile("Emotion model", cfg.Model.ClassifierPath),
		CheckModelFile("Face cascade", cfg.Model.CascadePath),
	}

	if strings.TrimSpace(cfg.Paths.APIBind) != "" {
		results = append(results, CheckBindAddress(ctx, cfg.Paths.APIBind))
	}
	return results
}

// Passed reports whether every required check passed.
func Passed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return false
		}
	}
	return true
}
