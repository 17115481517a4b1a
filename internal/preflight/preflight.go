package preflight

import (
	"context"

	"fieldsync/internal/config"
	"fieldsync/internal/connectivity"
	"fieldsync/internal/remote"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail"`
}

// RunAll executes every check for cfg in display order.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFreeSpace("Queue disk space", cfg.Paths.StateDir, MinFreeBytes),
		CheckAPI(ctx, remote.NewClient(cfg, nil)),
		CheckConnectivity(ctx, connectivity.NewHTTPProber(cfg, nil)),
	}
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
