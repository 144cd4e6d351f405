// Package logging assembles structured slog loggers and formatting helpers used
// across dicomsort.
//
// It owns the console/JSON handlers, centralizes level and output plumbing,
// and exposes context-aware helpers so pipeline code can tag log lines with
// run IDs, stages, and source directories. The package also provides a no-op
// logger for tests, a progress sampler, and age-based log pruning.
package logging
