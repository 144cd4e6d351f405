package preflight

import (
	"fmt"
	"strings"

	"dicomsort/internal/config"
	"dicomsort/internal/deps"
	"dicomsort/internal/services"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Request describes the run being checked.
type Request struct {
	Source      string
	Destination string
	// Need is the number of bytes the destination must hold.
	Need int64
	Move bool
	// Convert requests the dcm2niix check.
	Convert bool
}

// RunAll executes the checks applicable to req.
func RunAll(cfg *config.Config, req Request) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Source directory", req.Source),
		CheckWritableParent("Destination", req.Destination),
	}

	// Moves rename within the source volume, so no extra space is consumed.
	if !req.Move {
		results = append(results, CheckFreeSpace("Free space", req.Destination, req.Need))
	}

	if req.Convert {
		for _, status := range deps.CheckBinaries(deps.Requirements(cfg)) {
			res := Result{Name: status.Name, Passed: status.Available, Detail: status.Path}
			if !status.Available {
				res.Detail = status.Detail
			}
			results = append(results, res)
		}
	}

	return results
}

// Err returns a validation error naming every failed required check, or nil.
func Err(results []Result) error {
	var failed []string
	for _, r := range results {
		if r.Passed || r.Optional {
			continue
		}
		failed = append(failed, fmt.Sprintf("%s: %s", r.Name, r.Detail))
	}
	if len(failed) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "preflight", "check", strings.Join(failed, "; "), nil)
}
