// Package main hosts the dicomsort CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration, sets up per-run logging, and
// hands sorting to internal/pipeline. Subcommands cover sorting, preflight
// checks, run history, and configuration scaffolding.
//
// Keep this package lean: new behaviour belongs in the internal packages
// first, surfaced here through a command or flag.
package main
