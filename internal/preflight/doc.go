// Package preflight provides readiness checks run before a sort mutates
// anything on disk.
//
// The sort command calls RunAll after resolving the destination. If any
// required check fails the run stops with a validation error, leaving source
// and destination untouched. The check command renders the same results
// without sorting.
package preflight
