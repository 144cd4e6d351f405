// Package logs reads per-run log files for the CLI.
//
// It locates the newest run log, returns the last N lines with bounded memory,
// and follows a file as a running sort appends to it. Callers supply a context
// so follow-mode polling stops when the CLI exits.
package logs
