// Package services defines shared utilities consumed by the sort pipeline and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, and source directories
//     for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into exit codes for the command line.
//
// The dcm2niix subpackage wraps the external NIfTI converter.
package services
