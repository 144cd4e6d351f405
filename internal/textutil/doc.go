// Package textutil cleans DICOM attribute values into filesystem-safe path
// tokens.
//
// Values are NFC-normalized and stripped of control characters before the
// token-specific rules (person names, identifiers, series descriptions) run.
// Every helper guarantees its result contains no path separator, colon, or
// angle bracket.
package textutil
