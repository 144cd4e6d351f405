// Package dicommeta extracts the identity, study, and series attributes used
// to place a DICOM file.
//
// ParseFile probes the Part 10 preamble before handing the file to the DICOM
// parser with pixel data skipped, so non-DICOM inputs are rejected cheaply.
// Every field of Record carries a default when the attribute is absent.
package dicommeta
