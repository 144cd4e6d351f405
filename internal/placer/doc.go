// Package placer classifies a single file and, when it is an identifiable
// DICOM file, hands it to a Sink at its derived destination.
//
// Classification never fails a run: unreadable or non-DICOM inputs, records
// without a subject name, and per-file I/O failures all come back as a
// skipped Result carrying a Reason. Sinks decide where bytes go: a directory
// tree (copy or move) or a zip archive.
package placer
