// Package pipeline runs a sort: enumerate the source tree, classify and place
// every file on a fixed worker pool, reduce the outcomes into a Summary, then
// finalize a move and optionally convert the result to NIfTI.
//
// Progress is reported as integer percentages on a caller-supplied channel
// that Run closes when it returns. The caller must drain it.
package pipeline
