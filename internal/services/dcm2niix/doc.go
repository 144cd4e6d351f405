// Package dcm2niix wraps the dcm2niix command-line converter used to turn a
// sorted DICOM tree into NIfTI volumes.
//
// The CLI client converts one series directory per invocation and runs a
// bounded number of invocations in parallel. Tests swap the command factory to
// avoid spawning the real binary.
package dcm2niix
