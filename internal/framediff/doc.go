// Package framediff computes the RMSE between two equally sized windows of
// frame samples, optionally gated by masks.
//
// The kernel is chosen once per call from the sample width; size or layout
// mismatches are programming errors and panic.
package framediff
