// Package search finds the transform that best aligns an overlay frame onto
// a source frame.
//
// A search runs a coarse-to-fine pyramid: each step enumerates candidate
// sizes, angles and translation windows around the branches kept by the
// previous, coarser step, evaluates them in parallel and keeps the best few.
// At full resolution the surviving branches are refined with fractional
// crops. Several configurations may be supplied; they are tried in order
// until one reaches its acceptable difference.
package search
