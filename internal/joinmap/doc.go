// Package joinmap reads join files that splice frames from extra clips into
// a main clip.
//
// Each non-empty line reads "targetFrame sourceIndex sourceFrame [marker]".
// Source index 0 is the main clip and 1..n are the extra clips. Target frames
// not listed take the next unused frame of the main clip, so a file with k
// lines lengthens a main clip of m frames to m+k frames.
package joinmap
