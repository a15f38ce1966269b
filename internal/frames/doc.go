// Package frames supplies the pixel buffers and the frame-source capability
// consumed by the alignment engine.
//
// Image is a plain sample buffer (gray or four-channel, 8 to 16 bits per
// sample). Clip is the capability the search and continuity code use to pull
// frames by number; callers pass clips explicitly instead of relying on any
// ambient environment. Resampler renders an overlay at a target size, angle
// and sub-pixel crop; the DrawResampler implementation is built on
// golang.org/x/image/draw.
package frames
