// Package continuity decides, frame by frame, whether to reuse a stored
// transform, repeat a neighbour's transform, stabilize one transform across a
// window of frames, or run a fresh search.
//
// Engine.Transform is the entry point. Every fallback to a fresh search is a
// logged decision, not an error. Results are written to a statstore.Store;
// full searches and repeats are cached for the lifetime of the Engine and
// computed at most once per key.
package continuity
