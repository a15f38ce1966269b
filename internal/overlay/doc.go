// Package overlay defines the solved transform record shared by the search,
// continuity and storage layers, together with the bounded best-result set
// used during parallel evaluation and the fixed binary layout written into a
// frame's side channel.
package overlay
