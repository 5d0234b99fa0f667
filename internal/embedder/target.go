package embedder

import "github.com/Guliveer/pagegen/internal/header"

// Target is one page to embed: where it is read from, where the header goes
// and the declaration tokens to use.
type Target struct {
	Name        string
	Source      string
	Destination string
	Declaration header.Declaration

	// StrictDelimiter fails the run when the page contains the raw string
	// terminator instead of picking another delimiter.
	StrictDelimiter bool
}

// Result describes one generated header.
type Result struct {
	Target      string
	Source      string
	Destination string
	Delimiter   string
	Bytes       int    // size of the embedded page
	SHA256      string // checksum of the generated header
	Changed     bool   // header differs from what was on disk before
}
