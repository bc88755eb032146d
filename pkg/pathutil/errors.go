package pathutil

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that a path did not resolve to a value. It is distinct
// from a present null: Get returns (nil, nil) for a stored null and
// (nil, ErrNotFound) for a missing segment.
var ErrNotFound = errors.New("path not found")

// InvalidPathError reports malformed path syntax.
type InvalidPathError struct {
	// Path is the offending path expression
	Path string
	// Position is the byte offset where parsing failed
	Position int
	// Reason describes the syntax problem
	Reason string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %q at offset %d: %s", e.Path, e.Position, e.Reason)
}

// IndexError reports an out-of-range sequence index on Set. The resolver
// refuses to grow sparse sequences: only the next free index may be appended.
type IndexError struct {
	// Path is the full path being written
	Path string
	// Index is the requested sequence index
	Index int
	// Length is the sequence length at the time of the write
	Length int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %d out of range (len %d) writing path %q", e.Index, e.Length, e.Path)
}
