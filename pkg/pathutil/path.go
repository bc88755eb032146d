// Package pathutil implements the path resolver used by the data mapping
// layer: reading and writing values in nested payloads addressed by
// dotted/bracketed paths such as "items[0].sku".
package pathutil

import (
	"strconv"
	"strings"
)

// Step is a single traversal step: a map key or a sequence index.
type Step struct {
	// Key is the map key for a key step
	Key string
	// Index is the sequence index for an index step
	Index int
	// IsIndex discriminates index steps from key steps
	IsIndex bool
}

// Path is a parsed path expression.
type Path struct {
	raw   string
	steps []Step
}

// String returns the original path expression.
func (p Path) String() string { return p.raw }

// Steps returns the parsed traversal steps.
func (p Path) Steps() []Step { return p.steps }

// Parse parses a dotted/bracketed path. Grammar: dot-separated segment names,
// each optionally followed by one or more bracketed non-negative integer
// indexes. A leading bracket addresses a sequence at the root.
func Parse(path string) (Path, error) {
	if path == "" {
		return Path{}, &InvalidPathError{Path: path, Position: 0, Reason: "empty path"}
	}

	var steps []Step
	i := 0
	expectKey := true
	for i < len(path) {
		switch {
		case path[i] == '.':
			if expectKey {
				return Path{}, &InvalidPathError{Path: path, Position: i, Reason: "unexpected '.'"}
			}
			i++
			expectKey = true
		case path[i] == '[':
			close := strings.IndexByte(path[i:], ']')
			if close < 0 {
				return Path{}, &InvalidPathError{Path: path, Position: i, Reason: "unterminated '['"}
			}
			idxText := path[i+1 : i+close]
			idx, err := strconv.Atoi(idxText)
			if err != nil || idx < 0 || strings.TrimSpace(idxText) != idxText {
				return Path{}, &InvalidPathError{Path: path, Position: i + 1, Reason: "index must be a non-negative integer"}
			}
			steps = append(steps, Step{Index: idx, IsIndex: true})
			i += close + 1
			expectKey = false
		default:
			if !expectKey {
				return Path{}, &InvalidPathError{Path: path, Position: i, Reason: "expected '.' or '['"}
			}
			end := i
			for end < len(path) && path[end] != '.' && path[end] != '[' {
				if path[end] == ']' {
					return Path{}, &InvalidPathError{Path: path, Position: end, Reason: "unexpected ']'"}
				}
				end++
			}
			steps = append(steps, Step{Key: path[i:end]})
			i = end
			expectKey = false
		}
	}
	if expectKey {
		return Path{}, &InvalidPathError{Path: path, Position: len(path), Reason: "trailing '.'"}
	}
	return Path{raw: path, steps: steps}, nil
}

// Get resolves path against payload. A missing segment (absent key, index out
// of range, or traversal into a scalar) returns ErrNotFound; a stored null
// returns (nil, nil). Malformed paths return *InvalidPathError.
func Get(payload interface{}, path string) (interface{}, error) {
	p, err := Parse(path)
	if err != nil {
		return nil, err
	}
	return p.Get(payload)
}

// Get resolves the parsed path against payload.
func (p Path) Get(payload interface{}) (interface{}, error) {
	cur := payload
	for _, step := range p.steps {
		if step.IsIndex {
			seq, ok := cur.([]interface{})
			if !ok || step.Index >= len(seq) {
				return nil, ErrNotFound
			}
			cur = seq[step.Index]
			continue
		}
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, ErrNotFound
		}
		v, ok := m[step.Key]
		if !ok {
			return nil, ErrNotFound
		}
		cur = v
	}
	return cur, nil
}

// Set writes value at path inside payload, creating intermediate maps and
// sequences as needed. Sequence writes are strict: an index may address an
// existing element or append at exactly the current length; anything beyond
// is an *IndexError (sparse growth is never silent).
func Set(payload map[string]interface{}, path string, value interface{}) error {
	p, err := Parse(path)
	if err != nil {
		return err
	}
	return p.Set(payload, value)
}

// Set writes value at the parsed path.
func (p Path) Set(payload map[string]interface{}, value interface{}) error {
	if len(p.steps) == 0 {
		return &InvalidPathError{Path: p.raw, Position: 0, Reason: "empty path"}
	}
	if p.steps[0].IsIndex {
		return &InvalidPathError{Path: p.raw, Position: 0, Reason: "root of a payload is a map, not a sequence"}
	}
	return p.setInMap(payload, 0, value)
}

// setInMap handles a key step at position i, recursing into the container the
// key addresses.
func (p Path) setInMap(m map[string]interface{}, i int, value interface{}) error {
	step := p.steps[i]
	if i == len(p.steps)-1 {
		m[step.Key] = value
		return nil
	}

	next := p.steps[i+1]
	if next.IsIndex {
		seq, _ := m[step.Key].([]interface{})
		newSeq, err := p.setInSeq(seq, i+1, value)
		if err != nil {
			return err
		}
		m[step.Key] = newSeq
		return nil
	}

	child, ok := m[step.Key].(map[string]interface{})
	if !ok {
		child = make(map[string]interface{})
		m[step.Key] = child
	}
	return p.setInMap(child, i+1, value)
}

// setInSeq handles an index step at position i. The (possibly nil) sequence
// is returned because appends reallocate.
func (p Path) setInSeq(seq []interface{}, i int, value interface{}) ([]interface{}, error) {
	step := p.steps[i]
	switch {
	case step.Index < len(seq):
		// In range: assign or descend.
	case step.Index == len(seq):
		seq = append(seq, nil)
	default:
		return nil, &IndexError{Path: p.raw, Index: step.Index, Length: len(seq)}
	}

	if i == len(p.steps)-1 {
		seq[step.Index] = value
		return seq, nil
	}

	next := p.steps[i+1]
	if next.IsIndex {
		child, _ := seq[step.Index].([]interface{})
		newChild, err := p.setInSeq(child, i+1, value)
		if err != nil {
			return nil, err
		}
		seq[step.Index] = newChild
		return seq, nil
	}

	child, ok := seq[step.Index].(map[string]interface{})
	if !ok {
		child = make(map[string]interface{})
		seq[step.Index] = child
	}
	if err := p.setInMap(child, i+1, value); err != nil {
		return nil, err
	}
	return seq, nil
}
