package sim

import (
	"fmt"
	"sort"
	"strings"
)

// AttributeSet enumerates the attributes known to a run.
// Ids are assigned in sorted name order so iteration is deterministic.
type AttributeSet struct {
	names []string
	index map[string]int
}

// NewAttributeSet builds an AttributeSet from the given names.
// Duplicates are collapsed; empty names are rejected.
func NewAttributeSet(names ...string) (*AttributeSet, error) {
	seen := make(map[string]bool, len(names))
	sorted := make([]string, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			return nil, fmt.Errorf("attribute name must not be empty")
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)
	idx := make(map[string]int, len(sorted))
	for i, n := range sorted {
		idx[n] = i
	}
	return &AttributeSet{names: sorted, index: idx}, nil
}

// Len returns the number of attributes.
func (s *AttributeSet) Len() int { return len(s.names) }

// Name returns the attribute name for id.
func (s *AttributeSet) Name(id int) string { return s.names[id] }

// Names returns a copy of the attribute names in id order.
func (s *AttributeSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// ID returns the id for name and whether it is known.
func (s *AttributeSet) ID(name string) (int, bool) {
	id, ok := s.index[name]
	return id, ok
}

// Candidate is one arrival in the admission stream.
type Candidate struct {
	Index int
	Has   []bool // indexed by attribute id
}

// Candidate converts a wire attribute map into a typed Candidate.
// Missing attributes are false. Unknown keys are ignored and returned so the
// caller can log them; they never affect scoring.
func (s *AttributeSet) Candidate(index int, attrs map[string]bool) (Candidate, []string) {
	c := Candidate{Index: index, Has: make([]bool, len(s.names))}
	var unknown []string
	for name, v := range attrs {
		id, ok := s.index[name]
		if !ok {
			unknown = append(unknown, name)
			continue
		}
		c.Has[id] = v
	}
	sort.Strings(unknown)
	return c, unknown
}

// Map converts the candidate back to the wire representation.
func (s *AttributeSet) Map(c Candidate) map[string]bool {
	out := make(map[string]bool, len(s.names))
	for id, name := range s.names {
		out[name] = c.has(id)
	}
	return out
}

// has reports whether the candidate carries attribute id; out of range is false.
func (c Candidate) has(id int) bool {
	return id < len(c.Has) && c.Has[id]
}
