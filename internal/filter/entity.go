// Package filter holds the injection filter aggregate and its wire codec.
//
// An Entity is a named policy made of an ordered list of detection patterns.
// Pattern names identify patterns within one entity. All mutation of the
// pattern list goes through Entity methods; Patterns returns a copy.
// An Entity is not safe for concurrent use.
package filter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIndexOutOfRange is returned by SwapPatterns for an index outside the
// pattern list.
var ErrIndexOutOfRange = errors.New("pattern index out of range")

// Pattern is a single detection rule. Only Name is interpreted by Entity;
// the remaining fields are carried verbatim.
type Pattern struct {
	Name        string `yaml:"name" json:"name"`
	Expression  string `yaml:"expression" json:"expression"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Enabled     bool   `yaml:"enabled" json:"enabled"`
}

// Entity is one injection filter: its metadata and ordered patterns.
type Entity struct {
	Name        string
	Description string
	Enabled     bool

	patterns []Pattern
}

// NewEntity returns an enabled entity with no patterns.
func NewEntity() *Entity {
	return &Entity{
		Enabled:  true,
		patterns: []Pattern{},
	}
}

// AddPattern appends p without checking for an existing pattern of the
// same name.
func (e *Entity) AddPattern(p Pattern) {
	e.patterns = append(e.patterns, p)
}

// PatternExists reports whether a pattern named name is present. A name
// that is empty after trimming never exists; otherwise the comparison is
// exact and case-sensitive against the stored, untrimmed names.
func (e *Entity) PatternExists(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	return e.indexOf(name) >= 0
}

// AddOrUpdatePattern replaces the first pattern named p.Name in place, or
// appends p when PatternExists(p.Name) is false.
func (e *Entity) AddOrUpdatePattern(p Pattern) {
	if !e.PatternExists(p.Name) {
		e.AddPattern(p)
		return
	}
	e.patterns[e.indexOf(p.Name)] = p
}

// Pattern returns the first pattern named exactly name.
func (e *Entity) Pattern(name string) (Pattern, bool) {
	i := e.indexOf(name)
	if i < 0 {
		return Pattern{}, false
	}
	return e.patterns[i], true
}

// SwapPatterns exchanges the patterns at positions i and j.
func (e *Entity) SwapPatterns(i, j int) error {
	n := len(e.patterns)
	for _, idx := range []int{i, j} {
		if idx < 0 || idx >= n {
			return fmt.Errorf("swap %d and %d in %d patterns: index %d: %w", i, j, n, idx, ErrIndexOutOfRange)
		}
	}
	e.patterns[i], e.patterns[j] = e.patterns[j], e.patterns[i]
	return nil
}

// SetPatterns replaces the pattern list with a copy of patterns. Duplicate
// names are kept as given.
func (e *Entity) SetPatterns(patterns []Pattern) {
	e.patterns = make([]Pattern, len(patterns))
	copy(e.patterns, patterns)
}

// Patterns returns a copy of the pattern list in order.
func (e *Entity) Patterns() []Pattern {
	out := make([]Pattern, len(e.patterns))
	copy(out, e.patterns)
	return out
}

// PatternCount returns the number of patterns, duplicates included.
func (e *Entity) PatternCount() int {
	return len(e.patterns)
}

// Clone returns a deep copy that shares no pattern storage with e.
func (e *Entity) Clone() *Entity {
	c := *e
	c.SetPatterns(e.patterns)
	return &c
}

func (e *Entity) indexOf(name string) int {
	for i := range e.patterns {
		if e.patterns[i].Name == name {
			return i
		}
	}
	return -1
}
