package filter

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(e *Entity) []string {
	out := make([]string, 0, e.PatternCount())
	for _, p := range e.Patterns() {
		out = append(out, p.Name)
	}
	return out
}

func TestNewEntity(t *testing.T) {
	e := NewEntity()

	assert.True(t, e.Enabled)
	assert.Empty(t, e.Name)
	assert.Empty(t, e.Description)
	assert.Equal(t, 0, e.PatternCount())
	assert.NotNil(t, e.Patterns())
}

func TestEntity_EmptyLookups(t *testing.T) {
	e := NewEntity()

	assert.False(t, e.PatternExists("x"))
	_, ok := e.Pattern("x")
	assert.False(t, ok)
}

func TestEntity_AddOrUpdateReplacesInPlace(t *testing.T) {
	e := NewEntity()
	e.AddPattern(Pattern{Name: "a", Expression: "v1"})
	e.AddOrUpdatePattern(Pattern{Name: "a", Expression: "v2"})

	require.Equal(t, 1, e.PatternCount())
	got, ok := e.Pattern("a")
	require.True(t, ok)
	assert.Equal(t, "v2", got.Expression)
}

func TestEntity_AddOrUpdateAppendsNewName(t *testing.T) {
	e := NewEntity()
	e.AddOrUpdatePattern(Pattern{Name: "a"})
	e.AddOrUpdatePattern(Pattern{Name: "b"})

	assert.Equal(t, []string{"a", "b"}, names(e))
}

func TestEntity_AddOrUpdateKeepsIndex(t *testing.T) {
	e := NewEntity()
	e.SetPatterns([]Pattern{{Name: "a"}, {Name: "b"}, {Name: "c"}})

	e.AddOrUpdatePattern(Pattern{Name: "b", Description: "changed"})

	assert.Equal(t, []string{"a", "b", "c"}, names(e))
	assert.Equal(t, "changed", e.Patterns()[1].Description)
}

func TestEntity_AddOrUpdateNeverDuplicates(t *testing.T) {
	ops := []string{"a", "b", "a", "c", "b", "b", "d", "a"}
	e := NewEntity()
	for i, name := range ops {
		e.AddOrUpdatePattern(Pattern{Name: name, Expression: string(rune('0' + i))})
	}

	seen := map[string]bool{}
	for _, n := range names(e) {
		assert.False(t, seen[n], "duplicate name %q", n)
		seen[n] = true
	}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(e))

	got, _ := e.Pattern("a")
	assert.Equal(t, "7", got.Expression)
}

func TestEntity_AddOrUpdateUpdatesFirstDuplicateOnly(t *testing.T) {
	e := NewEntity()
	e.AddPattern(Pattern{Name: "a", Expression: "1"})
	e.AddPattern(Pattern{Name: "a", Expression: "2"})

	e.AddOrUpdatePattern(Pattern{Name: "a", Expression: "3"})

	p := e.Patterns()
	require.Len(t, p, 2)
	assert.Equal(t, "3", p[0].Expression)
	assert.Equal(t, "2", p[1].Expression)
}

func TestEntity_PatternExists(t *testing.T) {
	e := NewEntity()
	e.AddPattern(Pattern{Name: "SqlInjection"})
	e.AddPattern(Pattern{Name: " padded "})

	tests := []struct {
		name string
		want bool
	}{
		{"SqlInjection", true},
		{"sqlinjection", false},
		{"SqlInjection ", false},
		{" padded ", true},
		{"padded", false},
		{"", false},
		{"   ", false},
		{"\t\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.PatternExists(tt.name))
		})
	}
}

func TestEntity_EmptyNameIsNeverDeduplicated(t *testing.T) {
	e := NewEntity()
	e.AddPattern(Pattern{Name: ""})
	e.AddPattern(Pattern{Name: ""})
	assert.Equal(t, 2, e.PatternCount())

	e.AddOrUpdatePattern(Pattern{Name: ""})
	assert.Equal(t, 3, e.PatternCount())
	assert.False(t, e.PatternExists(""))

	_, ok := e.Pattern("")
	assert.True(t, ok, "lookup is exact and does not trim")
}

func TestEntity_SwapPatterns(t *testing.T) {
	e := NewEntity()
	e.AddPattern(Pattern{Name: "a"})
	e.AddPattern(Pattern{Name: "b"})

	require.NoError(t, e.SwapPatterns(0, 1))
	assert.Equal(t, []string{"b", "a"}, names(e))
}

func TestEntity_SwapPatternsTwiceRestoresOrder(t *testing.T) {
	e := NewEntity()
	e.SetPatterns([]Pattern{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}})
	original := e.Patterns()

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			require.NoError(t, e.SwapPatterns(i, j))
			require.NoError(t, e.SwapPatterns(i, j))
			assert.Equal(t, original, e.Patterns())
		}
	}
}

func TestEntity_SwapPatternsSameIndex(t *testing.T) {
	e := NewEntity()
	e.AddPattern(Pattern{Name: "a"})

	require.NoError(t, e.SwapPatterns(0, 0))
	assert.Equal(t, []string{"a"}, names(e))
}

func TestEntity_SwapPatternsOutOfRange(t *testing.T) {
	e := NewEntity()
	e.SetPatterns([]Pattern{{Name: "a"}, {Name: "b"}, {Name: "c"}})

	tests := []struct {
		name string
		i, j int
	}{
		{"negative first", -1, 0},
		{"negative second", 0, -1},
		{"first equals length", 3, 0},
		{"second past end", 1, 10},
		{"both invalid", 5, -5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := e.SwapPatterns(tt.i, tt.j)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrIndexOutOfRange))
			assert.Equal(t, []string{"a", "b", "c"}, names(e))
		})
	}

	empty := NewEntity()
	assert.ErrorIs(t, empty.SwapPatterns(0, 0), ErrIndexOutOfRange)
}

func TestEntity_SetPatternsCopiesInput(t *testing.T) {
	input := []Pattern{{Name: "x"}, {Name: "x"}, {Name: "y"}}
	e := NewEntity()
	e.SetPatterns(input)

	input[0].Name = "mutated"

	assert.Equal(t, []string{"x", "x", "y"}, names(e))
}

func TestEntity_PatternsReturnsCopy(t *testing.T) {
	e := NewEntity()
	e.AddPattern(Pattern{Name: "a", Expression: "orig"})

	view := e.Patterns()
	view[0].Expression = "changed"
	view = append(view, Pattern{Name: "b"})

	assert.Equal(t, 1, e.PatternCount())
	got, _ := e.Pattern("a")
	assert.Equal(t, "orig", got.Expression)
	assert.Len(t, view, 2)
}

func TestEntity_Clone(t *testing.T) {
	e := NewEntity()
	e.Name = "default"
	e.AddPattern(Pattern{Name: "a"})

	c := e.Clone()
	c.Name = "copy"
	c.AddPattern(Pattern{Name: "b"})

	assert.Equal(t, "default", e.Name)
	assert.Equal(t, 1, e.PatternCount())
	assert.Equal(t, 2, c.PatternCount())
}
