package cel

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/ext"

	"injectionfilter/internal/filter"
)

const (
	// selectorCostLimit bounds the work one selector may do per filter.
	selectorCostLimit = 1_000_000
	interruptEvery    = 100
)

// Env compiles selectors over stored filter metadata. Selectors see the
// variables key, name, description, enabled, pattern_count and patterns
// (a list of maps with name, expression, description and enabled), plus
// the string extension functions such as lowerAscii and split.
type Env struct {
	env *cel.Env
}

func NewEnv() (*Env, error) {
	env, err := cel.NewEnv(
		cel.Variable("key", cel.StringType),
		cel.Variable("name", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("enabled", cel.BoolType),
		cel.Variable("pattern_count", cel.IntType),
		cel.Variable("patterns", cel.ListType(cel.MapType(cel.StringType, cel.DynType))),
		ext.Strings(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Env{env: env}, nil
}

// Selector is a compiled boolean expression, safe to evaluate against
// many filters concurrently.
type Selector struct {
	source  string
	program cel.Program
}

// Compile type-checks expression and rejects anything that does not
// produce a bool.
func (e *Env) Compile(expression string) (*Selector, error) {
	ast, issues := e.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("invalid selector: %w", issues.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("selector must return bool, got %v", ast.OutputType())
	}

	program, err := e.env.Program(ast,
		cel.CostLimit(selectorCostLimit),
		cel.InterruptCheckFrequency(interruptEvery),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL program: %w", err)
	}
	return &Selector{source: expression, program: program}, nil
}

func (s *Selector) String() string { return s.source }

// Match reports whether the filter stored under key satisfies s.
func (s *Selector) Match(ctx context.Context, key string, f *filter.Entity) (bool, error) {
	out, _, err := s.program.ContextEval(ctx, activation(key, f))
	if err != nil {
		return false, fmt.Errorf("selector %q: %w", s.source, err)
	}
	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("selector %q returned %T", s.source, out.Value())
	}
	return matched, nil
}

func activation(key string, f *filter.Entity) map[string]interface{} {
	patterns := f.Patterns()
	list := make([]interface{}, len(patterns))
	for i, p := range patterns {
		list[i] = map[string]interface{}{
			"name":        p.Name,
			"expression":  p.Expression,
			"description": p.Description,
			"enabled":     p.Enabled,
		}
	}

	return map[string]interface{}{
		"key":           key,
		"name":          f.Name,
		"description":   f.Description,
		"enabled":       f.Enabled,
		"pattern_count": int64(len(patterns)),
		"patterns":      list,
	}
}
