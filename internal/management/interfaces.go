package management

import (
	"context"
)

// Service is the editor's view of the filter store. Filter references may
// be a full key or a bare id; ids are resolved against the key prefix.
type Service interface {
	ListFilters(ctx context.Context) ([]StoredFilter, error)
	FindFilters(ctx context.Context, expression string) ([]StoredFilter, error)
	GetFilter(ctx context.Context, ref string) (*StoredFilter, error)
	CreateFilter(ctx context.Context, req CreateFilterRequest) (*StoredFilter, error)
	UpdateFilter(ctx context.Context, ref string, req UpdateFilterRequest) (*StoredFilter, error)
	DeleteFilter(ctx context.Context, ref string) error

	UpsertPattern(ctx context.Context, ref string, p PatternInput) (*StoredFilter, error)
	SwapPatterns(ctx context.Context, ref string, i, j int) (*StoredFilter, error)
	ReplacePatterns(ctx context.Context, ref string, patterns []PatternInput) (*StoredFilter, error)
}
