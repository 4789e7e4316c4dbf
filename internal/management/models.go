package management

import "injectionfilter/internal/filter"

// StoredFilter is a decoded filter together with the key it is stored under.
type StoredFilter struct {
	Key    string         `json:"key" yaml:"key"`
	ID     string         `json:"id" yaml:"id"`
	Filter *filter.Entity `json:"-" yaml:"-"`
}

type PatternInput struct {
	Name        string `json:"name" yaml:"name" validate:"required,max=256"`
	Expression  string `json:"expression" yaml:"expression" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty" validate:"max=2000"`
	Enabled     *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

func (p PatternInput) toPattern() filter.Pattern {
	return filter.Pattern{
		Name:        p.Name,
		Expression:  p.Expression,
		Description: p.Description,
		Enabled:     getEnabledValue(p.Enabled),
	}
}

type CreateFilterRequest struct {
	// ID is optional; a random one is generated when empty.
	ID          string         `json:"id,omitempty" yaml:"id,omitempty" validate:"omitempty,max=128,printascii"`
	Name        string         `json:"name" yaml:"name" validate:"required,max=256"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" validate:"max=2000"`
	Enabled     *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Patterns    []PatternInput `json:"patterns,omitempty" yaml:"patterns,omitempty" validate:"dive"`
}

type UpdateFilterRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=256"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Enabled     *bool   `json:"enabled,omitempty"`
}

func (r UpdateFilterRequest) isEmpty() bool {
	return r.Name == nil && r.Description == nil && r.Enabled == nil
}

// FilterDocument is the YAML/JSON export form of a stored filter.
type FilterDocument struct {
	Key         string           `json:"key,omitempty" yaml:"key,omitempty"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool             `json:"enabled" yaml:"enabled"`
	Patterns    []filter.Pattern `json:"patterns" yaml:"patterns"`
}

func NewFilterDocument(sf StoredFilter) FilterDocument {
	return FilterDocument{
		Key:         sf.Key,
		Name:        sf.Filter.Name,
		Description: sf.Filter.Description,
		Enabled:     sf.Filter.Enabled,
		Patterns:    sf.Filter.Patterns(),
	}
}

func getEnabledValue(reqEnabled *bool) bool {
	if reqEnabled == nil {
		return true
	}
	return *reqEnabled
}
