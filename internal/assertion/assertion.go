// Package assertion holds the gateway assertion settings that point at a
// stored injection filter: which message to scan, which parts of it, and
// which filter to apply.
package assertion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"injectionfilter/internal/constants"
	"injectionfilter/internal/management"
	pkgerrors "injectionfilter/pkg/errors"
)

type Assertion struct {
	TargetMessageVariable string `yaml:"target_message_variable" json:"target_message_variable"`
	IncludeURL            bool   `yaml:"include_url" json:"include_url"`
	IncludeBody           bool   `yaml:"include_body" json:"include_body"`
	FilterKey             string `yaml:"filter_key" json:"filter_key"`
}

// New returns an assertion that scans the request body.
func New() *Assertion {
	return &Assertion{
		TargetMessageVariable: constants.RequestTarget,
		IncludeBody:           true,
	}
}

func (a *Assertion) TargetsRequest() bool {
	return a.TargetMessageVariable == constants.RequestTarget
}

// Normalize applies the scope rule for non-request targets: only the body
// of such a message can be scanned.
func (a *Assertion) Normalize() {
	if !a.TargetsRequest() {
		a.IncludeBody = true
		a.IncludeURL = false
	}
}

func (a *Assertion) Validate() error {
	var errs []error
	if strings.TrimSpace(a.TargetMessageVariable) == "" {
		errs = append(errs, errors.New("target message variable is required"))
	}
	if a.FilterKey == "" {
		errs = append(errs, errors.New("a filter must be selected"))
	}
	if a.TargetsRequest() && !a.IncludeURL && !a.IncludeBody {
		errs = append(errs, errors.New("request scanning needs the URL, the body, or both"))
	}
	if len(errs) > 0 {
		return pkgerrors.Wrap(errors.Join(errs...), pkgerrors.ErrValidation)
	}
	return nil
}

// FilterLookup resolves a filter reference. management.Service satisfies it.
type FilterLookup interface {
	GetFilter(ctx context.Context, ref string) (*management.StoredFilter, error)
}

// Bind points a at the filter ref resolves to and normalizes it. The
// filter must exist and decode, and the bound assertion must validate;
// a is left unchanged otherwise.
func Bind(ctx context.Context, a *Assertion, lookup FilterLookup, ref string) (*management.StoredFilter, error) {
	sf, err := lookup.GetFilter(ctx, ref)
	if err != nil {
		return nil, err
	}

	bound := *a
	bound.FilterKey = sf.Key
	bound.Normalize()
	if err := bound.Validate(); err != nil {
		return nil, err
	}
	*a = bound
	return sf, nil
}

// Resolve returns the filter a is bound to.
func Resolve(ctx context.Context, a *Assertion, lookup FilterLookup) (*management.StoredFilter, error) {
	if a.FilterKey == "" {
		return nil, pkgerrors.ErrValidation.WithMessage("assertion is not bound to a filter")
	}
	return lookup.GetFilter(ctx, a.FilterKey)
}

func Decode(r io.Reader) (*Assertion, error) {
	a := New()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(a); err != nil && !errors.Is(err, io.EOF) {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid assertion document")
	}
	a.Normalize()
	return a, nil
}

func Load(path string) (*Assertion, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read assertion file: %w", err)
	}
	return Decode(bytes.NewReader(data))
}

// Save validates a and writes it to path as YAML.
func Save(path string, a *Assertion) error {
	a.Normalize()
	if err := a.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to encode assertion: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write assertion file: %w", err)
	}
	return nil
}
