package management

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"injectionfilter/internal/config"
	"injectionfilter/internal/filter"
	"injectionfilter/internal/logger"
	"injectionfilter/pkg/cel"
	pkgerrors "injectionfilter/pkg/errors"
	"injectionfilter/pkg/logging"
	"injectionfilter/pkg/metrics"
	"injectionfilter/pkg/models"
	"injectionfilter/pkg/retry"
	"injectionfilter/pkg/tracing"
)

type service struct {
	repo        Repository
	validator   *Validator
	selectors   *cel.Env
	events      EventPublisher
	logger      logger.Logger
	retryPolicy retry.Policy
	newID       func() string
}

type ServiceOption func(*service)

func WithValidator(v *Validator) ServiceOption {
	return func(s *service) {
		s.validator = v
	}
}

func WithEventPublisher(p EventPublisher) ServiceOption {
	return func(s *service) {
		s.events = p
	}
}

func WithLogger(l logger.Logger) ServiceOption {
	return func(s *service) {
		s.logger = l
	}
}

func WithRetryPolicy(p retry.Policy) ServiceOption {
	return func(s *service) {
		s.retryPolicy = p
	}
}

func WithIDGenerator(gen func() string) ServiceOption {
	return func(s *service) {
		s.newID = gen
	}
}

func NewService(repo Repository, opts ...ServiceOption) Service {
	s := &service{
		repo:        repo,
		logger:      logger.NopLogger(),
		retryPolicy: retry.DefaultPolicy(),
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.validator == nil {
		s.validator = NewValidator(config.ValidationConfig{CheckExpressions: true})
	}
	return s
}

// RetryPolicyFromConfig fills unset fields from retry.DefaultPolicy.
func RetryPolicyFromConfig(cfg config.RetryConfig) retry.Policy {
	policy := retry.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		policy.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialInterval > 0 {
		policy.InitialInterval = cfg.InitialInterval
	}
	if cfg.MaxInterval > 0 {
		policy.MaxInterval = cfg.MaxInterval
	}
	if cfg.Multiplier > 0 {
		policy.Multiplier = cfg.Multiplier
	}
	if cfg.MaxElapsedTime > 0 {
		policy.MaxElapsedTime = cfg.MaxElapsedTime
	}
	return policy
}

func (s *service) ListFilters(ctx context.Context) ([]StoredFilter, error) {
	ctx, span := tracing.Start(ctx, "management", "list_filters")
	defer span.End()

	filters, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.storeError(err)
	}
	span.SetAttributes(attribute.Int("filters.count", len(filters)))
	return filters, nil
}

func (s *service) FindFilters(ctx context.Context, expression string) ([]StoredFilter, error) {
	ctx, span := tracing.Start(ctx, "management", "find_filters")
	defer span.End()

	if s.selectors == nil {
		env, err := cel.NewEnv()
		if err != nil {
			return nil, pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		s.selectors = env
	}

	selector, err := s.selectors.Compile(expression)
	if err != nil {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("invalid selector expression")
	}

	filters, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.storeError(err)
	}

	matched := make([]StoredFilter, 0, len(filters))
	for _, sf := range filters {
		ok, err := selector.Match(ctx, sf.Key, sf.Filter)
		if err != nil {
			return nil, pkgerrors.ErrValidation.WithCause(err).WithDetail("key", sf.Key)
		}
		if ok {
			matched = append(matched, sf)
		}
	}
	span.SetAttributes(attribute.Int("filters.matched", len(matched)))
	return matched, nil
}

func (s *service) GetFilter(ctx context.Context, ref string) (*StoredFilter, error) {
	key := s.repo.KeyFor(ref)
	e, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.stored(key, e), nil
}

func (s *service) CreateFilter(ctx context.Context, req CreateFilterRequest) (sf *StoredFilter, err error) {
	if err := s.validator.ValidateCreate(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	if dups := duplicateNames(req.Patterns); len(dups) > 0 {
		return nil, pkgerrors.ErrConflict.WithMessage("duplicate pattern names: %s", strings.Join(dups, ", "))
	}

	id := req.ID
	if id == "" {
		id = s.newID()
	}
	key := s.repo.KeyFor(id)

	ctx, span := s.startMutation(ctx, "create", key)
	defer func() { s.endMutation(span, "create", err) }()

	_, found, err := s.repo.Load(ctx, key)
	if err != nil && !errors.Is(err, ErrNotAFilter) {
		return nil, s.storeError(err)
	}
	if found || err != nil {
		return nil, pkgerrors.ErrConflict.WithMessage("key %s is already in use", key)
	}

	e := filter.NewEntity()
	e.Name = req.Name
	e.Description = req.Description
	e.Enabled = getEnabledValue(req.Enabled)
	for _, p := range req.Patterns {
		e.AddPattern(p.toPattern())
	}

	if err := s.save(ctx, "create", key, e); err != nil {
		return nil, err
	}
	s.publish(ctx, models.ActionCreate, key, e)

	s.logger.InfowCtx(ctx, "Filter created",
		"name", e.Name,
		"patterns", e.PatternCount(),
	)
	return s.stored(key, e), nil
}

func (s *service) UpdateFilter(ctx context.Context, ref string, req UpdateFilterRequest) (*StoredFilter, error) {
	if err := s.validator.ValidateUpdate(req); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	return s.mutate(ctx, "update", models.ActionUpdate, ref, func(e *filter.Entity) error {
		if req.Name != nil {
			e.Name = *req.Name
		}
		if req.Description != nil {
			e.Description = *req.Description
		}
		if req.Enabled != nil {
			e.Enabled = *req.Enabled
		}
		return nil
	})
}

func (s *service) DeleteFilter(ctx context.Context, ref string) (err error) {
	key := s.repo.KeyFor(ref)
	ctx, span := s.startMutation(ctx, "delete", key)
	defer func() { s.endMutation(span, "delete", err) }()

	e, err := s.load(ctx, key)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, key); err != nil {
		return s.storeError(err)
	}
	s.publish(ctx, models.ActionDelete, key, e)

	s.logger.InfowCtx(ctx, "Filter deleted", "name", e.Name)
	return nil
}

// UpsertPattern replaces the first pattern with the same name, or appends
// p when there is none.
func (s *service) UpsertPattern(ctx context.Context, ref string, p PatternInput) (*StoredFilter, error) {
	if err := s.validator.ValidatePattern(p); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}

	return s.mutate(ctx, "upsert_pattern", models.ActionUpsertPattern, ref, func(e *filter.Entity) error {
		if !e.PatternExists(p.Name) {
			if err := s.validator.ValidatePatternCount(e.PatternCount() + 1); err != nil {
				return pkgerrors.Wrap(err, pkgerrors.ErrValidation)
			}
		}
		e.AddOrUpdatePattern(p.toPattern())
		return nil
	})
}

func (s *service) SwapPatterns(ctx context.Context, ref string, i, j int) (*StoredFilter, error) {
	return s.mutate(ctx, "swap_patterns", models.ActionSwapPatterns, ref, func(e *filter.Entity) error {
		if err := e.SwapPatterns(i, j); err != nil {
			if errors.Is(err, filter.ErrIndexOutOfRange) {
				return pkgerrors.ErrOutOfRange.WithCause(err).WithDetail("pattern_count", e.PatternCount())
			}
			return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
		}
		return nil
	})
}

// ReplacePatterns swaps in a whole new pattern list. Duplicate names are
// rejected here because the entity itself does not enforce uniqueness.
func (s *service) ReplacePatterns(ctx context.Context, ref string, patterns []PatternInput) (*StoredFilter, error) {
	if err := s.validator.ValidatePatternList(patterns); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.ErrValidation)
	}
	if dups := duplicateNames(patterns); len(dups) > 0 {
		return nil, pkgerrors.ErrConflict.WithMessage("duplicate pattern names: %s", strings.Join(dups, ", "))
	}

	list := make([]filter.Pattern, 0, len(patterns))
	for _, p := range patterns {
		list = append(list, p.toPattern())
	}

	return s.mutate(ctx, "import_patterns", models.ActionImportPatterns, ref, func(e *filter.Entity) error {
		e.SetPatterns(list)
		return nil
	})
}

// mutate loads the filter at ref, applies fn and writes the result back.
// Nothing is written when fn fails.
func (s *service) mutate(ctx context.Context, op, action, ref string, fn func(e *filter.Entity) error) (sf *StoredFilter, err error) {
	key := s.repo.KeyFor(ref)
	ctx, span := s.startMutation(ctx, op, key)
	defer func() { s.endMutation(span, op, err) }()

	current, err := s.load(ctx, key)
	if err != nil {
		return nil, err
	}

	e := current.Clone()
	if err := fn(e); err != nil {
		return nil, err
	}

	if err := s.save(ctx, op, key, e); err != nil {
		return nil, err
	}
	s.publish(ctx, action, key, e)

	s.logger.InfowCtx(ctx, "Filter saved",
		"name", e.Name,
		"patterns_before", current.PatternCount(),
		"patterns", e.PatternCount(),
	)
	return s.stored(key, e), nil
}

func (s *service) startMutation(ctx context.Context, op, key string) (context.Context, trace.Span) {
	ctx = logging.WithOperation(ctx, op)
	ctx = logging.WithFilterKey(ctx, key)
	return tracing.Start(ctx, "management", op, attribute.String("filter.key", key))
}

func (s *service) endMutation(span trace.Span, op string, err error) {
	metrics.IncFilterMutation(op, err)
	tracing.End(span, err)
}

func (s *service) load(ctx context.Context, key string) (*filter.Entity, error) {
	e, found, err := s.repo.Load(ctx, key)
	if errors.Is(err, ErrNotAFilter) {
		return nil, pkgerrors.ErrValidation.WithCause(err).WithMessage("key %s does not hold an injection filter", key)
	}
	if err != nil {
		return nil, s.storeError(err)
	}
	if !found {
		return nil, pkgerrors.ErrNotFound.WithDetail("key", key)
	}
	return e, nil
}

func (s *service) save(ctx context.Context, op, key string, e *filter.Entity) error {
	err := retry.Do(ctx, s.retryPolicy, func(ctx context.Context) error {
		return s.repo.Save(ctx, key, e)
	}, func(a retry.Attempt) {
		metrics.IncRetryAttempt(op)
		s.logger.WarnwCtx(ctx, "Retrying filter save",
			"attempt", a.Number,
			"max_attempts", s.retryPolicy.MaxAttempts,
			"next_delay", a.Delay,
			"error", a.Err,
		)
	})
	return s.storeError(err)
}

func (s *service) publish(ctx context.Context, action, key string, e *filter.Entity) {
	if s.events == nil {
		return
	}
	summary := StoredFilterSummary{Name: e.Name, PatternCount: e.PatternCount()}
	if err := s.events.PublishFilterEvent(ctx, action, key, summary); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish change event",
			"action", action,
			"error", err,
		)
	}
}

func (s *service) storeError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *pkgerrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	var fatalErr retry.FatalError
	if errors.As(err, &fatalErr) {
		return pkgerrors.Wrap(err, pkgerrors.ErrInternal)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(err, pkgerrors.ErrTimeout)
	}
	return pkgerrors.Wrap(err, pkgerrors.ErrStoreUnavailable)
}

func (s *service) stored(key string, e *filter.Entity) *StoredFilter {
	return &StoredFilter{Key: key, ID: s.repo.IDOf(key), Filter: e}
}
