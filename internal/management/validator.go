package management

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/go-playground/validator/v10"

	"injectionfilter/internal/config"
	"injectionfilter/internal/constants"
)

// Validator checks editor input before it reaches a filter entity.
type Validator struct {
	validate *validator.Validate
	cfg      config.ValidationConfig
}

func NewValidator(cfg config.ValidationConfig) *Validator {
	if cfg.MaxPatterns <= 0 {
		cfg.MaxPatterns = constants.DefaultMaxPatterns
	}
	if cfg.MaxExpressionLength <= 0 {
		cfg.MaxExpressionLength = constants.DefaultMaxExpressionLength
	}
	return &Validator{
		validate: validator.New(),
		cfg:      cfg,
	}
}

func (v *Validator) ValidateCreate(req CreateFilterRequest) error {
	if err := v.validate.Struct(req); err != nil {
		return describe(err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	if strings.Contains(req.ID, "#") {
		return fmt.Errorf("id must not contain '#'")
	}
	return v.ValidatePatternList(req.Patterns)
}

func (v *Validator) ValidateUpdate(req UpdateFilterRequest) error {
	if req.isEmpty() {
		return fmt.Errorf("at least one of name, description or enabled must be set")
	}
	if err := v.validate.Struct(req); err != nil {
		return describe(err)
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		return fmt.Errorf("name must not be blank")
	}
	return nil
}

// ValidatePattern rejects patterns whose name cannot establish identity and
// expressions that do not compile.
func (v *Validator) ValidatePattern(p PatternInput) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("pattern name must not be blank")
	}
	if err := v.validate.Struct(p); err != nil {
		return fmt.Errorf("pattern %q: %w", p.Name, describe(err))
	}
	if len(p.Expression) > v.cfg.MaxExpressionLength {
		return fmt.Errorf("pattern %q: expression exceeds %d characters", p.Name, v.cfg.MaxExpressionLength)
	}
	if v.cfg.CheckExpressions {
		if err := checkExpression(p.Expression); err != nil {
			return fmt.Errorf("pattern %q: %w", p.Name, err)
		}
	}
	return nil
}

func (v *Validator) ValidatePatternList(patterns []PatternInput) error {
	if err := v.ValidatePatternCount(len(patterns)); err != nil {
		return err
	}
	for _, p := range patterns {
		if err := v.ValidatePattern(p); err != nil {
			return err
		}
	}
	return nil
}

func (v *Validator) ValidatePatternCount(n int) error {
	if n > v.cfg.MaxPatterns {
		return fmt.Errorf("a filter may hold at most %d patterns, got %d", v.cfg.MaxPatterns, n)
	}
	return nil
}

// duplicateNames returns the names that occur more than once, in first
// occurrence order.
func duplicateNames(patterns []PatternInput) []string {
	seen := make(map[string]int, len(patterns))
	var dups []string
	for _, p := range patterns {
		seen[p.Name]++
		if seen[p.Name] == 2 {
			dups = append(dups, p.Name)
		}
	}
	return dups
}

func checkExpression(expr string) error {
	if _, err := regexp2.Compile(expr, regexp2.None); err != nil {
		return fmt.Errorf("invalid expression: %w", err)
	}
	return nil
}

func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", strings.ToLower(fe.Field())))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", strings.ToLower(fe.Field()), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %q validation", strings.ToLower(fe.Field()), fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
