package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"injectionfilter/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("notblank", validators.NotBlank)
	_ = v.RegisterValidation("mongouri", func(fl validator.FieldLevel) bool {
		uri := fl.Field().String()
		return strings.HasPrefix(uri, "mongodb://") || strings.HasPrefix(uri, "mongodb+srv://")
	})
	v.RegisterStructValidation(validateRetryOrder, RetryConfig{})
	return v
}

// validateRetryOrder checks the rules that relate two retry fields.
func validateRetryOrder(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(RetryConfig)
	if cfg.MaxInterval > 0 && cfg.InitialInterval > 0 && cfg.MaxInterval < cfg.InitialInterval {
		sl.ReportError(cfg.MaxInterval, "max_interval", "MaxInterval", "gte_initial_interval", "")
	}
	if cfg.MaxAttempts > 0 && cfg.Multiplier <= 0 {
		sl.ReportError(cfg.Multiplier, "multiplier", "Multiplier", "gt", "0")
	}
}

type section struct {
	prefix string
	value  interface{}
}

// ValidateStatic checks cfg without touching the network. Only the
// database section of the selected store type is checked, and the Kafka
// and circuit breaker sections only when they are enabled.
func ValidateStatic(cfg *Config) error {
	sections := []section{
		{"store", cfg.Store},
		{"management", cfg.Management},
		{"logging", cfg.Logging},
	}
	if db, prefix := selectedDatabase(cfg); db != nil {
		sections = append(sections, section{prefix, db})
	}
	if cfg.Broker.Kafka.Enabled {
		sections = append(sections, section{"broker.kafka", cfg.Broker.Kafka})
	}
	if cfg.CircuitBreaker.Enabled {
		sections = append(sections, section{"circuit_breaker", cfg.CircuitBreaker})
	}

	var errs []error
	for _, s := range sections {
		errs = append(errs, fieldErrors(s.prefix, validate.Struct(s.value))...)
	}
	return errors.Join(errs...)
}

func selectedDatabase(cfg *Config) (interface{}, string) {
	switch cfg.Store.Type {
	case constants.StoreTypeSQLite:
		return cfg.Database.SQLite, "database.sqlite"
	case constants.StoreTypeRedis:
		return cfg.Database.Redis, "database.redis"
	case constants.StoreTypePostgres:
		return cfg.Database.Postgres, "database.postgres"
	case constants.StoreTypeMongoDB:
		return cfg.Database.MongoDB, "database.mongodb"
	}
	return nil, ""
}

func fieldErrors(prefix string, err error) []error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}

	out := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		_, path, _ := strings.Cut(fe.Namespace(), ".")
		out = append(out, &ValidationError{Field: prefix + "." + path, Message: describeField(fe)})
	}
	return out
}

func describeField(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "value is required"
	case "oneof":
		return fmt.Sprintf("%v is not one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "port":
		return fmt.Sprintf("port must be between 1 and 65535, got %v", fe.Value())
	case "hostname_port":
		return fmt.Sprintf("%q is not a host:port address", fe.Value())
	case "mongouri":
		return "MongoDB URI must start with mongodb:// or mongodb+srv://"
	case "min":
		return fmt.Sprintf("at least %s value(s) required", fe.Param())
	case "gte", "gt", "lte":
		return fmt.Sprintf("must be %s %s, got %v", comparisonWords[fe.Tag()], fe.Param(), fe.Value())
	case "gte_initial_interval":
		return "max_interval must be greater than or equal to initial_interval"
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

var comparisonWords = map[string]string{
	"gte": "at least",
	"gt":  "greater than",
	"lte": "at most",
}
