package tuning

import "fmt"

// ConfigError is a fatal configuration problem: bad tuning values, unknown level ids,
// active player counts outside the configured range.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func fieldErr(field, reason string) error { return &ConfigError{Field: field, Reason: reason} }

// NewConfigError is used by other packages that validate configuration-derived input.
func NewConfigError(field, reason string) error { return fieldErr(field, reason) }
