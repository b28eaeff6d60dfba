package chart

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration matches every *ConfigurationError.
var ErrConfiguration = errors.New("invalid chart configuration")

// ConfigurationError reports a request that cannot be turned into a render call.
type ConfigurationError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	if e.Kind != "" {
		b.WriteString(string(e.Kind))
		b.WriteString(": ")
	}
	if e.Field != "" {
		b.WriteString(e.Field)
		b.WriteString(": ")
	}
	b.WriteString(e.Reason)
	return b.String()
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

func configErr(kind Kind, field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Kind: kind, Field: field, Reason: fmt.Sprintf(format, args...)}
}

// PassError is the single combined error of a pass aborted on its first failure.
type PassError struct {
	Kind    Kind
	Cause   error
	Skipped []Kind
}

func (e *PassError) Error() string {
	msg := fmt.Sprintf("an error occurred while trying to plot data: %v", e.Cause)
	if len(e.Skipped) > 0 {
		names := make([]string, len(e.Skipped))
		for i, k := range e.Skipped {
			names[i] = string(k)
		}
		msg += fmt.Sprintf(" (not rendered: %s)", strings.Join(names, ", "))
	}
	return msg
}

func (e *PassError) Unwrap() error {
	return e.Cause
}
