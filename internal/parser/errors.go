package parser

import (
	"errors"
	"fmt"
)

// ErrorKind classifies ingestion failures.
type ErrorKind string

const (
	KindUnsupportedFormat ErrorKind = "unsupported_format"
	KindParseError        ErrorKind = "parse_error"
)

var (
	// ErrUnsupportedFormat matches failures for extensions outside the dispatch table.
	ErrUnsupportedFormat = errors.New("this file is not supported")
	// ErrParse matches failures raised by an underlying reader.
	ErrParse = errors.New("an error occurred while trying to read data")
)

// IngestionError is returned by Resolver.Resolve. It ends the current pass;
// there is no retry.
type IngestionError struct {
	Kind      ErrorKind
	File      string
	Extension string
	Cause     error
}

func (e *IngestionError) Error() string {
	switch e.Kind {
	case KindUnsupportedFormat:
		return fmt.Sprintf("%s: %q (extension %q)", ErrUnsupportedFormat, e.File, e.Extension)
	default:
		return fmt.Sprintf("%s: %s: %v", ErrParse, e.File, e.Cause)
	}
}

func (e *IngestionError) Unwrap() error {
	return e.Cause
}

// Is makes errors.Is(err, ErrUnsupportedFormat) and errors.Is(err, ErrParse) work.
func (e *IngestionError) Is(target error) bool {
	switch target {
	case ErrUnsupportedFormat:
		return e.Kind == KindUnsupportedFormat
	case ErrParse:
		return e.Kind == KindParseError
	}
	return false
}
