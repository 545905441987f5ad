package gvas

import (
	"errors"
	"fmt"

	"gvas-edit/ue"
)

var (
	ErrIO              = errors.New("io error")
	ErrMalformedHeader = errors.New("malformed header")
	ErrTruncatedStream = errors.New("truncated stream")
	ErrUnknownTypeTag  = errors.New("unknown type tag")
	ErrLengthMismatch  = errors.New("length mismatch")
	ErrPathNotFound    = errors.New("path not found")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrStructChanged   = errors.New("struct type or guid changed")
	ErrNotOpen         = errors.New("no save file open")
)

// DecodeError is a fatal decode failure. Kind is one of ErrMalformedHeader,
// ErrTruncatedStream or ue.ErrInvalidEncoding.
type DecodeError struct {
	Kind   error
	Offset int
	Path   string
	Err    error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("gvas: %v at offset %d", e.Kind, e.Offset)
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DecodeError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// classify maps a low-level read error onto the decode error taxonomy.
func classify(err error) error {
	if errors.Is(err, ue.ErrInvalidEncoding) {
		return ue.ErrInvalidEncoding
	}
	// short reads and impossible lengths both mean the stream ends early
	return ErrTruncatedStream
}

// Diagnostic is a non-fatal decode or edit event. The value it refers to
// is still usable; for decode events it may have been kept as an
// OpaqueProperty.
type Diagnostic struct {
	Kind     error
	Path     string
	Type     string
	Offset   int
	Expected int
	Actual   int
	Err      error
}

func (d Diagnostic) Error() string {
	switch d.Kind {
	case ErrUnknownTypeTag:
		return fmt.Sprintf("%s: unknown type %q at offset %d", d.Path, d.Type, d.Offset)
	case ErrLengthMismatch:
		msg := fmt.Sprintf("%s: %s payload at offset %d: expected %d bytes, decoded %d", d.Path, d.Type, d.Offset, d.Expected, d.Actual)
		if d.Err != nil {
			msg += ": " + d.Err.Error()
		}
		return msg
	default:
		msg := fmt.Sprintf("%s: %v", d.Path, d.Kind)
		if d.Err != nil {
			msg += ": " + d.Err.Error()
		}
		return msg
	}
}

func (d Diagnostic) Unwrap() error { return d.Kind }
