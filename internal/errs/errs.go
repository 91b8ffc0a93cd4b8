// Package errs defines the error kinds a reconciliation run can fail with.
// Terminal kinds abort the run before any output is written; UnparsablePrice
// is row-scoped and only ever routes a row to the escalation sheet.
package errs

import (
	"errors"
	"fmt"
)

// Sentinel errors. Match with errors.Is.
var (
	// ErrMissingRequiredField indicates a logical field had no matching header.
	ErrMissingRequiredField = errors.New("missing required field")

	// ErrNoMatchingPromotionRows indicates the selected promotion has no rows.
	ErrNoMatchingPromotionRows = errors.New("no matching promotion rows")

	// ErrUnparsablePrice indicates a price cell could not be coerced to a number.
	ErrUnparsablePrice = errors.New("unparsable price")

	// ErrSourceUnavailable indicates an input or output file could not be opened.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInvalidSchema indicates a fixed-layout export had an unexpected shape.
	ErrInvalidSchema = errors.New("invalid schema")
)

// MissingFieldError names the logical field that could not be resolved.
type MissingFieldError struct {
	Dataset string
	Field   string
	Header  string
}

// Error implements the error interface
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("%s: no column matches %q (field %s)", e.Dataset, e.Header, e.Field)
}

// Is implements errors.Is support
func (e *MissingFieldError) Is(target error) bool {
	return target == ErrMissingRequiredField
}

// NewMissingFieldError creates a new MissingFieldError
func NewMissingFieldError(dataset, field, header string) *MissingFieldError {
	return &MissingFieldError{Dataset: dataset, Field: field, Header: header}
}

// NoPromotionRowsError names the promotion that selected nothing.
type NoPromotionRowsError struct {
	Promotion string
}

// Error implements the error interface
func (e *NoPromotionRowsError) Error() string {
	return fmt.Sprintf("no promotion rows found for %q", e.Promotion)
}

// Is implements errors.Is support
func (e *NoPromotionRowsError) Is(target error) bool {
	return target == ErrNoMatchingPromotionRows
}

// PriceError records a price cell that could not be parsed.
type PriceError struct {
	Key   string
	Value string
	Row   int
}

// Error implements the error interface
func (e *PriceError) Error() string {
	return fmt.Sprintf("row %d (%s): cannot parse price %q", e.Row, e.Key, e.Value)
}

// Is implements errors.Is support
func (e *PriceError) Is(target error) bool {
	return target == ErrUnparsablePrice
}

// SourceError wraps a failure to open an input or output file.
type SourceError struct {
	Path string
	Op   string
	Err  error
}

// Error implements the error interface
func (e *SourceError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: source unavailable", e.Op, e.Path)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap returns the underlying error
func (e *SourceError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *SourceError) Is(target error) bool {
	return target == ErrSourceUnavailable
}

// NewSourceError creates a new SourceError
func NewSourceError(op, path string, err error) *SourceError {
	return &SourceError{Op: op, Path: path, Err: err}
}

// SchemaError reports a fixed-layout export with too few columns.
type SchemaError struct {
	Source string
	Want   int
	Got    int
}

// Error implements the error interface
func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s does not have the expected number of columns: want at least %d, got %d",
		e.Source, e.Want, e.Got)
}

// Is implements errors.Is support
func (e *SchemaError) Is(target error) bool {
	return target == ErrInvalidSchema
}
