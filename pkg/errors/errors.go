// Package errors provides the error types used across the machinemap
// system. Fatal invariant violations get typed errors so the driver can
// abort a run before anything is persisted; expected anomalies never become
// errors at all and are routed to the problem dataset instead.
package errors

import (
	"errors"
	"fmt"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Is is an alias for the standard library errors.Is.
var Is = errors.Is

// As is an alias for the standard library errors.As.
var As = errors.As

// Sentinel errors for the reconciliation engine. Every one of these is
// fatal for the run that raises it: the engine stops before the persist
// step rather than write partial output.
var (
	// ErrNotFound indicates that a requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates that provided input was invalid.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownArea indicates the listing site published an area the
	// engine has no code for. Proceeding could misfile machines under the
	// wrong jurisdiction, so this is a hard stop.
	ErrUnknownArea = errors.New("unknown area")

	// ErrDuplicateID indicates the merged dataset would contain the same
	// machine id more than once.
	ErrDuplicateID = errors.New("duplicate machine id")

	// ErrUnknownTransition indicates a stored/scraped status combination
	// the state machine has no rule for.
	ErrUnknownTransition = errors.New("unknown status transition")

	// ErrRunInProgress indicates another reconciliation run holds the
	// exclusive lease.
	ErrRunInProgress = errors.New("reconciliation already in progress")
)

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// AreaError reports unrecognized areas published by the listing site.
type AreaError struct {
	Unknown []string
}

// Error implements the error interface.
func (e *AreaError) Error() string {
	return fmt.Sprintf("listing published unrecognized areas: %v", e.Unknown)
}

// Is implements errors.Is support.
func (e *AreaError) Is(target error) bool {
	return target == ErrUnknownArea
}

// DuplicateIDError reports duplicate machine ids in the merged dataset,
// with the number of occurrences per offending id.
type DuplicateIDError struct {
	Counts map[int]int
}

// Error implements the error interface.
func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("identified duplicate machines: %v", e.Counts)
}

// Is implements errors.Is support.
func (e *DuplicateIDError) Is(target error) bool {
	return target == ErrDuplicateID
}

// TransitionError reports a stored/scraped status combination not covered
// by the state machine.
type TransitionError struct {
	Stored  string
	Scraped string
	URL     string
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("unknown state combination %q -> %q for %s", e.Stored, e.Scraped, e.URL)
}

// Is implements errors.Is support.
func (e *TransitionError) Is(target error) bool {
	return target == ErrUnknownTransition
}

// APIError represents an error from an external HTTP collaborator.
type APIError struct {
	Service    string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("API error from %s (status %d): %s", e.Service, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error from %s: %s", e.Service, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *APIError) Unwrap() error {
	return e.Err
}

// ParseError represents an error when parsing data formats.
type ParseError struct {
	Format  string // "json", "yaml", "html"
	File    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IOError represents an error during file I/O.
type IOError struct {
	Operation string // "read", "write", "create", "delete"
	Path      string
	Err       error
}

// Error implements the error interface.
func (e *IOError) Error() string {
	return fmt.Sprintf("IO error during %s of %s: %v", e.Operation, e.Path, e.Err)
}

// Unwrap implements errors.Unwrap.
func (e *IOError) Unwrap() error {
	return e.Err
}

// WrapIO wraps an error as an IOError.
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Operation: operation, Path: path, Err: err}
}

// WrapParse wraps an error as a ParseError.
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return &ParseError{Format: format, File: file, Message: err.Error(), Err: err}
}

// WrapAPI wraps an error as an APIError.
func WrapAPI(service string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &APIError{Service: service, StatusCode: statusCode, Message: err.Error(), Err: err}
}
