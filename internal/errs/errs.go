// Package errs names the error kinds the core recognizes.
// Every kind wraps an underlying cause and carries enough context for the
// pipeline to decide whether to degrade, fail open, or surface ERROR.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a recognized error for control-flow decisions. It is not
// meant to be compared directly across packages — use Is or KindOf.
type Kind string

const (
	KindDuplicateMessage  Kind = "duplicate_message"
	KindGated             Kind = "gated"
	KindAccessDenied      Kind = "access_denied"
	KindParseFailure      Kind = "parse_failure"
	KindLowConfidence     Kind = "low_confidence"
	KindProviderFailure   Kind = "provider_failure"
	KindChildProcess      Kind = "child_process_failure"
	KindStale             Kind = "stale"
	KindTimeout           Kind = "timeout"
	KindPersistence       Kind = "persistence_failure"
	KindEnrichment        Kind = "enrichment_failure"
	KindDelivery          Kind = "delivery_failure"
)

// Error wraps a Kind with contextual detail and an optional cause.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a *Error of the given kind.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds a *Error of the given kind around an existing cause.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind from err, if any.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
