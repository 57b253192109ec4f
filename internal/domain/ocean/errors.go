package ocean

import (
	"errors"
	"fmt"
)

// FetchErrorKind classifies adapter failures.
type FetchErrorKind string

const (
	FetchTimeout     FetchErrorKind = "timeout"
	FetchUnavailable FetchErrorKind = "unavailable"
)

// FetchError is returned by source adapters when no dataset could be
// produced.
type FetchError struct {
	Kind   FetchErrorKind
	Domain Domain
	Reason string
	Err    error
}

func (e *FetchError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Domain, e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s: %s", e.Domain, e.Kind, e.Reason)
}

func (e *FetchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewTimeout builds a timeout failure.
func NewTimeout(domain Domain, err error) *FetchError {
	return &FetchError{Kind: FetchTimeout, Domain: domain, Reason: "deadline exceeded", Err: err}
}

// NewUnavailable builds a non-timeout failure with a human readable reason.
func NewUnavailable(domain Domain, reason string, err error) *FetchError {
	return &FetchError{Kind: FetchUnavailable, Domain: domain, Reason: reason, Err: err}
}

// AsFetchError extracts a *FetchError from err's chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindOf reports the failure kind of err. Errors that are not FetchErrors
// count as unavailable.
func KindOf(err error) FetchErrorKind {
	if fe, ok := AsFetchError(err); ok {
		return fe.Kind
	}
	return FetchUnavailable
}
