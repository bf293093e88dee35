package core

import "errors"

// Failure taxonomy shared by ingestion components. Everything except
// ErrConfigInvalid is recovered per file or per entry and only counted.
var (
	ErrUnreadable        = errors.New("unreadable")
	ErrMalformed         = errors.New("malformed")
	ErrIncomplete        = errors.New("incomplete")
	ErrPricingUnresolved = errors.New("pricing unresolved")
	ErrConfigInvalid     = errors.New("config invalid")
)

type FailureKind string

const (
	FailureNone              FailureKind = ""
	FailureUnreadable        FailureKind = "unreadable"
	FailureMalformed         FailureKind = "malformed"
	FailureIncomplete        FailureKind = "incomplete"
	FailurePricingUnresolved FailureKind = "pricing_unresolved"
	FailureConfigInvalid     FailureKind = "config_invalid"
)

// ClassifyFailure maps an error chain onto the taxonomy.
func ClassifyFailure(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, ErrConfigInvalid):
		return FailureConfigInvalid
	case errors.Is(err, ErrUnreadable):
		return FailureUnreadable
	case errors.Is(err, ErrMalformed):
		return FailureMalformed
	case errors.Is(err, ErrIncomplete):
		return FailureIncomplete
	case errors.Is(err, ErrPricingUnresolved):
		return FailurePricingUnresolved
	default:
		return FailureUnreadable
	}
}

// Fatal reports whether a failure should stop ingestion.
func (k FailureKind) Fatal() bool {
	return k == FailureConfigInvalid
}
