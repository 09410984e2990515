package domain

import "errors"

var (
	ErrInvalidPaymentAmount     = errors.New("invalid payment amount")
	ErrInvalidDeadline          = errors.New("invalid deadline")
	ErrInvalidBid               = errors.New("invalid bid")
	ErrUnauthorizedAccess       = errors.New("unauthorized access")
	ErrAgentNotActive           = errors.New("agent not active")
	ErrInvalidApplicationStatus = errors.New("invalid auction status")
	ErrInvariantViolation       = errors.New("auction invariant violation")
	ErrRateLimited              = errors.New("rate limited")
	ErrAuctionNotFound          = errors.New("auction not found")
	ErrAuctionExists            = errors.New("auction already exists")
)

type ErrorCategory int

const (
	CategoryInternal ErrorCategory = iota
	CategoryValidation
	CategoryAuthorization
	CategoryStateConflict
	CategoryInvariant
	CategoryNotFound
	CategoryConflict
	CategoryRateLimited
)

func (c ErrorCategory) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryAuthorization:
		return "authorization"
	case CategoryStateConflict:
		return "state_conflict"
	case CategoryInvariant:
		return "invariant"
	case CategoryNotFound:
		return "not_found"
	case CategoryConflict:
		return "conflict"
	case CategoryRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// CategoryOf tells callers how to react to an error returned by the
// auction services: fix the input, switch identity, refresh state, or
// escalate.
func CategoryOf(err error) ErrorCategory {
	switch {
	case err == nil:
		return CategoryInternal
	case errors.Is(err, ErrInvalidPaymentAmount),
		errors.Is(err, ErrInvalidDeadline),
		errors.Is(err, ErrInvalidBid):
		return CategoryValidation
	case errors.Is(err, ErrUnauthorizedAccess),
		errors.Is(err, ErrAgentNotActive):
		return CategoryAuthorization
	case errors.Is(err, ErrInvalidApplicationStatus):
		return CategoryStateConflict
	case errors.Is(err, ErrInvariantViolation):
		return CategoryInvariant
	case errors.Is(err, ErrAuctionNotFound):
		return CategoryNotFound
	case errors.Is(err, ErrAuctionExists):
		return CategoryConflict
	case errors.Is(err, ErrRateLimited):
		return CategoryRateLimited
	default:
		return CategoryInternal
	}
}
