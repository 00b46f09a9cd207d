package models

import (
	"fmt"
)

// BaseError is the base type for API errors
type BaseError struct {
	Error string `json:"error" example:"something bad"`
}

func NewBaseError(format string, args ...any) BaseError {
	return BaseError{
		Error: fmt.Sprintf(format, args...),
	}
}

// InternalServerError is returned in the body of an HTTP 500. TraceId is
// the correlation id callers should quote when reporting the failure.
type InternalServerError struct {
	BaseError
	TraceId string `json:"trace_id,omitempty"`
}

func NewApiInternalError(err error) BaseError {
	return BaseError{
		Error: err.Error(),
	}
}

// ValidationError is returned in the body of an HTTP 400
type ValidationError struct {
	BaseError
	Field string `json:"field,omitempty"`
}

func NewBadPayloadError() ValidationError {
	return ValidationError{
		BaseError: BaseError{
			Error: "request json is invalid",
		},
	}
}

func NewBadPathParameterError(param string) ValidationError {
	return ValidationError{
		Field: param,
		BaseError: BaseError{
			Error: "path parameter invalid",
		},
	}
}

func NewFieldNotPresentError(field string) ValidationError {
	return ValidationError{
		Field: field,
		BaseError: BaseError{
			Error: "field not present",
		},
	}
}

func NewFieldValidationError(field string, reason string) ValidationError {
	return ValidationError{
		Field: field,
		BaseError: BaseError{
			Error: reason,
		},
	}
}

// ConflictsError is returned in the body of an HTTP 409
type ConflictsError struct {
	ID string `json:"id" example:"a1fae5de-dd96-4b20-8362-95f6a574c4b1"`
	BaseError
}

func NewConflictsError(id string) ConflictsError {
	return ConflictsError{
		ID: id,
		BaseError: BaseError{
			Error: "resource already exists",
		},
	}
}

// NotFoundError is returned in the body of an HTTP 404. Ownership misses
// also return this, never a 403, so callers cannot enumerate resources
// they have no access to.
type NotFoundError struct {
	BaseError
	Resource string `json:"resource,omitempty"`
}

func NewNotFoundError(resource string) NotFoundError {
	return NotFoundError{
		Resource: resource,
		BaseError: BaseError{
			Error: "not found",
		},
	}
}

// NotAllowedError is returned in the body of an HTTP 403
type NotAllowedError struct {
	BaseError
	Reason string `json:"reason,omitempty"`
}

func NewNotAllowedError(reason string) NotAllowedError {
	return NotAllowedError{
		Reason: reason,
		BaseError: BaseError{
			Error: "operation not allowed",
		},
	}
}

// InvalidStateError is returned in the body of an HTTP 409 when an
// operation's precondition on another entity's state is violated. It
// names the current state so the caller knows what it was up against.
type InvalidStateError struct {
	BaseError
	Current string `json:"current" example:"paused"`
}

func NewInvalidStateError(reason string, current string) InvalidStateError {
	return InvalidStateError{
		Current: current,
		BaseError: BaseError{
			Error: reason,
		},
	}
}

// InvalidTransitionError is returned in the body of an HTTP 409 when a
// state machine precondition is violated. It names both the attempted and
// the current state.
type InvalidTransitionError struct {
	BaseError
	From string `json:"from" example:"closed"`
	To   string `json:"to" example:"active"`
}

func NewInvalidTransitionError(from, to string) InvalidTransitionError {
	return InvalidTransitionError{
		From: from,
		To:   to,
		BaseError: BaseError{
			Error: fmt.Sprintf("invalid transition from %s to %s", from, to),
		},
	}
}

// InsufficientCreditsError is returned in the body of an HTTP 409 when an
// organization has no introduction credits left. It is a distinct type so
// the UI can offer a purchase flow instead of a generic failure.
type InsufficientCreditsError struct {
	BaseError
	Balance int `json:"balance" example:"0"`
}

func NewInsufficientCreditsError(balance int) InsufficientCreditsError {
	return InsufficientCreditsError{
		Balance: balance,
		BaseError: BaseError{
			Error: "insufficient introduction credits",
		},
	}
}

// AlreadyExpiredError is returned in the body of an HTTP 409 when a
// response arrives for an introduction whose expiry has already passed,
// even if the stored status still reads pending.
type AlreadyExpiredError struct {
	BaseError
	ID string `json:"id"`
}

func NewAlreadyExpiredError(id string) AlreadyExpiredError {
	return AlreadyExpiredError{
		ID: id,
		BaseError: BaseError{
			Error: "introduction already expired",
		},
	}
}
