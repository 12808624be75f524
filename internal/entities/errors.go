package entities

import "errors"

var (
	ErrOrderNotFound       = errors.New("order not found")
	ErrReturnOrderNotFound = errors.New("return order not found")
	ErrPaymentNotFound     = errors.New("payment not found")
	ErrAgentNotFound       = errors.New("delivery agent not found")
	ErrUserNotFound        = errors.New("user not found")

	// ErrInvalidTransition covers every status/refund-status precondition
	// violation: already cancelled, not cancellable, no-op update, refund
	// already initiated or processed, return not approved.
	ErrInvalidTransition = errors.New("invalid status transition")

	ErrValidation          = errors.New("validation failed")
	ErrReturnWindowExpired = errors.New("return window has passed")

	// ErrConflict reports a lost optimistic-concurrency race or a duplicate
	// agent assignment.
	ErrConflict = errors.New("conflicting update")

	ErrExternalService  = errors.New("payment gateway request failed")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
