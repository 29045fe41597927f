package core

import (
	"errors"
	"fmt"
)

// Error kinds. Callers branch on these with errors.Is.
var (
	ErrValidation         = errors.New("validation failed")
	ErrInvalidTransition  = errors.New("invalid role transition")
	ErrWriteConflict      = errors.New("write conflict")
	ErrPreconditionFailed = errors.New("precondition failed")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
)

// Specific reasons, always wrapped together with one of the kinds above.
var (
	ErrInvalidDate             = errors.New("invalid date")
	ErrInvalidAmount           = errors.New("invalid amount")
	ErrAmountSign              = errors.New("amount sign does not match transaction type")
	ErrEmptyDescription        = errors.New("empty description")
	ErrDescriptionTooLong      = errors.New("description too long (max 200 characters)")
	ErrEmptyCategory           = errors.New("empty category")
	ErrEmptyName               = errors.New("empty name")
	ErrEmptyHolderName         = errors.New("empty card holder name")
	ErrInvalidType             = errors.New("invalid transaction type")
	ErrInvalidPaymentMethod    = errors.New("invalid payment method")
	ErrMissingCreditCard       = errors.New("card payment requires a credit card")
	ErrMissingOwner            = errors.New("missing owner")
	ErrInvalidEmail            = errors.New("invalid email")
	ErrInvalidRole             = errors.New("invalid role")
	ErrInvalidInstallmentCount = errors.New("invalid installment count")
	ErrInvalidQuantity         = errors.New("invalid quantity")
	ErrMissingFirstDate        = errors.New("first installment date is required")
	ErrEmptyBatch              = errors.New("empty batch")
	ErrGroupSum                = errors.New("installments do not sum to the original amount")
	ErrGroupOrder              = errors.New("installment indices out of order")
	ErrGroupMismatch           = errors.New("installments disagree on shared attributes")
	ErrGroupSchedule           = errors.New("installments are not one calendar month apart")
	ErrProfileExists           = errors.New("profile already exists")
	ErrStaleRole               = errors.New("role changed concurrently")
)

func invalid(reason error) error {
	return fmt.Errorf("%w: %w", ErrValidation, reason)
}

// Invalid wraps reason as a validation failure.
func Invalid(reason error) error {
	return invalid(reason)
}
