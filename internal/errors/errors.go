package errors

import "fmt"

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationError struct {
	Message string
	Details []ValidationDetail
}

func (e *ValidationError) Error() string {
	return e.Message
}

func NewValidationError(message string, details ...ValidationDetail) *ValidationError {
	return &ValidationError{
		Message: message,
		Details: details,
	}
}

func IsValidationError(err error) (*ValidationError, bool) {
	if ve, ok := err.(*ValidationError); ok {
		return ve, true
	}
	return nil, false
}

// NotFoundError indicates a referenced ledger entry does not exist.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func NewNotFoundError(message string) *NotFoundError {
	return &NotFoundError{Message: message}
}

func IsNotFoundError(err error) (*NotFoundError, bool) {
	if nfe, ok := err.(*NotFoundError); ok {
		return nfe, true
	}
	return nil, false
}

// InvalidStateError indicates an order transition attempted out of sequence.
type InvalidStateError struct {
	Message string
}

func (e *InvalidStateError) Error() string {
	return e.Message
}

func NewInvalidStateError(message string) *InvalidStateError {
	return &InvalidStateError{Message: message}
}

func IsInvalidStateError(err error) (*InvalidStateError, bool) {
	if ise, ok := err.(*InvalidStateError); ok {
		return ise, true
	}
	return nil, false
}

// UnauthorizedError indicates the caller lacks the role required for the
// attempted transition or mint.
type UnauthorizedError struct {
	Message string
}

func (e *UnauthorizedError) Error() string {
	return e.Message
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	return &UnauthorizedError{Message: message}
}

func IsUnauthorizedError(err error) (*UnauthorizedError, bool) {
	if ue, ok := err.(*UnauthorizedError); ok {
		return ue, true
	}
	return nil, false
}

// EscrowMismatchError indicates the attached payment does not equal the
// declared order amount at creation.
type EscrowMismatchError struct {
	Message string
}

func (e *EscrowMismatchError) Error() string {
	return e.Message
}

func NewEscrowMismatchError(message string) *EscrowMismatchError {
	return &EscrowMismatchError{Message: message}
}

func IsEscrowMismatchError(err error) (*EscrowMismatchError, bool) {
	if eme, ok := err.(*EscrowMismatchError); ok {
		return eme, true
	}
	return nil, false
}

// InsufficientBalanceError indicates a transfer would drive a balance negative.
type InsufficientBalanceError struct {
	Message string
}

func (e *InsufficientBalanceError) Error() string {
	return e.Message
}

func NewInsufficientBalanceError(message string) *InsufficientBalanceError {
	return &InsufficientBalanceError{Message: message}
}

func IsInsufficientBalanceError(err error) (*InsufficientBalanceError, bool) {
	if ibe, ok := err.(*InsufficientBalanceError); ok {
		return ibe, true
	}
	return nil, false
}

// InsufficientRewardPoolError indicates the ledger's funded reward reserve
// cannot cover the reward quantum at settlement.
type InsufficientRewardPoolError struct {
	Message string
}

func (e *InsufficientRewardPoolError) Error() string {
	return e.Message
}

func NewInsufficientRewardPoolError(message string) *InsufficientRewardPoolError {
	return &InsufficientRewardPoolError{Message: message}
}

func IsInsufficientRewardPoolError(err error) (*InsufficientRewardPoolError, bool) {
	if irpe, ok := err.(*InsufficientRewardPoolError); ok {
		return irpe, true
	}
	return nil, false
}

type DeadlockError struct {
	Message string
}

func (e *DeadlockError) Error() string {
	return e.Message
}

func NewDeadlockError(message string) *DeadlockError {
	return &DeadlockError{Message: message}
}

func IsDeadlockError(err error) (*DeadlockError, bool) {
	if de, ok := err.(*DeadlockError); ok {
		return de, true
	}
	return nil, false
}

type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{
		Message: message,
		Cause:   cause,
	}
}
