package bank

import "errors"

// Validation failures surfaced to callers. Each maps to a distinct
// human-readable message on the reporting sink; none is retried.
var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrAccountNotFound   = errors.New("account not found")
	ErrAccountExists     = errors.New("account already exists")
	ErrAccountInactive   = errors.New("account deactivated")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrSameAccount       = errors.New("cannot transfer to the same account")

	ErrUserNotFound   = errors.New("user not found")
	ErrUserInactive   = errors.New("user deactivated")
	ErrBadCredentials = errors.New("invalid credentials")

	ErrLoanNotFound  = errors.New("loan not found")
	ErrLoanNotOpen   = errors.New("loan is not open for this action")
	ErrNotAnEmployee = errors.New("assignee is not an employee")

	ErrAlreadyLoggedIn = errors.New("user already has a live session")
	ErrSessionsFull    = errors.New("session registry at capacity")
	ErrSessionUnknown  = errors.New("unknown session token")
)
