package domain

import "errors"

// Sentinel errors for the domain layer. These provide consistent, checkable
// errors for common business logic failures.
var (
	ErrNotFound            = errors.New("requested resource not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidCredentials  = errors.New("invalid credentials provided")
)
