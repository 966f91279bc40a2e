package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidAmount is returned for negative balance amounts.
	ErrInvalidAmount = errors.New("amount must not be negative")
	// ErrInvalidItem is returned for an item with an empty name or a negative price.
	ErrInvalidItem = errors.New("invalid item")
	// ErrInvalidUsername is returned for empty or already registered usernames.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrUsernameTaken is returned when registering a username that already exists.
	ErrUsernameTaken = fmt.Errorf("%w: username already exists", ErrInvalidUsername)
	// ErrWeakPassword is returned when a password violates the password policy.
	ErrWeakPassword = errors.New("weak password")
	// ErrNotFound is returned for unknown users.
	ErrNotFound = errors.New("user not found")
	// ErrProtectedAccount is returned when removing the bootstrap account.
	ErrProtectedAccount = errors.New("account is protected")
	// ErrAuthFailed indicates a credential mismatch.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrBalanceOverdraw is returned when a protected decrement exceeds the balance.
	ErrBalanceOverdraw = errors.New("amount exceeds account balance")
)

// PasswordPolicyError lists every policy rule a password violates.
type PasswordPolicyError struct {
	Violations []string
}

func (e *PasswordPolicyError) Error() string {
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Violations, "; ")
}

func (e *PasswordPolicyError) Unwrap() error {
	return ErrWeakPassword
}
