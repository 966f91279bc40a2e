package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"user-ledger/internal/domain"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrUsernameTaken), errors.Is(err, domain.ErrBalanceOverdraw):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidUsername),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidItem),
		errors.Is(err, domain.ErrWeakPassword):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProtectedAccount):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAuthFailed):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	var policy *domain.PasswordPolicyError
	if errors.As(err, &policy) {
		body["violations"] = policy.Violations
	}
	c.JSON(statusFor(err), body)
}
