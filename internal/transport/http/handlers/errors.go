package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valcriss/sovrane/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

// authErrorCases is the shared mapping for authentication flows. Messages
// stay opaque: callers cannot tell a spent token from garbage, or a wrong
// password from an unknown account.
var authErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "invalid credentials"},
	{Err: usecase.ErrInvalidAccessToken, Status: http.StatusUnauthorized, Message: "invalid token"},
	{Err: usecase.ErrExpiredAccessToken, Status: http.StatusUnauthorized, Message: "invalid token"},
	{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "invalid refresh token"},
	{Err: usecase.ErrInvalidResetToken, Status: http.StatusBadRequest, Message: "invalid or expired reset token"},
	{Err: usecase.ErrPermissionDenied, Status: http.StatusForbidden, Message: "forbidden"},
	{Err: usecase.ErrInvalidMFACode, Status: http.StatusUnauthorized, Message: "invalid code"},
	{Err: usecase.ErrMFANotEnabled, Status: http.StatusBadRequest, Message: "mfa not enabled"},
	{Err: usecase.ErrMFAAlreadyEnabled, Status: http.StatusConflict, Message: "mfa already enabled"},
	{Err: usecase.ErrTooManyAttempts, Status: http.StatusTooManyRequests, Message: "too many attempts"},
	{Err: usecase.ErrAccountSuspended, Status: http.StatusForbidden, Message: "account suspended"},
	{Err: usecase.ErrNotSupported, Status: http.StatusBadRequest, Message: "operation not supported"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
}

// RespondWithMappedError resolves the error against known cases or falls
// back to a generic response.
func RespondWithMappedError(c *gin.Context, err error, cases []ErrorCase, fallbackStatus int, fallbackMessage string) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}

	for _, cs := range cases {
		if cs.Err == nil {
			continue
		}
		if errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(fallbackStatus, NewErrorResponse(c, fallbackMessage))
}

func respondAuthError(c *gin.Context, err error) {
	RespondWithMappedError(c, err, authErrorCases, http.StatusInternalServerError, "internal error")
}
