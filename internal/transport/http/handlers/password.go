package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valcriss/sovrane/internal/infra/security"
	"github.com/valcriss/sovrane/internal/usecase"
)

// PasswordHandler serves the forgot-password flow.
type PasswordHandler struct {
	providers usecase.AuthProvider
}

// NewPasswordHandler builds the handler. Reset operations route through
// the provider chain so the primary provider owns them.
func NewPasswordHandler(providers usecase.AuthProvider) *PasswordHandler {
	return &PasswordHandler{providers: providers}
}

// RegisterRoutes wires the public password reset endpoints.
func (h *PasswordHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/reset/request", h.RequestReset)
	group.POST("/reset/confirm", h.ConfirmReset)
}

// RequestReset issues a reset token for the identifier. The response is
// identical whether or not the account exists.
func (h *PasswordHandler) RequestReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.providers.RequestPasswordReset(c.Request.Context(), req.Identifier); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "if the account exists, a reset link has been sent"})
}

// ConfirmReset redeems a reset token with a new password. Policy
// violations name the violated rule; token failures stay opaque.
func (h *PasswordHandler) ConfirmReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	if err := h.providers.ResetPassword(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		var policyErr *security.PasswordValidationError
		if errors.As(err, &policyErr) {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, policyErr.Message))
			return
		}
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "password updated"})
}
