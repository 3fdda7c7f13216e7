package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/transport/http/middleware"
	"github.com/valcriss/sovrane/internal/usecase"
)

// ErrorResponse is the generic error payload with a correlation identifier.
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// NewErrorResponse creates an error response for the request.
func NewErrorResponse(c *gin.Context, message string) ErrorResponse {
	return ErrorResponse{
		Error:     message,
		RequestID: middleware.RequestIDFromContext(c.Request.Context()),
	}
}

// MessageResponse is a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// LoginRequest is the credential login payload.
type LoginRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Password   string `json:"password" binding:"required"`
}

// ProviderLoginRequest is the federated login payload.
type ProviderLoginRequest struct {
	Provider string `json:"provider" binding:"required"`
	Token    string `json:"token" binding:"required"`
}

// MFAVerifyRequest completes a challenged login.
type MFAVerifyRequest struct {
	Identifier string `json:"identifier" binding:"required"`
	Code       string `json:"code" binding:"required"`
}

// RefreshRequest exchanges a refresh token.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// MFAEnableRequest selects the second-factor mechanism to enroll.
type MFAEnableRequest struct {
	Type string `json:"type" binding:"required"`
}

// PasswordResetRequest asks for a reset token by identifier.
type PasswordResetRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

// PasswordResetConfirmRequest redeems a reset token.
type PasswordResetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required"`
}

// TokenPairResponse carries an issued access/refresh pair.
type TokenPairResponse struct {
	AccessToken      string    `json:"access_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshToken     string    `json:"refresh_token"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// LoginResponse is the outcome of a login attempt.
type LoginResponse struct {
	MFARequired bool               `json:"mfa_required"`
	MFAType     *domain.MFAType    `json:"mfa_type,omitempty"`
	Tokens      *TokenPairResponse `json:"tokens,omitempty"`
}

// MFAEnrollmentResponse returns one-time enrollment material.
type MFAEnrollmentResponse struct {
	Secret          string   `json:"secret,omitempty"`
	ProvisioningURI string   `json:"provisioning_uri,omitempty"`
	RecoveryCodes   []string `json:"recovery_codes,omitempty"`
}

func newTokenPairResponse(tokens *usecase.SessionTokens) *TokenPairResponse {
	if tokens == nil {
		return nil
	}
	return &TokenPairResponse{
		AccessToken:      tokens.AccessToken,
		AccessExpiresAt:  tokens.AccessExpiresAt,
		RefreshToken:     tokens.RefreshToken,
		RefreshExpiresAt: tokens.RefreshExpiresAt,
	}
}

func newLoginResponse(result *usecase.LoginResult) LoginResponse {
	return LoginResponse{
		MFARequired: result.MFARequired,
		MFAType:     result.MFAType,
		Tokens:      newTokenPairResponse(result.Tokens),
	}
}
