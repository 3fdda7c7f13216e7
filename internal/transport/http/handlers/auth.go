package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valcriss/sovrane/internal/transport/http/middleware"
	"github.com/valcriss/sovrane/internal/usecase"
)

// AuthHandler serves login, MFA completion, refresh, and logout.
type AuthHandler struct {
	sessions *usecase.SessionService
}

// NewAuthHandler builds the handler.
func NewAuthHandler(sessions *usecase.SessionService) *AuthHandler {
	return &AuthHandler{sessions: sessions}
}

// RegisterRoutes wires the public authentication endpoints.
func (h *AuthHandler) RegisterRoutes(group *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	group.POST("/login", h.Login)
	group.POST("/login/provider", h.LoginWithProvider)
	group.POST("/mfa/verify", h.VerifyMFA)
	group.POST("/refresh", h.Refresh)
	group.POST("/logout", authMiddleware, h.Logout)
}

// Login authenticates a credential pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	ip, userAgent := clientMetadata(c)

	result, err := h.sessions.Login(c.Request.Context(), req.Identifier, req.Password, ip, userAgent)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

// LoginWithProvider authenticates a federated token.
func (h *AuthHandler) LoginWithProvider(c *gin.Context) {
	var req ProviderLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	ip, userAgent := clientMetadata(c)

	result, err := h.sessions.LoginWithProvider(c.Request.Context(), req.Provider, req.Token, ip, userAgent)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

// VerifyMFA completes a challenged login.
func (h *AuthHandler) VerifyMFA(c *gin.Context) {
	var req MFAVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	ip, userAgent := clientMetadata(c)

	result, err := h.sessions.VerifyMFA(c.Request.Context(), req.Identifier, req.Code, ip, userAgent)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, newLoginResponse(result))
}

// Refresh exchanges a refresh token for a fresh pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	ip, userAgent := clientMetadata(c)

	tokens, err := h.sessions.Refresh(c.Request.Context(), req.RefreshToken, ip, userAgent)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, newTokenPairResponse(tokens))
}

// Logout revokes every session of the authenticated actor.
func (h *AuthHandler) Logout(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.sessions.Logout(c.Request.Context(), actor.ID); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "logged out"})
}

func clientMetadata(c *gin.Context) (ip, userAgent *string) {
	if addr := c.ClientIP(); addr != "" {
		ip = &addr
	}
	if ua := c.Request.UserAgent(); ua != "" {
		userAgent = &ua
	}
	return ip, userAgent
}
