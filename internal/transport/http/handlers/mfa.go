package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valcriss/sovrane/internal/core/domain"
	"github.com/valcriss/sovrane/internal/transport/http/middleware"
	"github.com/valcriss/sovrane/internal/usecase"
)

// MFAHandler serves second-factor enrollment management.
type MFAHandler struct {
	sessions *usecase.SessionService
}

// NewMFAHandler builds the handler.
func NewMFAHandler(sessions *usecase.SessionService) *MFAHandler {
	return &MFAHandler{sessions: sessions}
}

// RegisterRoutes wires the authenticated MFA management endpoints.
func (h *MFAHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/enable", h.Enable)
	group.POST("/disable", h.Disable)
}

// Enable enrolls the actor in a second factor and returns the one-time
// provisioning material.
func (h *MFAHandler) Enable(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	var req MFAEnableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "invalid request payload"))
		return
	}

	kind := domain.MFAType(req.Type)
	if kind != domain.MFATypeTOTP && kind != domain.MFATypeEmail {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "unsupported mfa type"))
		return
	}

	enrollment, err := h.sessions.EnableMFA(c.Request.Context(), actor, kind)
	if err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, MFAEnrollmentResponse{
		Secret:          enrollment.Secret,
		ProvisioningURI: enrollment.ProvisioningURI,
		RecoveryCodes:   enrollment.RecoveryCodes,
	})
}

// Disable clears the actor's second factor.
func (h *MFAHandler) Disable(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.sessions.DisableMFA(c.Request.Context(), actor); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "mfa disabled"})
}
