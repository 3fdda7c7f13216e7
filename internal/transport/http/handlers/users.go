package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/valcriss/sovrane/internal/transport/http/middleware"
	"github.com/valcriss/sovrane/internal/usecase"
)

// UserHandler serves account administration endpoints.
type UserHandler struct {
	users *usecase.UserService
}

// NewUserHandler builds the handler.
func NewUserHandler(users *usecase.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// RegisterRoutes wires the authenticated user administration endpoints.
func (h *UserHandler) RegisterRoutes(group *gin.RouterGroup) {
	group.DELETE("/:id", h.Remove)
}

// Remove deletes an account and revokes all of its sessions.
func (h *UserHandler) Remove(c *gin.Context) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "authentication required"))
		return
	}

	if err := h.users.Remove(c.Request.Context(), actor, c.Param("id")); err != nil {
		respondAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "user removed"})
}
