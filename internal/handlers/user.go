package handlers

import (
	"context"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/mlukic/sprintsync-api/internal/middleware"
	"github.com/mlukic/sprintsync-api/internal/services"
	"github.com/mlukic/sprintsync-api/pkg/dto"
)

type UserHandler struct {
	userService  *services.UserService
	authzService *services.AuthzService
}

func NewUserHandler(userService *services.UserService, authzService *services.AuthzService) *UserHandler {
	return &UserHandler{userService: userService, authzService: authzService}
}

// List is the user directory, restricted to global admins.
func (h *UserHandler) List(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	if dec := h.authzService.CanListUsers(principal); !dec.Allowed {
		c.Forbidden(dec.Reason)
		return
	}

	users, err := h.userService.List(context.Background())
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]dto.UserResponse, len(users))
	for i, user := range users {
		response[i] = dto.UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			IsGlobalAdmin: user.IsGlobalAdmin,
			CreatedAt:     user.CreatedAt,
		}
	}

	_ = c.JSON(200, response)
}
