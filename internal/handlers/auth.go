package handlers

import (
	"context"
	"strings"

	"github.com/m1z23r/drift/pkg/drift"
	"github.com/mlukic/sprintsync-api/internal/middleware"
	"github.com/mlukic/sprintsync-api/internal/services"
	"github.com/mlukic/sprintsync-api/pkg/dto"
)

type AuthHandler struct {
	authService *services.AuthService
	userService *services.UserService
}

func NewAuthHandler(authService *services.AuthService, userService *services.UserService) *AuthHandler {
	return &AuthHandler{authService: authService, userService: userService}
}

func (h *AuthHandler) Register(c *drift.Context) {
	var req dto.RegisterRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		c.BadRequest("valid email is required")
		return
	}
	if len(req.Password) < 8 {
		c.BadRequest("password must be at least 8 characters")
		return
	}

	user, pair, err := h.authService.Register(context.Background(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(201, map[string]any{
		"user": dto.UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			IsGlobalAdmin: user.IsGlobalAdmin,
			CreatedAt:     user.CreatedAt,
		},
		"tokens": tokenResponse(pair),
	})
}

func (h *AuthHandler) Login(c *drift.Context) {
	var req dto.LoginRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	user, pair, err := h.authService.Login(context.Background(), strings.TrimSpace(strings.ToLower(req.Email)), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, map[string]any{
		"user": dto.UserResponse{
			ID:            user.ID,
			Email:         user.Email,
			IsGlobalAdmin: user.IsGlobalAdmin,
			CreatedAt:     user.CreatedAt,
		},
		"tokens": tokenResponse(pair),
	})
}

func (h *AuthHandler) Refresh(c *drift.Context) {
	var req dto.RefreshRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.RefreshToken == "" {
		c.BadRequest("refresh_token is required")
		return
	}

	pair, err := h.authService.Refresh(context.Background(), req.RefreshToken)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, tokenResponse(pair))
}

func (h *AuthHandler) Me(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	user, err := h.userService.GetByID(context.Background(), principal.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, dto.UserResponse{
		ID:            user.ID,
		Email:         user.Email,
		IsGlobalAdmin: user.IsGlobalAdmin,
		CreatedAt:     user.CreatedAt,
	})
}

func tokenResponse(pair *services.TokenPair) dto.TokenResponse {
	return dto.TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		TokenType:    "Bearer",
	}
}
