package handlers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/mlukic/sprintsync-api/internal/middleware"
	"github.com/mlukic/sprintsync-api/internal/services"
	"github.com/mlukic/sprintsync-api/pkg/dto"
)

type AIHandler struct {
	aiService *services.AIService
}

func NewAIHandler(aiService *services.AIService) *AIHandler {
	return &AIHandler{aiService: aiService}
}

func (h *AIHandler) Status(c *drift.Context) {
	_ = c.JSON(200, dto.AIStatusResponse{Available: h.aiService.Available()})
}

func (h *AIHandler) SuggestDescription(c *drift.Context) {
	var req dto.SuggestDescriptionRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Title == "" {
		c.BadRequest("title is required")
		return
	}

	description, err := h.aiService.SuggestDescription(context.Background(), req.Title, req.Context)
	if err != nil {
		respondAIError(c, err)
		return
	}

	_ = c.JSON(200, dto.SuggestDescriptionResponse{Description: description})
}

func (h *AIHandler) SuggestTitles(c *drift.Context) {
	var req dto.SuggestTitlesRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Description == "" {
		c.BadRequest("description is required")
		return
	}

	titles, err := h.aiService.SuggestTitles(context.Background(), req.Description)
	if err != nil {
		respondAIError(c, err)
		return
	}

	_ = c.JSON(200, dto.SuggestTitlesResponse{Titles: titles})
}

func (h *AIHandler) SuggestAssignee(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.SuggestAssigneeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.ProjectID == uuid.Nil {
		c.BadRequest("project_id is required")
		return
	}
	if req.TaskText == "" {
		c.BadRequest("task_text is required")
		return
	}

	email, err := h.aiService.SuggestAssignee(context.Background(), principal, req.ProjectID, req.TaskText)
	if err != nil {
		respondAIError(c, err)
		return
	}

	_ = c.JSON(200, dto.SuggestAssigneeResponse{Email: email})
}

func respondAIError(c *drift.Context, err error) {
	if errors.Is(err, services.ErrAIUnavailable) {
		_ = c.JSON(503, map[string]string{"error": "ai suggestions are not configured"})
		return
	}
	respondError(c, err)
}
