package handlers

import (
	"context"

	"github.com/google/uuid"
	"github.com/m1z23r/drift/pkg/drift"
	"github.com/mlukic/sprintsync-api/internal/middleware"
	"github.com/mlukic/sprintsync-api/internal/models"
	"github.com/mlukic/sprintsync-api/internal/services"
	"github.com/mlukic/sprintsync-api/pkg/dto"
)

type MemberHandler struct {
	projectService *services.ProjectService
}

func NewMemberHandler(projectService *services.ProjectService) *MemberHandler {
	return &MemberHandler{projectService: projectService}
}

func (h *MemberHandler) List(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid project id")
		return
	}

	members, err := h.projectService.ListMembers(context.Background(), principal, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]dto.MemberResponse, len(members))
	for i, m := range members {
		response[i] = memberResponse(&m)
	}
	_ = c.JSON(200, response)
}

func (h *MemberHandler) Add(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid project id")
		return
	}

	var req dto.AddMemberRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.UserID == uuid.Nil {
		c.BadRequest("user_id is required")
		return
	}
	if req.Role == "" {
		req.Role = models.RoleMember
	}

	member, err := h.projectService.AddMember(context.Background(), principal, projectID, req.UserID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(201, memberResponse(member))
}

func (h *MemberHandler) UpdateRole(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid project id")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	var req dto.UpdateMemberRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	member, err := h.projectService.UpdateMemberRole(context.Background(), principal, projectID, userID, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, memberResponse(member))
}

func (h *MemberHandler) Remove(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid project id")
		return
	}
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.BadRequest("invalid user id")
		return
	}

	if err := h.projectService.RemoveMember(context.Background(), principal, projectID, userID); err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, map[string]string{"message": "member removed"})
}

func memberResponse(m *models.ProjectMember) dto.MemberResponse {
	resp := dto.MemberResponse{
		ID:     m.ID,
		UserID: m.UserID,
		Role:   m.Role,
	}
	if m.User != nil {
		resp.User = dto.UserResponse{
			ID:            m.User.ID,
			Email:         m.User.Email,
			IsGlobalAdmin: m.User.IsGlobalAdmin,
			CreatedAt:     m.User.CreatedAt,
		}
	}
	return resp
}
