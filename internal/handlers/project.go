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

type ProjectHandler struct {
	projectService    *services.ProjectService
	visibilityService *services.VisibilityService
}

func NewProjectHandler(projectService *services.ProjectService, visibilityService *services.VisibilityService) *ProjectHandler {
	return &ProjectHandler{
		projectService:    projectService,
		visibilityService: visibilityService,
	}
}

func (h *ProjectHandler) Create(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateProjectRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Name == "" {
		c.BadRequest("name is required")
		return
	}

	project, err := h.projectService.Create(context.Background(), principal, req.Name, req.Description)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(201, projectResponse(project, models.RoleOwner))
}

func (h *ProjectHandler) List(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	projects, roles, err := h.visibilityService.ListProjects(context.Background(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]dto.ProjectResponse, len(projects))
	for i := range projects {
		response[i] = projectResponse(&projects[i], roles[i])
	}
	_ = c.JSON(200, response)
}

func (h *ProjectHandler) Get(c *drift.Context) {
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

	project, err := h.visibilityService.ProjectByID(context.Background(), principal, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	role := models.Role("")
	if project.OwnerID == principal.UserID {
		role = models.RoleOwner
	}
	_ = c.JSON(200, projectResponse(project, role))
}

func (h *ProjectHandler) Update(c *drift.Context) {
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

	var req dto.UpdateProjectRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	project, err := h.projectService.Update(context.Background(), principal, projectID, req.Name, req.Description, req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, projectResponse(project, models.RoleOwner))
}

func (h *ProjectHandler) Delete(c *drift.Context) {
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

	if err := h.projectService.Delete(context.Background(), principal, projectID); err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, map[string]string{"message": "project deleted"})
}

func projectResponse(p *models.Project, role models.Role) dto.ProjectResponse {
	return dto.ProjectResponse{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		OwnerID:     p.OwnerID,
		IsActive:    p.IsActive,
		Role:        role,
		CreatedAt:   p.CreatedAt,
	}
}
