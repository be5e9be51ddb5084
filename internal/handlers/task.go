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

type TaskHandler struct {
	taskService       *services.TaskService
	visibilityService *services.VisibilityService
}

func NewTaskHandler(taskService *services.TaskService, visibilityService *services.VisibilityService) *TaskHandler {
	return &TaskHandler{
		taskService:       taskService,
		visibilityService: visibilityService,
	}
}

func (h *TaskHandler) Create(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	var req dto.CreateTaskRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Title == "" {
		c.BadRequest("title is required")
		return
	}

	task, err := h.taskService.Create(context.Background(), principal, services.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		ProjectID:   req.ProjectID,
		AssigneeID:  req.AssigneeID,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(201, taskResponse(task))
}

func (h *TaskHandler) List(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	tasks, err := h.visibilityService.ListTasks(context.Background(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponses(tasks))
}

func (h *TaskHandler) ListForProject(c *drift.Context) {
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

	tasks, err := h.visibilityService.ListProjectTasks(context.Background(), principal, projectID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponses(tasks))
}

func (h *TaskHandler) ListAssigned(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	tasks, err := h.visibilityService.ListAssignedTasks(context.Background(), principal)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponses(tasks))
}

func (h *TaskHandler) Get(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid task id")
		return
	}

	task, err := h.visibilityService.TaskByID(context.Background(), principal, taskID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponse(task))
}

func (h *TaskHandler) Update(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid task id")
		return
	}

	var req dto.UpdateTaskRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	task, err := h.taskService.Update(context.Background(), principal, taskID, services.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponse(task))
}

func (h *TaskHandler) UpdateStatus(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid task id")
		return
	}

	var req dto.UpdateTaskStatusRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Status == "" {
		c.BadRequest("status is required")
		return
	}

	task, err := h.taskService.Update(context.Background(), principal, taskID, services.UpdateTaskInput{
		Status: &req.Status,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponse(task))
}

func (h *TaskHandler) Delete(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid task id")
		return
	}

	if err := h.taskService.Delete(context.Background(), principal, taskID); err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, map[string]string{"message": "task deleted"})
}

func (h *TaskHandler) Assign(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid task id")
		return
	}

	var req dto.AssignTaskRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}

	task, err := h.taskService.Assign(context.Background(), principal, taskID, req.AssigneeID)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponse(task))
}

func (h *TaskHandler) LogTime(c *drift.Context) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Unauthorized("not authenticated")
		return
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.BadRequest("invalid task id")
		return
	}

	var req dto.LogTimeRequest
	if err := c.BindJSON(&req); err != nil {
		c.BadRequest("invalid request body")
		return
	}
	if req.Minutes <= 0 {
		c.BadRequest("minutes must be positive")
		return
	}

	task, err := h.taskService.LogTime(context.Background(), principal, taskID, req.Minutes)
	if err != nil {
		respondError(c, err)
		return
	}

	_ = c.JSON(200, taskResponse(task))
}

func taskResponse(t *models.Task) dto.TaskResponse {
	return dto.TaskResponse{
		ID:           t.ID,
		Title:        t.Title,
		Description:  t.Description,
		Status:       t.Status,
		TotalMinutes: t.TotalMinutes,
		ProjectID:    t.ProjectID,
		CreatorID:    t.CreatorID,
		AssigneeID:   t.AssigneeID,
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func taskResponses(tasks []models.Task) []dto.TaskResponse {
	response := make([]dto.TaskResponse, len(tasks))
	for i := range tasks {
		response[i] = taskResponse(&tasks[i])
	}
	return response
}
