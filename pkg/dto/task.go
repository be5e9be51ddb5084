package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/mlukic/sprintsync-api/internal/models"
)

type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	ProjectID   *uuid.UUID `json:"project_id,omitempty"`
	AssigneeID  *uuid.UUID `json:"assignee_id,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string            `json:"title,omitempty"`
	Description *string            `json:"description,omitempty"`
	Status      *models.TaskStatus `json:"status,omitempty"`
}

type UpdateTaskStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

type AssignTaskRequest struct {
	AssigneeID *uuid.UUID `json:"assignee_id"`
}

type LogTimeRequest struct {
	Minutes int `json:"minutes"`
}

type TaskResponse struct {
	ID           uuid.UUID         `json:"id"`
	Title        string            `json:"title"`
	Description  *string           `json:"description,omitempty"`
	Status       models.TaskStatus `json:"status"`
	TotalMinutes int               `json:"total_minutes"`
	ProjectID    *uuid.UUID        `json:"project_id,omitempty"`
	CreatorID    uuid.UUID         `json:"creator_id"`
	AssigneeID   *uuid.UUID        `json:"assignee_id,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}
