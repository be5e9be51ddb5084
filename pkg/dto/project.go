package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/mlukic/sprintsync-api/internal/models"
)

type CreateProjectRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type ProjectResponse struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	OwnerID     uuid.UUID   `json:"owner_id"`
	IsActive    bool        `json:"is_active"`
	Role        models.Role `json:"role,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

type AddMemberRequest struct {
	UserID uuid.UUID   `json:"user_id"`
	Role   models.Role `json:"role"`
}

type UpdateMemberRequest struct {
	Role models.Role `json:"role"`
}

type MemberResponse struct {
	ID     uuid.UUID    `json:"id"`
	UserID uuid.UUID    `json:"user_id"`
	Role   models.Role  `json:"role"`
	User   UserResponse `json:"user,omitempty"`
}
