package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mlukic/sprintsync-api/internal/apperr"
	"github.com/mlukic/sprintsync-api/internal/database"
	"github.com/mlukic/sprintsync-api/internal/models"
)

// VisibilityService turns the view rows of the policy matrix into
// set-level filters. Its predicate is the single definition of "exists
// from this principal's point of view": anything outside it reads as
// NotFound, never as PermissionDenied, so non-members cannot tell a
// hidden resource from an absent one.
type VisibilityService struct {
	db *database.DB
}

func NewVisibilityService(db *database.DB) *VisibilityService {
	return &VisibilityService{db: db}
}

const projectColumns = `id, name, description, owner_id, is_active, created_at, updated_at`

const taskColumns = `id, title, description, status, total_minutes, project_id, creator_id, assignee_id, created_at, updated_at`

// ProjectByID returns the project, or NotFound when the project is absent
// or outside the principal's visibility predicate.
func (s *VisibilityService) ProjectByID(ctx context.Context, p models.Principal, projectID uuid.UUID) (*models.Project, error) {
	var row pgx.Row
	if p.IsGlobalAdmin {
		row = s.db.Pool.QueryRow(ctx, `
			SELECT `+projectColumns+` FROM projects WHERE id = $1
		`, projectID)
	} else {
		row = s.db.Pool.QueryRow(ctx, `
			SELECT `+projectColumns+` FROM projects
			WHERE id = $1
			  AND id IN (SELECT project_id FROM project_members WHERE user_id = $2)
		`, projectID, p.UserID)
	}

	var project models.Project
	err := row.Scan(&project.ID, &project.Name, &project.Description,
		&project.OwnerID, &project.IsActive, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "project not found")
		}
		return nil, err
	}
	return &project, nil
}

// ListProjects returns every project the principal may see, with their
// role in each (empty for a global admin outside the member list).
func (s *VisibilityService) ListProjects(ctx context.Context, p models.Principal) ([]models.Project, []models.Role, error) {
	var rows pgx.Rows
	var err error
	if p.IsGlobalAdmin {
		rows, err = s.db.Pool.Query(ctx, `
			SELECT pr.id, pr.name, pr.description, pr.owner_id, pr.is_active, pr.created_at, pr.updated_at,
			       COALESCE(pm.role, '')
			FROM projects pr
			LEFT JOIN project_members pm ON pr.id = pm.project_id AND pm.user_id = $1
			ORDER BY pr.created_at DESC
		`, p.UserID)
	} else {
		rows, err = s.db.Pool.Query(ctx, `
			SELECT pr.id, pr.name, pr.description, pr.owner_id, pr.is_active, pr.created_at, pr.updated_at,
			       pm.role
			FROM projects pr
			JOIN project_members pm ON pr.id = pm.project_id
			WHERE pm.user_id = $1
			ORDER BY pr.created_at DESC
		`, p.UserID)
	}
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var projects []models.Project
	var roles []models.Role
	for rows.Next() {
		var project models.Project
		var role models.Role
		if err := rows.Scan(&project.ID, &project.Name, &project.Description,
			&project.OwnerID, &project.IsActive, &project.CreatedAt, &project.UpdatedAt, &role); err != nil {
			return nil, nil, err
		}
		projects = append(projects, project)
		roles = append(roles, role)
	}
	return projects, roles, rows.Err()
}

// TaskByID returns the task, or NotFound outside the predicate: a task is
// visible when its project is, or when it is the principal's own personal
// task.
func (s *VisibilityService) TaskByID(ctx context.Context, p models.Principal, taskID uuid.UUID) (*models.Task, error) {
	var row pgx.Row
	if p.IsGlobalAdmin {
		row = s.db.Pool.QueryRow(ctx, `
			SELECT `+taskColumns+` FROM tasks WHERE id = $1
		`, taskID)
	} else {
		row = s.db.Pool.QueryRow(ctx, `
			SELECT `+taskColumns+` FROM tasks
			WHERE id = $1
			  AND (project_id IN (SELECT project_id FROM project_members WHERE user_id = $2)
			       OR (project_id IS NULL AND creator_id = $2))
		`, taskID, p.UserID)
	}

	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "task not found")
		}
		return nil, err
	}
	return task, nil
}

// ListTasks returns every task inside the principal's predicate.
func (s *VisibilityService) ListTasks(ctx context.Context, p models.Principal) ([]models.Task, error) {
	var rows pgx.Rows
	var err error
	if p.IsGlobalAdmin {
		rows, err = s.db.Pool.Query(ctx, `
			SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC
		`)
	} else {
		rows, err = s.db.Pool.Query(ctx, `
			SELECT `+taskColumns+` FROM tasks
			WHERE project_id IN (SELECT project_id FROM project_members WHERE user_id = $1)
			   OR (project_id IS NULL AND creator_id = $1)
			ORDER BY created_at DESC
		`, p.UserID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListProjectTasks lists a visible project's tasks; an invisible project
// is NotFound before any task is read.
func (s *VisibilityService) ListProjectTasks(ctx context.Context, p models.Principal, projectID uuid.UUID) ([]models.Task, error) {
	if _, err := s.ProjectByID(ctx, p, projectID); err != nil {
		return nil, err
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE project_id = $1
		ORDER BY created_at DESC
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListAssignedTasks lists tasks currently assigned to the principal.
func (s *VisibilityService) ListAssignedTasks(ctx context.Context, p models.Principal) ([]models.Task, error) {
	rows, err := s.db.Pool.Query(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assignee_id = $1
		ORDER BY created_at DESC
	`, p.UserID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTasks(rows)
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var task models.Task
	err := row.Scan(&task.ID, &task.Title, &task.Description, &task.Status,
		&task.TotalMinutes, &task.ProjectID, &task.CreatorID, &task.AssigneeID,
		&task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func collectTasks(rows pgx.Rows) ([]models.Task, error) {
	var tasks []models.Task
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(&task.ID, &task.Title, &task.Description, &task.Status,
			&task.TotalMinutes, &task.ProjectID, &task.CreatorID, &task.AssigneeID,
			&task.CreatedAt, &task.UpdatedAt); err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}
