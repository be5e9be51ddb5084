package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mlukic/sprintsync-api/internal/apperr"
	"github.com/mlukic/sprintsync-api/internal/database"
	"github.com/mlukic/sprintsync-api/internal/models"
)

// TaskService guards every task mutation: policy decision first, then the
// referential checks (assignee must be a current member of the task's
// project), then the effect, all in one transaction where it matters.
type TaskService struct {
	db    *database.DB
	authz *AuthzService
}

func NewTaskService(db *database.DB, authz *AuthzService) *TaskService {
	return &TaskService{db: db, authz: authz}
}

type CreateTaskInput struct {
	Title       string
	Description *string
	ProjectID   *uuid.UUID
	AssigneeID  *uuid.UUID
}

type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *models.TaskStatus
}

// Create inserts a task. Project tasks require membership of the project;
// a task with no project is personal and can only be assigned to its
// creator. The project is never changeable afterwards.
func (s *TaskService) Create(ctx context.Context, p models.Principal, in CreateTaskInput) (*models.Task, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if in.ProjectID != nil {
		membership, err := s.authz.MembershipIn(ctx, tx, *in.ProjectID, p.UserID)
		if err != nil {
			return nil, err
		}
		if !p.IsGlobalAdmin && !membership.IsMember {
			return nil, apperr.E(apperr.NotFound, "project not found")
		}
		if dec := s.authz.CanOnProject(p, membership, ActionCreateTask); !dec.Allowed {
			return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
		}

		if in.AssigneeID != nil {
			if *in.AssigneeID != p.UserID && !membership.Role.AtLeast(models.RoleAdmin) && !p.IsGlobalAdmin {
				return nil, apperr.E(apperr.PermissionDenied, "requires project admin or owner to assign others")
			}
			if err := s.verifyAssignee(ctx, tx, *in.ProjectID, *in.AssigneeID); err != nil {
				return nil, err
			}
		}
	} else if in.AssigneeID != nil && *in.AssigneeID != p.UserID {
		return nil, apperr.E(apperr.InvalidAssignment, "a personal task can only be assigned to its creator")
	}

	var task models.Task
	err = tx.QueryRow(ctx, `
		INSERT INTO tasks (title, description, project_id, creator_id, assignee_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+taskColumns+`
	`, in.Title, in.Description, in.ProjectID, p.UserID, in.AssigneeID).Scan(
		&task.ID, &task.Title, &task.Description, &task.Status, &task.TotalMinutes,
		&task.ProjectID, &task.CreatorID, &task.AssigneeID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &task, nil
}

// Update edits title, description and status. Status moves only between
// adjacent states of the todo <-> in_progress <-> done chain.
func (s *TaskService) Update(ctx context.Context, p models.Principal, taskID uuid.UUID, in UpdateTaskInput) (*models.Task, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := s.loadVisible(ctx, tx, p, taskID)
	if err != nil {
		return nil, err
	}

	membership, err := s.membershipFor(ctx, tx, p, task)
	if err != nil {
		return nil, err
	}
	if dec := s.authz.CanOnTask(p, membership, task, ActionEditTask); !dec.Allowed {
		return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, apperr.E(apperr.InvalidTransition, "unknown status")
		}
		if !task.Status.CanTransitionTo(*in.Status) {
			return nil, apperr.E(apperr.InvalidTransition,
				fmt.Sprintf("cannot move from %s to %s", task.Status, *in.Status))
		}
	}

	var updated models.Task
	err = tx.QueryRow(ctx, `
		UPDATE tasks SET
			title = COALESCE($1, title),
			description = COALESCE($2, description),
			status = COALESCE($3, status),
			updated_at = NOW()
		WHERE id = $4
		RETURNING `+taskColumns+`
	`, in.Title, in.Description, in.Status, taskID).Scan(
		&updated.ID, &updated.Title, &updated.Description, &updated.Status, &updated.TotalMinutes,
		&updated.ProjectID, &updated.CreatorID, &updated.AssigneeID, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

// Delete removes a task under the same permission as editing it.
func (s *TaskService) Delete(ctx context.Context, p models.Principal, taskID uuid.UUID) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := s.loadVisible(ctx, tx, p, taskID)
	if err != nil {
		return err
	}

	membership, err := s.membershipFor(ctx, tx, p, task)
	if err != nil {
		return err
	}
	if dec := s.authz.CanOnTask(p, membership, task, ActionEditTask); !dec.Allowed {
		return apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Assign sets or clears the assignee. The target must be a current member
// of the task's project, verified in the same transaction under a share
// lock on the membership row. Plain members may claim unassigned tasks
// for themselves only; reassigning needs a project admin or owner.
func (s *TaskService) Assign(ctx context.Context, p models.Principal, taskID uuid.UUID, assigneeID *uuid.UUID) (*models.Task, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := s.loadVisible(ctx, tx, p, taskID)
	if err != nil {
		return nil, err
	}

	membership, err := s.membershipFor(ctx, tx, p, task)
	if err != nil {
		return nil, err
	}

	if task.Personal() {
		if dec := s.authz.CanOnTask(p, membership, task, ActionEditTask); !dec.Allowed {
			return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
		}
		if assigneeID != nil && *assigneeID != task.CreatorID {
			return nil, apperr.E(apperr.InvalidAssignment, "a personal task can only be assigned to its creator")
		}
	} else if assigneeID == nil {
		// Unassign: creator, current assignee, or project admin/owner.
		if dec := s.authz.CanOnTask(p, membership, task, ActionEditTask); !dec.Allowed {
			return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
		}
	} else {
		action := ActionAssignTaskOther
		if *assigneeID == p.UserID {
			action = ActionAssignTaskSelf
		}
		if dec := s.authz.CanOnTask(p, membership, task, action); !dec.Allowed {
			return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
		}
		if err := s.verifyAssignee(ctx, tx, *task.ProjectID, *assigneeID); err != nil {
			return nil, err
		}
	}

	var updated models.Task
	err = tx.QueryRow(ctx, `
		UPDATE tasks SET assignee_id = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+taskColumns+`
	`, assigneeID, taskID).Scan(
		&updated.ID, &updated.Title, &updated.Description, &updated.Status, &updated.TotalMinutes,
		&updated.ProjectID, &updated.CreatorID, &updated.AssigneeID, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to assign task: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

// LogTime adds worked minutes to the task total.
func (s *TaskService) LogTime(ctx context.Context, p models.Principal, taskID uuid.UUID, minutes int) (*models.Task, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	task, err := s.loadVisible(ctx, tx, p, taskID)
	if err != nil {
		return nil, err
	}

	membership, err := s.membershipFor(ctx, tx, p, task)
	if err != nil {
		return nil, err
	}
	if dec := s.authz.CanOnTask(p, membership, task, ActionEditTask); !dec.Allowed {
		return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	var updated models.Task
	err = tx.QueryRow(ctx, `
		UPDATE tasks SET total_minutes = total_minutes + $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+taskColumns+`
	`, minutes, taskID).Scan(
		&updated.ID, &updated.Title, &updated.Description, &updated.Status, &updated.TotalMinutes,
		&updated.ProjectID, &updated.CreatorID, &updated.AssigneeID, &updated.CreatedAt, &updated.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to log time: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &updated, nil
}

// loadVisible reads a task through the visibility predicate inside the
// given transaction; anything outside the predicate is NotFound.
func (s *TaskService) loadVisible(ctx context.Context, tx pgx.Tx, p models.Principal, taskID uuid.UUID) (*models.Task, error) {
	var row pgx.Row
	if p.IsGlobalAdmin {
		row = tx.QueryRow(ctx, `
			SELECT `+taskColumns+` FROM tasks WHERE id = $1
		`, taskID)
	} else {
		row = tx.QueryRow(ctx, `
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

func (s *TaskService) membershipFor(ctx context.Context, tx pgx.Tx, p models.Principal, task *models.Task) (Membership, error) {
	if task.ProjectID == nil {
		return Membership{}, nil
	}
	return s.authz.MembershipIn(ctx, tx, *task.ProjectID, p.UserID)
}

// verifyAssignee locks the membership row of the prospective assignee so
// a concurrent member removal cannot commit underneath the assignment.
func (s *TaskService) verifyAssignee(ctx context.Context, tx pgx.Tx, projectID, assigneeID uuid.UUID) error {
	var role models.Role
	err := tx.QueryRow(ctx, `
		SELECT role FROM project_members
		WHERE project_id = $1 AND user_id = $2
		FOR SHARE
	`, projectID, assigneeID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.E(apperr.InvalidAssignment, "assignee is not a member of this project")
		}
		return err
	}
	return nil
}
