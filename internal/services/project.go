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

const memberColumns = `id, project_id, user_id, role, created_at, updated_at`

// ProjectService is the membership store. Every mutation runs its
// precondition checks and its effect inside one transaction; the project
// row is locked FOR UPDATE first, so membership mutations on the same
// project serialize and check-then-act races cannot slip through.
type ProjectService struct {
	db    *database.DB
	authz *AuthzService
}

func NewProjectService(db *database.DB, authz *AuthzService) *ProjectService {
	return &ProjectService{db: db, authz: authz}
}

// Create inserts the project and its owner membership atomically. Any
// authenticated principal may create a project.
func (s *ProjectService) Create(ctx context.Context, p models.Principal, name string, description *string) (*models.Project, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var project models.Project
	err = tx.QueryRow(ctx, `
		INSERT INTO projects (name, description, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, owner_id, is_active, created_at, updated_at
	`, name, description, p.UserID).Scan(&project.ID, &project.Name, &project.Description,
		&project.OwnerID, &project.IsActive, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
	`, project.ID, p.UserID, models.RoleOwner)
	if err != nil {
		return nil, fmt.Errorf("failed to add owner as member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return &project, nil
}

// Update changes name, description or active flag. Owner or global admin.
func (s *ProjectService) Update(ctx context.Context, p models.Principal, projectID uuid.UUID, name *string, description *string, isActive *bool) (*models.Project, error) {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockProject(ctx, tx, projectID); err != nil {
		return nil, err
	}

	membership, err := s.authz.MembershipIn(ctx, tx, projectID, p.UserID)
	if err != nil {
		return nil, err
	}
	if !p.IsGlobalAdmin && !membership.IsMember {
		return nil, apperr.E(apperr.NotFound, "project not found")
	}
	if dec := s.authz.CanOnProject(p, membership, ActionUpdateProject); !dec.Allowed {
		return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	var project models.Project
	err = tx.QueryRow(ctx, `
		UPDATE projects SET
			name = COALESCE($1, name),
			description = COALESCE($2, description),
			is_active = COALESCE($3, is_active),
			updated_at = NOW()
		WHERE id = $4
		RETURNING id, name, description, owner_id, is_active, created_at, updated_at
	`, name, description, isActive, projectID).Scan(&project.ID, &project.Name, &project.Description,
		&project.OwnerID, &project.IsActive, &project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update project: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &project, nil
}

// Delete removes the project, its memberships, and its tasks in one
// transaction. Owner or global admin.
func (s *ProjectService) Delete(ctx context.Context, p models.Principal, projectID uuid.UUID) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockProject(ctx, tx, projectID); err != nil {
		return err
	}

	membership, err := s.authz.MembershipIn(ctx, tx, projectID, p.UserID)
	if err != nil {
		return err
	}
	if !p.IsGlobalAdmin && !membership.IsMember {
		return apperr.E(apperr.NotFound, "project not found")
	}
	if dec := s.authz.CanOnProject(p, membership, ActionDeleteProject); !dec.Allowed {
		return apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM tasks WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete project tasks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM project_members WHERE project_id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete project members: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM projects WHERE id = $1`, projectID); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListMembers returns all membership rows of a visible project.
func (s *ProjectService) ListMembers(ctx context.Context, p models.Principal, projectID uuid.UUID) ([]models.ProjectMember, error) {
	membership, err := s.authz.Snapshot(ctx, projectID, p.UserID)
	if err != nil {
		return nil, err
	}
	if !p.IsGlobalAdmin && !membership.IsMember {
		return nil, apperr.E(apperr.NotFound, "project not found")
	}

	rows, err := s.db.Pool.Query(ctx, `
		SELECT pm.id, pm.project_id, pm.user_id, pm.role, pm.created_at, pm.updated_at,
		       u.id, u.email, u.is_global_admin, u.created_at, u.updated_at
		FROM project_members pm
		JOIN users u ON pm.user_id = u.id
		WHERE pm.project_id = $1
		ORDER BY pm.created_at
	`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.ProjectMember
	for rows.Next() {
		var member models.ProjectMember
		var user models.User
		if err := rows.Scan(
			&member.ID, &member.ProjectID, &member.UserID, &member.Role, &member.CreatedAt, &member.UpdatedAt,
			&user.ID, &user.Email, &user.IsGlobalAdmin, &user.CreatedAt, &user.UpdatedAt,
		); err != nil {
			return nil, err
		}
		member.User = &user
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(members) == 0 {
		// Only reachable for a global admin asking about an id that does
		// not exist: members always include the owner.
		return nil, apperr.E(apperr.NotFound, "project not found")
	}
	return members, nil
}

// AddMember inserts a membership row with role admin or member. Caller
// must be project owner/admin or global admin.
func (s *ProjectService) AddMember(ctx context.Context, p models.Principal, projectID, userID uuid.UUID, role models.Role) (*models.ProjectMember, error) {
	if role != models.RoleAdmin && role != models.RoleMember {
		if role == models.RoleOwner {
			return nil, apperr.E(apperr.InvariantViolation, "a project has exactly one owner, fixed at creation")
		}
		return nil, apperr.E(apperr.Conflict, "invalid role")
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockProject(ctx, tx, projectID); err != nil {
		return nil, err
	}

	membership, err := s.authz.MembershipIn(ctx, tx, projectID, p.UserID)
	if err != nil {
		return nil, err
	}
	if !p.IsGlobalAdmin && !membership.IsMember {
		return nil, apperr.E(apperr.NotFound, "project not found")
	}
	if dec := s.authz.CanOnProject(p, membership, ActionAddMember); !dec.Allowed {
		return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	var userExists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)
	`, userID).Scan(&userExists); err != nil {
		return nil, err
	}
	if !userExists {
		return nil, apperr.E(apperr.NotFound, "user not found")
	}

	var alreadyMember bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)
	`, projectID, userID).Scan(&alreadyMember); err != nil {
		return nil, err
	}
	if alreadyMember {
		return nil, apperr.E(apperr.Conflict, "user is already a member of this project")
	}

	var member models.ProjectMember
	err = tx.QueryRow(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING `+memberColumns+`
	`, projectID, userID, role).Scan(&member.ID, &member.ProjectID, &member.UserID,
		&member.Role, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to add member: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &member, nil
}

// RemoveMember deletes a membership row and clears that user's task
// assignments within the project. The owner can never be removed; an
// admin cannot remove a peer admin; anyone but the owner may remove
// themselves. The target is re-read after the project lock: if it was
// there before the transaction and is gone now, a concurrent mutation won
// the race and the caller gets InvariantViolation rather than a silent
// skip.
func (s *ProjectService) RemoveMember(ctx context.Context, p models.Principal, projectID, userID uuid.UUID) error {
	var existedBefore bool
	if err := s.db.Pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM project_members WHERE project_id = $1 AND user_id = $2)
	`, projectID, userID).Scan(&existedBefore); err != nil {
		return err
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockProject(ctx, tx, projectID); err != nil {
		return err
	}

	membership, err := s.authz.MembershipIn(ctx, tx, projectID, p.UserID)
	if err != nil {
		return err
	}
	if !p.IsGlobalAdmin && !membership.IsMember {
		return apperr.E(apperr.NotFound, "project not found")
	}

	var targetRole models.Role
	err = tx.QueryRow(ctx, `
		SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&targetRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			if existedBefore {
				return apperr.E(apperr.InvariantViolation, "membership changed concurrently")
			}
			return apperr.E(apperr.NotFound, "user is not a member of this project")
		}
		return err
	}

	if targetRole == models.RoleOwner {
		return apperr.E(apperr.InvariantViolation, "cannot remove the project owner")
	}

	if dec := s.authz.CanRemoveMember(p, membership, userID, targetRole); !dec.Allowed {
		return apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	if targetRole == models.RoleAdmin {
		var managers int
		err = tx.QueryRow(ctx, `
			SELECT COUNT(*) FROM project_members
			WHERE project_id = $1 AND role IN ('owner', 'admin') AND user_id != $2
		`, projectID, userID).Scan(&managers)
		if err != nil {
			return err
		}
		if managers == 0 {
			return apperr.E(apperr.InvariantViolation, "project would be left without an owner or admin")
		}
	}

	if _, err := tx.Exec(ctx, `
		DELETE FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID); err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}

	// The tasks stay; only the assignment is dropped.
	if _, err := tx.Exec(ctx, `
		UPDATE tasks SET assignee_id = NULL, updated_at = NOW()
		WHERE project_id = $1 AND assignee_id = $2
	`, projectID, userID); err != nil {
		return fmt.Errorf("failed to clear task assignments: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateMemberRole switches a member between admin and member. Owner or
// global admin only; the owner row itself is untouchable.
func (s *ProjectService) UpdateMemberRole(ctx context.Context, p models.Principal, projectID, userID uuid.UUID, newRole models.Role) (*models.ProjectMember, error) {
	if newRole == models.RoleOwner {
		return nil, apperr.E(apperr.InvariantViolation, "a project has exactly one owner, fixed at creation")
	}
	if newRole != models.RoleAdmin && newRole != models.RoleMember {
		return nil, apperr.E(apperr.Conflict, "invalid role")
	}

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.lockProject(ctx, tx, projectID); err != nil {
		return nil, err
	}

	membership, err := s.authz.MembershipIn(ctx, tx, projectID, p.UserID)
	if err != nil {
		return nil, err
	}
	if !p.IsGlobalAdmin && !membership.IsMember {
		return nil, apperr.E(apperr.NotFound, "project not found")
	}
	if dec := s.authz.CanOnProject(p, membership, ActionUpdateMemberRole); !dec.Allowed {
		return nil, apperr.E(apperr.PermissionDenied, dec.Reason)
	}

	var targetRole models.Role
	err = tx.QueryRow(ctx, `
		SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&targetRole)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.E(apperr.NotFound, "user is not a member of this project")
		}
		return nil, err
	}
	if targetRole == models.RoleOwner {
		return nil, apperr.E(apperr.InvariantViolation, "cannot change the role of the project owner")
	}

	var member models.ProjectMember
	err = tx.QueryRow(ctx, `
		UPDATE project_members SET role = $1, updated_at = NOW()
		WHERE project_id = $2 AND user_id = $3
		RETURNING `+memberColumns+`
	`, newRole, projectID, userID).Scan(&member.ID, &member.ProjectID, &member.UserID,
		&member.Role, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update member role: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return &member, nil
}

// lockProject takes the row lock that serializes membership mutations on
// one project. NotFound here covers both a bad id and a project the
// caller was never allowed to see.
func (s *ProjectService) lockProject(ctx context.Context, tx pgx.Tx, projectID uuid.UUID) error {
	var id uuid.UUID
	err := tx.QueryRow(ctx, `
		SELECT id FROM projects WHERE id = $1 FOR UPDATE
	`, projectID).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.E(apperr.NotFound, "project not found")
		}
		return err
	}
	return nil
}
