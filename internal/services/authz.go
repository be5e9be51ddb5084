package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mlukic/sprintsync-api/internal/database"
	"github.com/mlukic/sprintsync-api/internal/models"
)

// Action is a closed enumeration of everything the policy matrix answers.
type Action int

const (
	ActionViewProject Action = iota + 1
	ActionUpdateProject
	ActionDeleteProject
	ActionAddMember
	ActionUpdateMemberRole
	ActionCreateTask
	ActionViewTask
	ActionEditTask
	ActionAssignTaskSelf
	ActionAssignTaskOther
)

// Decision is an allow or a deny with the concrete reason. Reasons feed
// error messages; they never leak resource existence (that is the
// visibility layer's job).
type Decision struct {
	Allowed bool
	Reason  string
}

func Allow() Decision {
	return Decision{Allowed: true}
}

func Deny(reason string) Decision {
	return Decision{Allowed: false, Reason: reason}
}

// Membership is the snapshot of a principal's standing in one project at
// the time the decision is made.
type Membership struct {
	IsMember bool
	Role     models.Role
}

// Querier is satisfied by both the pool and a transaction, so decisions
// inside a mutation read the same locked snapshot the mutation commits.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AuthzService is the authorization engine. The policy itself is a pure
// function over (principal, membership snapshot, action); the service only
// adds the snapshot read.
type AuthzService struct {
	db *database.DB
}

func NewAuthzService(db *database.DB) *AuthzService {
	return &AuthzService{db: db}
}

// MembershipIn reads the principal-to-project membership row from q.
func (s *AuthzService) MembershipIn(ctx context.Context, q Querier, projectID, userID uuid.UUID) (Membership, error) {
	var role models.Role
	err := q.QueryRow(ctx, `
		SELECT role FROM project_members WHERE project_id = $1 AND user_id = $2
	`, projectID, userID).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Membership{}, nil
		}
		return Membership{}, err
	}
	return Membership{IsMember: true, Role: role}, nil
}

// Snapshot is MembershipIn against the service's own pool, for callers
// outside a transaction.
func (s *AuthzService) Snapshot(ctx context.Context, projectID, userID uuid.UUID) (Membership, error) {
	return s.MembershipIn(ctx, s.db.Pool, projectID, userID)
}

// CanOnProject evaluates the project-scoped rows of the policy matrix.
// It is deterministic and side-effect free.
func (s *AuthzService) CanOnProject(p models.Principal, m Membership, action Action) Decision {
	if p.IsGlobalAdmin {
		return Allow()
	}

	switch action {
	case ActionViewProject, ActionCreateTask:
		if m.IsMember {
			return Allow()
		}
		return Deny("not a member of this project")
	case ActionAddMember:
		if m.IsMember && m.Role.AtLeast(models.RoleAdmin) {
			return Allow()
		}
		return Deny("requires project admin or owner")
	case ActionUpdateProject, ActionDeleteProject, ActionUpdateMemberRole:
		if m.IsMember && m.Role == models.RoleOwner {
			return Allow()
		}
		return Deny("requires project owner")
	default:
		return Deny("unknown action")
	}
}

// CanRemoveMember evaluates member removal: any non-owner may leave on
// their own, admins remove plain members, and only the owner removes
// another admin. Owner-target removal is rejected upstream as an
// invariant violation, not a policy question.
func (s *AuthzService) CanRemoveMember(p models.Principal, m Membership, targetUserID uuid.UUID, targetRole models.Role) Decision {
	if p.IsGlobalAdmin {
		return Allow()
	}
	if p.UserID == targetUserID {
		return Allow()
	}
	if !m.IsMember || !m.Role.AtLeast(models.RoleAdmin) {
		return Deny("requires project admin or owner")
	}
	if targetRole == models.RoleAdmin && m.Role != models.RoleOwner {
		return Deny("admins cannot remove other admins")
	}
	return Allow()
}

// CanOnTask evaluates the task-scoped rows of the matrix. m is the
// principal's membership in the task's project; for personal tasks it is
// ignored.
func (s *AuthzService) CanOnTask(p models.Principal, m Membership, task *models.Task, action Action) Decision {
	if p.IsGlobalAdmin {
		return Allow()
	}

	if task.Personal() {
		if task.CreatorID == p.UserID {
			return Allow()
		}
		return Deny("not your task")
	}

	switch action {
	case ActionViewTask:
		if m.IsMember {
			return Allow()
		}
		return Deny("not a member of this project")
	case ActionEditTask:
		if task.CreatorID == p.UserID {
			return Allow()
		}
		if task.AssigneeID != nil && *task.AssigneeID == p.UserID {
			return Allow()
		}
		if m.IsMember && m.Role.AtLeast(models.RoleAdmin) {
			return Allow()
		}
		return Deny("requires task creator, assignee, or project admin")
	case ActionAssignTaskSelf:
		// Plain members may claim unassigned tasks only.
		if !m.IsMember {
			return Deny("not a member of this project")
		}
		if m.Role.AtLeast(models.RoleAdmin) {
			return Allow()
		}
		if task.AssigneeID == nil {
			return Allow()
		}
		return Deny("task is already assigned")
	case ActionAssignTaskOther:
		if m.IsMember && m.Role.AtLeast(models.RoleAdmin) {
			return Allow()
		}
		return Deny("requires project admin or owner")
	default:
		return Deny("unknown action")
	}
}

// CanListUsers: the directory of all users is global-admin only.
func (s *AuthzService) CanListUsers(p models.Principal) Decision {
	if p.IsGlobalAdmin {
		return Allow()
	}
	return Deny("requires global admin")
}
