package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/mlukic/sprintsync-api/internal/database"
	"github.com/mlukic/sprintsync-api/internal/models"
)

// Fixtures provides factory methods for creating test data
type Fixtures struct {
	db      *database.DB
	counter int
}

// NewFixtures creates a new fixtures factory
func NewFixtures(db *database.DB) *Fixtures {
	return &Fixtures{db: db}
}

// CreateUser creates a test user with default values
func (f *Fixtures) CreateUser(t *testing.T, opts ...UserOption) *models.User {
	t.Helper()
	f.counter++

	user := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", f.counter),
		PasswordHash: "not-a-real-hash",
	}

	for _, opt := range opts {
		opt(user)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, is_global_admin)
		VALUES ($1, $2, $3)
		RETURNING id, email, password_hash, is_global_admin, created_at, updated_at
	`, user.Email, user.PasswordHash, user.IsGlobalAdmin).Scan(
		&user.ID, &user.Email, &user.PasswordHash,
		&user.IsGlobalAdmin, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	return user
}

// UserOption configures a test user
type UserOption func(*models.User)

// WithEmail sets the user's email
func WithEmail(email string) UserOption {
	return func(u *models.User) {
		u.Email = email
	}
}

// AsGlobalAdmin marks the user as a global admin
func AsGlobalAdmin() UserOption {
	return func(u *models.User) {
		u.IsGlobalAdmin = true
	}
}

// Principal builds the request principal for a fixture user
func Principal(user *models.User) models.Principal {
	return models.Principal{UserID: user.ID, IsGlobalAdmin: user.IsGlobalAdmin}
}

// CreateProject creates a test project with the given owner as its sole
// owner member
func (f *Fixtures) CreateProject(t *testing.T, owner *models.User, opts ...ProjectOption) *models.Project {
	t.Helper()
	f.counter++

	project := &models.Project{
		Name:    fmt.Sprintf("Test Project %d", f.counter),
		OwnerID: owner.ID,
	}

	for _, opt := range opts {
		opt(project)
	}

	ctx := context.Background()
	tx, err := f.db.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO projects (name, description, owner_id)
		VALUES ($1, $2, $3)
		RETURNING id, name, description, owner_id, is_active, created_at, updated_at
	`, project.Name, project.Description, project.OwnerID).Scan(
		&project.ID, &project.Name, &project.Description,
		&project.OwnerID, &project.IsActive, &project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create project: %v", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
	`, project.ID, owner.ID, models.RoleOwner)
	if err != nil {
		t.Fatalf("failed to add owner as member: %v", err)
	}

	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("failed to commit transaction: %v", err)
	}

	return project
}

// ProjectOption configures a test project
type ProjectOption func(*models.Project)

// WithProjectName sets the project's name
func WithProjectName(name string) ProjectOption {
	return func(p *models.Project) {
		p.Name = name
	}
}

// AddProjectMember adds a member to a project with the given role
func (f *Fixtures) AddProjectMember(t *testing.T, project *models.Project, user *models.User, role models.Role) {
	t.Helper()
	ctx := context.Background()

	_, err := f.db.Pool.Exec(ctx, `
		INSERT INTO project_members (project_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, user_id) DO NOTHING
	`, project.ID, user.ID, role)
	if err != nil {
		t.Fatalf("failed to add project member: %v", err)
	}
}

// CreateTask creates a test task; pass WithProject for a project task,
// otherwise it is personal to the creator
func (f *Fixtures) CreateTask(t *testing.T, creator *models.User, opts ...TaskOption) *models.Task {
	t.Helper()
	f.counter++

	task := &models.Task{
		Title:     fmt.Sprintf("Test Task %d", f.counter),
		CreatorID: creator.ID,
	}

	for _, opt := range opts {
		opt(task)
	}

	ctx := context.Background()
	err := f.db.Pool.QueryRow(ctx, `
		INSERT INTO tasks (title, description, status, project_id, creator_id, assignee_id)
		VALUES ($1, $2, COALESCE($3, 'todo'), $4, $5, $6)
		RETURNING id, title, description, status, total_minutes, project_id, creator_id, assignee_id, created_at, updated_at
	`, task.Title, task.Description, nullableStatus(task.Status), task.ProjectID, task.CreatorID, task.AssigneeID).Scan(
		&task.ID, &task.Title, &task.Description, &task.Status, &task.TotalMinutes,
		&task.ProjectID, &task.CreatorID, &task.AssigneeID, &task.CreatedAt, &task.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("failed to create task: %v", err)
	}

	return task
}

func nullableStatus(s models.TaskStatus) *models.TaskStatus {
	if s == "" {
		return nil
	}
	return &s
}

// TaskOption configures a test task
type TaskOption func(*models.Task)

// WithProject places the task in the given project
func WithProject(project *models.Project) TaskOption {
	return func(t *models.Task) {
		t.ProjectID = &project.ID
	}
}

// WithAssignee assigns the task to the given user
func WithAssignee(user *models.User) TaskOption {
	return func(t *models.Task) {
		t.AssigneeID = &user.ID
	}
}

// WithStatus sets the task's status
func WithStatus(status models.TaskStatus) TaskOption {
	return func(t *models.Task) {
		t.Status = status
	}
}
