package integration

import (
	"context"
	"sync"
	"testing"

	"github.com/mlukic/sprintsync-api/internal/apperr"
	"github.com/mlukic/sprintsync-api/internal/models"
	"github.com/mlukic/sprintsync-api/internal/services"
	"github.com/mlukic/sprintsync-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectService_Integration_AddMember(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewProjectService(tdb.DB, services.NewAuthzService(tdb.DB))
	ctx := context.Background()

	owner := fixtures.CreateUser(t)
	newcomer := fixtures.CreateUser(t)
	project := fixtures.CreateProject(t, owner)

	m, err := svc.AddMember(ctx, testutil.Principal(owner), project.ID, newcomer.ID, models.RoleMember)

	require.NoError(t, err)
	assert.Equal(t, newcomer.ID, m.UserID)
	assert.Equal(t, models.RoleMember, m.Role)

	// Adding the same user again is a conflict, not an upsert.
	_, err = svc.AddMember(ctx, testutil.Principal(owner), project.ID, newcomer.ID, models.RoleAdmin)
	assert.True(t, apperr.IsKind(err, apperr.Conflict))
}

func TestProjectService_Integration_MemberCannotAdd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewProjectService(tdb.DB, services.NewAuthzService(tdb.DB))
	ctx := context.Background()

	owner := fixtures.CreateUser(t)
	member := fixtures.CreateUser(t)
	outsider := fixtures.CreateUser(t)
	project := fixtures.CreateProject(t, owner)
	fixtures.AddProjectMember(t, project, member, models.RoleMember)

	_, err := svc.AddMember(ctx, testutil.Principal(member), project.ID, outsider.ID, models.RoleMember)

	assert.True(t, apperr.IsKind(err, apperr.PermissionDenied))
}

func TestProjectService_Integration_OwnerCannotBeRemoved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewProjectService(tdb.DB, services.NewAuthzService(tdb.DB))
	ctx := context.Background()

	owner := fixtures.CreateUser(t)
	admin := fixtures.CreateUser(t)
	project := fixtures.CreateProject(t, owner)
	fixtures.AddProjectMember(t, project, admin, models.RoleAdmin)

	err := svc.RemoveMember(ctx, testutil.Principal(admin), project.ID, owner.ID)
	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))

	// Not even the owner removes themselves; the owner goes with the project.
	err = svc.RemoveMember(ctx, testutil.Principal(owner), project.ID, owner.ID)
	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
}

func TestProjectService_Integration_SelfRemoval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	authz := services.NewAuthzService(tdb.DB)
	svc := services.NewProjectService(tdb.DB, authz)
	ctx := context.Background()

	owner := fixtures.CreateUser(t)
	member := fixtures.CreateUser(t)
	project := fixtures.CreateProject(t, owner)
	fixtures.AddProjectMember(t, project, member, models.RoleMember)

	err := svc.RemoveMember(ctx, testutil.Principal(member), project.ID, member.ID)
	require.NoError(t, err)

	m, err := authz.Snapshot(ctx, project.ID, member.ID)
	require.NoError(t, err)
	assert.False(t, m.IsMember)
}

func TestProjectService_Integration_RemovalClearsAssignments(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewProjectService(tdb.DB, services.NewAuthzService(tdb.DB))
	ctx := context.Background()

	owner := fixtures.CreateUser(t)
	member := fixtures.CreateUser(t)
	project := fixtures.CreateProject(t, owner)
	fixtures.AddProjectMember(t, project, member, models.RoleMember)
	task := fixtures.CreateTask(t, owner, testutil.WithProject(project), testutil.WithAssignee(member))

	err := svc.RemoveMember(ctx, testutil.Principal(owner), project.ID, member.ID)
	require.NoError(t, err)

	var assignee *string
	require.NoError(t, tdb.DB.Pool.QueryRow(ctx,
		`SELECT assignee_id::text FROM tasks WHERE id = $1`, task.ID).Scan(&assignee))
	assert.Nil(t, assignee)
}

func TestProjectService_Integration_ConcurrentRemoval(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewProjectService(tdb.DB, services.NewAuthzService(tdb.DB))
	ctx := context.Background()

	owner := fixtures.CreateUser(t)
	member := fixtures.CreateUser(t)
	project := fixtures.CreateProject(t, owner)
	fixtures.AddProjectMember(t, project, member, models.RoleMember)

	// Two removals of the same member race; the project row lock
	// serializes them. At most one succeeds and the loser sees the
	// concurrent change instead of silently succeeding twice.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.RemoveMember(ctx, testutil.Principal(owner), project.ID, member.ID)
		}(i)
	}
	wg.Wait()

	// The loser reports InvariantViolation when it raced past the initial
	// existence read, NotFound when it started after the winner committed.
	var wins, losses int
	for _, err := range errs {
		if err == nil {
			wins++
		} else if apperr.IsKind(err, apperr.InvariantViolation) || apperr.IsKind(err, apperr.NotFound) {
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
}

func TestProjectService_Integration_UpdateMemberRole(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb := setupTest(t)
	fixtures := testutil.NewFixtures(tdb.DB)
	svc := services.NewProjectService(tdb.DB, services.NewAuthzService(tdb.DB))
	ctx := context.Background()

	owner := fixtures.CreateUser(t)
	member := fixtures.CreateUser(t)
	project := fixtures.CreateProject(t, owner)
	fixtures.AddProjectMember(t, project, member, models.RoleMember)

	promoted, err := svc.UpdateMemberRole(ctx, testutil.Principal(owner), project.ID, member.ID, models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, promoted.Role)

	// The owner row never changes role.
	_, err = svc.UpdateMemberRole(ctx, testutil.Principal(owner), project.ID, owner.ID, models.RoleMember)
	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
}
