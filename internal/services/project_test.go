package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mlukic/sprintsync-api/internal/apperr"
	"github.com/mlukic/sprintsync-api/internal/database"
	"github.com/mlukic/sprintsync-api/internal/models"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupProjectService(t *testing.T) (*ProjectService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	db := &database.DB{Pool: mock}
	return NewProjectService(db, NewAuthzService(db)), mock
}

func projectRows(projectID, ownerID uuid.UUID, name string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{"id", "name", "description", "owner_id", "is_active", "created_at", "updated_at"}).
		AddRow(projectID, name, nil, ownerID, true, now, now)
}

func memberRows(projectID, userID uuid.UUID, role models.Role) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{"id", "project_id", "user_id", "role", "created_at", "updated_at"}).
		AddRow(uuid.New(), projectID, userID, role, now, now)
}

func expectLockProject(mock pgxmock.PgxPoolIface, projectID uuid.UUID) {
	mock.ExpectQuery(`SELECT id FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs(projectID).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(projectID))
}

func expectMembership(mock pgxmock.PgxPoolIface, projectID, userID uuid.UUID, role models.Role) {
	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs(projectID, userID).
		WillReturnRows(pgxmock.NewRows([]string{"role"}).AddRow(role))
}

func TestProjectService_Create(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO projects`).
		WithArgs("Apollo", pgxmock.AnyArg(), p.UserID).
		WillReturnRows(projectRows(projectID, p.UserID, "Apollo"))
	mock.ExpectExec(`INSERT INTO project_members`).
		WithArgs(projectID, p.UserID, models.RoleOwner).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	project, err := svc.Create(ctx, p, "Apollo", nil)

	require.NoError(t, err)
	assert.Equal(t, projectID, project.ID)
	assert.Equal(t, p.UserID, project.OwnerID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_Create_RollbackOnMemberInsert(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO projects`).
		WithArgs("Apollo", pgxmock.AnyArg(), p.UserID).
		WillReturnRows(projectRows(projectID, p.UserID, "Apollo"))
	mock.ExpectExec(`INSERT INTO project_members`).
		WithArgs(projectID, p.UserID, models.RoleOwner).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := svc.Create(ctx, p, "Apollo", nil)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_Update_NonMemberGetsNotFound(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs(projectID, p.UserID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	name := "renamed"
	_, err := svc.Update(ctx, p, projectID, &name, nil, nil)

	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_Update_AdminDenied(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	expectMembership(mock, projectID, p.UserID, models.RoleAdmin)
	mock.ExpectRollback()

	name := "renamed"
	_, err := svc.Update(ctx, p, projectID, &name, nil, nil)

	assert.True(t, apperr.IsKind(err, apperr.PermissionDenied))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_Delete_RemovesTasksMembersProject(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	expectMembership(mock, projectID, p.UserID, models.RoleOwner)
	mock.ExpectExec(`DELETE FROM tasks WHERE project_id`).
		WithArgs(projectID).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`DELETE FROM project_members WHERE project_id`).
		WithArgs(projectID).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`DELETE FROM projects WHERE id`).
		WithArgs(projectID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectCommit()

	err := svc.Delete(ctx, p, projectID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_Delete_UnknownProject(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM projects WHERE id = \$1 FOR UPDATE`).
		WithArgs(projectID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := svc.Delete(ctx, p, projectID)

	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_AddMember(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	newUserID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	expectMembership(mock, projectID, p.UserID, models.RoleAdmin)
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users`).
		WithArgs(newUserID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM project_members`).
		WithArgs(projectID, newUserID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO project_members`).
		WithArgs(projectID, newUserID, models.RoleMember).
		WillReturnRows(memberRows(projectID, newUserID, models.RoleMember))
	mock.ExpectCommit()

	m, err := svc.AddMember(ctx, p, projectID, newUserID, models.RoleMember)

	require.NoError(t, err)
	assert.Equal(t, newUserID, m.UserID)
	assert.Equal(t, models.RoleMember, m.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_AddMember_Duplicate(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	newUserID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	expectMembership(mock, projectID, p.UserID, models.RoleOwner)
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM users`).
		WithArgs(newUserID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM project_members`).
		WithArgs(projectID, newUserID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := svc.AddMember(ctx, p, projectID, newUserID, models.RoleMember)

	assert.True(t, apperr.IsKind(err, apperr.Conflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_AddMember_OwnerRoleRejected(t *testing.T) {
	svc, _ := setupProjectService(t)

	_, err := svc.AddMember(context.Background(), principal(false), uuid.New(), uuid.New(), models.RoleOwner)

	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
}

func TestProjectService_AddMember_PlainMemberDenied(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	expectMembership(mock, projectID, p.UserID, models.RoleMember)
	mock.ExpectRollback()

	_, err := svc.AddMember(ctx, p, projectID, uuid.New(), models.RoleMember)

	assert.True(t, apperr.IsKind(err, apperr.PermissionDenied))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func expectRemovePreamble(mock pgxmock.PgxPoolIface, projectID, targetID uuid.UUID, existedBefore bool) {
	mock.ExpectQuery(`SELECT EXISTS\(SELECT 1 FROM project_members`).
		WithArgs(projectID, targetID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(existedBefore))
	mock.ExpectBegin()
	expectLockProject(mock, projectID)
}

func TestProjectService_RemoveMember(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	targetID := uuid.New()

	expectRemovePreamble(mock, projectID, targetID, true)
	expectMembership(mock, projectID, p.UserID, models.RoleAdmin)
	expectMembership(mock, projectID, targetID, models.RoleMember)
	mock.ExpectExec(`DELETE FROM project_members`).
		WithArgs(projectID, targetID).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`UPDATE tasks SET assignee_id = NULL`).
		WithArgs(projectID, targetID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 2))
	mock.ExpectCommit()

	err := svc.RemoveMember(ctx, p, projectID, targetID)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_RemoveMember_OwnerUntouchable(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	ownerID := uuid.New()

	expectRemovePreamble(mock, projectID, ownerID, true)
	expectMembership(mock, projectID, p.UserID, models.RoleAdmin)
	expectMembership(mock, projectID, ownerID, models.RoleOwner)
	mock.ExpectRollback()

	err := svc.RemoveMember(ctx, p, projectID, ownerID)

	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_RemoveMember_AdminCannotRemoveAdmin(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	targetID := uuid.New()

	expectRemovePreamble(mock, projectID, targetID, true)
	expectMembership(mock, projectID, p.UserID, models.RoleAdmin)
	expectMembership(mock, projectID, targetID, models.RoleAdmin)
	mock.ExpectRollback()

	err := svc.RemoveMember(ctx, p, projectID, targetID)

	assert.True(t, apperr.IsKind(err, apperr.PermissionDenied))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_RemoveMember_LastAdminStays(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(true)
	projectID := uuid.New()
	targetID := uuid.New()

	expectRemovePreamble(mock, projectID, targetID, true)
	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs(projectID, p.UserID).
		WillReturnError(pgx.ErrNoRows)
	expectMembership(mock, projectID, targetID, models.RoleAdmin)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM project_members`).
		WithArgs(projectID, targetID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := svc.RemoveMember(ctx, p, projectID, targetID)

	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_RemoveMember_VanishedAfterLock(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	targetID := uuid.New()

	// The target existed before the transaction; a concurrent removal won.
	expectRemovePreamble(mock, projectID, targetID, true)
	expectMembership(mock, projectID, p.UserID, models.RoleOwner)
	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs(projectID, targetID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := svc.RemoveMember(ctx, p, projectID, targetID)

	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_RemoveMember_NeverExisted(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	targetID := uuid.New()

	expectRemovePreamble(mock, projectID, targetID, false)
	expectMembership(mock, projectID, p.UserID, models.RoleOwner)
	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs(projectID, targetID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := svc.RemoveMember(ctx, p, projectID, targetID)

	assert.True(t, apperr.IsKind(err, apperr.NotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_UpdateMemberRole(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(false)
	projectID := uuid.New()
	targetID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	expectMembership(mock, projectID, p.UserID, models.RoleOwner)
	expectMembership(mock, projectID, targetID, models.RoleMember)
	mock.ExpectQuery(`UPDATE project_members SET role`).
		WithArgs(models.RoleAdmin, projectID, targetID).
		WillReturnRows(memberRows(projectID, targetID, models.RoleAdmin))
	mock.ExpectCommit()

	m, err := svc.UpdateMemberRole(ctx, p, projectID, targetID, models.RoleAdmin)

	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, m.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_UpdateMemberRole_OwnerTargetRejected(t *testing.T) {
	svc, mock := setupProjectService(t)
	ctx := context.Background()
	p := principal(true)
	projectID := uuid.New()
	ownerID := uuid.New()

	mock.ExpectBegin()
	expectLockProject(mock, projectID)
	mock.ExpectQuery(`SELECT role FROM project_members`).
		WithArgs(projectID, p.UserID).
		WillReturnError(pgx.ErrNoRows)
	expectMembership(mock, projectID, ownerID, models.RoleOwner)
	mock.ExpectRollback()

	_, err := svc.UpdateMemberRole(ctx, p, projectID, ownerID, models.RoleMember)

	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProjectService_UpdateMemberRole_ToOwnerRejected(t *testing.T) {
	svc, _ := setupProjectService(t)

	_, err := svc.UpdateMemberRole(context.Background(), principal(false), uuid.New(), uuid.New(), models.RoleOwner)

	assert.True(t, apperr.IsKind(err, apperr.InvariantViolation))
}
