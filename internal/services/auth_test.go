package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mlukic/sprintsync-api/internal/apperr"
	"github.com/mlukic/sprintsync-api/internal/database"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func setupAuthService(t *testing.T) (*AuthService, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	db := &database.DB{Pool: mock}
	jwtService := NewJWTService("test-secret", 15*time.Minute, 24*time.Hour)
	return NewAuthService(NewUserService(db), jwtService), mock
}

func userRows(userID uuid.UUID, email, passwordHash string, admin bool) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{"id", "email", "password_hash", "is_global_admin", "created_at", "updated_at"}).
		AddRow(userID, email, passwordHash, admin, now, now)
}

func TestAuthService_Register(t *testing.T) {
	svc, mock := setupAuthService(t)
	ctx := context.Background()
	userID := uuid.New()
	email := "new@example.com"

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs(email).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(email, pgxmock.AnyArg()).
		WillReturnRows(userRows(userID, email, "hashed", false))

	user, pair, err := svc.Register(ctx, email, "s3cret-pass")

	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	svc, mock := setupAuthService(t)
	ctx := context.Background()
	email := "taken@example.com"

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs(email).
		WillReturnRows(userRows(uuid.New(), email, "hashed", false))

	_, _, err := svc.Register(ctx, email, "s3cret-pass")

	assert.True(t, apperr.IsKind(err, apperr.Conflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Login(t *testing.T) {
	svc, mock := setupAuthService(t)
	ctx := context.Background()
	userID := uuid.New()
	email := "user@example.com"

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs(email).
		WillReturnRows(userRows(userID, email, string(hash), false))

	user, pair, err := svc.Login(ctx, email, "s3cret-pass")

	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	svc, mock := setupAuthService(t)
	ctx := context.Background()
	email := "user@example.com"

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret-pass"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs(email).
		WillReturnRows(userRows(uuid.New(), email, string(hash), false))

	_, _, err = svc.Login(ctx, email, "wrong-pass")

	assert.True(t, apperr.IsKind(err, apperr.Unauthenticated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	svc, mock := setupAuthService(t)
	ctx := context.Background()
	email := "nobody@example.com"

	mock.ExpectQuery(`SELECT .+ FROM users WHERE email`).
		WithArgs(email).
		WillReturnError(pgx.ErrNoRows)

	_, _, err := svc.Login(ctx, email, "whatever")

	// The message must not reveal whether the email exists.
	assert.True(t, apperr.IsKind(err, apperr.Unauthenticated))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Refresh(t *testing.T) {
	svc, mock := setupAuthService(t)
	ctx := context.Background()
	userID := uuid.New()
	email := "user@example.com"

	pair, err := svc.jwtService.GenerateTokenPair(userID, email)
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT .+ FROM users WHERE id`).
		WithArgs(userID).
		WillReturnRows(userRows(userID, email, "hashed", false))

	fresh, err := svc.Refresh(ctx, pair.RefreshToken)

	require.NoError(t, err)
	assert.NotEmpty(t, fresh.AccessToken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuthService_Refresh_InvalidToken(t *testing.T) {
	svc, _ := setupAuthService(t)

	_, err := svc.Refresh(context.Background(), "not-a-token")

	assert.True(t, apperr.IsKind(err, apperr.Unauthenticated))
}
