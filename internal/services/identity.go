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

// IdentityService resolves verified token claims into a Principal. The
// global-admin flag is read from the users table on every request rather
// than trusted from the token, so revocations take effect immediately.
type IdentityService struct {
	db *database.DB
}

func NewIdentityService(db *database.DB) *IdentityService {
	return &IdentityService{db: db}
}

func (s *IdentityService) Resolve(ctx context.Context, userID uuid.UUID) (models.Principal, error) {
	if userID == uuid.Nil {
		return models.Principal{}, apperr.E(apperr.Unauthenticated, "not authenticated")
	}

	var isGlobalAdmin bool
	err := s.db.Pool.QueryRow(ctx, `
		SELECT is_global_admin FROM users WHERE id = $1
	`, userID).Scan(&isGlobalAdmin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Principal{}, apperr.E(apperr.Unauthenticated, "unknown user")
		}
		return models.Principal{}, err
	}

	return models.Principal{UserID: userID, IsGlobalAdmin: isGlobalAdmin}, nil
}
