package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/mlukic/sprintsync-api/internal/apperr"
	"github.com/mlukic/sprintsync-api/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles registration and login. It only mints identity; all
// authorization happens downstream against the principal.
type AuthService struct {
	users      *UserService
	jwtService *JWTService
}

func NewAuthService(users *UserService, jwtService *JWTService) *AuthService {
	return &AuthService{users: users, jwtService: jwtService}
}

func (s *AuthService) Register(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	if _, err := s.users.GetByEmail(ctx, email); err == nil {
		return nil, nil, apperr.E(apperr.Conflict, "email is already registered")
	} else if !apperr.IsKind(err, apperr.NotFound) {
		return nil, nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, email, string(hash))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create user: %w", err)
	}

	pair, err := s.jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, *TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, nil, apperr.E(apperr.Unauthenticated, "invalid email or password")
		}
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, nil, apperr.E(apperr.Unauthenticated, "invalid email or password")
		}
		return nil, nil, err
	}

	pair, err := s.jwtService.GenerateTokenPair(user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	userID, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, "invalid refresh token", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return nil, apperr.E(apperr.Unauthenticated, "unknown user")
		}
		return nil, err
	}

	return s.jwtService.GenerateTokenPair(user.ID, user.Email)
}
