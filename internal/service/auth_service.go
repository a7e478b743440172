package service

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicwatch/incident-service/internal/auth"
	"github.com/civicwatch/incident-service/internal/config"
	"github.com/civicwatch/incident-service/internal/domain"
	"github.com/civicwatch/incident-service/internal/repository"
	apperrors "github.com/civicwatch/incident-service/pkg/util"
)

// AuthService authenticates accounts and issues role-bearing tokens. It is
// the identity collaborator for the assignment core: the claim path trusts
// the principal this service vouches for.
type AuthService struct {
	users    repository.UserRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, users repository.UserRepository) *AuthService {
	return &AuthService{
		users:    users,
		tokenMgr: auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTLMinutes),
	}
}

// Login authenticates by phone number and password.
func (s *AuthService) Login(ctx context.Context, phoneNumber, password string) (*domain.User, string, time.Time, error) {
	user, err := s.users.GetByPhone(ctx, phoneNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	if !user.Active {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("account disabled")
	}
	if err := auth.ComparePassword(user.PasswordHash, password); err != nil {
		return nil, "", time.Time{}, apperrors.NewUnauthorized("invalid credentials")
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, "", time.Time{}, apperrors.MapError(err)
	}
	return user, token, exp, nil
}

// TokenManager exposes the manager for the auth middleware.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
