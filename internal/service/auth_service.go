package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/auth"
	"github.com/spec-kit/helpdesk/internal/clock"
	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/pkg/util/errorutil"
)

// AuthService coordinates registration and login flows.
type AuthService struct {
	accounts   repository.AccountRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	clock      clock.Clock
	logger     *zap.Logger
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	AccountRepo repository.AccountRepository
	Clock       clock.Clock
	Logger      *zap.Logger
}

// LoginResult carries an issued token and the account it belongs to.
type LoginResult struct {
	Account   *domain.Account
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	if deps.Clock == nil {
		deps.Clock = clock.Real()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &AuthService{
		accounts:   deps.AccountRepo,
		tokenMgr:   auth.NewTokenManagerWithClock(cfg.JWTSecret, cfg.AccessTokenTTLMinutes, deps.Clock),
		bcryptCost: cfg.BcryptCost,
		clock:      deps.Clock,
		logger:     deps.Logger,
	}
}

// RegisterMember creates a member account and signs it in.
func (s *AuthService) RegisterMember(ctx context.Context, name, email, password string) (*LoginResult, error) {
	account, err := s.CreateAccount(ctx, name, email, password, domain.RoleMember)
	if err != nil {
		return nil, err
	}
	return s.issue(account)
}

// Login authenticates an account by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	account, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, errorutil.NewUnauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}
	if err := auth.ComparePassword(account.PasswordHash, password); err != nil {
		return nil, errorutil.NewUnauthorized("invalid credentials")
	}
	if !account.Active {
		return nil, errorutil.NewUnauthorized("account is inactive")
	}
	return s.issue(account)
}

// CreateAccount stores a new active account with the given role.
func (s *AuthService) CreateAccount(ctx context.Context, name, email, password string, role domain.Role) (*domain.Account, error) {
	if !role.IsValid() {
		return nil, validationField("role", "must be member or administrator")
	}
	email = normalizeEmail(email)
	if email == "" {
		return nil, validationField("email", "is required")
	}

	hash, err := auth.HashPassword(password, s.bcryptCost)
	if errors.Is(err, auth.ErrPasswordTooShort) {
		return nil, validationField("password", "must be at least 8 characters")
	}
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	account := &domain.Account{
		Name:         strings.TrimSpace(name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, errorutil.NewConflict("email already registered", map[string]any{"email": email})
		}
		return nil, err
	}
	s.logger.Info("account created", zap.Int64("account_id", account.ID), zap.String("role", string(role)))
	return account, nil
}

// EnsureAdministrator creates the bootstrap administrator when it does not
// exist yet. An existing account with that email is left untouched.
func (s *AuthService) EnsureAdministrator(ctx context.Context, email, password string) (*domain.Account, error) {
	existing, err := s.accounts.GetByEmail(ctx, normalizeEmail(email))
	if err == nil {
		if existing.Role != domain.RoleAdministrator {
			s.logger.Warn("bootstrap administrator email belongs to a non-administrator account",
				zap.Int64("account_id", existing.ID))
		}
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.CreateAccount(ctx, "Administrator", email, password, domain.RoleAdministrator)
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) issue(account *domain.Account) (*LoginResult, error) {
	token, exp, err := s.tokenMgr.GenerateToken(account.ID, account.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Account: account, Token: token, ExpiresAt: exp}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
