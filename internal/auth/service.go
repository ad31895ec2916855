package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/talkincode/storefront/internal/domain"
	"github.com/talkincode/storefront/internal/repository"
	"github.com/talkincode/storefront/pkg/common"
	"go.uber.org/zap"
)

const minPasswordLen = 8

var validate = validator.New()

type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

func (in *RegisterInput) Validate() error {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)

	var verr domain.ValidationError
	if err := validate.Var(in.Email, "required,email,max=255"); err != nil {
		verr.Add("email", "a valid email address is required")
	}
	if len(in.Password) < minPasswordLen {
		verr.Add("password", "password must be at least %d characters", minPasswordLen)
	}
	if len([]rune(in.FirstName)) > 100 {
		verr.Add("first_name", "first name must be at most 100 characters")
	}
	if len([]rune(in.LastName)) > 100 {
		verr.Add("last_name", "last name must be at most 100 characters")
	}
	return verr.Err()
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User      *domain.User `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// Service registers and authenticates users.
type Service struct {
	users  repository.UserRepository
	tokens *TokenMaker
}

func NewService(users repository.UserRepository, tokens *TokenMaker) *Service {
	return &Service{users: users, tokens: tokens}
}

// Register creates a customer account with the User role.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, in, domain.RoleUser)
}

func (s *Service) create(ctx context.Context, in RegisterInput, roles ...string) (*domain.User, error) {
	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return nil, fmt.Errorf("email %s already registered: %w", in.Email, domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	hash, err := common.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &domain.User{
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		CreatedAt:    time.Now(),
	}
	u.SetRoles(roles...)
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	zap.L().Info("user registered", zap.Int64("id", u.ID), zap.String("email", u.Email))
	return u, nil
}

// Login checks the credentials and issues an access token. Unknown email and wrong
// password are reported the same way.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !common.CheckPassword(u.PasswordHash, password) {
		zap.L().Warn("login failed", zap.String("email", u.Email))
		return nil, fmt.Errorf("invalid email or password: %w", domain.ErrUnauthorized)
	}
	now := time.Now()
	if err := s.users.UpdateLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLoginAt = &now
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{User: u, Token: token, ExpiresAt: exp}, nil
}

// ParseToken returns the identity of a valid access token.
func (s *Service) ParseToken(token string) (*Claims, error) {
	return s.tokens.Parse(token)
}

func (s *Service) GetUser(ctx context.Context, id int64) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}

// EnsureAdmin creates the administrator account when no user owns the email yet.
func (s *Service) EnsureAdmin(ctx context.Context, email, password string) (*domain.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		if !u.HasRole(domain.RoleAdmin) {
			u.SetRoles(append(u.RoleList(), domain.RoleAdmin)...)
			if err := s.users.Update(ctx, u); err != nil {
				return nil, err
			}
		}
		return u, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	in := RegisterInput{Email: email, Password: password, FirstName: "Store", LastName: "Admin"}
	if err := in.Validate(); err != nil {
		return nil, err
	}
	return s.create(ctx, in, domain.RoleAdmin, domain.RoleUser)
}
