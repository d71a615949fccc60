package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/config"
	"storefront/internal/ids"
	"storefront/internal/models"
	"storefront/internal/repository"
	"storefront/internal/security"
)

// MinPasswordLength matches the client-side registration rule.
const MinPasswordLength = 6

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserSuspended      = errors.New("user suspended")
	ErrGoogleNotLinked    = errors.New("google account not registered")
	ErrEmailTaken         = errors.New("email already registered")
)

// InputError is a request the backend refuses before touching storage.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

type AuthService struct {
	accounts repository.AccountRepository
	cfg      *config.AppConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuthService(accounts repository.AccountRepository, cfg *config.AppConfig, log zerolog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

type LoginInput struct {
	Email    string
	Password string
}

type GoogleInput struct {
	Email    string
	Name     string
	GoogleID string
	Picture  string
}

type AuthResult struct {
	Token string
	User  models.User
}

func (s *AuthService) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return AuthResult{}, err
	}
	if len(input.Password) < MinPasswordLength {
		return AuthResult{}, &InputError{Reason: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)}
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, err
	}

	account := s.newAccount(email, input.Name)
	account.PasswordHash = passwordHash

	if err := s.create(ctx, account); err != nil {
		return AuthResult{}, err
	}
	return s.issue(account)
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	email := strings.TrimSpace(strings.ToLower(input.Email))
	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, err
	}

	if account.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}

	// Google-only accounts carry no password hash.
	if len(account.PasswordHash) == 0 {
		return AuthResult{}, ErrInvalidCredentials
	}
	ok, err := security.VerifyPassword(input.Password, account.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("account_id", account.ID).Msg("stored password hash unreadable")
		return AuthResult{}, ErrInvalidCredentials
	}
	if !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	return s.issue(account)
}

// GoogleLogin signs in the account linked to the Google subject. An
// existing password account with the same email is linked on first use.
func (s *AuthService) GoogleLogin(ctx context.Context, input GoogleInput) (AuthResult, error) {
	if input.GoogleID == "" {
		return AuthResult{}, &InputError{Reason: "Google account id is required"}
	}

	account, err := s.accounts.FindByGoogleID(ctx, input.GoogleID)
	if errors.Is(err, repository.ErrAccountNotFound) {
		account, err = s.accounts.FindByEmail(ctx, strings.TrimSpace(strings.ToLower(input.Email)))
		if errors.Is(err, repository.ErrAccountNotFound) {
			return AuthResult{}, ErrGoogleNotLinked
		}
		if err == nil {
			if err := s.accounts.LinkGoogle(ctx, account.ID, input.GoogleID, optional(input.Picture)); err != nil {
				return AuthResult{}, err
			}
			s.log.Info().Str("account_id", account.ID).Msg("google identity linked")
		}
	}
	if err != nil {
		return AuthResult{}, err
	}

	if account.Status != models.UserStatusActive {
		return AuthResult{}, ErrUserSuspended
	}
	return s.issue(account)
}

func (s *AuthService) GoogleRegister(ctx context.Context, input GoogleInput) (AuthResult, error) {
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return AuthResult{}, err
	}
	if input.GoogleID == "" {
		return AuthResult{}, &InputError{Reason: "Google account id is required"}
	}

	if _, err := s.accounts.FindByGoogleID(ctx, input.GoogleID); err == nil {
		return AuthResult{}, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrAccountNotFound) {
		return AuthResult{}, err
	}

	account := s.newAccount(email, input.Name)
	account.GoogleID = &input.GoogleID
	account.PictureURL = optional(input.Picture)

	if err := s.create(ctx, account); err != nil {
		return AuthResult{}, err
	}
	return s.issue(account)
}

// Account resolves a token subject to an active account.
func (s *AuthService) Account(ctx context.Context, id string) (models.Account, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		return models.Account{}, err
	}
	if account.Status != models.UserStatusActive {
		return models.Account{}, ErrUserSuspended
	}
	return account, nil
}

func (s *AuthService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	accounts, err := s.accounts.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	users := make([]models.User, 0, len(accounts))
	for _, account := range accounts {
		users = append(users, s.PublicUser(account))
	}
	return users, nil
}

// PublicUser is the wire form of an account, admin flag included.
func (s *AuthService) PublicUser(account models.Account) models.User {
	return account.User().DeriveAdmin(s.cfg.Session.AdminEmail)
}

func (s *AuthService) newAccount(email, name string) models.Account {
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	role := models.UserRoleUser
	if s.cfg.Session.AdminEmail != "" && strings.EqualFold(email, s.cfg.Session.AdminEmail) {
		role = models.UserRoleAdmin
	}
	now := s.now()
	return models.Account{
		ID:        ids.New(),
		Email:     email,
		Name:      strings.TrimSpace(name),
		Role:      role,
		Status:    models.UserStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s *AuthService) create(ctx context.Context, account models.Account) error {
	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return ErrEmailTaken
		}
		return err
	}
	s.log.Info().Str("account_id", account.ID).Str("role", string(account.Role)).Msg("account created")
	return nil
}

func (s *AuthService) issue(account models.Account) (AuthResult, error) {
	token, err := security.GenerateAccessToken(s.cfg.Security.JWTSecret, account, s.cfg.Security.JWTTTL, s.now())
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Token: token, User: s.PublicUser(account)}, nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return "", &InputError{Reason: "Please enter a valid email address"}
	}
	return email, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
