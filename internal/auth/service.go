package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/vovakirdan/wirechat-lite/internal/store"
)

var (
	// ErrInvalidCredentials is returned when username/password don't match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUserExists is returned when trying to register with existing username.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidUsername is returned when username doesn't meet constraints.
	ErrInvalidUsername = errors.New("invalid username")
	// ErrInvalidPassword is returned when password doesn't meet constraints.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrTokensDisabled is returned when no signing secret is configured.
	ErrTokensDisabled = errors.New("tokens disabled")
)

const (
	minUsernameLen = 3
	maxUsernameLen = 32
	minPasswordLen = 6
)

// Credential is a username/password pair used for seeding accounts.
type Credential struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

// Service is the credential gateway backed by a user store.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service. A nil jwtConfig, or one
// without a secret, disables resume tokens.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	if jwtConfig != nil && len(jwtConfig.Secret) == 0 {
		jwtConfig = nil
	}
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// NormalizeUsername trims surrounding whitespace.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

// ValidateCredentials checks the constraints applied to new accounts.
func ValidateCredentials(username, password string) error {
	n := utf8.RuneCountInString(username)
	if n < minUsernameLen || n > maxUsernameLen || strings.ContainsAny(username, " \t\r\n") {
		return ErrInvalidUsername
	}
	if len(password) < minPasswordLen {
		return ErrInvalidPassword
	}
	return nil
}

// Verify reports whether password matches the stored hash for username.
// An unknown user is a mismatch, not an error.
func (s *Service) Verify(ctx context.Context, username, password string) (bool, error) {
	user, err := s.store.GetUserByUsername(ctx, NormalizeUsername(username))
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("get user: %w", err)
	}

	if errPwd := ComparePassword(user.PasswordHash, password); errPwd != nil {
		return false, nil
	}
	return true, nil
}

// Create registers a new account. Returns ErrUserExists when the username is taken.
func (s *Service) Create(ctx context.Context, username, password string) error {
	username = NormalizeUsername(username)
	if err := ValidateCredentials(username, password); err != nil {
		return err
	}

	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}

	if _, err := s.store.CreateUser(ctx, username, hashedPassword); err != nil {
		if errors.Is(err, store.ErrUserExists) {
			return ErrUserExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Login validates credentials and returns a resume token.
func (s *Service) Login(ctx context.Context, username, password string) (string, error) {
	ok, err := s.Verify(ctx, username, password)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrInvalidCredentials
	}
	return s.IssueToken(NormalizeUsername(username))
}

// IssueToken signs a resume token for username.
func (s *Service) IssueToken(username string) (string, error) {
	if s.jwtConfig == nil {
		return "", ErrTokensDisabled
	}
	token, err := GenerateToken(s.jwtConfig, username)
	if err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return token, nil
}

// VerifyToken validates a resume token and returns the username it names.
func (s *Service) VerifyToken(token string) (string, error) {
	if s.jwtConfig == nil {
		return "", ErrTokensDisabled
	}
	claims, err := ValidateToken(s.jwtConfig, token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return claims.Username, nil
}

// TokensEnabled reports whether resume tokens can be issued.
func (s *Service) TokensEnabled() bool {
	return s.jwtConfig != nil
}

// Seed creates the given accounts, skipping usernames that already exist.
// It returns the number of accounts created.
func (s *Service) Seed(ctx context.Context, users []Credential) (int, error) {
	created := 0
	for _, u := range users {
		err := s.Create(ctx, u.Username, u.Password)
		switch {
		case err == nil:
			created++
		case errors.Is(err, ErrUserExists):
		default:
			return created, fmt.Errorf("seed %q: %w", u.Username, err)
		}
	}
	return created, nil
}
