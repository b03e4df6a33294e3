// Package auth handles user accounts, credentials, and bearer tokens.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
	"github.com/finassist/finassist-go/internal/settings"
)

const (
	minPasswordLen  = 8
	resetTokenTTL   = time.Hour
	tempPasswordLen = 12
)

// Service implements registration, login, verification, and password flows.
type Service struct {
	users      ports.UserStore
	snapshot   func() settings.Snapshot
	secret     []byte
	bcryptCost int
	log        zerolog.Logger

	// now is replaceable in tests.
	now func() time.Time
}

// NewService creates the auth service. The bcrypt cost is fixed at
// deployment; the token lifetime is live-reloadable via settings.
func NewService(users ports.UserStore, snapshot func() settings.Snapshot, secret string, bcryptCost int, log zerolog.Logger) *Service {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = 12
	}
	return &Service{
		users:      users,
		snapshot:   snapshot,
		secret:     []byte(secret),
		bcryptCost: bcryptCost,
		log:        log.With().Str("component", "auth").Logger(),
		now:        time.Now,
	}
}

// claims is the bearer token payload.
type claims struct {
	jwt.RegisteredClaims
	Purpose string `json:"purpose,omitempty"`
}

// Register creates a user account and returns its public view.
func (s *Service) Register(ctx context.Context, username, email, password, fullName string) (*entities.PublicUser, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &entities.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(fullName),
		Active:       true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}
	s.log.Info().Str("username", username).Msg("user registered")
	pv := u.PublicView()
	return &pv, nil
}

// Login checks credentials and mints a bearer token. Inactive accounts are
// rejected; accounts flagged must_reset get a token usable only for the
// password-change endpoint (the HTTP layer enforces that).
func (s *Service) Login(ctx context.Context, username, password string) (token string, user *entities.User, err error) {
	u, err := s.users.UserByUsername(ctx, username)
	if err != nil {
		return "", nil, fmt.Errorf("looking up user: %w", err)
	}
	if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return "", nil, entities.NewError(entities.KindAuthentication, "incorrect username or password")
	}
	if !u.Active {
		return "", nil, entities.NewError(entities.KindAuthentication, "account is deactivated")
	}

	u.LastLoginAt = s.now()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return "", nil, fmt.Errorf("recording login: %w", err)
	}

	token, err = s.mintToken(u.Username, time.Duration(s.snapshot().TokenExpireMinutes)*time.Minute, "")
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// Verify decodes a bearer token and resolves the account it names.
func (s *Service) Verify(ctx context.Context, token string) (*entities.User, error) {
	subject, _, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.UserByUsername(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if u == nil {
		return nil, entities.NewError(entities.KindAuthentication, "user no longer exists")
	}
	if !u.Active {
		return nil, entities.NewError(entities.KindAuthentication, "account is deactivated")
	}
	return u, nil
}

// ChangePassword verifies the old password before setting the new one and
// clears the must_reset flag.
func (s *Service) ChangePassword(ctx context.Context, user *entities.User, oldPassword, newPassword string) error {
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)) != nil {
		return entities.NewError(entities.KindAuthentication, "current password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	user.PasswordHash = string(hash)
	user.MustReset = false
	if err := s.users.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	s.log.Info().Str("username", user.Username).Msg("password changed")
	return nil
}

// ForgotPassword mints a one-hour reset token when the email matches an
// account. The return is identical either way so callers cannot probe which
// emails exist; the token reaches the user through the delivery channel.
func (s *Service) ForgotPassword(ctx context.Context, email string) (token string, err error) {
	u, err := s.users.UserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}
	if u == nil {
		return "", nil
	}

	token, err = s.mintToken(u.Username, resetTokenTTL, "password_reset")
	if err != nil {
		return "", err
	}
	u.ResetToken = token
	u.ResetTokenAt = s.now()
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return "", fmt.Errorf("persisting reset token: %w", err)
	}
	s.log.Info().Str("username", u.Username).Msg("password reset token issued")
	return token, nil
}

// ResetPassword redeems a reset token exactly once: the token must verify,
// must match the value persisted on the account, and both reset fields are
// cleared atomically with the new hash.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	subject, purpose, err := s.parseToken(token)
	if err != nil {
		return entities.NewError(entities.KindAuthentication, "invalid or expired reset token")
	}
	if purpose != "password_reset" {
		return entities.NewError(entities.KindAuthentication, "invalid or expired reset token")
	}
	if err := validatePassword(newPassword); err != nil {
		return err
	}

	u, err := s.users.UserByResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("looking up reset token: %w", err)
	}
	if u == nil || u.Username != subject {
		return entities.NewError(entities.KindAuthentication, "invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.bcryptCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.ResetToken = ""
	u.ResetTokenAt = time.Time{}
	u.MustReset = false
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return fmt.Errorf("updating password: %w", err)
	}
	s.log.Info().Str("username", u.Username).Msg("password reset redeemed")
	return nil
}

// ForceResetPassword generates a temporary password for an account, flags
// it for mandatory change, and returns the cleartext exactly once.
func (s *Service) ForceResetPassword(ctx context.Context, userID string) (tempPassword string, err error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("looking up user: %w", err)
	}
	if u == nil {
		return "", entities.NewError(entities.KindNotFound, "user %s not found", userID)
	}

	tempPassword, err = generateTempPassword()
	if err != nil {
		return "", fmt.Errorf("generating password: %w", err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	u.PasswordHash = string(hash)
	u.MustReset = true
	u.ResetToken = ""
	u.ResetTokenAt = time.Time{}
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return "", fmt.Errorf("updating password: %w", err)
	}
	return tempPassword, nil
}

func (s *Service) mintToken(subject string, ttl time.Duration, purpose string) (string, error) {
	now := s.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Purpose: purpose,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return token, nil
}

func (s *Service) parseToken(token string) (subject, purpose string, err error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))
	if err != nil || !parsed.Valid {
		return "", "", entities.NewError(entities.KindAuthentication, "invalid or expired token")
	}
	if c.Subject == "" {
		return "", "", entities.NewError(entities.KindAuthentication, "token has no subject")
	}
	return c.Subject, c.Purpose, nil
}

func validateUsername(username string) error {
	if len(username) < 3 || len(username) > 50 {
		return entities.NewError(entities.KindValidation, "username must be between 3 and 50 characters")
	}
	for _, r := range username {
		if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' || r == '.') {
			return entities.NewError(entities.KindValidation, "username may only contain letters, digits, '_', '-', '.'")
		}
	}
	return nil
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at < 1 || at == len(email)-1 || !strings.Contains(email[at+1:], ".") {
		return entities.NewError(entities.KindValidation, "invalid email address")
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLen {
		return entities.NewError(entities.KindValidation, "password must be at least %d characters", minPasswordLen)
	}
	return nil
}
