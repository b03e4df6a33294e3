// Package admin implements the administrative control plane: user
// lifecycle, document oversight, monitoring, analytics, and dynamic
// configuration. Every mutation and its audit entry commit or fail as one
// logical unit.
package admin

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/finassist/finassist-go/internal/audit"
	"github.com/finassist/finassist-go/internal/auth"
	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// UserService manages accounts on behalf of admins.
type UserService struct {
	users    ports.UserStore
	sessions ports.SessionStore
	auth     *auth.Service
	audit    *audit.Logger
	log      zerolog.Logger
}

// NewUserService creates the admin user service.
func NewUserService(users ports.UserStore, sessions ports.SessionStore, authSvc *auth.Service, auditLog *audit.Logger, log zerolog.Logger) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		auth:     authSvc,
		audit:    auditLog,
		log:      log.With().Str("component", "admin_users").Logger(),
	}
}

// List pages through accounts as public views.
func (s *UserService) List(ctx context.Context, filter ports.UserFilter) ([]entities.PublicUser, int, error) {
	users, total, err := s.users.ListUsers(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	views := make([]entities.PublicUser, len(users))
	for i := range users {
		views[i] = users[i].PublicView()
	}
	return views, total, nil
}

// Get returns one account's public view plus its session count.
func (s *UserService) Get(ctx context.Context, userID string) (*entities.PublicUser, []entities.Session, error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if u == nil {
		return nil, nil, entities.NewError(entities.KindNotFound, "user %s not found", userID)
	}
	sessions, err := s.sessions.SessionsByUser(ctx, userID, 10)
	if err != nil {
		return nil, nil, err
	}
	pv := u.PublicView()
	return &pv, sessions, nil
}

// SetActive flips an account's active flag. Admins cannot deactivate
// themselves.
func (s *UserService) SetActive(ctx context.Context, admin *entities.User, userID string, active bool, clientAddr string) (*entities.PublicUser, error) {
	if admin.ID == userID && !active {
		return nil, entities.NewError(entities.KindValidation, "admins cannot deactivate their own account")
	}
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, entities.NewError(entities.KindNotFound, "user %s not found", userID)
	}

	previous := u.Active
	u.Active = active
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	details := map[string]interface{}{"username": u.Username, "from": previous, "to": active}
	if err := s.audit.Record(ctx, admin, audit.ActionUpdateUserStatus, "user", userID, details, clientAddr, entities.ResultSuccess); err != nil {
		// The mutation may not stand without its audit entry; put it back.
		u.Active = previous
		if revertErr := s.users.UpdateUser(ctx, u); revertErr != nil {
			s.log.Error().Err(revertErr).Str("user_id", userID).Msg("revert after audit failure also failed")
		}
		return nil, entities.WrapError(entities.KindInternal, err, "recording activity")
	}
	pv := u.PublicView()
	return &pv, nil
}

// Promote grants admin rights to an account.
func (s *UserService) Promote(ctx context.Context, admin *entities.User, userID, clientAddr string) (*entities.PublicUser, error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, entities.NewError(entities.KindNotFound, "user %s not found", userID)
	}
	if u.Admin {
		return nil, entities.NewError(entities.KindConflict, "user %s is already an admin", u.Username)
	}

	u.Admin = true
	if err := s.users.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	details := map[string]interface{}{"username": u.Username}
	if err := s.audit.Record(ctx, admin, audit.ActionPromoteUser, "user", userID, details, clientAddr, entities.ResultSuccess); err != nil {
		u.Admin = false
		if revertErr := s.users.UpdateUser(ctx, u); revertErr != nil {
			s.log.Error().Err(revertErr).Str("user_id", userID).Msg("revert after audit failure also failed")
		}
		return nil, entities.WrapError(entities.KindInternal, err, "recording activity")
	}
	pv := u.PublicView()
	return &pv, nil
}

// ResetPassword force-generates a temporary password and returns it
// exactly once. The account must change it at next login.
func (s *UserService) ResetPassword(ctx context.Context, admin *entities.User, userID, clientAddr string) (string, error) {
	u, err := s.users.UserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if u == nil {
		return "", entities.NewError(entities.KindNotFound, "user %s not found", userID)
	}
	previousHash := u.PasswordHash

	temp, err := s.auth.ForceResetPassword(ctx, userID)
	if err != nil {
		return "", err
	}
	details := map[string]interface{}{"username": u.Username}
	if err := s.audit.Record(ctx, admin, audit.ActionResetPassword, "user", userID, details, clientAddr, entities.ResultSuccess); err != nil {
		u.PasswordHash = previousHash
		u.MustReset = false
		if revertErr := s.users.UpdateUser(ctx, u); revertErr != nil {
			s.log.Error().Err(revertErr).Str("user_id", userID).Msg("revert after audit failure also failed")
		}
		return "", entities.WrapError(entities.KindInternal, err, "recording activity")
	}
	return temp, nil
}
