// Package audit appends admin actions to the activity trail.
package audit

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/domain/ports"
)

// Action names recorded in the trail.
const (
	ActionUpdateUserStatus = "update_user_status"
	ActionPromoteUser      = "promote_user"
	ActionResetPassword    = "reset_user_password"
	ActionDeleteDocument   = "delete_document"
	ActionUpdateConfig     = "update_config"
	ActionResetConfig      = "reset_config"
)

// Logger writes activity entries and exposes the trail for admin review.
type Logger struct {
	store ports.ActivityStore
	log   zerolog.Logger
}

// NewLogger creates the audit logger.
func NewLogger(store ports.ActivityStore, log zerolog.Logger) *Logger {
	return &Logger{store: store, log: log.With().Str("component", "audit").Logger()}
}

// Record appends one entry. A failed append is an error the caller must
// handle: admin mutations and their log entries commit or fail together.
func (l *Logger) Record(ctx context.Context, admin *entities.User, action, resourceType, resourceID string, details map[string]interface{}, clientAddr, result string) error {
	e := &entities.ActivityEntry{
		AdminID:       admin.ID,
		AdminUsername: admin.Username,
		Action:        action,
		ResourceType:  resourceType,
		ResourceID:    resourceID,
		Details:       details,
		ClientAddr:    clientAddr,
		Timestamp:     time.Now(),
		Result:        result,
	}
	if err := l.store.AppendActivity(ctx, e); err != nil {
		l.log.Error().Err(err).Str("action", action).Str("resource_id", resourceID).Msg("activity append failed")
		return err
	}
	return nil
}

// List pages through the trail.
func (l *Logger) List(ctx context.Context, filter ports.ActivityFilter) ([]entities.ActivityEntry, int, error) {
	return l.store.ListActivity(ctx, filter)
}
