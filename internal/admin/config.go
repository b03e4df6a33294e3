package admin

import (
	"context"

	"github.com/finassist/finassist-go/internal/audit"
	"github.com/finassist/finassist-go/internal/domain/entities"
	"github.com/finassist/finassist-go/internal/settings"
)

// ConfigService exposes the dynamic settings to admins with auditing.
type ConfigService struct {
	settings *settings.Manager
	audit    *audit.Logger
}

// NewConfigService creates the admin config service.
func NewConfigService(mgr *settings.Manager, auditLog *audit.Logger) *ConfigService {
	return &ConfigService{settings: mgr, audit: auditLog}
}

// List returns every setting envelope.
func (s *ConfigService) List(ctx context.Context) ([]entities.ConfigSetting, error) {
	return s.settings.List(ctx)
}

// Get returns one setting envelope.
func (s *ConfigService) Get(ctx context.Context, name string) (*entities.ConfigSetting, error) {
	return s.settings.Get(ctx, name)
}

// Update validates and persists a new value, recording the change. A failed
// audit append rolls the setting back to its previous value.
func (s *ConfigService) Update(ctx context.Context, admin *entities.User, name string, value interface{}, clientAddr string) (*entities.ConfigSetting, error) {
	old, err := s.settings.Update(ctx, name, value, admin.Username)
	if err != nil {
		return nil, err
	}
	details := map[string]interface{}{"from": old, "to": value}
	if err := s.audit.Record(ctx, admin, audit.ActionUpdateConfig, "config", name, details, clientAddr, entities.ResultSuccess); err != nil {
		if _, revertErr := s.settings.Update(ctx, name, old, admin.Username); revertErr != nil {
			return nil, entities.WrapError(entities.KindInternal, revertErr, "reverting %s after audit failure", name)
		}
		return nil, entities.WrapError(entities.KindInternal, err, "recording activity")
	}
	return s.settings.Get(ctx, name)
}

// Reset restores a setting's default, recording the change.
func (s *ConfigService) Reset(ctx context.Context, admin *entities.User, name, clientAddr string) (*entities.ConfigSetting, error) {
	old, err := s.settings.ResetToDefault(ctx, name, admin.Username)
	if err != nil {
		return nil, err
	}
	details := map[string]interface{}{"from": old}
	if err := s.audit.Record(ctx, admin, audit.ActionResetConfig, "config", name, details, clientAddr, entities.ResultSuccess); err != nil {
		if _, revertErr := s.settings.Update(ctx, name, old, admin.Username); revertErr != nil {
			return nil, entities.WrapError(entities.KindInternal, revertErr, "reverting %s after audit failure", name)
		}
		return nil, entities.WrapError(entities.KindInternal, err, "recording activity")
	}
	return s.settings.Get(ctx, name)
}
