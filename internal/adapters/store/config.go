package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/finassist/finassist-go/internal/domain/entities"
)

// AllSettings returns every setting ordered by category then name.
func (s *Store) AllSettings(ctx context.Context) ([]entities.ConfigSetting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT setting_name, value, default_value, data_type, min_value, max_value,
			category, description, updated_at, updated_by
		FROM system_config ORDER BY category, setting_name`)
	if err != nil {
		return nil, fmt.Errorf("listing settings: %w", err)
	}
	defer rows.Close()

	var settings []entities.ConfigSetting
	for rows.Next() {
		cs, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning setting: %w", err)
		}
		settings = append(settings, *cs)
	}
	return settings, rows.Err()
}

// Setting fetches one setting or returns nil when absent.
func (s *Store) Setting(ctx context.Context, name string) (*entities.ConfigSetting, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT setting_name, value, default_value, data_type, min_value, max_value,
			category, description, updated_at, updated_by
		FROM system_config WHERE setting_name = ?`, name)
	cs, err := scanSetting(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying setting: %w", err)
	}
	return cs, nil
}

// SaveSetting persists an already-validated value.
func (s *Store) SaveSetting(ctx context.Context, name string, value interface{}, updatedBy string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE system_config SET value = ?, updated_at = ?, updated_by = ?
		WHERE setting_name = ?`,
		encodeSettingValue(value), timeToInt(time.Now()), updatedBy, name)
	if err != nil {
		return fmt.Errorf("saving setting: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return entities.NewError(entities.KindNotFound, "setting %s not found", name)
	}
	return nil
}

// SeedSetting inserts a setting if absent, leaving existing rows untouched
// so operator tuning survives restarts.
func (s *Store) SeedSetting(ctx context.Context, cs entities.ConfigSetting) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO system_config
			(setting_name, value, default_value, data_type, min_value, max_value,
			 category, description, updated_at, updated_by)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, '')`,
		cs.Name, encodeSettingValue(cs.Value), encodeSettingValue(cs.DefaultValue),
		cs.DataType, nullFloat(cs.MinValue), nullFloat(cs.MaxValue),
		cs.Category, cs.Description)
	if err != nil {
		return fmt.Errorf("seeding setting %s: %w", cs.Name, err)
	}
	return nil
}

func scanSetting(r rowScanner) (*entities.ConfigSetting, error) {
	var cs entities.ConfigSetting
	var value, defValue string
	var minV, maxV sql.NullFloat64
	var updatedAt sql.NullInt64
	err := r.Scan(&cs.Name, &value, &defValue, &cs.DataType, &minV, &maxV,
		&cs.Category, &cs.Description, &updatedAt, &cs.UpdatedBy)
	if err != nil {
		return nil, err
	}
	if minV.Valid {
		cs.MinValue = &minV.Float64
	}
	if maxV.Valid {
		cs.MaxValue = &maxV.Float64
	}
	if updatedAt.Valid && updatedAt.Int64 != 0 {
		t := intToTime(updatedAt.Int64)
		cs.UpdatedAt = &t
	}
	cs.Value, err = decodeSettingValue(value, cs.DataType)
	if err != nil {
		return nil, fmt.Errorf("setting %s: %w", cs.Name, err)
	}
	cs.DefaultValue, err = decodeSettingValue(defValue, cs.DataType)
	if err != nil {
		return nil, fmt.Errorf("setting %s default: %w", cs.Name, err)
	}
	return &cs, nil
}

// Values travel as TEXT and round-trip through data_type.
func encodeSettingValue(v interface{}) string {
	switch t := v.(type) {
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case string:
		return t
	default:
		return fmt.Sprintf("%v", v)
	}
}

func decodeSettingValue(raw, dataType string) (interface{}, error) {
	switch dataType {
	case "int":
		return strconv.ParseInt(raw, 10, 64)
	case "float":
		return strconv.ParseFloat(raw, 64)
	case "bool":
		return strconv.ParseBool(raw)
	case "string":
		return raw, nil
	default:
		return nil, fmt.Errorf("unknown data type %q", dataType)
	}
}

func nullFloat(p *float64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
