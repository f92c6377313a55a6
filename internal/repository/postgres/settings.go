package postgres

import (
	"context"
)

const (
	selectSettingsByPrefixQuery = `
					SELECT key, value FROM settings
					WHERE starts_with(key, $1)
`
	upsertSettingQuery = `
					INSERT INTO settings (key, value) VALUES ($1, $2)
					ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
`
)

// SettingsRepository implements repository.SettingsRepository
type SettingsRepository struct {
	db *DB
}

// NewSettingsRepository creates new SettingsRepository instance
func NewSettingsRepository(db *DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettingsByPrefix returns all settings whose key starts with prefix
func (sr *SettingsRepository) GetSettingsByPrefix(ctx context.Context, prefix string) (map[string]string, error) {
	rows, err := sr.db.Query(ctx, selectSettingsByPrefixQuery, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)

	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return settings, nil
}

// SetSetting inserts or replaces setting
func (sr *SettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	_, err := sr.db.Exec(ctx, upsertSettingQuery, key, value)
	return err
}
