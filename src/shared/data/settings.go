package data

import (
	"context"
	"fmt"
	"sync"

	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// Settings is an in-memory snapshot of the active rows of the settings
// table. Operators use it to override deployment values such as public_url
// without a restart.
type Settings struct {
	db     *gorm.DB
	mu     sync.RWMutex
	values map[string]string
}

// NewSettings returns an empty snapshot; call Reload to fill it.
func NewSettings(db *gorm.DB) *Settings {
	return &Settings{db: db, values: map[string]string{}}
}

// Reload replaces the snapshot with the active settings in the database.
func (s *Settings) Reload(ctx context.Context) error {
	var rows []gov.Setting
	if err := s.db.WithContext(ctx).Where("active = ?", 1).Find(&rows).Error; err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, r := range rows {
		values[r.Name] = r.Value
	}
	s.mu.Lock()
	s.values = values
	s.mu.Unlock()
	return nil
}

// Get returns the value of name, or def when it is unset or empty.
func (s *Settings) Get(name, def string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v := s.values[name]; v != "" {
		return v
	}
	return def
}
