// Package audit records governance actions in an append-only table.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stake-plus/bandgov/src/shared/gov"
	"gorm.io/gorm"
)

// Event is a governance action to be recorded.
type Event struct {
	BandID     uint64
	ActorID    uint64
	Action     string
	EntityType string
	EntityID   uint64
	Metadata   map[string]any
}

// Sink records audit events.
type Sink interface {
	Record(ctx context.Context, ev Event) error
}

// Store writes audit events to the database.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// NewStore returns a Sink writing through db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Record appends ev. Rows are never updated.
func (s *Store) Record(ctx context.Context, ev Event) error {
	row := gov.AuditEvent{
		ID:         uuid.NewString(),
		BandID:     ev.BandID,
		ActorID:    ev.ActorID,
		Action:     ev.Action,
		EntityType: ev.EntityType,
		EntityID:   ev.EntityID,
		Metadata:   ev.Metadata,
		CreatedAt:  s.now(),
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

// ForEntity lists the audit trail of one entity, oldest first.
func (s *Store) ForEntity(ctx context.Context, entityType string, entityID uint64) ([]gov.AuditEvent, error) {
	var rows []gov.AuditEvent
	err := s.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at asc").
		Find(&rows).Error
	return rows, err
}

// Discard is a Sink that drops every event.
type Discard struct{}

// Record implements Sink.
func (Discard) Record(context.Context, Event) error { return nil }
