package gov

import "time"

// AuditEvent is an append-only record of a governance action.
type AuditEvent struct {
	ID         string         `gorm:"primaryKey;size:36" json:"id"`
	BandID     uint64         `gorm:"index;not null" json:"bandId"`
	ActorID    uint64         `gorm:"not null" json:"actorId"`
	Action     string         `gorm:"size:64;not null" json:"action"`
	EntityType string         `gorm:"size:32;not null" json:"entityType"`
	EntityID   uint64         `gorm:"not null" json:"entityId"`
	Metadata   map[string]any `gorm:"serializer:json;type:text" json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// AllModels lists every persisted model, in migration order.
var AllModels = []interface{}{
	&Setting{},
	&Band{}, &Member{},
	&Proposal{}, &Vote{}, &ReviewHistory{}, &ExecutionLog{},
	&Bucket{}, &Treasurer{},
	&AuditEvent{},
}
