package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditRecord is a write-once trail entry. ActorID is nil for system
// actions (e.g. webhook reconciliation). Diff holds an {old,new,timestamp}
// snapshot pair as jsonb.
type AuditRecord struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	ActorID    *string        `json:"actor_id"`
	EntityType string         `json:"entity_type" gorm:"size:64;index:idx_audit_entity,priority:1"`
	EntityID   string         `json:"entity_id" gorm:"size:128;index:idx_audit_entity,priority:2"`
	Action     string         `json:"action" gorm:"size:64"`
	Diff       datatypes.JSON `json:"diff" gorm:"type:jsonb"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (r *AuditRecord) BeforeCreate(tx *gorm.DB) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return
}
