package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WebhookEvent journals every inbound delivery before reconciliation runs,
// so redelivered or unmatched events stay inspectable.
type WebhookEvent struct {
	ID          string         `json:"id" gorm:"primaryKey"`
	Provider    string         `json:"provider" gorm:"size:32;index"`
	EventType   string         `json:"event_type" gorm:"size:64"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	ProcessedAt *time.Time     `json:"processed_at"`
	CreatedAt   time.Time      `json:"created_at"`
}

func (e *WebhookEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return
}
