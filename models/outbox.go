package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxMessage is a domain event awaiting delivery. Rows are written in the
// same transaction as the state change they announce, then drained by the
// dispatcher; a failed delivery bumps Attempts instead of dropping the event.
type OutboxMessage struct {
	ID        string         `json:"id" gorm:"primaryKey"`
	Topic     string         `json:"topic" gorm:"size:64;index"`
	Payload   datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Attempts  int            `json:"attempts"`
	LastError string         `json:"last_error"`
	SentAt    *time.Time     `json:"sent_at" gorm:"index"`
	CreatedAt time.Time      `json:"created_at"`
}

func (m *OutboxMessage) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return
}
