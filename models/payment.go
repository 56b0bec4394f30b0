package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentDirection marks money flowing in (customer pays us) or out.
type PaymentDirection string

const (
	DirectionIn  PaymentDirection = "in"
	DirectionOut PaymentDirection = "out"
)

// Payment is the confirmed domain record of money moving. Exactly one row
// exists per (provider, external_ref); the unique index is the idempotency
// key that absorbs webhook redeliveries.
type Payment struct {
	ID          string           `json:"id" gorm:"primaryKey"`
	Direction   PaymentDirection `json:"direction" gorm:"type:VARCHAR(3);not null"`
	Amount      int64            `json:"amount" gorm:"type:bigint"`
	Currency    string           `json:"currency" gorm:"type:VARCHAR(3);not null"`
	Method      string           `json:"method"` // pg | upi | bank | manual
	Provider    string           `json:"provider" gorm:"index:idx_payments_provider_ref,unique,priority:1"`
	ExternalRef string           `json:"external_ref" gorm:"index:idx_payments_provider_ref,unique,priority:2"`
	ReceivedAt  time.Time        `json:"received_at"`
	CreatedAt   time.Time        `json:"created_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) (err error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return
}

// PaymentApplication is one append-only entry of the application ledger:
// this much of that payment settles that invoice. Entries are never mutated
// or deleted; a reversal would be a new negative-direction entry.
type PaymentApplication struct {
	ID            string    `json:"id" gorm:"primaryKey"`
	PaymentID     string    `json:"payment_id" gorm:"not null;index"`
	Payment       Payment   `json:"payment" gorm:"foreignKey:PaymentID;references:ID"`
	InvoiceID     uint      `json:"invoice_id" gorm:"not null;index"`
	AmountApplied int64     `json:"amount_applied" gorm:"type:bigint"`
	MatchScore    float64   `json:"match_score,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func (a *PaymentApplication) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return
}
