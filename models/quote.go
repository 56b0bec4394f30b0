package models

import (
	"time"
)

// QuoteStatus is the quote lifecycle state. Accepted is terminal on the
// quote side; the converted invoice carries on from there.
type QuoteStatus string

const (
	QuoteDraft    QuoteStatus = "draft"
	QuoteAccepted QuoteStatus = "accepted"
	QuoteRejected QuoteStatus = "rejected"
)

// Quote is a priced offer to a customer. Amounts are integer minor units;
// the discount applies to the net subtotal before tax.
type Quote struct {
	ID          uint     `json:"id" gorm:"primaryKey"`
	QuoteNumber string   `json:"quote_number" gorm:"unique"`
	CId         uint     `json:"-"`
	Customer    Customer `json:"customer" gorm:"foreignKey:CId;references:Id"`

	Lines         []QuoteLine `json:"lines" gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE"`
	Subtotal      int64       `json:"subtotal" gorm:"type:bigint"`
	DiscountBps   int64       `json:"discount_bps"`
	DiscountTotal int64       `json:"discount_total" gorm:"type:bigint"`
	TaxTotal      int64       `json:"tax_total" gorm:"type:bigint"`
	Total         int64       `json:"total" gorm:"type:bigint"`
	Currency      string      `json:"currency" gorm:"type:VARCHAR(3);not null"`

	Status     QuoteStatus `json:"status" gorm:"type:VARCHAR(20);not null;index"`
	ValidUntil *time.Time  `json:"valid_until"`

	// Set when the quote converts; points at the invoice it became.
	InvoiceID *uint `json:"invoice_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type QuoteLine struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	QuoteID     uint    `json:"-" gorm:"index"`
	ArticleID   string  `json:"article_id" gorm:"not null;index"`
	Article     Article `json:"-" gorm:"foreignKey:ArticleID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Description string  `json:"description"`
	Qty         int     `json:"qty"`
	UnitPrice   int64   `json:"unit_price" gorm:"type:bigint"`
	TaxRateBps  int64   `json:"tax_rate_bps"`
	NetPrice    int64   `json:"net_price" gorm:"type:bigint"`
	TaxAmount   int64   `json:"tax_amount" gorm:"type:bigint"`
	GrossPrice  int64   `json:"gross_price" gorm:"type:bigint"`
}

// Expired reports whether the quote's validity window has passed.
func (q *Quote) Expired(now time.Time) bool {
	return q.ValidUntil != nil && now.After(*q.ValidUntil)
}
