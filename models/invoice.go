package models

import (
	"time"
)

// InvoiceKind distinguishes receivables (money owed to us) from payables.
type InvoiceKind string

const (
	KindReceivable InvoiceKind = "AR"
	KindPayable    InvoiceKind = "AP"
)

// InvoiceStatus is the invoice lifecycle state. Paid/partially_paid are
// always derivable from the application ledger sum; see DeriveStatus.
type InvoiceStatus string

const (
	StatusDraft         InvoiceStatus = "draft"
	StatusIssued        InvoiceStatus = "issued"
	StatusPartiallyPaid InvoiceStatus = "partially_paid"
	StatusPaid          InvoiceStatus = "paid"
	StatusVoid          InvoiceStatus = "void"
)

// Invoice is the current/live state of a commercial document. All monetary
// columns hold integer minor units (paise), never fractional majors.
type Invoice struct {
	ID            uint        `json:"id" gorm:"primaryKey"`
	InvoiceNumber string      `json:"invoice_number" gorm:"unique"`
	Kind          InvoiceKind `json:"kind" gorm:"type:VARCHAR(4);not null;index"`

	// Counterparty: customers for AR, vendors for AP.
	CId      uint     `json:"-"`
	Customer Customer `json:"customer" gorm:"foreignKey:CId;references:Id"`
	VId      uint     `json:"-"`
	Vendor   Vendor   `json:"vendor" gorm:"foreignKey:VId;references:Id"`

	Lines    []InvoiceLine `json:"lines" gorm:"foreignKey:InvoiceID;constraint:OnDelete:CASCADE"`
	Subtotal int64         `json:"subtotal" gorm:"type:bigint"`
	TaxTotal int64         `json:"tax_total" gorm:"type:bigint"`
	Total    int64         `json:"total" gorm:"type:bigint"`
	Currency string        `json:"currency" gorm:"type:VARCHAR(3);not null"`

	Status   InvoiceStatus `json:"status" gorm:"type:VARCHAR(20);not null;index"`
	IssuedAt *time.Time    `json:"issued_at"`
	DueDate  *time.Time    `json:"due_date"`

	// Rollup convenience only. The application ledger sum is the source of
	// truth; this column is rewritten from it inside the same transaction.
	PaidTotal int64 `json:"paid_total" gorm:"type:bigint"`

	// Dunning progress: how many overdue reminders went out and when the
	// last one did.
	ReminderCount  int        `json:"reminder_count"`
	LastReminderAt *time.Time `json:"last_reminder_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type InvoiceLine struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	InvoiceID   uint    `json:"-" gorm:"index"`
	ArticleID   string  `json:"article_id" gorm:"not null;index"`
	Article     Article `json:"-" gorm:"foreignKey:ArticleID;references:Id;constraint:OnUpdate:RESTRICT,OnDelete:RESTRICT"`
	Description string  `json:"description"`
	Qty         int     `json:"qty"`
	UnitPrice   int64   `json:"unit_price" gorm:"type:bigint"`
	TaxRateBps  int64   `json:"tax_rate_bps"` // basis points, e.g. 1800 = 18%
	NetPrice    int64   `json:"net_price" gorm:"type:bigint"`
	TaxAmount   int64   `json:"tax_amount" gorm:"type:bigint"`
	GrossPrice  int64   `json:"gross_price" gorm:"type:bigint"`
}

// DeriveStatus maps the cumulative applied amount against the total onto the
// invoice status. Draft and void invoices never pass through here. A status
// never regresses from paid without an explicit reversal, which this core
// does not perform.
func DeriveStatus(total, applied int64) InvoiceStatus {
	switch {
	case total > 0 && applied >= total:
		return StatusPaid
	case applied > 0:
		return StatusPartiallyPaid
	}
	return StatusIssued
}

// Open reports whether the invoice can still receive payment applications.
func (inv *Invoice) Open() bool {
	return inv.Status == StatusIssued || inv.Status == StatusPartiallyPaid
}
