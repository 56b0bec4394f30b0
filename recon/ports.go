package recon

import (
	"context"
	"errors"

	"backoffice-backend/models"
)

var (
	// ErrResourceBusy means the per-invoice exclusive section could not be
	// acquired within the bounded wait. Retryable by the caller; the
	// idempotency key makes retries safe.
	ErrResourceBusy = errors.New("invoice busy, retry")

	// ErrOverApplication means an application would exceed the payment's
	// remaining unapplied amount or the invoice's outstanding balance.
	// Never silently clamped when an explicit amount was requested.
	ErrOverApplication = errors.New("application exceeds remaining balance")

	// ErrTenantScope means a query or write would run without a valid tenant
	// scope. Programming-error class; aborts the whole request.
	ErrTenantScope = errors.New("tenant scope violation")

	// ErrDuplicatePayment is the internal signal that a payment with the
	// same (provider, external_ref) already exists. The engine resolves it
	// to the REPLAYED outcome instead of propagating it.
	ErrDuplicatePayment = errors.New("duplicate payment")

	// ErrInvoiceNotOpen means the target invoice cannot receive applications
	// in its current status.
	ErrInvoiceNotOpen = errors.New("invoice not open for payment")
)

// Candidate is an open invoice plus its outstanding balance as computed from
// the application ledger at lookup time.
type Candidate struct {
	Invoice     models.Invoice
	Outstanding int64
}

// Ledger is the storage port the engine drives. Every method takes the
// tenant identifier explicitly; there is no ambient tenant context below
// the HTTP edge.
type Ledger interface {
	// RecordWebhookEvent journals an inbound delivery before processing.
	RecordWebhookEvent(ctx context.Context, tenantID, provider, eventType string, payload []byte) (string, error)

	// MarkWebhookProcessed stamps processed_at on a journaled delivery.
	MarkWebhookProcessed(ctx context.Context, tenantID, eventID string) error

	// FindPaymentByRef returns the payment recorded for (provider,
	// externalRef) with its applications, or nil if none exists.
	FindPaymentByRef(ctx context.Context, tenantID, provider, externalRef string) (*models.Payment, []models.PaymentApplication, error)

	// FindOpenCandidates returns invoices of the given kind in issued or
	// partially_paid status whose outstanding balance lies within
	// [amountHint-tolerance, amountHint+tolerance]. Read-only.
	FindOpenCandidates(ctx context.Context, tenantID string, kind models.InvoiceKind, amountHint, tolerance int64) ([]Candidate, error)

	// Audit writes a trail record outside any apply unit (used for terminal
	// failures whose transaction rolled back).
	Audit(ctx context.Context, tenantID string, rec *models.AuditRecord) error

	// ApplyUnit runs fn inside one atomic unit of work against the tenant's
	// schema. Everything fn writes commits together or not at all.
	ApplyUnit(ctx context.Context, tenantID string, fn func(u ApplyTx) error) error
}

// ApplyTx is the transactional surface available inside an apply unit.
type ApplyTx interface {
	// FindPaymentByRef re-checks the idempotency key under the transaction.
	FindPaymentByRef(provider, externalRef string) (*models.Payment, error)

	// LockInvoice loads the invoice row under an exclusive row lock, so
	// concurrent apply units (including manual payment entry) serialize.
	LockInvoice(invoiceID uint) (*models.Invoice, error)

	// CreatePayment inserts the payment record, guarded by the unique
	// (provider, external_ref) index.
	CreatePayment(p *models.Payment) error

	// Apply appends an application ledger entry carrying the match score
	// that produced it (zero for manual entry). Fails with
	// ErrOverApplication if amount exceeds the payment's remaining
	// unapplied amount or the invoice's outstanding balance, checked here,
	// inside the same transaction as the write.
	Apply(paymentID string, invoiceID uint, amount int64, score float64) (string, error)

	// SumAppliedTo recomputes the cumulative amount applied to an invoice.
	SumAppliedTo(invoiceID uint) (int64, error)

	// SumAppliedFrom recomputes the cumulative amount applied from a payment.
	SumAppliedFrom(paymentID string) (int64, error)

	// SetInvoiceStatus persists the derived status and paid rollup.
	SetInvoiceStatus(invoiceID uint, status models.InvoiceStatus, paidTotal int64) error

	// Audit writes a trail record inside the unit.
	Audit(rec *models.AuditRecord) error

	// Enqueue stages a domain event in the outbox, committed with the unit.
	Enqueue(msg *models.OutboxMessage) error
}
