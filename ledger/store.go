// Package ledger implements the reconciliation storage ports on GORM with
// schema-per-tenant Postgres. Every method takes the tenant schema
// explicitly; there is no implicit tenant context.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"backoffice-backend/database"
	"backoffice-backend/models"
	"backoffice-backend/recon"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// tenantTx runs fn in a transaction pinned to the tenant schema via
// SET LOCAL, which reverts at transaction end and cannot leak onto pooled
// connections.
func (s *Store) tenantTx(ctx context.Context, tenantID string, fn func(tx *gorm.DB) error) error {
	if !database.ValidSchemaName(tenantID) {
		return fmt.Errorf("%w: bad schema %q", recon.ErrTenantScope, tenantID)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`SET LOCAL search_path = "` + tenantID + `", public`).Error; err != nil {
			return fmt.Errorf("pin tenant schema: %w", err)
		}
		return fn(tx)
	})
}

func (s *Store) RecordWebhookEvent(ctx context.Context, tenantID, provider, eventType string, payload []byte) (string, error) {
	event := models.WebhookEvent{
		Provider:  provider,
		EventType: eventType,
		Payload:   payload,
	}
	err := s.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Create(&event).Error
	})
	if err != nil {
		return "", err
	}
	return event.ID, nil
}

func (s *Store) MarkWebhookProcessed(ctx context.Context, tenantID, eventID string) error {
	return s.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		now := time.Now().UTC()
		return tx.Model(&models.WebhookEvent{}).
			Where("id = ?", eventID).
			Update("processed_at", &now).Error
	})
}

func (s *Store) FindPaymentByRef(ctx context.Context, tenantID, provider, externalRef string) (*models.Payment, []models.PaymentApplication, error) {
	var payment models.Payment
	var apps []models.PaymentApplication
	err := s.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		if err := tx.Where("provider = ? AND external_ref = ?", provider, externalRef).
			First(&payment).Error; err != nil {
			return err
		}
		return tx.Where("payment_id = ?", payment.ID).Find(&apps).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &payment, apps, nil
}

// FindOpenCandidates is the invoice ledger view: open invoices of the given
// kind whose outstanding balance (total minus recomputed applied sum) lies
// within the tolerance window around the hint. Read-only.
func (s *Store) FindOpenCandidates(ctx context.Context, tenantID string, kind models.InvoiceKind, amountHint, tolerance int64) ([]recon.Candidate, error) {
	var cands []recon.Candidate
	err := s.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		var invoices []models.Invoice
		if err := tx.Preload("Customer").
			Where("kind = ? AND status IN ?", kind,
				[]models.InvoiceStatus{models.StatusIssued, models.StatusPartiallyPaid}).
			Find(&invoices).Error; err != nil {
			return err
		}
		if len(invoices) == 0 {
			return nil
		}

		ids := make([]uint, 0, len(invoices))
		for _, inv := range invoices {
			ids = append(ids, inv.ID)
		}
		var sums []struct {
			InvoiceID uint
			Applied   int64
		}
		if err := tx.Model(&models.PaymentApplication{}).
			Select("invoice_id, COALESCE(SUM(amount_applied), 0) AS applied").
			Where("invoice_id IN ?", ids).
			Group("invoice_id").
			Scan(&sums).Error; err != nil {
			return err
		}
		applied := make(map[uint]int64, len(sums))
		for _, row := range sums {
			applied[row.InvoiceID] = row.Applied
		}

		lo, hi := amountHint-tolerance, amountHint+tolerance
		for _, inv := range invoices {
			outstanding := inv.Total - applied[inv.ID]
			if outstanding >= lo && outstanding <= hi {
				cands = append(cands, recon.Candidate{Invoice: inv, Outstanding: outstanding})
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cands, nil
}

func (s *Store) Audit(ctx context.Context, tenantID string, rec *models.AuditRecord) error {
	return s.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Create(rec).Error
	})
}

// ApplyUnit is the atomic unit of work for payment application. Everything
// written through the ApplyTx commits together or not at all.
func (s *Store) ApplyUnit(ctx context.Context, tenantID string, fn func(u recon.ApplyTx) error) error {
	return s.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		return fn(&applyTx{tx: tx})
	})
}

type applyTx struct {
	tx *gorm.DB
}

func (a *applyTx) FindPaymentByRef(provider, externalRef string) (*models.Payment, error) {
	var payment models.Payment
	err := a.tx.Where("provider = ? AND external_ref = ?", provider, externalRef).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (a *applyTx) LockInvoice(invoiceID uint) (*models.Invoice, error) {
	var inv models.Invoice
	err := a.tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&inv, invoiceID).Error
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (a *applyTx) CreatePayment(p *models.Payment) error {
	err := a.tx.Create(p).Error
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return recon.ErrDuplicatePayment
	}
	return err
}

// Apply appends one application ledger entry. The over-application checks
// run here, inside the same transaction as the write, so a concurrent apply
// cannot slip between check and insert.
func (a *applyTx) Apply(paymentID string, invoiceID uint, amount int64, score float64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: non-positive amount %d", recon.ErrOverApplication, amount)
	}

	var payment models.Payment
	if err := a.tx.First(&payment, "id = ?", paymentID).Error; err != nil {
		return "", err
	}
	fromPayment, err := a.SumAppliedFrom(paymentID)
	if err != nil {
		return "", err
	}
	if amount > payment.Amount-fromPayment {
		return "", fmt.Errorf("%w: %d exceeds payment remainder %d",
			recon.ErrOverApplication, amount, payment.Amount-fromPayment)
	}

	var inv models.Invoice
	if err := a.tx.First(&inv, invoiceID).Error; err != nil {
		return "", err
	}
	toInvoice, err := a.SumAppliedTo(invoiceID)
	if err != nil {
		return "", err
	}
	if amount > inv.Total-toInvoice {
		return "", fmt.Errorf("%w: %d exceeds invoice outstanding %d",
			recon.ErrOverApplication, amount, inv.Total-toInvoice)
	}

	app := models.PaymentApplication{
		PaymentID:     paymentID,
		InvoiceID:     invoiceID,
		AmountApplied: amount,
		MatchScore:    score,
	}
	if err := a.tx.Create(&app).Error; err != nil {
		return "", err
	}
	return app.ID, nil
}

func (a *applyTx) SumAppliedTo(invoiceID uint) (int64, error) {
	var sum int64
	err := a.tx.Model(&models.PaymentApplication{}).
		Where("invoice_id = ?", invoiceID).
		Select("COALESCE(SUM(amount_applied), 0)").
		Scan(&sum).Error
	return sum, err
}

func (a *applyTx) SumAppliedFrom(paymentID string) (int64, error) {
	var sum int64
	err := a.tx.Model(&models.PaymentApplication{}).
		Where("payment_id = ?", paymentID).
		Select("COALESCE(SUM(amount_applied), 0)").
		Scan(&sum).Error
	return sum, err
}

func (a *applyTx) SetInvoiceStatus(invoiceID uint, status models.InvoiceStatus, paidTotal int64) error {
	return a.tx.Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(map[string]any{"status": status, "paid_total": paidTotal}).Error
}

func (a *applyTx) Audit(rec *models.AuditRecord) error {
	return a.tx.Create(rec).Error
}

func (a *applyTx) Enqueue(msg *models.OutboxMessage) error {
	return a.tx.Create(msg).Error
}
