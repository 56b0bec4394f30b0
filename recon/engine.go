package recon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"backoffice-backend/models"
	"backoffice-backend/money"
)

// Status is the terminal outcome of one reconciliation attempt.
type Status string

const (
	StatusReplayed  Status = "REPLAYED"
	StatusUnmatched Status = "UNMATCHED"
	StatusApplied   Status = "APPLIED"
)

// Outcome reports what a reconciliation attempt did. A REPLAYED outcome
// echoes the originally recorded result for the same idempotency key.
type Outcome struct {
	Status    Status  `json:"outcome"`
	PaymentID string  `json:"payment_id,omitempty"`
	InvoiceID uint    `json:"invoice_id,omitempty"`
	Score     float64 `json:"score,omitempty"`
}

// Engine orchestrates idempotent webhook ingestion, candidate lookup,
// scoring, application and status recomputation under per-invoice exclusion.
type Engine struct {
	cfg    Config
	ledger Ledger
	locks  *lockTable
	now    func() time.Time
}

// Option tweaks engine construction.
type Option func(*Engine)

// WithClock injects the time source; tests pin it for the recency term.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(ledger Ledger, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		ledger: ledger,
		locks:  newLockTable(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile ingests one inbound payment event. Safe to call any number of
// times with the same payload: the (provider, externalRef) idempotency key
// resolves redeliveries to REPLAYED. Outcomes are REPLAYED, UNMATCHED
// (payment persisted unapplied) or APPLIED; ErrResourceBusy is the only
// error the caller should retry on.
func (e *Engine) Reconcile(ctx context.Context, tenantID, provider string, raw []byte) (Outcome, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Outcome{}, fmt.Errorf("%w: missing tenant", ErrTenantScope)
	}

	now := e.now()
	sig, err := ParseSignal(provider, raw, now)
	if err != nil {
		e.auditFailure(ctx, tenantID, provider, "", err)
		return Outcome{}, err
	}

	eventID, err := e.ledger.RecordWebhookEvent(ctx, tenantID, provider, EventType(raw), raw)
	if err != nil {
		return Outcome{}, fmt.Errorf("record webhook event: %w", err)
	}

	// Fast-path duplicate check. The apply unit re-checks under the
	// transaction, so a race here only costs a rollback.
	if out, ok, err := e.replayed(ctx, tenantID, provider, sig.ExternalRef); err != nil {
		return Outcome{}, err
	} else if ok {
		_ = e.ledger.MarkWebhookProcessed(ctx, tenantID, eventID)
		return out, nil
	}

	cands, err := e.ledger.FindOpenCandidates(ctx, tenantID, models.KindReceivable, sig.Amount, e.cfg.AmountTolerance)
	if err != nil {
		e.auditFailure(ctx, tenantID, provider, sig.ExternalRef, err)
		return Outcome{}, fmt.Errorf("find candidates: %w", err)
	}

	cand, score, matched := Select(e.cfg, cands, sig, now)

	var out Outcome
	if matched {
		out, err = e.applyMatched(ctx, tenantID, provider, sig, cand, score)
	} else {
		out, err = e.persistUnmatched(ctx, tenantID, provider, sig)
	}
	if err != nil {
		if errors.Is(err, ErrDuplicatePayment) {
			if replay, ok, rerr := e.replayed(ctx, tenantID, provider, sig.ExternalRef); rerr == nil && ok {
				_ = e.ledger.MarkWebhookProcessed(ctx, tenantID, eventID)
				return replay, nil
			}
		}
		if !errors.Is(err, ErrResourceBusy) {
			e.auditFailure(ctx, tenantID, provider, sig.ExternalRef, err)
		}
		return Outcome{}, err
	}

	_ = e.ledger.MarkWebhookProcessed(ctx, tenantID, eventID)
	return out, nil
}

// replayed resolves a previously recorded payment for the idempotency key
// into the outcome its original attempt produced.
func (e *Engine) replayed(ctx context.Context, tenantID, provider, externalRef string) (Outcome, bool, error) {
	p, apps, err := e.ledger.FindPaymentByRef(ctx, tenantID, provider, externalRef)
	if err != nil {
		return Outcome{}, false, fmt.Errorf("idempotency lookup: %w", err)
	}
	if p == nil {
		return Outcome{}, false, nil
	}
	out := Outcome{Status: StatusReplayed, PaymentID: p.ID}
	if len(apps) > 0 {
		out.InvoiceID = apps[0].InvoiceID
		out.Score = apps[0].MatchScore
	}
	return out, true, nil
}

// applyMatched writes payment + application + status recomputation + audit
// + event in one unit, under the per-invoice exclusive section.
func (e *Engine) applyMatched(ctx context.Context, tenantID, provider string, sig PaymentSignal, cand Candidate, score float64) (Outcome, error) {
	key := invoiceKey(tenantID, cand.Invoice.ID)
	if err := e.locks.acquire(ctx, key, e.cfg.LockWait); err != nil {
		return Outcome{}, err
	}
	defer e.locks.release(key)

	var out Outcome
	err := e.ledger.ApplyUnit(ctx, tenantID, func(u ApplyTx) error {
		if existing, err := u.FindPaymentByRef(provider, sig.ExternalRef); err != nil {
			return err
		} else if existing != nil {
			return ErrDuplicatePayment
		}

		inv, err := u.LockInvoice(cand.Invoice.ID)
		if err != nil {
			return err
		}
		applied, err := u.SumAppliedTo(inv.ID)
		if err != nil {
			return err
		}
		before := snapshotInvoice(inv, applied)

		payment := &models.Payment{
			Direction:   models.DirectionIn,
			Amount:      sig.Amount,
			Currency:    sig.Currency,
			Method:      "pg",
			Provider:    provider,
			ExternalRef: sig.ExternalRef,
			ReceivedAt:  sig.ReceivedAt,
		}
		if err := u.CreatePayment(payment); err != nil {
			return err
		}

		outstanding := inv.Total - applied
		if !inv.Open() || outstanding <= 0 {
			// The candidate went stale between lookup and lock (another
			// payment or a manual edit). Keep the payment unapplied.
			if err := u.Audit(&models.AuditRecord{
				EntityType: "Payment",
				EntityID:   payment.ID,
				Action:     "UNMATCHED",
				Diff:       mustDiff(nil, map[string]any{"payment": payment}),
			}); err != nil {
				return err
			}
			out = Outcome{Status: StatusUnmatched, PaymentID: payment.ID}
			return nil
		}

		// Never apply more than the invoice owes; the excess stays
		// unapplied on the payment for later manual allocation.
		applyAmt, err := money.Min(
			money.New(sig.Amount, sig.Currency),
			money.New(outstanding, inv.Currency),
		)
		if err != nil {
			return err
		}

		if _, err := u.Apply(payment.ID, inv.ID, applyAmt.Amount, score); err != nil {
			return err
		}

		newApplied, err := u.SumAppliedTo(inv.ID)
		if err != nil {
			return err
		}
		status := models.DeriveStatus(inv.Total, newApplied)
		if err := u.SetInvoiceStatus(inv.ID, status, newApplied); err != nil {
			return err
		}

		inv.Status = status
		inv.PaidTotal = newApplied
		after := snapshotInvoice(inv, newApplied)
		after["score"] = score
		after["payment_id"] = payment.ID

		if err := u.Audit(&models.AuditRecord{
			EntityType: "Invoice",
			EntityID:   fmt.Sprint(inv.ID),
			Action:     "AUTO_RECONCILE",
			Diff:       mustDiff(before, after),
		}); err != nil {
			return err
		}

		event, _ := json.Marshal(map[string]any{
			"tenant_id":  tenantID,
			"payment_id": payment.ID,
			"invoice_id": inv.ID,
			"score":      score,
		})
		if err := u.Enqueue(&models.OutboxMessage{
			Topic:   "payment.reconciled",
			Payload: event,
		}); err != nil {
			return err
		}

		out = Outcome{Status: StatusApplied, PaymentID: payment.ID, InvoiceID: inv.ID, Score: score}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// persistUnmatched records the payment with no application so it shows up
// for manual reconciliation. Not an error: an expected terminal outcome.
func (e *Engine) persistUnmatched(ctx context.Context, tenantID, provider string, sig PaymentSignal) (Outcome, error) {
	var out Outcome
	err := e.ledger.ApplyUnit(ctx, tenantID, func(u ApplyTx) error {
		if existing, err := u.FindPaymentByRef(provider, sig.ExternalRef); err != nil {
			return err
		} else if existing != nil {
			return ErrDuplicatePayment
		}

		payment := &models.Payment{
			Direction:   models.DirectionIn,
			Amount:      sig.Amount,
			Currency:    sig.Currency,
			Method:      "pg",
			Provider:    provider,
			ExternalRef: sig.ExternalRef,
			ReceivedAt:  sig.ReceivedAt,
		}
		if err := u.CreatePayment(payment); err != nil {
			return err
		}
		if err := u.Audit(&models.AuditRecord{
			EntityType: "Payment",
			EntityID:   payment.ID,
			Action:     "UNMATCHED",
			Diff:       mustDiff(nil, map[string]any{"payment": payment}),
		}); err != nil {
			return err
		}
		out = Outcome{Status: StatusUnmatched, PaymentID: payment.ID}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

// ApplyManual records a payment against one specific invoice, entered by an
// operator. It shares the per-invoice exclusive section and atomic unit with
// webhook reconciliation, so the two paths serialize. The requested amount
// is applied exactly: out-of-range amounts fail with ErrOverApplication,
// never clamp.
func (e *Engine) ApplyManual(ctx context.Context, tenantID string, invoiceID uint, amount int64, currency, method, reference, actorID string) (Outcome, error) {
	if strings.TrimSpace(tenantID) == "" {
		return Outcome{}, fmt.Errorf("%w: missing tenant", ErrTenantScope)
	}
	if amount <= 0 {
		return Outcome{}, fmt.Errorf("%w: amount must be positive", ErrOverApplication)
	}

	key := invoiceKey(tenantID, invoiceID)
	if err := e.locks.acquire(ctx, key, e.cfg.LockWait); err != nil {
		return Outcome{}, err
	}
	defer e.locks.release(key)

	var out Outcome
	err := e.ledger.ApplyUnit(ctx, tenantID, func(u ApplyTx) error {
		inv, err := u.LockInvoice(invoiceID)
		if err != nil {
			return err
		}
		if !inv.Open() {
			return fmt.Errorf("%w: invoice %d is %s", ErrInvoiceNotOpen, inv.ID, inv.Status)
		}
		if currency != "" && !strings.EqualFold(currency, inv.Currency) {
			return fmt.Errorf("%w: %s vs %s", money.ErrCurrencyMismatch, currency, inv.Currency)
		}

		applied, err := u.SumAppliedTo(inv.ID)
		if err != nil {
			return err
		}
		before := snapshotInvoice(inv, applied)

		payment := &models.Payment{
			Direction:   models.DirectionIn,
			Amount:      amount,
			Currency:    inv.Currency,
			Method:      method,
			Provider:    "manual",
			ExternalRef: reference,
			ReceivedAt:  e.now(),
		}
		if err := u.CreatePayment(payment); err != nil {
			return err
		}
		// Manual entry carries no matcher confidence.
		if _, err := u.Apply(payment.ID, inv.ID, amount, 0); err != nil {
			return err
		}

		newApplied, err := u.SumAppliedTo(inv.ID)
		if err != nil {
			return err
		}
		status := models.DeriveStatus(inv.Total, newApplied)
		if err := u.SetInvoiceStatus(inv.ID, status, newApplied); err != nil {
			return err
		}

		inv.Status = status
		inv.PaidTotal = newApplied
		after := snapshotInvoice(inv, newApplied)
		after["payment_id"] = payment.ID

		if err := u.Audit(&models.AuditRecord{
			ActorID:    &actorID,
			EntityType: "Invoice",
			EntityID:   fmt.Sprint(inv.ID),
			Action:     "MANUAL_PAYMENT",
			Diff:       mustDiff(before, after),
		}); err != nil {
			return err
		}

		event, _ := json.Marshal(map[string]any{
			"tenant_id":  tenantID,
			"payment_id": payment.ID,
			"invoice_id": inv.ID,
		})
		if err := u.Enqueue(&models.OutboxMessage{
			Topic:   "payment.applied",
			Payload: event,
		}); err != nil {
			return err
		}

		out = Outcome{Status: StatusApplied, PaymentID: payment.ID, InvoiceID: inv.ID}
		return nil
	})
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (e *Engine) auditFailure(ctx context.Context, tenantID, provider, externalRef string, cause error) {
	entityID := externalRef
	if entityID == "" {
		entityID = provider
	}
	_ = e.ledger.Audit(ctx, tenantID, &models.AuditRecord{
		EntityType: "Payment",
		EntityID:   entityID,
		Action:     "RECONCILE_FAILED",
		Diff:       mustDiff(nil, map[string]any{"error": cause.Error()}),
	})
}

func snapshotInvoice(inv *models.Invoice, applied int64) map[string]any {
	return map[string]any{
		"id":          inv.ID,
		"status":      inv.Status,
		"total":       inv.Total,
		"currency":    inv.Currency,
		"applied":     applied,
		"outstanding": inv.Total - applied,
	}
}

// mustDiff builds the {old,new,timestamp} audit diff blob.
func mustDiff(oldV, newV any) []byte {
	b, err := json.Marshal(map[string]any{
		"old":       oldV,
		"new":       newV,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return []byte(`{}`)
	}
	return b
}
