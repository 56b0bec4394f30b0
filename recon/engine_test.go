package recon

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"backoffice-backend/models"
	"backoffice-backend/money"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTenant = "acme_corp"

func testEngine(t *testing.T, f *fakeLedger, now time.Time) *Engine {
	t.Helper()
	return NewEngine(f, DefaultConfig(), WithClock(func() time.Time { return now }))
}

func openInvoice(id uint, total int64, email string, createdAt time.Time) models.Invoice {
	return models.Invoice{
		ID:        id,
		Kind:      models.KindReceivable,
		Status:    models.StatusIssued,
		Total:     total,
		Currency:  "INR",
		Customer:  models.Customer{Id: id, Email: email},
		CreatedAt: createdAt,
	}
}

func stripeBody(ref string, amount int64, email string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"type":"payment_intent.succeeded","amount":%d,"currency":"inr","customer_email":%q}`,
		ref, amount, email))
}

func TestReconcileExactMatch(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 11800, "billing@acme.com", now.Add(-2*time.Hour)))
	e := testEngine(t, f, now)

	out, err := e.Reconcile(context.Background(), testTenant, "stripe",
		stripeBody("pi_1", 11800, "billing@acme.com"))
	require.NoError(t, err)

	assert.Equal(t, StatusApplied, out.Status)
	assert.Equal(t, uint(1), out.InvoiceID)
	assert.InDelta(t, 1.0, out.Score, 1e-9) // 0.6 + 0.3 + 0.1 clamped

	assert.Equal(t, models.StatusPaid, f.invoices[1].Status)
	assert.Equal(t, int64(11800), f.appliedTo(1))

	require.Len(t, f.audits, 1)
	assert.Equal(t, "AUTO_RECONCILE", f.audits[0].Action)
	require.Len(t, f.outbox, 1)
	assert.Equal(t, "payment.reconciled", f.outbox[0].Topic)
}

func TestReconcileIdempotency(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 11800, "billing@acme.com", now))
	e := testEngine(t, f, now)

	body := stripeBody("pi_once", 11800, "billing@acme.com")

	first, err := e.Reconcile(context.Background(), testTenant, "stripe", body)
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, first.Status)

	second, err := e.Reconcile(context.Background(), testTenant, "stripe", body)
	require.NoError(t, err)
	assert.Equal(t, StatusReplayed, second.Status)
	assert.Equal(t, first.PaymentID, second.PaymentID)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	// The replay reports the score the original attempt recorded.
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, first.Score, f.apps[0].MatchScore)

	// Exactly one payment, exactly one application.
	assert.Len(t, f.payments, 1)
	assert.Len(t, f.apps, 1)
	assert.Equal(t, int64(11800), f.appliedTo(1))
}

func TestReconcileUnmatched(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 11800, "billing@acme.com", now))
	e := testEngine(t, f, now)

	out, err := e.Reconcile(context.Background(), testTenant, "stripe",
		stripeBody("pi_nomatch", 999999, "stranger@example.com"))
	require.NoError(t, err)

	assert.Equal(t, StatusUnmatched, out.Status)
	assert.NotEmpty(t, out.PaymentID)
	assert.Zero(t, out.InvoiceID)

	// Payment persisted unapplied, visible for manual reconciliation.
	assert.Len(t, f.payments, 1)
	assert.Empty(t, f.apps)
	require.Len(t, f.audits, 1)
	assert.Equal(t, "UNMATCHED", f.audits[0].Action)
	assert.Empty(t, f.outbox)
}

func TestReconcilePartialPaymentPicksToleranceMatch(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	// Big invoice far outside tolerance of the signal amount.
	f.addInvoice(openInvoice(1, 100000, "big@acme.com", now.Add(-time.Hour)))
	// Smaller invoice whose outstanding 30050 is within ±100 of 30000.
	f.addInvoice(openInvoice(2, 30050, "small@acme.com", now.Add(-time.Hour)))
	e := testEngine(t, f, now)

	out, err := e.Reconcile(context.Background(), testTenant, "razorpay",
		[]byte(`{"payment_id":"rzp_9","event":"payment.captured","amount":30000,"currency":"INR","email":"small@acme.com"}`))
	require.NoError(t, err)

	assert.Equal(t, StatusApplied, out.Status)
	assert.Equal(t, uint(2), out.InvoiceID)

	assert.Equal(t, models.StatusPartiallyPaid, f.invoices[2].Status)
	assert.Equal(t, int64(50), f.invoices[2].Total-f.appliedTo(2))
	// Big invoice untouched.
	assert.Equal(t, models.StatusIssued, f.invoices[1].Status)
	assert.Zero(t, f.appliedTo(1))
}

func TestReconcileClampsToOutstanding(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 5000, "billing@acme.com", now))
	e := testEngine(t, f, now)

	// 5100 is within tolerance of outstanding 5000 but exceeds it; only the
	// outstanding amount may be applied, the excess stays on the payment.
	out, err := e.Reconcile(context.Background(), testTenant, "stripe",
		stripeBody("pi_over", 5100, "billing@acme.com"))
	require.NoError(t, err)

	assert.Equal(t, StatusApplied, out.Status)
	assert.Equal(t, models.StatusPaid, f.invoices[1].Status)
	assert.Equal(t, int64(5000), f.appliedTo(1))
	assert.Equal(t, int64(5000), f.appliedFrom(out.PaymentID))

	p := f.payments[out.PaymentID]
	assert.Equal(t, int64(100), p.Amount-f.appliedFrom(p.ID)) // unapplied excess
}

func TestReconcileConcurrentPaymentsNeverOverpay(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 10000, "billing@acme.com", now))
	e := testEngine(t, f, now)

	var wg sync.WaitGroup
	outcomes := make([]Outcome, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = e.Reconcile(context.Background(), testTenant, "stripe",
				stripeBody(fmt.Sprintf("pi_race_%d", i), 10000, "billing@acme.com"))
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// One wins, the other finds the invoice settled and lands unapplied.
	applied, unmatched := 0, 0
	for _, out := range outcomes {
		switch out.Status {
		case StatusApplied:
			applied++
		case StatusUnmatched:
			unmatched++
		}
	}
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, unmatched)

	assert.LessOrEqual(t, f.appliedTo(1), f.invoices[1].Total)
	assert.Equal(t, int64(10000), f.appliedTo(1))
	assert.Equal(t, models.StatusPaid, f.invoices[1].Status)
	assert.Len(t, f.payments, 2)
}

func TestReconcileResourceBusy(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 11800, "billing@acme.com", now))

	cfg := DefaultConfig()
	cfg.LockWait = 20 * time.Millisecond
	e := NewEngine(f, cfg, WithClock(func() time.Time { return now }))

	hold := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once
	f.applyHook = func() {
		once.Do(func() {
			close(entered)
			<-hold
		})
	}

	done := make(chan error, 1)
	go func() {
		_, err := e.Reconcile(context.Background(), testTenant, "stripe",
			stripeBody("pi_hold", 11800, "billing@acme.com"))
		done <- err
	}()
	<-entered

	_, err := e.Reconcile(context.Background(), testTenant, "stripe",
		stripeBody("pi_wait", 11800, "billing@acme.com"))
	assert.ErrorIs(t, err, ErrResourceBusy)

	close(hold)
	require.NoError(t, <-done)
}

func TestReconcileRejectsMissingTenant(t *testing.T) {
	f := newFakeLedger(testTenant)
	e := testEngine(t, f, time.Now())

	_, err := e.Reconcile(context.Background(), "  ", "stripe", stripeBody("pi_x", 100, ""))
	assert.ErrorIs(t, err, ErrTenantScope)
}

func TestReconcileUnknownProviderAudited(t *testing.T) {
	f := newFakeLedger(testTenant)
	e := testEngine(t, f, time.Now())

	_, err := e.Reconcile(context.Background(), testTenant, "paypal", []byte(`{"id":"x","amount":1}`))
	require.Error(t, err)

	require.Len(t, f.audits, 1)
	assert.Equal(t, "RECONCILE_FAILED", f.audits[0].Action)
}

func TestApplyManual(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 10000, "billing@acme.com", now))
	e := testEngine(t, f, now)

	out, err := e.ApplyManual(context.Background(), testTenant, 1, 4000, "INR", "bank", "NEFT-42", "user-1")
	require.NoError(t, err)
	assert.Equal(t, StatusApplied, out.Status)
	assert.Equal(t, models.StatusPartiallyPaid, f.invoices[1].Status)
	assert.Equal(t, int64(4000), f.appliedTo(1))

	require.Len(t, f.audits, 1)
	assert.Equal(t, "MANUAL_PAYMENT", f.audits[0].Action)
	require.NotNil(t, f.audits[0].ActorID)
	assert.Equal(t, "user-1", *f.audits[0].ActorID)
}

func TestApplyManualRejectsOverApplication(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 10000, "billing@acme.com", now))
	e := testEngine(t, f, now)

	// Explicit amounts are never clamped.
	_, err := e.ApplyManual(context.Background(), testTenant, 1, 10001, "INR", "bank", "NEFT-43", "user-1")
	assert.ErrorIs(t, err, ErrOverApplication)

	// Nothing committed.
	assert.Empty(t, f.payments)
	assert.Empty(t, f.apps)
	assert.Equal(t, models.StatusIssued, f.invoices[1].Status)
}

func TestApplyManualRejectsNonPositiveAmount(t *testing.T) {
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 10000, "billing@acme.com", time.Now()))
	e := testEngine(t, f, time.Now())

	_, err := e.ApplyManual(context.Background(), testTenant, 1, 0, "INR", "bank", "", "u")
	assert.ErrorIs(t, err, ErrOverApplication)
}

func TestApplyManualRejectsClosedInvoice(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	inv := openInvoice(1, 10000, "billing@acme.com", now)
	inv.Status = models.StatusVoid
	f.addInvoice(inv)
	e := testEngine(t, f, now)

	_, err := e.ApplyManual(context.Background(), testTenant, 1, 100, "INR", "bank", "", "u")
	assert.ErrorIs(t, err, ErrInvoiceNotOpen)
}

func TestApplyManualRejectsCurrencyMismatch(t *testing.T) {
	now := time.Now()
	f := newFakeLedger(testTenant)
	f.addInvoice(openInvoice(1, 10000, "billing@acme.com", now))
	e := testEngine(t, f, now)

	_, err := e.ApplyManual(context.Background(), testTenant, 1, 100, "USD", "bank", "", "u")
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}
