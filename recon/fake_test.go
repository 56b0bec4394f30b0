package recon

import (
	"context"
	"fmt"
	"sync"

	"backoffice-backend/models"

	"github.com/google/uuid"
)

// fakeLedger is an in-memory Ledger with transactional semantics: an apply
// unit that fails restores the pre-unit state. A single mutex across units
// stands in for the database's serialization.
type fakeLedger struct {
	mu       sync.Mutex
	tenant   string
	invoices map[uint]*models.Invoice
	payments map[string]*models.Payment
	apps     []models.PaymentApplication
	audits   []models.AuditRecord
	outbox   []models.OutboxMessage
	webhooks map[string]*models.WebhookEvent

	// applyHook, when set, runs at the top of every ApplyUnit. Tests use it
	// to hold a unit open while a contender times out on the invoice lock.
	applyHook func()
}

func newFakeLedger(tenant string) *fakeLedger {
	return &fakeLedger{
		tenant:   tenant,
		invoices: make(map[uint]*models.Invoice),
		payments: make(map[string]*models.Payment),
		webhooks: make(map[string]*models.WebhookEvent),
	}
}

func (f *fakeLedger) checkTenant(tenantID string) error {
	if tenantID != f.tenant {
		return fmt.Errorf("%w: got %q want %q", ErrTenantScope, tenantID, f.tenant)
	}
	return nil
}

func (f *fakeLedger) addInvoice(inv models.Invoice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := inv
	f.invoices[inv.ID] = &cp
}

func (f *fakeLedger) appliedTo(invoiceID uint) int64 {
	var sum int64
	for _, a := range f.apps {
		if a.InvoiceID == invoiceID {
			sum += a.AmountApplied
		}
	}
	return sum
}

func (f *fakeLedger) appliedFrom(paymentID string) int64 {
	var sum int64
	for _, a := range f.apps {
		if a.PaymentID == paymentID {
			sum += a.AmountApplied
		}
	}
	return sum
}

func (f *fakeLedger) RecordWebhookEvent(ctx context.Context, tenantID, provider, eventType string, payload []byte) (string, error) {
	if err := f.checkTenant(tenantID); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ev := &models.WebhookEvent{ID: uuid.NewString(), Provider: provider, EventType: eventType, Payload: payload}
	f.webhooks[ev.ID] = ev
	return ev.ID, nil
}

func (f *fakeLedger) MarkWebhookProcessed(ctx context.Context, tenantID, eventID string) error {
	if err := f.checkTenant(tenantID); err != nil {
		return err
	}
	return nil
}

func (f *fakeLedger) FindPaymentByRef(ctx context.Context, tenantID, provider, externalRef string) (*models.Payment, []models.PaymentApplication, error) {
	if err := f.checkTenant(tenantID); err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.Provider == provider && p.ExternalRef == externalRef {
			var apps []models.PaymentApplication
			for _, a := range f.apps {
				if a.PaymentID == p.ID {
					apps = append(apps, a)
				}
			}
			cp := *p
			return &cp, apps, nil
		}
	}
	return nil, nil, nil
}

func (f *fakeLedger) FindOpenCandidates(ctx context.Context, tenantID string, kind models.InvoiceKind, amountHint, tolerance int64) ([]Candidate, error) {
	if err := f.checkTenant(tenantID); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var cands []Candidate
	lo, hi := amountHint-tolerance, amountHint+tolerance
	for _, inv := range f.invoices {
		if inv.Kind != kind || !inv.Open() {
			continue
		}
		outstanding := inv.Total - f.appliedTo(inv.ID)
		if outstanding >= lo && outstanding <= hi {
			cands = append(cands, Candidate{Invoice: *inv, Outstanding: outstanding})
		}
	}
	return cands, nil
}

func (f *fakeLedger) Audit(ctx context.Context, tenantID string, rec *models.AuditRecord) error {
	if err := f.checkTenant(tenantID); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = uuid.NewString()
	f.audits = append(f.audits, *rec)
	return nil
}

type fakeSnapshot struct {
	invoices map[uint]*models.Invoice
	payments map[string]*models.Payment
	apps     []models.PaymentApplication
	audits   []models.AuditRecord
	outbox   []models.OutboxMessage
}

func (f *fakeLedger) snapshot() fakeSnapshot {
	s := fakeSnapshot{
		invoices: make(map[uint]*models.Invoice, len(f.invoices)),
		payments: make(map[string]*models.Payment, len(f.payments)),
		apps:     append([]models.PaymentApplication(nil), f.apps...),
		audits:   append([]models.AuditRecord(nil), f.audits...),
		outbox:   append([]models.OutboxMessage(nil), f.outbox...),
	}
	for id, inv := range f.invoices {
		cp := *inv
		s.invoices[id] = &cp
	}
	for id, p := range f.payments {
		cp := *p
		s.payments[id] = &cp
	}
	return s
}

func (f *fakeLedger) restore(s fakeSnapshot) {
	f.invoices = s.invoices
	f.payments = s.payments
	f.apps = s.apps
	f.audits = s.audits
	f.outbox = s.outbox
}

func (f *fakeLedger) ApplyUnit(ctx context.Context, tenantID string, fn func(u ApplyTx) error) error {
	if err := f.checkTenant(tenantID); err != nil {
		return err
	}
	if f.applyHook != nil {
		f.applyHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	snap := f.snapshot()
	if err := fn(&fakeTx{f: f}); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

type fakeTx struct {
	f *fakeLedger
}

func (t *fakeTx) FindPaymentByRef(provider, externalRef string) (*models.Payment, error) {
	for _, p := range t.f.payments {
		if p.Provider == provider && p.ExternalRef == externalRef {
			cp := *p
			return &cp, nil
		}
	}
	return nil, nil
}

func (t *fakeTx) LockInvoice(invoiceID uint) (*models.Invoice, error) {
	inv, ok := t.f.invoices[invoiceID]
	if !ok {
		return nil, fmt.Errorf("invoice %d not found", invoiceID)
	}
	cp := *inv
	return &cp, nil
}

func (t *fakeTx) CreatePayment(p *models.Payment) error {
	for _, existing := range t.f.payments {
		if existing.Provider == p.Provider && existing.ExternalRef == p.ExternalRef {
			return ErrDuplicatePayment
		}
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	cp := *p
	t.f.payments[p.ID] = &cp
	return nil
}

func (t *fakeTx) Apply(paymentID string, invoiceID uint, amount int64, score float64) (string, error) {
	if amount <= 0 {
		return "", fmt.Errorf("%w: non-positive amount %d", ErrOverApplication, amount)
	}
	p, ok := t.f.payments[paymentID]
	if !ok {
		return "", fmt.Errorf("payment %s not found", paymentID)
	}
	if amount > p.Amount-t.f.appliedFrom(paymentID) {
		return "", fmt.Errorf("%w: exceeds payment remainder", ErrOverApplication)
	}
	inv, ok := t.f.invoices[invoiceID]
	if !ok {
		return "", fmt.Errorf("invoice %d not found", invoiceID)
	}
	if amount > inv.Total-t.f.appliedTo(invoiceID) {
		return "", fmt.Errorf("%w: exceeds invoice outstanding", ErrOverApplication)
	}
	app := models.PaymentApplication{
		ID:            uuid.NewString(),
		PaymentID:     paymentID,
		InvoiceID:     invoiceID,
		AmountApplied: amount,
		MatchScore:    score,
	}
	t.f.apps = append(t.f.apps, app)
	return app.ID, nil
}

func (t *fakeTx) SumAppliedTo(invoiceID uint) (int64, error) {
	return t.f.appliedTo(invoiceID), nil
}

func (t *fakeTx) SumAppliedFrom(paymentID string) (int64, error) {
	return t.f.appliedFrom(paymentID), nil
}

func (t *fakeTx) SetInvoiceStatus(invoiceID uint, status models.InvoiceStatus, paidTotal int64) error {
	inv, ok := t.f.invoices[invoiceID]
	if !ok {
		return fmt.Errorf("invoice %d not found", invoiceID)
	}
	inv.Status = status
	inv.PaidTotal = paidTotal
	return nil
}

func (t *fakeTx) Audit(rec *models.AuditRecord) error {
	rec.ID = uuid.NewString()
	t.f.audits = append(t.f.audits, *rec)
	return nil
}

func (t *fakeTx) Enqueue(msg *models.OutboxMessage) error {
	msg.ID = uuid.NewString()
	t.f.outbox = append(t.f.outbox, *msg)
	return nil
}
