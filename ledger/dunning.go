package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"backoffice-backend/models"

	"gorm.io/gorm"
)

// defaultDunningStages are the overdue thresholds at which a reminder goes
// out: a nudge a few days late, a firmer one after two weeks, a final notice
// after a month.
var defaultDunningStages = []time.Duration{
	3 * 24 * time.Hour,
	14 * 24 * time.Hour,
	30 * 24 * time.Hour,
}

// Dunner scans for overdue open invoices across all tenants and emits staged
// invoice.reminder events through the outbox. The invoices row records how
// far dunning has progressed, so a sweep never re-sends a stage.
type Dunner struct {
	store    *Store
	schemas  func() ([]string, error)
	stages   []time.Duration
	interval time.Duration
	now      func() time.Time
}

func NewDunner(store *Store, schemas func() ([]string, error), interval time.Duration) *Dunner {
	return &Dunner{
		store:    store,
		schemas:  schemas,
		stages:   defaultDunningStages,
		interval: interval,
		now:      time.Now,
	}
}

// Run sweeps until ctx is cancelled. Intended as a background goroutine
// beside the HTTP server.
func (d *Dunner) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Sweep(ctx)
		}
	}
}

// Sweep runs one dunning pass over every tenant.
func (d *Dunner) Sweep(ctx context.Context) {
	schemas, err := d.schemas()
	if err != nil {
		log.Printf("dunning: list tenants failed: %v", err)
		return
	}
	for _, tenant := range schemas {
		if err := d.sweepTenant(ctx, tenant); err != nil {
			log.Printf("dunning: sweep %s failed: %v", tenant, err)
		}
	}
}

// reminderStage returns how many reminder thresholds an overdue duration has
// passed. Zero means not yet due for a first reminder.
func reminderStage(overdue time.Duration, stages []time.Duration) int {
	stage := 0
	for _, threshold := range stages {
		if overdue >= threshold {
			stage++
		}
	}
	return stage
}

// sweepTenant bumps every overdue open invoice whose reminder count lags the
// stage its overdue age has reached. The reminder event and the progress
// update commit together, so a crash never drops or doubles a reminder.
func (d *Dunner) sweepTenant(ctx context.Context, tenantID string) error {
	now := d.now().UTC()

	return d.store.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		var overdue []models.Invoice
		err := tx.
			Where("status IN ?", []models.InvoiceStatus{models.StatusIssued, models.StatusPartiallyPaid}).
			Where("due_date IS NOT NULL AND due_date < ?", now).
			Find(&overdue).Error
		if err != nil {
			return err
		}

		for _, inv := range overdue {
			stage := reminderStage(now.Sub(*inv.DueDate), d.stages)
			if stage <= inv.ReminderCount {
				continue
			}

			outstanding := inv.Total - inv.PaidTotal
			payload, _ := json.Marshal(map[string]any{
				"tenant_id":    tenantID,
				"invoice_id":   inv.ID,
				"stage":        stage,
				"outstanding":  outstanding,
				"currency":     inv.Currency,
				"due_date":     inv.DueDate,
				"overdue_days": int(now.Sub(*inv.DueDate).Hours() / 24),
			})
			if err := tx.Create(&models.OutboxMessage{
				Topic:   "invoice.reminder",
				Payload: payload,
			}).Error; err != nil {
				return fmt.Errorf("enqueue reminder for invoice %d: %w", inv.ID, err)
			}

			if err := tx.Model(&models.Invoice{}).
				Where("id = ?", inv.ID).
				Updates(map[string]any{
					"reminder_count":   stage,
					"last_reminder_at": &now,
				}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
