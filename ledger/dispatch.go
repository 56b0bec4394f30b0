package ledger

import (
	"context"
	"log"
	"time"

	"backoffice-backend/models"

	"gorm.io/gorm"
)

// Handler consumes one outbox message. Returning an error leaves the
// message unsent with the error recorded; it will be retried on a later
// sweep up to maxAttempts.
type Handler func(ctx context.Context, tenantID string, payload []byte) error

const (
	dispatchBatch = 50
	maxAttempts   = 10
)

// Dispatcher drains outbox messages across all tenant schemas and hands
// them to registered topic handlers. Emission failures are recorded and
// retried, never silently dropped.
type Dispatcher struct {
	store    *Store
	schemas  func() ([]string, error)
	handlers map[string]Handler
	interval time.Duration
}

func NewDispatcher(store *Store, schemas func() ([]string, error), interval time.Duration) *Dispatcher {
	return &Dispatcher{
		store:    store,
		schemas:  schemas,
		handlers: make(map[string]Handler),
		interval: interval,
	}
}

// Register binds a handler to a topic. Messages on topics with no handler
// stay queued until one is registered.
func (d *Dispatcher) Register(topic string, h Handler) {
	d.handlers[topic] = h
}

// Run sweeps until ctx is cancelled. Intended as a background goroutine
// beside the HTTP server.
func (d *Dispatcher) Run(ctx context.Context) {
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

// Sweep drains pending messages for every tenant once.
func (d *Dispatcher) Sweep(ctx context.Context) {
	schemas, err := d.schemas()
	if err != nil {
		log.Printf("outbox: list tenants failed: %v", err)
		return
	}
	for _, tenant := range schemas {
		if err := d.drainTenant(ctx, tenant); err != nil {
			log.Printf("outbox: drain %s failed: %v", tenant, err)
		}
	}
}

func (d *Dispatcher) drainTenant(ctx context.Context, tenantID string) error {
	var pending []models.OutboxMessage
	err := d.store.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
		return tx.Where("sent_at IS NULL AND attempts < ?", maxAttempts).
			Order("created_at").
			Limit(dispatchBatch).
			Find(&pending).Error
	})
	if err != nil {
		return err
	}

	for _, msg := range pending {
		handler, ok := d.handlers[msg.Topic]
		if !ok {
			continue
		}
		handleErr := handler(ctx, tenantID, msg.Payload)

		updateErr := d.store.tenantTx(ctx, tenantID, func(tx *gorm.DB) error {
			if handleErr != nil {
				return tx.Model(&models.OutboxMessage{}).
					Where("id = ?", msg.ID).
					Updates(map[string]any{
						"attempts":   gorm.Expr("attempts + 1"),
						"last_error": handleErr.Error(),
					}).Error
			}
			now := time.Now().UTC()
			return tx.Model(&models.OutboxMessage{}).
				Where("id = ?", msg.ID).
				Updates(map[string]any{"sent_at": &now, "last_error": ""}).Error
		})
		if updateErr != nil {
			return updateErr
		}
	}
	return nil
}
