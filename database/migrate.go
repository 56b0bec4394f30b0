package database

import (
	"fmt"

	"backoffice-backend/models"

	"gorm.io/gorm"
)

// MigrateTenantSchema applies (idempotent) schema migrations for a single
// tenant schema. It pins search_path to the tenant and performs:
// - AutoMigrate (tables/columns)
// - Money column types (BIGINT minor units)
// - Indexes (payments idempotency key, applications, audit, outbox)
// - Basic CHECK constraints
func MigrateTenantSchema(schema string) error {
	if !ValidSchemaName(schema) {
		return fmt.Errorf("invalid tenant schema %q", schema)
	}

	return DB.Transaction(func(tx *gorm.DB) error {
		// Pin the tenant schema for this transaction
		if err := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; err != nil {
			return fmt.Errorf("set search_path failed: %w", err)
		}

		// --- AutoMigrate tables/columns/index tags (non-destructive) ---
		if err := tx.AutoMigrate(
			&models.Article{},
			&models.Customer{},
			&models.Vendor{},
			&models.Invoice{},
			&models.InvoiceLine{},
			&models.Quote{},
			&models.QuoteLine{},
			&models.Payment{},
			&models.PaymentApplication{},
			&models.AuditRecord{},
			&models.OutboxMessage{},
			&models.WebhookEvent{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("tenant automigrate failed: %w", err)
		}

		// --- Enforce money columns as BIGINT minor units (idempotent ALTERs) ---
		alters := []string{
			`ALTER TABLE articles             ALTER COLUMN unit_price     TYPE bigint`,
			`ALTER TABLE invoices             ALTER COLUMN subtotal       TYPE bigint`,
			`ALTER TABLE invoices             ALTER COLUMN tax_total      TYPE bigint`,
			`ALTER TABLE invoices             ALTER COLUMN total          TYPE bigint`,
			`ALTER TABLE invoices             ALTER COLUMN paid_total     TYPE bigint`,
			`ALTER TABLE invoice_lines        ALTER COLUMN unit_price     TYPE bigint`,
			`ALTER TABLE invoice_lines        ALTER COLUMN net_price      TYPE bigint`,
			`ALTER TABLE invoice_lines        ALTER COLUMN tax_amount     TYPE bigint`,
			`ALTER TABLE invoice_lines        ALTER COLUMN gross_price    TYPE bigint`,
			`ALTER TABLE payments             ALTER COLUMN amount         TYPE bigint`,
			`ALTER TABLE payment_applications ALTER COLUMN amount_applied TYPE bigint`,
			`ALTER TABLE quotes               ALTER COLUMN subtotal       TYPE bigint`,
			`ALTER TABLE quotes               ALTER COLUMN discount_total TYPE bigint`,
			`ALTER TABLE quotes               ALTER COLUMN tax_total      TYPE bigint`,
			`ALTER TABLE quotes               ALTER COLUMN total          TYPE bigint`,
			`ALTER TABLE quote_lines          ALTER COLUMN unit_price     TYPE bigint`,
			`ALTER TABLE quote_lines          ALTER COLUMN net_price      TYPE bigint`,
			`ALTER TABLE quote_lines          ALTER COLUMN tax_amount     TYPE bigint`,
			`ALTER TABLE quote_lines          ALTER COLUMN gross_price    TYPE bigint`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Composite / helpful indexes (idempotent) ---
		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_payments_provider_ref ON payments (provider, external_ref)`,
			`CREATE INDEX IF NOT EXISTS idx_payment_applications_invoice ON payment_applications (invoice_id)`,
			`CREATE INDEX IF NOT EXISTS idx_payment_applications_payment ON payment_applications (payment_id)`,
			`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_records (entity_type, entity_id)`,
			`CREATE INDEX IF NOT EXISTS idx_outbox_unsent ON outbox_messages (created_at) WHERE sent_at IS NULL`,
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_idempotency_keys_key ON idempotency_keys (key)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		// --- Basic CHECK constraints (idempotent) ---
		checks := []string{
			// Invoice totals never negative
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'invoices'::regclass
					  AND conname  = 'chk_invoices_total_nonneg'
				) THEN
					ALTER TABLE invoices
					ADD CONSTRAINT chk_invoices_total_nonneg
					CHECK (total >= 0);
				END IF;
			END $$;`,
			// Applications strictly positive
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payment_applications'::regclass
					  AND conname  = 'chk_applications_amount_pos'
				) THEN
					ALTER TABLE payment_applications
					ADD CONSTRAINT chk_applications_amount_pos
					CHECK (amount_applied > 0);
				END IF;
			END $$;`,
			// Payments non-negative
			`DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM pg_constraint
					WHERE conrelid = 'payments'::regclass
					  AND conname  = 'chk_payments_amount_nonneg'
				) THEN
					ALTER TABLE payments
					ADD CONSTRAINT chk_payments_amount_nonneg
					CHECK (amount >= 0);
				END IF;
			END $$;`,
		}
		for _, stmt := range checks {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed: %w", err)
			}
		}

		return nil
	})
}
