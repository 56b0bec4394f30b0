package middlewares

import (
	"log"

	"backoffice-backend/database"

	"github.com/gofiber/fiber/v2"
)

// Locals keys shared by the middleware chain and handlers.
const (
	LocalUserID   = "userID"
	LocalSchema   = "schema"
	LocalTenantTx = "tx"
)

// TenantTx opens a per-request transaction pinned to the tenant schema and
// commits or rolls it back around the handler chain. SET LOCAL scopes the
// search_path to this transaction, so pooled connections never carry a stale
// tenant pin. Order: after IsAuthenticatedHeader (schema must be present) and
// after Idempotency (replay records must outlive a handler rollback).
func TenantTx() fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		schema, _ := c.Locals(LocalSchema).(string)
		if !database.ValidSchemaName(schema) {
			// Public endpoints carry no schema; nothing to pin.
			return c.Next()
		}

		tx := database.DB.Begin()
		if tx.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to begin transaction")
		}

		defer func() {
			if r := recover(); r != nil {
				_ = tx.Rollback()
				panic(r)
			}
			if err != nil {
				_ = tx.Rollback()
				return
			}
			if e := tx.Commit().Error; e != nil {
				log.Printf("tenant tx commit failed: %v", e)
				err = fiber.NewError(fiber.StatusInternalServerError, "transaction commit failed")
			}
		}()

		if e := tx.Exec(`SET LOCAL search_path = "` + schema + `", public`).Error; e != nil {
			_ = tx.Rollback()
			return fiber.NewError(fiber.StatusInternalServerError, "failed to set tenant schema")
		}

		c.Locals(LocalTenantTx, tx)

		err = c.Next()
		return err
	}
}
