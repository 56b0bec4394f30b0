package controllers

import (
	"backoffice-backend/database"
	"backoffice-backend/ledger"
	"backoffice-backend/middlewares"
	"backoffice-backend/recon"

	"github.com/gofiber/fiber/v2"
)

var (
	store  *ledger.Store
	engine *recon.Engine
)

// Setup wires the shared store and reconciliation engine. Called once from
// main before routes are registered.
func Setup(s *ledger.Store, e *recon.Engine) {
	store = s
	engine = e
}

// tenantSchema pulls the authenticated tenant schema off the request. This
// is the single place the HTTP edge converts ambient auth context into the
// explicit tenant parameter everything below requires.
func tenantSchema(c *fiber.Ctx) (string, error) {
	schema, _ := c.Locals(middlewares.LocalSchema).(string)
	if !database.ValidSchemaName(schema) {
		return "", fiber.NewError(fiber.StatusUnauthorized, "tenant schema missing")
	}
	return schema, nil
}

func actorID(c *fiber.Ctx) string {
	id, _ := c.Locals(middlewares.LocalUserID).(string)
	return id
}
