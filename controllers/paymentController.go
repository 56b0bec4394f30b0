package controllers

import (
	"errors"

	"backoffice-backend/database"
	"backoffice-backend/middlewares"
	"backoffice-backend/models"
	"backoffice-backend/recon"
	"backoffice-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// PaymentWebhook is the unauthenticated provider callback. The tenant comes
// from the X-Tenant-Schema header the payment link embeds; provider from the
// path. Replays are safe: the engine resolves them to REPLAYED.
func PaymentWebhook(c *fiber.Ctx) error {
	schema := c.Get("X-Tenant-Schema")
	if !database.ValidSchemaName(schema) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid tenant header")
	}
	provider := c.Params("provider")

	out, err := engine.Reconcile(c.Context(), schema, provider, c.Body())
	if err != nil {
		if errors.Is(err, recon.ErrResourceBusy) {
			return err // error handler adds Retry-After
		}
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return c.JSON(out)
}

type manualPaymentDTO struct {
	Amount    int64  `json:"amount" validate:"required,gt=0"`
	Currency  string `json:"currency" validate:"required,currency"`
	Method    string `json:"method" validate:"required,oneof=cash bank_transfer cheque upi card"`
	Reference string `json:"reference"`
}

// CreatePayment records a manual payment against an invoice, applied for the
// exact requested amount.
func CreatePayment(c *fiber.Ctx) error {
	schema, err := tenantSchema(c)
	if err != nil {
		return err
	}

	invoiceID, err := c.ParamsInt("id")
	if err != nil || invoiceID <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid invoice id")
	}

	var dto manualPaymentDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	out, err := engine.ApplyManual(c.Context(), schema, uint(invoiceID),
		dto.Amount, dto.Currency, dto.Method, dto.Reference, actorID(c))
	if err != nil {
		return err
	}
	return c.JSON(out)
}

func ListInvoicePayments(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var applications []models.PaymentApplication
	tenantDB.Preload("Payment").
		Where("invoice_id = ?", c.Params("id")).
		Order("created_at ASC").
		Find(&applications)

	return c.JSON(fiber.Map{"applications": applications, "message": "success"})
}

// ListUnappliedPayments returns payments whose applied sum is short of their
// amount: unmatched webhooks and clamp remainders awaiting manual handling.
func ListUnappliedPayments(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	limit := utils.ParseIntDefault(c.Query("limit"), 100)

	var payments []models.Payment
	tenantDB.
		Where(`amount > (SELECT COALESCE(SUM(pa.amount_applied), 0)
			FROM payment_applications pa WHERE pa.payment_id = payments.id)`).
		Order("received_at DESC").
		Limit(limit).
		Find(&payments)

	return c.JSON(fiber.Map{"payments": payments, "message": "success"})
}
