package controllers

import (
	"encoding/json"
	"fmt"
	"time"

	"backoffice-backend/database"
	"backoffice-backend/middlewares"
	"backoffice-backend/models"
	"backoffice-backend/money"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type invoiceLineDTO struct {
	ArticleID   string `json:"article_id" validate:"required"`
	Description string `json:"description"`
	Qty         int    `json:"qty" validate:"gt=0"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"` // minor units
	TaxRateBps  int64  `json:"tax_rate_bps" validate:"gte=0,lte=10000"`
}

type createInvoiceDTO struct {
	InvoiceNumber  string             `json:"invoice_number" validate:"required"`
	Kind           models.InvoiceKind `json:"kind" validate:"required,oneof=AR AP"`
	CustomerID     uint               `json:"customer_id"`
	VendorID       uint               `json:"vendor_id"`
	Currency       string             `json:"currency" validate:"required,currency"`
	DueDate        *time.Time         `json:"due_date"`
	Lines          []invoiceLineDTO   `json:"lines" validate:"required,min=1,dive"`
}

// buildLines prices the lines and totals in minor units. Tax per line is
// net scaled by the basis-point rate, rounded half-up once.
func buildLines(dtos []invoiceLineDTO, currency string) ([]models.InvoiceLine, int64, int64, error) {
	var lines []models.InvoiceLine
	var subtotal, taxTotal int64

	for i, dto := range dtos {
		net := money.New(dto.UnitPrice*int64(dto.Qty), currency)
		tax, err := net.Scale(dto.TaxRateBps, 10000)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("line %d: %w", i, err)
		}
		gross, err := net.Add(tax)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("line %d: %w", i, err)
		}

		subtotal += net.Amount
		taxTotal += tax.Amount

		lines = append(lines, models.InvoiceLine{
			ArticleID:   dto.ArticleID,
			Description: dto.Description,
			Qty:         dto.Qty,
			UnitPrice:   dto.UnitPrice,
			TaxRateBps:  dto.TaxRateBps,
			NetPrice:    net.Amount,
			TaxAmount:   tax.Amount,
			GrossPrice:  gross.Amount,
		})
	}
	return lines, subtotal, taxTotal, nil
}

func CreateInvoice(c *fiber.Ctx) error {
	var dto createInvoiceDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	if dto.Kind == models.KindReceivable && dto.CustomerID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "AR invoice requires customer_id")
	}
	if dto.Kind == models.KindPayable && dto.VendorID == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "AP invoice requires vendor_id")
	}

	lines, subtotal, taxTotal, err := buildLines(dto.Lines, dto.Currency)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	invoice := models.Invoice{
		InvoiceNumber: dto.InvoiceNumber,
		Kind:          dto.Kind,
		CId:           dto.CustomerID,
		VId:           dto.VendorID,
		Lines:         lines,
		Subtotal:      subtotal,
		TaxTotal:      taxTotal,
		Total:         subtotal + taxTotal,
		Currency:      dto.Currency,
		Status:        models.StatusDraft,
		DueDate:       dto.DueDate,
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}
	if err := tenantDB.Create(&invoice).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create invoice",
			"error":   err.Error(),
		})
	}
	return c.JSON(invoice)
}

func GetInvoices(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	q := tenantDB.Model(&models.Invoice{}).Preload("Customer").Preload("Vendor").Preload("Lines")
	if kind := c.Query("kind"); kind != "" {
		q = q.Where("kind = ?", kind)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var invoices []models.Invoice
	q.Order("created_at DESC").Find(&invoices)
	return c.JSON(fiber.Map{"invoices": invoices, "message": "success"})
}

func GetInvoice(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var invoice models.Invoice
	if err := tenantDB.Preload("Customer").Preload("Vendor").Preload("Lines").
		First(&invoice, "id = ?", c.Params("id")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "invoice not found")
	}

	var applications []models.PaymentApplication
	tenantDB.Preload("Payment").Where("invoice_id = ?", invoice.ID).Find(&applications)

	return c.JSON(fiber.Map{
		"invoice":      invoice,
		"applications": applications,
	})
}

// SendInvoice transitions a draft AR invoice to issued and hands the
// customer their payment links. Audit and the invoice.sent event commit
// with the status change.
func SendInvoice(c *fiber.Ctx) error {
	schema, err := tenantSchema(c)
	if err != nil {
		return err
	}
	actor := actorID(c)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var invoice models.Invoice
	var paymentLinks fiber.Map
	txErr := tenantDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&invoice, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		if invoice.Kind != models.KindReceivable {
			return fiber.NewError(fiber.StatusBadRequest, "only AR invoices can be sent")
		}
		if invoice.Status != models.StatusDraft {
			return fiber.NewError(fiber.StatusConflict, "invoice already "+string(invoice.Status))
		}

		before := invoice
		now := time.Now().UTC()
		invoice.Status = models.StatusIssued
		invoice.IssuedAt = &now
		if err := tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).
			Updates(map[string]any{"status": invoice.Status, "issued_at": invoice.IssuedAt}).Error; err != nil {
			return err
		}

		paymentLinks = fiber.Map{
			"upi":  fmt.Sprintf("upi://pay?pa=merchant@upi&am=%d&cu=%s&tn=Invoice %d", invoice.Total/100, invoice.Currency, invoice.ID),
			"pg":   fmt.Sprintf("https://checkout.example.com/pay/invoice_%d", invoice.ID),
			"bank": fmt.Sprintf("NEFT Ref: INV-%d", invoice.ID),
		}

		diff, _ := json.Marshal(fiber.Map{
			"old":       fiber.Map{"status": before.Status},
			"new":       fiber.Map{"status": invoice.Status, "issued_at": invoice.IssuedAt},
			"timestamp": now.Format(time.RFC3339),
		})
		if err := tx.Create(&models.AuditRecord{
			ActorID:    &actor,
			EntityType: "Invoice",
			EntityID:   fmt.Sprint(invoice.ID),
			Action:     "SEND",
			Diff:       diff,
		}).Error; err != nil {
			return err
		}

		event, _ := json.Marshal(fiber.Map{
			"tenant_id":     schema,
			"invoice_id":    invoice.ID,
			"payment_links": paymentLinks,
		})
		return tx.Create(&models.OutboxMessage{
			Topic:   "invoice.sent",
			Payload: event,
		}).Error
	})
	if txErr != nil {
		return txErr
	}

	return c.JSON(fiber.Map{"invoice": invoice, "payment_links": paymentLinks})
}

// VoidInvoice voids an invoice that has no applications yet. Void is
// terminal; nothing mutates a void invoice afterwards.
func VoidInvoice(c *fiber.Ctx) error {
	actor := actorID(c)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var invoice models.Invoice
	txErr := tenantDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&invoice, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "invoice not found")
		}
		if invoice.Status == models.StatusVoid {
			return fiber.NewError(fiber.StatusConflict, "invoice already void")
		}

		var applied int64
		if err := tx.Model(&models.PaymentApplication{}).
			Where("invoice_id = ?", invoice.ID).
			Select("COALESCE(SUM(amount_applied), 0)").
			Scan(&applied).Error; err != nil {
			return err
		}
		if applied > 0 {
			return fiber.NewError(fiber.StatusConflict, "invoice has applied payments")
		}

		before := invoice.Status
		invoice.Status = models.StatusVoid
		if err := tx.Model(&models.Invoice{}).Where("id = ?", invoice.ID).
			Update("status", invoice.Status).Error; err != nil {
			return err
		}

		diff, _ := json.Marshal(fiber.Map{
			"old":       fiber.Map{"status": before},
			"new":       fiber.Map{"status": invoice.Status},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return tx.Create(&models.AuditRecord{
			ActorID:    &actor,
			EntityType: "Invoice",
			EntityID:   fmt.Sprint(invoice.ID),
			Action:     "VOID",
			Diff:       diff,
		}).Error
	})
	if txErr != nil {
		return txErr
	}

	return c.JSON(invoice)
}
