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

type createQuoteDTO struct {
	QuoteNumber string           `json:"quote_number" validate:"required"`
	CustomerID  uint             `json:"customer_id" validate:"required"`
	Currency    string           `json:"currency" validate:"required,currency"`
	DiscountBps int64            `json:"discount_bps" validate:"gte=0,lte=10000"`
	ValidUntil  *time.Time       `json:"valid_until"`
	Lines       []invoiceLineDTO `json:"lines" validate:"required,min=1,dive"`
}

// buildQuoteLines prices quote lines in minor units. The discount comes off
// each line's net before tax, so GST applies to what the customer actually
// pays.
func buildQuoteLines(dtos []invoiceLineDTO, currency string, discountBps int64) ([]models.QuoteLine, int64, int64, int64, error) {
	var lines []models.QuoteLine
	var subtotal, discountTotal, taxTotal int64

	for i, dto := range dtos {
		net := money.New(dto.UnitPrice*int64(dto.Qty), currency)
		discount, err := net.Scale(discountBps, 10000)
		if err != nil {
			return nil, 0, 0, 0, fmt.Errorf("line %d: %w", i, err)
		}
		taxable, err := net.Sub(discount)
		if err != nil {
			return nil, 0, 0, 0, fmt.Errorf("line %d: %w", i, err)
		}
		tax, err := taxable.Scale(dto.TaxRateBps, 10000)
		if err != nil {
			return nil, 0, 0, 0, fmt.Errorf("line %d: %w", i, err)
		}
		gross, err := taxable.Add(tax)
		if err != nil {
			return nil, 0, 0, 0, fmt.Errorf("line %d: %w", i, err)
		}

		subtotal += net.Amount
		discountTotal += discount.Amount
		taxTotal += tax.Amount

		lines = append(lines, models.QuoteLine{
			ArticleID:   dto.ArticleID,
			Description: dto.Description,
			Qty:         dto.Qty,
			UnitPrice:   dto.UnitPrice,
			TaxRateBps:  dto.TaxRateBps,
			NetPrice:    taxable.Amount,
			TaxAmount:   tax.Amount,
			GrossPrice:  gross.Amount,
		})
	}
	return lines, subtotal, discountTotal, taxTotal, nil
}

func CreateQuote(c *fiber.Ctx) error {
	var dto createQuoteDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	lines, subtotal, discountTotal, taxTotal, err := buildQuoteLines(dto.Lines, dto.Currency, dto.DiscountBps)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	quote := models.Quote{
		QuoteNumber:   dto.QuoteNumber,
		CId:           dto.CustomerID,
		Lines:         lines,
		Subtotal:      subtotal,
		DiscountBps:   dto.DiscountBps,
		DiscountTotal: discountTotal,
		TaxTotal:      taxTotal,
		Total:         subtotal - discountTotal + taxTotal,
		Currency:      dto.Currency,
		Status:        models.QuoteDraft,
		ValidUntil:    dto.ValidUntil,
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}
	if err := tenantDB.Create(&quote).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create quote",
			"error":   err.Error(),
		})
	}
	return c.JSON(quote)
}

func GetQuotes(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	q := tenantDB.Model(&models.Quote{}).Preload("Customer").Preload("Lines")
	if status := c.Query("status"); status != "" {
		q = q.Where("status = ?", status)
	}

	var quotes []models.Quote
	q.Order("created_at DESC").Find(&quotes)
	return c.JSON(fiber.Map{"quotes": quotes, "message": "success"})
}

func GetQuote(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var quote models.Quote
	if err := tenantDB.Preload("Customer").Preload("Lines").
		First(&quote, "id = ?", c.Params("id")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "quote not found")
	}
	return c.JSON(quote)
}

// AcceptQuote converts a draft quote into a draft AR invoice. The quote's
// discounted line amounts carry over as-is, so the invoice charges exactly
// what was quoted. Quote flip, invoice creation, audit and the quote.accepted
// event commit together.
func AcceptQuote(c *fiber.Ctx) error {
	schema, err := tenantSchema(c)
	if err != nil {
		return err
	}
	actor := actorID(c)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var quote models.Quote
	var invoice models.Invoice
	txErr := tenantDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Preload("Lines").First(&quote, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "quote not found")
		}
		if quote.Status != models.QuoteDraft {
			return fiber.NewError(fiber.StatusConflict, "quote already "+string(quote.Status))
		}
		now := time.Now().UTC()
		if quote.Expired(now) {
			return fiber.NewError(fiber.StatusConflict, "quote validity has expired")
		}

		lines := make([]models.InvoiceLine, 0, len(quote.Lines))
		for _, l := range quote.Lines {
			lines = append(lines, models.InvoiceLine{
				ArticleID:   l.ArticleID,
				Description: l.Description,
				Qty:         l.Qty,
				UnitPrice:   l.UnitPrice,
				TaxRateBps:  l.TaxRateBps,
				NetPrice:    l.NetPrice,
				TaxAmount:   l.TaxAmount,
				GrossPrice:  l.GrossPrice,
			})
		}
		invoice = models.Invoice{
			InvoiceNumber: fmt.Sprintf("INV-Q%d", quote.ID),
			Kind:          models.KindReceivable,
			CId:           quote.CId,
			Lines:         lines,
			Subtotal:      quote.Subtotal - quote.DiscountTotal,
			TaxTotal:      quote.TaxTotal,
			Total:         quote.Total,
			Currency:      quote.Currency,
			Status:        models.StatusDraft,
		}
		if err := tx.Create(&invoice).Error; err != nil {
			return err
		}

		quote.Status = models.QuoteAccepted
		quote.InvoiceID = &invoice.ID
		if err := tx.Model(&models.Quote{}).Where("id = ?", quote.ID).
			Updates(map[string]any{"status": quote.Status, "invoice_id": invoice.ID}).Error; err != nil {
			return err
		}

		diff, _ := json.Marshal(fiber.Map{
			"old":       fiber.Map{"status": models.QuoteDraft},
			"new":       fiber.Map{"status": quote.Status, "invoice_id": invoice.ID},
			"timestamp": now.Format(time.RFC3339),
		})
		if err := tx.Create(&models.AuditRecord{
			ActorID:    &actor,
			EntityType: "Quote",
			EntityID:   fmt.Sprint(quote.ID),
			Action:     "ACCEPT",
			Diff:       diff,
		}).Error; err != nil {
			return err
		}

		event, _ := json.Marshal(fiber.Map{
			"tenant_id":  schema,
			"quote_id":   quote.ID,
			"invoice_id": invoice.ID,
			"total":      quote.Total,
		})
		return tx.Create(&models.OutboxMessage{
			Topic:   "quote.accepted",
			Payload: event,
		}).Error
	})
	if txErr != nil {
		return txErr
	}

	return c.JSON(fiber.Map{"quote": quote, "invoice": invoice})
}

// RejectQuote is terminal; a rejected quote never converts.
func RejectQuote(c *fiber.Ctx) error {
	actor := actorID(c)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var quote models.Quote
	txErr := tenantDB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&quote, "id = ?", c.Params("id")).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "quote not found")
		}
		if quote.Status != models.QuoteDraft {
			return fiber.NewError(fiber.StatusConflict, "quote already "+string(quote.Status))
		}

		quote.Status = models.QuoteRejected
		if err := tx.Model(&models.Quote{}).Where("id = ?", quote.ID).
			Update("status", quote.Status).Error; err != nil {
			return err
		}

		diff, _ := json.Marshal(fiber.Map{
			"old":       fiber.Map{"status": models.QuoteDraft},
			"new":       fiber.Map{"status": quote.Status},
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return tx.Create(&models.AuditRecord{
			ActorID:    &actor,
			EntityType: "Quote",
			EntityID:   fmt.Sprint(quote.ID),
			Action:     "REJECT",
			Diff:       diff,
		}).Error
	})
	if txErr != nil {
		return txErr
	}

	return c.JSON(quote)
}
