package controllers

import (
	"time"

	"backoffice-backend/database"
	"backoffice-backend/models"
	"backoffice-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// CashPulse is the landing-page snapshot: what's owed to us, what of that is
// overdue, what we owe soon, and net cash moved. All figures in minor units.
func CashPulse(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	now := time.Now().UTC()
	horizonDays := utils.ParseIntDefault(c.Query("horizon_days"), 7)
	horizon := now.AddDate(0, 0, horizonDays)

	openStatuses := []models.InvoiceStatus{models.StatusIssued, models.StatusPartiallyPaid}

	var totalAR int64
	tenantDB.Model(&models.Invoice{}).
		Where("kind = ? AND status IN ?", models.KindReceivable, openStatuses).
		Select("COALESCE(SUM(total - paid_total), 0)").
		Scan(&totalAR)

	var overdueAR int64
	tenantDB.Model(&models.Invoice{}).
		Where("kind = ? AND status IN ? AND due_date IS NOT NULL AND due_date < ?",
			models.KindReceivable, openStatuses, now).
		Select("COALESCE(SUM(total - paid_total), 0)").
		Scan(&overdueAR)

	var apDueSoon int64
	tenantDB.Model(&models.Invoice{}).
		Where("kind = ? AND status IN ? AND due_date IS NOT NULL AND due_date <= ?",
			models.KindPayable, openStatuses, horizon).
		Select("COALESCE(SUM(total - paid_total), 0)").
		Scan(&apDueSoon)

	var cashIn, cashOut int64
	tenantDB.Model(&models.Payment{}).
		Where("direction = ?", models.DirectionIn).
		Select("COALESCE(SUM(amount), 0)").Scan(&cashIn)
	tenantDB.Model(&models.Payment{}).
		Where("direction = ?", models.DirectionOut).
		Select("COALESCE(SUM(amount), 0)").Scan(&cashOut)

	return c.JSON(fiber.Map{
		"receivables_outstanding": totalAR,
		"receivables_overdue":     overdueAR,
		"payables_due_soon":       apDueSoon,
		"cash_in":                 cashIn,
		"cash_out":                cashOut,
		"cash_position":           cashIn - cashOut,
		"as_of":                   now.Format(time.RFC3339),
	})
}
