package controllers

import (
	"backoffice-backend/database"
	"backoffice-backend/models"
	"backoffice-backend/utils"

	"github.com/gofiber/fiber/v2"
)

// GetAuditRecords lists the audit trail, newest first, optionally narrowed
// to one entity.
func GetAuditRecords(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	q := tenantDB.Model(&models.AuditRecord{})
	if et := c.Query("entity_type"); et != "" {
		q = q.Where("entity_type = ?", et)
	}
	if id := c.Query("entity_id"); id != "" {
		q = q.Where("entity_id = ?", id)
	}
	if action := c.Query("action"); action != "" {
		q = q.Where("action = ?", action)
	}

	limit := utils.ParseIntDefault(c.Query("limit"), 200)

	var records []models.AuditRecord
	q.Order("created_at DESC").Limit(limit).Find(&records)

	return c.JSON(fiber.Map{"audit": records, "message": "success"})
}
