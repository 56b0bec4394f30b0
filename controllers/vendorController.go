package controllers

import (
	"backoffice-backend/database"
	"backoffice-backend/middlewares"
	"backoffice-backend/models"
	"backoffice-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type createVendorDTO struct {
	Name        string `json:"name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Zip         string `json:"zip"`
	UID         string `json:"uid"`
}

type updateVendorDTO struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	Zip         *string `json:"zip"`
	UID         *string `json:"uid"`
}

func CreateVendor(c *fiber.Ctx) error {
	var dto createVendorDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	vendor := models.Vendor{
		Name:        dto.Name,
		Email:       dto.Email,
		PhoneNumber: dto.PhoneNumber,
		Address:     dto.Address,
		City:        dto.City,
		Country:     dto.Country,
		Zip:         dto.Zip,
		UID:         dto.UID,
	}
	if err := tenantDB.Create(&vendor).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create vendor",
			"error":   err.Error(),
		})
	}
	return c.JSON(vendor)
}

func GetVendors(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var vendors []models.Vendor
	tenantDB.Model(&models.Vendor{}).Find(&vendors)
	return c.JSON(fiber.Map{
		"vendors": vendors,
		"message": "success",
	})
}

func UpdateVendor(c *fiber.Ctx) error {
	var dto updateVendorDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "nothing to update")
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	res := tenantDB.Model(&models.Vendor{}).Where("id = ?", c.Params("id")).Updates(updates)
	if res.Error != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not update vendor",
			"error":   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "vendor not found")
	}

	var vendor models.Vendor
	tenantDB.First(&vendor, "id = ?", c.Params("id"))
	return c.JSON(vendor)
}
