package controllers

import (
	"backoffice-backend/database"
	"backoffice-backend/middlewares"
	"backoffice-backend/models"
	"backoffice-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type createCustomerDTO struct {
	CompanyName string `json:"company_name" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	Zip         string `json:"zip"`
	UID         string `json:"uid"`
}

type updateCustomerDTO struct {
	Email       *string `json:"email" validate:"omitempty,email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	PhoneNumber *string `json:"phone_number"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	Country     *string `json:"country"`
	Zip         *string `json:"zip"`
	UID         *string `json:"uid"`
}

func CreateCustomer(c *fiber.Ctx) error {
	var dto createCustomerDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	customer := models.Customer{
		CompanyName: dto.CompanyName,
		Email:       dto.Email,
		FirstName:   dto.FirstName,
		LastName:    dto.LastName,
		PhoneNumber: dto.PhoneNumber,
		Address:     dto.Address,
		City:        dto.City,
		Country:     dto.Country,
		Zip:         dto.Zip,
		UID:         dto.UID,
		Active:      true,
	}
	if err := tenantDB.Create(&customer).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create customer",
			"error":   err.Error(),
		})
	}
	return c.JSON(customer)
}

func GetCustomers(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var customers []models.Customer
	tenantDB.Model(&models.Customer{}).Find(&customers)
	return c.JSON(fiber.Map{
		"customers": customers,
		"message":   "success",
	})
}

func GetCustomer(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var customer models.Customer
	if err := tenantDB.First(&customer, "id = ?", c.Params("id")).Error; err != nil {
		return fiber.NewError(fiber.StatusNotFound, "customer not found")
	}
	return c.JSON(customer)
}

func UpdateCustomer(c *fiber.Ctx) error {
	var dto updateCustomerDTO
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

	res := tenantDB.Model(&models.Customer{}).Where("id = ?", c.Params("id")).Updates(updates)
	if res.Error != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not update customer",
			"error":   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "customer not found")
	}

	var customer models.Customer
	tenantDB.First(&customer, "id = ?", c.Params("id"))
	return c.JSON(customer)
}
