package controllers

import (
	"backoffice-backend/database"
	"backoffice-backend/middlewares"
	"backoffice-backend/models"
	"backoffice-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type createArticleDTO struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	UnitPrice   int64  `json:"unit_price" validate:"gte=0"` // minor units
}

type updateArticleDTO struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	UnitPrice   *int64  `json:"unit_price" validate:"omitempty,gte=0"`
}

// CreateArticles accepts a batch of catalog items.
func CreateArticles(c *fiber.Ctx) error {
	var dtos []createArticleDTO
	if err := c.BodyParser(&dtos); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if len(dtos) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "empty article list")
	}
	for i := range dtos {
		if err := middlewares.ValidateStruct(&dtos[i]); err != nil {
			return err
		}
		utils.NormalizeDTO(&dtos[i])
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	articles := make([]models.Article, 0, len(dtos))
	for _, dto := range dtos {
		articles = append(articles, models.Article{
			Name:        dto.Name,
			Description: dto.Description,
			UnitPrice:   dto.UnitPrice,
			Active:      true,
		})
	}
	if err := tenantDB.Create(&articles).Error; err != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not create articles",
			"error":   err.Error(),
		})
	}
	return c.JSON(fiber.Map{"articles": articles, "message": "success"})
}

func GetArticles(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "tenant unavailable")
	}

	var articles []models.Article
	tenantDB.Where("active = ?", true).Find(&articles)
	return c.JSON(fiber.Map{"articles": articles, "message": "success"})
}

func UpdateArticle(c *fiber.Ctx) error {
	var dto updateArticleDTO
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

	res := tenantDB.Model(&models.Article{}).Where("id = ?", c.Params("id")).Updates(updates)
	if res.Error != nil {
		c.Status(fiber.StatusBadRequest)
		return c.JSON(fiber.Map{
			"message": "Could not update article",
			"error":   res.Error.Error(),
		})
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "article not found")
	}

	var article models.Article
	tenantDB.First(&article, "id = ?", c.Params("id"))
	return c.JSON(article)
}
