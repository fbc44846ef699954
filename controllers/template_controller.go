package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"certimail/config"
	"certimail/models"
	"certimail/utils"
)

type TemplateRequest struct {
	Name            string             `json:"name" validate:"required,max=200"`
	Description     string             `json:"description"`
	BackgroundImage string             `json:"backgroundImage" validate:"required"`
	Thumbnail       string             `json:"thumbnail"`
	TextFields      []models.TextField `json:"textFields"`
}

type GenerateRequest struct {
	CSVData string `json:"csvData"`
}

func CreateTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	template := models.Template{
		UserID:          userID,
		Name:            req.Name,
		Description:     req.Description,
		BackgroundImage: req.BackgroundImage,
		Thumbnail:       req.Thumbnail,
	}
	if err := template.SetFields(req.TextFields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid text fields",
		})
	}

	if err := config.DB.Create(&template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(templateResponse(&template))
}

func GetTemplates(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var templates []models.Template
	if err := config.DB.Where("user_id = ?", userID).
		Order("updated_at DESC").Find(&templates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch templates",
		})
	}

	out := make([]fiber.Map, 0, len(templates))
	for i := range templates {
		out = append(out, templateResponse(&templates[i]))
	}
	return c.JSON(fiber.Map{"templates": out})
}

func GetTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	template, err := findUserTemplate(c, userID)
	if template == nil {
		return err
	}
	return c.JSON(templateResponse(template))
}

func UpdateTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	template, err := findUserTemplate(c, userID)
	if template == nil {
		return err
	}

	var req TemplateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	template.Name = req.Name
	template.Description = req.Description
	template.BackgroundImage = req.BackgroundImage
	template.Thumbnail = req.Thumbnail
	if err := template.SetFields(req.TextFields); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid text fields",
		})
	}

	if err := config.DB.Save(template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update template",
		})
	}

	return c.JSON(templateResponse(template))
}

func DeleteTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	template, err := findUserTemplate(c, userID)
	if template == nil {
		return err
	}

	if err := config.DB.Delete(template).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Template deleted successfully",
	})
}

// GenerateImages renders one personalized image per CSV row of the given
// template and returns them all as PNG data URIs, index-aligned with the
// parsed rows.
func GenerateImages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	template, err := findUserTemplate(c, userID)
	if template == nil {
		return err
	}

	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.CSVData == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CSV data is required",
		})
	}

	rows, err := utils.ParseCSV(req.CSVData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	compositor, err := utils.NewCompositor(template)
	if err != nil {
		logrus.WithError(err).WithField("template_id", template.ID).
			Error("Failed to prepare template for generation")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate images",
		})
	}

	images, err := compositor.RenderAll(rows)
	if err != nil {
		logrus.WithError(err).WithField("template_id", template.ID).
			Error("Failed to render images")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to generate images",
		})
	}

	return c.JSON(fiber.Map{
		"images": images,
		"rows":   rows,
		"count":  len(images),
	})
}

func findUserTemplate(c *fiber.Ctx, userID uint) (*models.Template, error) {
	id, err := utils.ParseUint(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template ID",
		})
	}

	var template models.Template
	if err := config.DB.Where("id = ? AND user_id = ?", id, userID).
		First(&template).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Template not found",
			})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch template",
		})
	}

	return &template, nil
}

// templateResponse flattens the stored JSON field list back into the
// shape the editor works with.
func templateResponse(t *models.Template) fiber.Map {
	fields, err := t.Fields()
	if err != nil {
		logrus.WithError(err).WithField("template_id", t.ID).
			Warn("Stored text fields failed to decode")
		fields = nil
	}
	if fields == nil {
		fields = []models.TextField{}
	}

	return fiber.Map{
		"id":              t.ID,
		"name":            t.Name,
		"description":     t.Description,
		"backgroundImage": t.BackgroundImage,
		"thumbnail":       t.Thumbnail,
		"textFields":      fields,
		"created_at":      t.CreatedAt,
		"updated_at":      t.UpdatedAt,
	}
}
