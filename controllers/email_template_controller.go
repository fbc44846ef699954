package controller

import (
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"certimail/config"
	"certimail/models"
	"certimail/utils"
)

type EmailTemplateRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Subject string `json:"subject" validate:"required,max=500"`
	Content string `json:"content" validate:"required"`
}

func CreateEmailTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req EmailTemplateRequest
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

	emailTemplate := models.EmailTemplate{
		UserID:  userID,
		Name:    req.Name,
		Subject: req.Subject,
		Content: req.Content,
	}

	if err := config.DB.Create(&emailTemplate).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create email template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(emailTemplate)
}

func GetEmailTemplates(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var emailTemplates []models.EmailTemplate
	if err := config.DB.Where("user_id = ?", userID).
		Order("updated_at DESC").Find(&emailTemplates).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch email templates",
		})
	}

	return c.JSON(fiber.Map{"email_templates": emailTemplates})
}

func GetEmailTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	emailTemplate, err := findUserEmailTemplate(c, userID)
	if emailTemplate == nil {
		return err
	}
	return c.JSON(emailTemplate)
}

func UpdateEmailTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	emailTemplate, err := findUserEmailTemplate(c, userID)
	if emailTemplate == nil {
		return err
	}

	var req EmailTemplateRequest
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

	emailTemplate.Name = req.Name
	emailTemplate.Subject = req.Subject
	emailTemplate.Content = req.Content

	if err := config.DB.Save(emailTemplate).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update email template",
		})
	}

	return c.JSON(emailTemplate)
}

func DeleteEmailTemplate(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	emailTemplate, err := findUserEmailTemplate(c, userID)
	if emailTemplate == nil {
		return err
	}

	if err := config.DB.Delete(emailTemplate).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete email template",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Email template deleted successfully",
	})
}

func findUserEmailTemplate(c *fiber.Ctx, userID uint) (*models.EmailTemplate, error) {
	id, err := utils.ParseUint(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid email template ID",
		})
	}

	var emailTemplate models.EmailTemplate
	if err := config.DB.Where("id = ? AND user_id = ?", id, userID).
		First(&emailTemplate).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Email template not found",
			})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch email template",
		})
	}

	return &emailTemplate, nil
}
