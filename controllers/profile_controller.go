package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"certimail/config"
	"certimail/models"
	"certimail/utils"
)

type EmailProfileRequest struct {
	ProfileName  string `json:"profile_name" validate:"required,max=200"`
	SMTPServer   string `json:"smtp_server" validate:"required,max=255"`
	SMTPPort     string `json:"smtp_port" validate:"omitempty,numeric"`
	SMTPUsername string `json:"smtp_username" validate:"required"`
	SMTPPassword string `json:"smtp_password" validate:"required"`
	SenderEmail  string `json:"sender_email" validate:"required,email"`
	SenderName   string `json:"sender_name" validate:"required,max=200"`
	IsDefault    bool   `json:"is_default"`
}

type UpdateEmailProfileRequest struct {
	ProfileName  string `json:"profile_name" validate:"required,max=200"`
	SMTPServer   string `json:"smtp_server" validate:"required,max=255"`
	SMTPPort     string `json:"smtp_port" validate:"omitempty,numeric"`
	SMTPUsername string `json:"smtp_username" validate:"required"`
	// Empty means keep the stored password
	SMTPPassword string `json:"smtp_password"`
	SenderEmail  string `json:"sender_email" validate:"required,email"`
	SenderName   string `json:"sender_name" validate:"required,max=200"`
	IsDefault    bool   `json:"is_default"`
}

func CreateEmailProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req EmailProfileRequest
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

	encryptedPassword, err := utils.Encrypt(req.SMTPPassword)
	if err != nil {
		logrus.WithError(err).Error("Failed to encrypt SMTP password")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to save email profile",
		})
	}

	port := req.SMTPPort
	if port == "" {
		port = "587"
	}

	profile := models.EmailProfile{
		UserID:       userID,
		ProfileName:  req.ProfileName,
		SMTPServer:   req.SMTPServer,
		SMTPPort:     port,
		SMTPUsername: req.SMTPUsername,
		SMTPPassword: encryptedPassword,
		SenderEmail:  req.SenderEmail,
		SenderName:   req.SenderName,
	}

	if err := config.DB.Create(&profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create email profile",
		})
	}

	if req.IsDefault {
		if err := models.SetDefaultProfile(config.DB, userID, profile.ID); err != nil {
			logrus.WithError(err).WithField("profile_id", profile.ID).
				Error("Failed to set default profile")
		} else {
			profile.IsDefault = true
		}
	}

	profile.Sanitize()
	return c.Status(fiber.StatusCreated).JSON(profile)
}

func GetEmailProfiles(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var profiles []models.EmailProfile
	if err := config.DB.Where("user_id = ?", userID).
		Order("is_default DESC, profile_name ASC").Find(&profiles).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch email profiles",
		})
	}

	for i := range profiles {
		profiles[i].Sanitize()
	}
	return c.JSON(fiber.Map{"profiles": profiles})
}

func GetEmailProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	profile, err := findUserEmailProfile(c, userID)
	if profile == nil {
		return err
	}

	profile.Sanitize()
	return c.JSON(profile)
}

func UpdateEmailProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	profile, err := findUserEmailProfile(c, userID)
	if profile == nil {
		return err
	}

	var req UpdateEmailProfileRequest
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

	profile.ProfileName = req.ProfileName
	profile.SMTPServer = req.SMTPServer
	if req.SMTPPort != "" {
		profile.SMTPPort = req.SMTPPort
	}
	profile.SMTPUsername = req.SMTPUsername
	profile.SenderEmail = req.SenderEmail
	profile.SenderName = req.SenderName

	if req.SMTPPassword != "" {
		encryptedPassword, err := utils.Encrypt(req.SMTPPassword)
		if err != nil {
			logrus.WithError(err).Error("Failed to encrypt SMTP password")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to save email profile",
			})
		}
		profile.SMTPPassword = encryptedPassword
	}

	if err := config.DB.Save(profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to update email profile",
		})
	}

	if req.IsDefault && !profile.IsDefault {
		if err := models.SetDefaultProfile(config.DB, userID, profile.ID); err != nil {
			logrus.WithError(err).WithField("profile_id", profile.ID).
				Error("Failed to set default profile")
		} else {
			profile.IsDefault = true
		}
	}

	profile.Sanitize()
	return c.JSON(profile)
}

func DeleteEmailProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	profile, err := findUserEmailProfile(c, userID)
	if profile == nil {
		return err
	}

	if err := config.DB.Delete(profile).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete email profile",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Email profile deleted successfully",
	})
}

// SetDefaultEmailProfile marks one profile as the user's default sender.
func SetDefaultEmailProfile(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	profile, err := findUserEmailProfile(c, userID)
	if profile == nil {
		return err
	}

	if err := models.SetDefaultProfile(config.DB, userID, profile.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to set default profile",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Default profile updated",
	})
}

type TestConnectionRequest struct {
	SMTPServer   string `json:"smtp_server" validate:"required,max=255"`
	SMTPPort     string `json:"smtp_port" validate:"omitempty,numeric"`
	SMTPUsername string `json:"smtp_username" validate:"required"`
	SMTPPassword string `json:"smtp_password" validate:"required"`
}

// TestSMTPConnection dials an SMTP server with credentials supplied
// inline, so a profile can be verified before it is ever saved. No
// message is sent.
func TestSMTPConnection(c *fiber.Ctx) error {
	var req TestConnectionRequest
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

	probe := models.EmailProfile{
		SMTPServer:   req.SMTPServer,
		SMTPPort:     req.SMTPPort,
		SMTPUsername: req.SMTPUsername,
	}

	dialer := utils.BuildDialer(&probe, req.SMTPPassword)
	sender, err := dialer.Dial()
	if err != nil {
		logrus.WithError(err).WithField("server", req.SMTPServer).
			Warn("SMTP connection test failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "SMTP connection failed: " + err.Error(),
		})
	}
	sender.Close()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "SMTP connection verified",
	})
}

func findUserEmailProfile(c *fiber.Ctx, userID uint) (*models.EmailProfile, error) {
	id, err := utils.ParseUint(c.Params("id"))
	if err != nil {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid profile ID",
		})
	}

	var profile models.EmailProfile
	if err := config.DB.Where("id = ? AND user_id = ?", id, userID).
		First(&profile).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Email profile not found",
			})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch email profile",
		})
	}

	return &profile, nil
}
