package controller

import (
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"certimail/config"
	"certimail/models"
	"certimail/utils"
	"certimail/worker"
)

// Shared by the send trigger, the progress stream and cancellation.
var (
	progressHub = utils.NewProgressHub()
	registry    = worker.NewRegistry()
)

type BulkSendRequest struct {
	ProfileID       uint     `json:"profileId" validate:"required"`
	EmailTemplateID uint     `json:"emailTemplateId" validate:"required"`
	EmailColumn     string   `json:"emailColumn" validate:"required"`
	CSVData         string   `json:"csvData" validate:"required"`
	Images          []string `json:"images" validate:"required,min=1"`
}

type TestSendRequest struct {
	ProfileID       uint              `json:"profileId" validate:"required"`
	TemplateID      uint              `json:"templateId"`
	EmailTemplateID uint              `json:"emailTemplateId"`
	Recipient       string            `json:"recipient" validate:"required,email"`
	TestData        map[string]string `json:"testData"`
}

// testSampleRow is substituted into the subject and body of a test send
// when the caller provides no sample data of their own.
var testSampleRow = map[string]string{
	"name":    "Jane Doe",
	"email":   "jane.doe@example.com",
	"company": "Acme Inc",
	"date":    "2025-01-15",
}

// SendBulkEmails snapshots the send inputs into a batch record and
// launches the background worker. It returns the batch id immediately;
// progress is observed over the batch's event stream.
func SendBulkEmails(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req BulkSendRequest
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

	var profile models.EmailProfile
	if err := config.DB.Where("id = ? AND user_id = ?", req.ProfileID, userID).
		First(&profile).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Email profile not found",
		})
	}

	var emailTemplate models.EmailTemplate
	if err := config.DB.Where("id = ? AND user_id = ?", req.EmailTemplateID, userID).
		First(&emailTemplate).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Email template not found",
		})
	}

	rows, err := utils.ParseCSV(req.CSVData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	password, err := utils.Decrypt(profile.SMTPPassword)
	if err != nil {
		logrus.WithError(err).WithField("profile_id", profile.ID).
			Error("Failed to decrypt SMTP password")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read stored credentials",
		})
	}

	batch := models.SendBatch{
		UUID:            uuid.NewString(),
		UserID:          userID,
		ProfileID:       profile.ID,
		EmailTemplateID: emailTemplate.ID,
		EmailColumn:     req.EmailColumn,
		Subject:         emailTemplate.Subject,
		Content:         emailTemplate.Content,
		SenderName:      profile.SenderName,
		SenderEmail:     profile.SenderEmail,
		Status:          models.BatchPending,
		Total:           len(rows),
	}
	if err := batch.SetRowRecords(rows); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid CSV rows",
		})
	}
	if err := batch.SetImageList(req.Images); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid image list",
		})
	}

	if err := config.DB.Create(&batch).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create send batch",
		})
	}

	job := worker.BatchJob{
		ID:          batch.UUID,
		EmailColumn: batch.EmailColumn,
		Subject:     batch.Subject,
		Content:     batch.Content,
		SenderName:  batch.SenderName,
		SenderEmail: batch.SenderEmail,
		Rows:        rows,
		Images:      req.Images,
	}

	registry.Launch(newSendWorker(), job, utils.BuildDialer(&profile, password))

	logrus.WithFields(logrus.Fields{
		"batch":   batch.UUID,
		"user_id": userID,
		"total":   batch.Total,
	}).Info("Bulk send started")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"batchId": batch.UUID,
		"total":   batch.Total,
	})
}

// SendTestEmail sends a single message synchronously so the user can
// check rendering and credentials before a real batch.
func SendTestEmail(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	var req TestSendRequest
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

	var profile models.EmailProfile
	if err := config.DB.Where("id = ? AND user_id = ?", req.ProfileID, userID).
		First(&profile).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Email profile not found",
		})
	}

	password, err := utils.Decrypt(profile.SMTPPassword)
	if err != nil {
		logrus.WithError(err).WithField("profile_id", profile.ID).
			Error("Failed to decrypt SMTP password")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read stored credentials",
		})
	}

	sample := req.TestData
	if len(sample) == 0 {
		sample = testSampleRow
	}

	// Subject and body default to a canned message when no email
	// template is named
	subject := "Test Email"
	content := "<p>This is a test email from your certificate sender.</p>"
	if req.EmailTemplateID != 0 {
		var emailTemplate models.EmailTemplate
		if err := config.DB.Where("id = ? AND user_id = ?", req.EmailTemplateID, userID).
			First(&emailTemplate).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Email template not found",
			})
		}
		subject = emailTemplate.Subject
		content = emailTemplate.Content
	}
	subject = utils.SubstituteVars(subject, sample)
	body := utils.SubstituteVars(content, sample)

	// Attach a real render of the named template, or a plain
	// placeholder when the caller only wants to exercise the transport
	imageURI, err := testSendImage(userID, req.TemplateID, sample)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to render test image",
		})
	}
	imageData, err := base64.StdEncoding.DecodeString(utils.DataURIPayload(imageURI))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to render test image",
		})
	}

	m := gomail.NewMessage()
	m.SetHeader("From", fmt.Sprintf("%s <%s>", profile.SenderName, profile.SenderEmail))
	m.SetHeader("To", req.Recipient)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", body)
	m.Attach("test-image.png", gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(imageData)
		return err
	}))

	dialer := utils.BuildDialer(&profile, password)
	if err := dialer.DialAndSend(m); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"profile_id": profile.ID,
			"recipient":  req.Recipient,
		}).Warn("Test send failed")
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to send test email: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Test email sent to " + req.Recipient,
	})
}

// testSendImage renders the template against the sample row, or a
// placeholder canvas when no template is given.
func testSendImage(userID, templateID uint, sample map[string]string) (string, error) {
	if templateID == 0 {
		return utils.RenderPlaceholder("Test Certificate")
	}

	var template models.Template
	if err := config.DB.Where("id = ? AND user_id = ?", templateID, userID).
		First(&template).Error; err != nil {
		return "", err
	}

	comp, err := utils.NewCompositor(&template)
	if err != nil {
		return "", err
	}
	return comp.Render(sample)
}

// GetTestSendFields lists the placeholder keys a test send can
// substitute: the template's field bindings plus the implicit email
// column, falling back to the canned sample row without a template.
func GetTestSendFields(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	templateID, err := utils.ParseUint(c.Query("templateId"))
	if err != nil || templateID == 0 {
		keys := make([]string, 0, len(testSampleRow))
		for key := range testSampleRow {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		return c.JSON(fiber.Map{"fields": keys, "sample": testSampleRow})
	}

	var template models.Template
	if err := config.DB.Where("id = ? AND user_id = ?", templateID, userID).
		First(&template).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	fields, err := template.Fields()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored text fields failed to decode",
		})
	}

	seen := map[string]bool{"email": true}
	keys := []string{"email"}
	for _, field := range fields {
		key := strings.TrimSpace(field.PlaceholderKey)
		if key != "" && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	return c.JSON(fiber.Map{"fields": keys})
}

// GetSendBatch returns the persisted state of a batch, including counts
// and cursor, so a client can recover after losing the event stream.
func GetSendBatch(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	batch, err := findUserBatch(c, userID)
	if batch == nil {
		return err
	}

	return c.JSON(fiber.Map{
		"batchId": batch.UUID,
		"status":  batch.Status,
		"total":   batch.Total,
		"sent":    batch.Sent,
		"failed":  batch.Failed,
		"cursor":  batch.Cursor,
		"error":   batch.Error,
		"running": registry.Running(batch.UUID),
	})
}

// CancelSendBatch requests cooperative cancellation of a running batch.
// The worker finishes its current row before stopping.
func CancelSendBatch(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	batch, err := findUserBatch(c, userID)
	if batch == nil {
		return err
	}

	if !registry.Cancel(batch.UUID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Batch is not running",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Cancellation requested",
	})
}

// ResumeSendBatch relaunches an interrupted batch from its persisted
// cursor, skipping rows that were already attempted.
func ResumeSendBatch(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	batch, err := findUserBatch(c, userID)
	if batch == nil {
		return err
	}

	if registry.Running(batch.UUID) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Batch is already running",
		})
	}
	if batch.Status == models.BatchCompleted {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Batch already completed",
		})
	}

	var profile models.EmailProfile
	if err := config.DB.Where("id = ? AND user_id = ?", batch.ProfileID, userID).
		First(&profile).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Email profile no longer exists",
		})
	}

	password, err := utils.Decrypt(profile.SMTPPassword)
	if err != nil {
		logrus.WithError(err).WithField("profile_id", profile.ID).
			Error("Failed to decrypt SMTP password")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to read stored credentials",
		})
	}

	rows, err := batch.RowRecords()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored batch rows are corrupt",
		})
	}
	images, err := batch.ImageList()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Stored batch images are corrupt",
		})
	}

	job := worker.BatchJob{
		ID:          batch.UUID,
		EmailColumn: batch.EmailColumn,
		Subject:     batch.Subject,
		Content:     batch.Content,
		SenderName:  batch.SenderName,
		SenderEmail: batch.SenderEmail,
		Rows:        rows,
		Images:      images,
		StartAt:     batch.Cursor,
		Sent:        batch.Sent,
		Failed:      batch.Failed,
	}

	registry.Launch(newSendWorker(), job, utils.BuildDialer(&profile, password))

	logrus.WithFields(logrus.Fields{
		"batch":  batch.UUID,
		"cursor": batch.Cursor,
	}).Info("Batch resumed")

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"batchId": batch.UUID,
		"total":   batch.Total,
		"cursor":  batch.Cursor,
	})
}

func newSendWorker() *worker.SendWorker {
	return worker.NewSendWorker(
		worker.NewGormBatchStore(config.DB),
		progressHub,
		logrus.StandardLogger(),
		time.Duration(config.AppConfig.SendDelayMs)*time.Millisecond,
	)
}

// loadUserBatch is the transport-independent batch lookup used by the
// WebSocket stream, which has no fiber context to respond through.
func loadUserBatch(batchID string, userID uint) (*models.SendBatch, error) {
	var batch models.SendBatch
	if err := config.DB.Where("batch_uuid = ? AND user_id = ?", batchID, userID).
		First(&batch).Error; err != nil {
		return nil, err
	}
	return &batch, nil
}

func findUserBatch(c *fiber.Ctx, userID uint) (*models.SendBatch, error) {
	batchID := c.Params("batchId")
	if batchID == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Batch ID is required",
		})
	}

	var batch models.SendBatch
	if err := config.DB.Where("batch_uuid = ? AND user_id = ?", batchID, userID).
		First(&batch).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Batch not found",
			})
		}
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch batch",
		})
	}

	return &batch, nil
}
