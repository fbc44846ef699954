package routes

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"

	controller "certimail/controllers"
	"certimail/middleware"
)

// SetupRoutes wires every HTTP endpoint. Everything under /api/v1
// requires a valid access token; auth endpoints are public.
func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Auth routes group with logging middleware
	auth := app.Group("/auth", logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Post("/logout", controller.Logout)
	protectedAuth.Get("/me", controller.GetCurrentUser)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Image template routes
	templates := api.Group("/templates")
	templates.Post("/", controller.CreateTemplate)
	templates.Get("/", controller.GetTemplates)
	templates.Get("/:id", controller.GetTemplate)
	templates.Put("/:id", controller.UpdateTemplate)
	templates.Delete("/:id", controller.DeleteTemplate)
	templates.Post("/:id/generate", controller.GenerateImages)

	// Email template routes
	emailTemplates := api.Group("/email-templates")
	emailTemplates.Post("/", controller.CreateEmailTemplate)
	emailTemplates.Get("/", controller.GetEmailTemplates)
	emailTemplates.Get("/:id", controller.GetEmailTemplate)
	emailTemplates.Put("/:id", controller.UpdateEmailTemplate)
	emailTemplates.Delete("/:id", controller.DeleteEmailTemplate)

	// SMTP profile routes; connection tests are rate limited
	profiles := api.Group("/profiles")
	profiles.Post("/", controller.CreateEmailProfile)
	profiles.Get("/", controller.GetEmailProfiles)
	profiles.Get("/:id", controller.GetEmailProfile)
	profiles.Put("/:id", controller.UpdateEmailProfile)
	profiles.Delete("/:id", controller.DeleteEmailProfile)
	profiles.Post("/:id/set-default", controller.SetDefaultEmailProfile)
	profiles.Post("/test", middleware.TestSendRateLimiter(), controller.TestSMTPConnection)

	// CSV parsing
	api.Post("/csv/parse", controller.ParseCSVUpload)

	// Bulk send routes
	send := api.Group("/send")
	send.Post("/", controller.SendBulkEmails)
	send.Post("/test", middleware.TestSendRateLimiter(), controller.SendTestEmail)
	send.Get("/test/fields", controller.GetTestSendFields)
	send.Get("/:batchId", controller.GetSendBatch)
	send.Post("/:batchId/cancel", controller.CancelSendBatch)
	send.Post("/:batchId/resume", controller.ResumeSendBatch)

	// Live progress: SSE for EventSource clients, WebSocket for the rest
	send.Get("/progress/:batchId", controller.StreamBatchProgress)
	send.Get("/progress/:batchId/ws", controller.BatchProgressWS)

	// 404 fallback
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Route not found",
		})
	})
}
