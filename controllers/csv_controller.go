package controller

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"

	"certimail/utils"
)

const maxCSVSize = 5 * 1024 * 1024 // 5MB

// ParseCSVUpload accepts a CSV either as a multipart "file" upload or as
// a "csvData" field in a JSON body, and returns the parsed headers and
// row-records the editor binds placeholders against.
func ParseCSVUpload(c *fiber.Ctx) error {
	text, errResp := readCSVInput(c)
	if text == "" {
		return errResp
	}

	rows, err := utils.ParseCSV(text)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"headers": utils.CSVHeaders(text),
		"rows":    rows,
		"count":   len(rows),
	})
}

func readCSVInput(c *fiber.Ctx) (string, error) {
	if fileHeader, err := c.FormFile("file"); err == nil {
		if fileHeader.Size > maxCSVSize {
			return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "CSV file too large (max 5MB)",
			})
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
			return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Only CSV files are supported",
			})
		}

		file, err := fileHeader.Open()
		if err != nil {
			return "", c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxCSVSize+1))
		if err != nil {
			return "", c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Failed to read uploaded file",
			})
		}
		if len(data) > maxCSVSize {
			return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "CSV file too large (max 5MB)",
			})
		}
		return string(data), nil
	}

	var req struct {
		CSVData string `json:"csvData"`
	}
	if err := c.BodyParser(&req); err != nil || req.CSVData == "" {
		return "", c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "CSV data is required",
		})
	}
	return req.CSVData, nil
}
