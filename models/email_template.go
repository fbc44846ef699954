package models

import (
	"gorm.io/gorm"
)

// EmailTemplate is a named subject/body pair. Subject and Content may
// contain {field} and {{field}} placeholders that are substituted from
// CSV row data at send time. By convention placeholder names match the
// CSV column names used by the design template.
type EmailTemplate struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name    string `gorm:"not null" json:"name"`
	Subject string `gorm:"not null" json:"subject"`
	Content string `gorm:"type:text" json:"content"` // HTML body
}
