package models

import (
	"gorm.io/gorm"
)

// User represents an operator account in the system
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name *string `json:"name,omitempty"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Bumped on logout to invalidate outstanding tokens
	TokenVersion int `gorm:"default:0" json:"-"`

	// Relations
	Templates      []Template      `gorm:"foreignKey:UserID" json:"templates,omitempty"`
	EmailProfiles  []EmailProfile  `gorm:"foreignKey:UserID" json:"email_profiles,omitempty"`
	EmailTemplates []EmailTemplate `gorm:"foreignKey:UserID" json:"email_templates,omitempty"`
	SendBatches    []SendBatch     `gorm:"foreignKey:UserID" json:"send_batches,omitempty"`
}
