package models

import (
	"gorm.io/gorm"
)

// EmailProfile holds named SMTP credentials and a sender identity.
// At most one profile per user is flagged default; the flag is flipped
// inside a transaction (see SetDefaultProfile).
type EmailProfile struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	ProfileName string `gorm:"not null" json:"profile_name"`

	SMTPServer   string `gorm:"not null" json:"smtp_server"`
	SMTPPort     string `gorm:"not null;default:'587'" json:"smtp_port"`
	SMTPUsername string `gorm:"not null" json:"smtp_username"`
	SMTPPassword string `gorm:"not null" json:"-"` // AES encrypted in application layer

	SenderEmail string `gorm:"not null" json:"sender_email"`
	SenderName  string `gorm:"not null" json:"sender_name"`

	IsDefault bool `gorm:"default:false" json:"is_default"`
}

// Sanitize clears secrets before the profile is serialized to a client.
func (p *EmailProfile) Sanitize() {
	p.SMTPPassword = ""
}

// SetDefaultProfile clears the default flag on every profile the user
// owns and sets it on the given one, in a single transaction so two
// concurrent calls cannot leave zero or two defaults.
func SetDefaultProfile(db *gorm.DB, userID, profileID uint) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&EmailProfile{}).
			Where("user_id = ? AND is_default = ?", userID, true).
			Update("is_default", false).Error; err != nil {
			return err
		}
		return tx.Model(&EmailProfile{}).
			Where("id = ? AND user_id = ?", profileID, userID).
			Update("is_default", true).Error
	})
}
