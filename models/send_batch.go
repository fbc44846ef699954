package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// SendBatch statuses
const (
	BatchPending   = "pending"
	BatchVerifying = "verifying"
	BatchSending   = "sending"
	BatchCompleted = "completed"
	BatchFailed    = "failed"
	BatchCanceled  = "canceled"
)

// SendBatch is one invocation of the bulk send pipeline over a full CSV.
// The row data and image list are snapshotted onto the record so a
// canceled or interrupted batch can resume from Cursor instead of
// requiring a full resend.
type SendBatch struct {
	gorm.Model
	UUID   string `gorm:"uniqueIndex;not null;column:batch_uuid" json:"batch_id"`
	UserID uint   `gorm:"not null;index" json:"user_id"`

	ProfileID       uint `gorm:"not null" json:"profile_id"`
	EmailTemplateID uint `gorm:"not null" json:"email_template_id"`

	EmailColumn string `gorm:"not null" json:"email_column"`

	// Subject/body and sender identity are snapshotted at trigger time so
	// later edits to the template or profile do not affect a running batch.
	Subject     string `gorm:"type:text" json:"subject"`
	Content     string `gorm:"type:text" json:"content"`
	SenderName  string `json:"sender_name"`
	SenderEmail string `json:"sender_email"`

	Status string `gorm:"default:'pending';index" json:"status"`
	Total  int    `gorm:"default:0" json:"total"`
	Sent   int    `gorm:"default:0" json:"sent"`
	Failed int    `gorm:"default:0" json:"failed"`

	// Cursor is the index of the next row to process
	Cursor int    `gorm:"default:0" json:"cursor"`
	Error  string `gorm:"type:text" json:"error,omitempty"`

	// JSON-encoded []map[string]string and []string (data URIs)
	Rows   string `gorm:"type:text" json:"-"`
	Images string `gorm:"type:text" json:"-"`
}

func (b *SendBatch) RowRecords() ([]map[string]string, error) {
	if b.Rows == "" {
		return nil, nil
	}
	var rows []map[string]string
	if err := json.Unmarshal([]byte(b.Rows), &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (b *SendBatch) SetRowRecords(rows []map[string]string) error {
	data, err := json.Marshal(rows)
	if err != nil {
		return err
	}
	b.Rows = string(data)
	return nil
}

func (b *SendBatch) ImageList() ([]string, error) {
	if b.Images == "" {
		return nil, nil
	}
	var images []string
	if err := json.Unmarshal([]byte(b.Images), &images); err != nil {
		return nil, err
	}
	return images, nil
}

func (b *SendBatch) SetImageList(images []string) error {
	data, err := json.Marshal(images)
	if err != nil {
		return err
	}
	b.Images = string(data)
	return nil
}

// Terminal reports whether the batch has reached a final state.
func (b *SendBatch) Terminal() bool {
	switch b.Status {
	case BatchCompleted, BatchFailed, BatchCanceled:
		return true
	}
	return false
}
