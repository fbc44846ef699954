package models

import (
	"encoding/json"

	"gorm.io/gorm"
)

// TextField is one positioned text slot on a template. Fields are stored
// as a JSON array on the owning Template and replaced wholesale on update.
//
// PlaceholderKey binds the field to a CSV column; FallbackText is rendered
// when no column with that name exists in a row.
type TextField struct {
	ID             string  `json:"id"`
	PlaceholderKey string  `json:"placeholderKey"`
	FallbackText   string  `json:"fallbackText"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	FontSize       float64 `json:"fontSize"`
	FontFamily     string  `json:"fontFamily"`
	Color          string  `json:"color"`
}

// Template represents a reusable image layout: a background plus an
// ordered list of text fields, designed against a fixed 800x500 frame.
type Template struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Background and thumbnail are stored as data URIs
	BackgroundImage string `gorm:"type:text" json:"background_image"`
	Thumbnail       string `gorm:"type:text" json:"thumbnail"`

	// JSON-encoded []TextField
	TextFields string `gorm:"type:text" json:"-"`
}

// Fields decodes the stored text field list.
func (t *Template) Fields() ([]TextField, error) {
	if t.TextFields == "" {
		return nil, nil
	}
	var fields []TextField
	if err := json.Unmarshal([]byte(t.TextFields), &fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// SetFields replaces the stored text field list.
func (t *Template) SetFields(fields []TextField) error {
	data, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	t.TextFields = string(data)
	return nil
}
