package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CitationPosition classifies where in a response the brand first appears
type CitationPosition string

const (
	PositionTop    CitationPosition = "top"
	PositionMiddle CitationPosition = "middle"
	PositionBottom CitationPosition = "bottom"
)

// Citation is an immutable record of one engine's response to one query at one
// point in time. Rows are append-only; duplicate runs append additional rows
// since this is a time series of checks.
type Citation struct {
	ID           string           `gorm:"primaryKey" json:"id"`
	QueryID      string           `gorm:"index;not null" json:"query_id"`
	UserID       string           `gorm:"index;not null" json:"user_id"`
	Engine       string           `gorm:"index;not null" json:"engine"`
	ResponseText string           `gorm:"type:text" json:"response_text"`
	Cited        bool             `json:"cited"`
	Position     CitationPosition `json:"position,omitempty"` // Empty iff not cited
	Confidence   float64          `json:"confidence"`
	CheckedAt    time.Time        `gorm:"index" json:"checked_at"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (c *Citation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
