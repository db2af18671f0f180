package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Domain represents a brand's tracked web domain
type Domain struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"index;not null" json:"user_id"`
	Host      string    `gorm:"not null" json:"host"` // e.g. "acme.com"
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (d *Domain) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

// BrandKeyword derives the brand keyword from the host: the label before the
// first dot, or the whole host when there is no dot.
func (d *Domain) BrandKeyword() string {
	if idx := strings.Index(d.Host, "."); idx >= 0 {
		return d.Host[:idx]
	}
	return d.Host
}
