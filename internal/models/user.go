package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Plan represents a subscription tier
type Plan string

const (
	PlanFree   Plan = "free"
	PlanPro    Plan = "pro"
	PlanAgency Plan = "agency"
)

// User represents an account tracking brand citations
type User struct {
	ID          string    `gorm:"primaryKey" json:"id"`
	Email       string    `gorm:"uniqueIndex" json:"email"`
	Plan        Plan      `gorm:"default:'free'" json:"plan"`
	QueriesUsed int       `gorm:"default:0" json:"queries_used"` // Cumulative usage for the billing period
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
