package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QueryStatus represents the lifecycle state of a tracked query
type QueryStatus string

const (
	QueryStatusActive QueryStatus = "active"
	QueryStatusPaused QueryStatus = "paused"
)

// Query represents a tracked natural-language question sent to AI engines
type Query struct {
	ID        string      `gorm:"primaryKey" json:"id"`
	UserID    string      `gorm:"index;not null" json:"user_id"`
	Text      string      `gorm:"type:text;not null" json:"text"`
	Engines   StringSlice `gorm:"type:json" json:"engines"` // Subset of chatgpt/perplexity/gemini
	Status    QueryStatus `gorm:"default:'active';index" json:"status"`
	LastRunAt *time.Time  `gorm:"index" json:"last_run_at"`
	CreatedAt time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

// BeforeCreate assigns a UUID primary key when none is set
func (q *Query) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.NewString()
	}
	return nil
}

// EnabledEngines intersects the query's configured engines with the requested
// set. An empty requested set means all engines are requested. A query with no
// configured engines yields nothing.
func (q *Query) EnabledEngines(requested []string) []string {
	if len(requested) == 0 {
		requested = AllEngines()
	}
	var enabled []string
	for _, engine := range requested {
		if q.Engines.Contains(engine) {
			enabled = append(enabled, engine)
		}
	}
	return enabled
}

// DueFor reports whether the query is due for a scheduled run of the given
// cadence at time now. Manual runs are always due; never-run queries are
// always due.
func (q *Query) DueFor(runType string, now time.Time) bool {
	if runType == "manual" {
		return true
	}
	if q.LastRunAt == nil {
		return true
	}
	switch runType {
	case "daily":
		return now.Sub(*q.LastRunAt) > 24*time.Hour
	case "weekly":
		return now.Sub(*q.LastRunAt) > 168*time.Hour
	}
	return false
}
