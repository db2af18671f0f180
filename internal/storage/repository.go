package storage

import (
	"context"
	"time"

	"github.com/citewatch-agent/internal/models"
)

// Repository defines the interface for data persistence
type Repository interface {
	// User operations
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	IncrementQueriesUsed(ctx context.Context, userID string, count int) error

	// Query operations
	GetQueryByID(ctx context.Context, id string) (*models.Query, error)
	ListQueries(ctx context.Context, filter QueryFilter) ([]*models.Query, error)
	CreateQuery(ctx context.Context, query *models.Query) error
	UpdateQueryLastRun(ctx context.Context, id string, at time.Time) error

	// Domain operations
	ListDomains(ctx context.Context, userID string) ([]*models.Domain, error)
	CreateDomain(ctx context.Context, domain *models.Domain) error

	// Citation operations (append-only)
	CreateCitation(ctx context.Context, citation *models.Citation) error
	ListCitations(ctx context.Context, filter CitationFilter) ([]*models.Citation, error)

	// Maintenance
	Close() error
	Migrate() error
}

// UserFilter defines filtering options for users
type UserFilter struct {
	IDs   []string
	Plan  *models.Plan
	Limit int
}

// QueryFilter defines filtering options for queries
type QueryFilter struct {
	UserID string
	IDs    []string
	Status *models.QueryStatus
	Limit  int
}

// CitationFilter defines filtering options for citations
type CitationFilter struct {
	QueryID   string
	UserID    string
	Engine    string
	Since     *time.Time
	Limit     int
	OrderDesc bool
}

// ActiveQueryFilter returns a filter matching a user's active queries,
// optionally restricted to specific query IDs.
func ActiveQueryFilter(userID string, ids []string) QueryFilter {
	status := models.QueryStatusActive
	return QueryFilter{
		UserID: userID,
		IDs:    ids,
		Status: &status,
	}
}
