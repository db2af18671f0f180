package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/internal/storage"
)

// Repository implements storage.Repository using SQLite
type Repository struct {
	db *gorm.DB
}

// New creates a new SQLite repository
func New(dsn string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dsn)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Repository{db: db}, nil
}

// Migrate runs database migrations
func (r *Repository) Migrate() error {
	return r.db.AutoMigrate(
		&models.User{},
		&models.Query{},
		&models.Domain{},
		&models.Citation{},
	)
}

// Close closes the database connection
func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// User operations

func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *Repository) ListUsers(ctx context.Context, filter storage.UserFilter) ([]*models.User, error) {
	var users []*models.User
	query := r.db.WithContext(ctx).Model(&models.User{})

	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Plan != nil {
		query = query.Where("plan = ?", *filter.Plan)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *Repository) IncrementQueriesUsed(ctx context.Context, userID string, count int) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		UpdateColumn("queries_used", gorm.Expr("queries_used + ?", count)).Error
}

// Query operations

func (r *Repository) GetQueryByID(ctx context.Context, id string) (*models.Query, error) {
	var query models.Query
	if err := r.db.WithContext(ctx).First(&query, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &query, nil
}

func (r *Repository) ListQueries(ctx context.Context, filter storage.QueryFilter) ([]*models.Query, error) {
	var queries []*models.Query
	query := r.db.WithContext(ctx).Model(&models.Query{})

	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if len(filter.IDs) > 0 {
		query = query.Where("id IN ?", filter.IDs)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Order("created_at ASC").Find(&queries).Error; err != nil {
		return nil, err
	}
	return queries, nil
}

func (r *Repository) CreateQuery(ctx context.Context, query *models.Query) error {
	return r.db.WithContext(ctx).Create(query).Error
}

func (r *Repository) UpdateQueryLastRun(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Query{}).
		Where("id = ?", id).
		UpdateColumn("last_run_at", at).Error
}

// Domain operations

func (r *Repository) ListDomains(ctx context.Context, userID string) ([]*models.Domain, error) {
	var domains []*models.Domain
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&domains).Error; err != nil {
		return nil, err
	}
	return domains, nil
}

func (r *Repository) CreateDomain(ctx context.Context, domain *models.Domain) error {
	return r.db.WithContext(ctx).Create(domain).Error
}

// Citation operations

func (r *Repository) CreateCitation(ctx context.Context, citation *models.Citation) error {
	return r.db.WithContext(ctx).Create(citation).Error
}

func (r *Repository) ListCitations(ctx context.Context, filter storage.CitationFilter) ([]*models.Citation, error) {
	var citations []*models.Citation
	query := r.db.WithContext(ctx).Model(&models.Citation{})

	if filter.QueryID != "" {
		query = query.Where("query_id = ?", filter.QueryID)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Engine != "" {
		query = query.Where("engine = ?", filter.Engine)
	}
	if filter.Since != nil {
		query = query.Where("checked_at >= ?", *filter.Since)
	}

	if filter.OrderDesc {
		query = query.Order("checked_at DESC")
	} else {
		query = query.Order("checked_at ASC")
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	if err := query.Find(&citations).Error; err != nil {
		return nil, err
	}
	return citations, nil
}
