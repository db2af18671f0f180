// Package storagetest provides an in-memory storage.Repository for tests.
package storagetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citewatch-agent/internal/models"
	"github.com/citewatch-agent/internal/storage"
)

// Repository is a mutex-guarded in-memory implementation of
// storage.Repository. Zero value is not usable; construct with New.
type Repository struct {
	mu        sync.Mutex
	users     map[string]*models.User
	queries   map[string]*models.Query
	domains   map[string]*models.Domain
	citations []*models.Citation

	// FailCitationWrites makes CreateCitation return an error, for
	// exercising persistence failure paths.
	FailCitationWrites bool
}

// New creates an empty in-memory repository
func New() *Repository {
	return &Repository{
		users:   make(map[string]*models.User),
		queries: make(map[string]*models.Query),
		domains: make(map[string]*models.Domain),
	}
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s not found", id)
	}
	copied := *user
	return &copied, nil
}

func (r *Repository) ListUsers(ctx context.Context, filter storage.UserFilter) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var users []*models.User
	for _, user := range r.users {
		if len(filter.IDs) > 0 && !contains(filter.IDs, user.ID) {
			continue
		}
		if filter.Plan != nil && user.Plan != *filter.Plan {
			continue
		}
		copied := *user
		users = append(users, &copied)
	}
	sort.Slice(users, func(i, j int) bool {
		if !users[i].CreatedAt.Equal(users[j].CreatedAt) {
			return users[i].CreatedAt.Before(users[j].CreatedAt)
		}
		return users[i].ID < users[j].ID
	})
	if filter.Limit > 0 && len(users) > filter.Limit {
		users = users[:filter.Limit]
	}
	return users, nil
}

func (r *Repository) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *Repository) IncrementQueriesUsed(ctx context.Context, userID string, count int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("user %s not found", userID)
	}
	user.QueriesUsed += count
	return nil
}

func (r *Repository) GetQueryByID(ctx context.Context, id string) (*models.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	query, ok := r.queries[id]
	if !ok {
		return nil, fmt.Errorf("query %s not found", id)
	}
	copied := *query
	return &copied, nil
}

func (r *Repository) ListQueries(ctx context.Context, filter storage.QueryFilter) ([]*models.Query, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var queries []*models.Query
	for _, query := range r.queries {
		if filter.UserID != "" && query.UserID != filter.UserID {
			continue
		}
		if len(filter.IDs) > 0 && !contains(filter.IDs, query.ID) {
			continue
		}
		if filter.Status != nil && query.Status != *filter.Status {
			continue
		}
		copied := *query
		queries = append(queries, &copied)
	}
	// Stable order for tests: by creation time, then ID
	sortQueries(queries)
	if filter.Limit > 0 && len(queries) > filter.Limit {
		queries = queries[:filter.Limit]
	}
	return queries, nil
}

func (r *Repository) CreateQuery(ctx context.Context, query *models.Query) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if query.ID == "" {
		query.ID = uuid.NewString()
	}
	copied := *query
	r.queries[query.ID] = &copied
	return nil
}

func (r *Repository) UpdateQueryLastRun(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	query, ok := r.queries[id]
	if !ok {
		return fmt.Errorf("query %s not found", id)
	}
	t := at
	query.LastRunAt = &t
	return nil
}

func (r *Repository) ListDomains(ctx context.Context, userID string) ([]*models.Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var domains []*models.Domain
	for _, domain := range r.domains {
		if domain.UserID != userID {
			continue
		}
		copied := *domain
		domains = append(domains, &copied)
	}
	sortDomains(domains)
	return domains, nil
}

func (r *Repository) CreateDomain(ctx context.Context, domain *models.Domain) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if domain.ID == "" {
		domain.ID = uuid.NewString()
	}
	copied := *domain
	r.domains[domain.ID] = &copied
	return nil
}

func (r *Repository) CreateCitation(ctx context.Context, citation *models.Citation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FailCitationWrites {
		return fmt.Errorf("citation write rejected")
	}
	if citation.ID == "" {
		citation.ID = uuid.NewString()
	}
	copied := *citation
	r.citations = append(r.citations, &copied)
	return nil
}

func (r *Repository) ListCitations(ctx context.Context, filter storage.CitationFilter) ([]*models.Citation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var citations []*models.Citation
	for _, citation := range r.citations {
		if filter.QueryID != "" && citation.QueryID != filter.QueryID {
			continue
		}
		if filter.UserID != "" && citation.UserID != filter.UserID {
			continue
		}
		if filter.Engine != "" && citation.Engine != filter.Engine {
			continue
		}
		if filter.Since != nil && citation.CheckedAt.Before(*filter.Since) {
			continue
		}
		copied := *citation
		citations = append(citations, &copied)
	}
	if filter.OrderDesc {
		sort.Slice(citations, func(i, j int) bool {
			return citations[i].CheckedAt.After(citations[j].CheckedAt)
		})
	}
	if filter.Limit > 0 && len(citations) > filter.Limit {
		citations = citations[:filter.Limit]
	}
	return citations, nil
}

func (r *Repository) Close() error   { return nil }
func (r *Repository) Migrate() error { return nil }

// CitationCount returns the number of stored citations
func (r *Repository) CitationCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.citations)
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func sortQueries(queries []*models.Query) {
	sort.Slice(queries, func(i, j int) bool {
		if !queries[i].CreatedAt.Equal(queries[j].CreatedAt) {
			return queries[i].CreatedAt.Before(queries[j].CreatedAt)
		}
		return queries[i].ID < queries[j].ID
	})
}

func sortDomains(domains []*models.Domain) {
	sort.Slice(domains, func(i, j int) bool {
		if !domains[i].CreatedAt.Equal(domains[j].CreatedAt) {
			return domains[i].CreatedAt.Before(domains[j].CreatedAt)
		}
		return domains[i].ID < domains[j].ID
	})
}
