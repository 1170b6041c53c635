// Package memstore is an in-process implementation of the store
// interfaces. It backs STORE_DRIVER=memory and the handler tests.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

// New returns a Store whose repositories keep everything in memory
func New() *store.Store {
	return &store.Store{
		Users:           &userRepo{byID: map[primitive.ObjectID]models.User{}},
		Companies:       &companyRepo{byID: map[primitive.ObjectID]models.Company{}},
		Tickets:         &ticketRepo{byID: map[primitive.ObjectID]models.Ticket{}},
		Comments:        &commentRepo{byID: map[primitive.ObjectID]models.Comment{}},
		Conversations:   &conversationRepo{byID: map[primitive.ObjectID]models.Conversation{}},
		Messages:        &messageRepo{byID: map[primitive.ObjectID]models.Message{}},
		Partnerships:    &partnershipRepo{byID: map[primitive.ObjectID]models.Partnership{}},
		Counters:        &Counters{seq: map[string]int64{}},
		ClientCompanies: newRecords[models.ClientCompany](),
		Contacts:        newRecords[models.Contact](),
		Projects:        newRecords[models.Project](),
		TimeEntries:     newRecords[models.TimeEntry](),
		Close:           func(context.Context) error { return nil },
	}
}

type userRepo struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.User
}

func (r *userRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byID {
		if u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
		user.UpdatedAt = user.CreatedAt
	}
	r.byID[user.ID] = stripUser(*user)
	return nil
}

func stripUser(u models.User) models.User {
	u.Company = nil
	return u
}

func (r *userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) find(match func(models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.byID {
		if match(u) {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = models.NormalizeEmail(email)
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *userRepo) GetByResetToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, store.ErrNotFound
	}
	return r.find(func(u models.User) bool { return u.PasswordResetToken == token })
}

func userMatches(u models.User, f store.UserFilter) bool {
	if f.CompanyID != nil && u.CompanyID != *f.CompanyID {
		return false
	}
	if f.ActiveOnly && !u.IsActive {
		return false
	}
	if len(f.Roles) > 0 {
		for _, role := range f.Roles {
			if u.Role == role {
				return true
			}
		}
		return false
	}
	return true
}

func (r *userRepo) List(_ context.Context, f store.UserFilter) ([]models.User, error) {
	r.mu.RLock()
	out := []models.User{}
	for _, u := range r.byID {
		if userMatches(u, f) {
			u.Password = ""
			u.TwoFactorSecret = ""
			out = append(out, u)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Skip), nil
}

func (r *userRepo) Count(_ context.Context, f store.UserFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, u := range r.byID {
		if userMatches(u, f) {
			n++
		}
	}
	return n, nil
}

func (r *userRepo) Update(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[user.ID]; !ok {
		return store.ErrNotFound
	}
	for id, u := range r.byID {
		if id != user.ID && u.Email == user.Email {
			return store.ErrDuplicate
		}
	}
	user.UpdatedAt = time.Now()
	r.byID[user.ID] = stripUser(*user)
	return nil
}

type companyRepo struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Company
}

func (r *companyRepo) Create(_ context.Context, company *models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	company.Subdomain = strings.ToLower(company.Subdomain)
	for _, c := range r.byID {
		if c.Subdomain == company.Subdomain {
			return store.ErrDuplicate
		}
	}
	if company.ID.IsZero() {
		company.ID = primitive.NewObjectID()
	}
	if company.CreatedAt.IsZero() {
		company.CreatedAt = time.Now()
		company.UpdatedAt = company.CreatedAt
	}
	r.byID[company.ID] = *company
	return nil
}

func (r *companyRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r *companyRepo) GetBySubdomain(_ context.Context, subdomain string) (*models.Company, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	subdomain = strings.ToLower(subdomain)
	for _, c := range r.byID {
		if c.Subdomain == subdomain {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *companyRepo) List(_ context.Context) ([]models.Company, error) {
	r.mu.RLock()
	out := make([]models.Company, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *companyRepo) Update(_ context.Context, company *models.Company) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[company.ID]; !ok {
		return store.ErrNotFound
	}
	for id, c := range r.byID {
		if id != company.ID && c.Subdomain == company.Subdomain {
			return store.ErrDuplicate
		}
	}
	company.UpdatedAt = time.Now()
	r.byID[company.ID] = *company
	return nil
}

func (r *companyRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// Counters is the in-memory sequence source. Fail, when set, is consulted
// before every increment so tests can inject outages.
type Counters struct {
	mu   sync.Mutex
	seq  map[string]int64
	Fail func(name string) error
}

func (c *Counters) Next(ctx context.Context, name string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail != nil {
		if err := c.Fail(name); err != nil {
			return 0, err
		}
	}
	c.seq[name]++
	return c.seq[name], nil
}

func page[T any](items []T, limit, skip int64) []T {
	if skip > 0 {
		if skip >= int64(len(items)) {
			return []T{}
		}
		items = items[skip:]
	}
	if limit > 0 && limit < int64(len(items)) {
		items = items[:limit]
	}
	return items
}
