package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

type ticketRepo struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Ticket
}

func (r *ticketRepo) Create(_ context.Context, ticket *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.byID {
		if t.TicketID == ticket.TicketID {
			return store.ErrDuplicate
		}
	}
	if ticket.ID.IsZero() {
		ticket.ID = primitive.NewObjectID()
	}
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now()
		ticket.UpdatedAt = ticket.CreatedAt
	}
	r.byID[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, companyID, id primitive.ObjectID) (*models.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok || t.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &t, nil
}

func ticketMatches(t models.Ticket, f store.TicketFilter) bool {
	switch {
	case t.CompanyID != f.CompanyID:
		return false
	case f.Status != "" && t.Status != f.Status:
		return false
	case f.Priority != "" && t.Priority != f.Priority:
		return false
	case f.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *f.AssignedTo):
		return false
	case f.CreatedBy != nil && t.CreatedBy != *f.CreatedBy:
		return false
	case f.CreatedAfter != nil && t.CreatedAt.Before(*f.CreatedAfter):
		return false
	}
	return true
}

func (r *ticketRepo) List(_ context.Context, f store.TicketFilter) ([]models.Ticket, error) {
	r.mu.RLock()
	out := []models.Ticket{}
	for _, t := range r.byID {
		if ticketMatches(t, f) {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, f.Limit, f.Skip), nil
}

func (r *ticketRepo) Count(_ context.Context, f store.TicketFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var n int64
	for _, t := range r.byID {
		if ticketMatches(t, f) {
			n++
		}
	}
	return n, nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *models.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[ticket.ID]
	if !ok || existing.CompanyID != ticket.CompanyID {
		return store.ErrNotFound
	}
	if ticket.UpdatedAt.IsZero() {
		ticket.UpdatedAt = time.Now()
	}
	r.byID[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) Escalate(_ context.Context, companyID, id primitive.ObjectID, at time.Time) (*models.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.byID[id]
	if !ok || ticket.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	if err := ticket.Escalate(at); err != nil {
		return nil, err
	}
	r.byID[id] = ticket
	return &ticket, nil
}

func (r *ticketRepo) Delete(_ context.Context, companyID, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok || t.CompanyID != companyID {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

type commentRepo struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Comment
}

func (r *commentRepo) Create(_ context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if comment.ID.IsZero() {
		comment.ID = primitive.NewObjectID()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now()
		comment.UpdatedAt = comment.CreatedAt
	}
	r.byID[comment.ID] = *comment
	return nil
}

func (r *commentRepo) GetByID(_ context.Context, companyID, id primitive.ObjectID) (*models.Comment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok || c.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r *commentRepo) ListByTicket(_ context.Context, companyID, ticketID primitive.ObjectID, includeInternal bool) ([]models.Comment, error) {
	r.mu.RLock()
	out := []models.Comment{}
	for _, c := range r.byID {
		if c.CompanyID != companyID || c.TicketID != ticketID {
			continue
		}
		if c.IsInternal && !includeInternal {
			continue
		}
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *commentRepo) Update(_ context.Context, comment *models.Comment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[comment.ID]
	if !ok || existing.CompanyID != comment.CompanyID {
		return store.ErrNotFound
	}
	comment.UpdatedAt = time.Now()
	r.byID[comment.ID] = *comment
	return nil
}

func (r *commentRepo) Delete(_ context.Context, companyID, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byID[id]
	if !ok || c.CompanyID != companyID {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

func (r *commentRepo) DeleteByTicket(_ context.Context, companyID, ticketID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.byID {
		if c.CompanyID == companyID && c.TicketID == ticketID {
			delete(r.byID, id)
		}
	}
	return nil
}
