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

type conversationRepo struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Conversation
}

func (r *conversationRepo) Create(_ context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if conv.ID.IsZero() {
		conv.ID = primitive.NewObjectID()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now()
	}
	r.byID[conv.ID] = *conv
	return nil
}

func (r *conversationRepo) GetByID(_ context.Context, companyID, id primitive.ObjectID) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	if !ok || c.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	return &c, nil
}

func (r *conversationRepo) FindByParticipants(_ context.Context, companyID, userID, agentID primitive.ObjectID) (*models.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, c := range r.byID {
		if c.CompanyID == companyID && c.UserID == userID && c.AgentID == agentID {
			return &c, nil
		}
	}
	return nil, store.ErrNotFound
}

func lastActivity(c models.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (r *conversationRepo) ListForParticipant(_ context.Context, companyID, id primitive.ObjectID) ([]models.Conversation, error) {
	r.mu.RLock()
	out := []models.Conversation{}
	for _, c := range r.byID {
		if c.CompanyID == companyID && c.HasParticipant(id) {
			out = append(out, c)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i]).After(lastActivity(out[j])) })
	return out, nil
}

func (r *conversationRepo) Update(_ context.Context, conv *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.byID[conv.ID]
	if !ok || existing.CompanyID != conv.CompanyID {
		return store.ErrNotFound
	}
	r.byID[conv.ID] = *conv
	return nil
}

type messageRepo struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Message
}

// cloneMessage detaches the receipt slices so callers cannot mutate stored state
func cloneMessage(m models.Message) models.Message {
	m.ReadBy = append([]models.ReadReceipt{}, m.ReadBy...)
	m.DeletedFor = append([]primitive.ObjectID{}, m.DeletedFor...)
	return m
}

func (r *messageRepo) Create(_ context.Context, msg *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	if msg.ReadBy == nil {
		msg.ReadBy = []models.ReadReceipt{}
	}
	if msg.DeletedFor == nil {
		msg.DeletedFor = []primitive.ObjectID{}
	}
	r.byID[msg.ID] = cloneMessage(*msg)
	return nil
}

func (r *messageRepo) GetByID(_ context.Context, companyID, id primitive.ObjectID) (*models.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.byID[id]
	if !ok || m.CompanyID != companyID {
		return nil, store.ErrNotFound
	}
	m = cloneMessage(m)
	return &m, nil
}

func (r *messageRepo) ListByConversation(_ context.Context, companyID, conversationID, viewer primitive.ObjectID) ([]models.Message, error) {
	r.mu.RLock()
	out := []models.Message{}
	for _, m := range r.byID {
		if m.CompanyID != companyID || m.ConversationID != conversationID || m.DeletedForUser(viewer) {
			continue
		}
		out = append(out, cloneMessage(m))
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *messageRepo) MarkRead(_ context.Context, companyID, id, userID primitive.ObjectID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.CompanyID != companyID {
		return store.ErrNotFound
	}
	if m.ReadByUser(userID) {
		return nil
	}
	m = cloneMessage(m)
	m.ReadBy = append(m.ReadBy, models.ReadReceipt{UserID: userID, ReadAt: at})
	r.byID[id] = m
	return nil
}

func (r *messageRepo) DeleteFor(_ context.Context, companyID, id, userID primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.byID[id]
	if !ok || m.CompanyID != companyID {
		return store.ErrNotFound
	}
	if m.DeletedForUser(userID) {
		return nil
	}
	m = cloneMessage(m)
	m.DeletedFor = append(m.DeletedFor, userID)
	r.byID[id] = m
	return nil
}

type partnershipRepo struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]models.Partnership
}

func (r *partnershipRepo) Create(_ context.Context, p *models.Partnership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.byID {
		if existing.RequestingCompanyID == p.RequestingCompanyID && existing.RequestedCompanyID == p.RequestedCompanyID {
			return store.ErrDuplicate
		}
	}
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
		p.UpdatedAt = p.CreatedAt
	}
	r.byID[p.ID] = *p
	return nil
}

func (r *partnershipRepo) GetByID(_ context.Context, id primitive.ObjectID) (*models.Partnership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (r *partnershipRepo) ListForCompany(_ context.Context, companyID primitive.ObjectID, status models.PartnershipStatus) ([]models.Partnership, error) {
	r.mu.RLock()
	out := []models.Partnership{}
	for _, p := range r.byID {
		if p.Involves(companyID) && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *partnershipRepo) Update(_ context.Context, p *models.Partnership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; !ok {
		return store.ErrNotFound
	}
	r.byID[p.ID] = *p
	return nil
}

func (r *partnershipRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}
