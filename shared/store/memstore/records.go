package memstore

import (
	"context"
	"reflect"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
)

type records[T any, PT interface {
	*T
	models.Record
}] struct {
	mu   sync.RWMutex
	byID map[primitive.ObjectID]T
}

func newRecords[T any, PT interface {
	*T
	models.Record
}]() *records[T, PT] {
	return &records[T, PT]{byID: map[primitive.ObjectID]T{}}
}

func (r *records[T, PT]) Create(_ context.Context, rec *T) error {
	p := PT(rec)
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.RecordID().IsZero() {
		p.SetRecordID(primitive.NewObjectID())
	}
	p.Touch(time.Now())
	r.byID[p.RecordID()] = *rec
	return nil
}

func (r *records[T, PT]) live(companyID, id primitive.ObjectID) (T, bool) {
	rec, ok := r.byID[id]
	if !ok {
		return rec, false
	}
	p := PT(&rec)
	return rec, p.OwnerID() == companyID && !p.Deleted()
}

func (r *records[T, PT]) Get(_ context.Context, companyID, id primitive.ObjectID) (*T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.live(companyID, id)
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (r *records[T, PT]) List(_ context.Context, companyID primitive.ObjectID, match bson.M) ([]T, error) {
	want := bson.M{}
	if len(match) > 0 {
		var err error
		if want, err = normalize(match); err != nil {
			return nil, err
		}
	}

	r.mu.RLock()
	out := []T{}
	for id := range r.byID {
		rec, ok := r.live(companyID, id)
		if !ok {
			continue
		}
		doc, err := normalize(&rec)
		if err != nil {
			r.mu.RUnlock()
			return nil, err
		}
		if matches(doc, want) {
			out = append(out, rec)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return createdAt(&out[i]).After(createdAt(&out[j]))
	})
	return out, nil
}

func createdAt(v any) time.Time {
	doc, err := normalize(v)
	if err != nil {
		return time.Time{}
	}
	if dt, ok := doc["createdAt"].(primitive.DateTime); ok {
		return dt.Time()
	}
	return time.Time{}
}

func (r *records[T, PT]) Update(_ context.Context, rec *T) error {
	p := PT(rec)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.live(p.OwnerID(), p.RecordID()); !ok {
		return store.ErrNotFound
	}
	p.Touch(time.Now())
	r.byID[p.RecordID()] = *rec
	return nil
}

func (r *records[T, PT]) SoftDelete(_ context.Context, companyID, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.live(companyID, id)
	if !ok {
		return store.ErrNotFound
	}
	PT(&rec).MarkDeleted(time.Now())
	r.byID[id] = rec
	return nil
}

// normalize round-trips v through bson so typed values (string enums,
// times) compare the way the database would see them
func normalize(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func matches(doc, want bson.M) bool {
	for k, v := range want {
		got, ok := doc[k]
		if !ok {
			if v == nil {
				continue
			}
			return false
		}
		if !reflect.DeepEqual(got, v) {
			return false
		}
	}
	return true
}
