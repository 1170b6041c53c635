package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

// Outbox keeps events that could not be relayed so they can be retried
type Outbox interface {
	Save(ctx context.Context, ev Event, cause error) error
	Due(ctx context.Context, now time.Time, limit int) ([]models.FailedEvent, error)
	Update(ctx context.Context, failed *models.FailedEvent) error
	CountByStatus(ctx context.Context, status string) (int64, error)
}

// GormOutbox stores failed events in the failed_events table
type GormOutbox struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormOutbox(db *gorm.DB) *GormOutbox {
	return &GormOutbox{db: db, now: time.Now}
}

func (o *GormOutbox) Save(ctx context.Context, ev Event, cause error) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", ev.ID, err)
	}
	next := o.now().Add(RetryDelay(1))
	failed := models.FailedEvent{
		EventID:      ev.ID,
		EventType:    ev.Type,
		Payload:      string(payload),
		ErrorMessage: cause.Error(),
		Status:       models.FailedEventPending,
		NextRetryAt:  &next,
	}
	if err := o.db.WithContext(ctx).Create(&failed).Error; err != nil {
		return fmt.Errorf("failed to store failed event %s: %w", ev.ID, err)
	}
	return nil
}

func (o *GormOutbox) Due(ctx context.Context, now time.Time, limit int) ([]models.FailedEvent, error) {
	var due []models.FailedEvent
	err := o.db.WithContext(ctx).
		Where("status = ? AND next_retry_at <= ?", models.FailedEventPending, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due events: %w", err)
	}
	return due, nil
}

func (o *GormOutbox) Update(ctx context.Context, failed *models.FailedEvent) error {
	return o.db.WithContext(ctx).Save(failed).Error
}

func (o *GormOutbox) CountByStatus(ctx context.Context, status string) (int64, error) {
	var n int64
	err := o.db.WithContext(ctx).Model(&models.FailedEvent{}).Where("status = ?", status).Count(&n).Error
	return n, err
}
