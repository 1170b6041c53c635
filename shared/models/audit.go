package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditLog is a security or tenant-administration event kept in Postgres
type AuditLog struct {
	ID         uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	CompanyID  string    `json:"company_id" gorm:"type:varchar(24);index"`
	ActorID    string    `json:"actor_id" gorm:"type:varchar(24);index"`
	Action     string    `json:"action" gorm:"type:varchar(64);not null;index"`
	TargetType string    `json:"target_type" gorm:"type:varchar(32)"`
	TargetID   string    `json:"target_id" gorm:"type:varchar(64)"`
	Metadata   string    `json:"metadata" gorm:"type:jsonb;default:'{}'"`
	IP         string    `json:"ip" gorm:"type:varchar(64)"`
	CreatedAt  time.Time `json:"created_at"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

// FailedEvent is a realtime event that could not be relayed and waits for retry
type FailedEvent struct {
	ID           uuid.UUID  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	EventID      string     `json:"event_id" gorm:"not null;index"`
	EventType    string     `json:"event_type" gorm:"not null"`
	Payload      string     `json:"payload" gorm:"type:jsonb;not null"`
	ErrorMessage string     `json:"error_message" gorm:"not null"`
	RetryCount   int        `json:"retry_count" gorm:"default:0"`
	Status       string     `json:"status" gorm:"default:'pending';index"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty" gorm:"index"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ResolvedAt   *time.Time `json:"resolved_at,omitempty"`
}

func (FailedEvent) TableName() string {
	return "failed_events"
}

const (
	FailedEventPending  = "pending"
	FailedEventResolved = "resolved"
	FailedEventDead     = "dead"
)
