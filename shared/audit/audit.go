// Package audit records security and administration events
package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
)

// Actions written to the trail
const (
	ActionRegister        = "user.register"
	ActionLogin           = "user.login"
	ActionLoginFailed     = "user.login_failed"
	ActionLogout          = "user.logout"
	ActionPasswordChanged = "user.password_changed"
	ActionPasswordReset   = "user.password_reset"
	ActionTwoFactorOn     = "user.2fa_enabled"
	ActionTwoFactorOff    = "user.2fa_disabled"
	ActionUserCreated     = "user.created"
	ActionUserDisabled    = "user.disabled"
	ActionCompanyCreated  = "company.created"
	ActionCompanySuspend  = "company.suspended"
	ActionCompanyActivate = "company.activated"
	ActionCompanyPlan     = "company.plan_changed"
	ActionTicketDeleted   = "ticket.deleted"
	ActionPartnership     = "partnership.updated"
)

// Entry is one audited action
type Entry struct {
	CompanyID  string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	IP         string
	Metadata   map[string]interface{}
}

// Recorder persists entries
type Recorder interface {
	Record(ctx context.Context, e Entry) error
}

// GormRecorder writes to the audit_logs table
type GormRecorder struct {
	db *gorm.DB
}

func NewGormRecorder(db *gorm.DB) *GormRecorder {
	return &GormRecorder{db: db}
}

func (r *GormRecorder) Record(ctx context.Context, e Entry) error {
	row, err := toLog(e)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to write audit log %s: %w", e.Action, err)
	}
	return nil
}

func toLog(e Entry) (models.AuditLog, error) {
	metadata := "{}"
	if len(e.Metadata) > 0 {
		raw, err := json.Marshal(e.Metadata)
		if err != nil {
			return models.AuditLog{}, fmt.Errorf("failed to marshal audit metadata: %w", err)
		}
		metadata = string(raw)
	}
	return models.AuditLog{
		CompanyID:  e.CompanyID,
		ActorID:    e.ActorID,
		Action:     e.Action,
		TargetType: e.TargetType,
		TargetID:   e.TargetID,
		Metadata:   metadata,
		IP:         e.IP,
	}, nil
}

// LogRecorder writes entries to the application log when Postgres is not configured
type LogRecorder struct{}

func (LogRecorder) Record(_ context.Context, e Entry) error {
	fields := logrus.Fields{
		"audit":       e.Action,
		"company_id":  e.CompanyID,
		"actor_id":    e.ActorID,
		"target_type": e.TargetType,
		"target_id":   e.TargetID,
		"ip":          e.IP,
	}
	for k, v := range e.Metadata {
		fields["meta_"+k] = v
	}
	logrus.WithFields(fields).Info("Audit")
	return nil
}

// Best records e and only logs a failure, so auditing never fails a request
func Best(ctx context.Context, r Recorder, e Entry) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, e); err != nil {
		logrus.WithError(err).WithField("audit", e.Action).Warn("Failed to record audit entry")
	}
}
