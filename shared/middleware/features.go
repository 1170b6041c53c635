package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

const planLimitMessage = "Feature not available on current plan"

// FeatureGate enforces plan flags and usage ceilings of the current company
type FeatureGate struct {
	tickets store.Tickets
	users   store.Users
	now     func() time.Time
}

// NewFeatureGate creates a gate. now may be nil.
func NewFeatureGate(tickets store.Tickets, users store.Users, now func() time.Time) *FeatureGate {
	if now == nil {
		now = time.Now
	}
	return &FeatureGate{tickets: tickets, users: users, now: now}
}

// RequireFeature rejects with 402 unless the company plan enables flag
func (fg *FeatureGate) RequireFeature(flag models.Feature) gin.HandlerFunc {
	return func(c *gin.Context) {
		company := CurrentCompany(c)
		if company == nil {
			utils.AbortWithError(c, http.StatusBadRequest, "Company context required")
			return
		}
		if !company.Features.Enabled(flag) {
			utils.AbortWithError(c, http.StatusPaymentRequired, planLimitMessage, string(flag))
			return
		}
		c.Next()
	}
}

// MonthStart returns midnight UTC of the first day of t's month
func MonthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// RequireTicketCapacity rejects with 402 once the company has created its
// monthly ticket allowance. A zero allowance is unlimited.
func (fg *FeatureGate) RequireTicketCapacity() gin.HandlerFunc {
	return func(c *gin.Context) {
		company := CurrentCompany(c)
		if company == nil {
			utils.AbortWithError(c, http.StatusBadRequest, "Company context required")
			return
		}
		limit := company.Features.TicketVolume
		if limit <= 0 {
			c.Next()
			return
		}

		since := MonthStart(fg.now())
		used, err := fg.tickets.Count(c.Request.Context(), store.TicketFilter{
			CompanyID:    company.ID,
			CreatedAfter: &since,
		})
		if err != nil {
			utils.InternalError(c, "Failed to check ticket usage", err)
			c.Abort()
			return
		}
		if used >= int64(limit) {
			utils.AbortWithError(c, http.StatusPaymentRequired, planLimitMessage, "ticketVolume")
			return
		}
		c.Next()
	}
}

// AgentSeatsAvailable reports whether company can take one more active staff
// member. Callers decide when a seat is needed, since that depends on the role
// being granted.
func (fg *FeatureGate) AgentSeatsAvailable(ctx context.Context, company *models.Company) (bool, error) {
	limit := company.Features.MaxAgents
	if limit <= 0 {
		return true, nil
	}
	used, err := fg.users.Count(ctx, store.UserFilter{
		CompanyID:  &company.ID,
		Roles:      []models.Role{models.RoleCompanyManager, models.RoleSupportAgent},
		ActiveOnly: true,
	})
	if err != nil {
		return false, err
	}
	return used < int64(limit), nil
}
