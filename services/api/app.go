package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/config"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/events"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/mailer"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/sequence"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

const (
	verificationTTL = 10 * time.Minute
	resetTTL        = time.Hour
	challengeTTL    = 5 * time.Minute

	// wrong verification codes allowed per address before a new code is required
	maxVerifyAttempts = 5
)

// deps are the collaborators main wires up. Optional ones may be nil.
type deps struct {
	Config    *config.Config
	Store     *store.Store
	KV        utils.KV
	Hub       *realtime.Hub
	Publisher events.Publisher
	Mailer    mailer.Mailer
	Audit     audit.Recorder
	Retry     *events.RetryWorker
	Allocator *sequence.Allocator
	Now       func() time.Time
}

// app holds everything the handlers need
type app struct {
	cfg       *config.Config
	store     *store.Store
	kv        utils.KV
	tokens    *utils.TokenIssuer
	auth      *middleware.AuthMiddleware
	tenants   *middleware.TenantResolver
	features  *middleware.FeatureGate
	allocator *sequence.Allocator
	hub       *realtime.Hub
	events    events.Publisher
	mail      *mailer.Dispatcher
	audit     audit.Recorder
	retry     *events.RetryWorker
	now       func() time.Time
}

func newApp(d deps) *app {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	kv := d.KV
	if kv == nil {
		kv = utils.NewMemoryKV(now)
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = events.NewHubPublisher(d.Hub)
	}
	m := d.Mailer
	if m == nil {
		m = mailer.LogMailer{}
	}
	rec := d.Audit
	if rec == nil {
		rec = audit.LogRecorder{}
	}
	allocator := d.Allocator
	if allocator == nil {
		allocator = sequence.NewAllocator(d.Store.Counters)
	}

	tokens := utils.NewTokenIssuer(d.Config.JWTSecret, d.Config.JWTExpiration, now)
	return &app{
		cfg:       d.Config,
		store:     d.Store,
		kv:        kv,
		tokens:    tokens,
		auth:      middleware.NewAuthMiddleware(d.Store.Users, d.Store.Companies, tokens, kv),
		tenants:   middleware.NewTenantResolver(d.Store.Companies, d.Config.BaseDomain),
		features:  middleware.NewFeatureGate(d.Store.Tickets, d.Store.Users, now),
		allocator: allocator,
		hub:       d.Hub,
		events:    publisher,
		mail:      mailer.NewDispatcher(m),
		audit:     rec,
		retry:     d.Retry,
		now:       now,
	}
}

// bindJSON binds the request body and answers 400 on failure
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		utils.BadRequestResponse(c, "Invalid request format", err.Error())
		return false
	}
	return true
}

// paramID parses an ObjectID path parameter and answers 400 when it is malformed
func paramID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid id", name)
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseOptionalID parses an id from a request body. An empty string is nil.
func parseOptionalID(hex string) (*primitive.ObjectID, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// storeError maps repository errors onto responses
func storeError(c *gin.Context, err error, notFound, failed string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		utils.NotFoundResponse(c, notFound)
	case errors.Is(err, store.ErrDuplicate):
		utils.ConflictResponse(c, "Record already exists")
	default:
		utils.InternalError(c, failed, err)
	}
}

// publish sends a realtime event. Failures are logged only.
func (a *app) publish(c *gin.Context, eventType, companyID, message string, payload interface{}) {
	ev, err := events.New(eventType, companyID, message, payload)
	if err == nil {
		err = a.events.Publish(c.Request.Context(), ev)
	}
	if err != nil {
		logrus.WithError(err).WithField("event_type", eventType).Warn("Failed to publish event")
	}
}

// record writes an audit entry for the current request
func (a *app) record(c *gin.Context, action, targetType, targetID string, metadata map[string]interface{}) {
	entry := audit.Entry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		IP:         c.ClientIP(),
		Metadata:   metadata,
	}
	if user := middleware.CurrentUser(c); user != nil {
		entry.ActorID = user.ID.Hex()
		entry.CompanyID = user.CompanyID.Hex()
	}
	if company := middleware.CurrentCompany(c); company != nil {
		entry.CompanyID = company.ID.Hex()
	}
	audit.Best(c.Request.Context(), a.audit, entry)
}

// reloadUser fetches the caller's full record, including its password hash,
// since the copy attached by the auth middleware has it cleared
func (a *app) reloadUser(c *gin.Context) (*models.User, bool) {
	current := middleware.CurrentUser(c)
	user, err := a.store.Users.GetByID(c.Request.Context(), current.ID)
	if err != nil {
		storeError(c, err, "User not found", "Failed to load user")
		return nil, false
	}
	user.Company = current.Company
	return user, true
}

// issueToken signs a JWT for user
func (a *app) issueToken(c *gin.Context, user *models.User) (string, bool) {
	token, err := a.tokens.Issue(user.ID.Hex(), user.CompanyID.Hex(), string(user.Role))
	if err != nil {
		utils.InternalError(c, "Failed to issue token", err)
		return "", false
	}
	return token, true
}

// companyOf returns the company the request runs in; handlers behind
// RequireCompany can rely on it being set
func companyOf(c *gin.Context) *models.Company {
	return middleware.CurrentCompany(c)
}

// healthResponse is the body of GET /health
type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Store   string `json:"store"`
	Clients int    `json:"clients"`
}

func handleHealth(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, healthResponse{
			Status:  "healthy",
			Service: "helpdesk-api",
			Store:   a.cfg.StoreDriver,
			Clients: a.hub.ClientCount(),
		})
	}
}

// handleRetryStats reports the event outbox (admin only)
func handleRetryStats(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.retry == nil {
			utils.ServiceUnavailableResponse(c, "Event outbox is not configured")
			return
		}
		stats, err := a.retry.Stats(c.Request.Context())
		if err != nil {
			utils.InternalError(c, "Failed to load retry stats", err)
			return
		}
		utils.OKResponse(c, "Retry stats retrieved successfully", stats)
	}
}
