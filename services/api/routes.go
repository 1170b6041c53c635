package main

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/realtime"
)

var subdomainPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// validSubdomain backs the "subdomain" binding tag
func validSubdomain(fl validator.FieldLevel) bool {
	s := strings.ToLower(fl.Field().String())
	switch s {
	case "www", "api", "app", "admin":
		return false
	}
	return subdomainPattern.MatchString(s)
}

func registerValidators() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	if err := v.RegisterValidation("subdomain", validSubdomain); err != nil {
		logrus.WithError(err).Warn("Failed to register subdomain validator")
	}
}

func newRouter(a *app) *gin.Engine {
	registerValidators()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{a.cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Company-ID", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", handleHealth(a))
	router.GET("/ws", realtime.ServeWS(a.hub, []string{originHost(a.cfg.FrontendURL)}))

	api := router.Group("/api")
	requireAuth := a.auth.RequireAuth()
	perm := middleware.RequirePermission

	auth := api.Group("/auth")
	{
		auth.POST("/register", a.auth.OptionalAuth(), a.tenants.ResolveCompany(), handleRegister(a))
		auth.POST("/verify-email", handleVerifyEmail(a))
		auth.POST("/resend-verification", handleResendVerification(a))
		auth.POST("/login", handleLogin(a))
		auth.POST("/forgot-password", handleForgotPassword(a))
		auth.POST("/reset-password/:token", handleResetPassword(a))

		auth.GET("/me", requireAuth, handleMe(a))
		auth.PUT("/profile", requireAuth, handleUpdateProfile(a))
		auth.PUT("/change-password", requireAuth, handleChangePassword(a))
		auth.POST("/logout", requireAuth, handleLogout(a))
	}

	twoFactor := api.Group("/2fa")
	{
		twoFactor.POST("/verify-login", handleTwoFactorLogin(a))
		twoFactor.POST("/setup", requireAuth, handleTwoFactorSetup(a))
		twoFactor.POST("/enable", requireAuth, handleTwoFactorEnable(a))
		twoFactor.POST("/disable", requireAuth, handleTwoFactorDisable(a))
	}

	companies := api.Group("/companies", requireAuth)
	{
		companies.GET("/current", a.tenants.RequireCompany(), middleware.RequireMembership(), handleCurrentCompany(a))
		companies.GET("", middleware.RequireRole(models.RoleAdmin), handleListCompanies(a))
		companies.POST("", middleware.RequireRole(models.RoleAdmin), handleCreateCompany(a))
		companies.GET("/:id", perm(permissions.ReadCompanies), handleGetCompany(a))
		companies.PUT("/:id", perm(permissions.WriteCompanies), handleUpdateCompany(a))
		companies.PUT("/:id/suspend", middleware.RequireRole(models.RoleAdmin), handleSuspendCompany(a))
		companies.PUT("/:id/activate", middleware.RequireRole(models.RoleAdmin), handleActivateCompany(a))
		companies.PUT("/:id/plan", middleware.RequireRole(models.RoleAdmin), handleChangePlan(a))
	}

	api.GET("/admin/events/stats", requireAuth, middleware.RequireRole(models.RoleAdmin), handleRetryStats(a))

	// everything below runs inside one company
	tenant := api.Group("", requireAuth, a.tenants.RequireCompany(), middleware.RequireMembership())

	tickets := tenant.Group("/tickets")
	{
		tickets.GET("", perm(permissions.ReadTickets), handleListTickets(a))
		tickets.POST("", perm(permissions.CreateTickets), a.features.RequireTicketCapacity(), handleCreateTicket(a))
		tickets.GET("/stats", perm(permissions.ReadTickets), handleTicketStats(a))
		tickets.GET("/:id", perm(permissions.ReadTickets), handleGetTicket(a))
		tickets.PUT("/:id", perm(permissions.WriteTickets), handleUpdateTicket(a))
		tickets.DELETE("/:id", perm(permissions.DeleteTickets), handleDeleteTicket(a))
		tickets.POST("/:id/escalate", perm(permissions.EscalateTickets), handleEscalateTicket(a))
		tickets.PUT("/:id/assign", perm(permissions.AssignTickets), handleAssignTicket(a))
	}

	comments := tenant.Group("/comments")
	{
		comments.GET("/ticket/:ticketId", perm(permissions.ReadComments), handleListComments(a))
		comments.POST("", perm(permissions.WriteComments), handleCreateComment(a))
		comments.PUT("/:id", perm(permissions.WriteComments), handleUpdateComment(a))
		comments.DELETE("/:id", perm(permissions.DeleteComments), handleDeleteComment(a))
	}

	users := tenant.Group("/users")
	{
		users.GET("", perm(permissions.ReadUsers), handleListUsers(a))
		users.GET("/agents", perm(permissions.ReadChat), handleListAgents(a))
		users.POST("", perm(permissions.WriteUsers), handleCreateUser(a))
		users.GET("/:id", perm(permissions.ReadUsers), handleGetUser(a))
		users.PUT("/:id", perm(permissions.WriteUsers), handleUpdateUser(a))
		users.DELETE("/:id", perm(permissions.DeleteUsers), handleDeleteUser(a))
	}

	chat := tenant.Group("/chat", a.features.RequireFeature(models.FeatureLiveChat))
	{
		chat.GET("/conversations", perm(permissions.ReadChat), handleListConversations(a))
		chat.POST("/conversations", perm(permissions.WriteChat), handleStartConversation(a))
		chat.GET("/conversations/:id/messages", perm(permissions.ReadChat), handleListMessages(a))
		chat.POST("/conversations/:id/messages", perm(permissions.WriteChat), handleSendMessage(a))
		chat.PUT("/messages/:id/read", perm(permissions.ReadChat), handleMarkMessageRead(a))
		chat.DELETE("/messages/:id", perm(permissions.WriteChat), handleDeleteMessage(a))
	}

	partnerships := tenant.Group("/partnerships", a.features.RequireFeature(models.FeaturePartnerships))
	{
		partnerships.GET("", perm(permissions.ReadPartnerships), handleListPartnerships(a))
		partnerships.POST("", perm(permissions.WritePartnerships), handleRequestPartnership(a))
		partnerships.PUT("/:id/approve", perm(permissions.WritePartnerships), handleRespondPartnership(a, models.PartnershipApproved))
		partnerships.PUT("/:id/reject", perm(permissions.WritePartnerships), handleRespondPartnership(a, models.PartnershipRejected))
		partnerships.PUT("/:id/suspend", perm(permissions.WritePartnerships), handleSuspendPartnership(a))
		partnerships.DELETE("/:id", perm(permissions.WritePartnerships), handleDeletePartnership(a))
		partnerships.GET("/:id/agents", perm(permissions.ReadPartnerships), handlePartnerAgents(a))
		partnerships.GET("/:id/tickets", perm(permissions.ReadPartnerships), handlePartnerTickets(a))
	}

	clientCompanies := tenant.Group("/client-companies")
	registerRecordRoutes(a, clientCompanies, a.store.ClientCompanies, recordRoutes[models.ClientCompany]{
		name:  "Client company",
		read:  permissions.ReadClientCompanies,
		write: permissions.WriteClientCompanies,
		apply: applyClientCompany,
	})

	contacts := tenant.Group("/contacts")
	registerRecordRoutes(a, contacts, a.store.Contacts, recordRoutes[models.Contact]{
		name:  "Contact",
		read:  permissions.ReadContacts,
		write: permissions.WriteContacts,
		apply: applyContact,
		match: contactMatch,
	})

	projects := tenant.Group("/projects", a.features.RequireFeature(models.FeatureProjects))
	registerRecordRoutes(a, projects, a.store.Projects, recordRoutes[models.Project]{
		name:  "Project",
		read:  permissions.ReadProjects,
		write: permissions.WriteProjects,
		apply: applyProject,
		match: projectMatch,
	})
	timeEntries := projects.Group("/:id/time-entries", a.features.RequireFeature(models.FeatureTimeTracking))
	{
		timeEntries.GET("", perm(permissions.ReadProjects), handleListTimeEntries(a))
		timeEntries.POST("/start", perm(permissions.WriteTimeEntries), handleStartTimeEntry(a))
		timeEntries.PUT("/:entryId/stop", perm(permissions.WriteTimeEntries), handleStopTimeEntry(a))
	}

	return router
}

// originHost turns the frontend URL into a websocket origin pattern
func originHost(frontendURL string) string {
	host := strings.TrimPrefix(strings.TrimPrefix(frontendURL, "https://"), "http://")
	return strings.TrimSuffix(host, "/")
}
