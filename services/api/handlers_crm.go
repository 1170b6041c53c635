package main

import (
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// recordRoutes describes one soft-deleted CRM collection
type recordRoutes[T any] struct {
	name  string
	read  string
	write string
	// apply copies the client-writable fields of src onto dst and validates
	// references to other records of the company
	apply func(a *app, c *gin.Context, dst, src *T) error
	// match turns query parameters into list conditions
	match func(c *gin.Context) (bson.M, error)
}

// registerRecordRoutes mounts list, create, get, update and soft delete for
// a CRM collection on g
func registerRecordRoutes[T any, PT interface {
	*T
	models.Record
}](a *app, g *gin.RouterGroup, repo store.Records[T], r recordRoutes[T]) {
	perm := middleware.RequirePermission
	notFound := r.name + " not found"

	get := func(c *gin.Context) (*T, bool) {
		id, ok := paramID(c, "id")
		if !ok {
			return nil, false
		}
		rec, err := repo.Get(c.Request.Context(), companyOf(c).ID, id)
		if err != nil {
			storeError(c, err, notFound, "Failed to fetch "+r.name)
			return nil, false
		}
		return rec, true
	}

	// bind decodes the body into a scratch record and applies it to dst
	bind := func(c *gin.Context, dst *T) bool {
		var src T
		if !bindJSON(c, &src) {
			return false
		}
		if err := r.apply(a, c, dst, &src); err != nil {
			utils.BadRequestResponse(c, "Validation failed", err.Error())
			return false
		}
		return true
	}

	g.GET("", perm(r.read), func(c *gin.Context) {
		var match bson.M
		if r.match != nil {
			var err error
			if match, err = r.match(c); err != nil {
				utils.BadRequestResponse(c, "Invalid filter", err.Error())
				return
			}
		}
		list, err := repo.List(c.Request.Context(), companyOf(c).ID, match)
		if err != nil {
			utils.InternalError(c, "Failed to fetch "+r.name, err)
			return
		}
		utils.OKResponse(c, r.name+" list retrieved successfully", list)
	})

	g.POST("", perm(r.write), func(c *gin.Context) {
		rec := new(T)
		if !bind(c, rec) {
			return
		}
		p := PT(rec)
		p.SetOwner(companyOf(c).ID)
		p.Touch(a.now())
		if err := repo.Create(c.Request.Context(), rec); err != nil {
			utils.InternalError(c, "Failed to create "+r.name, err)
			return
		}
		utils.CreatedResponse(c, r.name+" created successfully", rec)
	})

	g.GET("/:id", perm(r.read), func(c *gin.Context) {
		rec, ok := get(c)
		if !ok {
			return
		}
		utils.OKResponse(c, r.name+" retrieved successfully", rec)
	})

	g.PUT("/:id", perm(r.write), func(c *gin.Context) {
		rec, ok := get(c)
		if !ok {
			return
		}
		if !bind(c, rec) {
			return
		}
		PT(rec).Touch(a.now())
		if err := repo.Update(c.Request.Context(), rec); err != nil {
			storeError(c, err, notFound, "Failed to update "+r.name)
			return
		}
		utils.OKResponse(c, r.name+" updated successfully", rec)
	})

	g.DELETE("/:id", perm(r.write), func(c *gin.Context) {
		id, ok := paramID(c, "id")
		if !ok {
			return
		}
		if err := repo.SoftDelete(c.Request.Context(), companyOf(c).ID, id); err != nil {
			storeError(c, err, notFound, "Failed to delete "+r.name)
			return
		}
		utils.OKResponse(c, r.name+" deleted successfully", nil)
	})
}

// ownClientCompany checks that id, when set, names a live client company of the tenant
func (a *app) ownClientCompany(c *gin.Context, id *primitive.ObjectID) error {
	if id == nil {
		return nil
	}
	_, err := a.store.ClientCompanies.Get(c.Request.Context(), companyOf(c).ID, *id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("client company %s not found", id.Hex())
	}
	return err
}

func applyClientCompany(_ *app, _ *gin.Context, dst, src *models.ClientCompany) error {
	dst.Name = src.Name
	dst.Website = src.Website
	dst.Industry = src.Industry
	dst.Phone = src.Phone
	dst.Address = src.Address
	dst.Notes = src.Notes
	return nil
}

func applyContact(a *app, c *gin.Context, dst, src *models.Contact) error {
	if err := a.ownClientCompany(c, src.ClientCompanyID); err != nil {
		return err
	}
	dst.Name = src.Name
	dst.Email = models.NormalizeEmail(src.Email)
	dst.Phone = src.Phone
	dst.Position = src.Position
	dst.ClientCompanyID = src.ClientCompanyID
	return nil
}

func applyProject(a *app, c *gin.Context, dst, src *models.Project) error {
	switch src.Status {
	case "":
		src.Status = models.ProjectActive
	case models.ProjectActive, models.ProjectOnHold, models.ProjectCompleted:
	default:
		return fmt.Errorf("unknown project status %q", src.Status)
	}
	if err := a.ownClientCompany(c, src.ClientCompanyID); err != nil {
		return err
	}
	if src.ManagerID != nil {
		manager, err := a.store.Users.GetByID(c.Request.Context(), *src.ManagerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err != nil || manager.CompanyID != companyOf(c).ID || !manager.Role.IsStaff() {
			return fmt.Errorf("manager %s not found", src.ManagerID.Hex())
		}
	}
	dst.Name = src.Name
	dst.Description = src.Description
	dst.Status = src.Status
	dst.ClientCompanyID = src.ClientCompanyID
	dst.ManagerID = src.ManagerID
	return nil
}

func contactMatch(c *gin.Context) (bson.M, error) {
	hex := c.Query("clientCompanyId")
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return nil, fmt.Errorf("invalid clientCompanyId")
	}
	return bson.M{"clientCompanyId": id}, nil
}

func projectMatch(c *gin.Context) (bson.M, error) {
	status := models.ProjectStatus(c.Query("status"))
	switch status {
	case "":
		return nil, nil
	case models.ProjectActive, models.ProjectOnHold, models.ProjectCompleted:
		return bson.M{"status": string(status)}, nil
	}
	return nil, fmt.Errorf("unknown project status %q", status)
}

// StartTimeEntryRequest represents starting a timer on a project
type StartTimeEntryRequest struct {
	Description string `json:"description" binding:"max=1000"`
	TicketID    string `json:"ticketId"`
}

// loadProject fetches the project named by the :id parameter
func (a *app) loadProject(c *gin.Context) (*models.Project, bool) {
	id, ok := paramID(c, "id")
	if !ok {
		return nil, false
	}
	project, err := a.store.Projects.Get(c.Request.Context(), companyOf(c).ID, id)
	if err != nil {
		storeError(c, err, "Project not found", "Failed to fetch project")
		return nil, false
	}
	return project, true
}

func handleListTimeEntries(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, ok := a.loadProject(c)
		if !ok {
			return
		}
		match := bson.M{"projectId": project.ID}
		if userHex := c.Query("userId"); userHex != "" {
			userID, err := primitive.ObjectIDFromHex(userHex)
			if err != nil {
				utils.BadRequestResponse(c, "Invalid id", "userId")
				return
			}
			match["userId"] = userID
		}
		entries, err := a.store.TimeEntries.List(c.Request.Context(), project.CompanyID, match)
		if err != nil {
			utils.InternalError(c, "Failed to fetch time entries", err)
			return
		}
		utils.OKResponse(c, "Time entries retrieved successfully", entries)
	}
}

// handleStartTimeEntry starts a timer. A user runs at most one timer per project.
func handleStartTimeEntry(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req StartTimeEntryRequest
		if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
			return
		}
		project, ok := a.loadProject(c)
		if !ok {
			return
		}
		ticketID, err := parseOptionalID(req.TicketID)
		if err != nil {
			utils.BadRequestResponse(c, "Invalid id", "ticketId")
			return
		}
		ctx := c.Request.Context()
		if ticketID != nil {
			if _, err := a.store.Tickets.GetByID(ctx, project.CompanyID, *ticketID); err != nil {
				storeError(c, err, "Ticket not found", "Failed to start time entry")
				return
			}
		}

		user := middleware.CurrentUser(c)
		running, err := a.store.TimeEntries.List(ctx, project.CompanyID, bson.M{
			"projectId": project.ID,
			"userId":    user.ID,
			"endedAt":   nil,
		})
		if err != nil {
			utils.InternalError(c, "Failed to start time entry", err)
			return
		}
		if len(running) > 0 {
			utils.ConflictResponse(c, "A time entry is already running for this project")
			return
		}

		now := a.now()
		entry := &models.TimeEntry{
			ProjectID:   project.ID,
			TicketID:    ticketID,
			UserID:      user.ID,
			Description: req.Description,
			StartedAt:   now,
		}
		entry.SetOwner(project.CompanyID)
		entry.Touch(now)
		if err := a.store.TimeEntries.Create(ctx, entry); err != nil {
			utils.InternalError(c, "Failed to start time entry", err)
			return
		}
		utils.CreatedResponse(c, "Time entry started", entry)
	}
}

// handleStopTimeEntry stops a running timer. Managers may stop anyone's.
func handleStopTimeEntry(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, ok := a.loadProject(c)
		if !ok {
			return
		}
		entryID, ok := paramID(c, "entryId")
		if !ok {
			return
		}
		ctx := c.Request.Context()
		entry, err := a.store.TimeEntries.Get(ctx, project.CompanyID, entryID)
		if err != nil {
			storeError(c, err, "Time entry not found", "Failed to stop time entry")
			return
		}
		if entry.ProjectID != project.ID {
			utils.NotFoundResponse(c, "Time entry not found")
			return
		}
		user := middleware.CurrentUser(c)
		if entry.UserID != user.ID && !permissions.HasPermission(user.Role, permissions.WriteProjects) {
			utils.ForbiddenResponse(c, "You can only stop your own time entries")
			return
		}
		if err := entry.Stop(a.now()); err != nil {
			utils.BadRequestResponse(c, "Time entry already stopped")
			return
		}
		if err := a.store.TimeEntries.Update(ctx, entry); err != nil {
			storeError(c, err, "Time entry not found", "Failed to stop time entry")
			return
		}
		utils.OKResponse(c, "Time entry stopped", entry)
	}
}
