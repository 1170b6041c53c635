package middleware

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

var (
	ErrCompanySuspended = errors.New("company account is suspended")
	ErrCompanyInactive  = errors.New("company account is inactive")
)

// reservedLabels never name a tenant
var reservedLabels = map[string]bool{"www": true, "api": true, "app": true, "admin": true}

// CompanySource is one way of finding the company a request targets.
// Lookup returns (nil, nil) when the source has nothing to say.
type CompanySource interface {
	Name() string
	Lookup(c *gin.Context) (*models.Company, error)
}

// TenantResolver tries its sources in order and takes the first match
type TenantResolver struct {
	sources []CompanySource
}

// NewTenantResolver builds the standard resolver: forwarded host, Host
// header, the user's own company, the x-company-id header, then the
// companyId cookie
func NewTenantResolver(companies store.Companies, baseDomain string) *TenantResolver {
	return NewTenantResolverWithSources(
		&HostSource{companies: companies, baseDomain: baseDomain, forwarded: true},
		&HostSource{companies: companies, baseDomain: baseDomain},
		&UserCompanySource{companies: companies},
		&HeaderSource{companies: companies, header: "x-company-id"},
		&CookieSource{companies: companies, cookie: "companyId"},
	)
}

// NewTenantResolverWithSources builds a resolver over an explicit source list
func NewTenantResolverWithSources(sources ...CompanySource) *TenantResolver {
	return &TenantResolver{sources: sources}
}

// Resolve returns the first matching company. A suspended or inactive match
// is an error rather than a reason to consult the next source.
func (tr *TenantResolver) Resolve(c *gin.Context) (*models.Company, error) {
	for _, src := range tr.sources {
		company, err := src.Lookup(c)
		if err != nil {
			return nil, err
		}
		if company == nil {
			continue
		}
		logrus.WithFields(logrus.Fields{
			"source":    src.Name(),
			"companyId": company.ID.Hex(),
		}).Debug("Company resolved")

		if company.Suspended {
			return nil, ErrCompanySuspended
		}
		if !company.Active {
			return nil, ErrCompanyInactive
		}
		return company, nil
	}
	return nil, nil
}

func (tr *TenantResolver) handle(c *gin.Context, required bool) {
	company, err := tr.Resolve(c)
	switch {
	case errors.Is(err, ErrCompanySuspended):
		utils.AbortWithError(c, http.StatusForbidden, "Company account is suspended")
		return
	case errors.Is(err, ErrCompanyInactive):
		utils.AbortWithError(c, http.StatusForbidden, "Company account is inactive")
		return
	case err != nil:
		utils.InternalError(c, "Failed to resolve company", err)
		c.Abort()
		return
	}

	if company == nil {
		if required {
			utils.AbortWithError(c, http.StatusBadRequest, "Company context required")
			return
		}
		c.Next()
		return
	}

	c.Set(KeyCompany, company)
	c.Next()
}

// ResolveCompany attaches the resolved company when there is one
func (tr *TenantResolver) ResolveCompany() gin.HandlerFunc {
	return func(c *gin.Context) { tr.handle(c, false) }
}

// RequireCompany is ResolveCompany that fails with 400 when no company is found
func (tr *TenantResolver) RequireCompany() gin.HandlerFunc {
	return func(c *gin.Context) { tr.handle(c, true) }
}

// RequireMembership rejects non-admin users acting on a company other than their own
func RequireMembership() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		company := CurrentCompany(c)
		if company == nil {
			utils.AbortWithError(c, http.StatusBadRequest, "Company context required")
			return
		}
		if user.Role != models.RoleAdmin && user.CompanyID != company.ID {
			utils.AbortWithError(c, http.StatusForbidden, "Access denied to this company")
			return
		}
		c.Next()
	}
}

// HostSource maps the first label of the request host onto a subdomain
type HostSource struct {
	companies  store.Companies
	baseDomain string
	forwarded  bool
}

func (s *HostSource) Name() string {
	if s.forwarded {
		return "forwarded-host"
	}
	return "host"
}

func (s *HostSource) Lookup(c *gin.Context) (*models.Company, error) {
	host := c.Request.Host
	if s.forwarded {
		host = c.GetHeader("X-Forwarded-Host")
	}
	label := Subdomain(host, s.baseDomain)
	if label == "" {
		return nil, nil
	}
	return found(s.companies.GetBySubdomain(c.Request.Context(), label))
}

// Subdomain extracts the tenant label from host. It returns "" for bare
// domains, IP addresses and reserved labels.
func Subdomain(host, baseDomain string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if i := strings.Index(host, ","); i >= 0 {
		host = strings.TrimSpace(host[:i])
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if host == "" || net.ParseIP(host) != nil {
		return ""
	}

	var label string
	baseDomain = strings.ToLower(baseDomain)
	if baseDomain != "" && strings.HasSuffix(host, "."+baseDomain) {
		rest := strings.TrimSuffix(host, "."+baseDomain)
		parts := strings.Split(rest, ".")
		label = parts[len(parts)-1]
	} else {
		parts := strings.Split(host, ".")
		if len(parts) < 3 {
			return ""
		}
		label = parts[0]
	}

	if reservedLabels[label] {
		return ""
	}
	return label
}

// UserCompanySource uses the authenticated user's company
type UserCompanySource struct {
	companies store.Companies
}

func (s *UserCompanySource) Name() string { return "user" }

func (s *UserCompanySource) Lookup(c *gin.Context) (*models.Company, error) {
	user := CurrentUser(c)
	if user == nil || user.CompanyID.IsZero() {
		return nil, nil
	}
	if user.Company != nil {
		return user.Company, nil
	}
	return found(s.companies.GetByID(c.Request.Context(), user.CompanyID))
}

// HeaderSource reads a company id from a request header
type HeaderSource struct {
	companies store.Companies
	header    string
}

func (s *HeaderSource) Name() string { return "header" }

func (s *HeaderSource) Lookup(c *gin.Context) (*models.Company, error) {
	return lookupHex(c, s.companies, c.GetHeader(s.header))
}

// CookieSource reads a company id from a cookie
type CookieSource struct {
	companies store.Companies
	cookie    string
}

func (s *CookieSource) Name() string { return "cookie" }

func (s *CookieSource) Lookup(c *gin.Context) (*models.Company, error) {
	value, err := c.Cookie(s.cookie)
	if err != nil {
		return nil, nil
	}
	return lookupHex(c, s.companies, value)
}

func lookupHex(c *gin.Context, companies store.Companies, hex string) (*models.Company, error) {
	if hex == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(hex))
	if err != nil {
		return nil, nil
	}
	return found(companies.GetByID(c.Request.Context(), id))
}

// found turns ErrNotFound into "no match"
func found(company *models.Company, err error) (*models.Company, error) {
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return company, err
}
