package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/permissions"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// Context keys set by the middleware chain
const (
	KeyUser        = "user"
	KeyUserCompany = "userCompany"
	KeyUserID      = "userID"
	KeyCompanyID   = "companyID"
	KeyRole        = "role"
	KeyClaims      = "claims"
	KeyCompany     = "company"
)

var (
	errMissingToken = errors.New("authorization token required")
	errUserDisabled = errors.New("user account is disabled")
	errTokenRevoked = errors.New("token has been revoked")
)

// AuthMiddleware resolves the bearer token of a request into a User
type AuthMiddleware struct {
	users     store.Users
	companies store.Companies
	tokens    *utils.TokenIssuer
	kv        utils.KV
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(users store.Users, companies store.Companies, tokens *utils.TokenIssuer, kv utils.KV) *AuthMiddleware {
	return &AuthMiddleware{users: users, companies: companies, tokens: tokens, kv: kv}
}

// RequireAuth rejects the request with 401 unless it carries a valid token
// of an existing, enabled user
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := am.authenticate(c); err != nil {
			logrus.WithFields(logrus.Fields{
				"path":  c.Request.URL.Path,
				"error": err,
			}).Debug("Authentication failed")

			msg := "Token is not valid"
			if errors.Is(err, errMissingToken) {
				msg = "No token, authorization denied"
			}
			utils.AbortWithError(c, http.StatusUnauthorized, msg)
			return
		}
		c.Next()
	}
}

// OptionalAuth attaches the user when a valid token is present and never rejects
func (am *AuthMiddleware) OptionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		_ = am.authenticate(c)
		c.Next()
	}
}

func (am *AuthMiddleware) authenticate(c *gin.Context) error {
	tokenString := extractToken(c)
	if tokenString == "" {
		return errMissingToken
	}

	claims, err := am.tokens.Parse(tokenString)
	if err != nil {
		return err
	}

	ctx := c.Request.Context()
	if revoked, err := am.kv.Exists(ctx, utils.BlacklistKey(claims.ID)); err != nil {
		return err
	} else if revoked {
		return errTokenRevoked
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		return utils.ErrInvalidToken
	}
	user, err := am.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !user.IsActive {
		return errUserDisabled
	}
	user.Password = ""

	if company, err := am.companies.GetByID(ctx, user.CompanyID); err == nil {
		user.Company = company
		c.Set(KeyUserCompany, company)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	c.Set(KeyUser, user)
	c.Set(KeyClaims, claims)
	c.Set(KeyUserID, user.ID.Hex())
	c.Set(KeyCompanyID, user.CompanyID.Hex())
	c.Set(KeyRole, string(user.Role))
	return nil
}

// RequireRole allows only the listed roles
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		utils.AbortWithError(c, http.StatusForbidden, "Insufficient permissions", string(user.Role))
	}
}

// RequirePermission allows only roles holding perm and echoes perm back on failure
func RequirePermission(perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil {
			utils.AbortWithError(c, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		if !permissions.HasPermission(user.Role, perm) {
			utils.AbortWithError(c, http.StatusForbidden, "Insufficient permissions", perm)
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user or nil
func CurrentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(KeyUser); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentClaims returns the verified token claims or nil
func CurrentClaims(c *gin.Context) *utils.Claims {
	if v, ok := c.Get(KeyClaims); ok {
		if claims, ok := v.(*utils.Claims); ok {
			return claims
		}
	}
	return nil
}

// CurrentCompany returns the company resolved for the request, falling back
// to the authenticated user's own company
func CurrentCompany(c *gin.Context) *models.Company {
	if v, ok := c.Get(KeyCompany); ok {
		if company, ok := v.(*models.Company); ok {
			return company
		}
	}
	if v, ok := c.Get(KeyUserCompany); ok {
		if company, ok := v.(*models.Company); ok {
			return company
		}
	}
	return nil
}

// extractToken extracts the JWT token from the Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return ""
}
