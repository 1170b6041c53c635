package main

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/mailer"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/middleware"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/store"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

// RegisterRequest represents the registration request. CompanyName and
// Subdomain are only used when no company could be resolved for the request.
type RegisterRequest struct {
	Name        string `json:"name" binding:"required,min=2,max=100"`
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=6"`
	CompanyName string `json:"companyName" binding:"omitempty,max=100"`
	Subdomain   string `json:"subdomain" binding:"omitempty,subdomain"`
}

// VerifyEmailRequest represents the email verification request
type VerifyEmailRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required,len=6,numeric"`
}

// EmailRequest carries just an address
type EmailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// LoginRequest represents the login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ResetPasswordRequest represents the password reset request
type ResetPasswordRequest struct {
	Password string `json:"password" binding:"required,min=6"`
}

// ChangePasswordRequest represents the change password request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required,min=6"`
}

// UpdateProfileRequest represents the profile update request
type UpdateProfileRequest struct {
	Name        *string             `json:"name" binding:"omitempty,min=2,max=100"`
	Preferences *models.Preferences `json:"preferences"`
}

// AuthResponse is returned whenever a token is issued
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// TwoFactorChallenge is returned by login when a second factor is needed
type TwoFactorChallenge struct {
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	ChallengeID       string `json:"challengeId"`
}

// handleRegister creates a customer of the resolved company, or a new company
// with its manager when the request carries no company context
func handleRegister(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		email := models.NormalizeEmail(req.Email)

		if _, err := a.store.Users.GetByEmail(ctx, email); err == nil {
			utils.BadRequestResponse(c, "User already exists")
			return
		} else if !errors.Is(err, store.ErrNotFound) {
			utils.InternalError(c, "Failed to check existing user", err)
			return
		}

		code, err := utils.VerificationCode()
		if err != nil {
			utils.InternalError(c, "Failed to create user", err)
			return
		}
		now := a.now()
		expires := now.Add(verificationTTL)
		user := &models.User{
			Name:                     req.Name,
			Email:                    email,
			Role:                     models.RoleCustomer,
			IsActive:                 true,
			EmailVerificationCode:    code,
			EmailVerificationExpires: &expires,
			Preferences:              models.DefaultPreferences(),
			CreatedAt:                now,
			UpdatedAt:                now,
		}
		// hashed before the company exists
		if err := user.SetPassword(req.Password); err != nil {
			utils.BadRequestResponse(c, "Invalid password", err.Error())
			return
		}

		company := companyOf(c)
		newCompany := company == nil
		if newCompany {
			if req.CompanyName == "" || req.Subdomain == "" {
				utils.BadRequestResponse(c, "Company name and subdomain are required")
				return
			}
			company = &models.Company{
				Name:      req.CompanyName,
				Subdomain: strings.ToLower(req.Subdomain),
				Email:     email,
				Active:    true,
				CreatedAt: now,
				UpdatedAt: now,
			}
			company.ApplyPlan(models.PlanFree)
			if err := a.store.Companies.Create(ctx, company); err != nil {
				if errors.Is(err, store.ErrDuplicate) {
					utils.ConflictResponse(c, "Subdomain is already taken")
					return
				}
				utils.InternalError(c, "Failed to create company", err)
				return
			}
			user.Role = models.RoleCompanyManager
		}
		user.CompanyID = company.ID

		if err := a.store.Users.Create(ctx, user); err != nil {
			if newCompany {
				a.releaseCompany(ctx, company)
			}
			if errors.Is(err, store.ErrDuplicate) {
				utils.BadRequestResponse(c, "User already exists")
				return
			}
			utils.InternalError(c, "Failed to create user", err)
			return
		}
		a.mail.Send(mailer.VerificationEmail(user.Email, user.Name, code))
		if newCompany {
			a.record(c, audit.ActionCompanyCreated, "company", company.ID.Hex(), map[string]interface{}{"subdomain": company.Subdomain})
		}
		a.record(c, audit.ActionRegister, "user", user.ID.Hex(), map[string]interface{}{"role": string(user.Role)})

		user.Company = company
		utils.CreatedResponse(c, "Registration successful. Please check your email for the verification code.", user)
	}
}

// releaseCompany drops a company created for a registration that did not
// complete, freeing its subdomain for the next attempt
func (a *app) releaseCompany(ctx context.Context, company *models.Company) {
	if err := a.store.Companies.Delete(ctx, company.ID); err != nil {
		logrus.WithFields(logrus.Fields{
			"company_id": company.ID.Hex(),
			"subdomain":  company.Subdomain,
		}).WithError(err).Error("Failed to remove company of an incomplete registration")
	}
}

// handleVerifyEmail checks the 6-digit code and logs the user in
func handleVerifyEmail(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req VerifyEmailRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()

		user, err := a.store.Users.GetByEmail(ctx, req.Email)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				utils.BadRequestResponse(c, "Invalid verification code")
				return
			}
			utils.InternalError(c, "Failed to verify email", err)
			return
		}
		if user.IsEmailVerified {
			utils.BadRequestResponse(c, "Email is already verified")
			return
		}
		locked, err := a.verificationLocked(ctx, user.Email)
		if err != nil {
			utils.InternalError(c, "Failed to verify email", err)
			return
		}
		if locked {
			utils.ErrorResponse(c, http.StatusTooManyRequests, "Too many verification attempts. Please request a new code.")
			return
		}
		if user.EmailVerificationCode == "" || user.EmailVerificationCode != req.Code {
			if _, err := a.kv.Incr(ctx, utils.VerifyAttemptsKey(user.Email), verificationTTL); err != nil {
				logrus.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to count verification attempt")
			}
			utils.BadRequestResponse(c, "Invalid verification code")
			return
		}
		if user.VerificationExpired(a.now()) {
			utils.BadRequestResponse(c, "Verification code has expired.")
			return
		}

		user.ClearVerification()
		if err := a.store.Users.Update(ctx, user); err != nil {
			utils.InternalError(c, "Failed to verify email", err)
			return
		}
		a.resetVerificationAttempts(ctx, user)

		token, ok := a.issueToken(c, user)
		if !ok {
			return
		}
		utils.OKResponse(c, "Email verified successfully", AuthResponse{Token: token, User: user})
	}
}

// verificationLocked reports whether email has used up its wrong guesses
func (a *app) verificationLocked(ctx context.Context, email string) (bool, error) {
	val, err := a.kv.Get(ctx, utils.VerifyAttemptsKey(email))
	if errors.Is(err, utils.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return false, err
	}
	return n >= maxVerifyAttempts, nil
}

func (a *app) resetVerificationAttempts(ctx context.Context, user *models.User) {
	if err := a.kv.Delete(ctx, utils.VerifyAttemptsKey(user.Email)); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID.Hex()).Warn("Failed to reset verification attempts")
	}
}

// handleResendVerification issues a fresh code
func handleResendVerification(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmailRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()

		user, err := a.store.Users.GetByEmail(ctx, req.Email)
		if err != nil {
			storeError(c, err, "User not found", "Failed to resend verification")
			return
		}
		if user.IsEmailVerified {
			utils.BadRequestResponse(c, "Email is already verified")
			return
		}

		code, err := utils.VerificationCode()
		if err != nil {
			utils.InternalError(c, "Failed to resend verification", err)
			return
		}
		expires := a.now().Add(verificationTTL)
		user.EmailVerificationCode = code
		user.EmailVerificationExpires = &expires
		if err := a.store.Users.Update(ctx, user); err != nil {
			utils.InternalError(c, "Failed to resend verification", err)
			return
		}

		a.resetVerificationAttempts(ctx, user)

		a.mail.Send(mailer.VerificationEmail(user.Email, user.Name, code))
		utils.OKResponse(c, "Verification code sent", nil)
	}
}

// handleLogin checks credentials and either issues a token or opens a
// two-factor challenge
func handleLogin(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()

		user, err := a.store.Users.GetByEmail(ctx, req.Email)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			utils.InternalError(c, "Failed to log in", err)
			return
		}
		if err != nil || !user.ComparePassword(req.Password) {
			a.record(c, audit.ActionLoginFailed, "user", models.NormalizeEmail(req.Email), nil)
			utils.UnauthorizedResponse(c, "Invalid credentials")
			return
		}
		if !user.IsActive {
			utils.ForbiddenResponse(c, "Account is disabled")
			return
		}
		if !user.IsEmailVerified {
			utils.ForbiddenResponse(c, "Please verify your email before logging in")
			return
		}

		company, err := a.store.Companies.GetByID(ctx, user.CompanyID)
		if err != nil {
			storeError(c, err, "Company not found", "Failed to log in")
			return
		}
		if user.Role != models.RoleAdmin && !company.Usable() {
			if company.Suspended {
				utils.ForbiddenResponse(c, "Company account is suspended")
			} else {
				utils.ForbiddenResponse(c, "Company account is inactive")
			}
			return
		}

		if user.TwoFactorEnabled {
			challengeID := uuid.NewString()
			if err := a.kv.Set(ctx, utils.TwoFactorChallengeKey(challengeID), user.ID.Hex(), challengeTTL); err != nil {
				utils.InternalError(c, "Failed to start two-factor login", err)
				return
			}
			utils.OKResponse(c, "Two-factor authentication required", TwoFactorChallenge{
				RequiresTwoFactor: true,
				ChallengeID:       challengeID,
			})
			return
		}

		a.completeLogin(c, user, company)
	}
}

// completeLogin stamps the login and answers with a token
func (a *app) completeLogin(c *gin.Context, user *models.User, company *models.Company) {
	now := a.now()
	user.LastLoginAt = &now
	if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
		utils.InternalError(c, "Failed to log in", err)
		return
	}

	token, ok := a.issueToken(c, user)
	if !ok {
		return
	}
	c.Set(middleware.KeyUser, user)
	a.record(c, audit.ActionLogin, "user", user.ID.Hex(), nil)

	user.Company = company
	utils.OKResponse(c, "Login successful", AuthResponse{Token: token, User: user})
}

// handleForgotPassword mails a reset link. The answer is the same whether or
// not the address is registered.
func handleForgotPassword(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req EmailRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		const message = "If that email is registered, a password reset link has been sent"

		user, err := a.store.Users.GetByEmail(ctx, req.Email)
		if errors.Is(err, store.ErrNotFound) {
			utils.OKResponse(c, message, nil)
			return
		}
		if err != nil {
			utils.InternalError(c, "Failed to process request", err)
			return
		}

		token, err := utils.ResetToken()
		if err != nil {
			utils.InternalError(c, "Failed to process request", err)
			return
		}
		expires := a.now().Add(resetTTL)
		user.PasswordResetToken = utils.HashToken(token)
		user.PasswordResetExpires = &expires
		if err := a.store.Users.Update(ctx, user); err != nil {
			utils.InternalError(c, "Failed to process request", err)
			return
		}

		resetURL := strings.TrimSuffix(a.cfg.FrontendURL, "/") + "/reset-password/" + token
		a.mail.Send(mailer.PasswordResetEmail(user.Email, user.Name, resetURL))
		utils.OKResponse(c, message, nil)
	}
}

// handleResetPassword sets a new password from a reset link
func handleResetPassword(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ResetPasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()

		user, err := a.store.Users.GetByResetToken(ctx, utils.HashToken(c.Param("token")))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			utils.InternalError(c, "Failed to reset password", err)
			return
		}
		if err != nil || user.PasswordResetExpires == nil || a.now().After(*user.PasswordResetExpires) {
			utils.BadRequestResponse(c, "Invalid or expired reset token")
			return
		}

		if err := user.SetPassword(req.Password); err != nil {
			utils.BadRequestResponse(c, "Invalid password", err.Error())
			return
		}
		user.PasswordResetToken = ""
		user.PasswordResetExpires = nil
		if err := a.store.Users.Update(ctx, user); err != nil {
			utils.InternalError(c, "Failed to reset password", err)
			return
		}

		c.Set(middleware.KeyUser, user)
		a.record(c, audit.ActionPasswordReset, "user", user.ID.Hex(), nil)
		utils.OKResponse(c, "Password reset successful", nil)
	}
}

func handleMe(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		utils.OKResponse(c, "User retrieved successfully", middleware.CurrentUser(c))
	}
}

func handleUpdateProfile(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req UpdateProfileRequest
		if !bindJSON(c, &req) {
			return
		}
		user, ok := a.reloadUser(c)
		if !ok {
			return
		}
		if req.Name != nil {
			user.Name = *req.Name
		}
		if req.Preferences != nil {
			user.Preferences = *req.Preferences
		}
		if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
			utils.InternalError(c, "Failed to update profile", err)
			return
		}
		utils.OKResponse(c, "Profile updated successfully", user)
	}
}

func handleChangePassword(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePasswordRequest
		if !bindJSON(c, &req) {
			return
		}
		user, ok := a.reloadUser(c)
		if !ok {
			return
		}
		if !user.ComparePassword(req.CurrentPassword) {
			utils.BadRequestResponse(c, "Current password is incorrect")
			return
		}
		if err := user.SetPassword(req.NewPassword); err != nil {
			utils.BadRequestResponse(c, "Invalid password", err.Error())
			return
		}
		if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
			utils.InternalError(c, "Failed to change password", err)
			return
		}
		a.record(c, audit.ActionPasswordChanged, "user", user.ID.Hex(), nil)
		utils.OKResponse(c, "Password changed successfully", nil)
	}
}

// handleLogout blacklists the token id until the token would have expired anyway
func handleLogout(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := middleware.CurrentClaims(c)
		if claims == nil {
			utils.UnauthorizedResponse(c, "No token, authorization denied")
			return
		}
		if ttl := a.tokens.Remaining(claims); ttl > 0 {
			if err := a.kv.Set(c.Request.Context(), utils.BlacklistKey(claims.ID), "1", ttl); err != nil {
				utils.InternalError(c, "Failed to log out", err)
				return
			}
		}
		a.record(c, audit.ActionLogout, "user", claims.UserID, nil)
		c.JSON(http.StatusOK, utils.APIResponse{Success: true, Message: "Logged out successfully"})
	}
}
