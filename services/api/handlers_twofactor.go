package main

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/audit"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/models"
	"github.com/pavitra93/go-multi-tenant-helpdesk/shared/utils"
)

const totpIssuer = "Helpdesk"

// TwoFactorCodeRequest carries a TOTP code
type TwoFactorCodeRequest struct {
	Code string `json:"code" binding:"required,len=6,numeric"`
}

// TwoFactorDisableRequest needs both factors
type TwoFactorDisableRequest struct {
	Password string `json:"password" binding:"required"`
	Code     string `json:"code" binding:"required,len=6,numeric"`
}

// TwoFactorLoginRequest completes a login that returned a challenge
type TwoFactorLoginRequest struct {
	ChallengeID string `json:"challengeId" binding:"required,uuid"`
	Code        string `json:"code" binding:"required,len=6,numeric"`
}

// TwoFactorSetupResponse is what an authenticator app needs
type TwoFactorSetupResponse struct {
	Secret string `json:"secret"`
	URL    string `json:"otpauthUrl"`
}

func (a *app) validTOTP(code, secret string) bool {
	if secret == "" {
		return false
	}
	ok, err := totp.ValidateCustom(code, secret, a.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// handleTwoFactorSetup generates a new secret. It takes effect once enabled.
func handleTwoFactorSetup(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := a.reloadUser(c)
		if !ok {
			return
		}
		if user.TwoFactorEnabled {
			utils.BadRequestResponse(c, "Two-factor authentication is already enabled")
			return
		}

		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      totpIssuer,
			AccountName: user.Email,
		})
		if err != nil {
			utils.InternalError(c, "Failed to generate two-factor secret", err)
			return
		}
		user.TwoFactorSecret = key.Secret()
		if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
			utils.InternalError(c, "Failed to save two-factor secret", err)
			return
		}
		utils.OKResponse(c, "Scan the code with your authenticator app", TwoFactorSetupResponse{
			Secret: key.Secret(),
			URL:    key.URL(),
		})
	}
}

func handleTwoFactorEnable(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TwoFactorCodeRequest
		if !bindJSON(c, &req) {
			return
		}
		user, ok := a.reloadUser(c)
		if !ok {
			return
		}
		if user.TwoFactorSecret == "" {
			utils.BadRequestResponse(c, "Two-factor authentication has not been set up")
			return
		}
		if !a.validTOTP(req.Code, user.TwoFactorSecret) {
			utils.BadRequestResponse(c, "Invalid two-factor code")
			return
		}
		user.TwoFactorEnabled = true
		if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
			utils.InternalError(c, "Failed to enable two-factor authentication", err)
			return
		}
		a.record(c, audit.ActionTwoFactorOn, "user", user.ID.Hex(), nil)
		utils.OKResponse(c, "Two-factor authentication enabled", nil)
	}
}

func handleTwoFactorDisable(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TwoFactorDisableRequest
		if !bindJSON(c, &req) {
			return
		}
		user, ok := a.reloadUser(c)
		if !ok {
			return
		}
		if !user.TwoFactorEnabled {
			utils.BadRequestResponse(c, "Two-factor authentication is not enabled")
			return
		}
		if !user.ComparePassword(req.Password) || !a.validTOTP(req.Code, user.TwoFactorSecret) {
			utils.BadRequestResponse(c, "Invalid password or two-factor code")
			return
		}
		user.TwoFactorEnabled = false
		user.TwoFactorSecret = ""
		if err := a.store.Users.Update(c.Request.Context(), user); err != nil {
			utils.InternalError(c, "Failed to disable two-factor authentication", err)
			return
		}
		a.record(c, audit.ActionTwoFactorOff, "user", user.ID.Hex(), nil)
		utils.OKResponse(c, "Two-factor authentication disabled", nil)
	}
}

// handleTwoFactorLogin trades a login challenge plus a TOTP code for a token
func handleTwoFactorLogin(a *app) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TwoFactorLoginRequest
		if !bindJSON(c, &req) {
			return
		}
		ctx := c.Request.Context()
		key := utils.TwoFactorChallengeKey(req.ChallengeID)

		userHex, err := a.kv.Get(ctx, key)
		if err != nil {
			if errors.Is(err, utils.ErrKeyNotFound) {
				utils.UnauthorizedResponse(c, "Two-factor challenge expired or invalid")
				return
			}
			utils.InternalError(c, "Failed to verify two-factor login", err)
			return
		}
		userID, err := primitive.ObjectIDFromHex(userHex)
		if err != nil {
			utils.UnauthorizedResponse(c, "Two-factor challenge expired or invalid")
			return
		}
		user, err := a.store.Users.GetByID(ctx, userID)
		if err != nil {
			storeError(c, err, "User not found", "Failed to verify two-factor login")
			return
		}
		if !user.IsActive {
			utils.ForbiddenResponse(c, "Account is disabled")
			return
		}
		if !a.validTOTP(req.Code, user.TwoFactorSecret) {
			utils.UnauthorizedResponse(c, "Invalid two-factor code")
			return
		}
		// a challenge is single use
		_ = a.kv.Delete(ctx, key)

		var company *models.Company
		if found, err := a.store.Companies.GetByID(ctx, user.CompanyID); err == nil {
			company = found
		}
		a.completeLogin(c, user, company)
	}
}
