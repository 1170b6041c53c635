package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// PasswordCost is the bcrypt work factor for stored passwords
const PasswordCost = 12

// User represents a person belonging to a company
type User struct {
	ID                       primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	Name                     string             `json:"name" bson:"name"`
	Email                    string             `json:"email" bson:"email"`
	Password                 string             `json:"-" bson:"password"`
	Role                     Role               `json:"role" bson:"role"`
	CompanyID                primitive.ObjectID `json:"companyId" bson:"companyId"`
	IsActive                 bool               `json:"isActive" bson:"isActive"`
	IsEmailVerified          bool               `json:"isEmailVerified" bson:"isEmailVerified"`
	EmailVerificationCode    string             `json:"-" bson:"emailVerificationCode,omitempty"`
	EmailVerificationExpires *time.Time         `json:"-" bson:"emailVerificationExpires,omitempty"`
	PasswordResetToken       string             `json:"-" bson:"passwordResetToken,omitempty"`
	PasswordResetExpires     *time.Time         `json:"-" bson:"passwordResetExpires,omitempty"`
	TwoFactorEnabled         bool               `json:"twoFactorEnabled" bson:"twoFactorEnabled"`
	TwoFactorSecret          string             `json:"-" bson:"twoFactorSecret,omitempty"`
	Preferences              Preferences        `json:"preferences" bson:"preferences"`
	LastLoginAt              *time.Time         `json:"lastLoginAt,omitempty" bson:"lastLoginAt,omitempty"`
	CreatedAt                time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt                time.Time          `json:"updatedAt" bson:"updatedAt"`

	// Company is populated by the authentication resolver and never persisted.
	Company *Company `json:"company,omitempty" bson:"-"`
}

// Preferences are per-user profile settings
type Preferences struct {
	Language           string `json:"language" bson:"language"`
	Timezone           string `json:"timezone" bson:"timezone"`
	Theme              string `json:"theme" bson:"theme"`
	EmailNotifications bool   `json:"emailNotifications" bson:"emailNotifications"`
}

// DefaultPreferences is what a new user starts with
func DefaultPreferences() Preferences {
	return Preferences{Language: "en", Timezone: "UTC", Theme: "light", EmailNotifications: true}
}

type Role string

const (
	RoleAdmin          Role = "admin"
	RoleCompanyManager Role = "company_manager"
	RoleSupportAgent   Role = "support_agent"
	RoleCustomer       Role = "customer"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleCompanyManager, RoleSupportAgent, RoleCustomer:
		return true
	}
	return false
}

// IsStaff reports whether the role works tickets rather than files them
func (r Role) IsStaff() bool {
	return r == RoleAdmin || r == RoleCompanyManager || r == RoleSupportAgent
}

var ErrEmptyPassword = errors.New("password must not be empty")

// SetPassword hashes plain and stores the hash. It is the only way the
// password field should change, so every mutation is rehashed.
func (u *User) SetPassword(plain string) error {
	if plain == "" {
		return ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), PasswordCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// ComparePassword reports whether plain matches the stored hash
func (u *User) ComparePassword(plain string) bool {
	if u.Password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// VerificationExpired reports whether the email verification code is past its expiry at now
func (u *User) VerificationExpired(now time.Time) bool {
	return u.EmailVerificationExpires == nil || now.After(*u.EmailVerificationExpires)
}

// ClearVerification marks the email as verified and drops the code
func (u *User) ClearVerification() {
	u.IsEmailVerified = true
	u.EmailVerificationCode = ""
	u.EmailVerificationExpires = nil
}
