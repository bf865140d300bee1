package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_USER      = "user"
	ROLE_THERAPIST = "therapist"
	ROLE_ADMIN     = "admin"

	STATUS_ACTIVE   = "active"
	STATUS_INACTIVE = "inactive"
	STATUS_DISABLED = "disabled"
)

const (
	TierFree    = "free"
	TierPremium = "premium"
)

// User carries the denormalized entitlement projection (tier, status,
// premium expiry) so read paths never join the subscriptions table. The
// projection is written exclusively by the reconciliation engine and must
// never claim more than the subscription row states.
type User struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	Name               string         `gorm:"type:varchar(150)" json:"name" validate:"required,min=3,max=150"`
	Email              string         `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password           string         `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role               string         `gorm:"type:varchar(50);default:'user'" json:"role" validate:"oneof=user therapist admin"`
	Status             string         `gorm:"type:varchar(50);default:'active'" json:"status" validate:"oneof=active inactive disabled"`
	APIKeyHash         string         `gorm:"type:varchar(64);default:null;index" json:"-"`
	SubscriptionTier   string         `gorm:"type:varchar(32);not null;default:'free';index" json:"subscription_tier"`
	SubscriptionStatus string         `gorm:"type:varchar(32);not null;default:'inactive'" json:"subscription_status"`
	PremiumEndsAt      *time.Time     `gorm:"type:timestamp;default:null" json:"premium_ends_at,omitempty"`
	LastLoginAt        *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt          time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(username string, email string, password string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	u := &User{
		Name:               username,
		Email:              email,
		Password:           pw,
		Role:               ROLE_USER,
		Status:             STATUS_ACTIVE,
		SubscriptionTier:   TierFree,
		SubscriptionStatus: SubscriptionStatusInactive,
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

// HashAPIKey returns the hex SHA-256 digest stored for API key lookups.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// IsActive reports whether the user status is active
func (u *User) IsActive() bool {
	return u.Status == STATUS_ACTIVE
}

// IsPremium reports whether the entitlement projection grants premium
// access at the given instant.
func (u *User) IsPremium(now time.Time) bool {
	if u.SubscriptionTier != TierPremium || u.SubscriptionStatus != SubscriptionStatusActive {
		return false
	}
	return u.PremiumEndsAt != nil && u.PremiumEndsAt.After(now)
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}
