package models

import "time"

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
)

const (
	PlanRecurrenceOneTime   = "one_time"
	PlanRecurrenceRecurring = "recurring"
)

// Subscription holds the one active subscription row per user. It is a merge
// target keyed on user ID, not an append log: the latest successful payment
// always overwrites plan, dates and funding transaction.
type Subscription struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	UserID               uint      `gorm:"not null;uniqueIndex" json:"user_id"`
	PlanID               string    `gorm:"type:varchar(64);not null;index" json:"plan_id"`
	Status               string    `gorm:"type:varchar(16);not null;default:'active';index" json:"status"`
	StartsAt             time.Time `gorm:"type:timestamp;not null" json:"starts_at"`
	EndsAt               time.Time `gorm:"type:timestamp;not null" json:"ends_at"`
	PaymentTransactionID string    `gorm:"type:varchar(64);not null;index" json:"payment_transaction_id"`
	AutoRenew            bool      `gorm:"default:false" json:"auto_renew"`
	CreatedAt            time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
