package models

import "time"

const (
	SettlementStatusPending = "pending"
	SettlementStatusPaid    = "paid"
)

// Settlement records how one successful payment's value is split between the
// attached therapist and the platform. At most one row exists per transaction
// and therapist; ProviderShare + PlatformShare always equals TotalAmount.
type Settlement struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TransactionID string    `gorm:"type:varchar(64);not null;index:ux_settlements_txn_therapist,unique,priority:1" json:"transaction_id"`
	TherapistID   string    `gorm:"type:varchar(64);not null;index:ux_settlements_txn_therapist,unique,priority:2" json:"therapist_id"`
	TotalAmount   int64     `gorm:"not null" json:"total_amount"`
	ProviderShare int64     `gorm:"not null" json:"provider_share"`
	PlatformShare int64     `gorm:"not null" json:"platform_share"`
	Status        string    `gorm:"type:varchar(16);not null;default:'pending';index" json:"status"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
