package models

import "time"

const (
	AuditActionPaymentSuccess = "payment_success"
	AuditActionPaymentFailed  = "payment_failed"
)

// AuditLogEntry is append-only. The engine writes exactly one entry per
// reconciliation attempt that reaches a terminal decision; nothing in this
// codebase updates or deletes rows.
type AuditLogEntry struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserID      uint      `gorm:"not null;index" json:"user_id"`
	Action      string    `gorm:"type:varchar(64);not null;index" json:"action"`
	DetailsJSON string    `gorm:"type:longtext" json:"details_json"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuditLogEntry) TableName() string {
	return "audit_log"
}
