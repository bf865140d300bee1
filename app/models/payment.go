package models

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	PaymentStatusCreated = "CREATED"
	PaymentStatusPending = "PENDING"
	PaymentStatusSuccess = "SUCCESS"
	PaymentStatusFailed  = "FAILED"
)

// PaymentMethodDefault is used when the gateway omits the instrument type.
const PaymentMethodDefault = "UPI"

// Payment is one checkout attempt. The transaction ID is generated at
// creation and correlates the attempt across create, verify and webhook.
// SUCCESS and FAILED are terminal: the reconciliation engine never writes
// a payment twice.
type Payment struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	TransactionID    string     `gorm:"type:varchar(64);not null;uniqueIndex" json:"transaction_id" validate:"required"`
	UserID           uint       `gorm:"not null;index" json:"user_id" validate:"required"`
	PlanID           string     `gorm:"type:varchar(64);not null;index" json:"plan_id" validate:"required"`
	AmountPaise      int64      `gorm:"not null" json:"amount_paise" validate:"gte=0"`
	Status           string     `gorm:"type:varchar(16);not null;default:'CREATED';index" json:"status" validate:"oneof=CREATED PENDING SUCCESS FAILED"`
	GatewayPaymentID string     `gorm:"type:varchar(191);default:null" json:"gateway_payment_id,omitempty"`
	PaymentMethod    string     `gorm:"type:varchar(32);default:null" json:"payment_method,omitempty"`
	SourceScreen     string     `gorm:"type:varchar(64);default:null" json:"source_screen,omitempty"`
	TherapistID      string     `gorm:"type:varchar(64);default:null;index" json:"therapist_id,omitempty"`
	ErrorCode        string     `gorm:"type:varchar(64);default:null" json:"error_code,omitempty"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (p *Payment) Validate() error {
	v := validator.New()

	return v.Struct(p)
}

// IsTerminal reports whether the payment reached a final status.
func (p *Payment) IsTerminal() bool {
	return p.Status == PaymentStatusSuccess || p.Status == PaymentStatusFailed
}

// NewTransactionID builds a gateway-safe merchant transaction ID.
func NewTransactionID() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("M360_%d_%s", time.Now().UnixMilli(), hex.EncodeToString(b)), nil
}
