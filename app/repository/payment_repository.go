package repository

import (
	"github.com/manas360/payments/app/models"
	"gorm.io/gorm"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// Create inserts a new payment attempt
func (r *paymentRepository) Create(payment *models.Payment) error {
	return r.db.Create(payment).Error
}

// GetByTransactionID retrieves a payment by its transaction identifier
func (r *paymentRepository) GetByTransactionID(transactionID string) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("transaction_id = ?", transactionID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByTransactionIDForUser retrieves a payment scoped to its owning user
func (r *paymentRepository) GetByTransactionIDForUser(transactionID string, userID uint) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.Where("transaction_id = ? AND user_id = ?", transactionID, userID).First(&payment).Error
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPending records the gateway reference once a checkout session exists.
// Only payments still in CREATED move to PENDING; terminal rows are never
// touched from here.
func (r *paymentRepository) MarkPending(transactionID, gatewayRef string) error {
	return r.db.Model(&models.Payment{}).
		Where("transaction_id = ? AND status = ?", transactionID, models.PaymentStatusCreated).
		Updates(map[string]interface{}{
			"status":             models.PaymentStatusPending,
			"gateway_payment_id": gatewayRef,
		}).Error
}

// ListByUserID returns a user's payment history, newest first
func (r *paymentRepository) ListByUserID(userID uint, offset, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&payments).Error
	return payments, err
}

// CountByUserID returns the number of payment attempts for a user
func (r *paymentRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Payment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}
