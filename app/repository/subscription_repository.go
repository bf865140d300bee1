package repository

import (
	"github.com/manas360/payments/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// GetByUserID retrieves the single subscription row for a user
func (r *subscriptionRepository) GetByUserID(userID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("user_id = ?", userID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// GetByTransactionID retrieves the subscription funded by a transaction
func (r *subscriptionRepository) GetByTransactionID(transactionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("payment_transaction_id = ?", transactionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}
