package repository

import (
	"github.com/manas360/payments/app/models"
	"gorm.io/gorm"
)

// PaymentRepository defines the interface for payment-related database operations
type PaymentRepository interface {
	Create(payment *models.Payment) error
	GetByTransactionID(transactionID string) (*models.Payment, error)
	GetByTransactionIDForUser(transactionID string, userID uint) (*models.Payment, error)
	MarkPending(transactionID, gatewayRef string) error
	ListByUserID(userID uint, offset, limit int) ([]models.Payment, error)
	CountByUserID(userID uint) (int64, error)
}

// SubscriptionRepository defines the interface for subscription ledger reads
type SubscriptionRepository interface {
	GetByUserID(userID uint) (*models.Subscription, error)
	GetByTransactionID(transactionID string) (*models.Subscription, error)
}

// SettlementRepository defines the interface for settlement ledger reads
type SettlementRepository interface {
	GetByTransactionID(transactionID string) ([]models.Settlement, error)
	ListByTherapistID(therapistID string, offset, limit int) ([]models.Settlement, error)
	SumPendingByTherapistID(therapistID string) (int64, error)
}

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, error)
	Update(user *models.User) error
}

// Repositories struct holds all repository instances
type Repositories struct {
	Payment      PaymentRepository
	Subscription SubscriptionRepository
	Settlement   SettlementRepository
	User         UserRepository
}

// NewRepositories creates all repositories backed by the given DB handle
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Payment:      NewPaymentRepository(db),
		Subscription: NewSubscriptionRepository(db),
		Settlement:   NewSettlementRepository(db),
		User:         NewUserRepository(db),
	}
}
