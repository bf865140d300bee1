package billing

import (
	"context"
	"errors"
	"time"

	"github.com/manas360/payments/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrPaymentNotFound signals a transaction ID with no payment row. This is
// a caller bug or a forged identifier; callers must not retry.
var ErrPaymentNotFound = errors.New("payment not found")

// Tx exposes the store operations available inside one reconciliation unit
// of work. Every write performed through a Tx commits or rolls back as a
// whole.
type Tx interface {
	// GetPaymentForUpdate loads a payment by transaction ID and holds a row
	// lock on it until the unit of work ends, so a concurrent reconciliation
	// for the same transaction blocks here and then observes the committed
	// terminal status.
	GetPaymentForUpdate(transactionID string) (*models.Payment, error)
	SavePayment(p *models.Payment) error
	UpsertSubscription(sub *models.Subscription) error
	ProjectEntitlement(userID uint, tier, status string, endsAt time.Time) error
	CreateSettlement(s *models.Settlement) error
	AppendAuditLog(entry *models.AuditLogEntry) error
}

// Repository provides DB operations used by the reconciliation service.
type Repository interface {
	// InTransaction runs fn inside one atomic unit of work. Any error from
	// fn rolls back every write performed through the Tx.
	InTransaction(ctx context.Context, fn func(tx Tx) error) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a reconciliation repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) InTransaction(ctx context.Context, fn func(tx Tx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx})
	})
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) GetPaymentForUpdate(transactionID string) (*models.Payment, error) {
	var p models.Payment
	err := t.db.
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("transaction_id = ?", transactionID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (t *gormTx) SavePayment(p *models.Payment) error {
	return t.db.Save(p).Error
}

func (t *gormTx) UpsertSubscription(sub *models.Subscription) error {
	if err := t.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"plan_id",
			"status",
			"starts_at",
			"ends_at",
			"payment_transaction_id",
			"auto_renew",
			"updated_at",
		}),
	}).Create(sub).Error; err != nil {
		return err
	}

	// Ensure ID is populated after upsert.
	return t.db.Where("user_id = ?", sub.UserID).First(sub).Error
}

func (t *gormTx) ProjectEntitlement(userID uint, tier, status string, endsAt time.Time) error {
	return t.db.Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"subscription_tier":   tier,
			"subscription_status": status,
			"premium_ends_at":     endsAt,
		}).Error
}

func (t *gormTx) CreateSettlement(s *models.Settlement) error {
	return t.db.Create(s).Error
}

func (t *gormTx) AppendAuditLog(entry *models.AuditLogEntry) error {
	return t.db.Create(entry).Error
}
