package repository

import (
	"github.com/manas360/payments/app/models"
	"gorm.io/gorm"
)

// settlementRepository implements the SettlementRepository interface
type settlementRepository struct {
	db *gorm.DB
}

// NewSettlementRepository creates a new settlement repository instance
func NewSettlementRepository(db *gorm.DB) SettlementRepository {
	return &settlementRepository{db: db}
}

// GetByTransactionID returns the settlements recorded for a transaction
func (r *settlementRepository) GetByTransactionID(transactionID string) ([]models.Settlement, error) {
	var settlements []models.Settlement
	err := r.db.Where("transaction_id = ?", transactionID).Find(&settlements).Error
	return settlements, err
}

// ListByTherapistID returns a therapist's settlements, newest first
func (r *settlementRepository) ListByTherapistID(therapistID string, offset, limit int) ([]models.Settlement, error) {
	var settlements []models.Settlement
	err := r.db.Where("therapist_id = ?", therapistID).
		Order("created_at DESC").
		Offset(offset).Limit(limit).
		Find(&settlements).Error
	return settlements, err
}

// SumPendingByTherapistID returns the unpaid provider share for a therapist
func (r *settlementRepository) SumPendingByTherapistID(therapistID string) (int64, error) {
	var total int64
	err := r.db.Model(&models.Settlement{}).
		Where("therapist_id = ? AND status = ?", therapistID, models.SettlementStatusPending).
		Select("COALESCE(SUM(provider_share), 0)").
		Scan(&total).Error
	return total, err
}
