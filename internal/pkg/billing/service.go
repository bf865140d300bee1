package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/manas360/payments/app/models"
	"gorm.io/gorm"
)

// Service is the payment reconciliation engine. Both the verify handler and
// the webhook handler funnel into Reconcile, which converts a gateway
// outcome into the durable payment/subscription/user/settlement/audit state
// exactly once per transaction.
type Service struct {
	repo          Repository
	catalog       Catalog
	providerRatio float64
	now           func() time.Time
}

// NewService creates a reconciliation service from an injected repository.
func NewService(repo Repository) *Service {
	return &Service{
		repo:          repo,
		catalog:       DefaultCatalog,
		providerRatio: DefaultProviderRatio,
		now:           time.Now,
	}
}

// NewServiceFromDB creates a reconciliation service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db))
}

// WithCatalog overrides the plan catalog.
func (s *Service) WithCatalog(c Catalog) *Service {
	s.catalog = c
	return s
}

// WithProviderRatio overrides the therapist revenue share.
func (s *Service) WithProviderRatio(ratio float64) *Service {
	s.providerRatio = ratio
	return s
}

// WithClock overrides the time source used for end-date computation.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type auditDetails struct {
	TransactionID string `json:"transaction_id"`
	PlanID        string `json:"plan_id"`
	Amount        int64  `json:"amount"`
	Source        string `json:"source,omitempty"`
	ErrorCode     string `json:"error_code,omitempty"`
}

// Reconcile applies a gateway result to the payment identified by
// transactionID inside one atomic unit of work.
//
// Payments already in a terminal status are left untouched and the call
// returns OutcomeAlreadyApplied; this is what makes concurrent verify and
// webhook deliveries (and gateway redeliveries) safe. Any error rolls back
// every write, leaving the payment in its pre-call status so a later
// attempt from either entry point can reconcile again.
func (s *Service) Reconcile(ctx context.Context, transactionID string, res GatewayResult) (Outcome, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return 0, ErrPaymentNotFound
	}

	outcome := OutcomeApplied
	err := s.repo.InTransaction(ctx, func(tx Tx) error {
		payment, err := tx.GetPaymentForUpdate(transactionID)
		if err != nil {
			return err
		}

		// Idempotency guard: a concurrent winner already committed.
		if payment.IsTerminal() {
			outcome = OutcomeAlreadyApplied
			return nil
		}

		if !res.Succeeded {
			return s.applyFailure(tx, payment, res)
		}
		return s.applySuccess(tx, payment, res)
	})
	if err != nil {
		return 0, err
	}
	return outcome, nil
}

func (s *Service) applySuccess(tx Tx, payment *models.Payment, res GatewayResult) error {
	plan, err := s.catalog.Lookup(payment.PlanID)
	if err != nil {
		// Configuration defect: a stored payment references a plan the
		// catalog no longer knows. Never retried.
		return fmt.Errorf("payment %s: %w", payment.TransactionID, err)
	}

	now := s.now()
	endsAt := plan.EndsAt(now)

	method := strings.TrimSpace(res.InstrumentType)
	if method == "" {
		method = models.PaymentMethodDefault
	}

	payment.Status = models.PaymentStatusSuccess
	payment.GatewayPaymentID = res.GatewayPaymentID
	payment.PaymentMethod = method
	if err := tx.SavePayment(payment); err != nil {
		return fmt.Errorf("mark payment success: %w", err)
	}

	sub := &models.Subscription{
		UserID:               payment.UserID,
		PlanID:               payment.PlanID,
		Status:               models.SubscriptionStatusActive,
		StartsAt:             now,
		EndsAt:               endsAt,
		PaymentTransactionID: payment.TransactionID,
		AutoRenew:            plan.IsRecurring(),
	}
	if err := tx.UpsertSubscription(sub); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	if err := tx.ProjectEntitlement(payment.UserID, models.TierPremium, models.SubscriptionStatusActive, endsAt); err != nil {
		return fmt.Errorf("project entitlement: %w", err)
	}

	if payment.TherapistID != "" {
		providerShare, platformShare, err := SplitRevenue(payment.AmountPaise, s.providerRatio)
		if err != nil {
			return fmt.Errorf("split revenue for %s: %w", payment.TransactionID, err)
		}
		settlement := &models.Settlement{
			TransactionID: payment.TransactionID,
			TherapistID:   payment.TherapistID,
			TotalAmount:   payment.AmountPaise,
			ProviderShare: providerShare,
			PlatformShare: platformShare,
			Status:        models.SettlementStatusPending,
		}
		if err := tx.CreateSettlement(settlement); err != nil {
			return fmt.Errorf("create settlement: %w", err)
		}
	}

	return s.appendAudit(tx, payment, models.AuditActionPaymentSuccess, "")
}

func (s *Service) applyFailure(tx Tx, payment *models.Payment, res GatewayResult) error {
	payment.Status = models.PaymentStatusFailed
	payment.ErrorCode = res.ErrorCode
	if err := tx.SavePayment(payment); err != nil {
		return fmt.Errorf("mark payment failed: %w", err)
	}
	return s.appendAudit(tx, payment, models.AuditActionPaymentFailed, res.ErrorCode)
}

func (s *Service) appendAudit(tx Tx, payment *models.Payment, action, errorCode string) error {
	details, err := json.Marshal(auditDetails{
		TransactionID: payment.TransactionID,
		PlanID:        payment.PlanID,
		Amount:        payment.AmountPaise,
		Source:        payment.SourceScreen,
		ErrorCode:     errorCode,
	})
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}
	return tx.AppendAuditLog(&models.AuditLogEntry{
		UserID:      payment.UserID,
		Action:      action,
		DetailsJSON: string(details),
	})
}
