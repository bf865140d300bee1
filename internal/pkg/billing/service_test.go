package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manas360/payments/app/models"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository) *Service {
	return NewService(repo).WithClock(func() time.Time { return testNow })
}

func seedPayment(repo *memRepository, p models.Payment) {
	if p.Status == "" {
		p.Status = models.PaymentStatusPending
	}
	repo.payments[p.TransactionID] = p
	repo.users[p.UserID] = models.User{
		ID:                 p.UserID,
		SubscriptionTier:   models.TierFree,
		SubscriptionStatus: models.SubscriptionStatusInactive,
	}
}

func TestReconcileSuccessEndToEnd(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-1",
		UserID:        1,
		PlanID:        "premium_monthly",
		AmountPaise:   29900,
		SourceScreen:  "premium_hub",
	})
	svc := newTestService(repo)

	outcome, err := svc.Reconcile(context.Background(), "tx-1", GatewayResult{
		GatewayPaymentID: "pg-123",
		InstrumentType:   "UPI",
		Succeeded:        true,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	payment := repo.payments["tx-1"]
	assert.Equal(t, models.PaymentStatusSuccess, payment.Status)
	assert.Equal(t, "pg-123", payment.GatewayPaymentID)
	assert.Equal(t, "UPI", payment.PaymentMethod)

	sub, ok := repo.subs[1]
	require.True(t, ok, "subscription row missing")
	assert.Equal(t, "premium_monthly", sub.PlanID)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	assert.True(t, sub.AutoRenew, "recurring plan must set auto_renew")
	assert.Equal(t, "tx-1", sub.PaymentTransactionID)
	assert.True(t, sub.EndsAt.Equal(testNow.Add(30*24*time.Hour)))

	user := repo.users[1]
	assert.Equal(t, models.TierPremium, user.SubscriptionTier)
	assert.Equal(t, models.SubscriptionStatusActive, user.SubscriptionStatus)
	require.NotNil(t, user.PremiumEndsAt)
	assert.True(t, user.PremiumEndsAt.Equal(sub.EndsAt), "projection expiry must match ledger")

	assert.Empty(t, repo.settlements, "no settlement without a therapist")
	require.Len(t, repo.audit, 1)
	assert.Equal(t, models.AuditActionPaymentSuccess, repo.audit[0].Action)
	assert.Equal(t, uint(1), repo.audit[0].UserID)
	assert.Contains(t, repo.audit[0].DetailsJSON, `"transaction_id":"tx-1"`)
	assert.Contains(t, repo.audit[0].DetailsJSON, `"plan_id":"premium_monthly"`)
}

func TestReconcileIdempotent(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-1",
		UserID:        1,
		PlanID:        "premium_monthly",
		AmountPaise:   29900,
		TherapistID:   "t1",
	})
	svc := newTestService(repo)
	res := GatewayResult{GatewayPaymentID: "pg-1", Succeeded: true}

	outcome, err := svc.Reconcile(context.Background(), "tx-1", res)
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	endsAfterFirst := repo.subs[1].EndsAt

	for i := 0; i < 3; i++ {
		outcome, err = svc.Reconcile(context.Background(), "tx-1", res)
		require.NoError(t, err)
		assert.Equal(t, OutcomeAlreadyApplied, outcome)
	}

	assert.Len(t, repo.settlements, 1, "settlement must not duplicate on reprocessing")
	assert.Len(t, repo.audit, 1, "audit entry must not duplicate on reprocessing")
	assert.True(t, repo.subs[1].EndsAt.Equal(endsAfterFirst), "ends_at must not move on replay")
}

func TestReconcileConcurrentRace(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-race",
		UserID:        7,
		PlanID:        "premium_yearly",
		AmountPaise:   299900,
		TherapistID:   "t9",
	})
	svc := newTestService(repo)

	const callers = 8
	outcomes := make([]Outcome, callers)
	errs := make([]error, callers)

	var start, done sync.WaitGroup
	start.Add(1)
	done.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			start.Wait()
			outcomes[i], errs[i] = svc.Reconcile(context.Background(), "tx-race", GatewayResult{
				GatewayPaymentID: "pg-race",
				Succeeded:        true,
			})
		}(i)
	}
	start.Done()
	done.Wait()

	applied := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if outcomes[i] == OutcomeApplied {
			applied++
		}
	}
	assert.Equal(t, 1, applied, "exactly one caller must win the race")
	assert.Len(t, repo.settlements, 1)
	assert.Len(t, repo.audit, 1)
	assert.Equal(t, models.PaymentStatusSuccess, repo.payments["tx-race"].Status)
}

func TestReconcileLatestPaymentWins(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-1", UserID: 1, PlanID: "premium_monthly", AmountPaise: 29900,
	})
	seedPayment(repo, models.Payment{
		TransactionID: "tx-2", UserID: 1, PlanID: "premium_yearly", AmountPaise: 299900,
	})

	clock := testNow
	svc := NewService(repo).WithClock(func() time.Time { return clock })

	_, err := svc.Reconcile(context.Background(), "tx-1", GatewayResult{Succeeded: true})
	require.NoError(t, err)

	// A renewal ten days later overwrites the row; remaining days from the
	// earlier payment do not stack.
	clock = testNow.Add(10 * 24 * time.Hour)
	_, err = svc.Reconcile(context.Background(), "tx-2", GatewayResult{Succeeded: true})
	require.NoError(t, err)

	sub := repo.subs[1]
	assert.Equal(t, "premium_yearly", sub.PlanID)
	assert.Equal(t, "tx-2", sub.PaymentTransactionID)
	assert.True(t, sub.EndsAt.Equal(clock.Add(365*24*time.Hour)))

	user := repo.users[1]
	require.NotNil(t, user.PremiumEndsAt)
	assert.True(t, user.PremiumEndsAt.Equal(sub.EndsAt))
}

func TestReconcileSettlementSplit(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-1",
		UserID:        1,
		PlanID:        "premium_monthly",
		AmountPaise:   10000,
		TherapistID:   "t1",
	})
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), "tx-1", GatewayResult{Succeeded: true})
	require.NoError(t, err)

	require.Len(t, repo.settlements, 1)
	s := repo.settlements[0]
	assert.Equal(t, "tx-1", s.TransactionID)
	assert.Equal(t, "t1", s.TherapistID)
	assert.Equal(t, int64(10000), s.TotalAmount)
	assert.Equal(t, int64(6000), s.ProviderShare)
	assert.Equal(t, int64(4000), s.PlatformShare)
	assert.Equal(t, models.SettlementStatusPending, s.Status)
}

func TestReconcileNonExpiringPlan(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-life",
		UserID:        3,
		PlanID:        "anytimebuddy_lifetime",
		AmountPaise:   999900,
	})
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), "tx-life", GatewayResult{Succeeded: true})
	require.NoError(t, err)

	sub := repo.subs[3]
	assert.True(t, sub.EndsAt.Equal(FarFutureEnd))
	assert.False(t, sub.AutoRenew, "one_time plan must not auto-renew")
}

func TestReconcileUnknownTransaction(t *testing.T) {
	repo := newMemRepository()
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), "tx-missing", GatewayResult{Succeeded: true})
	require.ErrorIs(t, err, ErrPaymentNotFound)

	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.settlements)
	assert.Empty(t, repo.audit)
}

func TestReconcilePlanNotFoundRollsBack(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-1",
		UserID:        1,
		PlanID:        "retired_plan",
		AmountPaise:   100,
	})
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), "tx-1", GatewayResult{Succeeded: true})
	require.ErrorIs(t, err, ErrPlanNotFound)

	// Nothing committed: the payment can be reconciled again once the
	// catalog is fixed.
	assert.Equal(t, models.PaymentStatusPending, repo.payments["tx-1"].Status)
	assert.Empty(t, repo.subs)
	assert.Empty(t, repo.audit)
}

func TestReconcileFailedGatewayResult(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-1",
		UserID:        1,
		PlanID:        "premium_monthly",
		AmountPaise:   29900,
	})
	svc := newTestService(repo)

	outcome, err := svc.Reconcile(context.Background(), "tx-1", GatewayResult{
		Succeeded: false,
		ErrorCode: "PAYMENT_DECLINED",
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	payment := repo.payments["tx-1"]
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)
	assert.Equal(t, "PAYMENT_DECLINED", payment.ErrorCode)

	assert.Empty(t, repo.subs, "failed payment must not create entitlements")
	require.Len(t, repo.audit, 1)
	assert.Equal(t, models.AuditActionPaymentFailed, repo.audit[0].Action)

	// A failed payment is terminal too.
	outcome, err = svc.Reconcile(context.Background(), "tx-1", GatewayResult{Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyApplied, outcome)
	assert.Equal(t, models.PaymentStatusFailed, repo.payments["tx-1"].Status)
}

func TestReconcileDefaultsPaymentMethod(t *testing.T) {
	repo := newMemRepository()
	seedPayment(repo, models.Payment{
		TransactionID: "tx-1",
		UserID:        1,
		PlanID:        "track_single",
		AmountPaise:   3000,
	})
	svc := newTestService(repo)

	_, err := svc.Reconcile(context.Background(), "tx-1", GatewayResult{Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodDefault, repo.payments["tx-1"].PaymentMethod)
}

func TestReconcileStoreFailureIsRetryable(t *testing.T) {
	svc := newTestService(&failingRepository{err: errStoreDown})

	_, err := svc.Reconcile(context.Background(), "tx-1", GatewayResult{Succeeded: true})
	require.ErrorIs(t, err, errStoreDown)
	assert.False(t, errors.Is(err, ErrPaymentNotFound))
	assert.False(t, errors.Is(err, ErrPlanNotFound))
}

func TestReconcileBlankTransactionID(t *testing.T) {
	svc := newTestService(newMemRepository())
	_, err := svc.Reconcile(context.Background(), "  ", GatewayResult{Succeeded: true})
	require.ErrorIs(t, err, ErrPaymentNotFound)
}
