package billing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/manas360/payments/app/models"
)

// memRepository is an in-memory Repository used by the service tests. It
// mirrors the store-level guarantees the engine relies on: the whole unit
// of work runs under one lock (standing in for the payment row lock) and
// writes are staged, becoming visible only when the unit commits.
type memRepository struct {
	mu          sync.Mutex
	payments    map[string]models.Payment
	subs        map[uint]models.Subscription
	users       map[uint]models.User
	settlements []models.Settlement
	audit       []models.AuditLogEntry
	nextSubID   uint
}

func newMemRepository() *memRepository {
	return &memRepository{
		payments:  make(map[string]models.Payment),
		subs:      make(map[uint]models.Subscription),
		users:     make(map[uint]models.User),
		nextSubID: 1,
	}
}

func (r *memRepository) InTransaction(_ context.Context, fn func(tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx := &memTx{repo: r, stagedSubs: make(map[uint]models.Subscription)}
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

type memTx struct {
	repo              *memRepository
	stagedPayments    []models.Payment
	stagedSubs        map[uint]models.Subscription
	stagedUsers       []models.User
	stagedSettlements []models.Settlement
	stagedAudit       []models.AuditLogEntry
}

func (t *memTx) GetPaymentForUpdate(transactionID string) (*models.Payment, error) {
	p, ok := t.repo.payments[transactionID]
	if !ok {
		return nil, ErrPaymentNotFound
	}
	cp := p
	return &cp, nil
}

func (t *memTx) SavePayment(p *models.Payment) error {
	t.stagedPayments = append(t.stagedPayments, *p)
	return nil
}

func (t *memTx) UpsertSubscription(sub *models.Subscription) error {
	if existing, ok := t.repo.subs[sub.UserID]; ok {
		sub.ID = existing.ID
	} else {
		sub.ID = t.repo.nextSubID
		t.repo.nextSubID++
	}
	t.stagedSubs[sub.UserID] = *sub
	return nil
}

func (t *memTx) ProjectEntitlement(userID uint, tier, status string, endsAt time.Time) error {
	u := t.repo.users[userID]
	u.ID = userID
	u.SubscriptionTier = tier
	u.SubscriptionStatus = status
	ends := endsAt
	u.PremiumEndsAt = &ends
	t.stagedUsers = append(t.stagedUsers, u)
	return nil
}

func (t *memTx) CreateSettlement(s *models.Settlement) error {
	for _, existing := range t.repo.settlements {
		if existing.TransactionID == s.TransactionID && existing.TherapistID == s.TherapistID {
			return fmt.Errorf("duplicate settlement for %s/%s", s.TransactionID, s.TherapistID)
		}
	}
	t.stagedSettlements = append(t.stagedSettlements, *s)
	return nil
}

func (t *memTx) AppendAuditLog(entry *models.AuditLogEntry) error {
	t.stagedAudit = append(t.stagedAudit, *entry)
	return nil
}

func (t *memTx) commit() {
	for _, p := range t.stagedPayments {
		t.repo.payments[p.TransactionID] = p
	}
	for userID, sub := range t.stagedSubs {
		t.repo.subs[userID] = sub
	}
	for _, u := range t.stagedUsers {
		t.repo.users[u.ID] = u
	}
	t.repo.settlements = append(t.repo.settlements, t.stagedSettlements...)
	t.repo.audit = append(t.repo.audit, t.stagedAudit...)
}

// failingRepository wraps memRepository and fails every unit of work with
// a transient store error.
type failingRepository struct {
	err error
}

func (r *failingRepository) InTransaction(context.Context, func(tx Tx) error) error {
	return r.err
}

var errStoreDown = errors.New("store unavailable")
