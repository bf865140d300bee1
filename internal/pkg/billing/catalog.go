package billing

import (
	"errors"
	"fmt"
	"time"
)

// ErrPlanNotFound signals a plan ID with no catalog entry. This is a
// configuration defect, not a transient failure: callers must not retry.
var ErrPlanNotFound = errors.New("plan not found")

// NonExpiringDays marks plans that never expire (lifetime purchases).
const NonExpiringDays = -1

// FarFutureEnd is the fixed end date used for non-expiring plans.
var FarFutureEnd = time.Date(2099, 12, 31, 0, 0, 0, 0, time.UTC)

// Plan is immutable reference data. Prices are in paise.
type Plan struct {
	ID         string
	PricePaise int64
	Days       int
	Recurrence string
}

// IsRecurring reports whether successful payments for this plan enable
// auto-renew on the subscription.
func (p Plan) IsRecurring() bool {
	return p.Recurrence == "recurring"
}

// EndsAt computes the subscription end date for a payment reconciled at
// the given instant. The caller must pass its own clock reading, never a
// timestamp from the gateway payload.
func (p Plan) EndsAt(now time.Time) time.Time {
	if p.Days == NonExpiringDays {
		return FarFutureEnd
	}
	return now.Add(time.Duration(p.Days) * 24 * time.Hour)
}

// Catalog maps plan IDs to plans. It is the only place pricing and
// duration are defined.
type Catalog map[string]Plan

// Lookup resolves a plan ID or fails with ErrPlanNotFound.
func (c Catalog) Lookup(planID string) (Plan, error) {
	p, ok := c[planID]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrPlanNotFound, planID)
	}
	return p, nil
}

// DefaultCatalog holds the live plans.
var DefaultCatalog = Catalog{
	"premium_monthly":       {ID: "premium_monthly", PricePaise: 29900, Days: 30, Recurrence: "recurring"},
	"premium_yearly":        {ID: "premium_yearly", PricePaise: 299900, Days: 365, Recurrence: "recurring"},
	"anytimebuddy_lifetime": {ID: "anytimebuddy_lifetime", PricePaise: 999900, Days: NonExpiringDays, Recurrence: "one_time"},
	"track_single":          {ID: "track_single", PricePaise: 3000, Days: NonExpiringDays, Recurrence: "one_time"},
}
