package billing

import (
	"errors"
	"testing"
	"time"
)

func TestCatalogLookup(t *testing.T) {
	for _, id := range []string{"premium_monthly", "premium_yearly", "anytimebuddy_lifetime", "track_single"} {
		p, err := DefaultCatalog.Lookup(id)
		if err != nil {
			t.Fatalf("Lookup(%q) returned error: %v", id, err)
		}
		if p.ID != id {
			t.Fatalf("Lookup(%q) returned plan %q", id, p.ID)
		}
	}

	if _, err := DefaultCatalog.Lookup("no_such_plan"); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestPlanEndsAt(t *testing.T) {
	now := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		days int
		want time.Time
	}{
		{days: 30, want: now.Add(30 * 24 * time.Hour)},
		{days: 365, want: now.Add(365 * 24 * time.Hour)},
		{days: NonExpiringDays, want: FarFutureEnd},
	}

	for _, tt := range tests {
		p := Plan{Days: tt.days}
		if got := p.EndsAt(now); !got.Equal(tt.want) {
			t.Fatalf("EndsAt with days=%d = %v, want %v", tt.days, got, tt.want)
		}
	}
}

func TestPlanEndsAtIgnoresClockValue(t *testing.T) {
	// Non-expiring plans pin the same far-future date no matter when the
	// reconciliation runs.
	p := Plan{Days: NonExpiringDays}
	for _, now := range []time.Time{
		time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2098, 12, 31, 23, 59, 59, 0, time.UTC),
	} {
		if got := p.EndsAt(now); !got.Equal(FarFutureEnd) {
			t.Fatalf("EndsAt(%v) = %v, want %v", now, got, FarFutureEnd)
		}
	}
}

func TestPlanIsRecurring(t *testing.T) {
	if !(Plan{Recurrence: "recurring"}).IsRecurring() {
		t.Fatalf("expected recurring plan to report recurring")
	}
	if (Plan{Recurrence: "one_time"}).IsRecurring() {
		t.Fatalf("expected one_time plan to not report recurring")
	}
}
