package entitlements

import (
	"testing"
	"time"

	"github.com/manas360/payments/app/models"
)

func TestSnapshotActiveAt(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name string
		snap Snapshot
		want bool
	}{
		{"premium active unexpired", Snapshot{Tier: models.TierPremium, Status: models.SubscriptionStatusActive, EndsAt: &future}, true},
		{"premium active expired", Snapshot{Tier: models.TierPremium, Status: models.SubscriptionStatusActive, EndsAt: &past}, false},
		{"premium inactive", Snapshot{Tier: models.TierPremium, Status: models.SubscriptionStatusInactive, EndsAt: &future}, false},
		{"free tier", Snapshot{Tier: models.TierFree, Status: models.SubscriptionStatusActive, EndsAt: &future}, false},
		{"premium active no expiry", Snapshot{Tier: models.TierPremium, Status: models.SubscriptionStatusActive}, false},
	}

	for _, tt := range tests {
		if got := tt.snap.ActiveAt(now); got != tt.want {
			t.Fatalf("%s: ActiveAt = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFromUser(t *testing.T) {
	ends := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	u := &models.User{
		SubscriptionTier:   models.TierPremium,
		SubscriptionStatus: models.SubscriptionStatusActive,
		PremiumEndsAt:      &ends,
	}

	snap := FromUser(u)
	if snap.Tier != models.TierPremium || snap.Status != models.SubscriptionStatusActive {
		t.Fatalf("FromUser = %+v", snap)
	}
	if snap.EndsAt == nil || !snap.EndsAt.Equal(ends) {
		t.Fatalf("FromUser ends_at = %v, want %v", snap.EndsAt, ends)
	}
}

func TestAllowedFeatures(t *testing.T) {
	therapy, tracks, buddy := AllowedFeatures(models.TierPremium)
	if !therapy || !tracks || !buddy {
		t.Fatalf("premium tier must unlock all features, got %v %v %v", therapy, tracks, buddy)
	}

	therapy, tracks, buddy = AllowedFeatures(models.TierFree)
	if therapy || tracks || buddy {
		t.Fatalf("free tier must unlock nothing, got %v %v %v", therapy, tracks, buddy)
	}
}
