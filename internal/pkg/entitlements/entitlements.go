package entitlements

import (
	"time"

	"github.com/manas360/payments/app/models"
)

// Snapshot is the read-optimized entitlement view served to clients and
// cached in Redis. It mirrors the projection fields on the user row.
type Snapshot struct {
	Tier   string     `json:"tier"`
	Status string     `json:"status"`
	EndsAt *time.Time `json:"ends_at,omitempty"`
}

// FromUser builds a snapshot from the user's projected fields.
func FromUser(u *models.User) Snapshot {
	return Snapshot{
		Tier:   u.SubscriptionTier,
		Status: u.SubscriptionStatus,
		EndsAt: u.PremiumEndsAt,
	}
}

// ActiveAt reports whether the snapshot grants premium access at the given
// instant. An expired projection never grants more than the ledger would.
func (s Snapshot) ActiveAt(now time.Time) bool {
	if s.Tier != models.TierPremium || s.Status != models.SubscriptionStatusActive {
		return false
	}
	return s.EndsAt != nil && s.EndsAt.After(now)
}

// AllowedFeatures returns which premium surfaces a tier unlocks.
func AllowedFeatures(tier string) (therapySessions, premiumTracks, anytimeBuddy bool) {
	switch tier {
	case models.TierPremium:
		return true, true, true
	default:
		return false, false, false
	}
}
