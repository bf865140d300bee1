package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/manas360/payments/internal/pkg/entitlements"
	"github.com/redis/go-redis/v9"
)

const entitlementTTL = 15 * time.Minute

func entitlementKey(userID uint) string {
	return fmt.Sprintf("entitlement:%d", userID)
}

// SetEntitlement caches the entitlement snapshot for a user. Called after a
// successful reconciliation commit; failures are the caller's to log, the
// database stays authoritative.
func SetEntitlement(userID uint, snap entitlements.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return Set(entitlementKey(userID), data, entitlementTTL)
}

// GetEntitlement returns the cached snapshot, or ok=false on a miss.
func GetEntitlement(userID uint) (entitlements.Snapshot, bool, error) {
	var snap entitlements.Snapshot
	raw, err := Get(entitlementKey(userID))
	if errors.Is(err, redis.Nil) {
		return snap, false, nil
	}
	if err != nil {
		return snap, false, err
	}
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return snap, false, err
	}
	return snap, true, nil
}

// InvalidateEntitlement drops the cached snapshot for a user.
func InvalidateEntitlement(userID uint) error {
	return Delete(entitlementKey(userID))
}
