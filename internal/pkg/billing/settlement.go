package billing

import (
	"errors"
	"math"
)

// DefaultProviderRatio is the therapist share of a settled payment.
// 60% provider / 40% platform until per-contract ratios exist.
const DefaultProviderRatio = 0.60

// ErrSplitInvariant means the computed shares do not add up to the total.
// It must never occur; treat it as a fatal defect, not a retryable error.
var ErrSplitInvariant = errors.New("settlement shares do not sum to total amount")

// SplitRevenue divides an amount (paise) between provider and platform.
// The provider share is rounded half-up so the two shares always sum to
// the exact total.
func SplitRevenue(total int64, providerRatio float64) (provider, platform int64, err error) {
	if total < 0 {
		return 0, 0, errors.New("settlement total must not be negative")
	}
	if providerRatio < 0 || providerRatio > 1 {
		return 0, 0, errors.New("provider ratio must be within [0, 1]")
	}

	provider = int64(math.Round(float64(total) * providerRatio))
	platform = total - provider

	if provider < 0 || platform < 0 || provider+platform != total {
		return 0, 0, ErrSplitInvariant
	}
	return provider, platform, nil
}
