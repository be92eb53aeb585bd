// Package alerts computes low-stock and near-expiry subsets from a product
// snapshot. Everything here is a pure projection: no side effects, safe to
// recompute on every poll, staleness bounded only by the snapshot itself.
package alerts

import (
	"time"

	"logitrack/internal/models"
)

// Default thresholds used by the scheduled sweep and the dashboard.
const (
	DefaultLowStockThreshold = 10
	DefaultExpiryDays        = 30
)

// LowStock returns the products with quantity at or below threshold.
func LowStock(products []*models.Product, threshold int) []*models.Product {
	var low []*models.Product
	for _, p := range products {
		if p.Quantity <= threshold {
			low = append(low, p)
		}
	}
	return low
}

// ExpiringSoon returns the products whose expiry date is on or before
// now + thresholdDays. Already-expired products surface here too.
func ExpiringSoon(products []*models.Product, now time.Time, thresholdDays int) []*models.Product {
	cutoff := now.AddDate(0, 0, thresholdDays)
	var expiring []*models.Product
	for _, p := range products {
		if !p.ExpiryDate.After(cutoff) {
			expiring = append(expiring, p)
		}
	}
	return expiring
}
