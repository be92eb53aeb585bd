// Package batch groups products by manufacturing lot. All functions are pure
// projections over the snapshot the ledger returns; order is preserved, which
// keeps batch members expiry-ascending because the snapshot is sorted that way.
package batch

import (
	"time"

	"logitrack/internal/models"
)

// ByBatch returns the products whose batch number exactly matches, in
// snapshot order.
func ByBatch(products []*models.Product, batchNumber string) []*models.Product {
	var members []*models.Product
	for _, p := range products {
		if p.BatchNumber == batchNumber {
			members = append(members, p)
		}
	}
	return members
}

// UniqueBatches returns the distinct batch numbers in first-seen order.
func UniqueBatches(products []*models.Product) []string {
	seen := make(map[string]bool)
	var batches []string
	for _, p := range products {
		if !seen[p.BatchNumber] {
			seen[p.BatchNumber] = true
			batches = append(batches, p.BatchNumber)
		}
	}
	return batches
}

// EarliestExpiry returns the minimum expiry date among the given products.
// The second return is false for an empty input; callers must guard.
func EarliestExpiry(products []*models.Product) (time.Time, bool) {
	if len(products) == 0 {
		return time.Time{}, false
	}
	earliest := products[0].ExpiryDate
	for _, p := range products[1:] {
		if p.ExpiryDate.Before(earliest) {
			earliest = p.ExpiryDate
		}
	}
	return earliest, true
}
