package models

import "time"

// ProductSearchFilter holds filter criteria for product snapshot queries
type ProductSearchFilter struct {
	Query        string     `json:"query,omitempty"`         // Substring match across name, SKU, category
	Category     *string    `json:"category,omitempty"`      // Exact category match
	BatchNumber  *string    `json:"batch_number,omitempty"`  // Exact batch match
	MinQuantity  *int       `json:"min_quantity,omitempty"`  // Minimum stock quantity
	MaxQuantity  *int       `json:"max_quantity,omitempty"`  // Maximum stock quantity
	ExpiryBefore *time.Time `json:"expiry_before,omitempty"` // Expiry before date
	ExpiryAfter  *time.Time `json:"expiry_after,omitempty"`  // Expiry after date
}

type Product struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SKU               string    `json:"sku"`
	Category          string    `json:"category"`
	Quantity          int       `json:"quantity"`
	ExpiryDate        time.Time `json:"expiry_date"`
	BatchNumber       string    `json:"batch_number"`
	StorageConditions string    `json:"storage_conditions"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
