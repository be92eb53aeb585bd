package models

import "time"

// Movement directions for the stock ledger
const (
	MovementIn  = "in"
	MovementOut = "out"
)

// StockMovement is one immutable entry in the stock audit ledger.
// Movements are appended once per stock-affecting operation and never
// mutated or deleted.
type StockMovement struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	ProductSKU  string    `json:"product_sku,omitempty"`
	Quantity    int       `json:"quantity"` // always positive; sign is carried by Direction
	Direction   string    `json:"direction"`
	BatchNumber string    `json:"batch_number"`
	RecordedBy  string    `json:"recorded_by,omitempty"` // principal id from the session
	Timestamp   time.Time `json:"timestamp"`
}
