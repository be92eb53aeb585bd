package store

import "context"

// Collection names used by the service.
const (
	Products       = "products"
	StockMovements = "stock_movements"
	Shipments      = "shipments"
	Users          = "users"
)

// Filter operators.
const (
	OpEqual         = "=="
	OpArrayContains = "array-contains"
)

// Filter is a single predicate over a document field. OpEqual compares the
// field value; OpArrayContains matches when the array field contains an
// element with at least the given fields (partial object containment).
type Filter struct {
	Field string
	Op    string
	Value any
}

// Query describes a filtered, optionally ordered read of a collection.
type Query struct {
	Filters []Filter
	OrderBy string // document field holding an RFC3339 timestamp or scalar
	Desc    bool
}

// Tx exposes the store operations valid inside a transaction. The whole
// transaction body either commits atomically or not at all; the store retries
// the body on write conflict.
type Tx interface {
	Get(ctx context.Context, collection, id string, dest any) error
	Insert(ctx context.Context, collection string, record any) (string, error)
	Update(ctx context.Context, collection, id string, partial map[string]any) error
}

// Store is the document database collaborator. Records are arbitrary
// JSON-serializable values; the store assigns ids and created_at/updated_at
// timestamps on insert and refreshes updated_at on update.
//
// Missing documents surface as common.ErrNotFound; transport and backend
// failures are wrapped in common.ErrStoreUnavailable.
type Store interface {
	Insert(ctx context.Context, collection string, record any) (string, error)
	Get(ctx context.Context, collection, id string, dest any) error
	Update(ctx context.Context, collection, id string, partial map[string]any) error
	Delete(ctx context.Context, collection, id string) error
	// Query decodes matching documents into dest, which must be a pointer to
	// a slice.
	Query(ctx context.Context, collection string, q Query, dest any) error
	Transact(ctx context.Context, fn func(tx Tx) error) error
}
