package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"logitrack/internal/common"
	"logitrack/internal/models"
	"logitrack/internal/store"
)

// Ledger owns every product quantity mutation and records each one as an
// immutable stock movement. Mutating calls return the refreshed product
// snapshot (ordered by expiry date ascending) so callers decide how to use
// it instead of relying on a hidden shared cache.
type Ledger interface {
	Products(ctx context.Context) ([]*models.Product, error)
	SearchProducts(ctx context.Context, filter models.ProductSearchFilter) ([]*models.Product, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
	AddProduct(ctx context.Context, input AddProductInput) ([]*models.Product, error)
	UpdateProduct(ctx context.Context, id string, updates ProductUpdates) ([]*models.Product, error)
	DeleteProduct(ctx context.Context, id string) ([]*models.Product, error)
	AdjustStock(ctx context.Context, id string, delta int, batchNumber string) ([]*models.Product, error)
	Movements(ctx context.Context, productID string) ([]*models.StockMovement, error)
}

// AddProductInput carries the fields of a new catalog product.
type AddProductInput struct {
	Name              string    `json:"name"`
	SKU               string    `json:"sku"`
	Category          string    `json:"category"`
	Quantity          int       `json:"quantity"`
	ExpiryDate        time.Time `json:"expiry_date"`
	BatchNumber       string    `json:"batch_number"`
	StorageConditions string    `json:"storage_conditions"`
}

// ProductUpdates is a partial product merge. Quantity is deliberately absent:
// quantity moves only through AdjustStock so the movement ledger stays a
// complete audit trail.
type ProductUpdates struct {
	Name              *string    `json:"name,omitempty"`
	SKU               *string    `json:"sku,omitempty"`
	Category          *string    `json:"category,omitempty"`
	ExpiryDate        *time.Time `json:"expiry_date,omitempty"`
	BatchNumber       *string    `json:"batch_number,omitempty"`
	StorageConditions *string    `json:"storage_conditions,omitempty"`
}

type stockLedger struct {
	store store.Store
}

func NewLedger(st store.Store) Ledger {
	return &stockLedger{store: st}
}

// Products fetches the full snapshot ordered by expiry date ascending.
func (l *stockLedger) Products(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	err := l.store.Query(ctx, store.Products, store.Query{OrderBy: "expiry_date"}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// SearchProducts filters the snapshot in memory: substring query across name,
// SKU and category, plus exact and range criteria. Order stays expiry-ascending.
func (l *stockLedger) SearchProducts(ctx context.Context, filter models.ProductSearchFilter) ([]*models.Product, error) {
	products, err := l.Products(ctx)
	if err != nil {
		return nil, err
	}

	query := strings.ToLower(strings.TrimSpace(filter.Query))
	var matched []*models.Product
	for _, p := range products {
		if query != "" &&
			!strings.Contains(strings.ToLower(p.Name), query) &&
			!strings.Contains(strings.ToLower(p.SKU), query) &&
			!strings.Contains(strings.ToLower(p.Category), query) {
			continue
		}
		if filter.Category != nil && p.Category != *filter.Category {
			continue
		}
		if filter.BatchNumber != nil && p.BatchNumber != *filter.BatchNumber {
			continue
		}
		if filter.MinQuantity != nil && p.Quantity < *filter.MinQuantity {
			continue
		}
		if filter.MaxQuantity != nil && p.Quantity > *filter.MaxQuantity {
			continue
		}
		if filter.ExpiryBefore != nil && !p.ExpiryDate.Before(*filter.ExpiryBefore) {
			continue
		}
		if filter.ExpiryAfter != nil && !p.ExpiryDate.After(*filter.ExpiryAfter) {
			continue
		}
		matched = append(matched, p)
	}
	return matched, nil
}

func (l *stockLedger) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	product := &models.Product{}
	if err := l.store.Get(ctx, store.Products, id, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (l *stockLedger) AddProduct(ctx context.Context, input AddProductInput) ([]*models.Product, error) {
	if err := validateAddProduct(input); err != nil {
		return nil, err
	}

	// Point lookup before insert. Not atomic against concurrent writers;
	// see DESIGN.md for why the race is kept rather than closed here.
	existing, err := l.productsBySKU(ctx, input.SKU)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, common.ErrDuplicateSKU
	}

	movement := &models.StockMovement{
		ProductSKU:  input.SKU,
		Quantity:    input.Quantity,
		Direction:   models.MovementIn,
		BatchNumber: input.BatchNumber,
		RecordedBy:  principalID(ctx),
		Timestamp:   time.Now().UTC(),
	}
	movementID, err := l.store.Insert(ctx, store.StockMovements, movement)
	if err != nil {
		return nil, err
	}

	productID, err := l.store.Insert(ctx, store.Products, &input)
	if err != nil {
		return nil, err
	}

	// The movement is recorded before the product exists, so its product id
	// is back-filled here; otherwise the per-product trail would miss the
	// initial stock-in.
	if err := l.store.Update(ctx, store.StockMovements, movementID, map[string]any{"product_id": productID}); err != nil {
		return nil, err
	}
	return l.Products(ctx)
}

func (l *stockLedger) UpdateProduct(ctx context.Context, id string, updates ProductUpdates) ([]*models.Product, error) {
	partial := make(map[string]any)
	if updates.Name != nil {
		if strings.TrimSpace(*updates.Name) == "" {
			return nil, fmt.Errorf("%w: name cannot be empty", common.ErrValidation)
		}
		partial["name"] = *updates.Name
	}
	if updates.SKU != nil {
		sku := strings.TrimSpace(*updates.SKU)
		if sku == "" {
			return nil, fmt.Errorf("%w: sku cannot be empty", common.ErrValidation)
		}
		others, err := l.productsBySKU(ctx, sku)
		if err != nil {
			return nil, err
		}
		for _, p := range others {
			if p.ID != id {
				return nil, common.ErrDuplicateSKU
			}
		}
		partial["sku"] = sku
	}
	if updates.Category != nil {
		partial["category"] = *updates.Category
	}
	if updates.ExpiryDate != nil {
		partial["expiry_date"] = updates.ExpiryDate.UTC()
	}
	if updates.BatchNumber != nil {
		partial["batch_number"] = *updates.BatchNumber
	}
	if updates.StorageConditions != nil {
		partial["storage_conditions"] = *updates.StorageConditions
	}
	if len(partial) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields provided", common.ErrValidation)
	}

	if err := l.store.Update(ctx, store.Products, id, partial); err != nil {
		return nil, err
	}
	return l.Products(ctx)
}

func (l *stockLedger) DeleteProduct(ctx context.Context, id string) ([]*models.Product, error) {
	var referencing []*models.Shipment
	err := l.store.Query(ctx, store.Shipments, store.Query{
		Filters: []store.Filter{{
			Field: "products",
			Op:    store.OpArrayContains,
			Value: map[string]any{"product_id": id},
		}},
	}, &referencing)
	if err != nil {
		return nil, err
	}
	if len(referencing) > 0 {
		return nil, common.ErrReferencedByShipment
	}

	if err := l.store.Delete(ctx, store.Products, id); err != nil {
		return nil, err
	}
	return l.Products(ctx)
}

// AdjustStock applies delta to the product quantity inside one store
// transaction: the current quantity is re-read, checked against going
// negative, and the movement append plus quantity update commit together.
func (l *stockLedger) AdjustStock(ctx context.Context, id string, delta int, batchNumber string) ([]*models.Product, error) {
	if delta == 0 {
		return nil, fmt.Errorf("%w: adjustment cannot be zero", common.ErrValidation)
	}
	if strings.TrimSpace(batchNumber) == "" {
		return nil, fmt.Errorf("%w: batch number is required", common.ErrValidation)
	}

	recordedBy := principalID(ctx)
	err := l.store.Transact(ctx, func(tx store.Tx) error {
		product := &models.Product{}
		if err := tx.Get(ctx, store.Products, id, product); err != nil {
			return err
		}

		newQuantity := product.Quantity + delta
		if newQuantity < 0 {
			return common.ErrInsufficientStock
		}

		direction := models.MovementOut
		quantity := -delta
		if delta > 0 {
			direction = models.MovementIn
			quantity = delta
		}
		movement := &models.StockMovement{
			ProductID:   id,
			Quantity:    quantity,
			Direction:   direction,
			BatchNumber: batchNumber,
			RecordedBy:  recordedBy,
			Timestamp:   time.Now().UTC(),
		}
		if _, err := tx.Insert(ctx, store.StockMovements, movement); err != nil {
			return err
		}
		return tx.Update(ctx, store.Products, id, map[string]any{"quantity": newQuantity})
	})
	if err != nil {
		return nil, err
	}
	return l.Products(ctx)
}

// Movements returns the audit trail for one product, newest first.
func (l *stockLedger) Movements(ctx context.Context, productID string) ([]*models.StockMovement, error) {
	var movements []*models.StockMovement
	err := l.store.Query(ctx, store.StockMovements, store.Query{
		Filters: []store.Filter{{Field: "product_id", Op: store.OpEqual, Value: productID}},
		OrderBy: "timestamp",
		Desc:    true,
	}, &movements)
	if err != nil {
		return nil, err
	}
	return movements, nil
}

func (l *stockLedger) productsBySKU(ctx context.Context, sku string) ([]*models.Product, error) {
	var products []*models.Product
	err := l.store.Query(ctx, store.Products, store.Query{
		Filters: []store.Filter{{Field: "sku", Op: store.OpEqual, Value: sku}},
	}, &products)
	if err != nil {
		return nil, err
	}
	return products, nil
}

func validateAddProduct(input AddProductInput) error {
	if err := common.ValidateRequiredString(input.Name, "name"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateRequiredString(input.SKU, "sku"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateRequiredString(input.Category, "category"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if err := common.ValidateRequiredString(input.BatchNumber, "batch number"); err != nil {
		return fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if input.Quantity < 0 {
		return fmt.Errorf("%w: quantity cannot be negative", common.ErrValidation)
	}
	if input.ExpiryDate.IsZero() {
		return fmt.Errorf("%w: expiry date is required", common.ErrValidation)
	}
	return nil
}

func principalID(ctx context.Context) string {
	if p, ok := common.GetPrincipalFromContext(ctx); ok {
		return p.ID
	}
	return ""
}
