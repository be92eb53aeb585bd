package ledger

import (
	"context"
	"testing"
	"time"

	"logitrack/internal/common"
	"logitrack/internal/models"
	"logitrack/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LedgerTestSuite struct {
	suite.Suite
	store  *store.MemoryStore
	ledger Ledger
	ctx    context.Context
}

func (s *LedgerTestSuite) SetupTest() {
	s.store = store.NewMemoryStore()
	s.ledger = NewLedger(s.store)
	s.ctx = common.WithPrincipal(context.Background(), common.Principal{
		ID:    "user-1",
		Email: "ops@example.com",
	})
}

func TestLedgerTestSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) addProduct(sku string, quantity int, expiry time.Time) *models.Product {
	products, err := s.ledger.AddProduct(s.ctx, AddProductInput{
		Name:              "Product " + sku,
		SKU:               sku,
		Category:          "pharma",
		Quantity:          quantity,
		ExpiryDate:        expiry,
		BatchNumber:       "B1",
		StorageConditions: "cool and dry",
	})
	s.Require().NoError(err)
	for _, p := range products {
		if p.SKU == sku {
			return p
		}
	}
	s.FailNow("added product missing from snapshot")
	return nil
}

func (s *LedgerTestSuite) allMovements() []*models.StockMovement {
	var movements []*models.StockMovement
	err := s.store.Query(s.ctx, store.StockMovements, store.Query{}, &movements)
	s.Require().NoError(err)
	return movements
}

func (s *LedgerTestSuite) TestAddProduct_RecordsInMovement() {
	expiry := time.Now().UTC().AddDate(0, 0, 60).Truncate(24 * time.Hour)
	product := s.addProduct("RX-100", 50, expiry)

	assert.Equal(s.T(), 50, product.Quantity)
	assert.False(s.T(), product.CreatedAt.IsZero(), "store assigns creation timestamp")

	movements := s.allMovements()
	assert.Len(s.T(), movements, 1)
	assert.Equal(s.T(), models.MovementIn, movements[0].Direction)
	assert.Equal(s.T(), 50, movements[0].Quantity)
	assert.Equal(s.T(), "RX-100", movements[0].ProductSKU)
	assert.Equal(s.T(), "user-1", movements[0].RecordedBy)
}

func (s *LedgerTestSuite) TestMovements_IncludeInitialStockIn() {
	product := s.addProduct("RX-100", 50, time.Now().UTC().AddDate(0, 0, 60))

	movements, err := s.ledger.Movements(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Len(movements, 1, "initial stock-in is part of the product's trail")
	assert.Equal(s.T(), models.MovementIn, movements[0].Direction)
	assert.Equal(s.T(), 50, movements[0].Quantity)
	assert.Equal(s.T(), product.ID, movements[0].ProductID)
	assert.Equal(s.T(), "RX-100", movements[0].ProductSKU)
}

func (s *LedgerTestSuite) TestAddProduct_ValidationFailureLeavesNothing() {
	_, err := s.ledger.AddProduct(s.ctx, AddProductInput{
		SKU:         "RX-100",
		Category:    "pharma",
		Quantity:    -1,
		BatchNumber: "B1",
	})
	assert.ErrorIs(s.T(), err, common.ErrValidation)

	products, err := s.ledger.Products(s.ctx)
	s.Require().NoError(err)
	assert.Empty(s.T(), products)
	assert.Empty(s.T(), s.allMovements())
}

func (s *LedgerTestSuite) TestAddProduct_DuplicateSKU() {
	expiry := time.Now().UTC().AddDate(0, 0, 30)
	s.addProduct("RX-200", 10, expiry)

	_, err := s.ledger.AddProduct(s.ctx, AddProductInput{
		Name:        "Duplicate",
		SKU:         "RX-200",
		Category:    "pharma",
		Quantity:    5,
		ExpiryDate:  expiry,
		BatchNumber: "B2",
	})
	assert.ErrorIs(s.T(), err, common.ErrDuplicateSKU)

	products, err := s.ledger.Products(s.ctx)
	s.Require().NoError(err)
	assert.Len(s.T(), products, 1, "product count unchanged")
	assert.Len(s.T(), s.allMovements(), 1, "no movement recorded for the rejected add")
}

func (s *LedgerTestSuite) TestSnapshot_OrderedByExpiryAscending() {
	now := time.Now().UTC()
	s.addProduct("RX-300", 10, now.AddDate(0, 0, 90))
	s.addProduct("RX-100", 10, now.AddDate(0, 0, 10))
	s.addProduct("RX-200", 10, now.AddDate(0, 0, 45))

	products, err := s.ledger.Products(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(products, 3)
	assert.Equal(s.T(), "RX-100", products[0].SKU)
	assert.Equal(s.T(), "RX-200", products[1].SKU)
	assert.Equal(s.T(), "RX-300", products[2].SKU)
}

func (s *LedgerTestSuite) TestAdjustStock_Scenario() {
	// Add RX-100 with quantity 50; -20 succeeds, a further -50 must fail
	// and leave the quantity at 30.
	expiry := time.Now().UTC().AddDate(0, 0, 60)
	product := s.addProduct("RX-100", 50, expiry)

	products, err := s.ledger.AdjustStock(s.ctx, product.ID, -20, "B1")
	s.Require().NoError(err)
	assert.Equal(s.T(), 30, products[0].Quantity)

	movements, err := s.ledger.Movements(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Len(movements, 2, "initial stock-in plus the adjustment, newest first")
	assert.Equal(s.T(), models.MovementOut, movements[0].Direction)
	assert.Equal(s.T(), 20, movements[0].Quantity)
	assert.Equal(s.T(), "B1", movements[0].BatchNumber)
	assert.Equal(s.T(), models.MovementIn, movements[1].Direction)

	_, err = s.ledger.AdjustStock(s.ctx, product.ID, -50, "B1")
	assert.ErrorIs(s.T(), err, common.ErrInsufficientStock)

	refetched, err := s.ledger.GetProduct(s.ctx, product.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), 30, refetched.Quantity, "failed adjustment leaves quantity unchanged")

	movements, err = s.ledger.Movements(s.ctx, product.ID)
	s.Require().NoError(err)
	assert.Len(s.T(), movements, 2, "failed adjustment appends no movement")
}

func (s *LedgerTestSuite) TestAdjustStock_PositiveDelta() {
	product := s.addProduct("RX-400", 5, time.Now().UTC().AddDate(0, 0, 60))

	products, err := s.ledger.AdjustStock(s.ctx, product.ID, 15, "B7")
	s.Require().NoError(err)
	assert.Equal(s.T(), 20, products[0].Quantity)

	movements, err := s.ledger.Movements(s.ctx, product.ID)
	s.Require().NoError(err)
	s.Require().Len(movements, 2)
	assert.Equal(s.T(), models.MovementIn, movements[0].Direction)
	assert.Equal(s.T(), 15, movements[0].Quantity)
	assert.Equal(s.T(), 5, movements[1].Quantity, "initial stock-in stays oldest")
}

func (s *LedgerTestSuite) TestAdjustStock_ZeroDeltaRejected() {
	product := s.addProduct("RX-500", 5, time.Now().UTC().AddDate(0, 0, 60))

	_, err := s.ledger.AdjustStock(s.ctx, product.ID, 0, "B1")
	assert.ErrorIs(s.T(), err, common.ErrValidation)
}

func (s *LedgerTestSuite) TestAdjustStock_MissingProduct() {
	_, err := s.ledger.AdjustStock(s.ctx, "no-such-id", -1, "B1")
	assert.ErrorIs(s.T(), err, common.ErrNotFound)
}

func (s *LedgerTestSuite) TestUpdateProduct_SKUCollision() {
	expiry := time.Now().UTC().AddDate(0, 0, 30)
	s.addProduct("RX-100", 10, expiry)
	other := s.addProduct("RX-200", 10, expiry.AddDate(0, 0, 1))

	sku := "RX-100"
	_, err := s.ledger.UpdateProduct(s.ctx, other.ID, ProductUpdates{SKU: &sku})
	assert.ErrorIs(s.T(), err, common.ErrDuplicateSKU)

	// Re-submitting a product's own SKU is not a collision.
	own := "RX-200"
	_, err = s.ledger.UpdateProduct(s.ctx, other.ID, ProductUpdates{SKU: &own})
	assert.NoError(s.T(), err)
}

func (s *LedgerTestSuite) TestUpdateProduct_MergesAndRefreshesTimestamp() {
	product := s.addProduct("RX-100", 10, time.Now().UTC().AddDate(0, 0, 30))

	name := "Renamed"
	products, err := s.ledger.UpdateProduct(s.ctx, product.ID, ProductUpdates{Name: &name})
	s.Require().NoError(err)
	assert.Equal(s.T(), "Renamed", products[0].Name)
	assert.Equal(s.T(), "RX-100", products[0].SKU, "unset fields are untouched")
	assert.True(s.T(), products[0].UpdatedAt.After(product.UpdatedAt) || products[0].UpdatedAt.Equal(product.UpdatedAt))

	movements, err := s.ledger.Movements(s.ctx, product.ID)
	s.Require().NoError(err)
	assert.Len(s.T(), movements, 1, "updates never append to the movement ledger")
}

func (s *LedgerTestSuite) TestSearchProducts() {
	now := time.Now().UTC()
	s.addProduct("RX-100", 5, now.AddDate(0, 0, 10))
	s.addProduct("RX-200", 40, now.AddDate(0, 0, 45))
	products, err := s.ledger.AddProduct(s.ctx, AddProductInput{
		Name:        "Saline Drip",
		SKU:         "IV-300",
		Category:    "fluids",
		Quantity:    80,
		ExpiryDate:  now.AddDate(0, 0, 90),
		BatchNumber: "B9",
	})
	s.Require().NoError(err)
	s.Require().Len(products, 3)

	// Substring query matches name, SKU and category, case-insensitive.
	matched, err := s.ledger.SearchProducts(s.ctx, models.ProductSearchFilter{Query: "rx-"})
	s.Require().NoError(err)
	s.Require().Len(matched, 2)
	assert.Equal(s.T(), "RX-100", matched[0].SKU, "search preserves expiry ordering")

	matched, err = s.ledger.SearchProducts(s.ctx, models.ProductSearchFilter{Query: "FLUIDS"})
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	assert.Equal(s.T(), "IV-300", matched[0].SKU)

	// Range and exact criteria combine.
	minQty := 10
	batch := "B1"
	matched, err = s.ledger.SearchProducts(s.ctx, models.ProductSearchFilter{
		MinQuantity: &minQty,
		BatchNumber: &batch,
	})
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	assert.Equal(s.T(), "RX-200", matched[0].SKU)

	cutoff := now.AddDate(0, 0, 30)
	matched, err = s.ledger.SearchProducts(s.ctx, models.ProductSearchFilter{ExpiryBefore: &cutoff})
	s.Require().NoError(err)
	s.Require().Len(matched, 1)
	assert.Equal(s.T(), "RX-100", matched[0].SKU)

	matched, err = s.ledger.SearchProducts(s.ctx, models.ProductSearchFilter{Query: "no-such-thing"})
	s.Require().NoError(err)
	assert.Empty(s.T(), matched)
}

func (s *LedgerTestSuite) TestUpdateProduct_EmptyUpdateRejected() {
	product := s.addProduct("RX-100", 10, time.Now().UTC().AddDate(0, 0, 30))

	_, err := s.ledger.UpdateProduct(s.ctx, product.ID, ProductUpdates{})
	assert.ErrorIs(s.T(), err, common.ErrValidation)
}

func (s *LedgerTestSuite) TestDeleteProduct_BlockedByShipmentReference() {
	product := s.addProduct("RX-100", 10, time.Now().UTC().AddDate(0, 0, 30))

	_, err := s.store.Insert(s.ctx, store.Shipments, &models.Shipment{
		Status: models.ShipmentPending,
		Products: []models.ShipmentProduct{
			{ProductID: product.ID, Quantity: 2, BatchNumber: "B1"},
		},
		Driver:  "D. Driver",
		Vehicle: "TRK-1",
	})
	s.Require().NoError(err)

	_, err = s.ledger.DeleteProduct(s.ctx, product.ID)
	assert.ErrorIs(s.T(), err, common.ErrReferencedByShipment)

	still, err := s.ledger.GetProduct(s.ctx, product.ID)
	s.Require().NoError(err)
	assert.Equal(s.T(), product.ID, still.ID)
}

func (s *LedgerTestSuite) TestDeleteProduct_Unreferenced() {
	product := s.addProduct("RX-100", 10, time.Now().UTC().AddDate(0, 0, 30))

	products, err := s.ledger.DeleteProduct(s.ctx, product.ID)
	s.Require().NoError(err)
	assert.Empty(s.T(), products)

	_, err = s.ledger.GetProduct(s.ctx, product.ID)
	assert.ErrorIs(s.T(), err, common.ErrNotFound)
}
