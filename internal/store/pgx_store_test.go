package store

import (
	"context"
	"errors"
	"testing"

	"logitrack/internal/common"
	"logitrack/internal/models"

	"github.com/google/uuid"
	pgx "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type PgxStoreTestSuite struct {
	suite.Suite
	mock    pgxmock.PgxPoolIface
	store   *PgxStore
	context context.Context
}

func (suite *PgxStoreTestSuite) SetupTest() {
	mock, err := pgxmock.NewPool()
	assert.NoError(suite.T(), err)
	suite.mock = mock

	suite.store = NewPgxStore(mock)
	suite.context = context.Background()
}

func (suite *PgxStoreTestSuite) TearDownTest() {
	suite.mock.Close()
}

func TestPgxStoreTestSuite(t *testing.T) {
	suite.Run(t, new(PgxStoreTestSuite))
}

func (suite *PgxStoreTestSuite) TestInsert_Success() {
	suite.mock.ExpectExec(`INSERT INTO documents \(collection, id, data\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(Products, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	id, err := suite.store.Insert(suite.context, Products, map[string]any{
		"name": "Amoxicillin 500mg",
		"sku":  "RX-100",
	})
	assert.NoError(suite.T(), err)
	_, parseErr := uuid.Parse(id)
	assert.NoError(suite.T(), parseErr, "generated id should be a uuid")
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *PgxStoreTestSuite) TestInsert_DatabaseError() {
	suite.mock.ExpectExec(`INSERT INTO documents \(collection, id, data\) VALUES \(\$1, \$2, \$3\)`).
		WithArgs(Products, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection refused"))

	_, err := suite.store.Insert(suite.context, Products, map[string]any{"name": "x"})
	assert.Error(suite.T(), err)
	assert.ErrorIs(suite.T(), err, common.ErrStoreUnavailable)
}

func (suite *PgxStoreTestSuite) TestGet_Success() {
	id := uuid.New().String()
	doc := `{"id":"` + id + `","name":"Amoxicillin 500mg","sku":"RX-100","quantity":50}`

	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(doc)))

	var product models.Product
	err := suite.store.Get(suite.context, Products, id, &product)
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "RX-100", product.SKU)
	assert.Equal(suite.T(), 50, product.Quantity)
}

func (suite *PgxStoreTestSuite) TestGet_NotFound() {
	id := uuid.New().String()

	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnError(pgx.ErrNoRows)

	var product models.Product
	err := suite.store.Get(suite.context, Products, id, &product)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *PgxStoreTestSuite) TestUpdate_Success() {
	id := uuid.New().String()

	suite.mock.ExpectExec(`UPDATE documents SET data = data \|\| \$3 WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := suite.store.Update(suite.context, Products, id, map[string]any{"quantity": 30})
	assert.NoError(suite.T(), err)
	assert.NoError(suite.T(), suite.mock.ExpectationsWereMet())
}

func (suite *PgxStoreTestSuite) TestUpdate_NotFound() {
	id := uuid.New().String()

	suite.mock.ExpectExec(`UPDATE documents SET data = data \|\| \$3 WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := suite.store.Update(suite.context, Products, id, map[string]any{"quantity": 30})
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *PgxStoreTestSuite) TestDelete_Success() {
	id := uuid.New().String()

	suite.mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := suite.store.Delete(suite.context, Products, id)
	assert.NoError(suite.T(), err)
}

func (suite *PgxStoreTestSuite) TestDelete_NotFound() {
	id := uuid.New().String()

	suite.mock.ExpectExec(`DELETE FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err := suite.store.Delete(suite.context, Products, id)
	assert.ErrorIs(suite.T(), err, common.ErrNotFound)
}

func (suite *PgxStoreTestSuite) TestQuery_EqualityFilter() {
	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"p1","name":"Amoxicillin","sku":"RX-100","quantity":50}`))

	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND data->'sku' = \$2::jsonb`).
		WithArgs(Products, `"RX-100"`).
		WillReturnRows(rows)

	var products []*models.Product
	err := suite.store.Query(suite.context, Products, Query{
		Filters: []Filter{{Field: "sku", Op: OpEqual, Value: "RX-100"}},
	}, &products)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), products, 1)
	assert.Equal(suite.T(), "RX-100", products[0].SKU)
}

func (suite *PgxStoreTestSuite) TestQuery_ArrayContainsFilter() {
	productID := uuid.New().String()
	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"s1","status":"pending"}`))

	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND data->'products' @> \$2::jsonb`).
		WithArgs(Shipments, `[{"product_id":"`+productID+`"}]`).
		WillReturnRows(rows)

	var shipments []*models.Shipment
	err := suite.store.Query(suite.context, Shipments, Query{
		Filters: []Filter{{Field: "products", Op: OpArrayContains, Value: map[string]any{"product_id": productID}}},
	}, &shipments)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), shipments, 1)
}

func (suite *PgxStoreTestSuite) TestQuery_OrderBy() {
	rows := pgxmock.NewRows([]string{"data"}).
		AddRow([]byte(`{"id":"p1","sku":"RX-100"}`)).
		AddRow([]byte(`{"id":"p2","sku":"RX-200"}`))

	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 ORDER BY \(data->>'expiry_date'\)::timestamptz ASC`).
		WithArgs(Products).
		WillReturnRows(rows)

	var products []*models.Product
	err := suite.store.Query(suite.context, Products, Query{OrderBy: "expiry_date"}, &products)
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), products, 2)
	assert.Equal(suite.T(), "RX-100", products[0].SKU)
}

func (suite *PgxStoreTestSuite) TestQuery_OrderByDescending() {
	rows := pgxmock.NewRows([]string{"data"})

	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 ORDER BY \(data->>'created_at'\)::timestamptz DESC`).
		WithArgs(Shipments).
		WillReturnRows(rows)

	var shipments []*models.Shipment
	err := suite.store.Query(suite.context, Shipments, Query{OrderBy: "created_at", Desc: true}, &shipments)
	assert.NoError(suite.T(), err)
	assert.Empty(suite.T(), shipments)
}

func (suite *PgxStoreTestSuite) TestQuery_UnsupportedOp() {
	var products []*models.Product
	err := suite.store.Query(suite.context, Products, Query{
		Filters: []Filter{{Field: "quantity", Op: "<", Value: 10}},
	}, &products)
	assert.Error(suite.T(), err)
	assert.Contains(suite.T(), err.Error(), "unsupported filter op")
}

func (suite *PgxStoreTestSuite) TestTransact_CommitsOnSuccess() {
	id := uuid.New().String()
	doc := `{"id":"` + id + `","sku":"RX-100","quantity":50}`

	suite.mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(doc)))
	suite.mock.ExpectExec(`UPDATE documents SET data = data \|\| \$3 WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectCommit()

	err := suite.store.Transact(suite.context, func(tx Tx) error {
		var product models.Product
		if err := tx.Get(suite.context, Products, id, &product); err != nil {
			return err
		}
		return tx.Update(suite.context, Products, id, map[string]any{"quantity": product.Quantity - 20})
	})
	assert.NoError(suite.T(), err)
}

func (suite *PgxStoreTestSuite) TestTransact_RollsBackOnBodyError() {
	id := uuid.New().String()
	wantErr := errors.New("insufficient stock")

	suite.mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"id":"` + id + `","quantity":5}`)))
	suite.mock.ExpectRollback()

	err := suite.store.Transact(suite.context, func(tx Tx) error {
		var product models.Product
		if err := tx.Get(suite.context, Products, id, &product); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(suite.T(), err, wantErr)
}

func (suite *PgxStoreTestSuite) TestTransact_RetriesSerializationFailure() {
	id := uuid.New().String()
	doc := `{"id":"` + id + `","quantity":50}`

	// First attempt hits a write conflict and is rolled back.
	suite.mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnError(&pgconn.PgError{Code: "40001"})
	suite.mock.ExpectRollback()

	// Second attempt succeeds.
	suite.mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id).
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(doc)))
	suite.mock.ExpectExec(`UPDATE documents SET data = data \|\| \$3 WHERE collection = \$1 AND id = \$2`).
		WithArgs(Products, id, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	suite.mock.ExpectCommit()

	attempts := 0
	err := suite.store.Transact(suite.context, func(tx Tx) error {
		attempts++
		var product models.Product
		if err := tx.Get(suite.context, Products, id, &product); err != nil {
			return err
		}
		return tx.Update(suite.context, Products, id, map[string]any{"quantity": 30})
	})
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, attempts)
}

func (suite *PgxStoreTestSuite) TestTransact_GivesUpAfterMaxRetries() {
	id := uuid.New().String()

	for i := 0; i < txMaxRetries; i++ {
		suite.mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
		suite.mock.ExpectQuery(`SELECT data FROM documents WHERE collection = \$1 AND id = \$2`).
			WithArgs(Products, id).
			WillReturnError(&pgconn.PgError{Code: "40001"})
		suite.mock.ExpectRollback()
	}

	err := suite.store.Transact(suite.context, func(tx Tx) error {
		var product models.Product
		return tx.Get(suite.context, Products, id, &product)
	})
	assert.ErrorIs(suite.T(), err, common.ErrStoreUnavailable)
}
