package store

import (
	"context"
	"errors"
	"testing"

	"logitrack/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_InsertStampsDocument(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, Products, map[string]any{"name": "Amoxicillin", "sku": "RX-100"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	var doc map[string]any
	require.NoError(t, s.Get(ctx, Products, id, &doc))
	assert.Equal(t, id, doc["id"])
	assert.NotEmpty(t, doc["created_at"])
	assert.Equal(t, doc["created_at"], doc["updated_at"])
}

func TestMemoryStore_UpdateMergesPartial(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, Products, map[string]any{"name": "Amoxicillin", "quantity": 50})
	require.NoError(t, err)

	require.NoError(t, s.Update(ctx, Products, id, map[string]any{"quantity": 30}))

	var doc map[string]any
	require.NoError(t, s.Get(ctx, Products, id, &doc))
	assert.Equal(t, "Amoxicillin", doc["name"], "untouched fields survive the merge")
	assert.Equal(t, float64(30), doc["quantity"])
}

func TestMemoryStore_GetMissing(t *testing.T) {
	s := NewMemoryStore()
	var doc map[string]any
	err := s.Get(context.Background(), Products, "no-such-id", &doc)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestMemoryStore_QueryArrayContains(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, Shipments, map[string]any{
		"status":   "pending",
		"products": []map[string]any{{"product_id": "p1", "quantity": 5}},
	})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Shipments, map[string]any{
		"status":   "pending",
		"products": []map[string]any{{"product_id": "p2", "quantity": 3}},
	})
	require.NoError(t, err)

	var matched []map[string]any
	err = s.Query(ctx, Shipments, Query{
		Filters: []Filter{{Field: "products", Op: OpArrayContains, Value: map[string]any{"product_id": "p1"}}},
	}, &matched)
	require.NoError(t, err)
	assert.Len(t, matched, 1)
}

func TestMemoryStore_TransactRollsBackOnError(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	id, err := s.Insert(ctx, Products, map[string]any{"quantity": 50})
	require.NoError(t, err)

	wantErr := errors.New("abort")
	err = s.Transact(ctx, func(tx Tx) error {
		if err := tx.Update(ctx, Products, id, map[string]any{"quantity": 0}); err != nil {
			return err
		}
		if _, err := tx.Insert(ctx, StockMovements, map[string]any{"product_id": id}); err != nil {
			return err
		}
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)

	var doc map[string]any
	require.NoError(t, s.Get(ctx, Products, id, &doc))
	assert.Equal(t, float64(50), doc["quantity"], "failed transaction leaves no trace")

	var movements []map[string]any
	require.NoError(t, s.Query(ctx, StockMovements, Query{}, &movements))
	assert.Empty(t, movements)
}

func TestMemoryStore_OrderByTimestampField(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Insert(ctx, Products, map[string]any{"sku": "B", "expiry_date": "2026-06-01T00:00:00Z"})
	require.NoError(t, err)
	_, err = s.Insert(ctx, Products, map[string]any{"sku": "A", "expiry_date": "2026-01-15T00:00:00Z"})
	require.NoError(t, err)

	var docs []map[string]any
	require.NoError(t, s.Query(ctx, Products, Query{OrderBy: "expiry_date"}, &docs))
	require.Len(t, docs, 2)
	assert.Equal(t, "A", docs[0]["sku"])
	assert.Equal(t, "B", docs[1]["sku"])
}
