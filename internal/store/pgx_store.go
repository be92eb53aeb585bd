package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"

	"logitrack/internal/common"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// txMaxRetries bounds how often a serializable transaction body is re-run on
// write conflict before the failure is surfaced to the caller.
const txMaxRetries = 5

// PgxIface is the subset of pgxpool.Pool the store needs. pgxmock satisfies
// it in tests.
type PgxIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// dbConn is what the document operations need; both the pool and an open
// pgx.Tx provide it.
type dbConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxStore implements Store on a single PostgreSQL table of JSONB documents:
//
//	CREATE TABLE documents (
//	    collection text NOT NULL,
//	    id         uuid NOT NULL,
//	    data       jsonb NOT NULL,
//	    PRIMARY KEY (collection, id)
//	);
type PgxStore struct {
	db PgxIface
}

func NewPgxStore(db PgxIface) *PgxStore {
	return &PgxStore{db: db}
}

func (s *PgxStore) Insert(ctx context.Context, collection string, record any) (string, error) {
	return insertDoc(ctx, s.db, collection, record)
}

func (s *PgxStore) Get(ctx context.Context, collection, id string, dest any) error {
	return getDoc(ctx, s.db, collection, id, dest)
}

func (s *PgxStore) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	return updateDoc(ctx, s.db, collection, id, partial)
}

func (s *PgxStore) Delete(ctx context.Context, collection, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return wrapStoreErr(err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (s *PgxStore) Query(ctx context.Context, collection string, q Query, dest any) error {
	sql := `SELECT data FROM documents WHERE collection = $1`
	args := []any{collection}

	for _, f := range q.Filters {
		n := len(args) + 1
		value, err := json.Marshal(f.Value)
		if err != nil {
			return fmt.Errorf("marshal filter value for %s: %w", f.Field, err)
		}
		switch f.Op {
		case OpEqual:
			sql += fmt.Sprintf(` AND data->'%s' = $%d::jsonb`, f.Field, n)
			args = append(args, string(value))
		case OpArrayContains:
			sql += fmt.Sprintf(` AND data->'%s' @> $%d::jsonb`, f.Field, n)
			args = append(args, "["+string(value)+"]")
		default:
			return fmt.Errorf("unsupported filter op %q", f.Op)
		}
	}

	if q.OrderBy != "" {
		direction := "ASC"
		if q.Desc {
			direction = "DESC"
		}
		// Ordered fields hold RFC3339 timestamps (see Store docs).
		sql += fmt.Sprintf(` ORDER BY (data->>'%s')::timestamptz %s`, q.OrderBy, direction)
	}

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return wrapStoreErr(err)
	}
	defer rows.Close()

	slice := reflect.ValueOf(dest).Elem()
	slice.SetLen(0)
	elemType := slice.Type().Elem()
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return wrapStoreErr(err)
		}
		elem := reflect.New(elemType)
		if err := json.Unmarshal(data, elem.Interface()); err != nil {
			return fmt.Errorf("decode %s document: %w", collection, err)
		}
		slice.Set(reflect.Append(slice, elem.Elem()))
	}
	if err := rows.Err(); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// Transact runs fn in a serializable transaction and re-runs the whole body
// when the database reports a write conflict, so the body's effects commit
// atomically or not at all.
func (s *PgxStore) Transact(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 0; attempt < txMaxRetries; attempt++ {
		err = s.runTx(ctx, fn)
		if err == nil || !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("%w: transaction conflict persisted after %d attempts", common.ErrStoreUnavailable, txMaxRetries)
}

func (s *PgxStore) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return wrapStoreErr(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgxTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// pgxTx scopes document operations to an open transaction.
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Get(ctx context.Context, collection, id string, dest any) error {
	return getDoc(ctx, t.tx, collection, id, dest)
}

func (t *pgxTx) Insert(ctx context.Context, collection string, record any) (string, error) {
	return insertDoc(ctx, t.tx, collection, record)
}

func (t *pgxTx) Update(ctx context.Context, collection, id string, partial map[string]any) error {
	return updateDoc(ctx, t.tx, collection, id, partial)
}

func insertDoc(ctx context.Context, db dbConn, collection string, record any) (string, error) {
	doc, err := encodeRecord(record)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	doc["id"] = id
	doc["created_at"] = now
	doc["updated_at"] = now

	data, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("marshal %s document: %w", collection, err)
	}
	if _, err := db.Exec(ctx,
		`INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3)`,
		collection, id, data); err != nil {
		return "", wrapStoreErr(err)
	}
	return id, nil
}

func getDoc(ctx context.Context, db dbConn, collection, id string, dest any) error {
	var data []byte
	err := db.QueryRow(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&data)
	if err != nil {
		return wrapStoreErr(err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode %s document: %w", collection, err)
	}
	return nil
}

func updateDoc(ctx context.Context, db dbConn, collection, id string, partial map[string]any) error {
	merged := make(map[string]any, len(partial)+1)
	for k, v := range partial {
		merged[k] = v
	}
	merged["updated_at"] = time.Now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal %s partial: %w", collection, err)
	}
	tag, err := db.Exec(ctx,
		`UPDATE documents SET data = data || $3 WHERE collection = $1 AND id = $2`,
		collection, id, data)
	if err != nil {
		return wrapStoreErr(err)
	}
	if tag.RowsAffected() == 0 {
		return common.ErrNotFound
	}
	return nil
}

// encodeRecord flattens any JSON-serializable record into a document map so
// the store can stamp id and timestamps.
func encodeRecord(record any) (map[string]any, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("record is not a JSON object: %w", err)
	}
	return doc, nil
}

func wrapStoreErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return common.ErrNotFound
	}
	if isSerializationFailure(err) {
		// Left unwrapped so Transact can recognize and retry it.
		return err
	}
	return fmt.Errorf("%w: %v", common.ErrStoreUnavailable, err)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}
