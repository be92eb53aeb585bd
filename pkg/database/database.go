package database

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema holds every document collection in one JSONB table. Expression
// indexes cover the fields the equality and ordering queries touch.
const schema = `
CREATE TABLE IF NOT EXISTS documents (
    collection text NOT NULL,
    id         uuid NOT NULL,
    data       jsonb NOT NULL,
    PRIMARY KEY (collection, id)
);
CREATE INDEX IF NOT EXISTS documents_sku_idx
    ON documents ((data->>'sku')) WHERE collection = 'products';
CREATE INDEX IF NOT EXISTS documents_expiry_idx
    ON documents (((data->>'expiry_date')::timestamptz)) WHERE collection = 'products';
CREATE INDEX IF NOT EXISTS documents_data_gin_idx
    ON documents USING gin (data jsonb_path_ops);
`

func NewPool(dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, err
	}

	log.Println("Database connected successfully")

	return pool, nil
}

// EnsureSchema creates the documents table and its indexes if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schema)
	return err
}
