package storage

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

var sqliteDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS local_store (
			store_key  TEXT    NOT NULL PRIMARY KEY,
			value      TEXT    NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id             TEXT    NOT NULL PRIMARY KEY,
			request_id     TEXT    NOT NULL,
			customer_name  TEXT    NOT NULL,
			delivery       TEXT    NOT NULL,
			items          TEXT    NOT NULL,
			total_quantity INTEGER NOT NULL,
			total          TEXT    NOT NULL,
			status         TEXT    NOT NULL,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders (created_at)`,
	},
	upsertValue: `
		INSERT INTO local_store (store_key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(store_key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	insertOrder: `
		INSERT INTO orders (id, request_id, customer_name, delivery, items, total_quantity, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
}

// SQLiteAdapter is the embedded durable store: a single file next to the agent.
type SQLiteAdapter struct {
	sqlStore
}

func NewSQLiteAdapter(db *sql.DB) *SQLiteAdapter {
	return &SQLiteAdapter{sqlStore{db: db, d: sqliteDialect}}
}

// OpenSQLite opens path (":memory:" works) with a single connection, which
// keeps an in-memory database alive and serialises writers.
func OpenSQLite(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure sqlite: %w", err)
	}
	return db, nil
}
