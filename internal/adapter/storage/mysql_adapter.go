package storage

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

const mysqlDuplicateEntry = 1062

var mysqlDialect = dialect{
	schema: []string{
		`CREATE TABLE IF NOT EXISTS local_store (
			store_key  VARCHAR(191) NOT NULL PRIMARY KEY,
			value      MEDIUMTEXT   NOT NULL,
			updated_at BIGINT       NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id             VARCHAR(64)  NOT NULL PRIMARY KEY,
			request_id     VARCHAR(64)  NOT NULL,
			customer_name  VARCHAR(255) NOT NULL,
			delivery       VARCHAR(32)  NOT NULL,
			items          MEDIUMTEXT   NOT NULL,
			total_quantity INT          NOT NULL,
			total          VARCHAR(32)  NOT NULL,
			status         VARCHAR(16)  NOT NULL,
			created_at     BIGINT       NOT NULL,
			updated_at     BIGINT       NOT NULL,
			INDEX idx_orders_created_at (created_at)
		)`,
	},
	upsertValue: `
		INSERT INTO local_store (store_key, value, updated_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`,
	insertOrder: `
		INSERT INTO orders (id, request_id, customer_name, delivery, items, total_quantity, total, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	duplicate: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	},
}

// MySQLAdapter keeps the local store and the order journal in MySQL, for
// agents that share one database between restarts of a kiosk or a fleet.
type MySQLAdapter struct {
	sqlStore
}

func NewMySQLAdapter(db *sql.DB) *MySQLAdapter {
	return &MySQLAdapter{sqlStore{db: db, d: mysqlDialect}}
}
