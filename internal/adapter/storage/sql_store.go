package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rl1809/cart-sync/internal/core/domain"
)

var ErrOrderExists = errors.New("order already journaled")

// dialect holds the statements that differ between database engines.
type dialect struct {
	schema      []string
	upsertValue string
	insertOrder string
	// duplicate reports whether err is a primary key violation.
	duplicate func(err error) bool
}

// sqlStore implements the local store and the order journal on database/sql.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

// EnsureSchema creates the tables if they do not exist.
func (s *sqlStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.d.schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *sqlStore) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM local_store WHERE store_key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("query local store: %w", err)
	}
	return value, true, nil
}

func (s *sqlStore) Set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, s.d.upsertValue, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert local store: %w", err)
	}
	return nil
}

func (s *sqlStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM local_store WHERE store_key = ?`, key); err != nil {
		return fmt.Errorf("delete local store: %w", err)
	}
	return nil
}

func (s *sqlStore) RecordOrder(ctx context.Context, order domain.Order) error {
	items, err := domain.EncodeSnapshot(order.Items)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, s.d.insertOrder,
		order.ID, order.RequestID, order.CustomerName, string(order.Delivery), items,
		order.TotalQuantity, order.Total, string(order.Status),
		order.CreatedAt.UnixMilli(), order.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		if s.d.duplicate != nil && s.d.duplicate(err) {
			return ErrOrderExists
		}
		return fmt.Errorf("insert order: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrOrderExists
	}
	return nil
}

func (s *sqlStore) ListOrders(ctx context.Context, limit int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, customer_name, delivery, items, total_quantity, total, status, created_at, updated_at
		FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o                domain.Order
			delivery, status string
			items            string
			created, updated int64
		)
		if err := rows.Scan(&o.ID, &o.RequestID, &o.CustomerName, &delivery, &items,
			&o.TotalQuantity, &o.Total, &status, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		o.Delivery = domain.DeliveryMethod(delivery)
		o.Status = domain.OrderStatus(status)
		o.Items, _ = domain.DecodeSnapshot(items)
		o.CreatedAt = time.UnixMilli(created)
		o.UpdatedAt = time.UnixMilli(updated)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}
	return orders, nil
}
