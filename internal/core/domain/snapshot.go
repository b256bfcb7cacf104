package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var ErrMalformedSnapshot = errors.New("malformed cart snapshot")

// snapshotRow is the stored shape of a line item. Quantity and price are
// loose so snapshots written by older clients still load.
type snapshotRow struct {
	ProductID    string      `json:"productId"`
	VariantID    string      `json:"variantId"`
	Quantity     json.Number `json:"quantity"`
	Price        any         `json:"price"`
	ProductName  string      `json:"productName"`
	VariantLabel string      `json:"variantLabel"`
}

// EncodeSnapshot serializes the cart items for the local store.
func EncodeSnapshot(items []LineItem) (string, error) {
	if items == nil {
		items = []LineItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	return string(b), nil
}

// DecodeSnapshot parses a stored snapshot. An empty input is an empty cart.
// Input that is not a JSON array returns ErrMalformedSnapshot together with
// an empty list; individual rows that cannot be read are skipped.
func DecodeSnapshot(raw string) ([]LineItem, error) {
	if raw == "" {
		return []LineItem{}, nil
	}

	var rows []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return []LineItem{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}

	items := make([]LineItem, 0, len(rows))
	for _, r := range rows {
		var row snapshotRow
		if err := json.Unmarshal(r, &row); err != nil {
			continue
		}
		qty, ok := parseQuantity(row.Quantity)
		if !ok || row.ProductID == "" {
			continue
		}
		items = append(items, LineItem{
			ProductID:    row.ProductID,
			VariantID:    row.VariantID,
			Quantity:     qty,
			UnitPrice:    NormalizePrice(row.Price),
			DisplayName:  row.ProductName,
			VariantLabel: row.VariantLabel,
		})
	}
	return items, nil
}

// parseQuantity accepts whole numbers in [1, MaxQuantity], written either
// as integers or as floats with no fractional part (2 or 2.0, not 2.9).
func parseQuantity(n json.Number) (int, bool) {
	if n == "" {
		return 0, false
	}
	if v, err := n.Int64(); err == nil {
		if v < 1 || v > MaxQuantity {
			return 0, false
		}
		return int(v), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || f < 1 || f > MaxQuantity {
		return 0, false
	}
	return int(f), true
}
