package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"snapkart-be/internal/apperr"
	"snapkart-be/internal/db"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetRestaurant(ctx context.Context, q db.DBTX, id int64) (*Restaurant, error)
	Snapshot(ctx context.Context, q db.DBTX, restaurantID int64, items []ItemRequest) ([]LineItem, error)
}

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

func (r *repository) GetRestaurant(ctx context.Context, q db.DBTX, id int64) (*Restaurant, error) {
	var rest Restaurant
	err := q.QueryRowContext(ctx, `
		SELECT id, name, lat, lng, is_active
		FROM restaurants
		WHERE id = $1
	`, id).Scan(&rest.ID, &rest.Name, &rest.Lat, &rest.Lng, &rest.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRestaurantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get restaurant %d: %w", id, err)
	}
	return &rest, nil
}

// Snapshot prices every requested line from the current catalog. The unit
// price is the variant price when a variant is chosen (the product price
// otherwise) plus every selected extra.
func (r *repository) Snapshot(ctx context.Context, q db.DBTX, restaurantID int64, items []ItemRequest) ([]LineItem, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	lines := make([]LineItem, 0, len(items))
	for i, req := range items {
		if req.Quantity <= 0 {
			return nil, apperr.Validationf("item %d: quantity must be positive", i)
		}

		line := LineItem{ProductID: req.ProductID, Quantity: req.Quantity, Extras: []Extra{}}

		var price decimal.Decimal
		err := q.QueryRowContext(ctx, `
			SELECT name, price
			FROM products
			WHERE id = $1 AND restaurant_id = $2 AND is_active = TRUE
		`, req.ProductID, restaurantID).Scan(&line.ProductName, &price)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Validationf("product %d is not available", req.ProductID)
		}
		if err != nil {
			return nil, fmt.Errorf("load product %d: %w", req.ProductID, err)
		}

		if req.VariantID != nil {
			var name string
			err := q.QueryRowContext(ctx, `
				SELECT name, price
				FROM product_variants
				WHERE id = $1 AND product_id = $2
			`, *req.VariantID, req.ProductID).Scan(&name, &price)
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperr.Validationf("variant %d does not belong to product %d", *req.VariantID, req.ProductID)
			}
			if err != nil {
				return nil, fmt.Errorf("load variant %d: %w", *req.VariantID, err)
			}
			line.VariantID = req.VariantID
			line.VariantName = &name
		}

		if len(req.ExtraIDs) > 0 {
			extras, err := r.extras(ctx, q, req.ProductID, req.ExtraIDs)
			if err != nil {
				return nil, err
			}
			for _, e := range extras {
				price = price.Add(e.Price)
			}
			line.Extras = extras
		}

		line.UnitPrice = price
		line.LineTotal = price.Mul(decimal.NewFromInt(int64(req.Quantity)))
		lines = append(lines, line)
	}
	return lines, nil
}

func (r *repository) extras(ctx context.Context, q db.DBTX, productID int64, ids []int64) ([]Extra, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, price
		FROM product_extras
		WHERE product_id = $1 AND id = ANY($2)
		ORDER BY id
	`, productID, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load extras: %w", err)
	}
	defer rows.Close()

	var out []Extra
	for rows.Next() {
		var e Extra
		if err := rows.Scan(&e.ID, &e.Name, &e.Price); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(out) != len(uniq(ids)) {
		return nil, apperr.Validationf("unknown extra for product %d", productID)
	}
	return out, nil
}

func uniq(ids []int64) map[int64]struct{} {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
