package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ProductService is the catalog. Products are scoped to a supplier by code;
// the same code under two suppliers is two products.
type ProductService struct {
	pool *pgxpool.Pool
}

func NewProductService(pool *pgxpool.Pool) *ProductService {
	return &ProductService{pool: pool}
}

// ResolveOrCreateTx finds the supplier's product by code or creates it. Order
// confirmation calls this per line item so typing a new code on an order is
// enough to introduce a product.
func (s *ProductService) ResolveOrCreateTx(ctx context.Context, tx pgx.Tx, supplierID int, code, name string, costPrice decimal.Decimal) (*Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("product code is required")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = code
	}

	p := &Product{SupplierID: supplierID, Code: code}
	err := tx.QueryRow(ctx, `
		SELECT id, supplier_id, code, name, cost_price, is_active, created_at
		FROM products
		WHERE supplier_id = $1 AND code = $2
		FOR UPDATE`,
		supplierID, code,
	).Scan(&p.ID, &p.SupplierID, &p.Code, &p.Name, &p.CostPrice, &p.IsActive, &p.CreatedAt)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("fetch product %s: %w", code, err)
	}

	p.Name = name
	p.CostPrice = costPrice
	p.IsActive = true
	err = tx.QueryRow(ctx, `
		INSERT INTO products (supplier_id, code, name, cost_price, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at`,
		supplierID, code, name, costPrice,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert product %s: %w", code, err)
	}
	return p, nil
}

// UpdateCostPriceTx writes the latest unit cost back onto the catalog row.
func (s *ProductService) UpdateCostPriceTx(ctx context.Context, tx pgx.Tx, productID int, costPrice decimal.Decimal) error {
	if _, err := tx.Exec(ctx, `
		UPDATE products SET cost_price = $1 WHERE id = $2`,
		costPrice, productID,
	); err != nil {
		return fmt.Errorf("update cost price for product %d: %w", productID, err)
	}
	return nil
}

func (s *ProductService) GetByCode(ctx context.Context, supplierID int, code string) (*Product, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	p := &Product{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, supplier_id, code, name, cost_price, is_active, created_at
		FROM products
		WHERE supplier_id = $1 AND code = $2`,
		supplierID, code,
	).Scan(&p.ID, &p.SupplierID, &p.Code, &p.Name, &p.CostPrice, &p.IsActive, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("product %s not found for supplier %d", code, supplierID)
		}
		return nil, fmt.Errorf("fetch product %s: %w", code, err)
	}
	return p, nil
}

func (s *ProductService) ListBySupplier(ctx context.Context, supplierID int) ([]Product, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, supplier_id, code, name, cost_price, is_active, created_at
		FROM products
		WHERE supplier_id = $1
		ORDER BY code`,
		supplierID,
	)
	if err != nil {
		return nil, fmt.Errorf("query products for supplier %d: %w", supplierID, err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SupplierID, &p.Code, &p.Name, &p.CostPrice, &p.IsActive, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
