package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SupplierService is master data for suppliers and logistics companies.
type SupplierService struct {
	pool *pgxpool.Pool
}

func NewSupplierService(pool *pgxpool.Pool) *SupplierService {
	return &SupplierService{pool: pool}
}

type SupplierInput struct {
	Code    string
	Name    string
	Address string
	Phone   string
}

func (s *SupplierService) CreateSupplier(ctx context.Context, in SupplierInput) (*Supplier, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	name := strings.TrimSpace(in.Name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("supplier code and name are required")
	}

	var address, phone *string
	if a := strings.TrimSpace(in.Address); a != "" {
		address = &a
	}
	if p := strings.TrimSpace(in.Phone); p != "" {
		phone = &p
	}

	sup := &Supplier{Code: code, Name: name, Address: address, Phone: phone, IsActive: true}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO suppliers (code, name, address, phone, is_active)
		VALUES ($1, $2, $3, $4, TRUE)
		RETURNING id, created_at`,
		code, name, address, phone,
	).Scan(&sup.ID, &sup.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert supplier %s: %w", code, err)
	}
	return sup, nil
}

func (s *SupplierService) GetSupplier(ctx context.Context, id int) (*Supplier, error) {
	return s.scanSupplier(ctx, `WHERE id = $1`, id)
}

func (s *SupplierService) GetSupplierByCode(ctx context.Context, code string) (*Supplier, error) {
	return s.scanSupplier(ctx, `WHERE code = $1`, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *SupplierService) ListSuppliers(ctx context.Context, activeOnly bool) ([]Supplier, error) {
	query := `
		SELECT id, code, name, address, phone, is_active, created_at
		FROM suppliers`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY code`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query suppliers: %w", err)
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		var sup Supplier
		if err := rows.Scan(&sup.ID, &sup.Code, &sup.Name, &sup.Address, &sup.Phone, &sup.IsActive, &sup.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

// DeactivateSupplier soft-deletes. History (orders, ledger, batches) stays.
func (s *SupplierService) DeactivateSupplier(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, `UPDATE suppliers SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate supplier %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d not found", id)
	}
	return nil
}

func (s *SupplierService) CreateLogisticsCompany(ctx context.Context, code, name string) (*LogisticsCompany, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" || name == "" {
		return nil, fmt.Errorf("logistics company code and name are required")
	}

	lc := &LogisticsCompany{Code: code, Name: name, IsActive: true}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO logistics_companies (code, name, is_active)
		VALUES ($1, $2, TRUE)
		RETURNING id, created_at`,
		code, name,
	).Scan(&lc.ID, &lc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert logistics company %s: %w", code, err)
	}
	return lc, nil
}

func (s *SupplierService) GetLogisticsCompany(ctx context.Context, id int) (*LogisticsCompany, error) {
	lc := &LogisticsCompany{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, is_active, created_at FROM logistics_companies WHERE id = $1`,
		id,
	).Scan(&lc.ID, &lc.Code, &lc.Name, &lc.IsActive, &lc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("logistics company %d not found", id)
		}
		return nil, fmt.Errorf("fetch logistics company %d: %w", id, err)
	}
	return lc, nil
}

func (s *SupplierService) ListLogisticsCompanies(ctx context.Context) ([]LogisticsCompany, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, name, is_active, created_at FROM logistics_companies ORDER BY code`)
	if err != nil {
		return nil, fmt.Errorf("query logistics companies: %w", err)
	}
	defer rows.Close()

	var companies []LogisticsCompany
	for rows.Next() {
		var lc LogisticsCompany
		if err := rows.Scan(&lc.ID, &lc.Code, &lc.Name, &lc.IsActive, &lc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan logistics company: %w", err)
		}
		companies = append(companies, lc)
	}
	return companies, rows.Err()
}

func (s *SupplierService) scanSupplier(ctx context.Context, where string, arg any) (*Supplier, error) {
	sup := &Supplier{}
	err := s.pool.QueryRow(ctx, `
		SELECT id, code, name, address, phone, is_active, created_at
		FROM suppliers `+where,
		arg,
	).Scan(&sup.ID, &sup.Code, &sup.Name, &sup.Address, &sup.Phone, &sup.IsActive, &sup.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("supplier %v not found", arg)
		}
		return nil, fmt.Errorf("fetch supplier %v: %w", arg, err)
	}
	return sup, nil
}
