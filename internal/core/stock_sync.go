package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// syncTolerance absorbs off-by-one drift from concurrent packet openings;
// anything beyond one unit is a real discrepancy.
const syncTolerance = 1

// ReconcileSource names which system's count wins a reconciliation.
type ReconcileSource string

const (
	SourcePackets   ReconcileSource = "packets"
	SourceInventory ReconcileSource = "inventory"
)

// AlertSeverity tiers for low-stock reporting.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
)

// StockSyncService compares the inventory ledger's aggregate count against
// the packet warehouse's packet-derived count, and repairs drift by rewriting
// the inventory side from packets. The packet system is the physical truth;
// inventory is the financial view.
type StockSyncService struct {
	pool    *pgxpool.Pool
	packets PacketStockReader
	log     *zap.Logger
}

func NewStockSyncService(pool *pgxpool.Pool, packets PacketStockReader, log *zap.Logger) *StockSyncService {
	return &StockSyncService{pool: pool, packets: packets, log: log}
}

// SyncReport is the outcome of one cross-system comparison.
type SyncReport struct {
	ProductID        int             `json:"product_id"`
	IsValid          bool            `json:"is_valid"`
	InventoryStock   decimal.Decimal `json:"inventory_stock"`
	PacketStockItems decimal.Decimal `json:"packet_stock_items"`
	Difference       decimal.Decimal `json:"difference"`
}

// ValidateSync compares the two counts. Valid when |difference| is within
// the one-unit tolerance.
func (s *StockSyncService) ValidateSync(ctx context.Context, productID int) (*SyncReport, error) {
	var inventoryStock decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(current_stock, 0) FROM inventory_records WHERE product_id = $1`,
		productID,
	).Scan(&inventoryStock)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("read inventory stock for product %d: %w", productID, err)
		}
		// No record means zero stock on the inventory side, not an error.
		inventoryStock = decimal.Zero
	}

	packetItems, err := s.packets.TotalItems(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("read packet stock for product %d: %w", productID, err)
	}

	diff := inventoryStock.Sub(packetItems)
	report := &SyncReport{
		ProductID:        productID,
		IsValid:          withinSyncTolerance(diff),
		InventoryStock:   inventoryStock,
		PacketStockItems: packetItems,
		Difference:       diff,
	}
	if !report.IsValid {
		s.log.Warn("stock out of sync",
			zap.Int("product_id", productID),
			zap.String("inventory", inventoryStock.String()),
			zap.String("packets", packetItems.String()),
			zap.String("difference", diff.String()),
		)
	}
	return report, nil
}

// Reconcile overwrites the inventory count from the packet system's count and
// records the delta as an adjustment movement. Idempotent: a second run with
// no drift writes no movement. Only the packets → inventory direction is
// supported; the packet rows are physical stock and are never rewritten from
// a derived count.
func (s *StockSyncService) Reconcile(ctx context.Context, productID int, source ReconcileSource, createdBy string) (*SyncReport, error) {
	if source != SourcePackets {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedReconciliationDirection, source)
	}

	packetItems, err := s.packets.TotalItems(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("read packet stock for product %d: %w", productID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO inventory_records (product_id, current_stock, reserved_stock, average_cost_price)
		VALUES ($1, 0, 0, 0)
		ON CONFLICT (product_id) DO NOTHING`,
		productID,
	); err != nil {
		return nil, fmt.Errorf("upsert inventory record: %w", err)
	}

	var recID int
	var inventoryStock decimal.Decimal
	err = tx.QueryRow(ctx, `
		SELECT id, current_stock FROM inventory_records WHERE product_id = $1 FOR UPDATE`,
		productID,
	).Scan(&recID, &inventoryStock)
	if err != nil {
		return nil, fmt.Errorf("lock inventory record for product %d: %w", productID, err)
	}

	delta := packetItems.Sub(inventoryStock)
	if !delta.IsZero() {
		if _, err := tx.Exec(ctx, `
			UPDATE inventory_records SET current_stock = $1, updated_at = NOW() WHERE id = $2`,
			packetItems, recID,
		); err != nil {
			return nil, fmt.Errorf("overwrite inventory stock: %w", err)
		}
		notes := fmt.Sprintf("reconciled from packet stock, %s -> %s", inventoryStock, packetItems)
		if _, err := tx.Exec(ctx, `
			INSERT INTO stock_movements (product_id, movement_type, quantity, reference, created_by, movement_date, notes)
			VALUES ($1, $2, $3, 'reconciliation', $4, NOW(), $5)`,
			productID, MoveAdjustment, delta, createdBy, notes,
		); err != nil {
			return nil, fmt.Errorf("insert adjustment movement: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit reconciliation: %w", err)
	}

	if !delta.IsZero() {
		s.log.Info("stock reconciled",
			zap.Int("product_id", productID),
			zap.String("from", inventoryStock.String()),
			zap.String("to", packetItems.String()),
		)
	}
	return &SyncReport{
		ProductID:        productID,
		IsValid:          true,
		InventoryStock:   packetItems,
		PacketStockItems: packetItems,
		Difference:       decimal.Zero,
	}, nil
}

// StockGranularity names which stock count a low-stock alert was raised on.
type StockGranularity string

const (
	GranularityInventory StockGranularity = "inventory"
	GranularityPackets   StockGranularity = "packets"
)

// LowStockAlert flags a product whose stock has fallen to or below its
// threshold on one granularity.
type LowStockAlert struct {
	ProductID   int              `json:"product_id"`
	ProductCode string           `json:"product_code"`
	ProductName string           `json:"product_name"`
	Granularity StockGranularity `json:"granularity"`
	Stock       decimal.Decimal  `json:"stock"`
	Threshold   decimal.Decimal  `json:"threshold"`
	Severity    AlertSeverity    `json:"severity"`
}

const inventoryAlertsQ = `
	SELECT id, code, name, stock, threshold FROM (
		SELECT p.id, p.code, p.name, r.current_stock AS stock,
		       CASE WHEN $1::numeric > 0 THEN $1::numeric ELSE r.reorder_level END AS threshold
		FROM inventory_records r
		JOIN products p ON p.id = r.product_id
		WHERE p.is_active
	) t
	WHERE threshold > 0 AND stock <= threshold
	ORDER BY stock / threshold, code`

const packetAlertsQ = `
	SELECT id, code, name, stock, threshold FROM (
		SELECT p.id, p.code, p.name,
		       COALESCE(SUM(ps.available_packets * ps.items_per_packet), 0) AS stock,
		       CASE WHEN $1::numeric > 0 THEN $1::numeric ELSE COALESCE(r.reorder_level, 0) END AS threshold
		FROM products p
		JOIN packet_stocks ps ON ps.product_id = p.id
		LEFT JOIN inventory_records r ON r.product_id = p.id
		WHERE p.is_active
		GROUP BY p.id, p.code, p.name, r.reorder_level
	) t
	WHERE threshold > 0 AND stock <= threshold
	ORDER BY stock / threshold, code`

// LowStockAlerts reports breaches on both granularities: the inventory
// aggregate and the packet warehouse's flattened item count (only for
// products the packet system tracks). A positive threshold overrides the
// per-record reorder levels; zero falls back to them. Sorted worst first
// within each granularity.
func (s *StockSyncService) LowStockAlerts(ctx context.Context, threshold decimal.Decimal) ([]LowStockAlert, error) {
	inventory, err := s.scanAlerts(ctx, GranularityInventory, inventoryAlertsQ, threshold)
	if err != nil {
		return nil, err
	}
	packets, err := s.scanAlerts(ctx, GranularityPackets, packetAlertsQ, threshold)
	if err != nil {
		return nil, err
	}
	return append(inventory, packets...), nil
}

func (s *StockSyncService) scanAlerts(ctx context.Context, g StockGranularity, query string, threshold decimal.Decimal) ([]LowStockAlert, error) {
	rows, err := s.pool.Query(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("query %s low stock: %w", g, err)
	}
	defer rows.Close()

	var alerts []LowStockAlert
	for rows.Next() {
		a := LowStockAlert{Granularity: g}
		if err := rows.Scan(&a.ProductID, &a.ProductCode, &a.ProductName, &a.Stock, &a.Threshold); err != nil {
			return nil, fmt.Errorf("scan low stock alert: %w", err)
		}
		a.Severity = tierFor(a.Stock, a.Threshold)
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func withinSyncTolerance(diff decimal.Decimal) bool {
	return diff.Abs().LessThanOrEqual(decimal.NewFromInt(syncTolerance))
}

// tierFor maps depth of breach to severity: empty is critical, at or below
// half the threshold is high, the rest is medium.
func tierFor(current, threshold decimal.Decimal) AlertSeverity {
	switch {
	case !current.IsPositive():
		return SeverityCritical
	case current.LessThanOrEqual(threshold.Div(decimal.NewFromInt(2))):
		return SeverityHigh
	default:
		return SeverityMedium
	}
}
