package core

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PacketStockService is the warehouse's packet-level view: stock arrives and
// is stored as sealed packets of N items each. It implements both
// PacketStockReader and PacketStockCreator.
type PacketStockService struct {
	pool *pgxpool.Pool
}

func NewPacketStockService(pool *pgxpool.Pool) *PacketStockService {
	return &PacketStockService{pool: pool}
}

// PacketStock is one sealed-packet row.
type PacketStock struct {
	ID               int    `json:"id"`
	ProductID        int    `json:"product_id"`
	Barcode          string `json:"barcode"`
	ItemsPerPacket   int    `json:"items_per_packet"`
	AvailablePackets int    `json:"available_packets"`
	Reference        string `json:"reference"`
}

// TotalItems flattens the product's packet rows to an item count:
// Σ(available packets × items per packet).
func (s *PacketStockService) TotalItems(ctx context.Context, productID int) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(available_packets * items_per_packet), 0)
		FROM packet_stocks
		WHERE product_id = $1`,
		productID,
	).Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("aggregate packet stock for product %d: %w", productID, err)
	}
	return total, nil
}

// CreatePacketsTx records a delivery's packets, one barcode per row, inside
// the caller's transaction.
func (s *PacketStockService) CreatePacketsTx(ctx context.Context, tx pgx.Tx, productID, packets, itemsPerPacket int, reference string) error {
	if packets <= 0 || itemsPerPacket <= 0 {
		return fmt.Errorf("packets and items per packet must be positive, got %d x %d", packets, itemsPerPacket)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO packet_stocks (product_id, barcode, items_per_packet, available_packets, reference)
		VALUES ($1, $2, $3, $4, $5)`,
		productID, uuid.NewString(), itemsPerPacket, packets, reference,
	); err != nil {
		return fmt.Errorf("insert packet stock for product %d: %w", productID, err)
	}
	return nil
}

// OpenPackets reduces a row's available packet count when sealed packets are
// broken open for retail.
func (s *PacketStockService) OpenPackets(ctx context.Context, packetStockID, count int) error {
	if count <= 0 {
		return fmt.Errorf("open count must be positive, got %d", count)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE packet_stocks
		SET available_packets = available_packets - $1
		WHERE id = $2 AND available_packets >= $1`,
		count, packetStockID,
	)
	if err != nil {
		return fmt.Errorf("open packets on row %d: %w", packetStockID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("packet stock %d not found or fewer than %d packets available", packetStockID, count)
	}
	return nil
}

// ListByProduct returns the product's packet rows, newest first.
func (s *PacketStockService) ListByProduct(ctx context.Context, productID int) ([]PacketStock, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, product_id, barcode, items_per_packet, available_packets, reference
		FROM packet_stocks
		WHERE product_id = $1
		ORDER BY id DESC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("query packet stocks for product %d: %w", productID, err)
	}
	defer rows.Close()

	var stocks []PacketStock
	for rows.Next() {
		var p PacketStock
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Barcode, &p.ItemsPerPacket, &p.AvailablePackets, &p.Reference); err != nil {
			return nil, fmt.Errorf("scan packet stock: %w", err)
		}
		stocks = append(stocks, p)
	}
	return stocks, rows.Err()
}
