package core

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ProductCatalog resolves order line items to catalog products. Order
// confirmation creates products on the fly for codes it has never seen.
type ProductCatalog interface {
	ResolveOrCreateTx(ctx context.Context, tx pgx.Tx, supplierID int, code, name string, costPrice decimal.Decimal) (*Product, error)
	UpdateCostPriceTx(ctx context.Context, tx pgx.Tx, productID int, costPrice decimal.Decimal) error
	GetByCode(ctx context.Context, supplierID int, code string) (*Product, error)
}

// SupplierRegistry looks up supplier master data.
type SupplierRegistry interface {
	GetSupplier(ctx context.Context, id int) (*Supplier, error)
	GetSupplierByCode(ctx context.Context, code string) (*Supplier, error)
}

// PacketStockReader exposes the packet warehouse's view of a product's stock
// as a flat item count, for cross-system validation.
type PacketStockReader interface {
	TotalItems(ctx context.Context, productID int) (decimal.Decimal, error)
}

// PacketStockCreator materializes packet rows for a confirmed stock-in.
type PacketStockCreator interface {
	CreatePacketsTx(ctx context.Context, tx pgx.Tx, productID, packets, itemsPerPacket int, reference string) error
}
