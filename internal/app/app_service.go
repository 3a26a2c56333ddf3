package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fashion-backend/internal/core"
)

type appService struct {
	pool      *pgxpool.Pool
	log       *zap.Logger
	ledger    *core.Ledger
	inventory *core.InventoryService
	orders    *core.OrderService
	payments  *core.PaymentService
	returns   *core.ReturnService
	sync      *core.StockSyncService
	suppliers *core.SupplierService
	products  *core.ProductService
	packets   *core.PacketStockService
}

// NewAppService wires the full service graph over one pool and returns the
// facade.
func NewAppService(pool *pgxpool.Pool, log *zap.Logger) ApplicationService {
	ledger := core.NewLedger(pool)
	packets := core.NewPacketStockService(pool)
	return &appService{
		pool:      pool,
		log:       log,
		ledger:    ledger,
		inventory: core.NewInventoryService(pool, log),
		orders:    core.NewOrderService(pool, log),
		payments:  core.NewPaymentService(pool, ledger, log),
		returns:   core.NewReturnService(pool, log),
		sync:      core.NewStockSyncService(pool, packets, log),
		suppliers: core.NewSupplierService(pool),
		products:  core.NewProductService(pool),
		packets:   packets,
	}
}

func (s *appService) CreateSupplier(ctx context.Context, req CreateSupplierRequest) (*SupplierResult, error) {
	sup, err := s.suppliers.CreateSupplier(ctx, core.SupplierInput{
		Code:    req.Code,
		Name:    req.Name,
		Address: req.Address,
		Phone:   req.Phone,
	})
	if err != nil {
		return nil, err
	}
	return &SupplierResult{Supplier: *sup, Balance: decimal.Zero}, nil
}

func (s *appService) ListSuppliers(ctx context.Context, activeOnly bool) ([]SupplierResult, error) {
	suppliers, err := s.suppliers.ListSuppliers(ctx, activeOnly)
	if err != nil {
		return nil, err
	}
	results := make([]SupplierResult, 0, len(suppliers))
	for _, sup := range suppliers {
		balance, err := s.ledger.GetBalance(ctx, core.EntitySupplier, sup.ID)
		if err != nil {
			return nil, err
		}
		results = append(results, SupplierResult{Supplier: sup, Balance: balance})
	}
	return results, nil
}

func (s *appService) CreateLogisticsCompany(ctx context.Context, code, name string) (*core.LogisticsCompany, error) {
	return s.suppliers.CreateLogisticsCompany(ctx, code, name)
}

func (s *appService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*OrderResult, error) {
	items := make([]core.OrderItemInput, len(req.Items))
	for i, item := range req.Items {
		items[i] = core.OrderItemInput{
			ProductCode:    item.ProductCode,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			UnitCost:       item.UnitCost,
			LandedPrice:    item.LandedPrice,
			ExchangeRate:   item.ExchangeRate,
			ItemsPerPacket: item.ItemsPerPacket,
			Packets:        item.Packets,
			Composition:    item.Composition,
		}
	}
	order, err := s.orders.CreateOrder(ctx, core.OrderInput{
		SupplierID: req.SupplierID,
		Discount:   req.Discount,
		Notes:      req.Notes,
		CreatedBy:  req.CreatedBy,
		Items:      items,
	})
	if err != nil {
		return nil, err
	}
	return s.orderResult(ctx, order)
}

func (s *appService) ConfirmOrder(ctx context.Context, req ConfirmOrderRequest) (*ConfirmResult, error) {
	payments := make([]core.PaymentInput, len(req.Payments))
	for i, p := range req.Payments {
		payments[i] = core.PaymentInput{Amount: p.Amount, Method: p.Method, Details: p.Details}
	}
	result, err := s.orders.ConfirmOrder(ctx, req.OrderID, payments, req.CreatedBy,
		s.inventory, s.ledger, s.payments, s.products, s.packets)
	if err != nil {
		return nil, err
	}
	return &ConfirmResult{
		Order:         result.Order,
		OrderValue:    result.OrderValue,
		PaymentsTotal: result.PaymentsTotal,
		CreditApplied: result.CreditApplied,
	}, nil
}

func (s *appService) CancelOrder(ctx context.Context, orderID int) error {
	return s.orders.CancelOrder(ctx, orderID)
}

func (s *appService) GetOrder(ctx context.Context, orderID int) (*OrderResult, error) {
	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.orderResult(ctx, order)
}

func (s *appService) ListOrders(ctx context.Context, supplierID int, status core.OrderStatus) ([]core.DispatchOrder, error) {
	return s.orders.GetOrders(ctx, supplierID, status)
}

func (s *appService) DistributePayment(ctx context.Context, req DistributePaymentRequest) (*core.DistributionReport, error) {
	return s.payments.DistributePayment(ctx, req.EntityID, req.Amount, req.Method, req.Details, req.CreatedBy)
}

func (s *appService) DistributeLogisticsCharge(ctx context.Context, req DistributePaymentRequest) (*core.DistributionReport, error) {
	return s.payments.DistributeLogisticsCharge(ctx, req.EntityID, req.Amount, req.Method, req.Details, req.CreatedBy)
}

func (s *appService) ApplyCredit(ctx context.Context, supplierID, orderID int, createdBy string) (*CreditResult, error) {
	applied, err := s.payments.ApplyCreditToOrder(ctx, core.EntitySupplier, supplierID, orderID, createdBy)
	if err != nil {
		return nil, err
	}
	return &CreditResult{OrderID: orderID, Applied: applied}, nil
}

func (s *appService) GetStatement(ctx context.Context, entityType core.EntityType, entityID int, fromDate, toDate string) (*StatementResult, error) {
	from, err := parseDate(fromDate)
	if err != nil {
		return nil, err
	}
	to, err := parseDate(toDate)
	if err != nil {
		return nil, err
	}

	lines, err := s.ledger.GetStatement(ctx, entityType, entityID, from, to)
	if err != nil {
		return nil, err
	}
	closing := decimal.Zero
	if len(lines) > 0 {
		closing = lines[len(lines)-1].RunningBalance
	}
	return &StatementResult{
		EntityType:     entityType,
		EntityID:       entityID,
		Lines:          lines,
		ClosingBalance: closing,
	}, nil
}

func (s *appService) AddStock(ctx context.Context, req AddStockRequest) (int, error) {
	return s.inventory.AddBatch(ctx, core.BatchInput{
		ProductID:    req.ProductID,
		SupplierID:   req.SupplierID,
		Quantity:     req.Quantity,
		CostPrice:    req.CostPrice,
		LandedPrice:  req.LandedPrice,
		ExchangeRate: req.ExchangeRate,
		Composition:  req.Composition,
		Ref: core.MovementRef{
			Reference: req.Reference,
			CreatedBy: req.CreatedBy,
			Notes:     req.Notes,
		},
	})
}

func (s *appService) ConsumeStock(ctx context.Context, req ConsumeStockRequest) (*core.ConsumptionResult, error) {
	return s.inventory.ConsumeFIFO(ctx, req.ProductID, req.Quantity, core.MovementRef{
		Reference: req.Reference,
		CreatedBy: req.CreatedBy,
	})
}

func (s *appService) ConsumeFromBatch(ctx context.Context, req ConsumeBatchRequest) (*core.BatchConsumption, error) {
	return s.inventory.ConsumeFromBatch(ctx, req.ProductID, req.BatchID, req.Quantity, core.MovementRef{
		Reference: req.Reference,
		CreatedBy: req.CreatedBy,
	})
}

func (s *appService) AppendEntry(ctx context.Context, e core.EntryInput) (int, error) {
	return s.ledger.Append(ctx, e)
}

func (s *appService) GetBalance(ctx context.Context, entityType core.EntityType, entityID int) (decimal.Decimal, error) {
	return s.ledger.GetBalance(ctx, entityType, entityID)
}

func (s *appService) GetOrderRemaining(ctx context.Context, orderID int) (decimal.Decimal, error) {
	live, err := s.orders.LiveOrderValue(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return s.ledger.GetOrderRemainingBalance(ctx, orderID, live)
}

func (s *appService) GetStock(ctx context.Context, productID int) (*core.InventoryRecord, error) {
	return s.inventory.GetInventory(ctx, productID)
}

func (s *appService) GetMovements(ctx context.Context, productID, limit int) ([]core.StockMovement, error) {
	return s.inventory.GetMovements(ctx, productID, limit)
}

func (s *appService) ReserveVariant(ctx context.Context, req VariantRequest) error {
	return s.inventory.ReserveVariant(ctx, req.ProductID, req.Size, req.Color, req.Quantity)
}

func (s *appService) ReleaseVariant(ctx context.Context, req VariantRequest) error {
	return s.inventory.ReleaseVariant(ctx, req.ProductID, req.Size, req.Color, req.Quantity)
}

func (s *appService) ReduceVariant(ctx context.Context, req VariantRequest) error {
	return s.inventory.ReduceVariant(ctx, req.ProductID, req.Size, req.Color, req.Quantity, core.MovementRef{
		Reference: req.Reference,
		CreatedBy: req.CreatedBy,
	})
}

func (s *appService) ValidateSync(ctx context.Context, productID int) (*core.SyncReport, error) {
	return s.sync.ValidateSync(ctx, productID)
}

func (s *appService) ReconcileStock(ctx context.Context, productID int, createdBy string) (*core.SyncReport, error) {
	return s.sync.Reconcile(ctx, productID, core.SourcePackets, createdBy)
}

func (s *appService) LowStockAlerts(ctx context.Context, threshold decimal.Decimal) ([]core.LowStockAlert, error) {
	return s.sync.LowStockAlerts(ctx, threshold)
}

func (s *appService) CreateReturn(ctx context.Context, req CreateReturnRequest) (*core.OrderReturn, error) {
	return s.returns.CreateReturn(ctx, core.ReturnInput{
		OrderID:   req.OrderID,
		ProductID: req.ProductID,
		BatchID:   req.BatchID,
		Quantity:  req.Quantity,
		Reason:    req.Reason,
		CreatedBy: req.CreatedBy,
	})
}

func (s *appService) ApproveReturn(ctx context.Context, returnID int, approvedBy string) (*core.OrderReturn, error) {
	return s.returns.ApproveReturn(ctx, returnID, approvedBy, s.inventory, s.ledger)
}

func (s *appService) RejectReturn(ctx context.Context, returnID int) error {
	return s.returns.RejectReturn(ctx, returnID)
}

func (s *appService) orderResult(ctx context.Context, order *core.DispatchOrder) (*OrderResult, error) {
	live, err := s.orders.LiveOrderValue(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	payments, err := s.ledger.GetOrderPayments(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	returns, err := s.ledger.GetOrderReturnTotal(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderResult{
		Order:       order,
		LiveValue:   live,
		Payments:    payments,
		ReturnTotal: returns,
		Remaining:   live.Sub(payments.Total).Sub(returns),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}
