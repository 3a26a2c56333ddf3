package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"fashion-backend/internal/app"
	"fashion-backend/internal/core"
	"fashion-backend/internal/db"
	"fashion-backend/internal/logger"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const usage = `Usage: app <command> [args]

Commands:
  suppliers                                list suppliers with balances
  orders <supplier-id> [status]            list a supplier's orders
  order <order-id>                         show one order with settlement state
  create-order                             create DRAFT order from JSON on stdin
  confirm <order-id> [amount method]       confirm a draft, optionally paying
  cancel <order-id>                        cancel a draft
  pay <supplier-id> <amount> <method>      distribute a payment across orders
  charge-pay <logistics-id> <amount> <method>  pay down delivery charges
  apply-credit <supplier-id> <order-id>    settle an order from standing credit
  statement <supplier|logistics> <id> [from] [to]   account statement
  stock <product-id>                       inventory aggregate for a product
  movements <product-id>                   movement audit trail
  alerts [threshold]                       low stock alerts, both granularities
  sync <product-id>                        validate inventory vs packet stock
  reconcile <product-id>                   rewrite inventory from packet count
  create-return                            file a return from JSON on stdin
  approve-return <return-id>               approve a pending return
  reject-return <return-id>                reject a pending return`

func main() {
	_ = godotenv.Load()

	zlog, err := logger.New()
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zlog.Sync()

	ctx := context.Background()
	pool, err := db.NewPool(ctx)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v", err)
	}
	defer pool.Close()

	svc := app.NewAppService(pool, zlog)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	user := os.Getenv("APP_USER")
	if user == "" {
		user = "cli"
	}

	switch os.Args[1] {
	case "suppliers":
		suppliers, err := svc.ListSuppliers(ctx, true)
		if err != nil {
			log.Fatalf("Failed to list suppliers: %v", err)
		}
		fmt.Printf("%-6s %-8s %-30s %15s\n", "ID", "CODE", "NAME", "BALANCE")
		fmt.Println(strings.Repeat("-", 64))
		for _, s := range suppliers {
			fmt.Printf("%-6d %-8s %-30s %15s\n", s.Supplier.ID, s.Supplier.Code, s.Supplier.Name, s.Balance.StringFixed(2))
		}

	case "orders":
		supplierID := intArg(2, "supplier id")
		status := core.OrderStatus("")
		if len(os.Args) > 3 {
			status = core.OrderStatus(strings.ToUpper(os.Args[3]))
		}
		orders, err := svc.ListOrders(ctx, supplierID, status)
		if err != nil {
			log.Fatalf("Failed to list orders: %v", err)
		}
		fmt.Printf("%-6s %-16s %-10s %12s %-20s\n", "ID", "NUMBER", "STATUS", "DISCOUNT", "CREATED")
		fmt.Println(strings.Repeat("-", 70))
		for _, o := range orders {
			number := "-"
			if o.OrderNumber != nil {
				number = *o.OrderNumber
			}
			fmt.Printf("%-6d %-16s %-10s %12s %-20s\n", o.ID, number, o.Status, o.Discount.StringFixed(2), o.CreatedAt.Format("2006-01-02 15:04"))
		}

	case "order":
		result, err := svc.GetOrder(ctx, intArg(2, "order id"))
		if err != nil {
			log.Fatalf("Failed to fetch order: %v", err)
		}
		printJSON(result)

	case "create-order":
		var req app.CreateOrderRequest
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			log.Fatalf("Invalid JSON: %v", err)
		}
		if req.CreatedBy == "" {
			req.CreatedBy = user
		}
		result, err := svc.CreateOrder(ctx, req)
		if err != nil {
			log.Fatalf("Failed to create order: %v", err)
		}
		printJSON(result)

	case "confirm":
		req := app.ConfirmOrderRequest{OrderID: intArg(2, "order id"), CreatedBy: user}
		if len(os.Args) > 4 {
			req.Payments = []app.PaymentRequest{{
				Amount: decimalArg(3, "amount"),
				Method: core.PaymentMethod(os.Args[4]),
			}}
		}
		result, err := svc.ConfirmOrder(ctx, req)
		if err != nil {
			log.Fatalf("Failed to confirm order: %v", err)
		}
		printJSON(result)

	case "cancel":
		if err := svc.CancelOrder(ctx, intArg(2, "order id")); err != nil {
			log.Fatalf("Failed to cancel order: %v", err)
		}
		fmt.Println("Order cancelled.")

	case "pay":
		report, err := svc.DistributePayment(ctx, app.DistributePaymentRequest{
			EntityID:  intArg(2, "supplier id"),
			Amount:    decimalArg(3, "amount"),
			Method:    core.PaymentMethod(stringArg(4, "method")),
			CreatedBy: user,
		})
		if err != nil {
			log.Fatalf("Failed to distribute payment: %v", err)
		}
		printJSON(report)

	case "charge-pay":
		report, err := svc.DistributeLogisticsCharge(ctx, app.DistributePaymentRequest{
			EntityID:  intArg(2, "logistics id"),
			Amount:    decimalArg(3, "amount"),
			Method:    core.PaymentMethod(stringArg(4, "method")),
			CreatedBy: user,
		})
		if err != nil {
			log.Fatalf("Failed to distribute charge payment: %v", err)
		}
		printJSON(report)

	case "apply-credit":
		result, err := svc.ApplyCredit(ctx, intArg(2, "supplier id"), intArg(3, "order id"), user)
		if err != nil {
			log.Fatalf("Failed to apply credit: %v", err)
		}
		printJSON(result)

	case "statement":
		entityType := core.EntityType(stringArg(2, "entity type"))
		from, to := "", ""
		if len(os.Args) > 4 {
			from = os.Args[4]
		}
		if len(os.Args) > 5 {
			to = os.Args[5]
		}
		result, err := svc.GetStatement(ctx, entityType, intArg(3, "entity id"), from, to)
		if err != nil {
			log.Fatalf("Failed to fetch statement: %v", err)
		}
		fmt.Printf("%-6s %-12s %-20s %12s %12s %14s\n", "ID", "DATE", "TYPE", "DEBIT", "CREDIT", "BALANCE")
		fmt.Println(strings.Repeat("-", 82))
		for _, line := range result.Lines {
			fmt.Printf("%-6d %-12s %-20s %12s %12s %14s\n",
				line.EntryID, line.EntryDate.Format("2006-01-02"), line.TransactionType,
				line.Debit.StringFixed(2), line.Credit.StringFixed(2), line.RunningBalance.StringFixed(2))
		}
		fmt.Println(strings.Repeat("-", 82))
		fmt.Printf("Closing balance: %s\n", result.ClosingBalance.StringFixed(2))

	case "stock":
		rec, err := svc.GetStock(ctx, intArg(2, "product id"))
		if err != nil {
			log.Fatalf("Failed to fetch stock: %v", err)
		}
		printJSON(rec)

	case "movements":
		movements, err := svc.GetMovements(ctx, intArg(2, "product id"), 50)
		if err != nil {
			log.Fatalf("Failed to fetch movements: %v", err)
		}
		printJSON(movements)

	case "alerts":
		threshold := decimal.Zero
		if len(os.Args) > 2 {
			threshold = decimalArg(2, "threshold")
		}
		alerts, err := svc.LowStockAlerts(ctx, threshold)
		if err != nil {
			log.Fatalf("Failed to fetch alerts: %v", err)
		}
		fmt.Printf("%-10s %-10s %-8s %-30s %10s %10s\n", "SEVERITY", "SOURCE", "CODE", "NAME", "STOCK", "THRESHOLD")
		fmt.Println(strings.Repeat("-", 85))
		for _, a := range alerts {
			fmt.Printf("%-10s %-10s %-8s %-30s %10s %10s\n", a.Severity, a.Granularity, a.ProductCode, a.ProductName,
				a.Stock.StringFixed(0), a.Threshold.StringFixed(0))
		}

	case "sync":
		report, err := svc.ValidateSync(ctx, intArg(2, "product id"))
		if err != nil {
			log.Fatalf("Failed to validate sync: %v", err)
		}
		printJSON(report)

	case "reconcile":
		report, err := svc.ReconcileStock(ctx, intArg(2, "product id"), user)
		if err != nil {
			log.Fatalf("Failed to reconcile: %v", err)
		}
		printJSON(report)

	case "create-return":
		var req app.CreateReturnRequest
		if err := json.NewDecoder(os.Stdin).Decode(&req); err != nil {
			log.Fatalf("Invalid JSON: %v", err)
		}
		if req.CreatedBy == "" {
			req.CreatedBy = user
		}
		ret, err := svc.CreateReturn(ctx, req)
		if err != nil {
			log.Fatalf("Failed to create return: %v", err)
		}
		printJSON(ret)

	case "approve-return":
		ret, err := svc.ApproveReturn(ctx, intArg(2, "return id"), user)
		if err != nil {
			log.Fatalf("Failed to approve return: %v", err)
		}
		printJSON(ret)

	case "reject-return":
		if err := svc.RejectReturn(ctx, intArg(2, "return id")); err != nil {
			log.Fatalf("Failed to reject return: %v", err)
		}
		fmt.Println("Return rejected.")

	default:
		fmt.Println(usage)
		log.Fatalf("Unknown command: %s", os.Args[1])
	}
}

func stringArg(i int, name string) string {
	if len(os.Args) <= i {
		log.Fatalf("Missing argument: %s", name)
	}
	return os.Args[i]
}

func intArg(i int, name string) int {
	v, err := strconv.Atoi(stringArg(i, name))
	if err != nil {
		log.Fatalf("Invalid %s: %v", name, err)
	}
	return v
}

func decimalArg(i int, name string) decimal.Decimal {
	v, err := decimal.NewFromString(stringArg(i, name))
	if err != nil {
		log.Fatalf("Invalid %s: %v", name, err)
	}
	return v
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}
