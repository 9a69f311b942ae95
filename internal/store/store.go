package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"dukapos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidPayment    = errors.New("invalid payment method")
	ErrCustomerRequired  = errors.New("customer name is required for credit sales")
	ErrAlreadyVoided     = errors.New("sale is already voided")
	ErrInvalidAmount     = errors.New("amount must be greater than zero")
	ErrSupplierRequired  = errors.New("supplier is required")
	ErrShiftOpen         = errors.New("an open shift already exists")
	ErrNoOpenShift       = errors.New("no open shift")
	ErrConflict          = errors.New("conflict")
)

// Scope identifies the tenant and acting user for a repository call.
// Every tenant-data method takes it as the first argument after ctx so
// an unscoped query cannot be written by accident.
type Scope struct {
	ShopID string
	UserID string
}

type Repository interface {
	// shops and users
	CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error)
	CreateUser(ctx context.Context, user domain.UserAccount) error
	GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, scope Scope) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, scope Scope, username string, password string) error

	// items
	CreateItem(ctx context.Context, scope Scope, item domain.Item) (*domain.Item, error)
	UpdateItem(ctx context.Context, scope Scope, item domain.Item) (*domain.Item, error)
	DeleteItem(ctx context.Context, scope Scope, itemID string) error
	GetItemByID(ctx context.Context, scope Scope, itemID string) (*domain.Item, error)
	FindItemByName(ctx context.Context, scope Scope, name string) (*domain.Item, error)
	ListItems(ctx context.Context, scope Scope, filter domain.ItemListFilter) ([]domain.Item, error)
	ListCategories(ctx context.Context, scope Scope) ([]string, error)

	// suppliers
	CreateSupplier(ctx context.Context, scope Scope, supplier domain.Supplier) (*domain.Supplier, error)
	UpdateSupplier(ctx context.Context, scope Scope, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplierByID(ctx context.Context, scope Scope, supplierID string) (*domain.Supplier, error)
	FindSupplierByName(ctx context.Context, scope Scope, name string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, scope Scope) ([]domain.Supplier, error)
	ListPurchasesBySupplier(ctx context.Context, scope Scope, supplierID string, limit int) ([]domain.Purchase, error)

	// customers
	CreateCustomer(ctx context.Context, scope Scope, customer domain.Customer) (*domain.Customer, error)
	GetCustomerByID(ctx context.Context, scope Scope, customerID string) (*domain.Customer, error)
	FindCustomer(ctx context.Context, scope Scope, name string, phone string) (*domain.Customer, error)
	UpdateCustomerPhone(ctx context.Context, scope Scope, customerID string, phone string) error
	ListCustomers(ctx context.Context, scope Scope, search string, limit int) ([]domain.Customer, error)
	GetCustomerDetail(ctx context.Context, scope Scope, customerID string) (*domain.CustomerDetail, error)

	// sales. CreateSale receives the computed sale with its line items and
	// applies every side effect in one transaction: receipt allocation,
	// customer resolution, stock decrement, movement and ledger rows, and
	// the credit entry for credit sales.
	CreateSale(ctx context.Context, scope Scope, sale domain.Sale) (*domain.Sale, error)
	VoidSale(ctx context.Context, scope Scope, saleID string, at time.Time) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, scope Scope, saleID string) (*domain.Sale, error)
	ListSales(ctx context.Context, scope Scope, filter domain.SaleListFilter) ([]domain.Sale, error)

	// purchases
	RecordPurchaseBatch(ctx context.Context, scope Scope, req domain.PurchaseRequest, at time.Time) (*domain.PurchaseResponse, error)
	ListPurchases(ctx context.Context, scope Scope, limit int) ([]domain.Purchase, error)

	// credit
	PayCredit(ctx context.Context, scope Scope, customerID string, payment domain.CreditPayment) (*domain.Customer, error)
	ListCreditEntries(ctx context.Context, scope Scope, customerID string) ([]domain.CreditEntry, error)
	ListCreditPayments(ctx context.Context, scope Scope, customerID string) ([]domain.CreditPayment, error)

	// stock movements and ledger
	ListStockMovements(ctx context.Context, scope Scope, filter domain.StockMovementFilter) ([]domain.StockMovement, error)
	ListLedgerEntries(ctx context.Context, scope Scope, refType string, refID string) ([]domain.LedgerEntry, error)

	// shifts
	OpenShift(ctx context.Context, scope Scope, shift domain.Shift) (*domain.Shift, error)
	CloseShift(ctx context.Context, scope Scope, actualCash decimal.Decimal, notes string, at time.Time) (*domain.Shift, error)
	GetOpenShift(ctx context.Context, scope Scope) (*domain.Shift, error)
	ListShifts(ctx context.Context, scope Scope, limit int) ([]domain.Shift, error)

	// reports
	GetDailyReport(ctx context.Context, scope Scope, from time.Time, to time.Time) (domain.DailyReport, error)
	GetInventoryValuation(ctx context.Context, scope Scope) (domain.InventoryValuation, error)
	GetDashboardSummary(ctx context.Context, scope Scope, from time.Time, to time.Time) (domain.DashboardSummary, error)
	GetCreditReport(ctx context.Context, scope Scope) (domain.CreditReport, error)
	GetFinancialReport(ctx context.Context, scope Scope) (domain.FinancialReport, error)

	// audit
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, scope Scope, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)
}
