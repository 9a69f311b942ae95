package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Shop struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type Item struct {
	ID           string          `json:"id"`
	ShopID       string          `json:"shop_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int             `json:"quantity"`
	MinStock     int             `json:"min_stock"`
	SupplierID   string          `json:"supplier_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type ItemCreateRequest struct {
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	Quantity     int             `json:"quantity"`
	MinStock     int             `json:"min_stock"`
	SupplierID   string          `json:"supplier_id,omitempty"`
}

type ItemUpdateRequest struct {
	Name         *string          `json:"name,omitempty"`
	Category     *string          `json:"category,omitempty"`
	BuyingPrice  *decimal.Decimal `json:"buying_price,omitempty"`
	SellingPrice *decimal.Decimal `json:"selling_price,omitempty"`
	MinStock     *int             `json:"min_stock,omitempty"`
	SupplierID   *string          `json:"supplier_id,omitempty"`
}

type ItemListFilter struct {
	Search   string
	Category string
	LowStock bool
	Limit    int
}

type Supplier struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SupplierUpsertRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

type Purchase struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shop_id"`
	ItemID      string          `json:"item_id"`
	ItemName    string          `json:"item_name"`
	SupplierID  string          `json:"supplier_id"`
	Quantity    int             `json:"quantity"`
	BuyingPrice decimal.Decimal `json:"buying_price"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
}

type PurchaseLine struct {
	ItemID       string          `json:"item_id,omitempty"`
	ItemName     string          `json:"item_name,omitempty"`
	Category     string          `json:"category,omitempty"`
	BuyingPrice  decimal.Decimal `json:"buying_price"`
	SellingPrice decimal.Decimal `json:"selling_price,omitempty"`
	Quantity     int             `json:"quantity"`
	MinStock     int             `json:"min_stock,omitempty"`
	Date         *time.Time      `json:"date,omitempty"`
}

type PurchaseRequest struct {
	SupplierID   string                 `json:"supplier_id,omitempty"`
	SupplierName string                 `json:"supplier_name,omitempty"`
	Supplier     *SupplierUpsertRequest `json:"supplier,omitempty"`
	Items        []PurchaseLine         `json:"items"`
}

type PurchaseResponse struct {
	Supplier  Supplier   `json:"supplier"`
	Purchases []Purchase `json:"purchases"`
}

type Sale struct {
	ID            string          `json:"id"`
	ShopID        string          `json:"shop_id"`
	ReceiptNumber string          `json:"receipt_number"`
	CustomerID    string          `json:"customer_id,omitempty"`
	CustomerName  string          `json:"customer_name,omitempty"`
	CustomerPhone string          `json:"customer_phone,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentType   string          `json:"payment_type"`
	Status        string          `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	Items         []SaleItem      `json:"items,omitempty"`
}

type SaleItem struct {
	ID          string          `json:"id"`
	SaleID      string          `json:"sale_id"`
	ItemID      string          `json:"item_id"`
	ItemName    string          `json:"item_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	BuyingPrice decimal.Decimal `json:"buying_price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

type SaleLine struct {
	ItemID    string           `json:"item_id"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type SaleRequest struct {
	Items         []SaleLine `json:"items"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	PaymentType   string     `json:"payment_type"`
	Notes         string     `json:"notes,omitempty"`
}

type SaleResponse struct {
	Sale          Sale       `json:"sale"`
	Items         []SaleItem `json:"items"`
	ReceiptNumber string     `json:"receipt_number"`
}

type SaleListFilter struct {
	From        *time.Time
	To          *time.Time
	PaymentType string
	Status      string
	Limit       int
}

type StockMovement struct {
	ID           string    `json:"id"`
	ShopID       string    `json:"shop_id"`
	ItemID       string    `json:"item_id"`
	ItemName     string    `json:"item_name,omitempty"`
	MovementType string    `json:"movement_type"`
	Quantity     int       `json:"quantity"`
	BalanceAfter int       `json:"balance_after"`
	RefType      string    `json:"ref_type,omitempty"`
	RefID        string    `json:"ref_id,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type StockMovementFilter struct {
	ItemID       string
	MovementType string
	From         *time.Time
	To           *time.Time
	Limit        int
}

type Customer struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shop_id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

type CreditEntry struct {
	ID         string          `json:"id"`
	ShopID     string          `json:"shop_id"`
	CustomerID string          `json:"customer_id"`
	SaleID     string          `json:"sale_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paid_amount"`
	Balance    decimal.Decimal `json:"balance"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

type CreditPayment struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shop_id"`
	CustomerID  string          `json:"customer_id"`
	EntryID     string          `json:"entry_id,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	PaymentDate time.Time       `json:"payment_date"`
	Notes       string          `json:"notes,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type CreditPaymentRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	EntryID     string          `json:"entry_id,omitempty"`
	PaymentDate *time.Time      `json:"payment_date,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

type CustomerDetail struct {
	Customer Customer        `json:"customer"`
	Entries  []CreditEntry   `json:"entries"`
	Payments []CreditPayment `json:"payments"`
}

type LedgerEntry struct {
	ID          string          `json:"id"`
	ShopID      string          `json:"shop_id"`
	Account     string          `json:"account"`
	AccountType string          `json:"account_type"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	RefType     string          `json:"ref_type"`
	RefID       string          `json:"ref_id"`
	Description string          `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Shift struct {
	ID           string           `json:"id"`
	ShopID       string           `json:"shop_id"`
	UserID       string           `json:"user_id"`
	StartCash    decimal.Decimal  `json:"start_cash"`
	ExpectedCash *decimal.Decimal `json:"expected_cash,omitempty"`
	ActualCash   *decimal.Decimal `json:"actual_cash,omitempty"`
	Variance     *decimal.Decimal `json:"variance,omitempty"`
	Status       string           `json:"status"`
	Notes        string           `json:"notes,omitempty"`
	StartTime    time.Time        `json:"start_time"`
	EndTime      *time.Time       `json:"end_time,omitempty"`
}

type ShiftOpenRequest struct {
	StartCash decimal.Decimal `json:"start_cash"`
	Notes     string          `json:"notes,omitempty"`
}

type ShiftCloseRequest struct {
	ActualCash decimal.Decimal `json:"actual_cash"`
	Notes      string          `json:"notes,omitempty"`
}

type User struct {
	ID        string    `json:"id"`
	ShopID    string    `json:"shop_id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is the internal persistence model for auth credentials.
type UserAccount struct {
	ID        string
	ShopID    string
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type RegisterRequest struct {
	ShopName string `json:"shop_name"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	ShopID      string `json:"shop_id"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	UserID   string
	ShopID   string
	Username string
	Role     string
}

type AuditLog struct {
	ID         string    `json:"id"`
	ShopID     string    `json:"shop_id"`
	ActorName  string    `json:"actor_name"`
	ActorRole  string    `json:"actor_role"`
	Action     string    `json:"action"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

type DailyReportPayment struct {
	PaymentType string          `json:"payment_type"`
	Sales       int64           `json:"sales"`
	Total       decimal.Decimal `json:"total"`
}

type DailyReport struct {
	ShopID      string               `json:"shop_id"`
	Date        string               `json:"date"`
	Sales       int64                `json:"sales"`
	GrossSales  decimal.Decimal      `json:"gross_sales"`
	COGS        decimal.Decimal      `json:"cogs"`
	GrossProfit decimal.Decimal      `json:"gross_profit"`
	ByPayment   []DailyReportPayment `json:"by_payment"`
}

type ValuationLine struct {
	ItemID      string          `json:"item_id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Quantity    int             `json:"quantity"`
	BuyingPrice decimal.Decimal `json:"buying_price"`
	Value       decimal.Decimal `json:"value"`
}

type InventoryValuation struct {
	ShopID     string          `json:"shop_id"`
	Items      []ValuationLine `json:"items"`
	TotalValue decimal.Decimal `json:"total_value"`
}

type HourlySales struct {
	Hour  string          `json:"hour"`
	Sales int64           `json:"sales"`
	Total decimal.Decimal `json:"total"`
}

type TopItem struct {
	ItemID       string          `json:"item_id"`
	Name         string          `json:"name"`
	QuantitySold int             `json:"quantity_sold"`
	Revenue      decimal.Decimal `json:"revenue"`
}

type RecentSale struct {
	ID            string          `json:"id"`
	ReceiptNumber string          `json:"receipt_number"`
	CustomerName  string          `json:"customer_name"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentType   string          `json:"payment_type"`
	Status        string          `json:"status"`
	ItemCount     int             `json:"item_count"`
	CreatedAt     time.Time       `json:"created_at"`
}

type DashboardSummary struct {
	ShopID        string          `json:"shop_id"`
	Date          string          `json:"date"`
	SalesToday    int64           `json:"sales_today"`
	RevenueToday  decimal.Decimal `json:"revenue_today"`
	LowStockItems int             `json:"low_stock_items"`
	OpenCredit    decimal.Decimal `json:"open_credit"`
	HourlySales   []HourlySales   `json:"hourly_sales"`
	TopItems      []TopItem       `json:"top_items"`
	RecentSales   []RecentSale    `json:"recent_sales"`
}

type CreditReportCustomer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone,omitempty"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	OpenEntries int             `json:"open_entries"`
}

type CreditReport struct {
	ShopID           string                 `json:"shop_id"`
	Customers        []CreditReportCustomer `json:"customers"`
	TotalOutstanding decimal.Decimal        `json:"total_outstanding"`
	OpenEntries      []CreditEntry          `json:"open_entries"`
	RecentPayments   []CreditPayment        `json:"recent_payments"`
}

type AccountBalance struct {
	Account     string          `json:"account"`
	AccountType string          `json:"account_type"`
	TotalDebit  decimal.Decimal `json:"total_debit"`
	TotalCredit decimal.Decimal `json:"total_credit"`
	NetBalance  decimal.Decimal `json:"net_balance"`
}

type FinancialReport struct {
	ShopID           string           `json:"shop_id"`
	TrialBalance     []AccountBalance `json:"trial_balance"`
	TotalRevenue     decimal.Decimal  `json:"total_revenue"`
	TotalExpenses    decimal.Decimal  `json:"total_expenses"`
	NetProfit        decimal.Decimal  `json:"net_profit"`
	TotalAssets      decimal.Decimal  `json:"total_assets"`
	TotalLiabilities decimal.Decimal  `json:"total_liabilities"`
	Equity           decimal.Decimal  `json:"equity"`
}

const (
	PaymentCash   = "cash"
	PaymentMpesa  = "mpesa"
	PaymentSacco  = "sacco"
	PaymentCredit = "credit"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"
)

// WalkInCustomer labels anonymous counter sales; it never becomes a customer row.
const WalkInCustomer = "Walk-in Customer"

const (
	MovementIn         = "IN"
	MovementOut        = "OUT"
	MovementReturn     = "RETURN"
	MovementAdjustment = "adjustment"
)

const (
	CreditStatusUnpaid  = "unpaid"
	CreditStatusPartial = "partial"
	CreditStatusPaid    = "paid"
	CreditStatusVoided  = "voided"
)

const (
	ShiftStatusOpen   = "open"
	ShiftStatusClosed = "closed"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	AccountCash       = "Cash"
	AccountMpesa      = "Mpesa"
	AccountSacco      = "Sacco"
	AccountReceivable = "Accounts Receivable"
	AccountInventory  = "Inventory"
	AccountSales      = "Sales Revenue"
	AccountCOGS       = "Cost of Goods Sold"
)

const (
	AccountTypeAsset     = "Asset"
	AccountTypeRevenue   = "Revenue"
	AccountTypeExpense   = "Expense"
	AccountTypeLiability = "Liability"
)

// ValidPayment reports whether p is one of the recognized payment methods.
func ValidPayment(p string) bool {
	switch p {
	case PaymentCash, PaymentMpesa, PaymentSacco, PaymentCredit:
		return true
	}
	return false
}

// PaymentAccount maps a payment method to the ledger account it settles into.
func PaymentAccount(p string) string {
	switch p {
	case PaymentMpesa:
		return AccountMpesa
	case PaymentSacco:
		return AccountSacco
	case PaymentCredit:
		return AccountReceivable
	default:
		return AccountCash
	}
}
