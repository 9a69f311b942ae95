package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	shopsByID       map[string]domain.Shop
	usersByUsername map[string]domain.UserAccount
	itemsByID       map[string]domain.Item
	suppliersByID   map[string]domain.Supplier
	purchasesByID   map[string]domain.Purchase
	salesByID       map[string]*domain.Sale
	customersByID   map[string]domain.Customer
	creditEntries   map[string]domain.CreditEntry
	creditPayments  []domain.CreditPayment
	movements       []domain.StockMovement
	ledger          []domain.LedgerEntry
	shiftsByID      map[string]domain.Shift
	auditLogs       []domain.AuditLog
	receiptSeq      map[string]int
}

func New() *Store {
	return &Store{
		shopsByID:       make(map[string]domain.Shop),
		usersByUsername: make(map[string]domain.UserAccount),
		itemsByID:       make(map[string]domain.Item),
		suppliersByID:   make(map[string]domain.Supplier),
		purchasesByID:   make(map[string]domain.Purchase),
		salesByID:       make(map[string]*domain.Sale),
		customersByID:   make(map[string]domain.Customer),
		creditEntries:   make(map[string]domain.CreditEntry),
		creditPayments:  make([]domain.CreditPayment, 0, 32),
		movements:       make([]domain.StockMovement, 0, 128),
		ledger:          make([]domain.LedgerEntry, 0, 128),
		shiftsByID:      make(map[string]domain.Shift),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		receiptSeq:      make(map[string]int),
	}
}

// NewSeeded builds an in-memory store with a demo shop, users, and a few
// stocked items for dev mode. Seed credentials come from SEED_ADMIN_PASSWORD
// and SEED_CASHIER_PASSWORD; hardcoded dev defaults are used with a warning
// when unset. Production deployments use PostgreSQL via DATABASE_URL.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	shop := domain.Shop{ID: "shop-demo", Name: "Demo Shop", CreatedAt: now}
	s.shopsByID[shop.ID] = shop

	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		s.usersByUsername[u.username] = domain.UserAccount{
			ID:        xid.New("user"),
			ShopID:    shop.ID,
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}

	supplier := domain.Supplier{ID: "sup-demo", ShopID: shop.ID, Name: "Kamau Distributors", Phone: "0712000111", CreatedAt: now}
	s.suppliersByID[supplier.ID] = supplier

	seedItems := []struct {
		name    string
		cat     string
		buy     string
		sell    string
		qty     int
		minimum int
	}{
		{"Oil Filter", "Auto Parts", "250", "400", 20, 5},
		{"Brake Pads", "Auto Parts", "1200", "1800", 12, 4},
		{"Engine Oil 1L", "Lubricants", "550", "780", 30, 10},
		{"Spark Plug", "Auto Parts", "150", "250", 40, 10},
		{"Air Filter", "Auto Parts", "300", "480", 15, 5},
		{"Coolant 1L", "Lubricants", "280", "420", 18, 6},
	}
	for _, it := range seedItems {
		item := domain.Item{
			ID:           xid.New("item"),
			ShopID:       shop.ID,
			Name:         it.name,
			Category:     it.cat,
			BuyingPrice:  decimal.RequireFromString(it.buy),
			SellingPrice: decimal.RequireFromString(it.sell),
			Quantity:     it.qty,
			MinStock:     it.minimum,
			SupplierID:   supplier.ID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.itemsByID[item.ID] = item
	}

	return s
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (s *Store) CreateShop(_ context.Context, shop domain.Shop) (*domain.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if shop.ID == "" {
		shop.ID = xid.New("shop")
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}
	for _, existing := range s.shopsByID {
		if strings.EqualFold(existing.Name, shop.Name) {
			return nil, fmt.Errorf("shop %q: %w", shop.Name, store.ErrConflict)
		}
	}
	s.shopsByID[shop.ID] = shop
	created := shop
	return &created, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.usersByUsername[user.Username]; exists {
		return fmt.Errorf("username %q: %w", user.Username, store.ErrConflict)
	}
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.usersByUsername[username]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyUser := user
	return &copyUser, nil
}

func (s *Store) ListUsers(_ context.Context, scope store.Scope) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		if user.ShopID != scope.ShopID {
			continue
		}
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int { return strings.Compare(a.Username, b.Username) })
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, scope store.Scope, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, exists := s.usersByUsername[username]
	if !exists || user.ShopID != scope.ShopID {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) CreateItem(_ context.Context, scope store.Scope, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createItemLocked(scope, item)
}

func (s *Store) createItemLocked(scope store.Scope, item domain.Item) (*domain.Item, error) {
	for _, existing := range s.itemsByID {
		if existing.ShopID == scope.ShopID && strings.EqualFold(existing.Name, item.Name) {
			return nil, fmt.Errorf("item %q: %w", item.Name, store.ErrConflict)
		}
	}
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	now := time.Now().UTC()
	item.ShopID = scope.ShopID
	item.CreatedAt = now
	item.UpdatedAt = now
	s.itemsByID[item.ID] = item
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(_ context.Context, scope store.Scope, item domain.Item) (*domain.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.itemsByID[item.ID]
	if !exists || existing.ShopID != scope.ShopID {
		return nil, store.ErrNotFound
	}
	for id, other := range s.itemsByID {
		if id != item.ID && other.ShopID == scope.ShopID && strings.EqualFold(other.Name, item.Name) {
			return nil, fmt.Errorf("item %q: %w", item.Name, store.ErrConflict)
		}
	}
	existing.Name = item.Name
	existing.Category = item.Category
	existing.BuyingPrice = item.BuyingPrice
	existing.SellingPrice = item.SellingPrice
	existing.MinStock = item.MinStock
	existing.SupplierID = item.SupplierID
	existing.UpdatedAt = time.Now().UTC()
	s.itemsByID[item.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) DeleteItem(_ context.Context, scope store.Scope, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, exists := s.itemsByID[itemID]
	if !exists || item.ShopID != scope.ShopID {
		return store.ErrNotFound
	}
	for _, sale := range s.salesByID {
		if sale.ShopID != scope.ShopID {
			continue
		}
		for _, line := range sale.Items {
			if line.ItemID == itemID {
				return fmt.Errorf("item has sale history: %w", store.ErrConflict)
			}
		}
	}
	delete(s.itemsByID, itemID)
	return nil
}

func (s *Store) GetItemByID(_ context.Context, scope store.Scope, itemID string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, exists := s.itemsByID[itemID]
	if !exists || item.ShopID != scope.ShopID {
		return nil, store.ErrNotFound
	}
	copyItem := item
	return &copyItem, nil
}

func (s *Store) FindItemByName(_ context.Context, scope store.Scope, name string) (*domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item := s.findItemByNameLocked(scope, name)
	if item == nil {
		return nil, store.ErrNotFound
	}
	copyItem := *item
	return &copyItem, nil
}

func (s *Store) findItemByNameLocked(scope store.Scope, name string) *domain.Item {
	for _, item := range s.itemsByID {
		if item.ShopID == scope.ShopID && strings.EqualFold(item.Name, name) {
			copyItem := item
			return &copyItem
		}
	}
	return nil
}

func (s *Store) ListItems(_ context.Context, scope store.Scope, filter domain.ItemListFilter) ([]domain.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.Limit < 1 {
		filter.Limit = 200
	}
	items := make([]domain.Item, 0, 64)
	for _, item := range s.itemsByID {
		if item.ShopID != scope.ShopID {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(item.Name), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Category != "" && item.Category != filter.Category {
			continue
		}
		if filter.LowStock && item.Quantity > item.MinStock {
			continue
		}
		items = append(items, item)
	}
	slices.SortFunc(items, func(a, b domain.Item) int { return strings.Compare(a.Name, b.Name) })
	if len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (s *Store) ListCategories(_ context.Context, scope store.Scope) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := make(map[string]struct{})
	for _, item := range s.itemsByID {
		if item.ShopID == scope.ShopID {
			set[item.Category] = struct{}{}
		}
	}
	categories := make([]string, 0, len(set))
	for category := range set {
		categories = append(categories, category)
	}
	slices.Sort(categories)
	return categories, nil
}

func (s *Store) CreateSupplier(_ context.Context, scope store.Scope, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createSupplierLocked(scope, supplier)
}

func (s *Store) createSupplierLocked(scope store.Scope, supplier domain.Supplier) (*domain.Supplier, error) {
	for _, existing := range s.suppliersByID {
		if existing.ShopID == scope.ShopID && strings.EqualFold(existing.Name, supplier.Name) {
			return nil, fmt.Errorf("supplier %q: %w", supplier.Name, store.ErrConflict)
		}
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.ShopID = scope.ShopID
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(_ context.Context, scope store.Scope, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.suppliersByID[supplier.ID]
	if !exists || existing.ShopID != scope.ShopID {
		return nil, store.ErrNotFound
	}
	existing.Name = supplier.Name
	existing.Phone = supplier.Phone
	existing.Email = supplier.Email
	existing.Address = supplier.Address
	s.suppliersByID[supplier.ID] = existing
	updated := existing
	return &updated, nil
}

func (s *Store) GetSupplierByID(_ context.Context, scope store.Scope, supplierID string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, exists := s.suppliersByID[supplierID]
	if !exists || supplier.ShopID != scope.ShopID {
		return nil, store.ErrNotFound
	}
	copySupplier := supplier
	return &copySupplier, nil
}

func (s *Store) FindSupplierByName(_ context.Context, scope store.Scope, name string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, supplier := range s.suppliersByID {
		if supplier.ShopID == scope.ShopID && strings.EqualFold(supplier.Name, name) {
			copySupplier := supplier
			return &copySupplier, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListSuppliers(_ context.Context, scope store.Scope) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliersByID))
	for _, supplier := range s.suppliersByID {
		if supplier.ShopID == scope.ShopID {
			suppliers = append(suppliers, supplier)
		}
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int { return strings.Compare(a.Name, b.Name) })
	return suppliers, nil
}

func (s *Store) ListPurchasesBySupplier(_ context.Context, scope store.Scope, supplierID string, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	purchases := make([]domain.Purchase, 0, 32)
	for _, p := range s.purchasesByID {
		if p.ShopID == scope.ShopID && p.SupplierID == supplierID {
			purchases = append(purchases, p)
		}
	}
	sortPurchases(purchases)
	if len(purchases) > limit {
		purchases = purchases[:limit]
	}
	return purchases, nil
}

func (s *Store) ListPurchases(_ context.Context, scope store.Scope, limit int) ([]domain.Purchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	purchases := make([]domain.Purchase, 0, 32)
	for _, p := range s.purchasesByID {
		if p.ShopID == scope.ShopID {
			purchases = append(purchases, p)
		}
	}
	sortPurchases(purchases)
	if len(purchases) > limit {
		purchases = purchases[:limit]
	}
	return purchases, nil
}

func sortPurchases(purchases []domain.Purchase) {
	slices.SortFunc(purchases, func(a, b domain.Purchase) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
}

func (s *Store) CreateCustomer(_ context.Context, scope store.Scope, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	now := time.Now().UTC()
	customer.ShopID = scope.ShopID
	customer.CreatedAt = now
	customer.UpdatedAt = now
	s.customersByID[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(_ context.Context, scope store.Scope, customerID string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customersByID[customerID]
	if !exists || customer.ShopID != scope.ShopID {
		return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
	}
	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) FindCustomer(_ context.Context, scope store.Scope, name string, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer := s.findCustomerLocked(scope, name, phone)
	if customer == nil {
		return nil, store.ErrNotFound
	}
	copyCustomer := *customer
	return &copyCustomer, nil
}

func (s *Store) findCustomerLocked(scope store.Scope, name string, phone string) *domain.Customer {
	for _, customer := range s.customersByID {
		if customer.ShopID != scope.ShopID {
			continue
		}
		if strings.EqualFold(customer.Name, name) || (phone != "" && customer.Phone == phone) {
			copyCustomer := customer
			return &copyCustomer
		}
	}
	return nil
}

func (s *Store) UpdateCustomerPhone(_ context.Context, scope store.Scope, customerID string, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[customerID]
	if !exists || customer.ShopID != scope.ShopID {
		return store.ErrNotFound
	}
	customer.Phone = phone
	customer.UpdatedAt = time.Now().UTC()
	s.customersByID[customerID] = customer
	return nil
}

func (s *Store) ListCustomers(_ context.Context, scope store.Scope, search string, limit int) ([]domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	customers := make([]domain.Customer, 0, 32)
	for _, customer := range s.customersByID {
		if customer.ShopID != scope.ShopID {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(customer.Name), strings.ToLower(search)) &&
			!strings.Contains(customer.Phone, search) {
			continue
		}
		customers = append(customers, customer)
	}
	slices.SortFunc(customers, func(a, b domain.Customer) int { return strings.Compare(a.Name, b.Name) })
	if len(customers) > limit {
		customers = customers[:limit]
	}
	return customers, nil
}

func (s *Store) GetCustomerDetail(ctx context.Context, scope store.Scope, customerID string) (*domain.CustomerDetail, error) {
	customer, err := s.GetCustomerByID(ctx, scope, customerID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ListCreditEntries(ctx, scope, customerID)
	if err != nil {
		return nil, err
	}
	payments, err := s.ListCreditPayments(ctx, scope, customerID)
	if err != nil {
		return nil, err
	}
	return &domain.CustomerDetail{Customer: *customer, Entries: entries, Payments: payments}, nil
}

func (s *Store) allocateReceiptLocked(shopID string, at time.Time) string {
	day := at.UTC().Format("20060102")
	key := shopID + ":" + day
	s.receiptSeq[key]++
	return fmt.Sprintf("TS-%s-%04d", day, s.receiptSeq[key])
}

func (s *Store) appendMovementLocked(m domain.StockMovement) {
	if m.ID == "" {
		m.ID = xid.New("mov")
	}
	s.movements = append(s.movements, m)
}

func (s *Store) appendLedgerPairLocked(shopID string, refType string, refID string, at time.Time,
	debitAccount string, debitType string, creditAccount string, creditType string, amount decimal.Decimal, description string) {
	s.ledger = append(s.ledger,
		domain.LedgerEntry{
			ID: xid.New("gl"), ShopID: shopID, Account: debitAccount, AccountType: debitType,
			Debit: amount, Credit: decimal.Zero, RefType: refType, RefID: refID,
			Description: description, CreatedAt: at,
		},
		domain.LedgerEntry{
			ID: xid.New("gl"), ShopID: shopID, Account: creditAccount, AccountType: creditType,
			Debit: decimal.Zero, Credit: amount, RefType: refType, RefID: refID,
			Description: description, CreatedAt: at,
		})
}

func (s *Store) CreateSale(_ context.Context, scope store.Scope, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	// Validate every line before mutating anything so a failed sale leaves
	// no partial effects.
	for _, line := range sale.Items {
		item, exists := s.itemsByID[line.ItemID]
		if !exists || item.ShopID != scope.ShopID {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, store.ErrNotFound)
		}
		if item.Quantity < line.Quantity {
			return nil, fmt.Errorf("%w: %s has %d in stock, requested %d",
				store.ErrInsufficientStock, item.Name, item.Quantity, line.Quantity)
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.ShopID = scope.ShopID
	sale.Status = domain.SaleStatusCompleted

	if sale.CustomerName != "" && sale.CustomerName != domain.WalkInCustomer {
		customer := s.findCustomerLocked(scope, sale.CustomerName, sale.CustomerPhone)
		if customer == nil {
			now := time.Now().UTC()
			created := domain.Customer{
				ID:          xid.New("cust"),
				ShopID:      scope.ShopID,
				Name:        sale.CustomerName,
				Phone:       sale.CustomerPhone,
				TotalCredit: decimal.Zero,
				CreatedAt:   now,
				UpdatedAt:   now,
			}
			s.customersByID[created.ID] = created
			customer = &created
		} else if sale.CustomerPhone != "" && customer.Phone != sale.CustomerPhone {
			customer.Phone = sale.CustomerPhone
			customer.UpdatedAt = time.Now().UTC()
			s.customersByID[customer.ID] = *customer
		}
		sale.CustomerID = customer.ID
		sale.CustomerName = customer.Name
	}

	sale.ReceiptNumber = s.allocateReceiptLocked(scope.ShopID, sale.CreatedAt)

	for i := range sale.Items {
		line := &sale.Items[i]
		if line.ID == "" {
			line.ID = xid.New("sline")
		}
		line.SaleID = sale.ID

		item := s.itemsByID[line.ItemID]
		item.Quantity -= line.Quantity
		item.UpdatedAt = time.Now().UTC()
		s.itemsByID[line.ItemID] = item
		line.ItemName = item.Name

		s.appendMovementLocked(domain.StockMovement{
			ShopID:       scope.ShopID,
			ItemID:       line.ItemID,
			MovementType: domain.MovementOut,
			Quantity:     line.Quantity,
			BalanceAfter: item.Quantity,
			RefType:      "sale",
			RefID:        sale.ID,
			Notes:        sale.ReceiptNumber,
			CreatedAt:    sale.CreatedAt,
		})

		cogs := line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		s.appendLedgerPairLocked(scope.ShopID, "sale", sale.ID, sale.CreatedAt,
			domain.AccountCOGS, domain.AccountTypeExpense,
			domain.AccountInventory, domain.AccountTypeAsset,
			cogs, "COGS "+sale.ReceiptNumber+" "+item.Name)
	}

	s.appendLedgerPairLocked(scope.ShopID, "sale", sale.ID, sale.CreatedAt,
		domain.PaymentAccount(sale.PaymentType), domain.AccountTypeAsset,
		domain.AccountSales, domain.AccountTypeRevenue,
		sale.TotalAmount, "Sale "+sale.ReceiptNumber)

	if sale.PaymentType == domain.PaymentCredit {
		entry := domain.CreditEntry{
			ID:         xid.New("credit"),
			ShopID:     scope.ShopID,
			CustomerID: sale.CustomerID,
			SaleID:     sale.ID,
			Amount:     sale.TotalAmount,
			PaidAmount: decimal.Zero,
			Balance:    sale.TotalAmount,
			Status:     domain.CreditStatusUnpaid,
			CreatedAt:  sale.CreatedAt,
			UpdatedAt:  sale.CreatedAt,
		}
		s.creditEntries[entry.ID] = entry

		customer := s.customersByID[sale.CustomerID]
		customer.TotalCredit = customer.TotalCredit.Add(sale.TotalAmount)
		customer.UpdatedAt = time.Now().UTC()
		s.customersByID[sale.CustomerID] = customer
	}

	stored := sale
	s.salesByID[sale.ID] = &stored
	result := sale
	return &result, nil
}

func (s *Store) VoidSale(_ context.Context, scope store.Scope, saleID string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[saleID]
	if !exists || sale.ShopID != scope.ShopID {
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	if sale.Status == domain.SaleStatusVoided {
		return nil, fmt.Errorf("sale %s: %w", sale.ReceiptNumber, store.ErrAlreadyVoided)
	}

	for _, line := range sale.Items {
		item := s.itemsByID[line.ItemID]
		item.Quantity += line.Quantity
		item.UpdatedAt = time.Now().UTC()
		s.itemsByID[line.ItemID] = item

		s.appendMovementLocked(domain.StockMovement{
			ShopID:       scope.ShopID,
			ItemID:       line.ItemID,
			MovementType: domain.MovementReturn,
			Quantity:     line.Quantity,
			BalanceAfter: item.Quantity,
			RefType:      "void",
			RefID:        sale.ID,
			Notes:        "void " + sale.ReceiptNumber,
			CreatedAt:    at,
		})

		cogs := line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		s.appendLedgerPairLocked(scope.ShopID, "sale", sale.ID, at,
			domain.AccountInventory, domain.AccountTypeAsset,
			domain.AccountCOGS, domain.AccountTypeExpense,
			cogs, "Void COGS "+sale.ReceiptNumber+" "+item.Name)
	}

	s.appendLedgerPairLocked(scope.ShopID, "sale", sale.ID, at,
		domain.AccountSales, domain.AccountTypeRevenue,
		domain.PaymentAccount(sale.PaymentType), domain.AccountTypeAsset,
		sale.TotalAmount, "Void sale "+sale.ReceiptNumber)

	if sale.PaymentType == domain.PaymentCredit && sale.CustomerID != "" {
		for id, entry := range s.creditEntries {
			if entry.SaleID == sale.ID && entry.ShopID == scope.ShopID {
				entry.Status = domain.CreditStatusVoided
				entry.UpdatedAt = at
				s.creditEntries[id] = entry
			}
		}
		customer := s.customersByID[sale.CustomerID]
		customer.TotalCredit = customer.TotalCredit.Sub(sale.TotalAmount)
		if customer.TotalCredit.IsNegative() {
			customer.TotalCredit = decimal.Zero
		}
		customer.UpdatedAt = time.Now().UTC()
		s.customersByID[sale.CustomerID] = customer
	}

	sale.Status = domain.SaleStatusVoided
	result := *sale
	return &result, nil
}

func (s *Store) GetSaleByID(_ context.Context, scope store.Scope, saleID string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[saleID]
	if !exists || sale.ShopID != scope.ShopID {
		return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
	}
	result := *sale
	return &result, nil
}

func (s *Store) ListSales(_ context.Context, scope store.Scope, filter domain.SaleListFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.Limit < 1 {
		filter.Limit = 100
	}
	sales := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if sale.ShopID != scope.ShopID {
			continue
		}
		if filter.From != nil && sale.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !sale.CreatedAt.Before(*filter.To) {
			continue
		}
		if filter.PaymentType != "" && sale.PaymentType != filter.PaymentType {
			continue
		}
		if filter.Status != "" && sale.Status != filter.Status {
			continue
		}
		sales = append(sales, *sale)
	}
	slices.SortFunc(sales, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ReceiptNumber, a.ReceiptNumber)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if len(sales) > filter.Limit {
		sales = sales[:filter.Limit]
	}
	return sales, nil
}

func (s *Store) RecordPurchaseBatch(_ context.Context, scope store.Scope, req domain.PurchaseRequest, at time.Time) (*domain.PurchaseResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(req.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	supplier, err := s.resolveSupplierLocked(scope, req)
	if err != nil {
		return nil, err
	}

	// Pre-validate item references so nothing is applied on failure.
	for _, line := range req.Items {
		if line.ItemID == "" {
			continue
		}
		item, exists := s.itemsByID[line.ItemID]
		if !exists || item.ShopID != scope.ShopID {
			return nil, fmt.Errorf("item %s: %w", line.ItemID, store.ErrNotFound)
		}
	}

	purchases := make([]domain.Purchase, 0, len(req.Items))
	for _, line := range req.Items {
		item := s.resolvePurchaseItemLocked(scope, supplier.ID, line)

		purchaseDate := at
		if line.Date != nil {
			purchaseDate = *line.Date
		}
		totalCost := line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		purchase := domain.Purchase{
			ID:          xid.New("pur"),
			ShopID:      scope.ShopID,
			ItemID:      item.ID,
			ItemName:    item.Name,
			SupplierID:  supplier.ID,
			Quantity:    line.Quantity,
			BuyingPrice: line.BuyingPrice,
			TotalCost:   totalCost,
			Date:        purchaseDate,
			CreatedAt:   at,
		}
		s.purchasesByID[purchase.ID] = purchase

		s.appendMovementLocked(domain.StockMovement{
			ShopID:       scope.ShopID,
			ItemID:       item.ID,
			MovementType: domain.MovementIn,
			Quantity:     line.Quantity,
			BalanceAfter: item.Quantity,
			RefType:      "purchase",
			RefID:        purchase.ID,
			Notes:        "purchase from " + supplier.Name,
			CreatedAt:    at,
		})

		s.appendLedgerPairLocked(scope.ShopID, "purchase", purchase.ID, at,
			domain.AccountInventory, domain.AccountTypeAsset,
			domain.AccountCash, domain.AccountTypeAsset,
			totalCost, "Purchase "+item.Name+" from "+supplier.Name)

		purchases = append(purchases, purchase)
	}

	return &domain.PurchaseResponse{Supplier: *supplier, Purchases: purchases}, nil
}

func (s *Store) resolveSupplierLocked(scope store.Scope, req domain.PurchaseRequest) (*domain.Supplier, error) {
	if req.SupplierID != "" {
		supplier, exists := s.suppliersByID[req.SupplierID]
		if !exists || supplier.ShopID != scope.ShopID {
			return nil, fmt.Errorf("supplier %s: %w", req.SupplierID, store.ErrNotFound)
		}
		copySupplier := supplier
		return &copySupplier, nil
	}

	name := req.SupplierName
	var contact domain.SupplierUpsertRequest
	if req.Supplier != nil {
		contact = *req.Supplier
		if name == "" {
			name = contact.Name
		}
	}

	for id, supplier := range s.suppliersByID {
		if supplier.ShopID == scope.ShopID && strings.EqualFold(supplier.Name, name) {
			if contact.Phone != "" {
				supplier.Phone = contact.Phone
			}
			if contact.Email != "" {
				supplier.Email = contact.Email
			}
			if contact.Address != "" {
				supplier.Address = contact.Address
			}
			s.suppliersByID[id] = supplier
			copySupplier := supplier
			return &copySupplier, nil
		}
	}

	supplier := domain.Supplier{
		ID:        xid.New("sup"),
		ShopID:    scope.ShopID,
		Name:      name,
		Phone:     contact.Phone,
		Email:     contact.Email,
		Address:   contact.Address,
		CreatedAt: time.Now().UTC(),
	}
	s.suppliersByID[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) resolvePurchaseItemLocked(scope store.Scope, supplierID string, line domain.PurchaseLine) domain.Item {
	var item domain.Item
	if line.ItemID != "" {
		item = s.itemsByID[line.ItemID]
	} else if found := s.findItemByNameLocked(scope, line.ItemName); found != nil {
		item = *found
	} else {
		selling := line.SellingPrice
		if selling.IsZero() {
			selling = line.BuyingPrice.Mul(decimal.NewFromFloat(1.3))
		}
		category := line.Category
		if category == "" {
			category = "General"
		}
		minStock := line.MinStock
		if minStock < 1 {
			minStock = 5
		}
		now := time.Now().UTC()
		item = domain.Item{
			ID:           xid.New("item"),
			ShopID:       scope.ShopID,
			Name:         line.ItemName,
			Category:     category,
			SellingPrice: selling,
			MinStock:     minStock,
			CreatedAt:    now,
		}
	}

	item.BuyingPrice = line.BuyingPrice
	if line.SellingPrice.IsPositive() {
		item.SellingPrice = line.SellingPrice
	}
	item.Quantity += line.Quantity
	item.SupplierID = supplierID
	item.UpdatedAt = time.Now().UTC()
	s.itemsByID[item.ID] = item
	return item
}

func (s *Store) PayCredit(_ context.Context, scope store.Scope, customerID string, payment domain.CreditPayment) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	customer, exists := s.customersByID[customerID]
	if !exists || customer.ShopID != scope.ShopID {
		return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
	}

	if payment.EntryID != "" {
		entry, exists := s.creditEntries[payment.EntryID]
		if !exists || entry.CustomerID != customerID || entry.ShopID != scope.ShopID {
			return nil, fmt.Errorf("credit entry %s: %w", payment.EntryID, store.ErrNotFound)
		}
		entry.PaidAmount = entry.PaidAmount.Add(payment.Amount)
		entry.Balance = entry.Amount.Sub(entry.PaidAmount)
		if entry.Balance.IsNegative() {
			entry.Balance = decimal.Zero
		}
		if !entry.Balance.IsPositive() {
			entry.Status = domain.CreditStatusPaid
		} else if entry.PaidAmount.IsPositive() {
			entry.Status = domain.CreditStatusPartial
		}
		entry.UpdatedAt = time.Now().UTC()
		s.creditEntries[payment.EntryID] = entry
	}

	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = time.Now().UTC()
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = payment.CreatedAt
	}
	payment.ShopID = scope.ShopID
	payment.CustomerID = customerID
	s.creditPayments = append(s.creditPayments, payment)

	customer.TotalCredit = customer.TotalCredit.Sub(payment.Amount)
	if customer.TotalCredit.IsNegative() {
		customer.TotalCredit = decimal.Zero
	}
	customer.UpdatedAt = time.Now().UTC()
	s.customersByID[customerID] = customer

	s.appendLedgerPairLocked(scope.ShopID, "credit_payment", payment.ID, payment.CreatedAt,
		domain.AccountCash, domain.AccountTypeAsset,
		domain.AccountReceivable, domain.AccountTypeAsset,
		payment.Amount, "Credit payment from "+customer.Name)

	copyCustomer := customer
	return &copyCustomer, nil
}

func (s *Store) ListCreditEntries(_ context.Context, scope store.Scope, customerID string) ([]domain.CreditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.CreditEntry, 0, 16)
	for _, entry := range s.creditEntries {
		if entry.ShopID == scope.ShopID && entry.CustomerID == customerID {
			entries = append(entries, entry)
		}
	}
	slices.SortFunc(entries, func(a, b domain.CreditEntry) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return entries, nil
}

func (s *Store) ListCreditPayments(_ context.Context, scope store.Scope, customerID string) ([]domain.CreditPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payments := make([]domain.CreditPayment, 0, 16)
	for _, payment := range s.creditPayments {
		if payment.ShopID == scope.ShopID && payment.CustomerID == customerID {
			payments = append(payments, payment)
		}
	}
	slices.SortFunc(payments, func(a, b domain.CreditPayment) int {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		if a.CreatedAt.Before(b.CreatedAt) {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	return payments, nil
}

func (s *Store) ListStockMovements(_ context.Context, scope store.Scope, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if filter.Limit < 1 {
		filter.Limit = 200
	}
	movements := make([]domain.StockMovement, 0, 64)
	for _, m := range s.movements {
		if m.ShopID != scope.ShopID {
			continue
		}
		if filter.ItemID != "" && m.ItemID != filter.ItemID {
			continue
		}
		if filter.MovementType != "" && m.MovementType != filter.MovementType {
			continue
		}
		if filter.From != nil && m.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !m.CreatedAt.Before(*filter.To) {
			continue
		}
		if item, exists := s.itemsByID[m.ItemID]; exists {
			m.ItemName = item.Name
		}
		movements = append(movements, m)
	}
	slices.Reverse(movements)
	if len(movements) > filter.Limit {
		movements = movements[:filter.Limit]
	}
	return movements, nil
}

func (s *Store) ListLedgerEntries(_ context.Context, scope store.Scope, refType string, refID string) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.LedgerEntry, 0, 16)
	for _, entry := range s.ledger {
		if entry.ShopID == scope.ShopID && entry.RefType == refType && entry.RefID == refID {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func (s *Store) OpenShift(_ context.Context, scope store.Scope, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.shiftsByID {
		if existing.ShopID == scope.ShopID && existing.UserID == scope.UserID && existing.Status == domain.ShiftStatusOpen {
			return nil, store.ErrShiftOpen
		}
	}

	if shift.ID == "" {
		shift.ID = xid.New("shift")
	}
	if shift.StartTime.IsZero() {
		shift.StartTime = time.Now().UTC()
	}
	shift.ShopID = scope.ShopID
	shift.UserID = scope.UserID
	shift.Status = domain.ShiftStatusOpen
	s.shiftsByID[shift.ID] = shift
	created := shift
	return &created, nil
}

func (s *Store) CloseShift(_ context.Context, scope store.Scope, actualCash decimal.Decimal, notes string, at time.Time) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var open *domain.Shift
	for id := range s.shiftsByID {
		shift := s.shiftsByID[id]
		if shift.ShopID == scope.ShopID && shift.UserID == scope.UserID && shift.Status == domain.ShiftStatusOpen {
			open = &shift
			break
		}
	}
	if open == nil {
		return nil, store.ErrNoOpenShift
	}

	cashSales := decimal.Zero
	for _, sale := range s.salesByID {
		if sale.ShopID == scope.ShopID && sale.PaymentType == domain.PaymentCash &&
			sale.Status == domain.SaleStatusCompleted && !sale.CreatedAt.Before(open.StartTime) {
			cashSales = cashSales.Add(sale.TotalAmount)
		}
	}

	expected := open.StartCash.Add(cashSales)
	variance := actualCash.Sub(expected)
	if notes != "" {
		open.Notes = notes
	}
	open.ExpectedCash = &expected
	open.ActualCash = &actualCash
	open.Variance = &variance
	open.Status = domain.ShiftStatusClosed
	open.EndTime = &at
	s.shiftsByID[open.ID] = *open

	result := *open
	return &result, nil
}

func (s *Store) GetOpenShift(_ context.Context, scope store.Scope) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, shift := range s.shiftsByID {
		if shift.ShopID == scope.ShopID && shift.UserID == scope.UserID && shift.Status == domain.ShiftStatusOpen {
			copyShift := shift
			return &copyShift, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListShifts(_ context.Context, scope store.Scope, limit int) ([]domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 50
	}
	shifts := make([]domain.Shift, 0, 16)
	for _, shift := range s.shiftsByID {
		if shift.ShopID == scope.ShopID {
			shifts = append(shifts, shift)
		}
	}
	slices.SortFunc(shifts, func(a, b domain.Shift) int {
		if a.StartTime.After(b.StartTime) {
			return -1
		}
		if a.StartTime.Before(b.StartTime) {
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
	if len(shifts) > limit {
		shifts = shifts[:limit]
	}
	return shifts, nil
}

func (s *Store) GetDailyReport(_ context.Context, scope store.Scope, from time.Time, to time.Time) (domain.DailyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.DailyReport{
		ShopID:      scope.ShopID,
		Date:        from.UTC().Format("2006-01-02"),
		GrossSales:  decimal.Zero,
		COGS:        decimal.Zero,
		GrossProfit: decimal.Zero,
	}
	byPayment := make(map[string]*domain.DailyReportPayment)

	for _, sale := range s.salesByID {
		if sale.ShopID != scope.ShopID || sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		report.Sales++
		report.GrossSales = report.GrossSales.Add(sale.TotalAmount)
		for _, line := range sale.Items {
			report.COGS = report.COGS.Add(line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		p, exists := byPayment[sale.PaymentType]
		if !exists {
			p = &domain.DailyReportPayment{PaymentType: sale.PaymentType, Total: decimal.Zero}
			byPayment[sale.PaymentType] = p
		}
		p.Sales++
		p.Total = p.Total.Add(sale.TotalAmount)
	}

	report.GrossProfit = report.GrossSales.Sub(report.COGS)
	types := make([]string, 0, len(byPayment))
	for t := range byPayment {
		types = append(types, t)
	}
	slices.Sort(types)
	for _, t := range types {
		report.ByPayment = append(report.ByPayment, *byPayment[t])
	}
	return report, nil
}

func (s *Store) GetInventoryValuation(_ context.Context, scope store.Scope) (domain.InventoryValuation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	valuation := domain.InventoryValuation{ShopID: scope.ShopID, TotalValue: decimal.Zero}
	items := make([]domain.Item, 0, len(s.itemsByID))
	for _, item := range s.itemsByID {
		if item.ShopID == scope.ShopID {
			items = append(items, item)
		}
	}
	slices.SortFunc(items, func(a, b domain.Item) int { return strings.Compare(a.Name, b.Name) })

	for _, item := range items {
		line := domain.ValuationLine{
			ItemID:      item.ID,
			Name:        item.Name,
			Category:    item.Category,
			Quantity:    item.Quantity,
			BuyingPrice: item.BuyingPrice,
			Value:       item.BuyingPrice.Mul(decimal.NewFromInt(int64(item.Quantity))),
		}
		valuation.TotalValue = valuation.TotalValue.Add(line.Value)
		valuation.Items = append(valuation.Items, line)
	}
	return valuation, nil
}

func (s *Store) GetDashboardSummary(_ context.Context, scope store.Scope, from time.Time, to time.Time) (domain.DashboardSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary := domain.DashboardSummary{
		ShopID:       scope.ShopID,
		Date:         from.UTC().Format("2006-01-02"),
		RevenueToday: decimal.Zero,
		OpenCredit:   decimal.Zero,
	}
	hourTotals := make(map[int]*domain.HourlySales)
	topByItem := make(map[string]*domain.TopItem)
	recent := make([]domain.RecentSale, 0, 16)

	for _, sale := range s.salesByID {
		if sale.ShopID != scope.ShopID {
			continue
		}
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		recent = append(recent, domain.RecentSale{
			ID:            sale.ID,
			ReceiptNumber: sale.ReceiptNumber,
			CustomerName:  sale.CustomerName,
			TotalAmount:   sale.TotalAmount,
			PaymentType:   sale.PaymentType,
			Status:        sale.Status,
			ItemCount:     len(sale.Items),
			CreatedAt:     sale.CreatedAt,
		})
		if sale.Status != domain.SaleStatusCompleted {
			continue
		}
		summary.SalesToday++
		summary.RevenueToday = summary.RevenueToday.Add(sale.TotalAmount)

		hour := sale.CreatedAt.UTC().Hour()
		bucket, exists := hourTotals[hour]
		if !exists {
			bucket = &domain.HourlySales{Hour: fmt.Sprintf("%02d:00", hour), Total: decimal.Zero}
			hourTotals[hour] = bucket
		}
		bucket.Sales++
		bucket.Total = bucket.Total.Add(sale.TotalAmount)

		for _, line := range sale.Items {
			top, exists := topByItem[line.ItemID]
			if !exists {
				top = &domain.TopItem{ItemID: line.ItemID, Name: line.ItemName, Revenue: decimal.Zero}
				topByItem[line.ItemID] = top
			}
			top.QuantitySold += line.Quantity
			top.Revenue = top.Revenue.Add(line.Subtotal)
		}
	}
	for _, item := range s.itemsByID {
		if item.ShopID == scope.ShopID && item.Quantity <= item.MinStock {
			summary.LowStockItems++
		}
	}
	for _, customer := range s.customersByID {
		if customer.ShopID == scope.ShopID {
			summary.OpenCredit = summary.OpenCredit.Add(customer.TotalCredit)
		}
	}

	hours := make([]int, 0, len(hourTotals))
	for h := range hourTotals {
		hours = append(hours, h)
	}
	slices.Sort(hours)
	for _, h := range hours {
		summary.HourlySales = append(summary.HourlySales, *hourTotals[h])
	}

	tops := make([]domain.TopItem, 0, len(topByItem))
	for _, top := range topByItem {
		tops = append(tops, *top)
	}
	slices.SortFunc(tops, func(a, b domain.TopItem) int {
		if a.QuantitySold != b.QuantitySold {
			return b.QuantitySold - a.QuantitySold
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(tops) > 5 {
		tops = tops[:5]
	}
	summary.TopItems = tops

	slices.SortFunc(recent, func(a, b domain.RecentSale) int { return b.CreatedAt.Compare(a.CreatedAt) })
	if len(recent) > 10 {
		recent = recent[:10]
	}
	summary.RecentSales = recent
	return summary, nil
}

func (s *Store) GetCreditReport(_ context.Context, scope store.Scope) (domain.CreditReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.CreditReport{ShopID: scope.ShopID, TotalOutstanding: decimal.Zero}

	openByCustomer := make(map[string]int)
	for _, entry := range s.creditEntries {
		if entry.ShopID != scope.ShopID {
			continue
		}
		if entry.Status == domain.CreditStatusPaid || entry.Status == domain.CreditStatusVoided {
			continue
		}
		openByCustomer[entry.CustomerID]++
		report.TotalOutstanding = report.TotalOutstanding.Add(entry.Balance)
		report.OpenEntries = append(report.OpenEntries, entry)
	}
	slices.SortFunc(report.OpenEntries, func(a, b domain.CreditEntry) int { return b.CreatedAt.Compare(a.CreatedAt) })

	for _, customer := range s.customersByID {
		if customer.ShopID != scope.ShopID || !customer.TotalCredit.IsPositive() {
			continue
		}
		report.Customers = append(report.Customers, domain.CreditReportCustomer{
			ID:          customer.ID,
			Name:        customer.Name,
			Phone:       customer.Phone,
			TotalCredit: customer.TotalCredit,
			OpenEntries: openByCustomer[customer.ID],
		})
	}
	slices.SortFunc(report.Customers, func(a, b domain.CreditReportCustomer) int {
		return b.TotalCredit.Cmp(a.TotalCredit)
	})

	for i := len(s.creditPayments) - 1; i >= 0 && len(report.RecentPayments) < 50; i-- {
		if s.creditPayments[i].ShopID == scope.ShopID {
			report.RecentPayments = append(report.RecentPayments, s.creditPayments[i])
		}
	}
	return report, nil
}

func (s *Store) GetFinancialReport(_ context.Context, scope store.Scope) (domain.FinancialReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	report := domain.FinancialReport{
		ShopID:           scope.ShopID,
		TotalRevenue:     decimal.Zero,
		TotalExpenses:    decimal.Zero,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
	}

	byAccount := make(map[string]*domain.AccountBalance)
	for _, entry := range s.ledger {
		if entry.ShopID != scope.ShopID {
			continue
		}
		balance, exists := byAccount[entry.Account]
		if !exists {
			balance = &domain.AccountBalance{
				Account:     entry.Account,
				AccountType: entry.AccountType,
				TotalDebit:  decimal.Zero,
				TotalCredit: decimal.Zero,
			}
			byAccount[entry.Account] = balance
		}
		balance.TotalDebit = balance.TotalDebit.Add(entry.Debit)
		balance.TotalCredit = balance.TotalCredit.Add(entry.Credit)
	}

	names := make([]string, 0, len(byAccount))
	for name := range byAccount {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		balance := byAccount[name]
		switch balance.AccountType {
		case domain.AccountTypeAsset, domain.AccountTypeExpense:
			balance.NetBalance = balance.TotalDebit.Sub(balance.TotalCredit)
		default:
			balance.NetBalance = balance.TotalCredit.Sub(balance.TotalDebit)
		}
		switch balance.AccountType {
		case domain.AccountTypeRevenue:
			report.TotalRevenue = report.TotalRevenue.Add(balance.NetBalance)
		case domain.AccountTypeExpense:
			report.TotalExpenses = report.TotalExpenses.Add(balance.NetBalance)
		case domain.AccountTypeAsset:
			report.TotalAssets = report.TotalAssets.Add(balance.NetBalance)
		case domain.AccountTypeLiability:
			report.TotalLiabilities = report.TotalLiabilities.Add(balance.NetBalance)
		}
		report.TrialBalance = append(report.TrialBalance, *balance)
	}

	report.NetProfit = report.TotalRevenue.Sub(report.TotalExpenses)
	report.Equity = report.TotalAssets.Sub(report.TotalLiabilities)
	return report, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, scope store.Scope, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit < 1 {
		limit = 100
	}
	logs := make([]domain.AuditLog, 0, 32)
	for _, entry := range s.auditLogs {
		if entry.ShopID != scope.ShopID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		logs = append(logs, entry)
	}
	slices.Reverse(logs)
	if len(logs) > limit {
		logs = logs[:limit]
	}
	return logs, nil
}
