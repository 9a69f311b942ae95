package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) CreateShop(ctx context.Context, shop domain.Shop) (*domain.Shop, error) {
	if shop.ID == "" {
		shop.ID = xid.New("shop")
	}
	if shop.CreatedAt.IsZero() {
		shop.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shops (id, name, created_at)
		VALUES ($1,$2,$3)
	`, shop.ID, shop.Name, shop.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("shop %q: %w", shop.Name, store.ErrConflict)
		}
		return nil, err
	}
	created := shop
	return &created, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	if user.ID == "" {
		user.ID = xid.New("user")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (id, shop_id, username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, user.ID, user.ShopID, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("username %q: %w", user.Username, store.ErrConflict)
		}
		return err
	}
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.UserAccount, error) {
	var user domain.UserAccount
	err := s.db.QueryRowContext(ctx, `
		SELECT id, shop_id, username, password, role, active, created_at
		FROM app_users
		WHERE username = $1
	`, username).Scan(&user.ID, &user.ShopID, &user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (s *Store) ListUsers(ctx context.Context, scope store.Scope) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, username, password, role, active, created_at
		FROM app_users
		WHERE shop_id = $1
		ORDER BY username
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 8)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.ID, &user.ShopID, &user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, scope store.Scope, username string, password string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $3, updated_at = now()
		WHERE shop_id = $1 AND username = $2
	`, scope.ShopID, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

const itemColumns = `id, shop_id, name, category, buying_price, selling_price, quantity, min_stock, COALESCE(supplier_id, ''), created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (*domain.Item, error) {
	var item domain.Item
	err := row.Scan(&item.ID, &item.ShopID, &item.Name, &item.Category, &item.BuyingPrice,
		&item.SellingPrice, &item.Quantity, &item.MinStock, &item.SupplierID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) CreateItem(ctx context.Context, scope store.Scope, item domain.Item) (*domain.Item, error) {
	if item.ID == "" {
		item.ID = xid.New("item")
	}
	now := time.Now().UTC()
	item.ShopID = scope.ShopID
	item.CreatedAt = now
	item.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, shop_id, name, category, buying_price, selling_price, quantity, min_stock, supplier_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
	`, item.ID, item.ShopID, item.Name, item.Category, item.BuyingPrice, item.SellingPrice,
		item.Quantity, item.MinStock, nullIfEmpty(item.SupplierID), now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("item %q: %w", item.Name, store.ErrConflict)
		}
		return nil, err
	}
	created := item
	return &created, nil
}

func (s *Store) UpdateItem(ctx context.Context, scope store.Scope, item domain.Item) (*domain.Item, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE items
		SET name = $3, category = $4, buying_price = $5, selling_price = $6, min_stock = $7, supplier_id = $8, updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`, item.ID, scope.ShopID, item.Name, item.Category, item.BuyingPrice, item.SellingPrice,
		item.MinStock, nullIfEmpty(item.SupplierID))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("item %q: %w", item.Name, store.ErrConflict)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetItemByID(ctx, scope, item.ID)
}

func (s *Store) DeleteItem(ctx context.Context, scope store.Scope, itemID string) error {
	var saleCount int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE si.item_id = $1 AND s.shop_id = $2
	`, itemID, scope.ShopID).Scan(&saleCount)
	if err != nil {
		return err
	}
	if saleCount > 0 {
		return fmt.Errorf("item has sale history: %w", store.ErrConflict)
	}

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM items WHERE id = $1 AND shop_id = $2
	`, itemID, scope.ShopID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetItemByID(ctx context.Context, scope store.Scope, itemID string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE id = $1 AND shop_id = $2
	`, itemID, scope.ShopID)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) FindItemByName(ctx context.Context, scope store.Scope, name string) (*domain.Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+`
		FROM items
		WHERE shop_id = $1 AND LOWER(name) = LOWER($2)
	`, scope.ShopID, name)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return item, nil
}

func (s *Store) ListItems(ctx context.Context, scope store.Scope, filter domain.ItemListFilter) ([]domain.Item, error) {
	if filter.Limit < 1 {
		filter.Limit = 200
	}

	query := `
		SELECT ` + itemColumns + `
		FROM items
		WHERE shop_id = $1
	`
	args := []any{scope.ShopID}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		query += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.LowStock {
		query += " AND quantity <= min_stock"
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY name LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Item, 0, 64)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) ListCategories(ctx context.Context, scope store.Scope) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT category
		FROM items
		WHERE shop_id = $1
		ORDER BY category
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := make([]string, 0, 16)
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return categories, nil
}

func (s *Store) CreateSupplier(ctx context.Context, scope store.Scope, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	supplier.ShopID = scope.ShopID
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, shop_id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, supplier.ID, supplier.ShopID, supplier.Name, nullIfEmpty(supplier.Phone),
		nullIfEmpty(supplier.Email), nullIfEmpty(supplier.Address), supplier.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("supplier %q: %w", supplier.Name, store.ErrConflict)
		}
		return nil, err
	}
	created := supplier
	return &created, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, scope store.Scope, supplier domain.Supplier) (*domain.Supplier, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers
		SET name = $3, phone = $4, email = $5, address = $6
		WHERE id = $1 AND shop_id = $2
	`, supplier.ID, scope.ShopID, supplier.Name, nullIfEmpty(supplier.Phone),
		nullIfEmpty(supplier.Email), nullIfEmpty(supplier.Address))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("supplier %q: %w", supplier.Name, store.ErrConflict)
		}
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetSupplierByID(ctx, scope, supplier.ID)
}

const supplierColumns = `id, shop_id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(address, ''), created_at`

func (s *Store) GetSupplierByID(ctx context.Context, scope store.Scope, supplierID string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE id = $1 AND shop_id = $2
	`, supplierID, scope.ShopID).Scan(&supplier.ID, &supplier.ShopID, &supplier.Name,
		&supplier.Phone, &supplier.Email, &supplier.Address, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) FindSupplierByName(ctx context.Context, scope store.Scope, name string) (*domain.Supplier, error) {
	var supplier domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE shop_id = $1 AND LOWER(name) = LOWER($2)
	`, scope.ShopID, name).Scan(&supplier.ID, &supplier.ShopID, &supplier.Name,
		&supplier.Phone, &supplier.Email, &supplier.Address, &supplier.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &supplier, nil
}

func (s *Store) ListSuppliers(ctx context.Context, scope store.Scope) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE shop_id = $1
		ORDER BY name
	`, scope.ShopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var supplier domain.Supplier
		if err := rows.Scan(&supplier.ID, &supplier.ShopID, &supplier.Name,
			&supplier.Phone, &supplier.Email, &supplier.Address, &supplier.CreatedAt); err != nil {
			return nil, err
		}
		suppliers = append(suppliers, supplier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return suppliers, nil
}

const purchaseColumns = `p.id, p.shop_id, p.item_id, i.name, p.supplier_id, p.quantity, p.buying_price, p.total_cost, p.date, p.created_at`

func (s *Store) ListPurchasesBySupplier(ctx context.Context, scope store.Scope, supplierID string, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases p
		JOIN items i ON i.id = p.item_id
		WHERE p.shop_id = $1 AND p.supplier_id = $2
		ORDER BY p.created_at DESC
		LIMIT $3
	`, scope.ShopID, supplierID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func (s *Store) ListPurchases(ctx context.Context, scope store.Scope, limit int) ([]domain.Purchase, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+purchaseColumns+`
		FROM purchases p
		JOIN items i ON i.id = p.item_id
		WHERE p.shop_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2
	`, scope.ShopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPurchases(rows)
}

func collectPurchases(rows *sql.Rows) ([]domain.Purchase, error) {
	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		var p domain.Purchase
		if err := rows.Scan(&p.ID, &p.ShopID, &p.ItemID, &p.ItemName, &p.SupplierID,
			&p.Quantity, &p.BuyingPrice, &p.TotalCost, &p.Date, &p.CreatedAt); err != nil {
			return nil, err
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return purchases, nil
}

const customerColumns = `id, shop_id, name, COALESCE(phone, ''), total_credit, created_at, updated_at`

func scanCustomer(row interface{ Scan(...any) error }) (*domain.Customer, error) {
	var c domain.Customer
	err := row.Scan(&c.ID, &c.ShopID, &c.Name, &c.Phone, &c.TotalCredit, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, scope store.Scope, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	now := time.Now().UTC()
	customer.ShopID = scope.ShopID
	customer.CreatedAt = now
	customer.UpdatedAt = now
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, shop_id, name, phone, total_credit, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
	`, customer.ID, customer.ShopID, customer.Name, nullIfEmpty(customer.Phone), customer.TotalCredit, now)
	if err != nil {
		return nil, err
	}
	created := customer
	return &created, nil
}

func (s *Store) GetCustomerByID(ctx context.Context, scope store.Scope, customerID string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1 AND shop_id = $2
	`, customerID, scope.ShopID)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *Store) FindCustomer(ctx context.Context, scope store.Scope, name string, phone string) (*domain.Customer, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE shop_id = $1 AND (LOWER(name) = LOWER($2) OR (COALESCE(phone, '') <> '' AND phone = $3))
		ORDER BY created_at
		LIMIT 1
	`, scope.ShopID, name, phone)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return customer, nil
}

func (s *Store) UpdateCustomerPhone(ctx context.Context, scope store.Scope, customerID string, phone string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE customers
		SET phone = $3, updated_at = now()
		WHERE id = $1 AND shop_id = $2
	`, customerID, scope.ShopID, nullIfEmpty(phone))
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) ListCustomers(ctx context.Context, scope store.Scope, search string, limit int) ([]domain.Customer, error) {
	if limit < 1 {
		limit = 100
	}
	query := `
		SELECT ` + customerColumns + `
		FROM customers
		WHERE shop_id = $1
	`
	args := []any{scope.ShopID}
	if search != "" {
		args = append(args, "%"+strings.ToLower(search)+"%")
		query += fmt.Sprintf(" AND (LOWER(name) LIKE $%d OR phone LIKE $%d)", len(args), len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY name LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0, 32)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		customers = append(customers, *customer)
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

// allocateReceipt hands out the next receipt number for the shop's business
// day. The upsert increments a single row per (shop, day), so concurrent
// sales on the same day serialize on that row and never observe the same
// sequence value.
func allocateReceipt(ctx context.Context, tx *sql.Tx, shopID string, at time.Time) (string, error) {
	day := nowDateUTC(at)
	var seq int
	err := tx.QueryRowContext(ctx, `
		INSERT INTO receipt_sequences (shop_id, day, next_seq)
		VALUES ($1,$2,1)
		ON CONFLICT (shop_id, day)
		DO UPDATE SET next_seq = receipt_sequences.next_seq + 1
		RETURNING next_seq
	`, shopID, day).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TS-%s-%04d", day.Format("20060102"), seq), nil
}

func insertLedgerPair(ctx context.Context, tx *sql.Tx, shopID string, refType string, refID string, at time.Time,
	debitAccount string, debitType string, creditAccount string, creditType string, amount decimal.Decimal, description string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO general_ledger (id, shop_id, account, account_type, debit, credit, ref_type, ref_id, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, xid.New("gl"), shopID, debitAccount, debitType, amount, decimal.Zero, refType, refID, description, at)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO general_ledger (id, shop_id, account, account_type, debit, credit, ref_type, ref_id, description, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, xid.New("gl"), shopID, creditAccount, creditType, decimal.Zero, amount, refType, refID, description, at)
	return err
}

func insertMovement(ctx context.Context, tx *sql.Tx, m domain.StockMovement) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, shop_id, item_id, movement_type, quantity, balance_after, ref_type, ref_id, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, xid.New("mov"), m.ShopID, m.ItemID, m.MovementType, m.Quantity, m.BalanceAfter,
		nullIfEmpty(m.RefType), nullIfEmpty(m.RefID), nullIfEmpty(m.Notes), m.CreatedAt)
	return err
}

func (s *Store) CreateSale(ctx context.Context, scope store.Scope, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	sale.ShopID = scope.ShopID
	sale.Status = domain.SaleStatusCompleted

	if sale.CustomerName != "" && sale.CustomerName != domain.WalkInCustomer {
		customer, err := resolveCustomerTx(ctx, pgTx, scope, sale.CustomerName, sale.CustomerPhone)
		if err != nil {
			return nil, err
		}
		sale.CustomerID = customer.ID
		sale.CustomerName = customer.Name
	}

	receipt, err := allocateReceipt(ctx, pgTx, scope.ShopID, sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	sale.ReceiptNumber = receipt

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (id, shop_id, receipt_number, customer_id, customer_name, customer_phone, total_amount, payment_type, status, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, sale.ID, sale.ShopID, sale.ReceiptNumber, nullIfEmpty(sale.CustomerID),
		nullIfEmpty(sale.CustomerName), nullIfEmpty(sale.CustomerPhone),
		sale.TotalAmount, sale.PaymentType, sale.Status, nullIfEmpty(sale.Notes), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("receipt %s: %w", sale.ReceiptNumber, store.ErrConflict)
		}
		return nil, err
	}

	for i := range sale.Items {
		line := &sale.Items[i]
		if line.ID == "" {
			line.ID = xid.New("sline")
		}
		line.SaleID = sale.ID

		// Conditional decrement: zero rows means the quantity check would
		// drive stock negative (or the item vanished), so the whole sale
		// rolls back.
		var newQty int
		var itemName string
		err := pgTx.QueryRowContext(ctx, `
			UPDATE items
			SET quantity = quantity - $3, updated_at = now()
			WHERE id = $1 AND shop_id = $2 AND quantity >= $3
			RETURNING quantity, name
		`, line.ItemID, scope.ShopID, line.Quantity).Scan(&newQty, &itemName)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, saleStockError(ctx, pgTx, scope, line.ItemID, line.Quantity)
			}
			return nil, err
		}
		line.ItemName = itemName

		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO sale_items (id, sale_id, item_id, quantity, unit_price, buying_price, subtotal)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, line.ID, sale.ID, line.ItemID, line.Quantity, line.UnitPrice, line.BuyingPrice, line.Subtotal)
		if err != nil {
			return nil, err
		}

		err = insertMovement(ctx, pgTx, domain.StockMovement{
			ShopID:       scope.ShopID,
			ItemID:       line.ItemID,
			MovementType: domain.MovementOut,
			Quantity:     line.Quantity,
			BalanceAfter: newQty,
			RefType:      "sale",
			RefID:        sale.ID,
			Notes:        receipt,
			CreatedAt:    sale.CreatedAt,
		})
		if err != nil {
			return nil, err
		}

		cogs := line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		err = insertLedgerPair(ctx, pgTx, scope.ShopID, "sale", sale.ID, sale.CreatedAt,
			domain.AccountCOGS, domain.AccountTypeExpense,
			domain.AccountInventory, domain.AccountTypeAsset,
			cogs, "COGS "+receipt+" "+itemName)
		if err != nil {
			return nil, err
		}
	}

	err = insertLedgerPair(ctx, pgTx, scope.ShopID, "sale", sale.ID, sale.CreatedAt,
		domain.PaymentAccount(sale.PaymentType), domain.AccountTypeAsset,
		domain.AccountSales, domain.AccountTypeRevenue,
		sale.TotalAmount, "Sale "+receipt)
	if err != nil {
		return nil, err
	}

	if sale.PaymentType == domain.PaymentCredit {
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO credit_ledger (id, shop_id, customer_id, sale_id, amount, paid_amount, balance, status, created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)
		`, xid.New("credit"), scope.ShopID, sale.CustomerID, sale.ID,
			sale.TotalAmount, decimal.Zero, sale.TotalAmount, domain.CreditStatusUnpaid, sale.CreatedAt)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE customers
			SET total_credit = total_credit + $3, updated_at = now()
			WHERE id = $1 AND shop_id = $2
		`, sale.CustomerID, scope.ShopID, sale.TotalAmount)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func saleStockError(ctx context.Context, tx *sql.Tx, scope store.Scope, itemID string, requested int) error {
	var name string
	var available int
	err := tx.QueryRowContext(ctx, `
		SELECT name, quantity
		FROM items
		WHERE id = $1 AND shop_id = $2
	`, itemID, scope.ShopID).Scan(&name, &available)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %s: %w", itemID, store.ErrNotFound)
		}
		return err
	}
	return fmt.Errorf("%w: %s has %d in stock, requested %d", store.ErrInsufficientStock, name, available, requested)
}

func resolveCustomerTx(ctx context.Context, tx *sql.Tx, scope store.Scope, name string, phone string) (*domain.Customer, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE shop_id = $1 AND (LOWER(name) = LOWER($2) OR (COALESCE(phone, '') <> '' AND $3 <> '' AND phone = $3))
		ORDER BY created_at
		LIMIT 1
		FOR UPDATE
	`, scope.ShopID, name, phone)
	customer, err := scanCustomer(row)
	if err == nil {
		if phone != "" && customer.Phone != phone {
			_, err = tx.ExecContext(ctx, `
				UPDATE customers SET phone = $3, updated_at = now() WHERE id = $1 AND shop_id = $2
			`, customer.ID, scope.ShopID, phone)
			if err != nil {
				return nil, err
			}
			customer.Phone = phone
		}
		return customer, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	now := time.Now().UTC()
	created := domain.Customer{
		ID:          xid.New("cust"),
		ShopID:      scope.ShopID,
		Name:        name,
		Phone:       phone,
		TotalCredit: decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO customers (id, shop_id, name, phone, total_credit, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$6)
	`, created.ID, created.ShopID, created.Name, nullIfEmpty(created.Phone), created.TotalCredit, now)
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *Store) VoidSale(ctx context.Context, scope store.Scope, saleID string, at time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var sale domain.Sale
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, shop_id, receipt_number, COALESCE(customer_id, ''), COALESCE(customer_name, ''), total_amount, payment_type, status, created_at
		FROM sales
		WHERE id = $1 AND shop_id = $2
		FOR UPDATE
	`, saleID, scope.ShopID).Scan(&sale.ID, &sale.ShopID, &sale.ReceiptNumber, &sale.CustomerID,
		&sale.CustomerName, &sale.TotalAmount, &sale.PaymentType, &sale.Status, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
		}
		return nil, err
	}
	if sale.Status == domain.SaleStatusVoided {
		return nil, fmt.Errorf("sale %s: %w", sale.ReceiptNumber, store.ErrAlreadyVoided)
	}

	itemRows, err := pgTx.QueryContext(ctx, `
		SELECT si.item_id, i.name, si.quantity, si.buying_price
		FROM sale_items si
		JOIN items i ON i.id = si.item_id
		WHERE si.sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	lines := make([]domain.SaleItem, 0, 8)
	for itemRows.Next() {
		var line domain.SaleItem
		if err := itemRows.Scan(&line.ItemID, &line.ItemName, &line.Quantity, &line.BuyingPrice); err != nil {
			_ = itemRows.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := itemRows.Err(); err != nil {
		_ = itemRows.Close()
		return nil, err
	}
	_ = itemRows.Close()

	for _, line := range lines {
		var newQty int
		err := pgTx.QueryRowContext(ctx, `
			UPDATE items
			SET quantity = quantity + $3, updated_at = now()
			WHERE id = $1 AND shop_id = $2
			RETURNING quantity
		`, line.ItemID, scope.ShopID, line.Quantity).Scan(&newQty)
		if err != nil {
			return nil, err
		}

		err = insertMovement(ctx, pgTx, domain.StockMovement{
			ShopID:       scope.ShopID,
			ItemID:       line.ItemID,
			MovementType: domain.MovementReturn,
			Quantity:     line.Quantity,
			BalanceAfter: newQty,
			RefType:      "void",
			RefID:        sale.ID,
			Notes:        "void " + sale.ReceiptNumber,
			CreatedAt:    at,
		})
		if err != nil {
			return nil, err
		}

		cogs := line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		err = insertLedgerPair(ctx, pgTx, scope.ShopID, "sale", sale.ID, at,
			domain.AccountInventory, domain.AccountTypeAsset,
			domain.AccountCOGS, domain.AccountTypeExpense,
			cogs, "Void COGS "+sale.ReceiptNumber+" "+line.ItemName)
		if err != nil {
			return nil, err
		}
	}

	err = insertLedgerPair(ctx, pgTx, scope.ShopID, "sale", sale.ID, at,
		domain.AccountSales, domain.AccountTypeRevenue,
		domain.PaymentAccount(sale.PaymentType), domain.AccountTypeAsset,
		sale.TotalAmount, "Void sale "+sale.ReceiptNumber)
	if err != nil {
		return nil, err
	}

	if sale.PaymentType == domain.PaymentCredit && sale.CustomerID != "" {
		_, err = pgTx.ExecContext(ctx, `
			UPDATE credit_ledger
			SET status = $3, updated_at = now()
			WHERE sale_id = $1 AND shop_id = $2
		`, sale.ID, scope.ShopID, domain.CreditStatusVoided)
		if err != nil {
			return nil, err
		}
		_, err = pgTx.ExecContext(ctx, `
			UPDATE customers
			SET total_credit = GREATEST(total_credit - $3, 0), updated_at = now()
			WHERE id = $1 AND shop_id = $2
		`, sale.CustomerID, scope.ShopID, sale.TotalAmount)
		if err != nil {
			return nil, err
		}
	}

	res, err := pgTx.ExecContext(ctx, `
		UPDATE sales
		SET status = $3
		WHERE id = $1 AND shop_id = $2 AND status = $4
	`, sale.ID, scope.ShopID, domain.SaleStatusVoided, domain.SaleStatusCompleted)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, fmt.Errorf("sale %s: %w", sale.ReceiptNumber, store.ErrAlreadyVoided)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	sale.Status = domain.SaleStatusVoided
	return &sale, nil
}

const saleColumns = `id, shop_id, receipt_number, COALESCE(customer_id, ''), COALESCE(customer_name, ''), COALESCE(customer_phone, ''), total_amount, payment_type, status, COALESCE(notes, ''), created_at`

func scanSale(row interface{ Scan(...any) error }) (*domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(&sale.ID, &sale.ShopID, &sale.ReceiptNumber, &sale.CustomerID, &sale.CustomerName,
		&sale.CustomerPhone, &sale.TotalAmount, &sale.PaymentType, &sale.Status, &sale.Notes, &sale.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (s *Store) GetSaleByID(ctx context.Context, scope store.Scope, saleID string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1 AND shop_id = $2
	`, saleID, scope.ShopID)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sale %s: %w", saleID, store.ErrNotFound)
		}
		return nil, err
	}

	itemRows, err := s.db.QueryContext(ctx, `
		SELECT si.id, si.sale_id, si.item_id, i.name, si.quantity, si.unit_price, si.buying_price, si.subtotal
		FROM sale_items si
		JOIN items i ON i.id = si.item_id
		WHERE si.sale_id = $1
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var line domain.SaleItem
		if err := itemRows.Scan(&line.ID, &line.SaleID, &line.ItemID, &line.ItemName,
			&line.Quantity, &line.UnitPrice, &line.BuyingPrice, &line.Subtotal); err != nil {
			return nil, err
		}
		sale.Items = append(sale.Items, line)
	}
	if err := itemRows.Err(); err != nil {
		return nil, err
	}
	return sale, nil
}

func (s *Store) ListSales(ctx context.Context, scope store.Scope, filter domain.SaleListFilter) ([]domain.Sale, error) {
	if filter.Limit < 1 {
		filter.Limit = 100
	}
	query := `
		SELECT ` + saleColumns + `
		FROM sales
		WHERE shop_id = $1
	`
	args := []any{scope.ShopID}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	if filter.PaymentType != "" {
		args = append(args, filter.PaymentType)
		query += fmt.Sprintf(" AND payment_type = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sales, nil
}

func (s *Store) RecordPurchaseBatch(ctx context.Context, scope store.Scope, req domain.PurchaseRequest, at time.Time) (*domain.PurchaseResponse, error) {
	if len(req.Items) == 0 {
		return nil, store.ErrEmptyCart
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	supplier, err := resolveSupplierTx(ctx, pgTx, scope, req)
	if err != nil {
		return nil, err
	}

	purchases := make([]domain.Purchase, 0, len(req.Items))
	for _, line := range req.Items {
		item, err := resolvePurchaseItemTx(ctx, pgTx, scope, supplier.ID, line)
		if err != nil {
			return nil, err
		}

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
		_, err = pgTx.ExecContext(ctx, `
			INSERT INTO purchases (id, shop_id, item_id, supplier_id, quantity, buying_price, total_cost, date, created_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, purchase.ID, purchase.ShopID, purchase.ItemID, purchase.SupplierID,
			purchase.Quantity, purchase.BuyingPrice, purchase.TotalCost, purchase.Date, purchase.CreatedAt)
		if err != nil {
			return nil, err
		}

		err = insertMovement(ctx, pgTx, domain.StockMovement{
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
		if err != nil {
			return nil, err
		}

		err = insertLedgerPair(ctx, pgTx, scope.ShopID, "purchase", purchase.ID, at,
			domain.AccountInventory, domain.AccountTypeAsset,
			domain.AccountCash, domain.AccountTypeAsset,
			totalCost, "Purchase "+item.Name+" from "+supplier.Name)
		if err != nil {
			return nil, err
		}

		purchases = append(purchases, purchase)
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &domain.PurchaseResponse{Supplier: *supplier, Purchases: purchases}, nil
}

func resolveSupplierTx(ctx context.Context, tx *sql.Tx, scope store.Scope, req domain.PurchaseRequest) (*domain.Supplier, error) {
	if req.SupplierID != "" {
		var supplier domain.Supplier
		err := tx.QueryRowContext(ctx, `
			SELECT `+supplierColumns+`
			FROM suppliers
			WHERE id = $1 AND shop_id = $2
			FOR UPDATE
		`, req.SupplierID, scope.ShopID).Scan(&supplier.ID, &supplier.ShopID, &supplier.Name,
			&supplier.Phone, &supplier.Email, &supplier.Address, &supplier.CreatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("supplier %s: %w", req.SupplierID, store.ErrNotFound)
			}
			return nil, err
		}
		return &supplier, nil
	}

	name := req.SupplierName
	var contact domain.SupplierUpsertRequest
	if req.Supplier != nil {
		contact = *req.Supplier
		if name == "" {
			name = contact.Name
		}
	}

	var supplier domain.Supplier
	err := tx.QueryRowContext(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE shop_id = $1 AND LOWER(name) = LOWER($2)
		FOR UPDATE
	`, scope.ShopID, name).Scan(&supplier.ID, &supplier.ShopID, &supplier.Name,
		&supplier.Phone, &supplier.Email, &supplier.Address, &supplier.CreatedAt)
	if err == nil {
		if contact.Phone != "" || contact.Email != "" || contact.Address != "" {
			if contact.Phone != "" {
				supplier.Phone = contact.Phone
			}
			if contact.Email != "" {
				supplier.Email = contact.Email
			}
			if contact.Address != "" {
				supplier.Address = contact.Address
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE suppliers SET phone = $3, email = $4, address = $5 WHERE id = $1 AND shop_id = $2
			`, supplier.ID, scope.ShopID, nullIfEmpty(supplier.Phone), nullIfEmpty(supplier.Email), nullIfEmpty(supplier.Address))
			if err != nil {
				return nil, err
			}
		}
		return &supplier, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	supplier = domain.Supplier{
		ID:        xid.New("sup"),
		ShopID:    scope.ShopID,
		Name:      name,
		Phone:     contact.Phone,
		Email:     contact.Email,
		Address:   contact.Address,
		CreatedAt: time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO suppliers (id, shop_id, name, phone, email, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, supplier.ID, supplier.ShopID, supplier.Name, nullIfEmpty(supplier.Phone),
		nullIfEmpty(supplier.Email), nullIfEmpty(supplier.Address), supplier.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

// resolvePurchaseItemTx updates or creates the item for one purchase line and
// returns it with the incremented quantity.
func resolvePurchaseItemTx(ctx context.Context, tx *sql.Tx, scope store.Scope, supplierID string, line domain.PurchaseLine) (*domain.Item, error) {
	if line.ItemID != "" {
		var item domain.Item
		err := tx.QueryRowContext(ctx, `
			UPDATE items
			SET buying_price = $3, selling_price = CASE WHEN $4::numeric > 0 THEN $4 ELSE selling_price END,
			    quantity = quantity + $5, supplier_id = $6, updated_at = now()
			WHERE id = $1 AND shop_id = $2
			RETURNING `+itemColumns+`
		`, line.ItemID, scope.ShopID, line.BuyingPrice, line.SellingPrice, line.Quantity, supplierID).Scan(
			&item.ID, &item.ShopID, &item.Name, &item.Category, &item.BuyingPrice, &item.SellingPrice,
			&item.Quantity, &item.MinStock, &item.SupplierID, &item.CreatedAt, &item.UpdatedAt)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("item %s: %w", line.ItemID, store.ErrNotFound)
			}
			return nil, err
		}
		return &item, nil
	}

	var item domain.Item
	err := tx.QueryRowContext(ctx, `
		UPDATE items
		SET buying_price = $3, selling_price = CASE WHEN $4::numeric > 0 THEN $4 ELSE selling_price END,
		    quantity = quantity + $5, supplier_id = $6, updated_at = now()
		WHERE shop_id = $1 AND LOWER(name) = LOWER($2)
		RETURNING `+itemColumns+`
	`, scope.ShopID, line.ItemName, line.BuyingPrice, line.SellingPrice, line.Quantity, supplierID).Scan(
		&item.ID, &item.ShopID, &item.Name, &item.Category, &item.BuyingPrice, &item.SellingPrice,
		&item.Quantity, &item.MinStock, &item.SupplierID, &item.CreatedAt, &item.UpdatedAt)
	if err == nil {
		return &item, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

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
		BuyingPrice:  line.BuyingPrice,
		SellingPrice: selling,
		Quantity:     line.Quantity,
		MinStock:     minStock,
		SupplierID:   supplierID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO items (id, shop_id, name, category, buying_price, selling_price, quantity, min_stock, supplier_id, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
	`, item.ID, item.ShopID, item.Name, item.Category, item.BuyingPrice, item.SellingPrice,
		item.Quantity, item.MinStock, nullIfEmpty(item.SupplierID), now)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) PayCredit(ctx context.Context, scope store.Scope, customerID string, payment domain.CreditPayment) (*domain.Customer, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	row := pgTx.QueryRowContext(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE id = $1 AND shop_id = $2
		FOR UPDATE
	`, customerID, scope.ShopID)
	customer, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("customer %s: %w", customerID, store.ErrNotFound)
		}
		return nil, err
	}

	if payment.EntryID != "" {
		var entryAmount, paidAmount decimal.Decimal
		err = pgTx.QueryRowContext(ctx, `
			SELECT amount, paid_amount
			FROM credit_ledger
			WHERE id = $1 AND customer_id = $2 AND shop_id = $3
			FOR UPDATE
		`, payment.EntryID, customerID, scope.ShopID).Scan(&entryAmount, &paidAmount)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, fmt.Errorf("credit entry %s: %w", payment.EntryID, store.ErrNotFound)
			}
			return nil, err
		}

		newPaid := paidAmount.Add(payment.Amount)
		newBalance := entryAmount.Sub(newPaid)
		if newBalance.IsNegative() {
			newBalance = decimal.Zero
		}
		status := domain.CreditStatusUnpaid
		if !newBalance.IsPositive() {
			status = domain.CreditStatusPaid
		} else if newPaid.IsPositive() {
			status = domain.CreditStatusPartial
		}

		_, err = pgTx.ExecContext(ctx, `
			UPDATE credit_ledger
			SET paid_amount = $4, balance = $5, status = $6, updated_at = now()
			WHERE id = $1 AND customer_id = $2 AND shop_id = $3
		`, payment.EntryID, customerID, scope.ShopID, newPaid, newBalance, status)
		if err != nil {
			return nil, err
		}
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
	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO credit_payments (id, shop_id, customer_id, entry_id, amount, payment_date, notes, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, payment.ID, payment.ShopID, payment.CustomerID, nullIfEmpty(payment.EntryID),
		payment.Amount, payment.PaymentDate, nullIfEmpty(payment.Notes), payment.CreatedAt)
	if err != nil {
		return nil, err
	}

	row = pgTx.QueryRowContext(ctx, `
		UPDATE customers
		SET total_credit = GREATEST(total_credit - $3, 0), updated_at = now()
		WHERE id = $1 AND shop_id = $2
		RETURNING `+customerColumns+`
	`, customerID, scope.ShopID, payment.Amount)
	customer, err = scanCustomer(row)
	if err != nil {
		return nil, err
	}

	err = insertLedgerPair(ctx, pgTx, scope.ShopID, "credit_payment", payment.ID, payment.CreatedAt,
		domain.AccountCash, domain.AccountTypeAsset,
		domain.AccountReceivable, domain.AccountTypeAsset,
		payment.Amount, "Credit payment from "+customer.Name)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return customer, nil
}

func (s *Store) ListCreditEntries(ctx context.Context, scope store.Scope, customerID string) ([]domain.CreditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, customer_id, COALESCE(sale_id, ''), amount, paid_amount, balance, status, created_at, updated_at
		FROM credit_ledger
		WHERE shop_id = $1 AND customer_id = $2
		ORDER BY created_at DESC
	`, scope.ShopID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.CreditEntry, 0, 16)
	for rows.Next() {
		var entry domain.CreditEntry
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.CustomerID, &entry.SaleID, &entry.Amount,
			&entry.PaidAmount, &entry.Balance, &entry.Status, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) ListCreditPayments(ctx context.Context, scope store.Scope, customerID string) ([]domain.CreditPayment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, customer_id, COALESCE(entry_id, ''), amount, payment_date, COALESCE(notes, ''), created_at
		FROM credit_payments
		WHERE shop_id = $1 AND customer_id = $2
		ORDER BY created_at DESC
	`, scope.ShopID, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.CreditPayment, 0, 16)
	for rows.Next() {
		var payment domain.CreditPayment
		if err := rows.Scan(&payment.ID, &payment.ShopID, &payment.CustomerID, &payment.EntryID,
			&payment.Amount, &payment.PaymentDate, &payment.Notes, &payment.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, payment)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return payments, nil
}

func (s *Store) ListStockMovements(ctx context.Context, scope store.Scope, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	if filter.Limit < 1 {
		filter.Limit = 200
	}
	query := `
		SELECT m.id, m.shop_id, m.item_id, i.name, m.movement_type, m.quantity, m.balance_after,
		       COALESCE(m.ref_type, ''), COALESCE(m.ref_id, ''), COALESCE(m.notes, ''), m.created_at
		FROM stock_movements m
		JOIN items i ON i.id = m.item_id
		WHERE m.shop_id = $1
	`
	args := []any{scope.ShopID}
	if filter.ItemID != "" {
		args = append(args, filter.ItemID)
		query += fmt.Sprintf(" AND m.item_id = $%d", len(args))
	}
	if filter.MovementType != "" {
		args = append(args, filter.MovementType)
		query += fmt.Sprintf(" AND m.movement_type = $%d", len(args))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		query += fmt.Sprintf(" AND m.created_at >= $%d", len(args))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		query += fmt.Sprintf(" AND m.created_at < $%d", len(args))
	}
	args = append(args, filter.Limit)
	query += fmt.Sprintf(" ORDER BY m.created_at DESC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, 64)
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ShopID, &m.ItemID, &m.ItemName, &m.MovementType, &m.Quantity,
			&m.BalanceAfter, &m.RefType, &m.RefID, &m.Notes, &m.CreatedAt); err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) ListLedgerEntries(ctx context.Context, scope store.Scope, refType string, refID string) ([]domain.LedgerEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, account, account_type, debit, credit, COALESCE(ref_type, ''), COALESCE(ref_id, ''), COALESCE(description, ''), created_at
		FROM general_ledger
		WHERE shop_id = $1 AND ref_type = $2 AND ref_id = $3
		ORDER BY created_at, id
	`, scope.ShopID, refType, refID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]domain.LedgerEntry, 0, 16)
	for rows.Next() {
		var entry domain.LedgerEntry
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.Account, &entry.AccountType, &entry.Debit,
			&entry.Credit, &entry.RefType, &entry.RefID, &entry.Description, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

const shiftColumns = `id, shop_id, user_id, start_cash, expected_cash, actual_cash, variance, status, COALESCE(notes, ''), start_time, end_time`

func scanShift(row interface{ Scan(...any) error }) (*domain.Shift, error) {
	var shift domain.Shift
	var expected, actual, variance decimal.NullDecimal
	var endTime sql.NullTime
	err := row.Scan(&shift.ID, &shift.ShopID, &shift.UserID, &shift.StartCash, &expected, &actual,
		&variance, &shift.Status, &shift.Notes, &shift.StartTime, &endTime)
	if err != nil {
		return nil, err
	}
	if expected.Valid {
		shift.ExpectedCash = &expected.Decimal
	}
	if actual.Valid {
		shift.ActualCash = &actual.Decimal
	}
	if variance.Valid {
		shift.Variance = &variance.Decimal
	}
	if endTime.Valid {
		t := endTime.Time.UTC()
		shift.EndTime = &t
	}
	return &shift, nil
}

func (s *Store) OpenShift(ctx context.Context, scope store.Scope, shift domain.Shift) (*domain.Shift, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var existing string
	err = pgTx.QueryRowContext(ctx, `
		SELECT id
		FROM shifts
		WHERE shop_id = $1 AND user_id = $2 AND status = $3
		FOR UPDATE
	`, scope.ShopID, scope.UserID, domain.ShiftStatusOpen).Scan(&existing)
	if err == nil {
		return nil, store.ErrShiftOpen
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
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

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO shifts (id, shop_id, user_id, start_cash, status, notes, start_time)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, shift.ID, shift.ShopID, shift.UserID, shift.StartCash, shift.Status, nullIfEmpty(shift.Notes), shift.StartTime)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrShiftOpen
		}
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	created := shift
	return &created, nil
}

func (s *Store) CloseShift(ctx context.Context, scope store.Scope, actualCash decimal.Decimal, notes string, at time.Time) (*domain.Shift, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	row := pgTx.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE shop_id = $1 AND user_id = $2 AND status = $3
		FOR UPDATE
	`, scope.ShopID, scope.UserID, domain.ShiftStatusOpen)
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNoOpenShift
		}
		return nil, err
	}

	// Only physical cash counts toward the drawer. The sum and the status
	// flip happen in one transaction so a concurrent sale is either fully
	// in or fully out of this shift.
	var cashSales decimal.Decimal
	err = pgTx.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE shop_id = $1 AND payment_type = $2 AND status = $3 AND created_at >= $4
	`, scope.ShopID, domain.PaymentCash, domain.SaleStatusCompleted, shift.StartTime).Scan(&cashSales)
	if err != nil {
		return nil, err
	}

	expected := shift.StartCash.Add(cashSales)
	variance := actualCash.Sub(expected)
	if notes == "" {
		notes = shift.Notes
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE shifts
		SET expected_cash = $2, actual_cash = $3, variance = $4, status = $5, notes = $6, end_time = $7
		WHERE id = $1
	`, shift.ID, expected, actualCash, variance, domain.ShiftStatusClosed, nullIfEmpty(notes), at)
	if err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	shift.ExpectedCash = &expected
	shift.ActualCash = &actualCash
	shift.Variance = &variance
	shift.Status = domain.ShiftStatusClosed
	shift.Notes = notes
	shift.EndTime = &at
	return shift, nil
}

func (s *Store) GetOpenShift(ctx context.Context, scope store.Scope) (*domain.Shift, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE shop_id = $1 AND user_id = $2 AND status = $3
	`, scope.ShopID, scope.UserID, domain.ShiftStatusOpen)
	shift, err := scanShift(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return shift, nil
}

func (s *Store) ListShifts(ctx context.Context, scope store.Scope, limit int) ([]domain.Shift, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE shop_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, scope.ShopID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shifts := make([]domain.Shift, 0, 16)
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, *shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return shifts, nil
}

func (s *Store) GetDailyReport(ctx context.Context, scope store.Scope, from time.Time, to time.Time) (domain.DailyReport, error) {
	report := domain.DailyReport{
		ShopID:      scope.ShopID,
		Date:        nowDateUTC(from).Format("2006-01-02"),
		GrossSales:  decimal.Zero,
		COGS:        decimal.Zero,
		GrossProfit: decimal.Zero,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE shop_id = $1 AND status = $2 AND created_at >= $3 AND created_at < $4
	`, scope.ShopID, domain.SaleStatusCompleted, from, to).Scan(&report.Sales, &report.GrossSales)
	if err != nil {
		return report, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(si.buying_price * si.quantity), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.shop_id = $1 AND s.status = $2 AND s.created_at >= $3 AND s.created_at < $4
	`, scope.ShopID, domain.SaleStatusCompleted, from, to).Scan(&report.COGS)
	if err != nil {
		return report, err
	}
	report.GrossProfit = report.GrossSales.Sub(report.COGS)

	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_type, COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE shop_id = $1 AND status = $2 AND created_at >= $3 AND created_at < $4
		GROUP BY payment_type
		ORDER BY payment_type
	`, scope.ShopID, domain.SaleStatusCompleted, from, to)
	if err != nil {
		return report, err
	}
	defer rows.Close()

	for rows.Next() {
		var p domain.DailyReportPayment
		if err := rows.Scan(&p.PaymentType, &p.Sales, &p.Total); err != nil {
			return report, err
		}
		report.ByPayment = append(report.ByPayment, p)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) GetInventoryValuation(ctx context.Context, scope store.Scope) (domain.InventoryValuation, error) {
	valuation := domain.InventoryValuation{ShopID: scope.ShopID, TotalValue: decimal.Zero}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, quantity, buying_price
		FROM items
		WHERE shop_id = $1
		ORDER BY name
	`, scope.ShopID)
	if err != nil {
		return valuation, err
	}
	defer rows.Close()

	for rows.Next() {
		var line domain.ValuationLine
		if err := rows.Scan(&line.ItemID, &line.Name, &line.Category, &line.Quantity, &line.BuyingPrice); err != nil {
			return valuation, err
		}
		line.Value = line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		valuation.TotalValue = valuation.TotalValue.Add(line.Value)
		valuation.Items = append(valuation.Items, line)
	}
	if err := rows.Err(); err != nil {
		return valuation, err
	}
	return valuation, nil
}

func (s *Store) GetDashboardSummary(ctx context.Context, scope store.Scope, from time.Time, to time.Time) (domain.DashboardSummary, error) {
	summary := domain.DashboardSummary{
		ShopID:       scope.ShopID,
		Date:         nowDateUTC(from).Format("2006-01-02"),
		RevenueToday: decimal.Zero,
		OpenCredit:   decimal.Zero,
	}

	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE shop_id = $1 AND status = $2 AND created_at >= $3 AND created_at < $4
	`, scope.ShopID, domain.SaleStatusCompleted, from, to).Scan(&summary.SalesToday, &summary.RevenueToday)
	if err != nil {
		return summary, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM items
		WHERE shop_id = $1 AND quantity <= min_stock
	`, scope.ShopID).Scan(&summary.LowStockItems)
	if err != nil {
		return summary, err
	}

	err = s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_credit), 0)
		FROM customers
		WHERE shop_id = $1
	`, scope.ShopID).Scan(&summary.OpenCredit)
	if err != nil {
		return summary, err
	}

	hourRows, err := s.db.QueryContext(ctx, `
		SELECT EXTRACT(HOUR FROM created_at AT TIME ZONE 'UTC')::int AS hour,
		       COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM sales
		WHERE shop_id = $1 AND status = $2 AND created_at >= $3 AND created_at < $4
		GROUP BY hour
		ORDER BY hour
	`, scope.ShopID, domain.SaleStatusCompleted, from, to)
	if err != nil {
		return summary, err
	}
	defer hourRows.Close()
	for hourRows.Next() {
		var hour int
		bucket := domain.HourlySales{Total: decimal.Zero}
		if err := hourRows.Scan(&hour, &bucket.Sales, &bucket.Total); err != nil {
			return summary, err
		}
		bucket.Hour = fmt.Sprintf("%02d:00", hour)
		summary.HourlySales = append(summary.HourlySales, bucket)
	}
	if err := hourRows.Err(); err != nil {
		return summary, err
	}

	topRows, err := s.db.QueryContext(ctx, `
		SELECT si.item_id, i.name, SUM(si.quantity)::int, COALESCE(SUM(si.subtotal), 0)
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		JOIN items i ON i.id = si.item_id
		WHERE s.shop_id = $1 AND s.status = $2 AND s.created_at >= $3 AND s.created_at < $4
		GROUP BY si.item_id, i.name
		ORDER BY SUM(si.quantity) DESC, i.name
		LIMIT 5
	`, scope.ShopID, domain.SaleStatusCompleted, from, to)
	if err != nil {
		return summary, err
	}
	defer topRows.Close()
	for topRows.Next() {
		var top domain.TopItem
		if err := topRows.Scan(&top.ItemID, &top.Name, &top.QuantitySold, &top.Revenue); err != nil {
			return summary, err
		}
		summary.TopItems = append(summary.TopItems, top)
	}
	if err := topRows.Err(); err != nil {
		return summary, err
	}

	recentRows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.receipt_number, COALESCE(s.customer_name, ''), s.total_amount,
		       s.payment_type, s.status, s.created_at,
		       (SELECT COUNT(*) FROM sale_items si WHERE si.sale_id = s.id)::int
		FROM sales s
		WHERE s.shop_id = $1 AND s.created_at >= $2 AND s.created_at < $3
		ORDER BY s.created_at DESC
		LIMIT 10
	`, scope.ShopID, from, to)
	if err != nil {
		return summary, err
	}
	defer recentRows.Close()
	for recentRows.Next() {
		var sale domain.RecentSale
		if err := recentRows.Scan(&sale.ID, &sale.ReceiptNumber, &sale.CustomerName, &sale.TotalAmount,
			&sale.PaymentType, &sale.Status, &sale.CreatedAt, &sale.ItemCount); err != nil {
			return summary, err
		}
		summary.RecentSales = append(summary.RecentSales, sale)
	}
	if err := recentRows.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Store) GetCreditReport(ctx context.Context, scope store.Scope) (domain.CreditReport, error) {
	report := domain.CreditReport{ShopID: scope.ShopID, TotalOutstanding: decimal.Zero}

	entryRows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, customer_id, COALESCE(sale_id, ''), amount, paid_amount, balance, status, created_at, updated_at
		FROM credit_ledger
		WHERE shop_id = $1 AND status NOT IN ($2, $3)
		ORDER BY created_at DESC
	`, scope.ShopID, domain.CreditStatusPaid, domain.CreditStatusVoided)
	if err != nil {
		return report, err
	}
	defer entryRows.Close()
	openByCustomer := make(map[string]int)
	for entryRows.Next() {
		var entry domain.CreditEntry
		if err := entryRows.Scan(&entry.ID, &entry.ShopID, &entry.CustomerID, &entry.SaleID,
			&entry.Amount, &entry.PaidAmount, &entry.Balance, &entry.Status,
			&entry.CreatedAt, &entry.UpdatedAt); err != nil {
			return report, err
		}
		openByCustomer[entry.CustomerID]++
		report.TotalOutstanding = report.TotalOutstanding.Add(entry.Balance)
		report.OpenEntries = append(report.OpenEntries, entry)
	}
	if err := entryRows.Err(); err != nil {
		return report, err
	}

	customerRows, err := s.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(phone, ''), total_credit
		FROM customers
		WHERE shop_id = $1 AND total_credit > 0
		ORDER BY total_credit DESC
	`, scope.ShopID)
	if err != nil {
		return report, err
	}
	defer customerRows.Close()
	for customerRows.Next() {
		var customer domain.CreditReportCustomer
		if err := customerRows.Scan(&customer.ID, &customer.Name, &customer.Phone, &customer.TotalCredit); err != nil {
			return report, err
		}
		customer.OpenEntries = openByCustomer[customer.ID]
		report.Customers = append(report.Customers, customer)
	}
	if err := customerRows.Err(); err != nil {
		return report, err
	}

	paymentRows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, customer_id, COALESCE(entry_id, ''), amount, payment_date, COALESCE(notes, ''), created_at
		FROM credit_payments
		WHERE shop_id = $1
		ORDER BY created_at DESC
		LIMIT 50
	`, scope.ShopID)
	if err != nil {
		return report, err
	}
	defer paymentRows.Close()
	for paymentRows.Next() {
		var payment domain.CreditPayment
		if err := paymentRows.Scan(&payment.ID, &payment.ShopID, &payment.CustomerID, &payment.EntryID,
			&payment.Amount, &payment.PaymentDate, &payment.Notes, &payment.CreatedAt); err != nil {
			return report, err
		}
		report.RecentPayments = append(report.RecentPayments, payment)
	}
	if err := paymentRows.Err(); err != nil {
		return report, err
	}
	return report, nil
}

func (s *Store) GetFinancialReport(ctx context.Context, scope store.Scope) (domain.FinancialReport, error) {
	report := domain.FinancialReport{
		ShopID:           scope.ShopID,
		TotalRevenue:     decimal.Zero,
		TotalExpenses:    decimal.Zero,
		TotalAssets:      decimal.Zero,
		TotalLiabilities: decimal.Zero,
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT account, account_type, COALESCE(SUM(debit), 0), COALESCE(SUM(credit), 0)
		FROM general_ledger
		WHERE shop_id = $1
		GROUP BY account, account_type
		ORDER BY account
	`, scope.ShopID)
	if err != nil {
		return report, err
	}
	defer rows.Close()
	for rows.Next() {
		var balance domain.AccountBalance
		if err := rows.Scan(&balance.Account, &balance.AccountType, &balance.TotalDebit, &balance.TotalCredit); err != nil {
			return report, err
		}
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
		report.TrialBalance = append(report.TrialBalance, balance)
	}
	if err := rows.Err(); err != nil {
		return report, err
	}

	report.NetProfit = report.TotalRevenue.Sub(report.TotalExpenses)
	report.Equity = report.TotalAssets.Sub(report.TotalLiabilities)
	return report, nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, shop_id, actor_name, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.ShopID, entry.ActorName, entry.ActorRole, entry.Action,
		entry.EntityType, nullIfEmpty(entry.EntityID), nullIfEmpty(entry.Detail), entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, scope store.Scope, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, shop_id, actor_name, actor_role, action, entity_type, COALESCE(entity_id, ''), COALESCE(detail, ''), created_at
		FROM audit_logs
		WHERE shop_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, scope.ShopID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ShopID, &entry.ActorName, &entry.ActorRole,
			&entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nowDateUTC(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), t.UTC().Month(), t.UTC().Day(), 0, 0, 0, 0, time.UTC)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
