package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"dukapos/backend/internal/cache"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo       store.Repository
	summaries  cache.SummaryCache
	summaryTTL time.Duration
}

func New(repo store.Repository, summaries cache.SummaryCache, summaryTTL time.Duration) *Service {
	if summaries == nil {
		summaries = cache.NoopSummaryCache{}
	}
	if summaryTTL <= 0 {
		summaryTTL = 30 * time.Second
	}

	return &Service{
		repo:       repo,
		summaries:  summaries,
		summaryTTL: summaryTTL,
	}
}

func (s *Service) scope(ctx context.Context) (store.Scope, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.ShopID == "" {
		return store.Scope{}, fmt.Errorf("missing shop scope: %w", store.ErrNotFound)
	}
	return store.Scope{ShopID: actor.ShopID, UserID: actor.UserID}, nil
}

func (s *Service) CreateSale(ctx context.Context, req domain.SaleRequest) (domain.SaleResponse, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	if len(req.Items) == 0 {
		return domain.SaleResponse{}, store.ErrEmptyCart
	}
	req.PaymentType = strings.ToLower(strings.TrimSpace(req.PaymentType))
	if !domain.ValidPayment(req.PaymentType) {
		return domain.SaleResponse{}, fmt.Errorf("%w: %q", store.ErrInvalidPayment, req.PaymentType)
	}
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	if req.PaymentType == domain.PaymentCredit && req.CustomerName == "" {
		return domain.SaleResponse{}, store.ErrCustomerRequired
	}

	total := decimal.Zero
	lines := make([]domain.SaleItem, 0, len(req.Items))
	for _, line := range req.Items {
		if line.ItemID == "" || line.Quantity < 1 {
			return domain.SaleResponse{}, fmt.Errorf("%w: item id and positive quantity required", store.ErrInvalidAmount)
		}
		item, err := s.repo.GetItemByID(ctx, scope, line.ItemID)
		if err != nil {
			return domain.SaleResponse{}, fmt.Errorf("item %s: %w", line.ItemID, err)
		}
		if item.Quantity < line.Quantity {
			return domain.SaleResponse{}, fmt.Errorf("%w: %s has %d in stock, requested %d",
				store.ErrInsufficientStock, item.Name, item.Quantity, line.Quantity)
		}

		unitPrice := item.SellingPrice
		if line.UnitPrice != nil {
			if line.UnitPrice.IsNegative() {
				return domain.SaleResponse{}, store.ErrInvalidAmount
			}
			unitPrice = *line.UnitPrice
		}
		subtotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)

		lines = append(lines, domain.SaleItem{
			ItemID:      item.ID,
			ItemName:    item.Name,
			Quantity:    line.Quantity,
			UnitPrice:   unitPrice,
			BuyingPrice: item.BuyingPrice,
			Subtotal:    subtotal,
		})
	}

	customerName := req.CustomerName
	if customerName == "" {
		customerName = domain.WalkInCustomer
	}

	sale := domain.Sale{
		ID:            xid.New("sale"),
		CustomerName:  customerName,
		CustomerPhone: req.CustomerPhone,
		TotalAmount:   total,
		PaymentType:   req.PaymentType,
		Notes:         strings.TrimSpace(req.Notes),
		CreatedAt:     time.Now().UTC(),
		Items:         lines,
	}

	created, err := s.repo.CreateSale(ctx, scope, sale)
	if err != nil {
		return domain.SaleResponse{}, err
	}

	s.logAudit(ctx, "sale_create", "sale", created.ID,
		fmt.Sprintf("receipt=%s,total=%s,payment=%s,items=%d", created.ReceiptNumber, created.TotalAmount.StringFixed(2), created.PaymentType, len(created.Items)))

	return domain.SaleResponse{
		Sale:          *created,
		Items:         created.Items,
		ReceiptNumber: created.ReceiptNumber,
	}, nil
}

func (s *Service) VoidSale(ctx context.Context, saleID string) (domain.Sale, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return domain.Sale{}, fmt.Errorf("admin role required")
	}
	if saleID == "" {
		return domain.Sale{}, fmt.Errorf("sale id required: %w", store.ErrNotFound)
	}

	voided, err := s.repo.VoidSale(ctx, scope, saleID, time.Now().UTC())
	if err != nil {
		return domain.Sale{}, err
	}

	s.logAudit(ctx, "sale_void", "sale", voided.ID,
		fmt.Sprintf("receipt=%s,total=%s", voided.ReceiptNumber, voided.TotalAmount.StringFixed(2)))
	return *voided, nil
}

func (s *Service) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Sale{}, err
	}
	sale, err := s.repo.GetSaleByID(ctx, scope, saleID)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) ListSales(ctx context.Context, filter domain.SaleListFilter) ([]domain.Sale, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, scope, filter)
}

func (s *Service) RecordPurchase(ctx context.Context, req domain.PurchaseRequest) (domain.PurchaseResponse, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	req.SupplierID = strings.TrimSpace(req.SupplierID)
	req.SupplierName = strings.TrimSpace(req.SupplierName)
	if req.Supplier != nil {
		req.Supplier.Name = strings.TrimSpace(req.Supplier.Name)
		if req.SupplierName == "" {
			req.SupplierName = req.Supplier.Name
		}
	}
	if req.SupplierID == "" && req.SupplierName == "" {
		return domain.PurchaseResponse{}, store.ErrSupplierRequired
	}
	if len(req.Items) == 0 {
		return domain.PurchaseResponse{}, store.ErrEmptyCart
	}
	for i := range req.Items {
		line := &req.Items[i]
		line.ItemID = strings.TrimSpace(line.ItemID)
		line.ItemName = strings.TrimSpace(line.ItemName)
		line.Category = strings.TrimSpace(line.Category)
		if line.ItemID == "" && line.ItemName == "" {
			return domain.PurchaseResponse{}, fmt.Errorf("%w: purchase line needs an item id or name", store.ErrInvalidAmount)
		}
		if line.Quantity < 1 || !line.BuyingPrice.IsPositive() {
			return domain.PurchaseResponse{}, fmt.Errorf("%w: purchase line needs positive quantity and buying price", store.ErrInvalidAmount)
		}
	}

	resp, err := s.repo.RecordPurchaseBatch(ctx, scope, req, time.Now().UTC())
	if err != nil {
		return domain.PurchaseResponse{}, err
	}

	s.logAudit(ctx, "purchase_record", "supplier", resp.Supplier.ID,
		fmt.Sprintf("supplier=%s,lines=%d", resp.Supplier.Name, len(resp.Purchases)))
	return *resp, nil
}

func (s *Service) ListPurchases(ctx context.Context, limit int) ([]domain.Purchase, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListPurchases(ctx, scope, limit)
}

func (s *Service) PayCredit(ctx context.Context, customerID string, req domain.CreditPaymentRequest) (domain.Customer, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	if !req.Amount.IsPositive() {
		return domain.Customer{}, store.ErrInvalidAmount
	}

	payment := domain.CreditPayment{
		ID:      xid.New("pay"),
		EntryID: strings.TrimSpace(req.EntryID),
		Amount:  req.Amount,
		Notes:   strings.TrimSpace(req.Notes),
	}
	if req.PaymentDate != nil {
		payment.PaymentDate = req.PaymentDate.UTC()
	}

	customer, err := s.repo.PayCredit(ctx, scope, customerID, payment)
	if err != nil {
		return domain.Customer{}, err
	}

	s.logAudit(ctx, "credit_payment", "customer", customer.ID,
		fmt.Sprintf("amount=%s,balance=%s", req.Amount.StringFixed(2), customer.TotalCredit.StringFixed(2)))
	return *customer, nil
}

func (s *Service) OpenShift(ctx context.Context, req domain.ShiftOpenRequest) (domain.Shift, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Shift{}, err
	}
	if req.StartCash.IsNegative() {
		return domain.Shift{}, store.ErrInvalidAmount
	}

	shift, err := s.repo.OpenShift(ctx, scope, domain.Shift{
		StartCash: req.StartCash,
		Notes:     strings.TrimSpace(req.Notes),
		StartTime: time.Now().UTC(),
	})
	if err != nil {
		return domain.Shift{}, err
	}

	s.logAudit(ctx, "shift_open", "shift", shift.ID, fmt.Sprintf("start_cash=%s", req.StartCash.StringFixed(2)))
	return *shift, nil
}

func (s *Service) CloseShift(ctx context.Context, req domain.ShiftCloseRequest) (domain.Shift, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Shift{}, err
	}
	if req.ActualCash.IsNegative() {
		return domain.Shift{}, store.ErrInvalidAmount
	}

	shift, err := s.repo.CloseShift(ctx, scope, req.ActualCash, strings.TrimSpace(req.Notes), time.Now().UTC())
	if err != nil {
		return domain.Shift{}, err
	}

	variance := decimal.Zero
	if shift.Variance != nil {
		variance = *shift.Variance
	}
	s.logAudit(ctx, "shift_close", "shift", shift.ID,
		fmt.Sprintf("actual=%s,variance=%s", req.ActualCash.StringFixed(2), variance.StringFixed(2)))
	return *shift, nil
}

func (s *Service) CurrentShift(ctx context.Context) (*domain.Shift, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	shift, err := s.repo.GetOpenShift(ctx, scope)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return shift, nil
}

func (s *Service) ListShifts(ctx context.Context, limit int) ([]domain.Shift, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListShifts(ctx, scope, limit)
}

func (s *Service) CreateItem(ctx context.Context, req domain.ItemCreateRequest) (domain.Item, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Item{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	if req.Name == "" {
		return domain.Item{}, fmt.Errorf("%w: item name required", store.ErrInvalidAmount)
	}
	if req.Quantity < 0 || req.BuyingPrice.IsNegative() || req.SellingPrice.IsNegative() {
		return domain.Item{}, store.ErrInvalidAmount
	}
	if req.Category == "" {
		req.Category = "General"
	}
	if req.MinStock < 1 {
		req.MinStock = 5
	}
	if req.SellingPrice.IsZero() && req.BuyingPrice.IsPositive() {
		req.SellingPrice = req.BuyingPrice.Mul(decimal.NewFromFloat(1.3))
	}

	created, err := s.repo.CreateItem(ctx, scope, domain.Item{
		Name:         req.Name,
		Category:     req.Category,
		BuyingPrice:  req.BuyingPrice,
		SellingPrice: req.SellingPrice,
		Quantity:     req.Quantity,
		MinStock:     req.MinStock,
		SupplierID:   strings.TrimSpace(req.SupplierID),
	})
	if err != nil {
		return domain.Item{}, err
	}

	s.logAudit(ctx, "item_create", "item", created.ID, fmt.Sprintf("name=%s,qty=%d", created.Name, created.Quantity))
	return *created, nil
}

func (s *Service) UpdateItem(ctx context.Context, itemID string, req domain.ItemUpdateRequest) (domain.Item, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Item{}, err
	}

	existing, err := s.repo.GetItemByID(ctx, scope, itemID)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item %s: %w", itemID, err)
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Item{}, fmt.Errorf("%w: item name required", store.ErrInvalidAmount)
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Item{}, fmt.Errorf("%w: category required", store.ErrInvalidAmount)
		}
		updated.Category = category
	}
	if req.BuyingPrice != nil {
		if req.BuyingPrice.IsNegative() {
			return domain.Item{}, store.ErrInvalidAmount
		}
		updated.BuyingPrice = *req.BuyingPrice
	}
	if req.SellingPrice != nil {
		if req.SellingPrice.IsNegative() {
			return domain.Item{}, store.ErrInvalidAmount
		}
		updated.SellingPrice = *req.SellingPrice
	}
	if req.MinStock != nil {
		if *req.MinStock < 0 {
			return domain.Item{}, store.ErrInvalidAmount
		}
		updated.MinStock = *req.MinStock
	}
	if req.SupplierID != nil {
		updated.SupplierID = strings.TrimSpace(*req.SupplierID)
	}

	saved, err := s.repo.UpdateItem(ctx, scope, updated)
	if err != nil {
		return domain.Item{}, err
	}

	s.logAudit(ctx, "item_update", "item", saved.ID, fmt.Sprintf("name=%s", saved.Name))
	return *saved, nil
}

func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	scope, err := s.scope(ctx)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteItem(ctx, scope, itemID); err != nil {
		return err
	}
	s.logAudit(ctx, "item_delete", "item", itemID, "")
	return nil
}

func (s *Service) GetItem(ctx context.Context, itemID string) (domain.Item, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Item{}, err
	}
	item, err := s.repo.GetItemByID(ctx, scope, itemID)
	if err != nil {
		return domain.Item{}, fmt.Errorf("item %s: %w", itemID, err)
	}
	return *item, nil
}

func (s *Service) ListItems(ctx context.Context, filter domain.ItemListFilter) ([]domain.Item, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListItems(ctx, scope, filter)
}

func (s *Service) ListCategories(ctx context.Context) ([]string, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCategories(ctx, scope)
}

func (s *Service) CreateSupplier(ctx context.Context, req domain.SupplierUpsertRequest) (domain.Supplier, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return domain.Supplier{}, store.ErrSupplierRequired
	}

	created, err := s.repo.CreateSupplier(ctx, scope, domain.Supplier{
		Name:    req.Name,
		Phone:   strings.TrimSpace(req.Phone),
		Email:   strings.TrimSpace(req.Email),
		Address: strings.TrimSpace(req.Address),
	})
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_create", "supplier", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateSupplier(ctx context.Context, supplierID string, req domain.SupplierUpsertRequest) (domain.Supplier, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}

	existing, err := s.repo.GetSupplierByID(ctx, scope, supplierID)
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("supplier %s: %w", supplierID, err)
	}

	updated := *existing
	if name := strings.TrimSpace(req.Name); name != "" {
		updated.Name = name
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		updated.Phone = phone
	}
	if email := strings.TrimSpace(req.Email); email != "" {
		updated.Email = email
	}
	if address := strings.TrimSpace(req.Address); address != "" {
		updated.Address = address
	}

	saved, err := s.repo.UpdateSupplier(ctx, scope, updated)
	if err != nil {
		return domain.Supplier{}, err
	}

	s.logAudit(ctx, "supplier_update", "supplier", saved.ID, "name="+saved.Name)
	return *saved, nil
}

func (s *Service) GetSupplier(ctx context.Context, supplierID string) (domain.Supplier, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.Supplier{}, err
	}
	supplier, err := s.repo.GetSupplierByID(ctx, scope, supplierID)
	if err != nil {
		return domain.Supplier{}, fmt.Errorf("supplier %s: %w", supplierID, err)
	}
	return *supplier, nil
}

func (s *Service) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSuppliers(ctx, scope)
}

func (s *Service) SupplierPurchases(ctx context.Context, supplierID string, limit int) ([]domain.Purchase, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.repo.GetSupplierByID(ctx, scope, supplierID); err != nil {
		return nil, fmt.Errorf("supplier %s: %w", supplierID, err)
	}
	return s.repo.ListPurchasesBySupplier(ctx, scope, supplierID, limit)
}

func (s *Service) ListCustomers(ctx context.Context, search string, limit int) ([]domain.Customer, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListCustomers(ctx, scope, strings.TrimSpace(search), limit)
}

func (s *Service) GetCustomerDetail(ctx context.Context, customerID string) (domain.CustomerDetail, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.CustomerDetail{}, err
	}
	detail, err := s.repo.GetCustomerDetail(ctx, scope, customerID)
	if err != nil {
		return domain.CustomerDetail{}, err
	}
	return *detail, nil
}

func (s *Service) ListStockMovements(ctx context.Context, filter domain.StockMovementFilter) ([]domain.StockMovement, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListStockMovements(ctx, scope, filter)
}

func (s *Service) ListLedgerEntries(ctx context.Context, refType string, refID string) ([]domain.LedgerEntry, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListLedgerEntries(ctx, scope, refType, refID)
}

func (s *Service) DailyReport(ctx context.Context, date string) (domain.DailyReport, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.DailyReport{}, err
	}
	from, to, err := dayRange(date)
	if err != nil {
		return domain.DailyReport{}, err
	}
	return s.repo.GetDailyReport(ctx, scope, from, to)
}

func (s *Service) InventoryValuation(ctx context.Context) (domain.InventoryValuation, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.InventoryValuation{}, err
	}
	return s.repo.GetInventoryValuation(ctx, scope)
}

func (s *Service) CreditReport(ctx context.Context) (domain.CreditReport, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.CreditReport{}, err
	}
	return s.repo.GetCreditReport(ctx, scope)
}

func (s *Service) FinancialReport(ctx context.Context) (domain.FinancialReport, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.FinancialReport{}, err
	}
	return s.repo.GetFinancialReport(ctx, scope)
}

func (s *Service) DashboardSummary(ctx context.Context) (domain.DashboardSummary, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return domain.DashboardSummary{}, err
	}

	now := time.Now().UTC()
	from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	key := "dashboard:" + scope.ShopID + ":" + from.Format("20060102")
	if cached, hit, err := s.summaries.Get(ctx, key); err == nil && hit {
		return *cached, nil
	} else if err != nil {
		log.Printf("[service] WARN: dashboard cache read failed shop=%s: %v", scope.ShopID, err)
	}

	summary, err := s.repo.GetDashboardSummary(ctx, scope, from, to)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	if err := s.summaries.Set(ctx, key, &summary, s.summaryTTL); err != nil {
		log.Printf("[service] WARN: dashboard cache write failed shop=%s: %v", scope.ShopID, err)
	}
	return summary, nil
}

func (s *Service) ListAuditLogs(ctx context.Context, date string, limit int) ([]domain.AuditLog, error) {
	scope, err := s.scope(ctx)
	if err != nil {
		return nil, err
	}
	from, to, err := dayRange(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAuditLogs(ctx, scope, from, to, limit)
}

func dayRange(date string) (time.Time, time.Time, error) {
	if date == "" {
		now := time.Now().UTC()
		from := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		return from, from.Add(24 * time.Hour), nil
	}
	from, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidAmount)
	}
	return from, from.Add(24 * time.Hour), nil
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:         xid.New("audit"),
		ShopID:     actor.ShopID,
		ActorName:  actor.Username,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}
