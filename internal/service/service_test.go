package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"dukapos/backend/internal/cache"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/store/memory"
)

func newTestService() *Service {
	return New(memory.NewSeeded(), cache.NoopSummaryCache{}, 5*time.Second)
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID:   "user-admin",
		ShopID:   "shop-demo",
		Username: "admin",
		Role:     domain.RoleAdmin,
	})
}

func cashierCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		UserID:   "user-cashier",
		ShopID:   "shop-demo",
		Username: "cashier",
		Role:     domain.RoleCashier,
	})
}

func itemByName(t *testing.T, svc *Service, ctx context.Context, name string) domain.Item {
	t.Helper()
	items, err := svc.ListItems(ctx, domain.ItemListFilter{Search: name})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	for _, item := range items {
		if item.Name == name {
			return item
		}
	}
	t.Fatalf("seed item %q not found", name)
	return domain.Item{}
}

func ledgerTotals(entries []domain.LedgerEntry) (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, entry := range entries {
		debit = debit.Add(entry.Debit)
		credit = credit.Add(entry.Credit)
	}
	return debit, credit
}

// recomputedCredit rebuilds a customer's balance from the credit event
// stream: non-voided entry amounts minus recorded payments, floored at zero.
func recomputedCredit(detail domain.CustomerDetail) decimal.Decimal {
	total := decimal.Zero
	for _, entry := range detail.Entries {
		if entry.Status != domain.CreditStatusVoided {
			total = total.Add(entry.Amount)
		}
	}
	for _, payment := range detail.Payments {
		total = total.Sub(payment.Amount)
	}
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func TestCreateSaleComputesTotalsAndReceipt(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items: []domain.SaleLine{
			{ItemID: oilFilter.ID, Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	wantTotal := oilFilter.SellingPrice.Mul(decimal.NewFromInt(2))
	if !resp.Sale.TotalAmount.Equal(wantTotal) {
		t.Fatalf("total = %s, want %s", resp.Sale.TotalAmount, wantTotal)
	}
	if len(resp.Items) != 1 {
		t.Fatalf("expected 1 sale item, got %d", len(resp.Items))
	}
	if !resp.Items[0].Subtotal.Equal(wantTotal) {
		t.Fatalf("subtotal = %s, want %s", resp.Items[0].Subtotal, wantTotal)
	}
	if !resp.Items[0].BuyingPrice.Equal(oilFilter.BuyingPrice) {
		t.Fatalf("buying price snapshot = %s, want %s", resp.Items[0].BuyingPrice, oilFilter.BuyingPrice)
	}

	wantReceipt := fmt.Sprintf("TS-%s-0001", time.Now().UTC().Format("20060102"))
	if resp.ReceiptNumber != wantReceipt {
		t.Fatalf("receipt = %s, want %s", resp.ReceiptNumber, wantReceipt)
	}

	after := itemByName(t, svc, ctx, "Oil Filter")
	if after.Quantity != oilFilter.Quantity-2 {
		t.Fatalf("stock = %d, want %d", after.Quantity, oilFilter.Quantity-2)
	}

	movements, err := svc.ListStockMovements(ctx, domain.StockMovementFilter{ItemID: oilFilter.ID})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 movement, got %d", len(movements))
	}
	if movements[0].MovementType != domain.MovementOut {
		t.Fatalf("movement type = %s, want %s", movements[0].MovementType, domain.MovementOut)
	}
	if movements[0].BalanceAfter != oilFilter.Quantity-2 {
		t.Fatalf("balance after = %d, want %d", movements[0].BalanceAfter, oilFilter.Quantity-2)
	}
}

func TestCreateSaleLedgerBalanced(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "mpesa",
		Items: []domain.SaleLine{
			{ItemID: oilFilter.ID, Quantity: 3},
		},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	entries, err := svc.ListLedgerEntries(ctx, "sale", resp.Sale.ID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 ledger rows (COGS pair + revenue pair), got %d", len(entries))
	}

	debit, credit := ledgerTotals(entries)
	if !debit.Equal(credit) {
		t.Fatalf("ledger unbalanced: debit %s, credit %s", debit, credit)
	}

	wantCOGS := oilFilter.BuyingPrice.Mul(decimal.NewFromInt(3))
	wantRevenue := oilFilter.SellingPrice.Mul(decimal.NewFromInt(3))
	byAccount := map[string]decimal.Decimal{}
	for _, entry := range entries {
		byAccount[entry.Account] = byAccount[entry.Account].Add(entry.Debit).Sub(entry.Credit)
	}
	if !byAccount[domain.AccountCOGS].Equal(wantCOGS) {
		t.Fatalf("COGS net = %s, want %s", byAccount[domain.AccountCOGS], wantCOGS)
	}
	if !byAccount[domain.AccountInventory].Equal(wantCOGS.Neg()) {
		t.Fatalf("inventory net = %s, want %s", byAccount[domain.AccountInventory], wantCOGS.Neg())
	}
	if !byAccount[domain.AccountMpesa].Equal(wantRevenue) {
		t.Fatalf("mpesa net = %s, want %s", byAccount[domain.AccountMpesa], wantRevenue)
	}
	if !byAccount[domain.AccountSales].Equal(wantRevenue.Neg()) {
		t.Fatalf("revenue net = %s, want %s", byAccount[domain.AccountSales], wantRevenue.Neg())
	}
}

func TestSaleReceiptsSequential(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	day := time.Now().UTC().Format("20060102")
	for i := 1; i <= 2; i++ {
		resp, err := svc.CreateSale(ctx, domain.SaleRequest{
			PaymentType: "cash",
			Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
		})
		if err != nil {
			t.Fatalf("create sale %d: %v", i, err)
		}
		want := fmt.Sprintf("TS-%s-%04d", day, i)
		if resp.ReceiptNumber != want {
			t.Fatalf("receipt %d = %s, want %s", i, resp.ReceiptNumber, want)
		}
	}
}

func TestCreateSaleInsufficientStockLeavesStockUnchanged(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	_, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: oilFilter.Quantity + 1}},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if !strings.Contains(err.Error(), "Oil Filter") {
		t.Fatalf("expected item name in error, got %q", err.Error())
	}

	after := itemByName(t, svc, ctx, "Oil Filter")
	if after.Quantity != oilFilter.Quantity {
		t.Fatalf("stock changed after failed sale: %d, want %d", after.Quantity, oilFilter.Quantity)
	}
	movements, err := svc.ListStockMovements(ctx, domain.StockMovementFilter{ItemID: oilFilter.ID})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 0 {
		t.Fatalf("expected no movements after failed sale, got %d", len(movements))
	}
}

func TestCreateSaleValidation(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()
	oilFilter := itemByName(t, svc, ctx, "Oil Filter")

	_, err := svc.CreateSale(ctx, domain.SaleRequest{PaymentType: "cash"})
	if !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "barter",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrInvalidPayment) {
		t.Fatalf("expected ErrInvalidPayment, got %v", err)
	}

	_, err = svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "credit",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrCustomerRequired) {
		t.Fatalf("expected ErrCustomerRequired, got %v", err)
	}
}

func TestCreditSaleCreatesCustomerAndEntry(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType:   "credit",
		CustomerName:  "Wanjiku Auto",
		CustomerPhone: "0722111222",
		Items:         []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("credit sale: %v", err)
	}

	customers, err := svc.ListCustomers(ctx, "Wanjiku", 10)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected 1 customer, got %d", len(customers))
	}
	if !customers[0].TotalCredit.Equal(resp.Sale.TotalAmount) {
		t.Fatalf("total credit = %s, want %s", customers[0].TotalCredit, resp.Sale.TotalAmount)
	}

	detail, err := svc.GetCustomerDetail(ctx, customers[0].ID)
	if err != nil {
		t.Fatalf("customer detail: %v", err)
	}
	if len(detail.Entries) != 1 {
		t.Fatalf("expected 1 credit entry, got %d", len(detail.Entries))
	}
	entry := detail.Entries[0]
	if entry.Status != domain.CreditStatusUnpaid {
		t.Fatalf("entry status = %s, want unpaid", entry.Status)
	}
	if !entry.Balance.Equal(resp.Sale.TotalAmount) {
		t.Fatalf("entry balance = %s, want %s", entry.Balance, resp.Sale.TotalAmount)
	}

	// Credit revenue debits Accounts Receivable rather than a cash account.
	entries, err := svc.ListLedgerEntries(ctx, "sale", resp.Sale.ID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	foundReceivable := false
	for _, ledgerEntry := range entries {
		if ledgerEntry.Account == domain.AccountReceivable && ledgerEntry.Debit.Equal(resp.Sale.TotalAmount) {
			foundReceivable = true
		}
	}
	if !foundReceivable {
		t.Fatalf("expected Accounts Receivable debit of %s", resp.Sale.TotalAmount)
	}

	// A repeat credit sale for the same name reuses the customer.
	_, err = svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType:  "credit",
		CustomerName: "wanjiku auto",
		Items:        []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("second credit sale: %v", err)
	}
	customers, err = svc.ListCustomers(ctx, "Wanjiku", 10)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 1 {
		t.Fatalf("expected customer to be reused, got %d customers", len(customers))
	}
}

func TestPayCreditLifecycle(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	price := decimal.RequireFromString("500")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType:  "credit",
		CustomerName: "Otieno Garage",
		Items:        []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1, UnitPrice: &price}},
	})
	if err != nil {
		t.Fatalf("credit sale: %v", err)
	}
	if !resp.Sale.TotalAmount.Equal(price) {
		t.Fatalf("total = %s, want 500", resp.Sale.TotalAmount)
	}

	customers, err := svc.ListCustomers(ctx, "Otieno", 10)
	if err != nil || len(customers) != 1 {
		t.Fatalf("list customers: %v (%d)", err, len(customers))
	}
	customerID := customers[0].ID
	detail, err := svc.GetCustomerDetail(ctx, customerID)
	if err != nil {
		t.Fatalf("customer detail: %v", err)
	}
	entryID := detail.Entries[0].ID

	customer, err := svc.PayCredit(ctx, customerID, domain.CreditPaymentRequest{
		Amount:  decimal.RequireFromString("200"),
		EntryID: entryID,
	})
	if err != nil {
		t.Fatalf("first payment: %v", err)
	}
	if !customer.TotalCredit.Equal(decimal.RequireFromString("300")) {
		t.Fatalf("credit after partial payment = %s, want 300", customer.TotalCredit)
	}

	detail, err = svc.GetCustomerDetail(ctx, customerID)
	if err != nil {
		t.Fatalf("customer detail: %v", err)
	}
	if detail.Entries[0].Status != domain.CreditStatusPartial {
		t.Fatalf("entry status = %s, want partial", detail.Entries[0].Status)
	}
	if recomputed := recomputedCredit(detail); !customer.TotalCredit.Equal(recomputed) {
		t.Fatalf("cached credit %s != %s recomputed from events", customer.TotalCredit, recomputed)
	}

	customer, err = svc.PayCredit(ctx, customerID, domain.CreditPaymentRequest{
		Amount:  decimal.RequireFromString("300"),
		EntryID: entryID,
	})
	if err != nil {
		t.Fatalf("second payment: %v", err)
	}
	if !customer.TotalCredit.IsZero() {
		t.Fatalf("credit after full payment = %s, want 0", customer.TotalCredit)
	}

	detail, err = svc.GetCustomerDetail(ctx, customerID)
	if err != nil {
		t.Fatalf("customer detail: %v", err)
	}
	if detail.Entries[0].Status != domain.CreditStatusPaid {
		t.Fatalf("entry status = %s, want paid", detail.Entries[0].Status)
	}
	if len(detail.Payments) != 2 {
		t.Fatalf("expected 2 payments, got %d", len(detail.Payments))
	}
	if recomputed := recomputedCredit(detail); !customer.TotalCredit.Equal(recomputed) {
		t.Fatalf("cached credit %s != %s recomputed from events", customer.TotalCredit, recomputed)
	}

	// Each payment posts a balanced Cash / Accounts Receivable pair.
	for _, payment := range detail.Payments {
		entries, err := svc.ListLedgerEntries(ctx, "credit_payment", payment.ID)
		if err != nil {
			t.Fatalf("list payment ledger: %v", err)
		}
		debit, credit := ledgerTotals(entries)
		if !debit.Equal(credit) || !debit.Equal(payment.Amount) {
			t.Fatalf("payment ledger debit %s credit %s, want %s", debit, credit, payment.Amount)
		}
	}

	_, err = svc.PayCredit(ctx, customerID, domain.CreditPaymentRequest{Amount: decimal.Zero})
	if !errors.Is(err, store.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero payment, got %v", err)
	}
}

func TestVoidSaleRestoresStockAndReversesLedger(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	voided, err := svc.VoidSale(ctx, resp.Sale.ID)
	if err != nil {
		t.Fatalf("void sale: %v", err)
	}
	if voided.Status != domain.SaleStatusVoided {
		t.Fatalf("status = %s, want voided", voided.Status)
	}

	after := itemByName(t, svc, ctx, "Oil Filter")
	if after.Quantity != oilFilter.Quantity {
		t.Fatalf("stock after void = %d, want %d", after.Quantity, oilFilter.Quantity)
	}

	movements, err := svc.ListStockMovements(ctx, domain.StockMovementFilter{ItemID: oilFilter.ID})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	var returns int
	for _, movement := range movements {
		if movement.MovementType == domain.MovementReturn {
			returns++
		}
	}
	if returns != 1 {
		t.Fatalf("expected 1 RETURN movement, got %d", returns)
	}

	// The void posts inverse pairs under the same reference, netting every
	// account to zero.
	entries, err := svc.ListLedgerEntries(ctx, "sale", resp.Sale.ID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(entries) != 8 {
		t.Fatalf("expected 8 ledger rows after void, got %d", len(entries))
	}
	byAccount := map[string]decimal.Decimal{}
	for _, entry := range entries {
		byAccount[entry.Account] = byAccount[entry.Account].Add(entry.Debit).Sub(entry.Credit)
	}
	for account, net := range byAccount {
		if !net.IsZero() {
			t.Fatalf("account %s nets to %s after void, want 0", account, net)
		}
	}
}

func TestVoidSaleTwiceFails(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if _, err := svc.VoidSale(ctx, resp.Sale.ID); err != nil {
		t.Fatalf("first void: %v", err)
	}
	if _, err := svc.VoidSale(ctx, resp.Sale.ID); !errors.Is(err, store.ErrAlreadyVoided) {
		t.Fatalf("expected ErrAlreadyVoided, got %v", err)
	}

	after := itemByName(t, svc, ctx, "Oil Filter")
	if after.Quantity != oilFilter.Quantity {
		t.Fatalf("stock double-restored: %d, want %d", after.Quantity, oilFilter.Quantity)
	}
}

func TestVoidSaleRequiresAdmin(t *testing.T) {
	svc := newTestService()

	oilFilter := itemByName(t, svc, cashierCtx(), "Oil Filter")
	resp, err := svc.CreateSale(cashierCtx(), domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	if _, err := svc.VoidSale(cashierCtx(), resp.Sale.ID); err == nil {
		t.Fatalf("expected void to fail for cashier role")
	}
}

func TestVoidCreditSaleRestoresCustomerCredit(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType:  "credit",
		CustomerName: "Njeri Spares",
		Items:        []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("credit sale: %v", err)
	}

	if _, err := svc.VoidSale(ctx, resp.Sale.ID); err != nil {
		t.Fatalf("void sale: %v", err)
	}

	customers, err := svc.ListCustomers(ctx, "Njeri", 10)
	if err != nil || len(customers) != 1 {
		t.Fatalf("list customers: %v (%d)", err, len(customers))
	}
	if !customers[0].TotalCredit.IsZero() {
		t.Fatalf("credit after void = %s, want 0", customers[0].TotalCredit)
	}

	detail, err := svc.GetCustomerDetail(ctx, customers[0].ID)
	if err != nil {
		t.Fatalf("customer detail: %v", err)
	}
	if detail.Entries[0].Status != domain.CreditStatusVoided {
		t.Fatalf("entry status = %s, want voided", detail.Entries[0].Status)
	}
}

func TestRecordPurchaseIncreasesStockAndLedger(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.RecordPurchase(ctx, domain.PurchaseRequest{
		SupplierID: "sup-demo",
		Items: []domain.PurchaseLine{
			{ItemID: oilFilter.ID, Quantity: 10, BuyingPrice: decimal.RequireFromString("260")},
		},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if len(resp.Purchases) != 1 {
		t.Fatalf("expected 1 purchase row, got %d", len(resp.Purchases))
	}
	wantCost := decimal.RequireFromString("2600")
	if !resp.Purchases[0].TotalCost.Equal(wantCost) {
		t.Fatalf("total cost = %s, want %s", resp.Purchases[0].TotalCost, wantCost)
	}

	after := itemByName(t, svc, ctx, "Oil Filter")
	if after.Quantity != oilFilter.Quantity+10 {
		t.Fatalf("stock = %d, want %d", after.Quantity, oilFilter.Quantity+10)
	}
	if !after.BuyingPrice.Equal(decimal.RequireFromString("260")) {
		t.Fatalf("buying price = %s, want 260", after.BuyingPrice)
	}

	movements, err := svc.ListStockMovements(ctx, domain.StockMovementFilter{ItemID: oilFilter.ID, MovementType: domain.MovementIn})
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(movements) != 1 {
		t.Fatalf("expected 1 IN movement, got %d", len(movements))
	}
	if movements[0].BalanceAfter != oilFilter.Quantity+10 {
		t.Fatalf("balance after = %d, want %d", movements[0].BalanceAfter, oilFilter.Quantity+10)
	}

	entries, err := svc.ListLedgerEntries(ctx, "purchase", resp.Purchases[0].ID)
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	debit, credit := ledgerTotals(entries)
	if !debit.Equal(credit) || !debit.Equal(wantCost) {
		t.Fatalf("purchase ledger debit %s credit %s, want %s", debit, credit, wantCost)
	}
}

func TestRecordPurchaseCreatesItemWithDefaults(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	_, err := svc.RecordPurchase(ctx, domain.PurchaseRequest{
		SupplierID: "sup-demo",
		Items: []domain.PurchaseLine{
			{ItemName: "Fan Belt", Quantity: 6, BuyingPrice: decimal.RequireFromString("100")},
		},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}

	created := itemByName(t, svc, ctx, "Fan Belt")
	if created.Category != "General" {
		t.Fatalf("category = %s, want General", created.Category)
	}
	if created.MinStock != 5 {
		t.Fatalf("min stock = %d, want 5", created.MinStock)
	}
	if created.Quantity != 6 {
		t.Fatalf("quantity = %d, want 6", created.Quantity)
	}
	if !created.SellingPrice.Equal(decimal.RequireFromString("130")) {
		t.Fatalf("selling price = %s, want 130 (buying x 1.3)", created.SellingPrice)
	}
}

func TestRecordPurchaseSupplierResolution(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	_, err := svc.RecordPurchase(ctx, domain.PurchaseRequest{
		Items: []domain.PurchaseLine{
			{ItemName: "Wiper Blade", Quantity: 2, BuyingPrice: decimal.RequireFromString("150")},
		},
	})
	if !errors.Is(err, store.ErrSupplierRequired) {
		t.Fatalf("expected ErrSupplierRequired, got %v", err)
	}

	resp, err := svc.RecordPurchase(ctx, domain.PurchaseRequest{
		SupplierName: "Mombasa Road Traders",
		Items: []domain.PurchaseLine{
			{ItemName: "Wiper Blade", Quantity: 2, BuyingPrice: decimal.RequireFromString("150")},
		},
	})
	if err != nil {
		t.Fatalf("record purchase: %v", err)
	}
	if resp.Supplier.Name != "Mombasa Road Traders" {
		t.Fatalf("supplier = %s, want Mombasa Road Traders", resp.Supplier.Name)
	}

	suppliers, err := svc.ListSuppliers(ctx)
	if err != nil {
		t.Fatalf("list suppliers: %v", err)
	}
	if len(suppliers) != 2 {
		t.Fatalf("expected 2 suppliers, got %d", len(suppliers))
	}

	history, err := svc.SupplierPurchases(ctx, resp.Supplier.ID, 10)
	if err != nil {
		t.Fatalf("supplier purchases: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected 1 purchase in history, got %d", len(history))
	}
}

func TestShiftLifecycleVariance(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")

	shift, err := svc.OpenShift(ctx, domain.ShiftOpenRequest{StartCash: decimal.RequireFromString("1000")})
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	if shift.Status != domain.ShiftStatusOpen {
		t.Fatalf("status = %s, want open", shift.Status)
	}

	if _, err := svc.OpenShift(ctx, domain.ShiftOpenRequest{StartCash: decimal.Zero}); !errors.Is(err, store.ErrShiftOpen) {
		t.Fatalf("expected ErrShiftOpen, got %v", err)
	}

	// One cash sale and one mpesa sale; only cash counts toward the drawer.
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "mpesa",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("mpesa sale: %v", err)
	}

	expected := decimal.RequireFromString("1000").Add(oilFilter.SellingPrice)
	closed, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: expected})
	if err != nil {
		t.Fatalf("close shift: %v", err)
	}
	if closed.ExpectedCash == nil || !closed.ExpectedCash.Equal(expected) {
		t.Fatalf("expected cash = %v, want %s", closed.ExpectedCash, expected)
	}
	if closed.Variance == nil || !closed.Variance.IsZero() {
		t.Fatalf("variance = %v, want 0", closed.Variance)
	}

	if _, err := svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: decimal.Zero}); !errors.Is(err, store.ErrNoOpenShift) {
		t.Fatalf("expected ErrNoOpenShift, got %v", err)
	}

	// A short drawer shows a negative variance.
	if _, err := svc.OpenShift(ctx, domain.ShiftOpenRequest{StartCash: decimal.RequireFromString("500")}); err != nil {
		t.Fatalf("reopen shift: %v", err)
	}
	short := decimal.RequireFromString("490")
	closed, err = svc.CloseShift(ctx, domain.ShiftCloseRequest{ActualCash: short})
	if err != nil {
		t.Fatalf("close short shift: %v", err)
	}
	if closed.Variance == nil || !closed.Variance.Equal(decimal.RequireFromString("-10")) {
		t.Fatalf("variance = %v, want -10", closed.Variance)
	}

	shifts, err := svc.ListShifts(ctx, 10)
	if err != nil {
		t.Fatalf("list shifts: %v", err)
	}
	if len(shifts) != 2 {
		t.Fatalf("expected 2 shifts in history, got %d", len(shifts))
	}
}

func TestSalesDoNotRequireOpenShift(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	current, err := svc.CurrentShift(ctx)
	if err != nil {
		t.Fatalf("current shift: %v", err)
	}
	if current != nil {
		t.Fatalf("expected no open shift")
	}

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("sale without shift should succeed: %v", err)
	}
}

func TestCrossShopScoping(t *testing.T) {
	svc := newTestService()

	oilFilter := itemByName(t, svc, adminCtx(), "Oil Filter")

	otherCtx := WithActor(context.Background(), domain.Actor{
		UserID:   "user-other",
		ShopID:   "shop-other",
		Username: "stranger",
		Role:     domain.RoleAdmin,
	})

	if _, err := svc.GetItem(otherCtx, oilFilter.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound across shops, got %v", err)
	}

	items, err := svc.ListItems(otherCtx, domain.ItemListFilter{})
	if err != nil {
		t.Fatalf("list items: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty list for other shop, got %d items", len(items))
	}

	_, err = svc.CreateSale(otherCtx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound selling another shop's item, got %v", err)
	}
}

func TestDailyReportAggregates(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	sparkPlug := itemByName(t, svc, ctx, "Spark Plug")

	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 2}},
	}); err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "mpesa",
		Items:       []domain.SaleLine{{ItemID: sparkPlug.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("mpesa sale: %v", err)
	}

	report, err := svc.DailyReport(ctx, "")
	if err != nil {
		t.Fatalf("daily report: %v", err)
	}
	if report.Sales != 2 {
		t.Fatalf("sales = %d, want 2", report.Sales)
	}
	wantGross := oilFilter.SellingPrice.Mul(decimal.NewFromInt(2)).Add(sparkPlug.SellingPrice)
	if !report.GrossSales.Equal(wantGross) {
		t.Fatalf("gross = %s, want %s", report.GrossSales, wantGross)
	}
	wantCOGS := oilFilter.BuyingPrice.Mul(decimal.NewFromInt(2)).Add(sparkPlug.BuyingPrice)
	if !report.COGS.Equal(wantCOGS) {
		t.Fatalf("cogs = %s, want %s", report.COGS, wantCOGS)
	}
	if !report.GrossProfit.Equal(wantGross.Sub(wantCOGS)) {
		t.Fatalf("profit = %s, want %s", report.GrossProfit, wantGross.Sub(wantCOGS))
	}
	if len(report.ByPayment) != 2 {
		t.Fatalf("expected 2 payment groups, got %d", len(report.ByPayment))
	}
}

func TestDashboardSummary(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	summary, err := svc.DashboardSummary(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if summary.SalesToday != 1 {
		t.Fatalf("sales today = %d, want 1", summary.SalesToday)
	}
	if !summary.RevenueToday.Equal(resp.Sale.TotalAmount) {
		t.Fatalf("revenue today = %s, want %s", summary.RevenueToday, resp.Sale.TotalAmount)
	}
}

func TestInventoryValuation(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	valuation, err := svc.InventoryValuation(ctx)
	if err != nil {
		t.Fatalf("valuation: %v", err)
	}
	if len(valuation.Items) == 0 {
		t.Fatalf("expected seeded valuation lines")
	}
	sum := decimal.Zero
	for _, line := range valuation.Items {
		want := line.BuyingPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		if !line.Value.Equal(want) {
			t.Fatalf("line %s value = %s, want %s", line.Name, line.Value, want)
		}
		sum = sum.Add(line.Value)
	}
	if !valuation.TotalValue.Equal(sum) {
		t.Fatalf("total = %s, want %s", valuation.TotalValue, sum)
	}
}

func TestAuditLogWrittenForSale(t *testing.T) {
	svc := newTestService()
	ctx := adminCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	}); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	logs, err := svc.ListAuditLogs(ctx, "", 50)
	if err != nil {
		t.Fatalf("list audit logs: %v", err)
	}
	found := false
	for _, entry := range logs {
		if entry.Action == "sale_create" && entry.ActorName == "admin" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sale_create audit entry")
	}
}

func TestCashSaleDefaultsToWalkInCustomer(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	sparkPlug := itemByName(t, svc, ctx, "Spark Plug")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: sparkPlug.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	if resp.Sale.CustomerName != domain.WalkInCustomer {
		t.Fatalf("customer name = %q, want %q", resp.Sale.CustomerName, domain.WalkInCustomer)
	}
	if resp.Sale.CustomerID != "" {
		t.Fatalf("walk-in sale should not link a customer, got %q", resp.Sale.CustomerID)
	}

	customers, err := svc.ListCustomers(ctx, "", 50)
	if err != nil {
		t.Fatalf("list customers: %v", err)
	}
	if len(customers) != 0 {
		t.Fatalf("walk-in default created %d customer rows", len(customers))
	}
}

func TestCreditReportOutstandingBalances(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	big := decimal.RequireFromString("900")
	small := decimal.RequireFromString("400")
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType:  "credit",
		CustomerName: "Njoroge Motors",
		Items:        []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1, UnitPrice: &big}},
	}); err != nil {
		t.Fatalf("first credit sale: %v", err)
	}
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType:  "credit",
		CustomerName: "Achieng Traders",
		Items:        []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1, UnitPrice: &small}},
	}); err != nil {
		t.Fatalf("second credit sale: %v", err)
	}

	customers, err := svc.ListCustomers(ctx, "Achieng", 10)
	if err != nil || len(customers) != 1 {
		t.Fatalf("list customers: %v (%d)", err, len(customers))
	}
	achieng, err := svc.GetCustomerDetail(ctx, customers[0].ID)
	if err != nil {
		t.Fatalf("customer detail: %v", err)
	}
	if _, err := svc.PayCredit(ctx, customers[0].ID, domain.CreditPaymentRequest{
		Amount:  decimal.RequireFromString("150"),
		EntryID: achieng.Entries[0].ID,
	}); err != nil {
		t.Fatalf("pay credit: %v", err)
	}

	report, err := svc.CreditReport(ctx)
	if err != nil {
		t.Fatalf("credit report: %v", err)
	}
	if len(report.Customers) != 2 {
		t.Fatalf("expected 2 debtors, got %d", len(report.Customers))
	}
	if report.Customers[0].Name != "Njoroge Motors" {
		t.Fatalf("debtors not ordered by balance, first is %s", report.Customers[0].Name)
	}
	want := decimal.RequireFromString("1150")
	if !report.TotalOutstanding.Equal(want) {
		t.Fatalf("total outstanding = %s, want %s", report.TotalOutstanding, want)
	}
	if len(report.OpenEntries) != 2 {
		t.Fatalf("expected 2 open entries, got %d", len(report.OpenEntries))
	}
	sum := decimal.Zero
	for _, entry := range report.OpenEntries {
		sum = sum.Add(entry.Balance)
	}
	if !sum.Equal(report.TotalOutstanding) {
		t.Fatalf("entry balances sum to %s, report says %s", sum, report.TotalOutstanding)
	}
	if len(report.RecentPayments) != 1 {
		t.Fatalf("expected 1 recent payment, got %d", len(report.RecentPayments))
	}

	// Settling an entry removes it from the outstanding set.
	detail, err := svc.GetCustomerDetail(ctx, customers[0].ID)
	if err != nil {
		t.Fatalf("customer detail: %v", err)
	}
	if _, err := svc.PayCredit(ctx, customers[0].ID, domain.CreditPaymentRequest{
		Amount:  detail.Entries[0].Balance,
		EntryID: detail.Entries[0].ID,
	}); err != nil {
		t.Fatalf("settle entry: %v", err)
	}
	report, err = svc.CreditReport(ctx)
	if err != nil {
		t.Fatalf("credit report: %v", err)
	}
	if len(report.OpenEntries) != 1 {
		t.Fatalf("expected 1 open entry after settlement, got %d", len(report.OpenEntries))
	}
	if !report.TotalOutstanding.Equal(big) {
		t.Fatalf("total outstanding = %s, want %s", report.TotalOutstanding, big)
	}
}

func TestFinancialReportTrialBalance(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	resp, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("cash sale: %v", err)
	}
	cogs := oilFilter.BuyingPrice.Mul(decimal.NewFromInt(2))

	report, err := svc.FinancialReport(ctx)
	if err != nil {
		t.Fatalf("financial report: %v", err)
	}
	if len(report.TrialBalance) != 4 {
		t.Fatalf("expected 4 accounts, got %d", len(report.TrialBalance))
	}
	byAccount := make(map[string]domain.AccountBalance, len(report.TrialBalance))
	for _, balance := range report.TrialBalance {
		byAccount[balance.Account] = balance
	}
	if !byAccount[domain.AccountCash].NetBalance.Equal(resp.Sale.TotalAmount) {
		t.Fatalf("cash net = %s, want %s", byAccount[domain.AccountCash].NetBalance, resp.Sale.TotalAmount)
	}
	if !byAccount[domain.AccountInventory].NetBalance.Equal(cogs.Neg()) {
		t.Fatalf("inventory net = %s, want %s", byAccount[domain.AccountInventory].NetBalance, cogs.Neg())
	}
	if !report.TotalRevenue.Equal(resp.Sale.TotalAmount) {
		t.Fatalf("revenue = %s, want %s", report.TotalRevenue, resp.Sale.TotalAmount)
	}
	if !report.TotalExpenses.Equal(cogs) {
		t.Fatalf("expenses = %s, want %s", report.TotalExpenses, cogs)
	}
	wantProfit := resp.Sale.TotalAmount.Sub(cogs)
	if !report.NetProfit.Equal(wantProfit) {
		t.Fatalf("net profit = %s, want %s", report.NetProfit, wantProfit)
	}
	if !report.Equity.Equal(report.TotalAssets.Sub(report.TotalLiabilities)) {
		t.Fatalf("equity %s != assets %s - liabilities %s", report.Equity, report.TotalAssets, report.TotalLiabilities)
	}
	// With no outside capital the books close to profit == equity.
	if !report.Equity.Equal(report.NetProfit) {
		t.Fatalf("equity = %s, want %s", report.Equity, report.NetProfit)
	}
}

func TestDashboardTopItemsAndRecentSales(t *testing.T) {
	svc := newTestService()
	ctx := cashierCtx()

	oilFilter := itemByName(t, svc, ctx, "Oil Filter")
	sparkPlug := itemByName(t, svc, ctx, "Spark Plug")
	if _, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "cash",
		Items: []domain.SaleLine{
			{ItemID: oilFilter.ID, Quantity: 2},
			{ItemID: sparkPlug.ID, Quantity: 1},
		},
	}); err != nil {
		t.Fatalf("first sale: %v", err)
	}
	second, err := svc.CreateSale(ctx, domain.SaleRequest{
		PaymentType: "mpesa",
		Items:       []domain.SaleLine{{ItemID: oilFilter.ID, Quantity: 1}},
	})
	if err != nil {
		t.Fatalf("second sale: %v", err)
	}

	summary, err := svc.DashboardSummary(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(summary.TopItems) != 2 {
		t.Fatalf("expected 2 top items, got %d", len(summary.TopItems))
	}
	if summary.TopItems[0].Name != "Oil Filter" || summary.TopItems[0].QuantitySold != 3 {
		t.Fatalf("top item = %s qty %d, want Oil Filter qty 3",
			summary.TopItems[0].Name, summary.TopItems[0].QuantitySold)
	}
	if len(summary.RecentSales) != 2 {
		t.Fatalf("expected 2 recent sales, got %d", len(summary.RecentSales))
	}
	if summary.RecentSales[0].ID != second.Sale.ID {
		t.Fatalf("recent sales not newest first")
	}
	if summary.RecentSales[0].ItemCount != 1 {
		t.Fatalf("recent sale item count = %d, want 1", summary.RecentSales[0].ItemCount)
	}
	if len(summary.HourlySales) == 0 {
		t.Fatalf("expected hourly buckets for today's sales")
	}
	hourlyTotal := decimal.Zero
	var hourlyCount int64
	for _, bucket := range summary.HourlySales {
		hourlyTotal = hourlyTotal.Add(bucket.Total)
		hourlyCount += bucket.Sales
	}
	if hourlyCount != summary.SalesToday || !hourlyTotal.Equal(summary.RevenueToday) {
		t.Fatalf("hourly buckets sum to %d/%s, summary says %d/%s",
			hourlyCount, hourlyTotal, summary.SalesToday, summary.RevenueToday)
	}
}
