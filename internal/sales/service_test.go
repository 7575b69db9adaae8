package sales

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/shared"
	"github.com/gapal/gapal/internal/stock"
)

type stockState struct {
	products  map[int64]products.Product
	movements []stock.Movement
	nextID    int64
}

type stockTx struct {
	state *stockState
}

func (tx *stockTx) GetProductForUpdate(ctx context.Context, productID int64) (products.Product, error) {
	if p, ok := tx.state.products[productID]; ok {
		return p, nil
	}
	return products.Product{}, products.ErrNotFound
}

func (tx *stockTx) SetProductStock(ctx context.Context, productID, quantity int64) error {
	p := tx.state.products[productID]
	p.StockQuantity = quantity
	tx.state.products[productID] = p
	return nil
}

func (tx *stockTx) InsertMovement(ctx context.Context, m stock.Movement) (int64, error) {
	tx.state.nextID++
	m.ID = tx.state.nextID
	tx.state.movements = append(tx.state.movements, m)
	return m.ID, nil
}

type memoryRepo struct {
	stock      *stockState
	sales      map[int64]*Sale
	nextID     int64
	nextItemID int64
}

func newMemoryRepo(items ...products.Product) *memoryRepo {
	state := &stockState{products: make(map[int64]products.Product)}
	for _, p := range items {
		state.products[p.ID] = p
	}
	return &memoryRepo{stock: state, sales: make(map[int64]*Sale)}
}

// WithTx snapshots sale and stock state up front and restores both when the
// callback fails, mirroring a rolled-back transaction.
func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository, stock.TxRepository) error) error {
	salesBackup := make(map[int64]*Sale, len(r.sales))
	for id, s := range r.sales {
		clone := *s
		salesBackup[id] = &clone
	}
	stockBackup := stockState{products: make(map[int64]products.Product, len(r.stock.products))}
	for id, p := range r.stock.products {
		stockBackup.products[id] = p
	}
	stockBackup.movements = append([]stock.Movement(nil), r.stock.movements...)
	stockBackup.nextID = r.stock.nextID
	idBackup, itemIDBackup := r.nextID, r.nextItemID

	err := fn(ctx, r, &stockTx{state: r.stock})
	if err != nil {
		r.sales = salesBackup
		*r.stock = stockBackup
		r.nextID, r.nextItemID = idBackup, itemIDBackup
	}
	return err
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Sale, error) {
	s, ok := r.sales[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *s
	return &clone, nil
}

func (r *memoryRepo) LastReceiptNumber(ctx context.Context, prefix string) (string, error) {
	last := ""
	for _, s := range r.sales {
		if strings.HasPrefix(s.ReceiptNumber, prefix) && s.ReceiptNumber > last {
			last = s.ReceiptNumber
		}
	}
	return last, nil
}

func (r *memoryRepo) Create(ctx context.Context, s Sale) (int64, error) {
	r.nextID++
	s.ID = r.nextID
	r.sales[s.ID] = &s
	return s.ID, nil
}

func (r *memoryRepo) InsertItem(ctx context.Context, item SaleItem) (int64, error) {
	r.nextItemID++
	item.ID = r.nextItemID
	s := r.sales[item.SaleID]
	s.Items = append(s.Items, item)
	return item.ID, nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	var result []Sale
	for _, s := range r.sales {
		result = append(result, *s)
	}
	return result, nil
}

func (r *memoryRepo) DailySummary(ctx context.Context, day string) (DailySummary, error) {
	summary := DailySummary{Date: day}
	for _, s := range r.sales {
		summary.Count++
		summary.TotalPrice += s.TotalPrice
		summary.AmountPaid += s.AmountPaid
	}
	return summary, nil
}

type memoryCatalog struct {
	repo *memoryRepo
}

func (c *memoryCatalog) GetActive(ctx context.Context, id int64) (products.Product, error) {
	if p, ok := c.repo.stock.products[id]; ok {
		return p, nil
	}
	return products.Product{}, products.ErrNotFound
}

type memoryNotifier struct {
	alerted []int64
}

func (n *memoryNotifier) LowStock(ctx context.Context, product products.Product) error {
	n.alerted = append(n.alerted, product.ID)
	return nil
}

type fixture struct {
	repo     *memoryRepo
	notifier *memoryNotifier
	svc      *Service
}

func newFixture(t *testing.T, items ...products.Product) *fixture {
	t.Helper()
	repo := newMemoryRepo(items...)
	notifier := &memoryNotifier{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ledger := stock.NewService(nil, nil, notifier, logger, stock.ServiceConfig{AllowNegativeStock: true})
	f := &fixture{repo: repo, notifier: notifier}
	f.svc = NewService(repo, &memoryCatalog{repo: repo}, ledger, nil, logger)
	f.svc.now = func() time.Time { return time.Date(2026, 1, 15, 14, 0, 0, 0, time.UTC) }
	return f
}

func seller() shared.Identity {
	return shared.Identity{UserID: 3, Role: shared.RoleStockManager}
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, StatusPaid, StatusFor(1000, 1000))
	require.Equal(t, StatusPaid, StatusFor(0, 0))
	require.Equal(t, StatusPartial, StatusFor(1000, 500))
	require.Equal(t, StatusPending, StatusFor(1000, 0))
}

func TestCreateRecordsSaleAndExitsStock(t *testing.T) {
	f := newFixture(t,
		products.Product{ID: 1, Name: "Lait frais 1L", UnitPrice: 600, StockQuantity: 50, MinStockLevel: 5},
		products.Product{ID: 2, Name: "Fromage", UnitPrice: 2500, StockQuantity: 10, MinStockLevel: 2},
	)

	sale, err := f.svc.Create(context.Background(), CreateSaleRequest{
		ClientName:    "Comptoir",
		PaymentMethod: "CASH",
		AmountPaid:    8000,
		Items: []CreateSaleItemRequest{
			{ProductID: 1, Quantity: 5},
			{ProductID: 2, Quantity: 2},
		},
	}, seller())
	require.NoError(t, err)
	require.Equal(t, "REC202601150001", sale.ReceiptNumber)
	require.Equal(t, int64(5*600+2*2500), sale.TotalPrice)
	require.Equal(t, StatusPaid, sale.PaymentStatus)
	require.Len(t, sale.Items, 2)
	require.Equal(t, int64(600), sale.Items[0].UnitPrice)

	require.Equal(t, int64(45), f.repo.stock.products[1].StockQuantity)
	require.Equal(t, int64(8), f.repo.stock.products[2].StockQuantity)
	require.Len(t, f.repo.stock.movements, 2)
	require.Equal(t, stock.MovementOut, f.repo.stock.movements[0].Type)
	require.Equal(t, "Vente REC202601150001", f.repo.stock.movements[0].Reason)
}

func TestCreateIncrementsReceiptSequence(t *testing.T) {
	f := newFixture(t, products.Product{ID: 1, UnitPrice: 600, StockQuantity: 50})
	ctx := context.Background()
	req := CreateSaleRequest{
		PaymentMethod: "MOBILE_MONEY",
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
	}

	first, err := f.svc.Create(ctx, req, seller())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, req, seller())
	require.NoError(t, err)
	require.Equal(t, "REC202601150001", first.ReceiptNumber)
	require.Equal(t, "REC202601150002", second.ReceiptNumber)
}

func TestCreateDerivesPartialAndPendingStatus(t *testing.T) {
	f := newFixture(t, products.Product{ID: 1, UnitPrice: 1000, StockQuantity: 50})
	ctx := context.Background()

	partial, err := f.svc.Create(ctx, CreateSaleRequest{
		PaymentMethod: "CREDIT",
		AmountPaid:    500,
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
	}, seller())
	require.NoError(t, err)
	require.Equal(t, StatusPartial, partial.PaymentStatus)

	pending, err := f.svc.Create(ctx, CreateSaleRequest{
		PaymentMethod: "CREDIT",
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
	}, seller())
	require.NoError(t, err)
	require.Equal(t, StatusPending, pending.PaymentStatus)
}

func TestCreateRejectsOverpayment(t *testing.T) {
	f := newFixture(t, products.Product{ID: 1, UnitPrice: 600, StockQuantity: 50})

	_, err := f.svc.Create(context.Background(), CreateSaleRequest{
		PaymentMethod: "CASH",
		AmountPaid:    601,
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
	}, seller())
	require.ErrorIs(t, err, ErrInvalidPayment)
}

func TestCreateRejectsEmptySale(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateSaleRequest{PaymentMethod: "CASH"}, seller())
	require.ErrorIs(t, err, ErrEmptySale)
	require.Empty(t, f.repo.sales)
}

func TestCreateRejectsUnknownPaymentMethod(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateSaleRequest{
		PaymentMethod: "CHEQUE",
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 1}},
	}, seller())
	require.ErrorIs(t, err, ErrInvalidPayment)
}

func TestInsufficientStockRollsBackWholeSale(t *testing.T) {
	f := newFixture(t,
		products.Product{ID: 1, UnitPrice: 600, StockQuantity: 50},
		products.Product{ID: 2, UnitPrice: 2500, StockQuantity: 1},
	)

	_, err := f.svc.Create(context.Background(), CreateSaleRequest{
		PaymentMethod: "CASH",
		Items: []CreateSaleItemRequest{
			{ProductID: 1, Quantity: 5},
			{ProductID: 2, Quantity: 3},
		},
	}, seller())
	require.ErrorIs(t, err, ErrInsufficientStock)

	require.Empty(t, f.repo.sales)
	require.Empty(t, f.repo.stock.movements)
	require.Equal(t, int64(50), f.repo.stock.products[1].StockQuantity, "first line rolled back too")
	require.Equal(t, int64(1), f.repo.stock.products[2].StockQuantity)
}

func TestCreateNotifiesLowStockAfterCommit(t *testing.T) {
	f := newFixture(t, products.Product{ID: 1, UnitPrice: 600, StockQuantity: 6, MinStockLevel: 5})

	_, err := f.svc.Create(context.Background(), CreateSaleRequest{
		PaymentMethod: "CASH",
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 2}},
	}, seller())
	require.NoError(t, err)
	require.Equal(t, []int64{1}, f.notifier.alerted)
}

func TestDailySummaryDefaultsToToday(t *testing.T) {
	f := newFixture(t, products.Product{ID: 1, UnitPrice: 600, StockQuantity: 50})
	ctx := context.Background()
	_, err := f.svc.Create(ctx, CreateSaleRequest{
		PaymentMethod: "CASH",
		AmountPaid:    1200,
		Items:         []CreateSaleItemRequest{{ProductID: 1, Quantity: 2}},
	}, seller())
	require.NoError(t, err)

	summary, err := f.svc.DailySummary(ctx, "")
	require.NoError(t, err)
	require.Equal(t, "2026-01-15", summary.Date)
	require.Equal(t, 1, summary.Count)
	require.Equal(t, int64(1200), summary.TotalPrice)
	require.Equal(t, int64(1200), summary.AmountPaid)
}
