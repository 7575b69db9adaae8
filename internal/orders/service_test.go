package orders

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/gapal/gapal/internal/notifications"
	"github.com/gapal/gapal/internal/products"
	"github.com/gapal/gapal/internal/shared"
	"github.com/gapal/gapal/internal/stock"
)

type memoryRepo struct {
	orders     map[int64]*Order
	nextID     int64
	nextItemID int64

	// createErrs are popped one per Create call, simulating transient
	// failures like a unique violation on a raced order number.
	createErrs []error
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: make(map[int64]*Order)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository, stock.TxRepository) error) error {
	return fn(ctx, r, nil)
}

func (r *memoryRepo) Get(ctx context.Context, id int64) (*Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *o
	return &clone, nil
}

func (r *memoryRepo) GetByLocalID(ctx context.Context, localID string) (*Order, error) {
	for _, o := range r.orders {
		if o.LocalID == localID {
			clone := *o
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) GetForUpdate(ctx context.Context, id int64) (*Order, error) {
	return r.Get(ctx, id)
}

func (r *memoryRepo) LastOrderNumber(ctx context.Context, prefix string) (string, error) {
	last := ""
	for _, o := range r.orders {
		if strings.HasPrefix(o.OrderNumber, prefix) && o.OrderNumber > last {
			last = o.OrderNumber
		}
	}
	return last, nil
}

func (r *memoryRepo) Create(ctx context.Context, o Order) (int64, error) {
	if len(r.createErrs) > 0 {
		err := r.createErrs[0]
		r.createErrs = r.createErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	r.nextID++
	o.ID = r.nextID
	r.orders[o.ID] = &o
	return o.ID, nil
}

func (r *memoryRepo) InsertItem(ctx context.Context, item OrderItem) (int64, error) {
	r.nextItemID++
	item.ID = r.nextItemID
	o := r.orders[item.OrderID]
	o.Items = append(o.Items, item)
	return item.ID, nil
}

func (r *memoryRepo) SetDeliveryStatus(ctx context.Context, id int64, status DeliveryStatus) error {
	r.orders[id].DeliveryStatus = status
	return nil
}

func (r *memoryRepo) SetPaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	r.orders[id].PaymentStatus = status
	return nil
}

func (r *memoryRepo) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	r.orders[id].SyncedAt = &at
	return nil
}

func (r *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Order, error) {
	var result []Order
	for _, o := range r.orders {
		if filter.CreatedBy != 0 && o.CreatedBy != filter.CreatedBy {
			continue
		}
		result = append(result, *o)
	}
	return result, nil
}

func (r *memoryRepo) Stats(ctx context.Context, createdBy int64) (Stats, error) {
	var stats Stats
	for _, o := range r.orders {
		if createdBy != 0 && o.CreatedBy != createdBy {
			continue
		}
		stats.Total++
	}
	return stats, nil
}

type memoryCatalog struct {
	items map[int64]products.Product
}

func (c *memoryCatalog) GetActive(ctx context.Context, id int64) (products.Product, error) {
	if p, ok := c.items[id]; ok {
		return p, nil
	}
	return products.Product{}, products.ErrNotFound
}

type memoryLedger struct {
	decremented [][]stock.OrderLine
	reasons     []string
	lowStock    int
}

func (l *memoryLedger) DecrementForOrder(ctx context.Context, tx stock.TxRepository, orderID int64, orderNumber string, lines []stock.OrderLine, actorID int64) ([]stock.Result, error) {
	l.decremented = append(l.decremented, lines)
	l.reasons = append(l.reasons, orderNumber)
	results := make([]stock.Result, len(lines))
	return results, nil
}

func (l *memoryLedger) NotifyLowStock(ctx context.Context, results []stock.Result) {
	l.lowStock++
}

type memoryDispatcher struct {
	created   []string
	delivered []string
	changed   []string
}

func (d *memoryDispatcher) NewOrder(ctx context.Context, order notifications.OrderInfo) (notifications.Notification, error) {
	d.created = append(d.created, order.Number)
	return notifications.Notification{}, nil
}

func (d *memoryDispatcher) OrderDelivered(ctx context.Context, order notifications.OrderInfo) (notifications.Notification, error) {
	d.delivered = append(d.delivered, order.Number)
	return notifications.Notification{}, nil
}

func (d *memoryDispatcher) OrderStatusChanged(ctx context.Context, order notifications.OrderInfo, oldStatus string) {
	d.changed = append(d.changed, oldStatus+">"+order.Status)
}

type fixture struct {
	repo       *memoryRepo
	catalog    *memoryCatalog
	ledger     *memoryLedger
	dispatcher *memoryDispatcher
	svc        *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo: newMemoryRepo(),
		catalog: &memoryCatalog{items: map[int64]products.Product{
			1: {ID: 1, Name: "Lait frais 1L", UnitPrice: 600},
			2: {ID: 2, Name: "Yaourt nature", UnitPrice: 350},
		}},
		ledger:     &memoryLedger{},
		dispatcher: &memoryDispatcher{},
	}
	f.svc = NewService(f.repo, f.catalog, f.ledger, f.dispatcher, nil, discardLogger())
	f.svc.now = func() time.Time { return time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC) }
	return f
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validRequest() CreateOrderRequest {
	return CreateOrderRequest{
		ClientName:   "Boutique Awa",
		DeliveryDate: time.Date(2026, 1, 16, 0, 0, 0, 0, time.UTC),
		Items: []CreateOrderItemRequest{
			{ProductID: 1, Quantity: 10},
			{ProductID: 2, Quantity: 4},
		},
	}
}

func vendor() shared.Identity {
	return shared.Identity{UserID: 7, Role: shared.RoleVendor}
}

func manager() shared.Identity {
	return shared.Identity{UserID: 2, Role: shared.RoleOrderManager}
}

func TestCreateSnapshotsPricesAndComputesTotal(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.Create(context.Background(), validRequest(), vendor())
	require.NoError(t, err)
	require.Equal(t, "202601150001", order.OrderNumber)
	require.Equal(t, DeliveryStatusNew, order.DeliveryStatus)
	require.Equal(t, PaymentStatusUnpaid, order.PaymentStatus)
	require.Equal(t, PriorityMedium, order.Priority)
	require.Len(t, order.Items, 2)
	require.Equal(t, int64(600), order.Items[0].UnitPrice)
	require.Equal(t, int64(6000), order.Items[0].Subtotal)
	require.Equal(t, int64(6000+1400), order.TotalPrice)
	require.NotEmpty(t, order.LocalID)
	require.Equal(t, []string{"202601150001"}, f.dispatcher.created)
}

func TestCreateIncrementsDailySequence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)
	require.Equal(t, "202601150001", first.OrderNumber)
	require.Equal(t, "202601150002", second.OrderNumber)

	// A different day restarts the sequence.
	f.svc.now = func() time.Time { return time.Date(2026, 1, 16, 9, 0, 0, 0, time.UTC) }
	third, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)
	require.Equal(t, "202601160001", third.OrderNumber)
}

func TestCreateRetriesOnceOnUniqueViolation(t *testing.T) {
	f := newFixture(t)
	f.repo.createErrs = []error{&pgconn.PgError{Code: "23505"}}

	order, err := f.svc.Create(context.Background(), validRequest(), vendor())
	require.NoError(t, err)
	require.Equal(t, "202601150001", order.OrderNumber)

	f.repo.createErrs = []error{&pgconn.PgError{Code: "23505"}, &pgconn.PgError{Code: "23505"}}
	_, err = f.svc.Create(context.Background(), validRequest(), vendor())
	require.Error(t, err, "a second collision is not retried")
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Items = append(req.Items, CreateOrderItemRequest{ProductID: 99, Quantity: 1})

	_, err := f.svc.Create(context.Background(), req, vendor())
	require.ErrorIs(t, err, ErrUnknownProduct)
	require.Empty(t, f.repo.orders)
}

func TestCreateRejectsEmptyOrder(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Items = nil

	_, err := f.svc.Create(context.Background(), req, vendor())
	require.ErrorIs(t, err, ErrEmptyOrder)
	require.Empty(t, f.repo.orders)

	// The same guard holds on the sync path.
	result := f.svc.Sync(context.Background(), SyncRequest{Orders: []CreateOrderRequest{req}}, vendor())
	require.Equal(t, 0, result.Synced)
	require.Len(t, result.Errors, 1)
}

func TestCreateRejectsInvalidPriority(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.Priority = "URGENT"

	_, err := f.svc.Create(context.Background(), req, vendor())
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestCreateReplaysExistingLocalID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := validRequest()
	req.LocalID = "3d1f8f5e-9f6c-4e39-b6a4-0a2a0c5f1d11"

	first, err := f.svc.Create(ctx, req, vendor())
	require.NoError(t, err)
	second, err := f.svc.Create(ctx, req, vendor())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, f.repo.orders, 1)
}

func TestCreateRegeneratesInvalidLocalID(t *testing.T) {
	f := newFixture(t)
	req := validRequest()
	req.LocalID = "not-a-uuid"

	order, err := f.svc.Create(context.Background(), req, vendor())
	require.NoError(t, err)
	require.NotEqual(t, "not-a-uuid", order.LocalID)
}

func TestDeliveryDecrementsStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)

	updated, err := f.svc.UpdateDeliveryStatus(ctx, order.ID, DeliveryStatusDelivered, manager())
	require.NoError(t, err)
	require.True(t, updated.IsDelivered())
	require.Len(t, f.ledger.decremented, 1)
	require.Equal(t, []stock.OrderLine{{ProductID: 1, Quantity: 10}, {ProductID: 2, Quantity: 4}}, f.ledger.decremented[0])
	require.Equal(t, order.OrderNumber, f.ledger.reasons[0])
	require.Equal(t, 1, f.ledger.lowStock)
	require.Equal(t, []string{order.OrderNumber}, f.dispatcher.delivered)

	// Repeating the transition is a no-op: no second decrement, no second
	// notification.
	again, err := f.svc.UpdateDeliveryStatus(ctx, order.ID, DeliveryStatusDelivered, manager())
	require.NoError(t, err)
	require.True(t, again.IsDelivered())
	require.Len(t, f.ledger.decremented, 1)
	require.Len(t, f.dispatcher.delivered, 1)
}

func TestNonDeliveredTransitionLeavesStockAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)

	updated, err := f.svc.UpdateDeliveryStatus(ctx, order.ID, DeliveryStatusInDelivery, manager())
	require.NoError(t, err)
	require.Equal(t, DeliveryStatusInDelivery, updated.DeliveryStatus)
	require.Empty(t, f.ledger.decremented)
	require.Equal(t, []string{"NEW>IN_DELIVERY"}, f.dispatcher.changed)
}

func TestCancelledOrderRejectsMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)
	_, err = f.svc.UpdateDeliveryStatus(ctx, order.ID, DeliveryStatusCancelled, manager())
	require.NoError(t, err)

	_, err = f.svc.UpdateDeliveryStatus(ctx, order.ID, DeliveryStatusInDelivery, manager())
	require.ErrorIs(t, err, ErrCancelled)
	_, err = f.svc.UpdatePaymentStatus(ctx, order.ID, PaymentStatusPaid, manager())
	require.ErrorIs(t, err, ErrCancelled)
}

func TestUpdateDeliveryStatusRejectsUnknownValue(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.UpdateDeliveryStatus(context.Background(), 1, DeliveryStatus("SHIPPED"), manager())
	require.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdatePaymentStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)

	updated, err := f.svc.UpdatePaymentStatus(ctx, order.ID, PaymentStatusPaid, manager())
	require.NoError(t, err)
	require.Equal(t, PaymentStatusPaid, updated.PaymentStatus)
	require.Equal(t, DeliveryStatusNew, updated.DeliveryStatus, "payment does not touch delivery")
}

func TestSyncCommitsGoodItemsAndReportsBadOnes(t *testing.T) {
	f := newFixture(t)
	good := validRequest()
	good.LocalID = "aa1f8f5e-9f6c-4e39-b6a4-0a2a0c5f1d11"
	bad := validRequest()
	bad.Items = []CreateOrderItemRequest{{ProductID: 99, Quantity: 1}}

	result := f.svc.Sync(context.Background(), SyncRequest{Orders: []CreateOrderRequest{good, bad, validRequest()}}, vendor())
	require.Equal(t, 2, result.Synced)
	require.Len(t, result.Orders, 2)
	require.Len(t, result.Errors, 1)
	require.Equal(t, 1, result.Errors[0].Index)
	require.NotNil(t, result.Orders[0].SyncedAt)

	// Replaying the same batch does not duplicate the already-synced order.
	replay := f.svc.Sync(context.Background(), SyncRequest{Orders: []CreateOrderRequest{good}}, vendor())
	require.Equal(t, 1, replay.Synced)
	require.Equal(t, result.Orders[0].ID, replay.Orders[0].ID)
}

func TestVendorScoping(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mine, err := f.svc.Create(ctx, validRequest(), vendor())
	require.NoError(t, err)
	other, err := f.svc.Create(ctx, validRequest(), shared.Identity{UserID: 8, Role: shared.RoleVendor})
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, other.ID, vendor())
	require.ErrorIs(t, err, ErrForbidden)

	got, err := f.svc.Get(ctx, mine.ID, vendor())
	require.NoError(t, err)
	require.Equal(t, mine.ID, got.ID)

	listed, err := f.svc.List(ctx, ListFilter{}, vendor())
	require.NoError(t, err)
	require.Len(t, listed, 1)

	all, err := f.svc.List(ctx, ListFilter{}, manager())
	require.NoError(t, err)
	require.Len(t, all, 2)

	stats, err := f.svc.Stats(ctx, vendor())
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
}
