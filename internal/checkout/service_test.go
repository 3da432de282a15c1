package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/lock"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
	"github.com/ariefcatur/go-shop-checkout/internal/orders/ordertest"
	"github.com/ariefcatur/go-shop-checkout/internal/scheduler"
)

const (
	userID = int64(1)
	shopA  = int64(100)
	shopB  = int64(200)
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) PublishJSON(_ context.Context, _ string, _ []byte, eventType string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventType)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fixture struct {
	t      *testing.T
	mr     *miniredis.Miniredis
	store  *ordertest.MemStore
	sched  *scheduler.RedisScheduler
	events *recorder
	svc    *Service
	now    time.Time

	productA, productB int64
	skuA, skuB         int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{t: t, mr: mr, store: ordertest.NewMemStore(), events: &recorder{}, now: t0}
	f.store.Now = func() time.Time { return f.now }

	published := t0.Add(-24 * time.Hour)
	f.productA = f.store.AddProduct(orders.Product{
		Name:         "Kaos Polos",
		PublishedAt:  &published,
		Translations: []orders.ProductTranslation{{ID: 1, Name: "Plain T-shirt", LanguageID: "en"}},
	})
	f.productB = f.store.AddProduct(orders.Product{Name: "Topi", PublishedAt: &published})
	f.skuA = f.store.AddSKU(orders.SKU{ProductID: f.productA, Value: "M", Price: 50000, Stock: 10, CreatedByID: shopA})
	f.skuB = f.store.AddSKU(orders.SKU{ProductID: f.productB, Value: "Red", Price: 25000, Stock: 5, CreatedByID: shopB})

	locks := lock.NewRedisManager(rdb, 5*time.Second)
	locks.Backoff = 2 * time.Millisecond
	f.sched = scheduler.NewRedisScheduler(rdb, scheduler.QueuePayment)
	f.svc = &Service{
		Store:          f.store,
		Locks:          locks,
		Scheduler:      f.sched,
		Events:         f.events,
		Idempotency:    NewRedisIdempotency(rdb),
		Log:            zap.NewNop(),
		Now:            func() time.Time { return f.now },
		LockTTL:        3 * time.Second,
		PaymentTimeout: 24 * time.Hour,
		ServiceName:    "checkout-test",
	}
	return f
}

func receiver() orders.Receiver {
	return orders.Receiver{Name: "Budi", Phone: "0812345678", Address: "Jl. Merdeka 1"}
}

func (f *fixture) pendingJobs() []string {
	ids, err := f.sched.Pending(context.Background())
	require.NoError(f.t, err)
	return ids
}

// placeTwoShops checks out one item from each shop.
func (f *fixture) placeTwoShops() []orders.Order {
	ciA := f.store.AddCartItem(userID, f.skuA, 2)
	ciB := f.store.AddCartItem(userID, f.skuB, 1)
	created, err := f.svc.PlaceOrders(context.Background(), userID, []OrderRequest{
		{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ciA}},
		{ShopID: shopB, Receiver: receiver(), CartItemIDs: []int64{ciB}},
	}, "")
	require.NoError(f.t, err)
	return created
}

func TestPlaceOrders_TwoShops(t *testing.T) {
	f := newFixture(t)
	ciA := f.store.AddCartItem(userID, f.skuA, 2)
	ciB := f.store.AddCartItem(userID, f.skuB, 1)

	created, err := f.svc.PlaceOrders(context.Background(), userID, []OrderRequest{
		{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ciA}},
		{ShopID: shopB, Receiver: receiver(), CartItemIDs: []int64{ciB}},
	}, "")
	require.NoError(t, err)

	require.Len(t, created, 2)
	assert.Equal(t, created[0].PaymentID, created[1].PaymentID)
	assert.Equal(t, shopA, created[0].ShopID)
	assert.Equal(t, shopB, created[1].ShopID)
	for _, o := range created {
		assert.Equal(t, orders.StatusPendingPayment, o.Status)
		require.Len(t, o.Items, 1)
	}
	assert.Equal(t, int64(100000), created[0].Total())
	assert.Equal(t, "Kaos Polos", created[0].Items[0].ProductName)
	assert.Equal(t, "Plain T-shirt", created[0].Items[0].ProductTranslations[0].Name)

	assert.Equal(t, 8, f.store.Stock(f.skuA))
	assert.Equal(t, 4, f.store.Stock(f.skuB))
	assert.False(t, f.store.CartItemExists(ciA))
	assert.False(t, f.store.CartItemExists(ciB))
	assert.Equal(t, orders.PaymentPending, f.store.PaymentStatus(created[0].PaymentID))

	assert.Equal(t, []string{scheduler.JobID(created[0].PaymentID)}, f.pendingJobs())
	assert.Equal(t, []string{orders.EventOrdersPlaced}, f.events.types())
	assert.False(t, f.mr.Exists(fmt.Sprintf("lock:sku:%d", f.skuA)), "locks released")
}

func TestPlaceOrders_SameSKUAcrossLinesIsAggregated(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(f.skuB, 3)
	ci1 := f.store.AddCartItem(userID, f.skuB, 2)
	ci2 := f.store.AddCartItem(userID, f.skuB, 2)

	_, err := f.svc.PlaceOrders(context.Background(), userID, []OrderRequest{
		{ShopID: shopB, Receiver: receiver(), CartItemIDs: []int64{ci1, ci2}},
	}, "")
	require.ErrorIs(t, err, orders.ErrOutOfStock)
	assert.Equal(t, 3, f.store.Stock(f.skuB))
}

func TestPlaceOrders_Validation(t *testing.T) {
	future := t0.Add(time.Hour)
	deleted := t0.Add(-time.Minute)
	published := t0.Add(-time.Hour)

	tests := []struct {
		name  string
		setup func(f *fixture) []OrderRequest
		want  error
	}{
		{
			name: "no groups",
			setup: func(f *fixture) []OrderRequest {
				return nil
			},
			want: ErrEmptyCheckout,
		},
		{
			name: "group without cart items",
			setup: func(f *fixture) []OrderRequest {
				return []OrderRequest{{ShopID: shopA, Receiver: receiver()}}
			},
			want: ErrEmptyCheckout,
		},
		{
			name: "cart item of another user",
			setup: func(f *fixture) []OrderRequest {
				ci := f.store.AddCartItem(99, f.skuA, 1)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}
			},
			want: orders.ErrCartItemNotFound,
		},
		{
			name: "unknown cart item",
			setup: func(f *fixture) []OrderRequest {
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{424242}}}
			},
			want: orders.ErrCartItemNotFound,
		},
		{
			name: "duplicate cart item id",
			setup: func(f *fixture) []OrderRequest {
				ci := f.store.AddCartItem(userID, f.skuA, 1)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci, ci}}}
			},
			want: orders.ErrCartItemNotFound,
		},
		{
			name: "quantity above stock",
			setup: func(f *fixture) []OrderRequest {
				ci := f.store.AddCartItem(userID, f.skuA, 11)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}
			},
			want: orders.ErrOutOfStock,
		},
		{
			name: "product scheduled for later",
			setup: func(f *fixture) []OrderRequest {
				p := f.store.AddProduct(orders.Product{Name: "Soon", PublishedAt: &future})
				sku := f.store.AddSKU(orders.SKU{ProductID: p, Price: 1, Stock: 1, CreatedByID: shopA})
				ci := f.store.AddCartItem(userID, sku, 1)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}
			},
			want: orders.ErrProductNotFound,
		},
		{
			name: "product unpublished",
			setup: func(f *fixture) []OrderRequest {
				p := f.store.AddProduct(orders.Product{Name: "Draft"})
				sku := f.store.AddSKU(orders.SKU{ProductID: p, Price: 1, Stock: 1, CreatedByID: shopA})
				ci := f.store.AddCartItem(userID, sku, 1)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}
			},
			want: orders.ErrProductNotFound,
		},
		{
			name: "product deleted",
			setup: func(f *fixture) []OrderRequest {
				p := f.store.AddProduct(orders.Product{Name: "Gone", PublishedAt: &published, DeletedAt: &deleted})
				sku := f.store.AddSKU(orders.SKU{ProductID: p, Price: 1, Stock: 1, CreatedByID: shopA})
				ci := f.store.AddCartItem(userID, sku, 1)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}
			},
			want: orders.ErrProductNotFound,
		},
		{
			name: "unpublished and out of stock reports stock first",
			setup: func(f *fixture) []OrderRequest {
				p := f.store.AddProduct(orders.Product{Name: "Draft"})
				sku := f.store.AddSKU(orders.SKU{ProductID: p, Price: 1, Stock: 0, CreatedByID: shopA})
				ci := f.store.AddCartItem(userID, sku, 1)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}
			},
			want: orders.ErrOutOfStock,
		},
		{
			name: "sku of another shop",
			setup: func(f *fixture) []OrderRequest {
				ci := f.store.AddCartItem(userID, f.skuB, 1)
				return []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}
			},
			want: orders.ErrSKUNotBelongToShop,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			reqs := tt.setup(f)

			_, err := f.svc.PlaceOrders(context.Background(), userID, reqs, "")
			require.ErrorIs(t, err, tt.want)

			payments, _ := f.store.Counts()
			assert.Zero(t, payments)
			assert.Equal(t, 10, f.store.Stock(f.skuA))
			assert.Empty(t, f.pendingJobs())
		})
	}
}

func TestPlaceOrders_VersionConflictRollsBack(t *testing.T) {
	f := newFixture(t)
	ci := f.store.AddCartItem(userID, f.skuA, 1)

	// another writer touches the SKU between read and write
	f.store.BeforeCreateCheckout = func() { f.store.SetStock(f.skuA, 10) }

	_, err := f.svc.PlaceOrders(context.Background(), userID, []OrderRequest{
		{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}},
	}, "")
	require.ErrorIs(t, err, orders.ErrVersionConflict)

	payments, orderCount := f.store.Counts()
	assert.Zero(t, payments)
	assert.Zero(t, orderCount)
	assert.True(t, f.store.CartItemExists(ci))
	assert.Equal(t, 10, f.store.Stock(f.skuA))
	assert.Empty(t, f.pendingJobs())
	assert.False(t, f.mr.Exists(fmt.Sprintf("lock:sku:%d", f.skuA)))
}

func TestPlaceOrders_LockTimeout(t *testing.T) {
	f := newFixture(t)
	f.svc.Locks.(*lock.RedisManager).Wait = 20 * time.Millisecond
	require.NoError(t, f.mr.Set(fmt.Sprintf("lock:sku:%d", f.skuA), "someone-else"))
	ci := f.store.AddCartItem(userID, f.skuA, 1)

	_, err := f.svc.PlaceOrders(context.Background(), userID, []OrderRequest{
		{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}},
	}, "")
	require.ErrorIs(t, err, lock.ErrLockTimeout)
	assert.True(t, f.store.CartItemExists(ci))
}

func TestPlaceOrders_LastUnitRace(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(f.skuA, 1)
	ci1 := f.store.AddCartItem(1, f.skuA, 1)
	ci2 := f.store.AddCartItem(2, f.skuA, 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	start := make(chan struct{})
	for i, c := range []struct{ user, ci int64 }{{1, ci1}, {2, ci2}} {
		wg.Add(1)
		go func(i int, user, ci int64) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.PlaceOrders(context.Background(), user, []OrderRequest{
				{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}},
			}, "")
		}(i, c.user, c.ci)
	}
	close(start)
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		failed++
		assert.True(t, isAny(err, orders.ErrOutOfStock, orders.ErrVersionConflict), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
	assert.Equal(t, 0, f.store.Stock(f.skuA))
}

func TestPlaceOrders_ConcurrentStockNeverNegative(t *testing.T) {
	f := newFixture(t)
	f.store.SetStock(f.skuB, 5)

	const buyers = 12
	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < buyers; i++ {
		user := int64(1000 + i)
		ci := f.store.AddCartItem(user, f.skuB, 1)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.PlaceOrders(context.Background(), user, []OrderRequest{
				{ShopID: shopB, Receiver: receiver(), CartItemIDs: []int64{ci}},
			}, "")
			if err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
				return
			}
			assert.True(t, isAny(err, orders.ErrOutOfStock, orders.ErrVersionConflict), "unexpected error: %v", err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, committed, 5)
	assert.Equal(t, 5-committed, f.store.Stock(f.skuB))
}

func TestPlaceOrders_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ci := f.store.AddCartItem(userID, f.skuA, 1)
	reqs := []OrderRequest{{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}}}

	first, err := f.svc.PlaceOrders(ctx, userID, reqs, "abc")
	require.NoError(t, err)
	again, err := f.svc.PlaceOrders(ctx, userID, reqs, "abc")
	require.NoError(t, err)

	require.Len(t, again, 1)
	assert.Equal(t, first[0].ID, again[0].ID)
	payments, _ := f.store.Counts()
	assert.Equal(t, 1, payments)
	assert.Equal(t, 9, f.store.Stock(f.skuA))
}

func TestPlaceOrders_IdempotencyKeyInFlight(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.mr.Set(fmt.Sprintf("idem:checkout:%d:%s", userID, "abc"), "pending"))
	ci := f.store.AddCartItem(userID, f.skuA, 1)

	_, err := f.svc.PlaceOrders(context.Background(), userID, []OrderRequest{
		{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}},
	}, "abc")
	require.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.True(t, f.store.CartItemExists(ci))
}

func TestPlaceOrders_IdempotencyKeyClearedOnFailure(t *testing.T) {
	f := newFixture(t)
	ci := f.store.AddCartItem(userID, f.skuA, 50)

	_, err := f.svc.PlaceOrders(context.Background(), userID, []OrderRequest{
		{ShopID: shopA, Receiver: receiver(), CartItemIDs: []int64{ci}},
	}, "abc")
	require.ErrorIs(t, err, orders.ErrOutOfStock)
	assert.False(t, f.mr.Exists(fmt.Sprintf("idem:checkout:%d:%s", userID, "abc")))
}

func TestCancelOrder_RestoresStockForWholePayment(t *testing.T) {
	f := newFixture(t)
	created := f.placeTwoShops()

	// later catalog edits do not change what gets restored
	f.store.SetStock(f.skuA, 3)

	o, err := f.svc.CancelOrder(context.Background(), userID, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, created[0].ID, o.ID)
	assert.Equal(t, orders.StatusCancelled, o.Status)
	require.NotNil(t, o.UpdatedByID)
	assert.Equal(t, userID, *o.UpdatedByID)

	assert.Equal(t, orders.StatusCancelled, f.store.OrderStatus(created[1].ID))
	assert.Equal(t, orders.PaymentFailed, f.store.PaymentStatus(o.PaymentID))
	assert.Equal(t, 5, f.store.Stock(f.skuA))
	assert.Equal(t, 5, f.store.Stock(f.skuB))
	assert.Empty(t, f.pendingJobs())
	assert.Equal(t, []string{orders.EventOrdersPlaced, orders.EventOrderCancelled}, f.events.types())
}

func TestCancelOrder_SkipsDeletedSKU(t *testing.T) {
	f := newFixture(t)
	created := f.placeTwoShops()
	f.store.DeleteSKU(f.skuB)

	_, err := f.svc.CancelOrder(context.Background(), userID, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 10, f.store.Stock(f.skuA))
}

func TestCancelOrder_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.placeTwoShops()

	_, err := f.svc.CancelOrder(ctx, 99, created[0].ID)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = f.svc.CancelOrder(ctx, userID, 424242)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = f.svc.CancelOrder(ctx, userID, created[0].ID)
	require.NoError(t, err)
	_, err = f.svc.CancelOrder(ctx, userID, created[0].ID)
	assert.ErrorIs(t, err, orders.ErrCannotCancelOrder)
}

func TestCancelOrder_AfterPaymentSucceeded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.placeTwoShops()
	_, err := f.store.ConfirmPayment(ctx, orders.PaymentTransaction{ID: 1}, created[0].PaymentID)
	require.NoError(t, err)

	_, err = f.svc.CancelOrder(ctx, userID, created[0].ID)
	require.ErrorIs(t, err, orders.ErrCannotCancelOrder)
	assert.Equal(t, orders.StatusPendingPickup, f.store.OrderStatus(created[0].ID))
	assert.Equal(t, 8, f.store.Stock(f.skuA))
}

func TestHandleJob_TimeoutCancelsPendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.placeTwoShops()
	job := scheduler.Job{ID: scheduler.JobID(created[0].PaymentID), Name: scheduler.JobCancelPayment,
		Payload: scheduler.Payload{PaymentID: created[0].PaymentID}}

	require.NoError(t, f.svc.HandleJob(ctx, job))
	assert.Equal(t, orders.PaymentFailed, f.store.PaymentStatus(created[0].PaymentID))
	assert.Equal(t, orders.StatusCancelled, f.store.OrderStatus(created[0].ID))
	assert.Equal(t, orders.StatusCancelled, f.store.OrderStatus(created[1].ID))
	assert.Equal(t, 10, f.store.Stock(f.skuA))

	// firing twice is harmless
	require.NoError(t, f.svc.HandleJob(ctx, job))
	assert.Equal(t, 10, f.store.Stock(f.skuA))
}

func TestHandleJob_NoOpAfterSuccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.placeTwoShops()
	_, err := f.store.ConfirmPayment(ctx, orders.PaymentTransaction{ID: 7}, created[0].PaymentID)
	require.NoError(t, err)

	err = f.svc.HandleJob(ctx, scheduler.Job{Name: scheduler.JobCancelPayment, Payload: scheduler.Payload{PaymentID: created[0].PaymentID}})
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPendingPickup, f.store.OrderStatus(created[0].ID))
	assert.Equal(t, orders.PaymentSuccess, f.store.PaymentStatus(created[0].PaymentID))
	assert.Equal(t, 8, f.store.Stock(f.skuA))
}

func TestHandleJob_UnknownPaymentAndJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	assert.NoError(t, f.svc.HandleJob(ctx, scheduler.Job{Name: scheduler.JobCancelPayment, Payload: scheduler.Payload{PaymentID: 12345}}))
	assert.NoError(t, f.svc.HandleJob(ctx, scheduler.Job{Name: "something-else"}))
}

func TestSweeper_CancelsOnlyStalePayments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	old := f.placeTwoShops()

	f.now = t0.Add(20 * time.Hour)
	fresh := f.placeTwoShops()

	f.now = t0.Add(25 * time.Hour)
	sw := &Sweeper{Service: f.svc, Interval: time.Minute, Age: 24*time.Hour + 5*time.Minute}
	n, err := sw.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, orders.PaymentFailed, f.store.PaymentStatus(old[0].PaymentID))
	assert.Equal(t, orders.PaymentPending, f.store.PaymentStatus(fresh[0].PaymentID))
}

type failingCancelStore struct {
	*ordertest.MemStore
	failID int64
}

func (s *failingCancelStore) CancelPayment(ctx context.Context, paymentID int64) (orders.Cancellation, error) {
	if paymentID == s.failID {
		return orders.Cancellation{}, errors.New("deadlock detected")
	}
	return s.MemStore.CancelPayment(ctx, paymentID)
}

func TestSweeper_FailingPaymentDoesNotBlockBatch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	oldest := f.placeTwoShops()
	f.now = t0.Add(time.Minute)
	next := f.placeTwoShops()

	f.svc.Store = &failingCancelStore{MemStore: f.store, failID: oldest[0].PaymentID}
	f.now = t0.Add(25 * time.Hour)
	sw := &Sweeper{Service: f.svc, Interval: time.Minute, Age: 24*time.Hour + 5*time.Minute}

	n, err := sw.SweepOnce(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deadlock detected")
	assert.Equal(t, 1, n)
	assert.Equal(t, orders.PaymentPending, f.store.PaymentStatus(oldest[0].PaymentID))
	assert.Equal(t, orders.PaymentFailed, f.store.PaymentStatus(next[0].PaymentID))
	assert.Equal(t, 8, f.store.Stock(f.skuA), "only the oldest checkout still holds stock")
}

func TestListAndGetOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created := f.placeTwoShops()
	_, err := f.svc.CancelOrder(ctx, userID, created[0].ID)
	require.NoError(t, err)
	f.placeTwoShops()

	page, err := f.svc.ListOrders(ctx, userID, orders.ListParams{Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, page.TotalItems)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Data, 3)

	page, err = f.svc.ListOrders(ctx, userID, orders.ListParams{Status: orders.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, 2, page.TotalItems)

	o, err := f.svc.GetOrder(ctx, userID, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusCancelled, o.Status)

	_, err = f.svc.GetOrder(ctx, 99, created[1].ID)
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}
