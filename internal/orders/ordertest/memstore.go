// Package ordertest provides an in-memory order store for service tests.
// It applies the same conditional stock rule as the Postgres repo: a
// decrement only lands if stock suffices and the row version is unchanged.
package ordertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

type MemStore struct {
	mu   sync.Mutex
	seq  int64
	tick int64
	base time.Time

	// Now stamps created_at; tests move it to age payments.
	Now func() time.Time

	// BeforeCreateCheckout runs before a checkout is written, outside the
	// store lock. Tests use it to interleave a concurrent writer.
	BeforeCreateCheckout func()

	products map[int64]orders.Product
	skus     map[int64]orders.SKU
	cart     map[int64]orders.CartItem
	payments map[int64]orders.Payment
	orders   map[int64]orders.Order
	txns     map[int64]orders.PaymentTransaction
}

func NewMemStore() *MemStore {
	return &MemStore{
		base:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:      time.Now,
		products: map[int64]orders.Product{},
		skus:     map[int64]orders.SKU{},
		cart:     map[int64]orders.CartItem{},
		payments: map[int64]orders.Payment{},
		orders:   map[int64]orders.Order{},
		txns:     map[int64]orders.PaymentTransaction{},
	}
}

func (s *MemStore) nextID() int64 {
	s.seq++
	return s.seq
}

// nextVersion mimics clock_timestamp(): strictly increasing per write.
func (s *MemStore) nextVersion() time.Time {
	s.tick++
	return s.base.Add(time.Duration(s.tick) * time.Microsecond)
}

// AddProduct stores p with a fresh id. Callers set PublishedAt.
func (s *MemStore) AddProduct(p orders.Product) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.nextID()
	s.products[p.ID] = p
	return p.ID
}

func (s *MemStore) AddSKU(sku orders.SKU) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sku.ID = s.nextID()
	sku.UpdatedAt = s.nextVersion()
	s.skus[sku.ID] = sku
	return sku.ID
}

func (s *MemStore) AddCartItem(userID, skuID int64, quantity int) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ci := orders.CartItem{ID: s.nextID(), UserID: userID, SKUID: skuID, Quantity: quantity}
	s.cart[ci.ID] = ci
	return ci.ID
}

// SetStock overwrites stock the way an out-of-band writer would, bumping
// the version.
func (s *MemStore) SetStock(skuID int64, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sku := s.skus[skuID]
	sku.Stock = stock
	sku.UpdatedAt = s.nextVersion()
	s.skus[skuID] = sku
}

func (s *MemStore) SetPrice(skuID int64, price int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sku := s.skus[skuID]
	sku.Price = price
	sku.UpdatedAt = s.nextVersion()
	s.skus[skuID] = sku
}

// DeleteSKU removes the SKU and clears it from snapshots, like the
// ON DELETE SET NULL foreign key.
func (s *MemStore) DeleteSKU(skuID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.skus, skuID)
	for id, o := range s.orders {
		for i, it := range o.Items {
			if it.SKUID != nil && *it.SKUID == skuID {
				o.Items[i].SKUID = nil
			}
		}
		s.orders[id] = o
	}
}

func (s *MemStore) Stock(skuID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skus[skuID].Stock
}

func (s *MemStore) CartItemExists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.cart[id]
	return ok
}

func (s *MemStore) PaymentStatus(id int64) orders.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id].Status
}

func (s *MemStore) OrderStatus(id int64) orders.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id].Status
}

// Counts returns the number of payments and orders stored.
func (s *MemStore) Counts() (payments, orderCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments), len(s.orders)
}

func (s *MemStore) LoadCartLines(_ context.Context, userID int64, cartItemIDs []int64) ([]orders.CartLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := map[int64]bool{}
	var lines []orders.CartLine
	for _, id := range cartItemIDs {
		ci, ok := s.cart[id]
		if !ok || ci.UserID != userID || seen[id] {
			continue
		}
		sku, ok := s.skus[ci.SKUID]
		if !ok {
			continue
		}
		p := s.products[sku.ProductID]
		p.Translations = append([]orders.ProductTranslation(nil), p.Translations...)
		seen[id] = true
		lines = append(lines, orders.CartLine{CartItem: ci, SKU: sku, Product: p})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ID < lines[j].ID })
	return lines, nil
}

func (s *MemStore) CreateCheckout(_ context.Context, p orders.CheckoutParams) ([]orders.Order, error) {
	if s.BeforeCreateCheckout != nil {
		s.BeforeCreateCheckout()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range p.Stock {
		sku, ok := s.skus[d.SKUID]
		if !ok || sku.Stock < d.Quantity || !sku.UpdatedAt.Equal(d.Version) {
			return nil, fmt.Errorf("sku %d: %w", d.SKUID, orders.ErrVersionConflict)
		}
	}
	ids := p.CartItemIDs()
	for _, id := range ids {
		if ci, ok := s.cart[id]; !ok || ci.UserID != p.UserID {
			return nil, orders.ErrCartItemNotFound
		}
	}

	for _, d := range p.Stock {
		sku := s.skus[d.SKUID]
		sku.Stock -= d.Quantity
		sku.UpdatedAt = s.nextVersion()
		s.skus[d.SKUID] = sku
	}

	now := s.Now()
	pay := orders.Payment{ID: s.nextID(), Status: orders.PaymentPending, CreatedAt: now, UpdatedAt: now}
	s.payments[pay.ID] = pay

	out := make([]orders.Order, 0, len(p.Groups))
	for _, g := range p.Groups {
		o := orders.Order{
			ID:          s.nextID(),
			UserID:      p.UserID,
			ShopID:      g.ShopID,
			Status:      orders.StatusPendingPayment,
			Receiver:    g.Receiver,
			PaymentID:   pay.ID,
			CreatedByID: p.UserID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		for _, l := range g.Lines {
			snap := orders.SnapshotOf(l)
			snap.ID = s.nextID()
			snap.OrderID = o.ID
			snap.CreatedAt = now
			o.Items = append(o.Items, snap)
		}
		s.orders[o.ID] = o
		out = append(out, cloneOrder(o))
	}
	for _, id := range ids {
		delete(s.cart, id)
	}
	return out, nil
}

func (s *MemStore) ListOrders(_ context.Context, userID int64, p orders.ListParams) (orders.OrderPage, error) {
	p = p.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []orders.Order
	for _, o := range s.orders {
		if o.UserID == userID && (p.Status == "" || o.Status == p.Status) {
			all = append(all, o)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	start := (p.Page - 1) * p.Limit
	var page []orders.Order
	for i := start; i < len(all) && i < start+p.Limit; i++ {
		page = append(page, cloneOrder(all[i]))
	}
	return orders.NewOrderPage(page, len(all), p), nil
}

func (s *MemStore) GetOrder(_ context.Context, userID, orderID int64) (orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *MemStore) GetPayment(_ context.Context, paymentID int64) (orders.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.payments[paymentID]
	if !ok {
		return orders.Payment{}, orders.ErrPaymentNotFound
	}
	p.Orders = s.ordersOf(paymentID)
	return p, nil
}

func (s *MemStore) ordersOf(paymentID int64) []orders.Order {
	var out []orders.Order
	for _, o := range s.orders {
		if o.PaymentID == paymentID {
			out = append(out, cloneOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemStore) PaymentTransactionExists(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.txns[id]
	return ok, nil
}

func (s *MemStore) ConfirmPayment(_ context.Context, pt orders.PaymentTransaction, paymentID int64) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.txns[pt.ID]; ok {
		return nil, fmt.Errorf("transaction %d: %w", pt.ID, orders.ErrPaymentTransactionAlreadyExists)
	}
	p, ok := s.payments[paymentID]
	if !ok {
		return nil, orders.ErrPaymentNotFound
	}
	if p.Status.Terminal() {
		return nil, orders.ErrPaymentAlreadyProcessed
	}

	pt.CreatedAt = s.Now()
	s.txns[pt.ID] = pt
	p.Status = orders.PaymentSuccess
	p.UpdatedAt = s.Now()
	s.payments[paymentID] = p

	var confirmed []orders.Order
	for _, o := range s.ordersOf(paymentID) {
		if !orders.CanTransition(o.Status, orders.StatusPendingPickup) {
			continue
		}
		o.Status = orders.StatusPendingPickup
		o.UpdatedAt = s.Now()
		s.orders[o.ID] = cloneOrder(o)
		confirmed = append(confirmed, o)
	}
	return confirmed, nil
}

func (s *MemStore) CancelOrder(_ context.Context, orderID, userID int64) (orders.Cancellation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return orders.Cancellation{}, orders.ErrOrderNotFound
	}
	if !orders.CanTransition(o.Status, orders.StatusCancelled) || s.payments[o.PaymentID].Status.Terminal() {
		return orders.Cancellation{}, orders.ErrCannotCancelOrder
	}
	return s.compensate(o.PaymentID, &userID), nil
}

func (s *MemStore) CancelPayment(_ context.Context, paymentID int64) (orders.Cancellation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[paymentID]
	if !ok {
		return orders.Cancellation{}, orders.ErrPaymentNotFound
	}
	if p.Status.Terminal() {
		return orders.Cancellation{}, orders.ErrPaymentAlreadyProcessed
	}
	return s.compensate(paymentID, nil), nil
}

func (s *MemStore) compensate(paymentID int64, actor *int64) orders.Cancellation {
	var cancelled []orders.Order
	var items []orders.ProductSKUSnapshot
	for _, o := range s.ordersOf(paymentID) {
		if !orders.CanTransition(o.Status, orders.StatusCancelled) {
			continue
		}
		o.Status = orders.StatusCancelled
		if actor != nil {
			by := *actor
			o.UpdatedByID = &by
		}
		o.UpdatedAt = s.Now()
		s.orders[o.ID] = cloneOrder(o)
		cancelled = append(cancelled, o)
		items = append(items, o.Items...)
	}
	for _, r := range orders.Restorations(items) {
		sku, ok := s.skus[r.SKUID]
		if !ok {
			continue
		}
		sku.Stock += r.Quantity
		sku.UpdatedAt = s.nextVersion()
		s.skus[r.SKUID] = sku
	}
	p := s.payments[paymentID]
	p.Status = orders.PaymentFailed
	p.UpdatedAt = s.Now()
	s.payments[paymentID] = p
	return orders.Cancellation{PaymentID: paymentID, Orders: cancelled}
}

func (s *MemStore) ListStalePayments(_ context.Context, before time.Time, limit int) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stale []orders.Payment
	for _, p := range s.payments {
		if p.Status == orders.PaymentPending && p.CreatedAt.Before(before) {
			stale = append(stale, p)
		}
	}
	sort.Slice(stale, func(i, j int) bool {
		if !stale[i].CreatedAt.Equal(stale[j].CreatedAt) {
			return stale[i].CreatedAt.Before(stale[j].CreatedAt)
		}
		return stale[i].ID < stale[j].ID
	})
	ids := make([]int64, 0, len(stale))
	for i := 0; i < len(stale) && i < limit; i++ {
		ids = append(ids, stale[i].ID)
	}
	return ids, nil
}

func cloneOrder(o orders.Order) orders.Order {
	o.Items = append([]orders.ProductSKUSnapshot(nil), o.Items...)
	return o
}
