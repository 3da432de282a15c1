package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/checkout"
	"github.com/ariefcatur/go-shop-checkout/internal/orders"
)

const IdempotencyKeyHeader = "Idempotency-Key"

var (
	ErrInvalidOrderID = apperr.New(apperr.Invalid, "INVALID_ORDER_ID", "orderId must be a positive integer")
	ErrInvalidQuery   = apperr.New(apperr.Invalid, "INVALID_QUERY", "page, limit and status must be valid")
)

type CheckoutService interface {
	PlaceOrders(ctx context.Context, userID int64, reqs []checkout.OrderRequest, idemKey string) ([]orders.Order, error)
	CancelOrder(ctx context.Context, userID, orderID int64) (orders.Order, error)
	ListOrders(ctx context.Context, userID int64, p orders.ListParams) (orders.OrderPage, error)
	GetOrder(ctx context.Context, userID, orderID int64) (orders.Order, error)
}

type OrdersHandler struct {
	Service   CheckoutService
	JWTSecret []byte
	Log       *zap.Logger
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireUser(h.JWTSecret, h.Log), middleware.Timeout(requestTimeout))
		r.Post("/orders", h.placeOrders)
		r.Get("/orders", h.listOrders)
		r.Get("/orders/{orderId}", h.getOrder)
		r.Put("/orders/{orderId}", h.cancelOrder)
	})
}

func (h *OrdersHandler) placeOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	var reqs []checkout.OrderRequest
	if err := decode(r, &reqs); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	created, err := h.Service.PlaceOrders(r.Context(), userID, reqs, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	p, err := listParams(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	page, err := h.Service.ListOrders(r.Context(), userID, p)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Service.GetOrder(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	orderID, err := orderIDParam(r)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	o, err := h.Service.CancelOrder(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func orderIDParam(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidOrderID
	}
	return id, nil
}

func listParams(r *http.Request) (orders.ListParams, error) {
	q := r.URL.Query()
	var p orders.ListParams
	var err error
	if v := q.Get("page"); v != "" {
		if p.Page, err = strconv.Atoi(v); err != nil {
			return p, ErrInvalidQuery
		}
	}
	if v := q.Get("limit"); v != "" {
		if p.Limit, err = strconv.Atoi(v); err != nil {
			return p, ErrInvalidQuery
		}
	}
	if v := q.Get("status"); v != "" {
		p.Status = orders.OrderStatus(v)
		if !p.Status.Valid() {
			return p, ErrInvalidQuery
		}
	}
	return p.Normalize(), nil
}
