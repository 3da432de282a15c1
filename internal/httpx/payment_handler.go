package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/payment"
)

type PaymentReceiver interface {
	Receive(ctx context.Context, w payment.Webhook) error
}

type PaymentHandler struct {
	Receiver PaymentReceiver
	APIKey   string
	Log      *zap.Logger
}

func (h *PaymentHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequirePaymentKey(h.APIKey, h.Log), middleware.Timeout(requestTimeout))
		r.Post("/payment/receiver", h.receive)
	})
}

func (h *PaymentHandler) receive(w http.ResponseWriter, r *http.Request) {
	var body payment.Webhook
	if err := decode(r, &body); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.Receiver.Receive(r.Context(), body); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Payment received successfully"})
}
