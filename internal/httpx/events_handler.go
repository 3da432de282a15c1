package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-shop-checkout/internal/notify"
)

type SubscribeFunc func(ctx context.Context, userID int64) (*notify.Subscription, error)

// EventsHandler streams the caller's payment notifications as
// server-sent events.
type EventsHandler struct {
	Subscribe SubscribeFunc
	JWTSecret []byte
	Log       *zap.Logger
	KeepAlive time.Duration
}

func (h *EventsHandler) Register(r chi.Router) {
	r.With(RequireUser(h.JWTSecret, h.Log)).Get("/events", h.stream)
}

func (h *EventsHandler) stream(w http.ResponseWriter, r *http.Request) {
	userID, _ := UserID(r.Context())
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := h.Subscribe(r.Context(), userID)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepAlive := h.KeepAlive
	if keepAlive <= 0 {
		keepAlive = 25 * time.Second
	}
	t := time.NewTicker(keepAlive)
	defer t.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-t.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.C:
			if !ok {
				return
			}
			b, err := json.Marshal(ev)
			if err != nil {
				h.Log.Error("encode event", zap.Error(err))
				continue
			}
			if _, err := fmt.Fprintf(w, "event: payment\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
