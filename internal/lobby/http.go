package lobby

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"example.com/pegboard/internal/httpapi"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPingPeriod = 25 * time.Second
	maxSignalBytes = 4096
)

type Handler struct {
	counter  *Counter
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewHandler(counter *Counter, log *slog.Logger) *Handler {
	return &Handler{
		counter: counter,
		log:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes mounts the tally endpoints. requireToken guards the signal
// endpoint; nil leaves it open.
func (h *Handler) RegisterRoutes(r chi.Router, requireToken func(http.Handler) http.Handler) {
	r.Get("/lobby", h.handleCounts)
	r.Get("/lobby/ws", h.handleFeed)
	if requireToken != nil {
		r.With(requireToken).Post("/lobby/presence", h.handleSignal)
	} else {
		r.Post("/lobby/presence", h.handleSignal)
	}
}

func (h *Handler) handleCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.counter.Counts(r.Context())
	if err != nil {
		h.log.Error("lobby counts", "err", err)
		httpapi.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "failed to load counts")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, counts)
}

func (h *Handler) handleSignal(w http.ResponseWriter, r *http.Request) {
	var sig Signal
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSignalBytes)).Decode(&sig)
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		httpapi.WriteError(w, http.StatusRequestEntityTooLarge, "too_large", "signal body too large")
		return
	}
	if err != nil {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}

	counts, err := h.counter.Apply(r.Context(), sig)
	if errors.Is(err, ErrBadSignal) {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_signal", err.Error())
		return
	}
	if err != nil {
		h.log.Error("lobby apply", "err", err, "room", sig.RoomID)
		httpapi.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "failed to apply signal")
		return
	}

	if claims, ok := httpapi.ClaimsFromContext(r.Context()); ok {
		h.log.Debug("presence signal", "from", claims.Subject, "type", sig.Type, "room", sig.RoomID)
	}
	httpapi.WriteJSON(w, http.StatusOK, counts)
}

// handleFeed streams the tally: once on connect, then after every change.
func (h *Handler) handleFeed(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	feed, unsubscribe := h.counter.Subscribe(8)
	defer unsubscribe()

	counts, err := h.counter.Counts(r.Context())
	if err != nil {
		h.log.Error("lobby counts", "err", err)
		return
	}
	_ = ws.SetWriteDeadline(time.Now().Add(feedWriteWait))
	if err := ws.WriteJSON(counts); err != nil {
		return
	}

	// the feed is one-way; reading only detects the close
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(feedPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case counts, ok := <-feed:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := ws.WriteJSON(counts); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
