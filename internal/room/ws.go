package room

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"example.com/pegboard/internal/httpapi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 25 * time.Second
	maxMessageSize = 4096
	maxUserIDLen   = 128
)

type Handler struct {
	rooms      *Service
	log        *slog.Logger
	sendBuffer int
	upgrader   websocket.Upgrader
}

func NewHandler(rooms *Service, log *slog.Logger, sendBuffer int) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		rooms:      rooms,
		log:        log,
		sendBuffer: sendBuffer,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{roomID}", h.handleWS)
	r.Post("/api/rooms", h.handleCreateRoom)
	r.Get("/api/rooms/{roomID}", h.handleGetRoom)
}

// handleWS attaches one participant to a room: /ws/{roomID}?id=<user>.
// Without an id the connection gets a fresh uuid.
func (h *Handler) handleWS(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !ValidRoomID(roomID) {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_room_id", "room id must match [a-z0-9_-]{1,64}")
		return
	}

	userID := r.URL.Query().Get("id")
	if userID == "" {
		userID = uuid.NewString()
	}
	if len(userID) > maxUserIDLen {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_user_id", "user id too long")
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := NewConn(userID, h.sendBuffer)
	room, err := h.rooms.Join(r.Context(), roomID, conn)
	if err != nil {
		code, reason := websocket.CloseInternalServerErr, "room unavailable"
		if errors.Is(err, ErrDuplicateConnection) {
			code, reason = websocket.ClosePolicyViolation, "duplicate connection id"
		}
		h.log.Info("join refused", "room", roomID, "connection", userID, "err", err)
		_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = ws.Close()
		return
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writePump(ws, conn)
	}()

	readPump(ws, room, conn.ID)

	room.Disconnect(conn.ID)
	<-writerDone
}

func writePump(ws *websocket.Conn, conn *Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case msg, ok := <-conn.Outbound():
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(ws *websocket.Conn, room *Room, id string) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		typ, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if typ != websocket.TextMessage {
			continue
		}
		room.Deliver(id, data)
	}
}
