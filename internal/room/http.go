package room

import (
	"net/http"

	"example.com/pegboard/internal/game"
	"example.com/pegboard/internal/httpapi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type createRoomResponse struct {
	RoomID string `json:"roomId"`
}

type roomResponse struct {
	RoomID      string     `json:"roomId"`
	Connections int        `json:"connections"`
	State       game.State `json:"state"`
}

func (h *Handler) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	if _, err := h.rooms.Open(id); err != nil {
		httpapi.WriteError(w, http.StatusServiceUnavailable, "unavailable", "rooms are shutting down")
		return
	}
	httpapi.WriteJSON(w, http.StatusCreated, createRoomResponse{RoomID: id})
}

func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	if !ValidRoomID(roomID) {
		httpapi.WriteError(w, http.StatusBadRequest, "bad_room_id", "room id must match [a-z0-9_-]{1,64}")
		return
	}

	room, ok := h.rooms.Get(roomID)
	if !ok {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "room not found")
		return
	}
	view, err := room.Snapshot(r.Context())
	if err != nil {
		httpapi.WriteError(w, http.StatusNotFound, "not_found", "room not found")
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, roomResponse{
		RoomID:      roomID,
		Connections: view.Connections,
		State:       view.State,
	})
}
