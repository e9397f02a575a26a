package room

import (
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"example.com/pegboard/internal/metrics"
)

var roomIDRe = regexp.MustCompile(`^[a-z0-9_-]{1,64}$`)

// ValidRoomID reports whether id may address a room.
func ValidRoomID(id string) bool {
	return roomIDRe.MatchString(id)
}

// Service owns every live room, creating them on first use and reaping
// them once they have been empty for the idle TTL.
type Service struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool

	opts    Options
	idleTTL time.Duration
	log     *slog.Logger
}

func NewService(opts Options, idleTTL time.Duration) *Service {
	opts = opts.withDefaults()
	return &Service{
		rooms:   make(map[string]*Room),
		opts:    opts,
		idleTTL: idleTTL,
		log:     opts.Logger,
	}
}

// Open returns the room for roomID, creating it if needed.
func (s *Service) Open(roomID string) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrRoomClosed
	}
	if r, ok := s.rooms[roomID]; ok {
		return r, nil
	}

	r := New(roomID, s.opts)
	s.rooms[roomID] = r
	metrics.RoomsActive.Inc()
	s.log.Info("room created", "room", roomID)
	return r, nil
}

func (s *Service) Get(roomID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[roomID]
	return r, ok
}

// Join connects c to roomID. A room reaped between lookup and connect is
// replaced by a fresh one.
func (s *Service) Join(ctx context.Context, roomID string, c *Conn) (*Room, error) {
	for attempt := 0; ; attempt++ {
		r, err := s.Open(roomID)
		if err != nil {
			return nil, err
		}

		err = r.Connect(ctx, c)
		if errors.Is(err, ErrRoomClosed) && attempt == 0 {
			s.remove(roomID, r)
			continue
		}
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// Len reports the number of live rooms.
func (s *Service) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rooms)
}

// remove drops r if it is still the registered room for id.
func (s *Service) remove(id string, r *Room) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.rooms[id]; ok && cur == r {
		delete(s.rooms, id)
		metrics.RoomsActive.Dec()
	}
}

func (s *Service) list() map[string]*Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]*Room, len(s.rooms))
	for id, r := range s.rooms {
		out[id] = r
	}
	return out
}

// Cleanup closes rooms that have been empty for longer than the idle TTL
// and returns how many were removed.
func (s *Service) Cleanup(ctx context.Context, now time.Time) int {
	removed := 0
	for id, r := range s.list() {
		reaped, err := r.reapIfIdle(ctx, s.idleTTL, now)
		if err != nil {
			s.log.Warn("room cleanup", "room", id, "err", err)
			continue
		}
		if reaped {
			s.remove(id, r)
			removed++
		}
	}
	if removed > 0 {
		s.log.Info("idle rooms removed", "count", removed)
	}
	return removed
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (s *Service) RunCleanup(ctx context.Context, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Cleanup(ctx, s.opts.Now())
		}
	}
}

// Close shuts down every room. Later joins fail with ErrRoomClosed.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	rooms := s.rooms
	s.rooms = make(map[string]*Room)
	s.mu.Unlock()

	for _, r := range rooms {
		r.Close()
		metrics.RoomsActive.Dec()
	}
}
