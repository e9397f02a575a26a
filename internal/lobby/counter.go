package lobby

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"example.com/pegboard/internal/metrics"
)

// Counter applies presence signals to a Store and fans the resulting tally
// out to subscribers. Tallies handed to subscribers must not be modified.
type Counter struct {
	store Store
	log   *slog.Logger

	// applyMu keeps store updates and broadcasts in the same order.
	applyMu sync.Mutex

	mu   sync.Mutex
	subs map[chan map[string]int]struct{}
}

func NewCounter(store Store, log *slog.Logger) *Counter {
	if log == nil {
		log = slog.Default()
	}
	return &Counter{
		store: store,
		log:   log,
		subs:  make(map[chan map[string]int]struct{}),
	}
}

func (c *Counter) Apply(ctx context.Context, sig Signal) (map[string]int, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}

	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if err := c.store.Adjust(ctx, sig.RoomID, sig.delta()); err != nil {
		return nil, fmt.Errorf("lobby: adjust %s: %w", sig.RoomID, err)
	}
	counts, err := c.store.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("lobby: counts: %w", err)
	}
	metrics.LobbySignals.WithLabelValues(string(sig.Type)).Inc()

	c.log.Debug("presence applied", "type", sig.Type, "room", sig.RoomID, "connection", sig.ConnectionID, "count", counts[sig.RoomID])
	c.broadcast(counts)
	return counts, nil
}

// Reset zeroes the tally and tells subscribers.
func (c *Counter) Reset(ctx context.Context) error {
	c.applyMu.Lock()
	defer c.applyMu.Unlock()

	if err := c.store.Reset(ctx); err != nil {
		return fmt.Errorf("lobby: reset: %w", err)
	}
	c.log.Info("presence tally reset")
	c.broadcast(map[string]int{})
	return nil
}

func (c *Counter) Counts(ctx context.Context) (map[string]int, error) {
	return c.store.Counts(ctx)
}

// Subscribe registers a feed channel. The returned func unsubscribes and
// closes the channel.
func (c *Counter) Subscribe(buffer int) (<-chan map[string]int, func()) {
	ch := make(chan map[string]int, buffer)

	c.mu.Lock()
	c.subs[ch] = struct{}{}
	c.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, ch)
			c.mu.Unlock()
			close(ch)
		})
	}
}

func (c *Counter) broadcast(counts map[string]int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- counts:
		default:
			// a newer tally will follow; slow feeds just miss this one
		}
	}
}
