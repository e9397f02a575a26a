package room

import (
	"context"
	"log/slog"
	"time"

	"example.com/pegboard/internal/lobby"
	"example.com/pegboard/internal/metrics"
)

// presenceQueue delivers signals in order on its own goroutine so a slow
// lobby never holds up the room.
type presenceQueue struct {
	p       lobby.Presence
	log     *slog.Logger
	timeout time.Duration

	ch   chan lobby.Signal
	done chan struct{}
}

func newPresenceQueue(p lobby.Presence, log *slog.Logger, timeout time.Duration, size int) *presenceQueue {
	q := &presenceQueue{
		p:       p,
		log:     log,
		timeout: timeout,
		ch:      make(chan lobby.Signal, size),
		done:    make(chan struct{}),
	}
	go q.run()
	return q
}

// enqueue must only be called from the room goroutine.
func (q *presenceQueue) enqueue(sig lobby.Signal) {
	if q == nil {
		return
	}
	select {
	case q.ch <- sig:
	default:
		metrics.PresenceFailures.Inc()
		q.log.Warn("presence queue full, signal dropped", "type", sig.Type, "connection", sig.ConnectionID)
	}
}

func (q *presenceQueue) run() {
	defer close(q.done)
	for sig := range q.ch {
		ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
		err := q.p.Send(ctx, sig)
		cancel()
		if err != nil {
			metrics.PresenceFailures.Inc()
			q.log.Warn("presence signal failed", "type", sig.Type, "connection", sig.ConnectionID, "err", err)
		}
	}
}

// close flushes what is queued and waits for the worker.
func (q *presenceQueue) close() {
	if q == nil {
		return
	}
	close(q.ch)
	<-q.done
}
