// Package room runs one authoritative game session per room id.
//
// Each Room is an actor: a single goroutine owns the state, the secret and
// the connection set, and processes one message at a time. Accepted actions
// are committed before the new state is broadcast to every connection.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"example.com/pegboard/internal/game"
	"example.com/pegboard/internal/lobby"
	"example.com/pegboard/internal/metrics"
)

var (
	ErrRoomClosed          = errors.New("room closed")
	ErrDuplicateConnection = errors.New("connection id already in room")
)

// CodeSource supplies the secret for a new room.
type CodeSource interface {
	Code() game.Code
}

type codeFunc func() game.Code

func (f codeFunc) Code() game.Code { return f() }

type Options struct {
	Presence        lobby.Presence // nil disables presence signals
	Logger          *slog.Logger
	Now             func() time.Time
	Codes           CodeSource
	PresenceTimeout time.Duration
	PresenceQueue   int
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Codes == nil {
		o.Codes = codeFunc(game.GenerateCode)
	}
	if o.PresenceTimeout <= 0 {
		o.PresenceTimeout = 5 * time.Second
	}
	if o.PresenceQueue <= 0 {
		o.PresenceQueue = 256
	}
	return o
}

type msg interface{ isRoomMsg() }

type connectMsg struct {
	conn  *Conn
	reply chan error
}

type disconnectMsg struct{ id string }

type deliverMsg struct {
	id   string
	data []byte
}

type snapshotMsg struct{ reply chan View }

type reapMsg struct {
	idleFor time.Duration
	now     time.Time
	reply   chan bool
}

func (connectMsg) isRoomMsg()    {}
func (disconnectMsg) isRoomMsg() {}
func (deliverMsg) isRoomMsg()    {}
func (snapshotMsg) isRoomMsg()   {}
func (reapMsg) isRoomMsg()       {}

// View is a point-in-time copy of a room.
type View struct {
	State       game.State
	Connections int
	IdleSince   time.Time // zero while anyone is connected
}

type Room struct {
	id   string
	log  *slog.Logger
	now  func() time.Time
	opts Options

	inbox  chan msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// owned by loop
	state     game.State
	secret    game.Code
	conns     map[string]*Conn
	idleSince time.Time
	presence  *presenceQueue
}

func New(id string, opts Options) *Room {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	now := opts.Now()

	r := &Room{
		id:        id,
		log:       opts.Logger.With("room", id),
		now:       opts.Now,
		opts:      opts,
		inbox:     make(chan msg, 64),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     game.NewState(now),
		secret:    opts.Codes.Code(),
		conns:     make(map[string]*Conn),
		idleSince: now,
	}
	if opts.Presence != nil {
		r.presence = newPresenceQueue(opts.Presence, r.log, opts.PresenceTimeout, opts.PresenceQueue)
	}

	go r.loop()
	return r
}

func (r *Room) ID() string { return r.id }

// Done is closed after the room has shut down.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	defer close(r.done)
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return
		case m := <-r.inbox:
			if stop := r.handle(m); stop {
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handle(m msg) bool {
	switch m := m.(type) {
	case connectMsg:
		m.reply <- r.connect(m.conn)
	case disconnectMsg:
		r.disconnect(m.id)
	case deliverMsg:
		r.deliver(m.id, m.data)
	case snapshotMsg:
		m.reply <- r.view()
	case reapMsg:
		idle := len(r.conns) == 0 && m.now.Sub(r.idleSince) >= m.idleFor
		m.reply <- idle
		return idle
	}
	return false
}

func (r *Room) shutdown() {
	for id, c := range r.conns {
		r.presence.enqueue(lobby.Signal{Type: lobby.Disconnect, RoomID: r.id, ConnectionID: id})
		c.close()
	}
	r.conns = nil
	r.presence.close()
	r.log.Debug("room closed")
}

func (r *Room) connect(c *Conn) error {
	if _, ok := r.conns[c.ID]; ok {
		return ErrDuplicateConnection
	}
	r.conns[c.ID] = c
	r.idleSince = time.Time{}
	r.presence.enqueue(lobby.Signal{Type: lobby.Connect, RoomID: r.id, ConnectionID: c.ID})

	if !r.dispatch(game.UserJoined{}, c.ID) {
		// still owe the newcomer a snapshot
		r.sendTo(c)
	}
	r.log.Info("connection joined", "connection", c.ID, "connections", len(r.conns))
	return nil
}

func (r *Room) disconnect(id string) {
	c, ok := r.conns[id]
	if !ok {
		return
	}
	delete(r.conns, id)
	c.close()
	r.presence.enqueue(lobby.Signal{Type: lobby.Disconnect, RoomID: r.id, ConnectionID: id})

	r.dispatch(game.UserLeft{}, id)
	if len(r.conns) == 0 {
		r.idleSince = r.now()
	}
	r.log.Info("connection left", "connection", id, "connections", len(r.conns))
}

func (r *Room) deliver(id string, data []byte) {
	if _, ok := r.conns[id]; !ok {
		r.log.Debug("message from unknown connection", "connection", id)
		return
	}

	action, err := game.ParseAction(data)
	if err != nil {
		metrics.ObserveAction("unknown", metrics.OutcomeMalformed)
		r.log.Warn("malformed action", "connection", id, "err", err)
		return
	}
	r.dispatch(action, id)
}

// dispatch runs the reducer and broadcasts on success.
func (r *Room) dispatch(a game.Action, userID string) bool {
	next, err := game.Apply(r.state, game.AttributedAction{
		Action: a,
		User:   game.User{ID: userID},
		Secret: r.secret,
		At:     r.now(),
	})
	if err != nil {
		outcome := metrics.OutcomeRejected
		if !game.IsRejection(err) {
			outcome = metrics.OutcomeMalformed
		}
		metrics.ObserveAction(a.Type(), outcome)
		r.log.Debug("action rejected", "action", a.Type(), "user", userID, "err", err)
		return false
	}

	r.state = next
	metrics.ObserveAction(a.Type(), metrics.OutcomeAccepted)
	r.broadcast()
	return true
}

func (r *Room) broadcast() {
	b, err := json.Marshal(r.state)
	if err != nil {
		r.log.Error("marshal state", "err", err)
		return
	}
	for id, c := range r.conns {
		if !c.offer(b) {
			metrics.BroadcastDropped.Inc()
			r.log.Warn("send buffer full, snapshot dropped", "connection", id)
		}
	}
}

func (r *Room) sendTo(c *Conn) {
	b, err := json.Marshal(r.state)
	if err != nil {
		r.log.Error("marshal state", "err", err)
		return
	}
	if !c.offer(b) {
		metrics.BroadcastDropped.Inc()
	}
}

func (r *Room) view() View {
	return View{
		State:       r.state,
		Connections: len(r.conns),
		IdleSince:   r.idleSince,
	}
}

// send hands m to the loop unless the room is gone.
func (r *Room) send(ctx context.Context, m msg) error {
	select {
	case r.inbox <- m:
		return nil
	case <-r.done:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Connect adds c to the room, joins its user and broadcasts. The new
// connection receives the state through the broadcast.
func (r *Room) Connect(ctx context.Context, c *Conn) error {
	reply := make(chan error, 1)
	if err := r.send(ctx, connectMsg{conn: c, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-r.done:
		select {
		case err := <-reply:
			return err
		default:
			return ErrRoomClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect removes the connection and closes its outbound channel.
// Unknown ids are ignored.
func (r *Room) Disconnect(id string) {
	_ = r.send(context.Background(), disconnectMsg{id: id})
}

// Deliver hands a raw client frame to the room.
func (r *Room) Deliver(id string, data []byte) {
	_ = r.send(context.Background(), deliverMsg{id: id, data: data})
}

func (r *Room) Snapshot(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	if err := r.send(ctx, snapshotMsg{reply: reply}); err != nil {
		return View{}, err
	}
	select {
	case v := <-reply:
		return v, nil
	case <-r.done:
		return View{}, ErrRoomClosed
	case <-ctx.Done():
		return View{}, ctx.Err()
	}
}

// reapIfIdle closes the room when it has had no connections for idleFor.
// The check and the shutdown happen in the loop, so a racing Connect either
// lands first or sees ErrRoomClosed.
func (r *Room) reapIfIdle(ctx context.Context, idleFor time.Duration, now time.Time) (bool, error) {
	reply := make(chan bool, 1)
	if err := r.send(ctx, reapMsg{idleFor: idleFor, now: now, reply: reply}); err != nil {
		if errors.Is(err, ErrRoomClosed) {
			return true, nil
		}
		return false, err
	}
	select {
	case ok := <-reply:
		if ok {
			<-r.done
		}
		return ok, nil
	case <-r.done:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Close stops the room and waits for it to finish. Remaining connections
// are closed and their disconnect signals flushed.
func (r *Room) Close() {
	r.cancel()
	<-r.done
}
