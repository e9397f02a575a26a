package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"example.com/pegboard/internal/game"
	"example.com/pegboard/internal/lobby"
	"example.com/pegboard/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = game.Code{game.Red, game.Green, game.Yellow, game.Blue}

type fixedCodes game.Code

func (f fixedCodes) Code() game.Code { return game.Code(f) }

type recordingPresence struct {
	mu   sync.Mutex
	sigs []lobby.Signal
}

func (p *recordingPresence) Send(_ context.Context, sig lobby.Signal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sigs = append(p.sigs, sig)
	return nil
}

func (p *recordingPresence) signals() []lobby.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]lobby.Signal(nil), p.sigs...)
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func testOptions(p lobby.Presence, clock *fakeClock) Options {
	return Options{
		Presence: p,
		Logger:   slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)),
		Now:      clock.Now,
		Codes:    fixedCodes(secret),
	}
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// recvRaw returns the next payload after checking it carries only the
// public state keys.
func recvRaw(t *testing.T, c *Conn) []byte {
	t.Helper()
	select {
	case b, ok := <-c.Outbound():
		require.True(t, ok, "outbound closed for %s", c.ID)
		var top map[string]any
		require.NoError(t, json.Unmarshal(b, &top))
		assert.ElementsMatch(t, []string{"users", "board", "log"}, slices.Collect(maps.Keys(top)))
		return b
	case <-time.After(2 * time.Second):
		t.Fatalf("no state for %s", c.ID)
		return nil
	}
}

func recv(t *testing.T, c *Conn) game.State {
	t.Helper()
	var s game.State
	require.NoError(t, json.Unmarshal(recvRaw(t, c), &s))
	return s
}

func peg(row, col int, c game.Color) []byte {
	b, _ := json.Marshal(map[string]any{
		"type":    game.TypePegPlaced,
		"payload": map[string]any{"row": row, "column": col, "color": c},
	})
	return b
}

func commit(row int) []byte {
	b, _ := json.Marshal(map[string]any{
		"type":    game.TypeGuessCommitted,
		"payload": map[string]any{"row": row},
	})
	return b
}

// settle waits until the room has processed everything sent so far.
func settle(t *testing.T, r *Room) View {
	t.Helper()
	v, err := r.Snapshot(context.Background())
	require.NoError(t, err)
	return v
}

func TestRoom_ConnectBroadcastsRoster(t *testing.T) {
	r := New("r1", testOptions(nil, newClock()))
	defer r.Close()

	a := NewConn("alice", 8)
	require.NoError(t, r.Connect(context.Background(), a))
	s := recv(t, a)
	assert.Equal(t, []game.User{{ID: "alice"}}, s.Users)
	assert.Equal(t, "user alice joined", s.Log[0].Message)

	b := NewConn("bob", 8)
	require.NoError(t, r.Connect(context.Background(), b))
	for _, c := range []*Conn{a, b} {
		s := recv(t, c)
		assert.Equal(t, []game.User{{ID: "alice"}, {ID: "bob"}}, s.Users)
	}
}

func TestRoom_DuplicateConnectionRefused(t *testing.T) {
	r := New("r1", testOptions(nil, newClock()))
	defer r.Close()

	require.NoError(t, r.Connect(context.Background(), NewConn("alice", 8)))
	err := r.Connect(context.Background(), NewConn("alice", 8))
	require.ErrorIs(t, err, ErrDuplicateConnection)

	v := settle(t, r)
	assert.Equal(t, 1, v.Connections)
	assert.Len(t, v.State.Users, 1)
}

func TestRoom_PlayPastCrackedCode(t *testing.T) {
	r := New("r1", testOptions(nil, newClock()))
	defer r.Close()

	a := NewConn("alice", 32)
	require.NoError(t, r.Connect(context.Background(), a))
	recv(t, a)

	guess := game.Code{game.Red, game.Yellow, game.Green, game.Blue}
	for col, c := range guess {
		r.Deliver("alice", peg(0, col, c))
		recv(t, a)
	}
	r.Deliver("alice", commit(0))
	s := recv(t, a)

	locked, ok := s.Board[0].(game.Locked)
	require.True(t, ok, "row 0 should be locked, got %T", s.Board[0])
	assert.Equal(t, []game.PegResult{game.Exact, game.Exact, game.ColorMatch, game.ColorMatch}, locked.Results)

	for col, c := range secret {
		r.Deliver("alice", peg(1, col, c))
		recv(t, a)
	}
	r.Deliver("alice", commit(1))
	s = recv(t, a)
	assert.Equal(t, "user alice cracked the code on row 1", s.Log[0].Message)

	// a cracked code does not lock the remaining rows
	r.Deliver("alice", peg(2, 0, game.Red))
	s = recv(t, a)
	assert.Equal(t, game.Unlocked{Cells: game.Row{game.Cell(game.Red)}}, s.Board[2])
}

func TestRoom_SecretStaysHiddenUntilGuessed(t *testing.T) {
	r := New("r1", testOptions(nil, newClock()))
	defer r.Close()

	a := NewConn("alice", 32)
	require.NoError(t, r.Connect(context.Background(), a))
	secretJSON, err := json.Marshal(secret)
	require.NoError(t, err)

	check := func(b []byte) {
		t.Helper()
		assert.NotContains(t, string(b), string(secretJSON))
		var s game.State
		require.NoError(t, json.Unmarshal(b, &s))
		for i, rs := range s.Board {
			if u, ok := rs.(game.Unlocked); ok {
				code, full := u.Cells.Code()
				assert.False(t, full && code == secret, "row %d shows the secret", i)
			}
		}
		for _, e := range s.Log {
			assert.NotContains(t, e.Message, fmt.Sprint(secret))
			assert.NotContains(t, e.Message, "cracked")
		}
	}

	check(recvRaw(t, a))
	wrong := game.Code{game.Blue, game.Yellow, game.Green, game.Red}
	for col, c := range wrong {
		r.Deliver("alice", peg(0, col, c))
		check(recvRaw(t, a))
	}
	r.Deliver("alice", commit(0))
	check(recvRaw(t, a))
}

func TestRoom_BadInputIsNotBroadcast(t *testing.T) {
	r := New("r1", testOptions(nil, newClock()))
	defer r.Close()

	a := NewConn("alice", 8)
	require.NoError(t, r.Connect(context.Background(), a))
	joined := recv(t, a)

	before := testutil.ToFloat64(metrics.Actions.WithLabelValues("unknown", metrics.OutcomeMalformed))

	r.Deliver("alice", []byte(`not json`))
	r.Deliver("alice", []byte(`{"type":"UserJoined","payload":{}}`))
	r.Deliver("alice", commit(0))             // incomplete row
	r.Deliver("alice", peg(0, 9, game.Red))   // column out of range
	r.Deliver("mallory", peg(0, 0, game.Red)) // not connected
	v := settle(t, r)

	assert.Empty(t, a.Outbound(), "nothing should have been broadcast")
	assert.Equal(t, joined.Log, v.State.Log)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.Actions.WithLabelValues("unknown", metrics.OutcomeMalformed)))
}

func TestRoom_DisconnectLeavesAndClosesOutbound(t *testing.T) {
	clock := newClock()
	r := New("r1", testOptions(nil, clock))
	defer r.Close()

	a := NewConn("alice", 8)
	b := NewConn("bob", 8)
	require.NoError(t, r.Connect(context.Background(), a))
	require.NoError(t, r.Connect(context.Background(), b))
	recv(t, a)
	recv(t, a)
	recv(t, b)

	r.Disconnect("bob")
	s := recv(t, a)
	assert.Equal(t, []game.User{{ID: "alice"}}, s.Users)
	assert.Equal(t, "user bob left", s.Log[0].Message)

	_, ok := <-b.Outbound()
	assert.False(t, ok, "bob's outbound should be closed")

	r.Disconnect("bob") // unknown now, ignored
	clock.Advance(time.Minute)
	r.Disconnect("alice")
	v := settle(t, r)
	assert.Zero(t, v.Connections)
	assert.Empty(t, v.State.Users)
	assert.Equal(t, clock.Now(), v.IdleSince)
}

func TestRoom_SlowConnectionDropsSnapshots(t *testing.T) {
	r := New("r1", testOptions(nil, newClock()))
	defer r.Close()

	slow := NewConn("slow", 1)
	fast := NewConn("fast", 16)
	require.NoError(t, r.Connect(context.Background(), slow))
	require.NoError(t, r.Connect(context.Background(), fast))

	before := testutil.ToFloat64(metrics.BroadcastDropped)
	for col := 0; col < game.Columns; col++ {
		r.Deliver("fast", peg(2, col, game.Orange))
	}
	settle(t, r)

	assert.Len(t, slow.Outbound(), 1)
	assert.Len(t, fast.Outbound(), 1+game.Columns)
	// slow's buffer was already full from its own join when fast joined
	assert.Equal(t, before+float64(game.Columns), testutil.ToFloat64(metrics.BroadcastDropped))

	var last game.State
	for len(fast.Outbound()) > 0 {
		last = recv(t, fast)
	}
	assert.Equal(t, game.Unlocked{Cells: game.Row{"orange", "orange", "orange", "orange"}}, last.Board[2])
}

func TestRoom_PresenceSignalsInOrder(t *testing.T) {
	p := &recordingPresence{}
	r := New("r1", testOptions(p, newClock()))

	require.NoError(t, r.Connect(context.Background(), NewConn("a", 8)))
	require.NoError(t, r.Connect(context.Background(), NewConn("b", 8)))
	r.Disconnect("a")
	settle(t, r)
	r.Close()

	want := []lobby.Signal{
		{Type: lobby.Connect, RoomID: "r1", ConnectionID: "a"},
		{Type: lobby.Connect, RoomID: "r1", ConnectionID: "b"},
		{Type: lobby.Disconnect, RoomID: "r1", ConnectionID: "a"},
		{Type: lobby.Disconnect, RoomID: "r1", ConnectionID: "b"},
	}
	assert.Equal(t, want, p.signals())
}

type blockingPresence struct {
	release chan struct{}
}

func (p blockingPresence) Send(ctx context.Context, _ lobby.Signal) error {
	select {
	case <-p.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestRoom_SlowPresenceDoesNotStallRoom(t *testing.T) {
	p := blockingPresence{release: make(chan struct{})}
	opts := testOptions(p, newClock())
	opts.PresenceTimeout = 50 * time.Millisecond
	r := New("r1", opts)

	a := NewConn("alice", 8)
	require.NoError(t, r.Connect(context.Background(), a))
	recv(t, a)
	r.Deliver("alice", peg(0, 0, game.Red))
	s := recv(t, a)
	assert.Equal(t, game.Cell(game.Red), s.Board[0].(game.Unlocked).Cells[0])

	close(p.release)
	r.Close()
}

func TestRoom_ClosedRoomRefusesWork(t *testing.T) {
	r := New("r1", testOptions(nil, newClock()))
	a := NewConn("alice", 8)
	require.NoError(t, r.Connect(context.Background(), a))
	r.Close()

	// drain the join snapshot, then expect the close
	for range a.Outbound() {
	}

	require.ErrorIs(t, r.Connect(context.Background(), NewConn("bob", 8)), ErrRoomClosed)
	_, err := r.Snapshot(context.Background())
	require.ErrorIs(t, err, ErrRoomClosed)

	r.Deliver("alice", peg(0, 0, game.Red)) // must not block
	r.Disconnect("alice")
}
