// Package lobby keeps the cross-room tally of open connections.
//
// Room controllers send a Signal for every connect and disconnect; the
// Counter applies it to a Store and pushes the full tally, a map from room id
// to connection count, to every feed subscriber.
package lobby

import (
	"context"
	"errors"
	"fmt"
)

type SignalType string

const (
	Connect    SignalType = "connect"
	Disconnect SignalType = "disconnect"
)

var ErrBadSignal = errors.New("bad presence signal")

type Signal struct {
	Type         SignalType `json:"type"`
	RoomID       string     `json:"roomId"`
	ConnectionID string     `json:"connectionId"`
}

func (s Signal) Validate() error {
	if s.Type != Connect && s.Type != Disconnect {
		return fmt.Errorf("%w: type %q", ErrBadSignal, s.Type)
	}
	if s.RoomID == "" {
		return fmt.Errorf("%w: empty roomId", ErrBadSignal)
	}
	return nil
}

func (s Signal) delta() int {
	if s.Type == Connect {
		return 1
	}
	return -1
}

// Presence delivers signals to a lobby counter, in process or remote.
type Presence interface {
	Send(ctx context.Context, sig Signal) error
}

// Local delivers signals to a Counter in the same process.
type Local struct {
	Counter *Counter
}

func (l Local) Send(ctx context.Context, sig Signal) error {
	_, err := l.Counter.Apply(ctx, sig)
	return err
}
