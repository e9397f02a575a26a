package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const (
	TypeUserJoined     = "UserJoined"
	TypeUserLeft       = "UserLeft"
	TypePegPlaced      = "PegPlaced"
	TypeGuessCommitted = "GuessCommitted"
)

// Action is one of UserJoined, UserLeft, PegPlaced, GuessCommitted.
//
// Every variant carries its own transition in apply, so a new variant does not
// compile until the reducer knows how to handle it.
type Action interface {
	Type() string
	apply(s State, a AttributedAction) (State, string, error)
}

type UserJoined struct{}

type UserLeft struct{}

type PegPlaced struct {
	Row    int   `json:"row"`
	Column int   `json:"column"`
	Color  Color `json:"color"`
}

type GuessCommitted struct {
	Row int `json:"row"`
}

func (UserJoined) Type() string     { return TypeUserJoined }
func (UserLeft) Type() string       { return TypeUserLeft }
func (PegPlaced) Type() string      { return TypePegPlaced }
func (GuessCommitted) Type() string { return TypeGuessCommitted }

// AttributedAction is an action bound to its originator, plus everything the
// reducer needs that is not part of the shared state.
type AttributedAction struct {
	Action Action
	User   User
	Secret Code
	At     time.Time
}

// Envelope is the inbound WS frame: {"type":"...","payload":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type pegPlacedPayload struct {
	Row    *int   `json:"row"`
	Column *int   `json:"column"`
	Color  *Color `json:"color"`
}

type guessCommittedPayload struct {
	Row *int `json:"row"`
}

// ParseAction decodes a client frame. Only PegPlaced and GuessCommitted may
// come from clients; joins and leaves are issued by the room itself.
func ParseAction(raw []byte) (Action, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}

	switch env.Type {
	case TypePegPlaced:
		var p pegPlacedPayload
		if err := decodeStrict(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Row == nil || p.Column == nil || p.Color == nil {
			return nil, fmt.Errorf("%w: PegPlaced needs row, column and color", ErrMalformedAction)
		}
		return PegPlaced{Row: *p.Row, Column: *p.Column, Color: *p.Color}, nil

	case TypeGuessCommitted:
		var p guessCommittedPayload
		if err := decodeStrict(env.Payload, &p); err != nil {
			return nil, err
		}
		if p.Row == nil {
			return nil, fmt.Errorf("%w: GuessCommitted needs row", ErrMalformedAction)
		}
		return GuessCommitted{Row: *p.Row}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}
}

func decodeStrict(payload json.RawMessage, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", ErrMalformedAction)
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	return nil
}
