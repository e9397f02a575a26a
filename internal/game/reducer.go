package game

import (
	"errors"
	"fmt"
	"slices"
)

// ErrRejected is wrapped by every precondition failure.
var ErrRejected = errors.New("action rejected")

var (
	ErrNoUser           = fmt.Errorf("%w: action has no user", ErrRejected)
	ErrUserPresent      = fmt.Errorf("%w: user already joined", ErrRejected)
	ErrUserAbsent       = fmt.Errorf("%w: user not in room", ErrRejected)
	ErrRowOutOfRange    = fmt.Errorf("%w: row out of range", ErrRejected)
	ErrColumnOutOfRange = fmt.Errorf("%w: column out of range", ErrRejected)
	ErrUnknownColor     = fmt.Errorf("%w: unknown color", ErrRejected)
	ErrRowLocked        = fmt.Errorf("%w: row is locked", ErrRejected)
	ErrRowIncomplete    = fmt.Errorf("%w: row is not full", ErrRejected)
)

var (
	ErrUnknownAction   = errors.New("unknown action")
	ErrMalformedAction = errors.New("malformed action")
)

// IsRejection reports whether err is a precondition failure, as opposed to bad input.
func IsRejection(err error) bool {
	return errors.Is(err, ErrRejected)
}

// Apply computes the state that follows a. It is pure: on error the input
// state is returned untouched, and s itself is never modified.
func Apply(s State, a AttributedAction) (State, error) {
	if a.Action == nil {
		return s, ErrUnknownAction
	}
	if a.User.ID == "" {
		return s, ErrNoUser
	}

	next, msg, err := a.Action.apply(s, a)
	if err != nil {
		return s, err
	}
	next.Log = addLog(s.Log, a.At, msg)
	return next, nil
}

func (UserJoined) apply(s State, a AttributedAction) (State, string, error) {
	if s.HasUser(a.User.ID) {
		return s, "", ErrUserPresent
	}
	s.Users = append(slices.Clip(s.Users), a.User)
	return s, fmt.Sprintf("user %s joined", a.User.ID), nil
}

func (UserLeft) apply(s State, a AttributedAction) (State, string, error) {
	if !s.HasUser(a.User.ID) {
		return s, "", ErrUserAbsent
	}
	s.Users = slices.DeleteFunc(slices.Clone(s.Users), func(u User) bool {
		return u.ID == a.User.ID
	})
	return s, fmt.Sprintf("user %s left", a.User.ID), nil
}

func (p PegPlaced) apply(s State, a AttributedAction) (State, string, error) {
	if p.Row < 0 || p.Row >= Rows {
		return s, "", ErrRowOutOfRange
	}
	if p.Column < 0 || p.Column >= Columns {
		return s, "", ErrColumnOutOfRange
	}
	if !p.Color.Valid() {
		return s, "", ErrUnknownColor
	}

	row, ok := unlockedRow(s.Board, p.Row)
	if !ok {
		return s, "", ErrRowLocked
	}
	row.Cells[p.Column] = Cell(p.Color)
	// s.Board is an array, so this writes to the copy held by s only.
	s.Board[p.Row] = row

	return s, fmt.Sprintf("user %s placed %s on row %d column %d", a.User.ID, p.Color, p.Row, p.Column), nil
}

func (g GuessCommitted) apply(s State, a AttributedAction) (State, string, error) {
	if g.Row < 0 || g.Row >= Rows {
		return s, "", ErrRowOutOfRange
	}

	row, ok := unlockedRow(s.Board, g.Row)
	if !ok {
		return s, "", ErrRowLocked
	}
	guess, full := row.Cells.Code()
	if !full {
		return s, "", ErrRowIncomplete
	}

	results := Score(a.Secret, guess)
	s.Board[g.Row] = Locked{Code: guess, Results: results}

	if Cracked(results) {
		return s, fmt.Sprintf("user %s cracked the code on row %d", a.User.ID, g.Row), nil
	}
	exact, color := Tally(a.Secret, guess)
	return s, fmt.Sprintf("user %s guessed row %d: %d exact, %d color", a.User.ID, g.Row, exact, color), nil
}

func unlockedRow(b Board, i int) (Unlocked, bool) {
	switch rs := b[i].(type) {
	case nil:
		return Unlocked{}, true
	case Unlocked:
		return rs, true
	default:
		return Unlocked{}, false
	}
}
