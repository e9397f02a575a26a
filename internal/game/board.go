package game

import (
	"encoding/json"
	"fmt"
)

const (
	rowTypeUnlocked = "UNLOCKED"
	rowTypeLocked   = "LOCKED"
)

// RowState is either Unlocked or Locked. The unexported method keeps the set closed.
type RowState interface {
	IsLocked() bool
	rowState()
}

// Unlocked is a row still being composed.
type Unlocked struct {
	Cells Row
}

// Locked is a committed guess and its score. It never changes once set.
type Locked struct {
	Code    Code
	Results []PegResult
}

func (Unlocked) IsLocked() bool { return false }
func (Locked) IsLocked() bool   { return true }

func (Unlocked) rowState() {}
func (Locked) rowState()   {}

type unlockedJSON struct {
	Type  string `json:"type"`
	Cells Row    `json:"cells"`
}

type lockedJSON struct {
	Type    string      `json:"type"`
	Code    Code        `json:"code"`
	Results []PegResult `json:"results"`
}

func (u Unlocked) MarshalJSON() ([]byte, error) {
	return json.Marshal(unlockedJSON{Type: rowTypeUnlocked, Cells: u.Cells})
}

func (l Locked) MarshalJSON() ([]byte, error) {
	results := l.Results
	if results == nil {
		results = []PegResult{}
	}
	return json.Marshal(lockedJSON{Type: rowTypeLocked, Code: l.Code, Results: results})
}

type Board [Rows]RowState

func NewBoard() Board {
	var b Board
	for i := range b {
		b[i] = Unlocked{}
	}
	return b
}

func (b *Board) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != Rows {
		return fmt.Errorf("board: want %d rows, got %d", Rows, len(raw))
	}

	var out Board
	for i, r := range raw {
		var head struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(r, &head); err != nil {
			return fmt.Errorf("board row %d: %w", i, err)
		}
		switch head.Type {
		case rowTypeUnlocked:
			var u unlockedJSON
			if err := json.Unmarshal(r, &u); err != nil {
				return fmt.Errorf("board row %d: %w", i, err)
			}
			out[i] = Unlocked{Cells: u.Cells}
		case rowTypeLocked:
			var l lockedJSON
			if err := json.Unmarshal(r, &l); err != nil {
				return fmt.Errorf("board row %d: %w", i, err)
			}
			out[i] = Locked{Code: l.Code, Results: l.Results}
		default:
			return fmt.Errorf("board row %d: unknown row type %q", i, head.Type)
		}
	}
	*b = out
	return nil
}
