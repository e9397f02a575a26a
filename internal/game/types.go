package game

import (
	"encoding/json"
	"slices"
)

const (
	Columns    = 4  // pegs per row and per code
	Rows       = 10 // guesses per board
	MaxLogSize = 4
)

type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
	Green  Color = "green"
	Blue   Color = "blue"
	Orange Color = "orange"
	Purple Color = "purple"
)

// Palette is the set of colors a code and a board cell may take.
var Palette = []Color{Red, Yellow, Green, Blue, Orange, Purple}

func (c Color) Valid() bool {
	return slices.Contains(Palette, c)
}

// Code is a full guess or secret.
type Code [Columns]Color

// Cell is one board slot. The zero value is an empty slot and encodes as null.
type Cell Color

func (c Cell) Empty() bool { return c == "" }

func (c Cell) MarshalJSON() ([]byte, error) {
	if c.Empty() {
		return []byte("null"), nil
	}
	return json.Marshal(string(c))
}

func (c *Cell) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*c = Cell(s)
	return nil
}

type Row [Columns]Cell

// Code returns the row as a Code when every cell holds a peg.
func (r Row) Code() (Code, bool) {
	var code Code
	for i, c := range r {
		if c.Empty() {
			return Code{}, false
		}
		code[i] = Color(c)
	}
	return code, true
}

// PegResult is one scoring peg: right color in the right column, or right color elsewhere.
type PegResult string

const (
	Exact      PegResult = "exact"
	ColorMatch PegResult = "color"
)

type User struct {
	ID string `json:"id"`
}

// LogEntry is one line of the room activity log. DT is unix millis.
type LogEntry struct {
	DT      int64  `json:"dt"`
	Message string `json:"message"`
}
