package game

import "time"

// State is the session snapshot broadcast to every connection of a room.
// It never carries the secret.
type State struct {
	Users []User     `json:"users"`
	Board Board      `json:"board"`
	Log   []LogEntry `json:"log"`
}

// NewState returns the state of a freshly activated room.
func NewState(now time.Time) State {
	return State{
		Users: []User{},
		Board: NewBoard(),
		Log:   addLog(nil, now, "game created"),
	}
}

// HasUser reports whether id is on the roster.
func (s State) HasUser(id string) bool {
	for _, u := range s.Users {
		if u.ID == id {
			return true
		}
	}
	return false
}

// addLog returns a new log with message first, evicting the oldest entries past MaxLogSize.
func addLog(log []LogEntry, at time.Time, message string) []LogEntry {
	n := len(log) + 1
	if n > MaxLogSize {
		n = MaxLogSize
	}
	out := make([]LogEntry, 0, n)
	out = append(out, LogEntry{DT: at.UnixMilli(), Message: message})
	for _, e := range log {
		if len(out) == n {
			break
		}
		out = append(out, e)
	}
	return out
}
