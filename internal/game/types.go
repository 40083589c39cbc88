// internal/game/types.go
//
// Core type definitions for the Pebbles game engine.
// Defines:
//   - Difficulty / Player: small string enums (JSON-friendly).
//   - GameState: the single record a game owns for its whole lifetime.
//   - InitParams, Action, Event: the engine's input and output vocabulary.

package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Difficulty selects the opponent strategy.
type Difficulty string

const (
	Easy Difficulty = "easy"
	Hard Difficulty = "hard"
)

// ParseDifficulty accepts "easy"/"hard" in any case. Empty defaults to Easy.
func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(Easy):
		return Easy, nil
	case string(Hard):
		return Hard, nil
	}
	return "", fmt.Errorf("%w: unknown difficulty %q", ErrInvalidParams, s)
}

// Player identifies one of the two sides.
type Player string

const (
	User    Player = "user"
	Program Player = "program"
)

// GameState holds the full state of one game.
// Field names and JSON keys are part of the exposed state schema.
type GameState struct {
	PebblesCount      uint32     `json:"pebbles_count"`        // starting pile, fixed per game
	MaxPebblesPerTurn uint32     `json:"max_pebbles_per_turn"` // inclusive bound on a user move
	PebblesRemaining  uint32     `json:"pebbles_remaining"`    // never increases within a game
	Difficulty        Difficulty `json:"difficulty"`
	FirstPlayer       Player     `json:"first_player"` // coin flip, immutable
	Winner            *Player    `json:"winner"`       // nil while in progress
}

// Finished reports whether the game has a winner.
func (s GameState) Finished() bool { return s.Winner != nil }

// InitParams configures a new game (also used by Restart).
type InitParams struct {
	Difficulty        Difficulty `json:"difficulty"`
	PebblesCount      uint32     `json:"pebblesCount"`
	MaxPebblesPerTurn uint32     `json:"maxPebblesPerTurn"`
}

// ActionKind enumerates the actions Handle accepts.
type ActionKind int

const (
	ActionTurn ActionKind = iota + 1
	ActionGiveUp
	ActionRestart
)

// Action is a tagged union: Pebbles is set for ActionTurn, Params for ActionRestart.
type Action struct {
	Kind    ActionKind
	Pebbles uint32
	Params  InitParams
}

// Turn removes n pebbles on behalf of the user.
func Turn(n uint32) Action { return Action{Kind: ActionTurn, Pebbles: n} }

// GiveUp forfeits the game to the program.
func GiveUp() Action { return Action{Kind: ActionGiveUp} }

// Restart replaces the game with a fresh one built from p.
func Restart(p InitParams) Action { return Action{Kind: ActionRestart, Params: p} }

// EventKind enumerates engine replies.
type EventKind string

const (
	EventCounterTurn EventKind = "counterTurn"
	EventWon         EventKind = "won"
	// EventError is part of the wire protocol but the engine never emits it.
	EventError EventKind = "error"
)

// Event is the single reply produced by an engine call.
type Event struct {
	Kind      EventKind
	Remaining uint32 // EventCounterTurn
	Winner    Player // EventWon
	Message   string // EventError
}

// CounterTurn reports the pile after the program's reply.
func CounterTurn(remaining uint32) Event {
	return Event{Kind: EventCounterTurn, Remaining: remaining}
}

// Won reports the winner of a finished game.
func Won(p Player) Event { return Event{Kind: EventWon, Winner: p} }

func (e Event) String() string {
	switch e.Kind {
	case EventCounterTurn:
		return fmt.Sprintf("CounterTurn(%d)", e.Remaining)
	case EventWon:
		return fmt.Sprintf("Won(%s)", e.Winner)
	case EventError:
		return fmt.Sprintf("Error(%s)", e.Message)
	}
	return "Event(?)"
}

// eventJSON is the wire shape of Event; only the fields for the kind are set.
type eventJSON struct {
	Type      EventKind `json:"type"`
	Remaining *uint32   `json:"remaining,omitempty"`
	Winner    Player    `json:"winner,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// MarshalJSON encodes e as {"type":...} plus the payload of its kind.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{Type: e.Kind}
	switch e.Kind {
	case EventCounterTurn:
		r := e.Remaining
		out.Remaining = &r
	case EventWon:
		out.Winner = e.Winner
	case EventError:
		out.Message = e.Message
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Event) UnmarshalJSON(b []byte) error {
	var in eventJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*e = Event{Kind: in.Type, Winner: in.Winner, Message: in.Message}
	if in.Remaining != nil {
		e.Remaining = *in.Remaining
	}
	return nil
}
