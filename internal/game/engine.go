// internal/game/engine.go
//
// Core game engine for a single Pebbles game.
// Responsibilities:
//   - Create games from validated parameters, including the opening coin flip.
//   - Resolve a user turn together with the program's reply (two plies per call).
//   - Handle forfeit and in-place restart.
//   - Track the winner; reject moves on a finished game.
//
// Notes:
//   - All randomness comes through the Rand port (see random.go).
//   - A call that returns an error leaves the state untouched.
package game

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidParams  = errors.New("invalid game parameters")
	ErrInvalidTurn    = errors.New("invalid number of pebbles")
	ErrGameOver       = errors.New("game finished")
	ErrNotInitialized = errors.New("game state not initialized")
	ErrUnknownAction  = errors.New("unknown action")
)

// Engine owns one GameState and applies actions to it.
// It is not safe for concurrent use; callers serialise access.
type Engine struct {
	rng   Rand
	state *GameState
}

// New validates p, flips the coin for the first player and, when the program
// starts, plays its opening move. The returned event is nil when the user
// moves first.
func New(rng Rand, p InitParams) (*Engine, *Event, error) {
	if rng == nil {
		rng = CryptoRand{}
	}
	e := &Engine{rng: rng}
	ev, err := e.reset(p)
	if err != nil {
		return nil, nil, err
	}
	return e, ev, nil
}

// State returns a snapshot of the current game.
func (e *Engine) State() (GameState, error) {
	if e == nil || e.state == nil {
		return GameState{}, ErrNotInitialized
	}
	s := *e.state
	if s.Winner != nil {
		w := *s.Winner
		s.Winner = &w
	}
	return s, nil
}

// Handle applies one action and returns the resulting event.
func (e *Engine) Handle(a Action) (Event, error) {
	if e == nil || e.state == nil {
		return Event{}, ErrNotInitialized
	}
	switch a.Kind {
	case ActionTurn:
		return e.turn(a.Pebbles)
	case ActionGiveUp:
		return e.giveUp(), nil
	case ActionRestart:
		ev, err := e.reset(a.Params)
		if err != nil {
			return Event{}, err
		}
		if ev == nil {
			return CounterTurn(e.state.PebblesRemaining), nil
		}
		return *ev, nil
	}
	return Event{}, fmt.Errorf("%w: %d", ErrUnknownAction, a.Kind)
}

// Validate checks the creation invariants: 1 <= max <= count.
func (p InitParams) Validate() error {
	switch {
	case p.Difficulty != Easy && p.Difficulty != Hard:
		return fmt.Errorf("%w: unknown difficulty %q", ErrInvalidParams, p.Difficulty)
	case p.PebblesCount == 0:
		return fmt.Errorf("%w: pebbles count must be greater than 0", ErrInvalidParams)
	case p.MaxPebblesPerTurn == 0:
		return fmt.Errorf("%w: max pebbles per turn must be greater than 0", ErrInvalidParams)
	case p.MaxPebblesPerTurn > p.PebblesCount:
		return fmt.Errorf("%w: max pebbles per turn must not exceed pebbles count", ErrInvalidParams)
	}
	return nil
}

// reset replaces the whole state with a fresh game built from p.
func (e *Engine) reset(p InitParams) (*Event, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	st := &GameState{
		PebblesCount:      p.PebblesCount,
		MaxPebblesPerTurn: p.MaxPebblesPerTurn,
		PebblesRemaining:  p.PebblesCount,
		Difficulty:        p.Difficulty,
		FirstPlayer:       coinFlip(e.rng),
	}
	e.state = st
	if st.FirstPlayer == User {
		return nil, nil
	}
	ev := e.programReply()
	return &ev, nil
}

// turn is the two-ply resolution: user move, then the program's answer.
func (e *Engine) turn(n uint32) (Event, error) {
	st := e.state
	if st.Winner != nil {
		return Event{}, ErrGameOver
	}
	if n == 0 || n > st.MaxPebblesPerTurn {
		return Event{}, fmt.Errorf("%w: %d not in [1, %d]", ErrInvalidTurn, n, st.MaxPebblesPerTurn)
	}
	if n > st.PebblesRemaining {
		return Event{}, fmt.Errorf("%w: only %d left", ErrInvalidTurn, st.PebblesRemaining)
	}

	st.PebblesRemaining -= n
	if st.PebblesRemaining == 0 {
		st.declare(User)
		return Won(User), nil
	}
	return e.programReply(), nil
}

// programReply plays one program move and reports the outcome.
func (e *Engine) programReply() Event {
	st := e.state
	st.PebblesRemaining -= ProgramMove(*st, e.rng.Uint32())
	if st.PebblesRemaining == 0 {
		st.declare(Program)
		return Won(Program)
	}
	return CounterTurn(st.PebblesRemaining)
}

// giveUp hands the game to the program, even if it was already decided.
func (e *Engine) giveUp() Event {
	e.state.declare(Program)
	return Won(Program)
}

func (s *GameState) declare(p Player) { s.Winner = &p }

func coinFlip(rng Rand) Player {
	if rng.Uint32()%2 == 0 {
		return User
	}
	return Program
}
