// internal/httpserver/routes_games.go
//
// Regular game endpoints:
//   - POST /games                → start a game (the program may already have moved)
//   - GET  /games/{id}           → current state
//   - POST /games/{id}/turn      → user move plus the program's reply
//   - POST /games/{id}/give-up   → forfeit to the program
//   - POST /games/{id}/restart   → replace the game with fresh parameters
//   - DELETE /games/{id}         → drop the game (an unfinished round counts as abandoned)
//
// Live engines sit in the session store; the games table keeps history and
// feeds user stats on a best-effort basis (failures are logged, not returned).

package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pebbles/internal/db"
	"github.com/robalobadob/pebbles/internal/game"
	"github.com/robalobadob/pebbles/internal/store"
)

func (s *Server) mountGames(r chi.Router) {
	r.Post("/games", s.handleNewGame)
	r.Route("/games/{id}", func(r chi.Router) {
		r.Get("/", s.handleGetGame)
		r.Delete("/", s.handleDeleteGame)
		r.Post("/turn", s.handleTurn)
		r.Post("/give-up", s.handleGiveUp)
		r.Post("/restart", s.handleRestart)
	})
}

// gameParamsReq is the body of POST /games and POST /games/{id}/restart.
type gameParamsReq struct {
	Difficulty        string `json:"difficulty"` // "easy" | "hard"
	PebblesCount      uint32 `json:"pebblesCount"`
	MaxPebblesPerTurn uint32 `json:"maxPebblesPerTurn"`
}

func (p gameParamsReq) params() (game.InitParams, error) {
	d, err := game.ParseDifficulty(p.Difficulty)
	if err != nil {
		return game.InitParams{}, err
	}
	return game.InitParams{Difficulty: d, PebblesCount: p.PebblesCount, MaxPebblesPerTurn: p.MaxPebblesPerTurn}, nil
}

type newGameRes struct {
	GameID string         `json:"gameId"`
	State  game.GameState `json:"state"`
	Event  *game.Event    `json:"event,omitempty"` // set when the program opened
}

type actionRes struct {
	Event game.Event     `json:"event"`
	State game.GameState `json:"state"`
}

type turnReq struct {
	Pebbles uint32 `json:"pebbles"`
}

// handleNewGame creates an engine, stores the session, and records a history row.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req gameParamsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	p, err := req.params()
	if err != nil {
		writeGameError(w, err)
		return
	}
	e, ev, err := game.New(s.newRand(), p)
	if err != nil {
		writeGameError(w, err)
		return
	}

	o := s.owner(w, r)
	sess := store.NewSession(e, o.id())
	rowID := sess.RowID
	if err := s.store.Save(r.Context(), sess); err != nil {
		log.Error().Err(err).Msg("save game")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}

	st, _ := e.State()
	s.recordStart(r, o, rowID, st)
	if ev != nil && st.Finished() {
		s.recordFinish(r, o, rowID, st)
	}
	log.Debug().Str("gameId", sess.ID).Str("first", string(st.FirstPlayer)).Msg("game started")

	writeJSON(w, http.StatusCreated, newGameRes{GameID: sess.ID, State: st, Event: ev})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	st, err := sess.State()
	if err != nil {
		writeGameError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	var rowID string
	_ = sess.Do(func(*game.Engine) error {
		rowID = sess.RowID
		return nil
	})
	if err := s.store.Delete(r.Context(), sess.ID); err != nil {
		log.Error().Err(err).Msg("delete game")
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	if err := db.FinishGame(r.Context(), s.db, s.owner(w, r).Owner, rowID, db.StatusAbandoned); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("abandon game")
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, rowID, err := apply(sess, game.Turn(req.Pebbles))
	if err != nil {
		writeGameError(w, err)
		return
	}
	if err := db.RecordTurn(r.Context(), s.db, s.owner(w, r).Owner, rowID, statusOf(res.State)); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("record turn")
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleGiveUp(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	res, rowID, err := apply(sess, game.GiveUp())
	if err != nil {
		writeGameError(w, err)
		return
	}
	s.recordFinish(r, s.owner(w, r), rowID, res.State)
	writeJSON(w, http.StatusOK, res)
}

// handleRestart replaces the game in place: the game ID stays, the history
// row of the previous round is closed as abandoned and a new one starts.
func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req gameParamsReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	p, err := req.params()
	if err != nil {
		writeGameError(w, err)
		return
	}
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	var res actionRes
	var oldRow, newRow string
	err = sess.Do(func(e *game.Engine) error {
		ev, err := e.Handle(game.Restart(p))
		if err != nil {
			return err
		}
		res.Event = ev
		res.State, _ = e.State()
		oldRow, newRow = sess.RowID, uuid.NewString()
		sess.RowID = newRow
		return nil
	})
	if err != nil {
		writeGameError(w, err)
		return
	}

	o := s.owner(w, r)
	if err := db.FinishGame(r.Context(), s.db, o.Owner, oldRow, db.StatusAbandoned); err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("abandon round")
	}
	s.recordStart(r, o, newRow, res.State)
	s.recordFinish(r, o, newRow, res.State)
	writeJSON(w, http.StatusOK, res)
}

// apply runs one action on the session and captures the resulting state and
// history row under the session lock.
func apply(sess *store.Session, a game.Action) (actionRes, string, error) {
	var res actionRes
	var rowID string
	err := sess.Do(func(e *game.Engine) error {
		ev, err := e.Handle(a)
		if err != nil {
			return err
		}
		res.Event = ev
		res.State, err = e.State()
		rowID = sess.RowID
		return err
	})
	return res, rowID, err
}

// session loads the {id} session and checks it belongs to the caller.
// Sessions of other players are reported as not found.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*store.Session, bool) {
	sess, err := s.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil || !s.owns(r, sess) {
		writeError(w, http.StatusNotFound, "not_found")
		return nil, false
	}
	return sess, true
}

func (s *Server) owns(r *http.Request, sess *store.Session) bool {
	if me := currentUser(r); me != nil && me.ID == sess.OwnerID {
		return true
	}
	if c, err := r.Cookie(anonCookieName); err == nil && c.Value != "" && c.Value == sess.OwnerID {
		return true
	}
	return false
}

// statusOf maps a state onto the games.status column (user's perspective).
func statusOf(st game.GameState) string {
	switch {
	case st.Winner == nil:
		return db.StatusPlaying
	case *st.Winner == game.User:
		return db.StatusWon
	default:
		return db.StatusLost
	}
}

func (s *Server) recordStart(r *http.Request, o owner, rowID string, st game.GameState) {
	row := db.GameRow{
		ID:                rowID,
		Difficulty:        string(st.Difficulty),
		PebblesCount:      int(st.PebblesCount),
		MaxPebblesPerTurn: int(st.MaxPebblesPerTurn),
		FirstPlayer:       string(st.FirstPlayer),
	}
	if err := db.InsertGame(r.Context(), s.db, o.Owner, row); err != nil {
		log.Warn().Err(err).Str("row", rowID).Msg("insert game row")
	}
}

func (s *Server) recordFinish(r *http.Request, o owner, rowID string, st game.GameState) {
	status := statusOf(st)
	if status == db.StatusPlaying {
		return
	}
	if err := db.FinishGame(r.Context(), s.db, o.Owner, rowID, status); err != nil {
		log.Warn().Err(err).Str("row", rowID).Msg("finish game row")
	}
}
