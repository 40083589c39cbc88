// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Challenge" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's game (creates or reuses session)
//   - POST /daily/turn        → play a turn in today's game
//   - GET  /daily/leaderboard → today's (or a given date's) winners
//
// Every player gets the same parameters and the same coin flip on a given
// day. One play per player per day, enforced by DB + in-memory session.

package httpserver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/pebbles/internal/daily"
	"github.com/robalobadob/pebbles/internal/game"
	"github.com/robalobadob/pebbles/internal/store"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	store    *daily.Store
	salt     string
	sessions map[string]*dailySession // keyed by playerID|date
	mu       sync.Mutex               // guards sessions
}

// dailySession is an in-progress daily game.
type dailySession struct {
	game     *store.Session
	playerID string
	date     string
	start    time.Time
	turns    int  // guarded by game's lock
	finished bool // guarded by game's lock
}

func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{
		srv:      s,
		store:    daily.NewStore(s.db),
		salt:     s.cfg.DailySalt,
		sessions: make(map[string]*dailySession),
	}
	r.Route("/daily", func(r chi.Router) {
		r.Post("/new", dd.handleNew)
		r.Post("/turn", dd.handleTurn)
		r.Get("/leaderboard", dd.handleLeaderboard)
	})
}

// -----------------------------------------------------------------------------
// /daily/new

type dailyNewRes struct {
	GameID string          `json:"gameId,omitempty"`
	Date   string          `json:"date"`
	Played bool            `json:"played"`
	State  *game.GameState `json:"state,omitempty"`
	Event  *game.Event     `json:"event,omitempty"`
}

// handleNew creates or reuses today's session.
// A player with a stored result for today gets Played=true and no game.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	pid := d.srv.owner(w, r).id()
	now := time.Now().UTC()
	date := daily.DateKey(now)

	played, err := d.store.AlreadyPlayed(r.Context(), pid, date)
	if err != nil {
		log.Error().Err(err).Msg("daily already played")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	if played {
		writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true})
		return
	}

	key := pid + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()
	if sess, ok := d.sessions[key]; ok {
		st, err := sess.game.State()
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dailyNewRes{GameID: sess.game.ID, Date: date, State: &st})
		return
	}

	e, ev, err := game.New(daily.Rand(now, d.salt), daily.Params(now, d.salt))
	if err != nil {
		writeGameError(w, err)
		return
	}
	st, _ := e.State()
	sess := &dailySession{
		game:     store.NewSession(e, pid),
		playerID: pid,
		date:     date,
		start:    now,
	}
	d.sessions[key] = sess

	// The program can win before the user has moved.
	if st.Finished() {
		sess.finished = true
		d.record(r, sess, st)
	}
	writeJSON(w, http.StatusCreated, dailyNewRes{GameID: sess.game.ID, Date: date, State: &st, Event: ev})
}

// -----------------------------------------------------------------------------
// /daily/turn

type dailyTurnReq struct {
	GameID  string `json:"gameId"`
	Pebbles uint32 `json:"pebbles"`
}

type dailyTurnRes struct {
	Event game.Event     `json:"event"`
	State game.GameState `json:"state"`
	Turns int            `json:"turns"`
}

// handleTurn plays a turn in today's session and stores the result when the
// game ends.
func (d *dailyServer) handleTurn(w http.ResponseWriter, r *http.Request) {
	var p dailyTurnReq
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil || p.GameID == "" {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	pid := d.srv.owner(w, r).id()
	date := daily.DateKey(time.Now())

	d.mu.Lock()
	sess, ok := d.sessions[pid+"|"+date]
	d.mu.Unlock()
	if !ok || sess.game.ID != p.GameID {
		writeError(w, http.StatusConflict, "no_session")
		return
	}

	var res dailyTurnRes
	var done bool
	err := sess.game.Do(func(e *game.Engine) error {
		if sess.finished {
			return game.ErrGameOver
		}
		ev, err := e.Handle(game.Turn(p.Pebbles))
		if err != nil {
			return err
		}
		sess.turns++
		res.Event, res.Turns = ev, sess.turns
		res.State, _ = e.State()
		if res.State.Finished() {
			sess.finished, done = true, true
		}
		return nil
	})
	if err != nil {
		writeGameError(w, err)
		return
	}
	if done {
		d.record(r, sess, res.State)
	}
	writeJSON(w, http.StatusOK, res)
}

// record stores a finished daily game. Failures are logged; the player keeps
// the in-memory lock for the day either way.
func (d *dailyServer) record(r *http.Request, sess *dailySession, st game.GameState) {
	won := st.Winner != nil && *st.Winner == game.User
	err := d.store.InsertResult(r.Context(), daily.Result{
		UserID:    sess.playerID,
		Date:      sess.date,
		Won:       won,
		Turns:     sess.turns,
		ElapsedMs: int(time.Since(sess.start).Milliseconds()),
	})
	if err != nil {
		log.Warn().Err(err).Str("player", sess.playerID).Msg("insert daily result")
	}
}

// -----------------------------------------------------------------------------
// /daily/leaderboard

type lbRes struct {
	Date string        `json:"date"`
	Top  []daily.LBRow `json:"top"`
}

func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = daily.DateKey(time.Now())
	}
	rows, err := d.store.Leaderboard(r.Context(), date, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, lbRes{Date: date, Top: rows})
}
