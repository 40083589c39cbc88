package httpserver

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/pebbles/internal/config"
	"github.com/robalobadob/pebbles/internal/db"
	"github.com/robalobadob/pebbles/internal/game"
	"github.com/robalobadob/pebbles/internal/store"
)

// newTestServer starts a server where the user always moves first and Easy
// always takes one pebble.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	sqlDB, err := db.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.Migrate(sqlDB))

	srv := New(config.Defaults(), store.NewMemoryStore(), sqlDB,
		WithRand(func() game.Rand { return game.NewSequence(0) }))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

type client struct {
	t    *testing.T
	base string
	http *http.Client
}

func newClient(t *testing.T, ts *httptest.Server) *client {
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &client{t: t, base: ts.URL, http: &http.Client{Jar: jar}}
}

// do sends body as JSON and decodes the response into out (if non-nil).
func (c *client) do(method, path string, body, out any) int {
	c.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, rd)
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")
	res, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(c.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

func (c *client) newGame(difficulty string, count, max uint32) newGameRes {
	c.t.Helper()
	var res newGameRes
	code := c.do(http.MethodPost, "/games", gameParamsReq{Difficulty: difficulty, PebblesCount: count, MaxPebblesPerTurn: max}, &res)
	require.Equal(c.t, http.StatusCreated, code)
	require.NotEmpty(c.t, res.GameID)
	return res
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	var out map[string]bool
	assert.Equal(t, http.StatusOK, newClient(t, ts).do(http.MethodGet, "/health", nil, &out))
	assert.True(t, out["ok"])
}

func TestGames_GuestFlow(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)

	g := c.newGame("hard", 10, 3)
	assert.Nil(t, g.Event)
	assert.Equal(t, uint32(10), g.State.PebblesRemaining)
	assert.Equal(t, game.User, g.State.FirstPlayer)

	var res actionRes
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/games/"+g.GameID+"/turn", turnReq{Pebbles: 3}, &res))
	assert.Equal(t, game.CounterTurn(4), res.Event)
	assert.Equal(t, uint32(4), res.State.PebblesRemaining)

	var e errorRes
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/games/"+g.GameID+"/turn", turnReq{Pebbles: 0}, &e))
	assert.Equal(t, "invalid_turn", e.Error)
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/games/"+g.GameID+"/turn", turnReq{Pebbles: 4}, nil))

	var st game.GameState
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/games/"+g.GameID, nil, &st))
	assert.Equal(t, uint32(4), st.PebblesRemaining)

	// 4-3 = 1, Hard takes the last one.
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/games/"+g.GameID+"/turn", turnReq{Pebbles: 3}, &res))
	assert.Equal(t, game.Won(game.Program), res.Event)
	require.NotNil(t, res.State.Winner)
	assert.Equal(t, game.Program, *res.State.Winner)

	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/games/"+g.GameID+"/turn", turnReq{Pebbles: 1}, &e))
	assert.Equal(t, "game_over", e.Error)
}

func TestGames_InvalidParams(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)

	var e errorRes
	code := c.do(http.MethodPost, "/games", gameParamsReq{Difficulty: "easy", PebblesCount: 3, MaxPebblesPerTurn: 5}, &e)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid_params", e.Error)

	code = c.do(http.MethodPost, "/games", gameParamsReq{Difficulty: "brutal", PebblesCount: 3, MaxPebblesPerTurn: 1}, &e)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestGames_OtherPlayersAreHidden(t *testing.T) {
	ts := newTestServer(t)
	g := newClient(t, ts).newGame("easy", 10, 3)

	stranger := newClient(t, ts)
	assert.Equal(t, http.StatusNotFound, stranger.do(http.MethodGet, "/games/"+g.GameID, nil, nil))
	assert.Equal(t, http.StatusNotFound, stranger.do(http.MethodPost, "/games/"+g.GameID+"/give-up", nil, nil))
	assert.Equal(t, http.StatusNotFound, stranger.do(http.MethodGet, "/games/does-not-exist", nil, nil))
}

func TestGames_GiveUpRestartDelete(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)
	g := c.newGame("easy", 10, 3)

	var res actionRes
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/games/"+g.GameID+"/give-up", nil, &res))
	assert.Equal(t, game.Won(game.Program), res.Event)

	var e errorRes
	assert.Equal(t, http.StatusBadRequest,
		c.do(http.MethodPost, "/games/"+g.GameID+"/restart", gameParamsReq{Difficulty: "hard", PebblesCount: 0, MaxPebblesPerTurn: 1}, &e))
	assert.Equal(t, "invalid_params", e.Error)

	require.Equal(t, http.StatusOK,
		c.do(http.MethodPost, "/games/"+g.GameID+"/restart", gameParamsReq{Difficulty: "hard", PebblesCount: 12, MaxPebblesPerTurn: 4}, &res))
	assert.Equal(t, game.CounterTurn(12), res.Event)
	assert.Nil(t, res.State.Winner)
	assert.Equal(t, game.Hard, res.State.Difficulty)

	assert.Equal(t, http.StatusNoContent, c.do(http.MethodDelete, "/games/"+g.GameID, nil, nil))
	assert.Equal(t, http.StatusNotFound, c.do(http.MethodGet, "/games/"+g.GameID, nil, nil))
}

func TestAuth_StatsAndHistory(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)

	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/auth/me", nil, nil))

	// A guest game played before signing up is claimed by the new account.
	guest := c.newGame("easy", 5, 2)

	creds := map[string]string{"username": "pebble_fan", "password": "correct horse"}
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/auth/signup", creds, nil))
	assert.Equal(t, http.StatusConflict, c.do(http.MethodPost, "/auth/signup", creds, nil))

	var me authUser
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/auth/me", nil, &me))
	assert.Equal(t, "pebble_fan", me.Username)

	// The guest game stays playable after login.
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/games/"+guest.GameID, nil, nil))

	// Single pebble: the user's first move wins.
	g := c.newGame("hard", 1, 1)
	var res actionRes
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/games/"+g.GameID+"/turn", turnReq{Pebbles: 1}, &res))
	assert.Equal(t, game.Won(game.User), res.Event)

	var stats map[string]any
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/stats/me", nil, &stats))
	assert.EqualValues(t, 1, stats["gamesPlayed"])
	assert.EqualValues(t, 1, stats["wins"])
	assert.EqualValues(t, 1, stats["streak"])

	var games []db.GameRow
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/games/mine", nil, &games))
	require.Len(t, games, 2)
	byID := map[string]db.GameRow{}
	for _, row := range games {
		byID[row.ID] = row
	}
	assert.Equal(t, db.StatusWon, byID[g.GameID].Status)
	assert.Equal(t, 1, byID[g.GameID].Turns)
	assert.Equal(t, db.StatusPlaying, byID[guest.GameID].Status)

	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/logout", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, c.do(http.MethodGet, "/auth/me", nil, nil))

	assert.Equal(t, http.StatusUnauthorized,
		c.do(http.MethodPost, "/auth/login", map[string]string{"username": "pebble_fan", "password": "wrong password"}, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodPost, "/auth/login", creds, nil))
	assert.Equal(t, http.StatusOK, c.do(http.MethodGet, "/auth/me", nil, nil))
}

func TestDaily_PlayOncePerDay(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)

	var start dailyNewRes
	require.Equal(t, http.StatusCreated, c.do(http.MethodPost, "/daily/new", nil, &start))
	require.NotNil(t, start.State)
	assert.False(t, start.Played)
	assert.Equal(t, game.Hard, start.State.Difficulty)

	// Asking again returns the same session.
	var again dailyNewRes
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/daily/new", nil, &again))
	assert.Equal(t, start.GameID, again.GameID)

	st := *start.State
	for i := 0; !st.Finished() && i < 100; i++ {
		k := st.MaxPebblesPerTurn
		n := st.PebblesRemaining % (k + 1)
		if n == 0 {
			n = 1
		}
		var res dailyTurnRes
		require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/daily/turn", dailyTurnReq{GameID: start.GameID, Pebbles: n}, &res))
		assert.Equal(t, i+1, res.Turns)
		st = res.State
	}
	require.True(t, st.Finished())

	assert.Equal(t, http.StatusConflict,
		c.do(http.MethodPost, "/daily/turn", dailyTurnReq{GameID: start.GameID, Pebbles: 1}, nil))

	var done dailyNewRes
	require.Equal(t, http.StatusOK, c.do(http.MethodPost, "/daily/new", nil, &done))
	assert.True(t, done.Played)
	assert.Empty(t, done.GameID)

	var lb lbRes
	require.Equal(t, http.StatusOK, c.do(http.MethodGet, "/daily/leaderboard", nil, &lb))
	if *st.Winner == game.User {
		assert.Len(t, lb.Top, 1)
	} else {
		assert.Empty(t, lb.Top)
	}
}

func TestDaily_TurnWithoutSession(t *testing.T) {
	ts := newTestServer(t)
	c := newClient(t, ts)
	assert.Equal(t, http.StatusConflict,
		c.do(http.MethodPost, "/daily/turn", dailyTurnReq{GameID: "nope", Pebbles: 1}, nil))
	assert.Equal(t, http.StatusBadRequest, c.do(http.MethodPost, "/daily/turn", nil, nil))
}
