package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/snakeladder/internal/board"
	"github.com/robalobadob/snakeladder/internal/config"
	"github.com/robalobadob/snakeladder/internal/game"
	"github.com/robalobadob/snakeladder/internal/history"
	"github.com/robalobadob/snakeladder/internal/store"
	"github.com/robalobadob/snakeladder/internal/stream"
)

type fixture struct {
	srv   *Server
	store store.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := history.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, history.Migrate(context.Background(), db))

	cfg := config.Config{
		ClientOrigin:   "http://localhost:5173",
		RequestTimeout: 5 * time.Second,
		JWTSecret:      "test_secret",
		JWTExpiresDays: 1,
		CookieName:     "snl_token",
	}
	st := store.NewMemoryStore()
	return &fixture{srv: New(cfg, st, db, stream.NewHub(nil)), store: st}
}

func (f *fixture) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	f.srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) newGame(t *testing.T, req newGameReq, cookies ...*http.Cookie) gameView {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/game/new", req, cookies...)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[gameView](t, rec)
}

func intPtr(v int) *int { return &v }
func seedPtr(v int64) *int64 { return &v }

func TestHealthAndBoard(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/board", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	b := decode[boardRes](t, rec)
	assert.Len(t, b.Snakes, 10)
	assert.Len(t, b.Ladders, 9)
	assert.Len(t, b.Squares, board.LastTile)

	rec = f.do(t, http.MethodGet, "/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewGame(t *testing.T) {
	f := newFixture(t)

	v := f.newGame(t, newGameReq{})
	assert.Len(t, v.Players, 2)
	assert.Equal(t, game.InProgress, v.Phase)
	assert.Equal(t, 0, v.Current)

	v = f.newGame(t, newGameReq{Names: []string{"Ada", "Bob", "Cy"}})
	require.Len(t, v.Players, 3)
	assert.Equal(t, "Cy", v.Players[2].Name)

	v = f.newGame(t, newGameReq{Players: 6})
	assert.Len(t, v.Players, 6)
}

func TestNewGame_InvalidPlayerCount(t *testing.T) {
	f := newFixture(t)
	for _, req := range []newGameReq{
		{Players: 7},
		{Players: 1},
		{Players: -2},
		{Names: []string{"solo"}},
		{Names: []string{"a", "b", "c", "d", "e", "f", "g"}},
	} {
		rec := f.do(t, http.MethodPost, "/game/new", req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "%+v", req)
		assert.JSONEq(t, `{"error":"invalid_player_count"}`, rec.Body.String())
	}
}

func TestRoll_FixedDice(t *testing.T) {
	f := newFixture(t)
	v := f.newGame(t, newGameReq{Seed: seedPtr(1)})

	rec := f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID, Dice: intPtr(8)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"invalid_dice"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/game/"+v.GameID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[gameView](t, rec).Turns, "rejected roll must not change state")

	rec = f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID, Dice: intPtr(3)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[rollRes](t, rec)
	assert.Equal(t, game.Moved, res.Outcome.Kind)
	assert.Equal(t, 4, res.Outcome.Landing)
	assert.Equal(t, 14, res.Outcome.Final)
	require.NotNil(t, res.Outcome.Teleport)
	assert.Equal(t, board.Ladder, res.Outcome.Teleport.Kind)
	assert.Equal(t, 1, res.Game.Current)
	assert.Equal(t, 14, res.Game.Players[0].Position)
}

func TestRoll_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/game/roll", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoll_UntilWinThenConflict(t *testing.T) {
	f := newFixture(t)
	v := f.newGame(t, newGameReq{Players: 3, Seed: seedPtr(99)})

	var last rollRes
	for i := 0; i < 10000; i++ {
		rec := f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		last = decode[rollRes](t, rec)
		if last.Game.Phase == game.Finished {
			break
		}
	}
	require.Equal(t, game.Win, last.Outcome.Kind)
	require.NotNil(t, last.Game.Winner)
	assert.Equal(t, board.LastTile, last.Game.Winner.Position)

	rec := f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID, Dice: intPtr(1)})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/game/"+v.GameID+"/turns", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	turns := decode[[]history.TurnRow](t, rec)
	require.Len(t, turns, last.Outcome.Seq)
	assert.Equal(t, string(game.Win), turns[len(turns)-1].Kind)
}

func TestGetGame_ReplaysFromHistory(t *testing.T) {
	f := newFixture(t)
	v := f.newGame(t, newGameReq{Names: []string{"Ada", "Bob"}})

	for _, d := range []int{3, 5, 6, 2} {
		rec := f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID, Dice: intPtr(d)})
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := f.do(t, http.MethodGet, "/game/"+v.GameID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	live := decode[gameView](t, rec)

	require.NoError(t, f.store.Delete(context.Background(), v.GameID))

	rec = f.do(t, http.MethodGet, "/game/"+v.GameID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, live, decode[gameView](t, rec))

	rec = f.do(t, http.MethodGet, "/game/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = f.do(t, http.MethodGet, "/game/unknown/turns", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthFlow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// A guest game is claimed on signup.
	rec = f.do(t, http.MethodPost, "/game/new", newGameReq{})
	require.Equal(t, http.StatusOK, rec.Code)
	anon := cookieNamed(rec, anonCookieName)
	require.NotNil(t, anon)

	rec = f.do(t, http.MethodPost, "/auth/signup", credentials{Username: "ada_l", Password: "analytical"}, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	tok := cookieNamed(rec, "snl_token")
	require.NotNil(t, tok)

	rec = f.do(t, http.MethodPost, "/auth/signup", credentials{Username: "ADA_L", Password: "analytical"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/auth/me", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ada_l", decode[authUser](t, rec).Username)

	f.newGame(t, newGameReq{Players: 4}, tok)

	rec = f.do(t, http.MethodGet, "/games/mine", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]history.GameRow](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/stats/me", nil, tok)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["gamesPlayed"], "only games started while signed in count as played")

	rec = f.do(t, http.MethodPost, "/auth/login", credentials{Username: "ada_l", Password: "wrong-pass"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodPost, "/auth/login", credentials{Username: "ada_l", Password: "analytical"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/signup", credentials{Username: "x", Password: "short"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvents_StreamsRolls(t *testing.T) {
	f := newFixture(t)
	v := f.newGame(t, newGameReq{})

	ts := httptest.NewServer(f.srv.Router())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/" + v.GameID + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.hub.Subscribers(v.GameID) == 1 }, time.Second, 10*time.Millisecond)

	rec := f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID, Dice: intPtr(2)})
	require.Equal(t, http.StatusOK, rec.Code)

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var o game.Outcome
	require.NoError(t, json.Unmarshal(msg, &o))
	assert.Equal(t, 1, o.Seq)
	assert.Equal(t, 3, o.Final)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/game/missing/events", nil)
	assert.Error(t, err)
}

func cookieNamed(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestDaily(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/daily", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[dailyInfoRes](t, rec)
	assert.NotEmpty(t, info.Date)

	rec = f.do(t, http.MethodPost, "/daily/new", newGameReq{Players: 3})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decode[dailyNewRes](t, rec)
	assert.False(t, first.Resumed)
	assert.Equal(t, info.Date, first.Date)
	assert.Len(t, first.Game.Players, 3)
	anon := cookieNamed(rec, anonCookieName)
	require.NotNil(t, anon)

	rec = f.do(t, http.MethodPost, "/daily/new", nil, anon)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[dailyNewRes](t, rec)
	assert.True(t, again.Resumed)
	assert.Equal(t, first.Game.GameID, again.Game.GameID)

	row, err := f.srv.history.Game(context.Background(), first.Game.GameID)
	require.NoError(t, err)
	assert.Equal(t, info.Seed, row.Seed)

	// Another guest gets a separate game on the same seed.
	rec = f.do(t, http.MethodPost, "/daily/new", newGameReq{Players: 3})
	require.Equal(t, http.StatusOK, rec.Code)
	other := decode[dailyNewRes](t, rec)
	assert.NotEqual(t, first.Game.GameID, other.Game.GameID)

	// Same seed and seat count means the same rolls.
	for i := 0; i < 5; i++ {
		a := decode[rollRes](t, f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: first.Game.GameID}))
		b := decode[rollRes](t, f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: other.Game.GameID}))
		assert.Equal(t, a.Outcome.Dice, b.Outcome.Dice)
	}

	rec = f.do(t, http.MethodPost, "/daily/new", newGameReq{Players: 9})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodOptions, "/game/roll", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestDaily_ResumeAfterStoreLoss(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := decode[dailyNewRes](t, rec)
	anon := cookieNamed(rec, anonCookieName)
	require.NotNil(t, anon)

	rec = f.do(t, http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	control := decode[dailyNewRes](t, rec)

	for i := 0; i < 2; i++ {
		rec = f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: mine.Game.GameID})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// e.g. a restart: the live game is gone, history remains
	require.NoError(t, f.store.Delete(context.Background(), mine.Game.GameID))

	rec = f.do(t, http.MethodPost, "/daily/new", nil, anon)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resumed := decode[dailyNewRes](t, rec)
	assert.True(t, resumed.Resumed)
	assert.Equal(t, mine.Game.GameID, resumed.Game.GameID)
	assert.Equal(t, 2, resumed.Game.Turns)

	rec = f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: mine.Game.GameID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	third := decode[rollRes](t, rec)
	assert.Equal(t, 3, third.Outcome.Seq)
	assert.True(t, third.Outcome.Rolled)

	var want rollRes
	for i := 0; i < 3; i++ {
		rec = f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: control.Game.GameID})
		require.Equal(t, http.StatusOK, rec.Code)
		want = decode[rollRes](t, rec)
	}
	assert.Equal(t, want.Outcome.Dice, third.Outcome.Dice, "resumed die stays on the daily stream")
}

func TestRoll_ResumesFromHistory(t *testing.T) {
	f := newFixture(t)
	v := f.newGame(t, newGameReq{Seed: seedPtr(5)})

	rec := f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, f.store.Delete(context.Background(), v.GameID))

	rec = f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: v.GameID, Dice: intPtr(2)})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[rollRes](t, rec)
	assert.Equal(t, 2, res.Outcome.Seq)
	assert.Equal(t, 2, res.Outcome.Player.ID, "second seat plays the second turn")

	_, err := f.store.Get(context.Background(), v.GameID)
	assert.NoError(t, err, "resumed game is held again")
}

func TestDaily_RejectsClientDice(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/daily/new", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	d := decode[dailyNewRes](t, rec)

	rec = f.do(t, http.MethodPost, "/game/roll", rollReq{GameID: d.Game.GameID, Dice: intPtr(6)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"daily_dice_fixed"}`, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/game/"+d.Game.GameID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, decode[gameView](t, rec).Turns)
}
