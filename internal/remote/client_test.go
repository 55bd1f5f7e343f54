package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DoyleJ11/seabattle-client/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeServer struct {
	tokenFetches atomic.Int32
	lastToken    atomic.Value
	lastBody     atomic.Value
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (f *fakeServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenFetches.Add(1)
		writeJSON(w, http.StatusOK, types.TokenResponse{CSRFToken: "tok-1"})
	})
	r.Post("/api/multiplayer/room", func(w http.ResponseWriter, r *http.Request) {
		f.lastToken.Store(r.Header.Get(TokenHeader))
		var req types.CreateRoomRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		writeJSON(w, http.StatusCreated, types.RoomResponse{
			Success: true, RoomCode: "ABC123", PlayerID: req.PlayerID,
			Room: &types.Room{RoomCode: "ABC123", Player1ID: req.PlayerID, Status: "waiting"},
		})
	})
	r.Post("/api/multiplayer/room/{code}/join", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, types.ErrorResponse{Error: "room not found"})
	})
	r.Get("/api/multiplayer/room/{code}/state", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("player_id") == "spammer" {
			writeJSON(w, http.StatusTooManyRequests, types.ErrorResponse{Error: "slow down"})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"room":{"room_code":"ABC123","player1_id":"p1","player2_id":null,"status":"active","player1_ready":true,"player2_ready":true,"has_game":true},
			"game":{"game_id":"multi_ABC123","status":"active","current_turn":"player2","winner":null,"player_role":"player1",
			"my_board_hits":[{"x":3,"y":4,"type":"hit"}],"opponent_board_hits":[{"x":0,"y":0,"type":"miss"}]}}`))
	})
	r.Post("/api/game/{id}/attack", func(w http.ResponseWriter, r *http.Request) {
		f.lastToken.Store(r.Header.Get(TokenHeader))
		var req types.AttackRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.lastBody.Store(req)
		writeJSON(w, http.StatusOK, types.AttackResponse{
			Result: "miss", X: req.X, Y: req.Y,
			AIShots: []types.AIShot{{X: 1, Y: 1, Result: "hit"}, {X: 1, Y: 2, Result: "miss"}},
		})
	})
	r.Post("/api/multiplayer/room/{code}/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`not json`))
	})
	return r
}

func newTestClient(t *testing.T) (*Client, *fakeServer) {
	t.Helper()
	f := &fakeServer{}
	srv := httptest.NewServer(f.routes())
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", 2*time.Second, zaptest.NewLogger(t)), f
}

func TestClient_TokenFetchedOnceAndAttached(t *testing.T) {
	c, f := newTestClient(t)
	ctx := context.Background()

	res, err := c.CreateRoom(ctx, "p1", "alice")
	require.NoError(t, err)
	assert.Equal(t, "ABC123", res.RoomCode)
	assert.Equal(t, "p1", res.Room.Player1ID)
	assert.Equal(t, "tok-1", f.lastToken.Load())

	_, err = c.Attack(ctx, GameScope("g1"), "p1", 4, 5)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", f.lastToken.Load())
	assert.EqualValues(t, 1, f.tokenFetches.Load())
}

func TestClient_GameAttackBody(t *testing.T) {
	c, f := newTestClient(t)

	res, err := c.Attack(context.Background(), GameScope("g1"), "p1", 4, 5)
	require.NoError(t, err)
	assert.Equal(t, types.AttackRequest{GameID: "g1", X: 4, Y: 5}, f.lastBody.Load())
	assert.Equal(t, "miss", res.Result)
	assert.Len(t, res.AIShots, 2)
}

func TestClient_RoomStateDecodes(t *testing.T) {
	c, f := newTestClient(t)

	st, err := c.RoomState(context.Background(), "ABC123", "p1")
	require.NoError(t, err)
	require.NotNil(t, st.Game)
	assert.Equal(t, "", st.Room.Player2ID)
	assert.Equal(t, "player2", st.Game.CurrentTurn)
	assert.Equal(t, []types.BoardMark{{X: 3, Y: 4, Type: "hit"}}, st.Game.MyBoardHits)
	assert.EqualValues(t, 0, f.tokenFetches.Load(), "reads carry no token")
}

func TestClient_ErrorMapping(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	_, err := c.JoinRoom(ctx, "ZZZ999", "p2", "bob")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	var se *ServerError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "room not found", se.Message)

	_, err = c.RoomState(ctx, "ABC123", "spammer")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.NotErrorIs(t, err, ErrNotFound)

	_, err = c.SetReady(ctx, RoomScope("ABC123"), "p1")
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.Equal(t, http.StatusText(http.StatusBadRequest), se.Message)
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := NewClient(srv.URL, time.Second, zaptest.NewLogger(t))

	_, err := c.RoomState(context.Background(), "ABC123", "p1")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestScopePaths(t *testing.T) {
	assert.Equal(t, "/api/multiplayer/room/ABC123/attack", RoomScope("ABC123").path("attack"))
	assert.Equal(t, "/api/game/g1/auto_place", GameScope("g1").path("auto_place"))
	assert.Equal(t, types.PlayerRequest{PlayerID: "p1"}, scopedPlayer(GameScope("g1"), "p1"))
	assert.Equal(t, types.PlayerRequest{RoomCode: "ABC123", PlayerID: "p1"}, scopedPlayer(RoomScope("ABC123"), "p1"))
}
