package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/engine"
	"github.com/DoyleJ11/seabattle-client/internal/session"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeSource struct {
	view session.View
	err  error
	feed *session.Feed
}

func (f *fakeSource) View(context.Context) (session.View, error) { return f.view, f.err }
func (f *fakeSource) Feed() *session.Feed                        { return f.feed }
func (f *fakeSource) Subscribe(string, chan session.View)        {}
func (f *fakeSource) Unsubscribe(string)                         {}

func newSource() *fakeSource {
	st := engine.NewState(engine.Identity{PlayerID: "me", DisplayName: "Ada"})
	return &fakeSource{
		view: session.View{Version: 3, State: st},
		feed: session.NewFeed(10, func() time.Time { return time.Unix(0, 0).UTC() }),
	}
}

func do(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestSnapshot(t *testing.T) {
	src := newSource()
	h := SetupRoutes(src, zaptest.NewLogger(t))

	rec := do(t, h, "/snapshot")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var snap types.Snapshot
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&snap))
	assert.Equal(t, 3, snap.Version)
	assert.Equal(t, "me", snap.PlayerID)
	assert.Equal(t, "idle", snap.Phase)
	assert.Len(t, snap.OwnBoard.Rows, engine.BoardSize)

	src.err = session.ErrClosed
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, "/snapshot").Code)
}

func TestLog(t *testing.T) {
	src := newSource()
	src.feed.Add("room", "Joined room ABC123 as player1")
	src.feed.Add("turn", "Your turn")
	h := SetupRoutes(src, zaptest.NewLogger(t))

	var res types.LogResponse
	rec := do(t, h, "/log")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res.Entries, 2)
	assert.Equal(t, 2, res.Next)

	rec = do(t, h, "/log?since=1")
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "Your turn", res.Entries[0].Text)

	rec = do(t, h, "/log?since=2")
	assert.JSONEq(t, `{"entries":[],"next":2}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, do(t, h, "/log?since=x").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "/log?since=-1").Code)
}

func TestHealthz(t *testing.T) {
	h := SetupRoutes(newSource(), zaptest.NewLogger(t))
	assert.Equal(t, http.StatusOK, do(t, h, "/healthz").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, httpPost(h, "/healthz"))
}

func httpPost(h http.Handler, target string) int {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, nil))
	return rec.Code
}
