package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/DoyleJ11/seabattle-client/pkg/types"
	"go.uber.org/zap"
)

const TokenHeader = "X-CSRFToken"

var ErrTransport = errors.New("remote: transport failure")
var ErrRateLimited = errors.New("remote: rate limited")
var ErrNotFound = errors.New("remote: not found")
var ErrMalformed = errors.New("remote: malformed response")

// ServerError is any non-2xx answer. It matches ErrNotFound and
// ErrRateLimited through errors.Is.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *ServerError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	}
	return false
}

type ScopeKind string

const (
	ScopeRoom ScopeKind = "room"
	ScopeGame ScopeKind = "game"
)

// Scope selects between the multiplayer room endpoints and the AI game ones.
type Scope struct {
	Kind ScopeKind
	ID   string
}

func RoomScope(code string) Scope { return Scope{Kind: ScopeRoom, ID: code} }
func GameScope(id string) Scope   { return Scope{Kind: ScopeGame, ID: id} }

func (s Scope) path(action string) string {
	if s.Kind == ScopeGame {
		return "/api/game/" + url.PathEscape(s.ID) + "/" + action
	}
	return "/api/multiplayer/room/" + url.PathEscape(s.ID) + "/" + action
}

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger

	mu    sync.Mutex
	token string
}

func NewClient(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: timeout},
		log:  log.Named("remote"),
	}
}

// Token returns the anti-forgery token, fetching it on first use. A failed
// fetch is not cached so the next mutating request tries again.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	var out types.TokenResponse
	if err := c.send(ctx, http.MethodGet, "/api/csrf-token", nil, &out, ""); err != nil {
		return "", err
	}
	c.token = out.CSRFToken
	c.log.Debug("csrf token acquired")
	return c.token, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var token string
	if method != http.MethodGet {
		t, err := c.Token(ctx)
		if err != nil {
			c.log.Warn("csrf token unavailable, sending without it", zap.Error(err))
		}
		token = t
	}
	return c.send(ctx, method, path, in, out, token)
}

func (c *Client) send(ctx context.Context, method, path string, in, out any, token string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set(TokenHeader, token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrTransport, path, err)
	}

	if resp.StatusCode >= 300 {
		var e types.ErrorResponse
		_ = json.Unmarshal(data, &e)
		msg := e.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		c.log.Debug("request rejected",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("error", msg))
		return &ServerError{Status: resp.StatusCode, Message: msg}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformed, path, err)
	}
	return nil
}

func (c *Client) CreateRoom(ctx context.Context, playerID, name string) (types.RoomResponse, error) {
	var out types.RoomResponse
	err := c.do(ctx, http.MethodPost, "/api/multiplayer/room",
		types.CreateRoomRequest{PlayerID: playerID, PlayerName: name}, &out)
	return out, err
}

func (c *Client) JoinRoom(ctx context.Context, code, playerID, name string) (types.RoomResponse, error) {
	var out types.RoomResponse
	err := c.do(ctx, http.MethodPost, RoomScope(code).path("join"),
		types.JoinRoomRequest{RoomCode: code, PlayerID: playerID, PlayerName: name}, &out)
	return out, err
}

func (c *Client) LeaveRoom(ctx context.Context, code, playerID string) (types.LeaveResponse, error) {
	var out types.LeaveResponse
	err := c.do(ctx, http.MethodPost, RoomScope(code).path("leave"),
		types.PlayerRequest{RoomCode: code, PlayerID: playerID}, &out)
	return out, err
}

func (c *Client) RoomState(ctx context.Context, code, playerID string) (types.RoomStateResponse, error) {
	var out types.RoomStateResponse
	path := RoomScope(code).path("state") + "?player_id=" + url.QueryEscape(playerID)
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	if err == nil && out.Room == nil {
		err = fmt.Errorf("%w: state without room", ErrMalformed)
	}
	return out, err
}

func (c *Client) Surrender(ctx context.Context, code, playerID string) (types.SurrenderResponse, error) {
	var out types.SurrenderResponse
	err := c.do(ctx, http.MethodPost, RoomScope(code).path("surrender"),
		types.PlayerRequest{RoomCode: code, PlayerID: playerID}, &out)
	return out, err
}

func (c *Client) CreateGame(ctx context.Context, playerID string) (types.CreateGameResponse, error) {
	var out types.CreateGameResponse
	err := c.do(ctx, http.MethodPost, "/api/game",
		types.CreateGameRequest{PlayerID: playerID, VsAI: true}, &out)
	return out, err
}

func (c *Client) SetReady(ctx context.Context, scope Scope, playerID string) (types.ReadyResponse, error) {
	var out types.ReadyResponse
	err := c.do(ctx, http.MethodPost, scope.path("ready"), scopedPlayer(scope, playerID), &out)
	return out, err
}

func (c *Client) PlaceShip(ctx context.Context, scope Scope, playerID string, positions []types.Position) (types.PlaceShipResponse, error) {
	var out types.PlaceShipResponse
	err := c.do(ctx, http.MethodPost, scope.path("place_ship"),
		types.PlaceShipRequest{PlayerID: playerID, Positions: positions}, &out)
	return out, err
}

func (c *Client) AutoPlace(ctx context.Context, scope Scope, playerID string) (types.AutoPlaceResponse, error) {
	var out types.AutoPlaceResponse
	err := c.do(ctx, http.MethodPost, scope.path("auto_place"), scopedPlayer(scope, playerID), &out)
	return out, err
}

func (c *Client) Attack(ctx context.Context, scope Scope, playerID string, x, y int) (types.AttackResponse, error) {
	req := types.AttackRequest{X: x, Y: y}
	if scope.Kind == ScopeGame {
		req.GameID = scope.ID
	} else {
		req.RoomCode = scope.ID
		req.PlayerID = playerID
	}
	var out types.AttackResponse
	err := c.do(ctx, http.MethodPost, scope.path("attack"), req, &out)
	return out, err
}

func scopedPlayer(scope Scope, playerID string) types.PlayerRequest {
	req := types.PlayerRequest{PlayerID: playerID}
	if scope.Kind == ScopeRoom {
		req.RoomCode = scope.ID
	}
	return req
}
