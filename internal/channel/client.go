package channel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("channel: not connected")
var ErrDegraded = errors.New("channel: reconnect attempts exhausted")
var ErrQueueFull = errors.New("channel: send queue full")

type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDegraded     Status = "degraded"
)

type Handler func(data json.RawMessage)

type StatusFunc func(Status)

type Config struct {
	URL            string
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Heartbeat      time.Duration
	WriteTimeout   time.Duration
	Logger         *zap.Logger
}

type Client struct {
	cfg Config
	log *zap.Logger

	mu        sync.RWMutex
	handlers  map[string][]Handler
	statusFns []StatusFunc
	status    Status
	out       chan []byte
}

func NewClient(cfg Config) *Client {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 30 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 3 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{
		cfg:      cfg,
		log:      cfg.Logger.Named("channel"),
		handlers: make(map[string][]Handler),
		status:   StatusDisconnected,
	}
}

// On registers h for a named inbound event. Handlers run on the read
// goroutine, once per received frame, and must not block.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

func (c *Client) OnStatus(fn StatusFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statusFns = append(c.statusFns, fn)
}

func (c *Client) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Client) Connected() bool { return c.Status() == StatusConnected }

// Send queues a frame for the writer. Delivery is not acknowledged.
func (c *Client) Send(event string, data any) error {
	payload, err := json.Marshal(types.ClientMessage{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.out == nil {
		return ErrNotConnected
	}
	select {
	case c.out <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// Run dials and serves the connection until ctx ends. Unexpected closures
// are retried on an exponential schedule; once the attempts are spent the
// status becomes degraded and Run returns ErrDegraded.
func (c *Client) Run(ctx context.Context) error {
	b := c.newBackOff()
	for {
		c.setStatus(StatusConnecting)
		conn, _, err := websocket.Dial(ctx, c.cfg.URL, nil)
		if err == nil {
			c.log.Info("push channel connected", zap.String("url", c.cfg.URL))
			b.Reset()
			err = c.serve(ctx, conn)
		}
		if ctx.Err() != nil {
			c.setStatus(StatusDisconnected)
			return nil
		}
		c.setStatus(StatusDisconnected)

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			c.log.Warn("push channel degraded, falling back to polling",
				zap.Int("attempts", c.cfg.Attempts), zap.Error(err))
			c.setStatus(StatusDegraded)
			return ErrDegraded
		}
		c.log.Info("push channel lost, reconnecting", zap.Duration("in", wait), zap.Error(err))

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			c.setStatus(StatusDisconnected)
			return nil
		case <-t.C:
		}
	}
}

func (c *Client) newBackOff() backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialBackoff
	exp.MaxInterval = c.cfg.MaxBackoff
	exp.Multiplier = 2
	exp.MaxElapsedTime = 0
	exp.Reset()
	return backoff.WithMaxRetries(exp, uint64(c.cfg.Attempts))
}

func (c *Client) serve(ctx context.Context, conn *websocket.Conn) error {
	connCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	out := make(chan []byte, 32)
	c.mu.Lock()
	c.out = out
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.out = nil
		c.mu.Unlock()
		cancel()
		wg.Wait()
		conn.CloseNow()
	}()
	c.setStatus(StatusConnected)

	wg.Add(2)
	// Writer goroutine
	go func() {
		defer wg.Done()
		for {
			select {
			case <-connCtx.Done():
				return
			case msg := <-out:
				wctx, wcancel := context.WithTimeout(connCtx, c.cfg.WriteTimeout)
				err := conn.Write(wctx, websocket.MessageText, msg)
				wcancel()
				if err != nil {
					c.log.Info("push write failed", zap.Error(err))
					cancel()
					return
				}
			}
		}
	}()

	// Heartbeat; a missing pong is not treated as a failure.
	go func() {
		defer wg.Done()
		t := time.NewTicker(c.cfg.Heartbeat)
		defer t.Stop()
		for {
			select {
			case <-connCtx.Done():
				return
			case <-t.C:
				if err := c.Send(types.CmdPing, nil); err != nil {
					c.log.Debug("heartbeat skipped", zap.Error(err))
				}
			}
		}
	}()

	// Reader loop
	for {
		_, data, err := conn.Read(connCtx)
		if err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return fmt.Errorf("closed by server: %w", err)
			}
			return err
		}
		var msg types.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.Event == "" {
			c.log.Warn("dropping malformed push frame", zap.ByteString("frame", truncate(data, 256)))
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg types.ServerMessage) {
	c.mu.RLock()
	hs := append([]Handler(nil), c.handlers[msg.Event]...)
	c.mu.RUnlock()
	if len(hs) == 0 {
		c.log.Debug("unhandled push event", zap.String("event", msg.Event))
		return
	}
	for _, h := range hs {
		h(msg.Data)
	}
}

func (c *Client) setStatus(s Status) {
	c.mu.Lock()
	if c.status == s {
		c.mu.Unlock()
		return
	}
	c.status = s
	fns := append([]StatusFunc(nil), c.statusFns...)
	c.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
