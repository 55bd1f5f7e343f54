package poll

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrRateLimited is what a FetchFunc returns (or wraps) when the server
// answered 429. Callers with their own sentinel can set Config.RateLimited.
var ErrRateLimited = errors.New("poll: rate limited")

type Phase string

const (
	PhaseNone      Phase = ""
	PhaseLobby     Phase = "lobby"
	PhasePlacement Phase = "placement"
	PhaseBattle    Phase = "battle"
)

type Target struct {
	RoomCode string
	PlayerID string
}

type FetchFunc func(ctx context.Context, phase Phase, target Target) error

type Config struct {
	Fetch FetchFunc
	// MinBackoff is the smallest interval used after a rate-limit response.
	MinBackoff  time.Duration
	MaxInterval time.Duration
	Timeout     time.Duration
	RateLimited func(error) bool
	Logger      *zap.Logger
}

type Msg interface{ isPollMsg() }

// Start replaces whatever poller is running.
type Start struct {
	Phase    Phase
	Interval time.Duration
	Target   Target
}

type Stop struct{}

type Shutdown struct{}

type GetStatus struct {
	Reply chan Status
}

type tick struct{ gen int }

type fetched struct {
	gen int
	err error
}

func (Start) isPollMsg()     {}
func (Stop) isPollMsg()      {}
func (Shutdown) isPollMsg()  {}
func (GetStatus) isPollMsg() {}
func (tick) isPollMsg()      {}
func (fetched) isPollMsg()   {}

type Status struct {
	Phase       Phase
	Interval    time.Duration
	Target      Target
	InFlight    bool
	Fetches     int
	Failures    int
	RateLimited int
}

type Driver struct {
	inbox  chan Msg
	cfg    Config
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	gen      int
	status   Status
	timer    *time.Timer
	inflight bool
}

func NewDriver(parent context.Context, cfg Config) *Driver {
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = 5 * time.Second
	}
	if cfg.MaxInterval < cfg.MinBackoff {
		cfg.MaxInterval = cfg.MinBackoff
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RateLimited == nil {
		cfg.RateLimited = func(err error) bool { return errors.Is(err, ErrRateLimited) }
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	d := &Driver{
		inbox:  make(chan Msg, 64),
		cfg:    cfg,
		log:    cfg.Logger.Named("poll"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *Driver) Inbox() chan<- Msg { return d.inbox }

// Done is closed once the loop has exited.
func (d *Driver) Done() <-chan struct{} { return d.done }

// Send posts m unless the driver is gone.
func (d *Driver) Send(m Msg) {
	select {
	case d.inbox <- m:
	case <-d.ctx.Done():
	}
}

func (d *Driver) Status(ctx context.Context) (Status, error) {
	reply := make(chan Status, 1)
	select {
	case d.inbox <- GetStatus{Reply: reply}:
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-d.ctx.Done():
		return Status{}, d.ctx.Err()
	}
	select {
	case st := <-reply:
		return st, nil
	case <-ctx.Done():
		return Status{}, ctx.Err()
	case <-d.ctx.Done():
		return Status{}, d.ctx.Err()
	}
}

func (d *Driver) loop() {
	defer close(d.done)
	for {
		select {
		case <-d.ctx.Done():
			d.halt()
			return

		case m := <-d.inbox:
			switch msg := m.(type) {
			case Start:
				d.start(msg)

			case Stop:
				if d.status.Phase != PhaseNone {
					d.log.Debug("poller stopped", zap.String("phase", string(d.status.Phase)))
				}
				d.halt()

			case tick:
				if msg.gen != d.gen || d.status.Phase == PhaseNone {
					break
				}
				d.fetch()

			case fetched:
				if msg.gen != d.gen {
					break
				}
				d.inflight = false
				d.record(msg.err)
				d.schedule()

			case GetStatus:
				st := d.status
				st.InFlight = d.inflight
				msg.Reply <- st

			case Shutdown:
				d.halt()
				d.cancel()
				return
			}
		}
	}
}

func (d *Driver) start(msg Start) {
	d.halt()
	if msg.Phase == PhaseNone || msg.Interval <= 0 {
		return
	}
	d.status = Status{Phase: msg.Phase, Interval: msg.Interval, Target: msg.Target}
	d.log.Debug("poller started",
		zap.String("phase", string(msg.Phase)),
		zap.Duration("interval", msg.Interval),
		zap.String("room", msg.Target.RoomCode))
	d.fetch()
}

// halt stops the current poller. Bumping gen orphans any pending tick or fetch.
func (d *Driver) halt() {
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.inflight = false
	d.status = Status{}
}

func (d *Driver) fetch() {
	if d.inflight {
		return
	}
	d.inflight = true
	gen, phase, target := d.gen, d.status.Phase, d.status.Target
	go func() {
		ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
		err := d.cfg.Fetch(ctx, phase, target)
		cancel()
		d.Send(fetched{gen: gen, err: err})
	}()
}

func (d *Driver) record(err error) {
	d.status.Fetches++
	switch {
	case err == nil:
	case d.cfg.RateLimited(err):
		d.status.RateLimited++
		grown := 2 * d.status.Interval
		if grown < d.cfg.MinBackoff {
			grown = d.cfg.MinBackoff
		}
		if grown > d.cfg.MaxInterval {
			grown = d.cfg.MaxInterval
		}
		d.log.Warn("rate limited, slowing down",
			zap.String("phase", string(d.status.Phase)),
			zap.Duration("from", d.status.Interval),
			zap.Duration("to", grown))
		d.status.Interval = grown
	case errors.Is(err, context.Canceled):
	default:
		d.status.Failures++
		d.log.Info("state fetch failed", zap.String("phase", string(d.status.Phase)), zap.Error(err))
	}
}

func (d *Driver) schedule() {
	if d.status.Phase == PhaseNone {
		return
	}
	gen := d.gen
	d.timer = time.AfterFunc(d.status.Interval, func() { d.Send(tick{gen: gen}) })
}
