package session

import (
	"context"
	"errors"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/channel"
	"github.com/DoyleJ11/seabattle-client/internal/engine"
	"github.com/DoyleJ11/seabattle-client/internal/poll"
	"github.com/DoyleJ11/seabattle-client/internal/remote"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var ErrInvalidRoomCode = errors.New("room code must be 6 letters or digits")
var ErrInvalidName = errors.New("name must be 3 to 50 characters")
var ErrNoRoom = errors.New("not in a room")
var ErrInRoom = errors.New("already in a room, leave it first")
var ErrBusy = errors.New("another request is still running")
var ErrSessionBroken = errors.New("session is inconsistent, restart required")
var ErrSuperseded = errors.New("room was left before the request finished")
var ErrClosed = errors.New("session closed")

type Mode string

const (
	ModeNone        Mode = ""
	ModeMultiplayer Mode = "multiplayer"
	ModeAI          Mode = "ai"
)

// Remote is the subset of remote.Client the session drives.
type Remote interface {
	CreateRoom(ctx context.Context, playerID, name string) (types.RoomResponse, error)
	JoinRoom(ctx context.Context, code, playerID, name string) (types.RoomResponse, error)
	LeaveRoom(ctx context.Context, code, playerID string) (types.LeaveResponse, error)
	RoomState(ctx context.Context, code, playerID string) (types.RoomStateResponse, error)
	Surrender(ctx context.Context, code, playerID string) (types.SurrenderResponse, error)
	CreateGame(ctx context.Context, playerID string) (types.CreateGameResponse, error)
	SetReady(ctx context.Context, scope remote.Scope, playerID string) (types.ReadyResponse, error)
	PlaceShip(ctx context.Context, scope remote.Scope, playerID string, positions []types.Position) (types.PlaceShipResponse, error)
	AutoPlace(ctx context.Context, scope remote.Scope, playerID string) (types.AutoPlaceResponse, error)
	Attack(ctx context.Context, scope remote.Scope, playerID string, x, y int) (types.AttackResponse, error)
}

// Channel is the push side. channel.Client satisfies it.
type Channel interface {
	On(event string, h channel.Handler)
	OnStatus(fn channel.StatusFunc)
	Send(event string, data any) error
	Status() channel.Status
}

type Config struct {
	Remote Remote
	// Channel may be nil, in which case everything goes over REST and polling.
	Channel Channel

	LobbyInterval     time.Duration
	PlacementInterval time.Duration
	BattleInterval    time.Duration
	PollMinBackoff    time.Duration
	PollMax           time.Duration
	RequestTimeout    time.Duration
	FeedSize          int

	NewID  func() string
	Now    func() time.Time
	Logger *zap.Logger
}

type CommandType string

const (
	CmdCreateRoom      CommandType = "CreateRoom"
	CmdJoinRoom        CommandType = "JoinRoom"
	CmdStartAI         CommandType = "StartAI"
	CmdSetReady        CommandType = "SetReady"
	CmdLeaveRoom       CommandType = "LeaveRoom"
	CmdPlaceShip       CommandType = "PlaceShip"
	CmdAutoPlace       CommandType = "AutoPlace"
	CmdFinishPlacement CommandType = "FinishPlacement"
	CmdAttack          CommandType = "Attack"
	CmdSurrender       CommandType = "Surrender"
	CmdRestart         CommandType = "Restart"
)

type Command struct {
	Type       CommandType
	Name       string
	Code       string
	Cell       engine.Cell
	Size       int
	Horizontal bool
}

type Result struct {
	RoomCode string
	GameID   string
	Room     engine.RoomState
	Err      error
}

type Msg interface{ isSessionMsg() }

type FromUser struct {
	Cmd   Command
	Reply chan Result
}

type Subscribe struct {
	ClientID string
	Outbox   chan View
}

type Unsubscribe struct{ ClientID string }

type Shutdown struct{}

type GetState struct {
	Reply chan View
}

// completed carries a finished network call back onto the loop. apply runs
// on the loop goroutine.
type completed struct {
	epoch int
	apply func() Result
	reply chan Result
}

type pushed struct{ in inbound }

type fetched struct {
	target poll.Target
	res    types.RoomStateResponse
	err    error
	// recovery is the token of the lost-channel check this fetch decides
	recovery int
}

type channelChanged struct{ status channel.Status }

func (FromUser) isSessionMsg()       {}
func (Subscribe) isSessionMsg()      {}
func (Unsubscribe) isSessionMsg()    {}
func (Shutdown) isSessionMsg()       {}
func (GetState) isSessionMsg()       {}
func (completed) isSessionMsg()      {}
func (pushed) isSessionMsg()         {}
func (fetched) isSessionMsg()        {}
func (channelChanged) isSessionMsg() {}

// View is what renderers get after every mutation.
type View struct {
	Version int
	Mode    Mode
	GameID  string
	State   engine.State
	Channel channel.Status
	Busy    bool
	Broken  bool
}

type Session struct {
	inbox  chan Msg
	cfg    Config
	log    *zap.Logger
	remote Remote
	ch     Channel
	poller *poll.Driver
	flight singleflight.Group
	feed   *Feed
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	state    engine.State
	mode     Mode
	gameID   string
	chStatus channel.Status
	broken   bool
	busy     bool
	// epoch changes on leave and restart so late completions are dropped
	epoch   int
	version int
	clients map[string]chan View

	// pushAttack marks the pending attack as sent over the push channel.
	// recovery is nonzero while a fetch issued after a channel loss decides
	// whether it went through; recoverySeq hands out its tokens.
	pushAttack  bool
	recovery    int
	recoverySeq int

	polling    poll.Phase
	pollTarget poll.Target
}

func New(parent context.Context, cfg Config) *Session {
	if cfg.LobbyInterval <= 0 {
		cfg.LobbyInterval = 2 * time.Second
	}
	if cfg.PlacementInterval <= 0 {
		cfg.PlacementInterval = 2 * time.Second
	}
	if cfg.BattleInterval <= 0 {
		cfg.BattleInterval = time.Second
	}
	if cfg.PollMinBackoff <= 0 {
		cfg.PollMinBackoff = 5 * time.Second
	}
	if cfg.PollMax <= 0 {
		cfg.PollMax = 30 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 8 * time.Second
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	ch := cfg.Channel
	if ch == nil {
		ch = offline{}
	}

	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		inbox:    make(chan Msg, 64),
		cfg:      cfg,
		log:      cfg.Logger.Named("session"),
		remote:   cfg.Remote,
		ch:       ch,
		feed:     NewFeed(cfg.FeedSize, cfg.Now),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		state:    engine.NewState(engine.Identity{PlayerID: cfg.NewID()}),
		chStatus: ch.Status(),
		clients:  make(map[string]chan View),
	}
	s.poller = poll.NewDriver(ctx, poll.Config{
		Fetch:       s.pollFetch,
		MinBackoff:  cfg.PollMinBackoff,
		MaxInterval: cfg.PollMax,
		Timeout:     cfg.RequestTimeout,
		RateLimited: func(err error) bool { return errors.Is(err, remote.ErrRateLimited) },
		Logger:      cfg.Logger,
	})
	s.listen()

	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case FromUser:
				s.handle(msg)

			case completed:
				if msg.epoch != s.epoch {
					if msg.reply != nil {
						msg.reply <- Result{Err: ErrSuperseded}
					}
					break
				}
				r := msg.apply()
				if msg.reply != nil {
					msg.reply <- r
				}

			case pushed:
				s.onPush(msg.in)

			case fetched:
				s.onFetched(msg)

			case channelChanged:
				s.onChannel(msg.status)

			case Subscribe:
				// Register and hand over the current view right away
				s.clients[msg.ClientID] = msg.Outbox
				select {
				case msg.Outbox <- s.view():
				default:
				}

			case Unsubscribe:
				if ch, ok := s.clients[msg.ClientID]; ok {
					close(ch)
					delete(s.clients, msg.ClientID)
				}

			case GetState:
				msg.Reply <- s.view()

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.cancel()
}

func (s *Session) view() View {
	return View{
		Version: s.version,
		Mode:    s.mode,
		GameID:  s.gameID,
		State:   s.state,
		Channel: s.chStatus,
		Busy:    s.busy,
		Broken:  s.broken,
	}
}

func (s *Session) broadcast() {
	v := s.view()
	for id, ch := range s.clients {
		select {
		case ch <- v:
		default:
			// Slow subscriber, drop it
			close(ch)
			delete(s.clients, id)
		}
	}
}

// commit records notes in the feed and publishes the new state.
func (s *Session) commit(notes ...engine.Notice) {
	for _, n := range notes {
		s.feed.Add(string(n.Kind), n.Text)
	}
	if !s.state.Pending.Active {
		s.pushAttack = false
	}
	if s.state.Room.Code == "" {
		s.mode = ModeNone
		s.gameID = ""
	}
	s.version++
	s.syncPolling()
	s.broadcast()
}

// apply runs ev through the engine. A role mismatch breaks the session.
func (s *Session) apply(ev engine.Event) bool {
	next, notes, err := engine.Apply(s.state, ev)
	switch {
	case errors.Is(err, engine.ErrIdentityMismatch):
		s.breakSession(err)
		return false
	case err != nil:
		s.log.Warn("event discarded", zap.String("kind", string(ev.Kind)), zap.Error(err))
		return false
	}
	s.state = next
	s.commit(notes...)
	return true
}

func (s *Session) breakSession(err error) {
	s.log.Error("session broken", zap.Error(err), zap.String("player", s.state.Identity.PlayerID))
	s.broken = true
	s.busy = false
	s.state = engine.AbortAttack(s.state)
	s.commit(engine.Notice{Kind: engine.NoteRoom, Text: "Session is inconsistent (" + err.Error() + "), restart required"})
}

func (s *Session) post(m Msg) {
	select {
	case s.inbox <- m:
	case <-s.ctx.Done():
	}
}

// async runs call off the loop and posts its continuation back.
func (s *Session) async(reply chan Result, call func(ctx context.Context) func() Result) {
	epoch := s.epoch
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
		defer cancel()
		apply := call(ctx)
		s.post(completed{epoch: epoch, apply: apply, reply: reply})
	}()
}

// Public API. Every call is serialized through the inbox.

func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the loop has exited.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Feed() *Feed { return s.feed }

func (s *Session) Close() { s.post(Shutdown{}) }

func (s *Session) Do(ctx context.Context, cmd Command) Result {
	reply := make(chan Result, 1)
	select {
	case s.inbox <- FromUser{Cmd: cmd, Reply: reply}:
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case <-s.done:
		return Result{Err: ErrClosed}
	}
	select {
	case r := <-reply:
		return r
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case <-s.done:
		return Result{Err: ErrClosed}
	}
}

func (s *Session) View(ctx context.Context) (View, error) {
	reply := make(chan View, 1)
	select {
	case s.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrClosed
	}
	select {
	case v := <-reply:
		return v, nil
	case <-ctx.Done():
		return View{}, ctx.Err()
	case <-s.done:
		return View{}, ErrClosed
	}
}

func (s *Session) Subscribe(id string, outbox chan View) { s.post(Subscribe{ClientID: id, Outbox: outbox}) }

func (s *Session) Unsubscribe(id string) { s.post(Unsubscribe{ClientID: id}) }

func (s *Session) CreateRoom(ctx context.Context, name string) (string, error) {
	r := s.Do(ctx, Command{Type: CmdCreateRoom, Name: name})
	return r.RoomCode, r.Err
}

func (s *Session) JoinRoom(ctx context.Context, code, name string) (engine.RoomState, error) {
	r := s.Do(ctx, Command{Type: CmdJoinRoom, Code: code, Name: name})
	return r.Room, r.Err
}

func (s *Session) StartAIGame(ctx context.Context, name string) (string, error) {
	r := s.Do(ctx, Command{Type: CmdStartAI, Name: name})
	return r.GameID, r.Err
}

func (s *Session) SetReady(ctx context.Context) error {
	return s.Do(ctx, Command{Type: CmdSetReady}).Err
}

func (s *Session) LeaveRoom(ctx context.Context) error {
	return s.Do(ctx, Command{Type: CmdLeaveRoom}).Err
}

func (s *Session) PlaceShip(ctx context.Context, start engine.Cell, size int, horizontal bool) error {
	return s.Do(ctx, Command{Type: CmdPlaceShip, Cell: start, Size: size, Horizontal: horizontal}).Err
}

func (s *Session) AutoPlace(ctx context.Context) error {
	return s.Do(ctx, Command{Type: CmdAutoPlace}).Err
}

func (s *Session) FinishPlacement(ctx context.Context) error {
	return s.Do(ctx, Command{Type: CmdFinishPlacement}).Err
}

// SubmitAttack returns once the attack is accepted locally and sent. The
// outcome arrives later through the feed and the view.
func (s *Session) SubmitAttack(ctx context.Context, c engine.Cell) error {
	return s.Do(ctx, Command{Type: CmdAttack, Cell: c}).Err
}

func (s *Session) Surrender(ctx context.Context) error {
	return s.Do(ctx, Command{Type: CmdSurrender}).Err
}

func (s *Session) Restart(ctx context.Context) error {
	return s.Do(ctx, Command{Type: CmdRestart}).Err
}

type offline struct{}

func (offline) On(string, channel.Handler)     {}
func (offline) OnStatus(channel.StatusFunc)    {}
func (offline) Send(string, any) error         { return channel.ErrNotConnected }
func (offline) Status() channel.Status         { return channel.StatusDisconnected }
