package session

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/DoyleJ11/seabattle-client/internal/channel"
	"github.com/DoyleJ11/seabattle-client/internal/engine"
	"github.com/DoyleJ11/seabattle-client/internal/poll"
	"github.com/DoyleJ11/seabattle-client/internal/remote"
	itypes "github.com/DoyleJ11/seabattle-client/internal/types"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
	"go.uber.org/zap"
)

var pushEvents = []string{
	itypes.EvtRoomJoined,
	itypes.EvtPlayerJoined,
	itypes.EvtPlayerLeft,
	itypes.EvtPlacementStarted,
	itypes.EvtPlayerReadyUpdate,
	itypes.EvtGameStarted,
	itypes.EvtMoveResult,
	itypes.EvtGameFinished,
	itypes.EvtPlayerPlacementComplete,
	itypes.EvtBattleStarted,
	itypes.EvtPlacementError,
	itypes.EvtMoveRejected,
	itypes.EvtError,
}

// listen registers the push handlers. They run on the channel's read
// goroutine and only decode and post.
func (s *Session) listen() {
	for _, name := range pushEvents {
		name := name // per-iteration copy; go directive is 1.21 (pre-loopvar semantics)
		s.ch.On(name, func(data json.RawMessage) {
			in, err := decodePush(name, data)
			if err != nil {
				s.log.Warn("dropping push event", zap.String("event", name), zap.Error(err))
				return
			}
			s.post(pushed{in: in})
		})
	}
	s.ch.OnStatus(func(st channel.Status) { s.post(channelChanged{status: st}) })
}

func (s *Session) onPush(in inbound) {
	if s.broken || s.mode != ModeMultiplayer || s.state.Room.Code == "" {
		s.log.Debug("push event outside a room", zap.String("event", in.name))
		return
	}
	if in.note != "" {
		s.commit(engine.Notice{Kind: engine.NoteRoom, Text: in.note})
	}
	if in.ev != nil {
		s.apply(*in.ev)
	}
	if in.fetch {
		s.refresh()
	}
}

func (s *Session) onChannel(st channel.Status) {
	if st == s.chStatus {
		return
	}
	s.chStatus = st
	var notes []engine.Notice
	switch st {
	case channel.StatusConnected:
		// the server forgets room routing on reconnect
		s.announce()
		s.refresh()
	case channel.StatusDisconnected, channel.StatusDegraded:
		if s.state.Pending.Active && s.pushAttack {
			s.checkDelivery()
		}
		if st == channel.StatusDegraded {
			notes = append(notes, engine.Notice{Kind: engine.NoteRoom, Text: "Push channel unavailable, polling only"})
		}
	}
	s.commit(notes...)
}

func (s *Session) target() poll.Target {
	return poll.Target{RoomCode: s.state.Room.Code, PlayerID: s.state.Identity.PlayerID}
}

// refresh fetches the room state once, outside the poll cadence.
func (s *Session) refresh() { s.fetchOnce(0) }

// checkDelivery starts a lost-channel check. Only a fetch issued from here may
// settle it, so an in-flight request that predates the loss is not joined.
func (s *Session) checkDelivery() {
	s.recoverySeq++
	s.recovery = s.recoverySeq
	s.flight.Forget(flightKey(s.target()))
	s.fetchOnce(s.recovery)
}

func (s *Session) fetchOnce(token int) {
	if s.mode != ModeMultiplayer || s.state.Room.Code == "" {
		if token != 0 && token == s.recovery {
			s.settleRecovery()
		}
		return
	}
	target := s.target()
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
		defer cancel()
		res, err := s.fetchState(ctx, target)
		s.post(fetched{target: target, res: res, err: err, recovery: token})
	}()
}

func (s *Session) pollFetch(ctx context.Context, _ poll.Phase, target poll.Target) error {
	res, err := s.fetchState(ctx, target)
	s.post(fetched{target: target, res: res, err: err})
	return err
}

// fetchState collapses concurrent fetches of the same room into one request.
func (s *Session) fetchState(ctx context.Context, target poll.Target) (types.RoomStateResponse, error) {
	v, err, _ := s.flight.Do(flightKey(target), func() (any, error) {
		return s.remote.RoomState(ctx, target.RoomCode, target.PlayerID)
	})
	res, _ := v.(types.RoomStateResponse)
	return res, err
}

func flightKey(t poll.Target) string { return t.RoomCode + "/" + t.PlayerID }

func (s *Session) onFetched(msg fetched) {
	if s.broken || s.mode != ModeMultiplayer || msg.target != s.target() {
		return
	}
	if msg.recovery != 0 && msg.recovery == s.recovery {
		defer s.settleRecovery()
	}
	switch {
	case errors.Is(msg.err, remote.ErrNotFound):
		s.apply(engine.Event{Kind: engine.EvtRoomClosed})
	case msg.err != nil:
		s.log.Debug("state fetch failed", zap.Error(msg.err))
	default:
		ev, err := stateEvent(msg.res)
		if err != nil {
			s.log.Warn("dropping malformed state", zap.String("room", msg.target.RoomCode), zap.Error(err))
			return
		}
		s.apply(ev)
	}
}

// settleRecovery ends a lost-channel check. An attack the fetch did not
// resolve is released so the user can fire again.
func (s *Session) settleRecovery() {
	if s.recovery == 0 {
		return
	}
	s.recovery = 0
	if !s.state.Pending.Active || !s.pushAttack {
		return
	}
	c := s.state.Pending.Cell
	s.state = engine.AbortAttack(s.state)
	s.commit(note(engine.NoteRejected, "Attack at %s was not confirmed, try again", c))
}

func (s *Session) pollPhase() poll.Phase {
	if s.broken || s.mode != ModeMultiplayer || s.state.Room.Code == "" {
		return poll.PhaseNone
	}
	switch p := s.state.Turn.Phase; {
	case p == engine.PhaseIdle:
		return poll.PhaseLobby
	case p == engine.PhasePlacement:
		return poll.PhasePlacement
	case p.InBattle():
		return poll.PhaseBattle
	}
	return poll.PhaseNone
}

func (s *Session) interval(p poll.Phase) time.Duration {
	switch p {
	case poll.PhaseLobby:
		return s.cfg.LobbyInterval
	case poll.PhasePlacement:
		return s.cfg.PlacementInterval
	default:
		return s.cfg.BattleInterval
	}
}

// syncPolling keeps exactly one poller matching the current phase. It only
// talks to the driver when the phase or target changed.
func (s *Session) syncPolling() {
	phase := s.pollPhase()
	target := s.target()
	if phase == poll.PhaseNone {
		target = poll.Target{}
	}
	if phase == s.polling && target == s.pollTarget {
		return
	}
	s.polling, s.pollTarget = phase, target
	if phase == poll.PhaseNone {
		s.poller.Send(poll.Stop{})
		return
	}
	s.poller.Send(poll.Start{Phase: phase, Interval: s.interval(phase), Target: target})
}
