package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/seabattle-client/internal/channel"
	"github.com/DoyleJ11/seabattle-client/internal/engine"
	"github.com/DoyleJ11/seabattle-client/internal/remote"
	itypes "github.com/DoyleJ11/seabattle-client/internal/types"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
	"go.uber.org/zap"
)

func (s *Session) handle(msg FromUser) {
	if s.broken && msg.Cmd.Type != CmdRestart {
		msg.Reply <- Result{Err: ErrSessionBroken}
		return
	}
	switch msg.Cmd.Type {
	case CmdCreateRoom:
		s.createRoom(msg)
	case CmdJoinRoom:
		s.joinRoom(msg)
	case CmdStartAI:
		s.startAI(msg)
	case CmdSetReady:
		s.setReady(msg)
	case CmdLeaveRoom:
		s.leaveRoom(msg)
	case CmdPlaceShip:
		s.placeShip(msg)
	case CmdAutoPlace:
		s.autoPlace(msg)
	case CmdFinishPlacement:
		s.finishPlacement(msg)
	case CmdAttack:
		s.submitAttack(msg)
	case CmdSurrender:
		s.surrender(msg)
	case CmdRestart:
		s.restart(msg)
	default:
		msg.Reply <- Result{Err: fmt.Errorf("unknown command %q", msg.Cmd.Type)}
	}
}

func fail(err error) Result { return Result{Err: err} }

func note(kind engine.NoticeKind, format string, args ...any) engine.Notice {
	return engine.Notice{Kind: kind, Text: fmt.Sprintf(format, args...)}
}

func (s *Session) checkLobby() error {
	if s.busy {
		return ErrBusy
	}
	if s.mode != ModeNone {
		return ErrInRoom
	}
	return nil
}

func (s *Session) checkRoom() error {
	if s.mode == ModeNone {
		return ErrNoRoom
	}
	if s.busy {
		return ErrBusy
	}
	return nil
}

func (s *Session) scope() remote.Scope {
	if s.mode == ModeAI {
		return remote.GameScope(s.gameID)
	}
	return remote.RoomScope(s.state.Room.Code)
}

func (s *Session) roomPayload() types.RoomPayload {
	return types.RoomPayload{RoomCode: s.state.Room.Code, PlayerID: s.state.Identity.PlayerID}
}

// pushReady reports whether room traffic can go over the push channel.
func (s *Session) pushReady() bool {
	return s.mode == ModeMultiplayer && s.chStatus == channel.StatusConnected
}

func (s *Session) createRoom(msg FromUser) {
	name, err := NormalizeName(msg.Cmd.Name)
	if err != nil {
		msg.Reply <- fail(err)
		return
	}
	if err := s.checkLobby(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	s.busy = true
	id := s.state.Identity.PlayerID
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		res, err := s.remote.CreateRoom(ctx, id, name)
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRoom, "Could not create room: %v", err))
				return fail(err)
			}
			room := engine.RoomState{Code: NormalizeRoomCode(res.RoomCode), Player1ID: id, Status: engine.StatusWaiting}
			if res.Room != nil {
				if room, err = roomFromWire(res.Room); err != nil {
					return fail(err)
				}
			}
			if err := ValidateRoomCode(room.Code); err != nil {
				return fail(fmt.Errorf("%w: server issued room code %q", remote.ErrMalformed, room.Code))
			}
			return s.enterRoom(name, room, ModeMultiplayer, "")
		}
	})
}

func (s *Session) joinRoom(msg FromUser) {
	code := NormalizeRoomCode(msg.Cmd.Code)
	if err := ValidateRoomCode(code); err != nil {
		msg.Reply <- fail(err)
		return
	}
	name, err := NormalizeName(msg.Cmd.Name)
	if err != nil {
		msg.Reply <- fail(err)
		return
	}
	if err := s.checkLobby(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	s.busy = true
	id := s.state.Identity.PlayerID
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		res, err := s.remote.JoinRoom(ctx, code, id, name)
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRoom, "Could not join room %s: %v", code, err))
				return fail(err)
			}
			room, err := roomFromWire(res.Room)
			if err != nil {
				return fail(err)
			}
			return s.enterRoom(name, room, ModeMultiplayer, "")
		}
	})
}

func (s *Session) startAI(msg FromUser) {
	name, err := NormalizeName(msg.Cmd.Name)
	if err != nil {
		msg.Reply <- fail(err)
		return
	}
	if err := s.checkLobby(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	s.busy = true
	id := s.state.Identity.PlayerID
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		res, err := s.remote.CreateGame(ctx, id)
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRoom, "Could not start a game: %v", err))
				return fail(err)
			}
			if res.GameID == "" {
				return fail(fmt.Errorf("%w: game without id", remote.ErrMalformed))
			}
			room := engine.RoomState{
				Code:      res.GameID,
				Player1ID: id,
				Player2ID: AIPlayerID,
				Status:    engine.StatusPlacement,
				HasGame:   true,
			}
			return s.enterRoom(name, room, ModeAI, res.GameID)
		}
	})
}

// enterRoom binds the session to room and resolves the own role once.
func (s *Session) enterRoom(name string, room engine.RoomState, mode Mode, gameID string) Result {
	s.state.Identity.DisplayName = name
	next, err := engine.JoinRoom(s.state, room)
	if err != nil {
		s.breakSession(err)
		return fail(err)
	}
	s.state = next
	s.mode = mode
	s.gameID = gameID
	s.announce()

	notes := []engine.Notice{note(engine.NoteRoom, "Joined room %s as %s", room.Code, next.Role)}
	if mode == ModeAI {
		notes[0] = note(engine.NoteRoom, "Game against the computer started")
	}
	if next.Turn.Phase == engine.PhasePlacement {
		notes = append(notes, note(engine.NotePhase, "Place your ships"))
	}
	s.commit(notes...)
	return Result{RoomCode: room.Code, GameID: gameID, Room: room}
}

// announce tells the push channel which room we are in.
func (s *Session) announce() {
	if !s.pushReady() || s.state.Room.Code == "" {
		return
	}
	if err := s.ch.Send(itypes.CmdJoinRoom, s.roomPayload()); err != nil {
		s.log.Info("join announce failed", zap.Error(err))
	}
}

func (s *Session) setReady(msg FromUser) {
	if err := s.checkRoom(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	if s.mode != ModeMultiplayer || s.state.Turn.Phase != engine.PhaseIdle {
		msg.Reply <- fail(engine.ErrWrongPhase)
		return
	}
	if s.pushReady() {
		if err := s.ch.Send(itypes.CmdPlayerReady, s.roomPayload()); err == nil {
			s.commit(note(engine.NoteRoom, "Ready, waiting for the opponent"))
			msg.Reply <- Result{}
			return
		}
	}

	s.busy = true
	scope, id := s.scope(), s.state.Identity.PlayerID
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		res, err := s.remote.SetReady(ctx, scope, id)
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRoom, "Ready failed: %v", err))
				return fail(err)
			}
			s.feed.Add(string(engine.NoteRoom), "Ready, waiting for the opponent")
			s.applyRoom(res.Room)
			s.refresh()
			return Result{}
		}
	})
}

// applyRoom folds a room record from a REST answer into the state. It
// always publishes, even when the record is missing or unusable.
func (s *Session) applyRoom(r *types.Room) {
	if r != nil {
		room, err := roomFromWire(r)
		if err == nil && s.apply(engine.Event{Kind: engine.EvtRoomUpdated, Room: &room}) {
			return
		}
	}
	if !s.broken {
		s.commit()
	}
}

func (s *Session) leaveRoom(msg FromUser) {
	if s.mode == ModeNone {
		msg.Reply <- fail(ErrNoRoom)
		return
	}
	code := s.state.Room.Code
	s.farewell()
	s.resetRoom()
	s.commit(note(engine.NoteRoom, "Left room %s", code))
	msg.Reply <- Result{RoomCode: code}
}

// farewell tells the server we are gone. Failures only get logged.
func (s *Session) farewell() {
	if s.mode != ModeMultiplayer || s.state.Room.Code == "" {
		return
	}
	if s.pushReady() {
		if err := s.ch.Send(itypes.CmdLeaveRoom, s.roomPayload()); err != nil {
			s.log.Info("leave announce failed", zap.Error(err))
		}
	}
	code, id := s.state.Room.Code, s.state.Identity.PlayerID
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RequestTimeout)
		defer cancel()
		if _, err := s.remote.LeaveRoom(ctx, code, id); err != nil && !errors.Is(err, remote.ErrNotFound) {
			s.log.Info("leave request failed", zap.String("room", code), zap.Error(err))
		}
	}()
}

func (s *Session) resetRoom() {
	s.epoch++
	s.state = engine.Reset(s.state)
	s.mode = ModeNone
	s.gameID = ""
	s.busy = false
	s.pushAttack = false
	s.recovery = 0
}

func (s *Session) placeShip(msg FromUser) {
	cells, err := engine.ShipCells(msg.Cmd.Cell, msg.Cmd.Size, msg.Cmd.Horizontal)
	if err != nil {
		msg.Reply <- fail(err)
		return
	}
	if err := s.checkRoom(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	if _, err := engine.PlaceShip(s.state, cells); err != nil {
		msg.Reply <- fail(err)
		return
	}
	s.busy = true
	scope, id := s.scope(), s.state.Identity.PlayerID
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		_, err := s.remote.PlaceShip(ctx, scope, id, cellsToWire(cells))
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRejected, "Ship rejected: %v", err))
				return fail(err)
			}
			next, err := engine.PlaceShip(s.state, cells)
			if err != nil {
				return fail(err)
			}
			s.state = next
			notes := []engine.Notice{note(engine.NotePlacement, "Placed %d-deck ship at %s", len(cells), cells[0])}
			if next.Fleet.Complete() {
				notes = append(notes, note(engine.NotePlacement, "All ships placed, finish placement when ready"))
			}
			s.commit(notes...)
			return Result{}
		}
	})
}

func (s *Session) autoPlace(msg FromUser) {
	if err := s.checkRoom(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	if err := engine.CheckFill(s.state); err != nil {
		msg.Reply <- fail(err)
		return
	}
	s.busy = true
	scope, id := s.scope(), s.state.Identity.PlayerID
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		res, err := s.remote.AutoPlace(ctx, scope, id)
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRejected, "Auto placement failed: %v", err))
				return fail(err)
			}
			next, err := engine.FillFleet(s.state, cellsFromWire(res.ShipPositions))
			if err != nil {
				s.log.Warn("unusable auto placement", zap.Int("cells", len(res.ShipPositions)), zap.Error(err))
				s.commit(note(engine.NoteRejected, "Auto placement failed: %v", err))
				return fail(err)
			}
			s.state = next
			s.commit(note(engine.NotePlacement, "Fleet placed automatically"))
			return Result{}
		}
	})
}

func (s *Session) finishPlacement(msg FromUser) {
	if err := s.checkRoom(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	if err := engine.CheckFinishPlacement(s.state); err != nil {
		msg.Reply <- fail(err)
		return
	}
	if s.pushReady() {
		if err := s.ch.Send(itypes.CmdPlacementComplete, s.roomPayload()); err == nil {
			s.state, _ = engine.SubmitPlacement(s.state)
			s.commit(note(engine.NotePlacement, "Placement submitted, waiting for the opponent"))
			msg.Reply <- Result{}
			return
		}
	}

	s.busy = true
	mode, scope, id := s.mode, s.scope(), s.state.Identity.PlayerID
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		res, err := s.remote.SetReady(ctx, scope, id)
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRejected, "Placement rejected: %v", err))
				return fail(err)
			}
			next, err := engine.SubmitPlacement(s.state)
			if err != nil {
				return fail(err)
			}
			s.state = next
			s.feed.Add(string(engine.NotePlacement), "Placement submitted")
			if mode == ModeAI {
				if res.Status == string(engine.StatusActive) {
					s.apply(engine.Event{Kind: engine.EvtBattleStarted, CurrentTurn: engine.RolePlayer1})
				} else {
					s.commit()
				}
				return Result{}
			}
			s.applyRoom(res.Room)
			s.refresh()
			return Result{}
		}
	})
}

func (s *Session) submitAttack(msg FromUser) {
	if s.mode == ModeNone {
		msg.Reply <- fail(ErrNoRoom)
		return
	}
	c := msg.Cmd.Cell
	next, err := engine.BeginAttack(s.state, c, s.cfg.Now())
	if err != nil {
		msg.Reply <- fail(err)
		return
	}
	s.state = next

	if s.pushReady() {
		payload := types.MakeMovePayload{RoomCode: s.state.Room.Code, PlayerID: s.state.Identity.PlayerID, X: c.X, Y: c.Y}
		if err := s.ch.Send(itypes.CmdMakeMove, payload); err == nil {
			s.commit(note(engine.NoteShot, "Firing at %s", c))
			s.pushAttack = true
			msg.Reply <- Result{}
			return
		}
	}

	s.commit(note(engine.NoteShot, "Firing at %s", c))
	mode, role, scope, id := s.mode, s.state.Role, s.scope(), s.state.Identity.PlayerID
	s.async(nil, func(ctx context.Context) func() Result {
		res, err := s.remote.Attack(ctx, scope, id, c.X, c.Y)
		return func() Result {
			s.onAttackAnswer(mode, role, c, res, err)
			return Result{}
		}
	})
	msg.Reply <- Result{}
}

// onAttackAnswer feeds a direct attack answer through the same move path as
// pushed results. Any failure releases the lock and leaves the cell unknown.
func (s *Session) onAttackAnswer(mode Mode, role engine.Role, c engine.Cell, res types.AttackResponse, err error) {
	var moves []engine.MoveResult
	if err == nil {
		if mode == ModeAI {
			moves, err = aiMoves(c, res)
		} else {
			var mv engine.MoveResult
			mv, err = moveFromAttack(role, c, res)
			moves = []engine.MoveResult{mv}
		}
	}
	if err != nil {
		s.log.Info("attack failed", zap.Stringer("cell", c), zap.Error(err))
		if p := s.state.Pending; p.Active && p.Cell == c {
			s.state = engine.AbortAttack(s.state)
		}
		s.commit(note(engine.NoteRejected, "Attack at %s failed: %v", c, err))
		s.refresh()
		return
	}
	for i := range moves {
		s.apply(engine.Event{Kind: engine.EvtMoveResolved, Move: &moves[i]})
	}
	s.refresh()
}

func (s *Session) surrender(msg FromUser) {
	if err := s.checkRoom(); err != nil {
		msg.Reply <- fail(err)
		return
	}
	if p := s.state.Turn.Phase; p != engine.PhasePlacement && !p.InBattle() {
		msg.Reply <- fail(engine.ErrWrongPhase)
		return
	}
	if s.mode == ModeAI {
		s.feed.Add(string(engine.NoteResult), "You surrendered")
		s.apply(engine.Event{Kind: engine.EvtGameFinished, Winner: engine.RolePlayer2})
		msg.Reply <- Result{}
		return
	}

	s.busy = true
	code, id, role := s.state.Room.Code, s.state.Identity.PlayerID, s.state.Role
	s.async(msg.Reply, func(ctx context.Context) func() Result {
		res, err := s.remote.Surrender(ctx, code, id)
		return func() Result {
			s.busy = false
			if err != nil {
				s.commit(note(engine.NoteRejected, "Surrender failed: %v", err))
				return fail(err)
			}
			winner, _ := roleFromWire(res.Winner)
			if !winner.Valid() {
				winner = role.Other()
			}
			s.feed.Add(string(engine.NoteResult), "You surrendered")
			s.apply(engine.Event{Kind: engine.EvtGameFinished, Winner: winner})
			return Result{}
		}
	})
}

// restart drops everything, identity included.
func (s *Session) restart(msg FromUser) {
	s.farewell()
	s.resetRoom()
	s.broken = false
	s.state = engine.NewState(engine.Identity{PlayerID: s.cfg.NewID()})
	s.commit(note(engine.NoteRoom, "Session restarted"))
	msg.Reply <- Result{}
}
