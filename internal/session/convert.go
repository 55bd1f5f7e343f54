package session

import (
	"encoding/json"
	"fmt"

	"github.com/DoyleJ11/seabattle-client/internal/engine"
	itypes "github.com/DoyleJ11/seabattle-client/internal/types"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
)

// AIPlayerID is the server's id for the computer opponent.
const AIPlayerID = "AI_BOT"

func roleFromWire(s string) (engine.Role, error) {
	switch r := engine.Role(s); r {
	case engine.RoleNone, engine.RolePlayer1, engine.RolePlayer2:
		return r, nil
	}
	return engine.RoleNone, fmt.Errorf("%w: role %q", engine.ErrMalformedEvent, s)
}

func statusFromWire(s string) (engine.RoomStatus, error) {
	switch st := engine.RoomStatus(s); st {
	case engine.StatusWaiting, engine.StatusPlacement, engine.StatusActive, engine.StatusFinished:
		return st, nil
	}
	return "", fmt.Errorf("%w: status %q", engine.ErrMalformedEvent, s)
}

func outcomeFromWire(s string) (engine.Outcome, error) {
	switch o := engine.Outcome(s); o {
	case engine.OutcomeHit, engine.OutcomeMiss:
		return o, nil
	}
	return "", fmt.Errorf("%w: result %q", engine.ErrMalformedEvent, s)
}

func roomFromWire(r *types.Room) (engine.RoomState, error) {
	if r == nil {
		return engine.RoomState{}, fmt.Errorf("%w: missing room", engine.ErrMalformedEvent)
	}
	status, err := statusFromWire(r.Status)
	if err != nil {
		return engine.RoomState{}, err
	}
	return engine.RoomState{
		Code:         NormalizeRoomCode(r.RoomCode),
		Player1ID:    r.Player1ID,
		Player2ID:    r.Player2ID,
		Player1Ready: r.Player1Ready,
		Player2Ready: r.Player2Ready,
		Status:       status,
		HasGame:      r.HasGame,
	}, nil
}

func marksFromWire(in []types.BoardMark) ([]engine.Mark, error) {
	out := make([]engine.Mark, 0, len(in))
	for _, m := range in {
		o, err := outcomeFromWire(m.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, engine.Mark{Cell: engine.Cell{X: m.X, Y: m.Y}, Outcome: o})
	}
	return out, nil
}

func cellsFromWire(in []types.Position) []engine.Cell {
	out := make([]engine.Cell, 0, len(in))
	for _, p := range in {
		out = append(out, engine.Cell{X: p[0], Y: p[1]})
	}
	return out
}

func cellsToWire(in []engine.Cell) []types.Position {
	out := make([]types.Position, 0, len(in))
	for _, c := range in {
		out = append(out, types.Position{c.X, c.Y})
	}
	return out
}

func gameFromWire(g *types.GameState) (*engine.GameSnapshot, error) {
	if g == nil {
		return nil, nil
	}
	status, err := statusFromWire(g.Status)
	if err != nil {
		return nil, err
	}
	current, err := roleFromWire(g.CurrentTurn)
	if err != nil {
		return nil, err
	}
	winner, err := roleFromWire(g.Winner)
	if err != nil {
		return nil, err
	}
	mine, err := marksFromWire(g.MyBoardHits)
	if err != nil {
		return nil, err
	}
	theirs, err := marksFromWire(g.OpponentBoardHits)
	if err != nil {
		return nil, err
	}
	return &engine.GameSnapshot{
		Status:        status,
		CurrentTurn:   current,
		Winner:        winner,
		MyBoard:       mine,
		OpponentBoard: theirs,
	}, nil
}

func stateEvent(res types.RoomStateResponse) (engine.Event, error) {
	room, err := roomFromWire(res.Room)
	if err != nil {
		return engine.Event{}, err
	}
	game, err := gameFromWire(res.Game)
	if err != nil {
		return engine.Event{}, err
	}
	return engine.Event{Kind: engine.EvtStateSynced, Room: &room, Game: game}, nil
}

func moveFromPush(e types.MoveResultEvent) (engine.MoveResult, error) {
	actor, err := roleFromWire(e.Move.PlayerRole)
	if err != nil || !actor.Valid() {
		return engine.MoveResult{}, fmt.Errorf("%w: move actor %q", engine.ErrMalformedEvent, e.Move.PlayerRole)
	}
	outcome, err := outcomeFromWire(e.Move.Result)
	if err != nil {
		return engine.MoveResult{}, err
	}
	next, err := roleFromWire(e.GameState.CurrentTurn)
	if err != nil {
		return engine.MoveResult{}, err
	}
	winner, err := roleFromWire(e.GameState.Winner)
	if err != nil {
		return engine.MoveResult{}, err
	}
	return engine.MoveResult{
		Actor:    actor,
		Cell:     engine.Cell{X: e.Move.X, Y: e.Move.Y},
		Outcome:  outcome,
		Sunk:     cellsFromWire(e.Move.SunkPositions),
		GameOver: e.GameState.Status == string(engine.StatusFinished),
		Winner:   winner,
		NextTurn: next,
	}, nil
}

// moveFromAttack converts the direct answer to our own attack.
func moveFromAttack(actor engine.Role, c engine.Cell, res types.AttackResponse) (engine.MoveResult, error) {
	outcome, err := outcomeFromWire(res.Result)
	if err != nil {
		return engine.MoveResult{}, err
	}
	next, err := roleFromWire(res.NextTurn)
	if err != nil {
		// unknown values fall back to the hit rule
		next = engine.RoleNone
	}
	winner, err := roleFromWire(res.Winner)
	if err != nil {
		return engine.MoveResult{}, err
	}
	sunk := res.SunkPositions
	if len(sunk) == 0 && res.Sunk {
		sunk = res.ShipPositions
	}
	return engine.MoveResult{
		Actor:    actor,
		Cell:     c,
		Outcome:  outcome,
		Sunk:     cellsFromWire(sunk),
		GameOver: res.GameOver,
		Winner:   winner,
		NextTurn: next,
	}, nil
}

// aiMoves expands an AI game attack answer into our shot followed by the
// computer's reply series. The computer keeps shooting while it hits, so each
// of its shots hands the turn on by the same extra-turn-on-hit rule.
func aiMoves(c engine.Cell, res types.AttackResponse) ([]engine.MoveResult, error) {
	me, them := engine.RolePlayer1, engine.RolePlayer2
	own, err := moveFromAttack(me, c, res)
	if err != nil {
		return nil, err
	}
	if len(res.AIShots) > 0 {
		own.GameOver = false
		own.Winner = engine.RoleNone
		own.NextTurn = them
	}
	moves := []engine.MoveResult{own}
	for i, shot := range res.AIShots {
		outcome, err := outcomeFromWire(shot.Result)
		if err != nil {
			return nil, err
		}
		mv := engine.MoveResult{
			Actor:    them,
			Cell:     engine.Cell{X: shot.X, Y: shot.Y},
			Outcome:  outcome,
			Sunk:     cellsFromWire(shot.SunkPositions),
			NextTurn: me,
		}
		last := i == len(res.AIShots)-1
		switch {
		case last && res.GameOver:
			mv.GameOver = true
			mv.Winner = them
		case outcome == engine.OutcomeHit && !last:
			mv.NextTurn = them
		}
		moves = append(moves, mv)
	}
	return moves, nil
}

// inbound is a decoded push frame. Ev is nil when the frame only asks for a
// refresh or a feed line.
type inbound struct {
	name  string
	ev    *engine.Event
	fetch bool
	note  string
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, fmt.Errorf("%w: empty payload", engine.ErrMalformedEvent)
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %w", engine.ErrMalformedEvent, err)
	}
	return v, nil
}

func roomEvent(kind engine.EventKind, data json.RawMessage) (*engine.Event, error) {
	e, err := decode[types.RoomEvent](data)
	if err != nil {
		return nil, err
	}
	room, err := roomFromWire(e.Room)
	if err != nil {
		return nil, err
	}
	return &engine.Event{Kind: kind, Room: &room}, nil
}

func decodePush(name string, data json.RawMessage) (inbound, error) {
	in := inbound{name: name}
	switch name {
	case itypes.EvtPlayerReadyUpdate:
		ev, err := roomEvent(engine.EvtRoomUpdated, data)
		if err != nil {
			return in, err
		}
		in.ev = ev

	case itypes.EvtPlacementStarted, itypes.EvtGameStarted:
		ev, err := roomEvent(engine.EvtPlacementStarted, data)
		if err != nil {
			return in, err
		}
		in.ev = ev

	case itypes.EvtRoomJoined, itypes.EvtPlayerJoined:
		// these carry only ids; the room itself comes from a fetch
		in.fetch = true

	case itypes.EvtPlayerLeft:
		e, err := decode[types.PlayerEvent](data)
		if err != nil {
			return in, err
		}
		in.ev = &engine.Event{Kind: engine.EvtPlayerLeft, PlayerID: e.PlayerID}
		in.fetch = true

	case itypes.EvtBattleStarted:
		e, err := decode[types.BattleStartedEvent](data)
		if err != nil {
			return in, err
		}
		current, err := roleFromWire(e.Game.CurrentTurn)
		if err != nil || !current.Valid() {
			return in, fmt.Errorf("%w: current turn %q", engine.ErrMalformedEvent, e.Game.CurrentTurn)
		}
		ev := engine.Event{Kind: engine.EvtBattleStarted, CurrentTurn: current}
		if e.Room != nil {
			room, err := roomFromWire(e.Room)
			if err != nil {
				return in, err
			}
			ev.Room = &room
		}
		in.ev = &ev

	case itypes.EvtMoveResult:
		e, err := decode[types.MoveResultEvent](data)
		if err != nil {
			return in, err
		}
		mv, err := moveFromPush(e)
		if err != nil {
			return in, err
		}
		in.ev = &engine.Event{Kind: engine.EvtMoveResolved, Move: &mv}

	case itypes.EvtMoveRejected:
		e, err := decode[types.MoveRejectedEvent](data)
		if err != nil {
			return in, err
		}
		current, _ := roleFromWire(e.CurrentTurn)
		in.ev = &engine.Event{Kind: engine.EvtMoveRejected, Reason: e.Message, CurrentTurn: current}
		in.fetch = !current.Valid()

	case itypes.EvtGameFinished:
		e, err := decode[types.GameFinishedEvent](data)
		if err != nil {
			return in, err
		}
		winner, err := roleFromWire(e.Winner)
		if err != nil {
			return in, err
		}
		ev := engine.Event{Kind: engine.EvtGameFinished, Winner: winner}
		if e.Room != nil {
			room, err := roomFromWire(e.Room)
			if err != nil {
				return in, err
			}
			ev.Room = &room
		}
		in.ev = &ev

	case itypes.EvtPlayerPlacementComplete:
		e, err := decode[types.PlacementCompleteEvent](data)
		if err != nil {
			return in, err
		}
		in.ev = &engine.Event{Kind: engine.EvtPlacementProgress, PlayerID: e.PlayerID}

	case itypes.EvtPlacementError:
		e, err := decode[types.MessageEvent](data)
		if err != nil {
			return in, err
		}
		in.ev = &engine.Event{Kind: engine.EvtPlacementRejected, Reason: e.Message}

	case itypes.EvtError:
		e, err := decode[types.MessageEvent](data)
		if err != nil {
			return in, err
		}
		in.note = "Server error: " + e.Message

	default:
		return in, fmt.Errorf("%w: %s", engine.ErrUnsupportedEvent, name)
	}
	return in, nil
}
