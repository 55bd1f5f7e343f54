package engine

import (
	"errors"
	"time"
)

var ErrNotYourTurn = errors.New("not your turn")
var ErrCellResolved = errors.New("cell already attacked")
var ErrAttackPending = errors.New("an attack is already in flight")
var ErrGameFinished = errors.New("game already finished")
var ErrOutOfBounds = errors.New("cell outside the board")
var ErrWrongPhase = errors.New("action not allowed in the current phase")
var ErrFleetIncomplete = errors.New("fleet not fully placed")
var ErrFleetMismatch = errors.New("layout does not match the fleet")
var ErrPlacementSubmitted = errors.New("placement already submitted")
var ErrShipOverlap = errors.New("ship overlaps another ship")
var ErrShipTouching = errors.New("ships must not touch")
var ErrQuotaExceeded = errors.New("no ships of that size left")
var ErrBadShipShape = errors.New("ship must be a straight run of 1 to 4 cells")
var ErrIdentityMismatch = errors.New("own identity matches neither room role")
var ErrForeignRoom = errors.New("event belongs to another room")
var ErrMalformedEvent = errors.New("malformed event")
var ErrUnsupportedEvent = errors.New("unsupported event")

type Role string

const (
	RoleNone    Role = ""
	RolePlayer1 Role = "player1"
	RolePlayer2 Role = "player2"
)

func (r Role) Valid() bool { return r == RolePlayer1 || r == RolePlayer2 }

func (r Role) Other() Role {
	switch r {
	case RolePlayer1:
		return RolePlayer2
	case RolePlayer2:
		return RolePlayer1
	default:
		return RoleNone
	}
}

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhasePlacement    Phase = "placement"
	PhaseBattleMine   Phase = "battle-mine"
	PhaseBattleTheirs Phase = "battle-theirs"
	PhaseFinished     Phase = "finished"
)

func (p Phase) InBattle() bool { return p == PhaseBattleMine || p == PhaseBattleTheirs }

type RoomStatus string

const (
	StatusWaiting   RoomStatus = "waiting"
	StatusPlacement RoomStatus = "placement"
	StatusActive    RoomStatus = "active"
	StatusFinished  RoomStatus = "finished"
)

type Identity struct {
	PlayerID    string
	DisplayName string
}

type RoomState struct {
	Code         string
	Player1ID    string
	Player2ID    string
	Player1Ready bool
	Player2Ready bool
	Status       RoomStatus
	HasGame      bool
}

func (r RoomState) IDFor(role Role) string {
	switch role {
	case RolePlayer1:
		return r.Player1ID
	case RolePlayer2:
		return r.Player2ID
	default:
		return ""
	}
}

func (r RoomState) ReadyFor(role Role) bool {
	switch role {
	case RolePlayer1:
		return r.Player1Ready
	case RolePlayer2:
		return r.Player2Ready
	default:
		return false
	}
}

type TurnState struct {
	Phase  Phase
	Winner Role
}

// PendingAttack is the single in-flight attack. Cell doubles as the
// transient "processing" marker shown to renderers.
type PendingAttack struct {
	Active      bool
	Cell        Cell
	SubmittedAt time.Time
}

type State struct {
	Identity           Identity
	Role               Role
	Room               RoomState
	Turn               TurnState
	Boards             Boards
	Fleet              ShipInventory
	PlacementSubmitted bool
	Pending            PendingAttack
}

type EventKind string

const (
	EvtRoomUpdated       EventKind = "RoomUpdated"
	EvtPlacementStarted  EventKind = "PlacementStarted"
	EvtBattleStarted     EventKind = "BattleStarted"
	EvtStateSynced       EventKind = "StateSynced"
	EvtMoveResolved      EventKind = "MoveResolved"
	EvtMoveRejected      EventKind = "MoveRejected"
	EvtGameFinished      EventKind = "GameFinished"
	EvtPlayerLeft        EventKind = "PlayerLeft"
	EvtPlacementProgress EventKind = "PlacementProgress"
	EvtPlacementRejected EventKind = "PlacementRejected"
	EvtRoomClosed        EventKind = "RoomClosed"
)

type Mark struct {
	Cell    Cell
	Outcome Outcome
}

type GameSnapshot struct {
	Status        RoomStatus
	CurrentTurn   Role
	Winner        Role
	MyBoard       []Mark
	OpponentBoard []Mark
}

type MoveResult struct {
	Actor    Role
	Cell     Cell
	Outcome  Outcome
	Sunk     []Cell
	GameOver bool
	Winner   Role
	NextTurn Role
}

/*
	RoomUpdated / PlacementStarted -> Room (required)
	BattleStarted                  -> Room (optional), CurrentTurn
	StateSynced                    -> Room (required), Game (optional)
	MoveResolved                   -> Move
	MoveRejected                   -> Reason, CurrentTurn (optional)
	GameFinished                   -> Winner, Room (optional)
	PlayerLeft / PlacementProgress -> PlayerID
	PlacementRejected              -> Reason
	RoomClosed                     -> nothing
*/

type Event struct {
	Kind        EventKind
	Room        *RoomState
	Game        *GameSnapshot
	Move        *MoveResult
	PlayerID    string
	CurrentTurn Role
	Winner      Role
	Reason      string
}

type NoticeKind string

const (
	NoteRoom      NoticeKind = "room"
	NotePhase     NoticeKind = "phase"
	NoteTurn      NoticeKind = "turn"
	NoteShot      NoticeKind = "shot"
	NoteSunk      NoticeKind = "sunk"
	NoteResult    NoticeKind = "result"
	NoteRejected  NoticeKind = "rejected"
	NotePlacement NoticeKind = "placement"
)

type Notice struct {
	Kind NoticeKind
	Text string
}

func Apply(s State, ev Event) (State, []Notice, error) {
	next := s
	var notes []Notice

	switch ev.Kind {
	case EvtRoomUpdated, EvtPlacementStarted:
		if ev.Room == nil {
			return s, nil, ErrMalformedEvent
		}
		if err := checkRoom(s, *ev.Room); err != nil {
			return s, nil, err
		}
		notes = append(notes, roomNotices(s, *ev.Room)...)
		next.Room = *ev.Room
		next.Turn = syncTurn(s.Turn, s.Role, ev.Room.Status, ev.Room.HasGame, RoleNone, RoleNone)

	case EvtBattleStarted:
		if ev.Room != nil {
			if err := checkRoom(s, *ev.Room); err != nil {
				return s, nil, err
			}
			next.Room = *ev.Room
		}
		next.Room.Status = StatusActive
		next.Room.HasGame = true
		next.Turn = syncTurn(s.Turn, s.Role, StatusActive, true, ev.CurrentTurn, RoleNone)

	case EvtStateSynced:
		if ev.Room == nil {
			return s, nil, ErrMalformedEvent
		}
		if err := checkRoom(s, *ev.Room); err != nil {
			return s, nil, err
		}
		notes = append(notes, roomNotices(s, *ev.Room)...)
		next.Room = *ev.Room
		status, hasGame := ev.Room.Status, ev.Room.HasGame
		current, winner := RoleNone, RoleNone
		if g := ev.Game; g != nil {
			var changes []Change
			next.Boards, changes = Reconcile(next.Boards, marksToFacts(g)...)
			notes = append(notes, syncNotices(changes)...)
			status, hasGame, current, winner = g.Status, true, g.CurrentTurn, g.Winner
		}
		next.Turn = syncTurn(s.Turn, s.Role, status, hasGame, current, winner)
		if next.Pending.Active && next.Boards.Opponent.At(next.Pending.Cell).Resolved() {
			next.Pending = PendingAttack{}
		}

	case EvtMoveResolved:
		mv := ev.Move
		if mv == nil || !mv.Actor.Valid() || (mv.Outcome != OutcomeHit && mv.Outcome != OutcomeMiss) {
			return s, nil, ErrMalformedEvent
		}
		side, stale := SideOwn, false
		if mv.Actor == s.Role {
			side = SideOpponent
			switch {
			case !s.Pending.Active:
			case s.Pending.Cell == mv.Cell:
				next.Pending = PendingAttack{}
			default:
				// late answer for a shot a snapshot already settled; the
				// newer attack keeps the lock and the turn stays as synced
				stale = true
			}
		}
		var changes []Change
		next.Boards, changes = Reconcile(next.Boards, Fact{Side: side, Cell: mv.Cell, Outcome: mv.Outcome, Sunk: mv.Sunk})
		notes = append(notes, shotNotices(*mv, side, changes)...)
		if !stale {
			next.Turn = resolveMoveTurn(s.Turn, s.Role, *mv)
		}

	case EvtMoveRejected:
		next.Pending = PendingAttack{}
		notes = append(notes, Notice{Kind: NoteRejected, Text: "Move rejected: " + reason(ev.Reason)})
		if ev.CurrentTurn.Valid() {
			next.Turn = syncTurn(s.Turn, s.Role, StatusActive, true, ev.CurrentTurn, RoleNone)
		}

	case EvtGameFinished:
		if ev.Room != nil {
			if err := checkRoom(s, *ev.Room); err != nil {
				return s, nil, err
			}
			next.Room = *ev.Room
		}
		next.Turn = syncTurn(s.Turn, s.Role, StatusFinished, true, RoleNone, ev.Winner)

	case EvtPlayerLeft:
		if ev.PlayerID == "" || ev.PlayerID == s.Identity.PlayerID {
			return s, nil, nil
		}
		notes = append(notes, Notice{Kind: NoteRoom, Text: "Opponent left the room"})
		if s.Turn.Phase == PhasePlacement || s.Turn.Phase.InBattle() {
			next.Turn = TurnState{Phase: PhaseFinished}
		}

	case EvtPlacementProgress:
		if ev.PlayerID != "" && ev.PlayerID != s.Identity.PlayerID {
			notes = append(notes, Notice{Kind: NotePlacement, Text: "Opponent finished placing ships"})
		}

	case EvtPlacementRejected:
		next.PlacementSubmitted = false
		notes = append(notes, Notice{Kind: NoteRejected, Text: "Placement rejected: " + reason(ev.Reason)})

	case EvtRoomClosed:
		notes = append(notes, Notice{Kind: NoteRoom, Text: "Room no longer exists"})
		if s.Turn.Phase == PhasePlacement || s.Turn.Phase.InBattle() {
			next.Turn = TurnState{Phase: PhaseFinished}
		} else if s.Turn.Phase == PhaseIdle {
			next.Room = RoomState{}
			next.Role = RoleNone
		}

	default:
		return s, nil, ErrUnsupportedEvent
	}

	if s.Turn.Phase != PhasePlacement && next.Turn.Phase == PhasePlacement {
		next.Boards = Boards{}
		next.Fleet = ShipInventory{Max: s.Fleet.Max}
		next.PlacementSubmitted = false
	}
	if next.Turn.Phase == PhaseFinished {
		next.Pending = PendingAttack{}
	}
	notes = append(notes, phaseNotices(s.Turn, next.Turn, s.Role)...)
	return next, notes, nil
}

// ResolveRole maps the own id onto a room slot. Matching neither slot is fatal.
func ResolveRole(room RoomState, playerID string) (Role, error) {
	switch {
	case playerID == "":
		return RoleNone, ErrIdentityMismatch
	case room.Player1ID == playerID:
		return RolePlayer1, nil
	case room.Player2ID == playerID:
		return RolePlayer2, nil
	default:
		return RoleNone, ErrIdentityMismatch
	}
}

func checkRoom(s State, room RoomState) error {
	if s.Room.Code != "" && room.Code != "" && room.Code != s.Room.Code {
		return ErrForeignRoom
	}
	if s.Role == RoleNone {
		return nil
	}
	if room.IDFor(s.Role) != s.Identity.PlayerID {
		return ErrIdentityMismatch
	}
	return nil
}

func marksToFacts(g *GameSnapshot) []Fact {
	facts := make([]Fact, 0, len(g.MyBoard)+len(g.OpponentBoard))
	for _, m := range g.MyBoard {
		facts = append(facts, Fact{Side: SideOwn, Cell: m.Cell, Outcome: m.Outcome})
	}
	for _, m := range g.OpponentBoard {
		facts = append(facts, Fact{Side: SideOpponent, Cell: m.Cell, Outcome: m.Outcome})
	}
	return facts
}

func reason(r string) string {
	if r == "" {
		return "no reason given"
	}
	return r
}
