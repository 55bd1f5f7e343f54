package engine

import "fmt"

// syncTurn folds a server status report into the local turn. Finished is
// terminal and nothing moves the phase back to placement once battle began.
func syncTurn(cur TurnState, role Role, status RoomStatus, hasGame bool, current, winner Role) TurnState {
	if cur.Phase == PhaseFinished {
		return cur
	}
	switch {
	case status == StatusFinished:
		return TurnState{Phase: PhaseFinished, Winner: winner}
	case status == StatusActive && current.Valid():
		return TurnState{Phase: battlePhase(role, current)}
	case status == StatusPlacement && cur.Phase == PhaseIdle:
		return TurnState{Phase: PhasePlacement}
	case status == StatusWaiting && !hasGame && (cur.Phase == PhasePlacement || cur.Phase.InBattle()):
		// the server discarded the game, which happens when a player leaves
		return TurnState{Phase: PhaseFinished}
	}
	return cur
}

// resolveMoveTurn trusts the server's next turn. When it is missing, a hit
// keeps the turn with the actor and a miss passes it.
func resolveMoveTurn(cur TurnState, role Role, mv MoveResult) TurnState {
	if cur.Phase == PhaseFinished {
		return cur
	}
	if mv.GameOver {
		w := mv.Winner
		if !w.Valid() {
			w = mv.Actor
		}
		return TurnState{Phase: PhaseFinished, Winner: w}
	}
	next := mv.NextTurn
	if !next.Valid() {
		next = mv.Actor
		if mv.Outcome == OutcomeMiss {
			next = mv.Actor.Other()
		}
	}
	return TurnState{Phase: battlePhase(role, next)}
}

func roomNotices(s State, room RoomState) []Notice {
	if !s.Role.Valid() {
		return nil
	}
	opp := s.Role.Other()
	var notes []Notice
	before, after := s.Room.IDFor(opp), room.IDFor(opp)
	switch {
	case before == "" && after != "":
		notes = append(notes, Notice{Kind: NoteRoom, Text: "Opponent joined the room"})
	case before != "" && after == "":
		notes = append(notes, Notice{Kind: NoteRoom, Text: "Opponent left the room"})
	}
	if after != "" && !s.Room.ReadyFor(opp) && room.ReadyFor(opp) {
		notes = append(notes, Notice{Kind: NoteRoom, Text: "Opponent is ready"})
	}
	return notes
}

func syncNotices(changes []Change) []Notice {
	var notes []Notice
	for _, ch := range changes {
		if ch.To == FactSunk {
			continue
		}
		var text string
		if ch.Side == SideOwn {
			text = fmt.Sprintf("Opponent fired at %s: %s", ch.Cell, ch.To)
		} else {
			text = fmt.Sprintf("Shot at %s resolved: %s", ch.Cell, ch.To)
		}
		notes = append(notes, Notice{Kind: NoteShot, Text: text})
	}
	return notes
}

func shotNotices(mv MoveResult, side Side, changes []Change) []Notice {
	var shot, sunk bool
	for _, ch := range changes {
		if ch.Cell == mv.Cell {
			shot = true
		}
		if ch.To == FactSunk {
			sunk = true
		}
	}
	var notes []Notice
	if shot {
		var text string
		switch {
		case side == SideOpponent && mv.Outcome == OutcomeHit:
			text = fmt.Sprintf("You hit at %s", mv.Cell)
		case side == SideOpponent:
			text = fmt.Sprintf("You missed at %s", mv.Cell)
		case mv.Outcome == OutcomeHit:
			text = fmt.Sprintf("Opponent hit your ship at %s", mv.Cell)
		default:
			text = fmt.Sprintf("Opponent missed at %s", mv.Cell)
		}
		notes = append(notes, Notice{Kind: NoteShot, Text: text})
	}
	if sunk {
		text := "You sank an enemy ship"
		if side == SideOwn {
			text = "Opponent sank your ship"
		}
		notes = append(notes, Notice{Kind: NoteSunk, Text: text})
	}
	return notes
}

func phaseNotices(prev, next TurnState, role Role) []Notice {
	if prev.Phase == next.Phase {
		return nil
	}
	switch next.Phase {
	case PhasePlacement:
		return []Notice{{Kind: NotePhase, Text: "Place your ships"}}
	case PhaseBattleMine:
		return []Notice{{Kind: NoteTurn, Text: "Your turn"}}
	case PhaseBattleTheirs:
		return []Notice{{Kind: NoteTurn, Text: "Opponent's turn"}}
	case PhaseFinished:
		switch {
		case !next.Winner.Valid():
			return []Notice{{Kind: NoteResult, Text: "Game over"}}
		case next.Winner == role:
			return []Notice{{Kind: NoteResult, Text: "Victory! You sank the enemy fleet"}}
		default:
			return []Notice{{Kind: NoteResult, Text: "Defeat. Your fleet was sunk"}}
		}
	}
	return nil
}
