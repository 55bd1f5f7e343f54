package engine

func NewState(id Identity) State {
	return State{
		Identity: id,
		Turn:     TurnState{Phase: PhaseIdle},
		Fleet:    NewShipInventory(DefaultFleet),
	}
}

// JoinRoom binds the state to a room once the own slot is known.
func JoinRoom(s State, room RoomState) (State, error) {
	role, err := ResolveRole(room, s.Identity.PlayerID)
	if err != nil {
		return s, err
	}
	next := NewState(s.Identity)
	next.Fleet = ShipInventory{Max: s.Fleet.Max}
	next.Role = role
	next.Room = room
	next.Turn = syncTurn(next.Turn, role, room.Status, room.HasGame, RoleNone, RoleNone)
	return next, nil
}

// Reset drops all room bound state and keeps the identity.
func Reset(s State) State {
	next := NewState(s.Identity)
	next.Fleet = ShipInventory{Max: s.Fleet.Max}
	return next
}

func ContainsNotice(notes []Notice, kind NoticeKind) bool {
	for _, n := range notes {
		if n.Kind == kind {
			return true
		}
	}
	return false
}

func battlePhase(role, current Role) Phase {
	if role.Valid() && current == role {
		return PhaseBattleMine
	}
	return PhaseBattleTheirs
}
