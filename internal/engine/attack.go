package engine

import "time"

// CheckAttack reports why an attack on c may not be submitted right now.
func CheckAttack(s State, c Cell) error {
	if !c.InBounds() {
		return ErrOutOfBounds
	}
	if s.Turn.Phase == PhaseFinished {
		return ErrGameFinished
	}
	if s.Pending.Active {
		return ErrAttackPending
	}
	if s.Turn.Phase != PhaseBattleMine {
		return ErrNotYourTurn
	}
	if s.Boards.Opponent.At(c).Resolved() {
		return ErrCellResolved
	}
	return nil
}

func BeginAttack(s State, c Cell, at time.Time) (State, error) {
	if err := CheckAttack(s, c); err != nil {
		return s, err
	}
	s.Pending = PendingAttack{Active: true, Cell: c, SubmittedAt: at}
	return s, nil
}

// AbortAttack drops the in-flight attack without touching the boards.
func AbortAttack(s State) State {
	s.Pending = PendingAttack{}
	return s
}

func checkPlacement(s State) error {
	if s.Turn.Phase != PhasePlacement {
		return ErrWrongPhase
	}
	if s.PlacementSubmitted {
		return ErrPlacementSubmitted
	}
	return nil
}

func PlaceShip(s State, cells []Cell) (State, error) {
	if err := checkPlacement(s); err != nil {
		return s, err
	}
	inv, err := s.Fleet.Place(cells)
	if err != nil {
		return s, err
	}
	s.Fleet = inv
	return s, nil
}

func CheckFill(s State) error { return checkPlacement(s) }

// FillFleet installs a complete layout produced by the server.
func FillFleet(s State, cells []Cell) (State, error) {
	if err := checkPlacement(s); err != nil {
		return s, err
	}
	inv, err := s.Fleet.Fill(cells)
	if err != nil {
		return s, err
	}
	s.Fleet = inv
	return s, nil
}

func CheckFinishPlacement(s State) error {
	if err := checkPlacement(s); err != nil {
		return err
	}
	if !s.Fleet.Complete() {
		return ErrFleetIncomplete
	}
	return nil
}

func SubmitPlacement(s State) (State, error) {
	if err := CheckFinishPlacement(s); err != nil {
		return s, err
	}
	s.PlacementSubmitted = true
	return s, nil
}

// ReopenPlacement undoes SubmitPlacement after the server refused it.
func ReopenPlacement(s State) State {
	s.PlacementSubmitted = false
	return s
}
