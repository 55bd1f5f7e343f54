package engine

import "fmt"

const BoardSize = 10

type Cell struct {
	X int
	Y int
}

func (c Cell) InBounds() bool {
	return c.X >= 0 && c.X < BoardSize && c.Y >= 0 && c.Y < BoardSize
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d, %d)", c.X, c.Y)
}

// CellFact is ordered: a merge keeps the larger value. Miss sits below hit so
// that a conflicting report resolves the same way regardless of arrival order.
type CellFact uint8

const (
	FactUnknown CellFact = iota
	FactMiss
	FactHit
	FactSunk
)

func (f CellFact) String() string {
	switch f {
	case FactMiss:
		return "miss"
	case FactHit:
		return "hit"
	case FactSunk:
		return "sunk"
	default:
		return "unknown"
	}
}

func (f CellFact) Resolved() bool { return f != FactUnknown }

type Outcome string

const (
	OutcomeHit  Outcome = "hit"
	OutcomeMiss Outcome = "miss"
)

func (o Outcome) fact() CellFact {
	if o == OutcomeHit {
		return FactHit
	}
	return FactMiss
}

type Side string

const (
	SideOwn      Side = "own"
	SideOpponent Side = "opponent"
)

// BoardView is indexed [y][x] and copied by value.
type BoardView [BoardSize][BoardSize]CellFact

func (b BoardView) At(c Cell) CellFact {
	if !c.InBounds() {
		return FactUnknown
	}
	return b[c.Y][c.X]
}

func (b *BoardView) merge(c Cell, f CellFact) (CellFact, bool) {
	prev := b[c.Y][c.X]
	if f <= prev {
		return prev, false
	}
	b[c.Y][c.X] = f
	return prev, true
}

func (b BoardView) Count(f CellFact) int {
	n := 0
	for y := range b {
		for x := range b[y] {
			if b[y][x] == f {
				n++
			}
		}
	}
	return n
}

type Fact struct {
	Side    Side
	Cell    Cell
	Outcome Outcome
	Sunk    []Cell
}

type Change struct {
	Side Side
	Cell Cell
	From CellFact
	To   CellFact
}

type Boards struct {
	Own      BoardView
	Opponent BoardView
}

func (b *Boards) side(s Side) *BoardView {
	if s == SideOwn {
		return &b.Own
	}
	return &b.Opponent
}

// Reconcile max-merges facts into a copy of b. Facts whose cell is off the
// board are dropped, as are off-board entries of a sunk list.
func Reconcile(b Boards, facts ...Fact) (Boards, []Change) {
	var changes []Change
	for _, f := range facts {
		if !f.Cell.InBounds() {
			continue
		}
		if f.Side != SideOwn && f.Side != SideOpponent {
			continue
		}
		board := b.side(f.Side)
		if from, ok := board.merge(f.Cell, f.Outcome.fact()); ok {
			changes = append(changes, Change{Side: f.Side, Cell: f.Cell, From: from, To: board.At(f.Cell)})
		}
		if f.Outcome != OutcomeHit {
			continue
		}
		for _, c := range f.Sunk {
			if !c.InBounds() {
				continue
			}
			if from, ok := board.merge(c, FactSunk); ok {
				changes = append(changes, Change{Side: f.Side, Cell: c, From: from, To: FactSunk})
			}
		}
	}
	return b, changes
}
