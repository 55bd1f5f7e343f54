package engine

import (
	"fmt"
	"sort"
)

const MaxShipSize = 4

// DefaultFleet: one 4-deck, two 3-deck, two 2-deck, two 1-deck ships.
var DefaultFleet = map[int]int{4: 1, 3: 2, 2: 2, 1: 2}

type ShipInventory struct {
	Max    [MaxShipSize + 1]int
	Placed [MaxShipSize + 1]int
	Layout [BoardSize][BoardSize]bool
}

func NewShipInventory(quota map[int]int) ShipInventory {
	var inv ShipInventory
	for size, n := range quota {
		if size >= 1 && size <= MaxShipSize {
			inv.Max[size] = n
		}
	}
	return inv
}

func (inv ShipInventory) Remaining(size int) int {
	if size < 1 || size > MaxShipSize {
		return 0
	}
	return inv.Max[size] - inv.Placed[size]
}

func (inv ShipInventory) Complete() bool {
	for size := 1; size <= MaxShipSize; size++ {
		if inv.Placed[size] != inv.Max[size] {
			return false
		}
	}
	return true
}

func (inv ShipInventory) Ships() (placed, total int) {
	for size := 1; size <= MaxShipSize; size++ {
		placed += inv.Placed[size]
		total += inv.Max[size]
	}
	return placed, total
}

func (inv ShipInventory) Cells() []Cell {
	var out []Cell
	for y := range inv.Layout {
		for x := range inv.Layout[y] {
			if inv.Layout[y][x] {
				out = append(out, Cell{X: x, Y: y})
			}
		}
	}
	return out
}

func (inv ShipInventory) Occupied(c Cell) bool {
	return c.InBounds() && inv.Layout[c.Y][c.X]
}

// ShipCells expands a bow cell into a straight run.
func ShipCells(start Cell, size int, horizontal bool) ([]Cell, error) {
	if size < 1 || size > MaxShipSize {
		return nil, ErrBadShipShape
	}
	cells := make([]Cell, 0, size)
	for i := 0; i < size; i++ {
		c := start
		if horizontal {
			c.X += i
		} else {
			c.Y += i
		}
		if !c.InBounds() {
			return nil, ErrOutOfBounds
		}
		cells = append(cells, c)
	}
	return cells, nil
}

func (inv ShipInventory) CanPlace(cells []Cell) error {
	size := len(cells)
	if size < 1 || size > MaxShipSize || !straight(cells) {
		return ErrBadShipShape
	}
	for _, c := range cells {
		if !c.InBounds() {
			return ErrOutOfBounds
		}
	}
	if inv.Remaining(size) <= 0 {
		return ErrQuotaExceeded
	}
	for _, c := range cells {
		if inv.Layout[c.Y][c.X] {
			return ErrShipOverlap
		}
	}
	for _, c := range cells {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if inv.Occupied(Cell{X: c.X + dx, Y: c.Y + dy}) {
					return ErrShipTouching
				}
			}
		}
	}
	return nil
}

func (inv ShipInventory) Place(cells []Cell) (ShipInventory, error) {
	if err := inv.CanPlace(cells); err != nil {
		return inv, err
	}
	for _, c := range cells {
		inv.Layout[c.Y][c.X] = true
	}
	inv.Placed[len(cells)]++
	return inv, nil
}

// CellTotal is the number of cells the full fleet covers.
func (inv ShipInventory) CellTotal() int {
	n := 0
	for size := 1; size <= MaxShipSize; size++ {
		n += size * inv.Max[size]
	}
	return n
}

// Fill replaces the layout with a server-chosen one and marks the quota as
// met. A layout that does not cover exactly the fleet's cells is refused.
func (inv ShipInventory) Fill(cells []Cell) (ShipInventory, error) {
	var layout [BoardSize][BoardSize]bool
	got := 0
	for _, c := range cells {
		if c.InBounds() && !layout[c.Y][c.X] {
			layout[c.Y][c.X] = true
			got++
		}
	}
	if want := inv.CellTotal(); got != want {
		return inv, fmt.Errorf("%w: %d cells, want %d", ErrFleetMismatch, got, want)
	}
	inv.Layout = layout
	inv.Placed = inv.Max
	return inv, nil
}

func straight(cells []Cell) bool {
	if len(cells) <= 1 {
		return true
	}
	sorted := append([]Cell(nil), cells...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y < sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})
	horizontal := sorted[0].Y == sorted[1].Y
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if horizontal && (cur.Y != prev.Y || cur.X != prev.X+1) {
			return false
		}
		if !horizontal && (cur.X != prev.X || cur.Y != prev.Y+1) {
			return false
		}
	}
	return true
}
