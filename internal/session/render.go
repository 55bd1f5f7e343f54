package session

import (
	"github.com/DoyleJ11/seabattle-client/internal/engine"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
)

const (
	glyphUnknown = '.'
	glyphShip    = '#'
	glyphMiss    = 'o'
	glyphHit     = 'X'
	glyphSunk    = '*'
	glyphPending = '?'
)

func glyph(f engine.CellFact) byte {
	switch f {
	case engine.FactMiss:
		return glyphMiss
	case engine.FactHit:
		return glyphHit
	case engine.FactSunk:
		return glyphSunk
	default:
		return glyphUnknown
	}
}

// Snapshot renders the view in the renderer contract shape.
func (v View) Snapshot() types.Snapshot {
	st := v.State
	snap := types.Snapshot{
		Version:            v.Version,
		Mode:               string(v.Mode),
		PlayerID:           st.Identity.PlayerID,
		DisplayName:        st.Identity.DisplayName,
		Role:               string(st.Role),
		Phase:              string(st.Turn.Phase),
		Winner:             string(st.Turn.Winner),
		Fleet:              fleetSnapshot(st.Fleet),
		PlacementComplete:  st.Fleet.Complete(),
		PlacementSubmitted: st.PlacementSubmitted,
		Channel:            string(v.Channel),
		Broken:             v.Broken,
	}
	if st.Room.Code != "" {
		snap.Room = &types.Room{
			RoomCode:     st.Room.Code,
			Player1ID:    st.Room.Player1ID,
			Player2ID:    st.Room.Player2ID,
			Status:       string(st.Room.Status),
			Player1Ready: st.Room.Player1Ready,
			Player2Ready: st.Room.Player2Ready,
			HasGame:      st.Room.HasGame,
		}
	}
	var pending *engine.Cell
	if st.Pending.Active {
		c := st.Pending.Cell
		pending = &c
		snap.Processing = &types.Position{c.X, c.Y}
	}
	snap.OwnBoard = boardSnapshot(st.Boards.Own, &st.Fleet, nil)
	snap.OpponentBoard = boardSnapshot(st.Boards.Opponent, nil, pending)
	return snap
}

func boardSnapshot(b engine.BoardView, fleet *engine.ShipInventory, pending *engine.Cell) types.BoardSnapshot {
	out := types.BoardSnapshot{
		Rows:  make([]string, engine.BoardSize),
		Facts: make([][]string, engine.BoardSize),
	}
	for y := 0; y < engine.BoardSize; y++ {
		row := make([]byte, engine.BoardSize)
		facts := make([]string, engine.BoardSize)
		for x := 0; x < engine.BoardSize; x++ {
			c := engine.Cell{X: x, Y: y}
			f := b.At(c)
			facts[x] = f.String()
			row[x] = glyph(f)
			switch {
			case f != engine.FactUnknown:
			case fleet != nil && fleet.Occupied(c):
				row[x] = glyphShip
			case pending != nil && *pending == c:
				row[x] = glyphPending
			}
		}
		out.Rows[y] = string(row)
		out.Facts[y] = facts
	}
	return out
}

func fleetSnapshot(inv engine.ShipInventory) types.FleetSnapshot {
	placed, total := inv.Ships()
	fs := types.FleetSnapshot{Placed: placed, Total: total, Cells: cellsToWire(inv.Cells())}
	for size := engine.MaxShipSize; size >= 1; size-- {
		if inv.Max[size] == 0 {
			continue
		}
		fs.Ships = append(fs.Ships, types.ShipQuota{Size: size, Max: inv.Max[size], Placed: inv.Placed[size]})
	}
	return fs
}
