package types

import "time"

// Snapshot is the read-only view handed to renderers after every mutation.
//
//	rows:  one string per board row, x left to right
//	  .  unknown        #  own ship (own board only)
//	  o  miss           X  hit
//	  *  sunk           ?  attack in flight (opponent board only)
//	facts: the same grid as "unknown" | "miss" | "hit" | "sunk"
type Snapshot struct {
	Version            int           `json:"version"`
	Mode               string        `json:"mode"`
	PlayerID           string        `json:"player_id"`
	DisplayName        string        `json:"display_name"`
	Role               string        `json:"role"`
	Phase              string        `json:"phase"`
	Winner             string        `json:"winner,omitempty"`
	Room               *Room         `json:"room,omitempty"`
	OwnBoard           BoardSnapshot `json:"own_board"`
	OpponentBoard      BoardSnapshot `json:"opponent_board"`
	Processing         *Position     `json:"processing,omitempty"`
	Fleet              FleetSnapshot `json:"fleet"`
	PlacementComplete  bool          `json:"placement_complete"`
	PlacementSubmitted bool          `json:"placement_submitted"`
	Channel            string        `json:"channel"`
	Broken             bool          `json:"broken,omitempty"`
}

type BoardSnapshot struct {
	Rows  []string   `json:"rows"`
	Facts [][]string `json:"facts"`
}

type ShipQuota struct {
	Size   int `json:"size"`
	Max    int `json:"max"`
	Placed int `json:"placed"`
}

type FleetSnapshot struct {
	Ships  []ShipQuota `json:"ships"`
	Placed int         `json:"placed"`
	Total  int         `json:"total"`
	Cells  []Position  `json:"cells"`
}

type LogEntry struct {
	Seq  int       `json:"seq"`
	Time time.Time `json:"time"`
	Kind string    `json:"kind"`
	Text string    `json:"text"`
}

type LogResponse struct {
	Entries []LogEntry `json:"entries"`
	Next    int        `json:"next"`
}
