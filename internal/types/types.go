package types

import "encoding/json"

// Inbound push events.
const (
	EvtConnected               = "connected"
	EvtRoomJoined              = "room_joined"
	EvtPlayerJoined            = "player_joined"
	EvtPlayerLeft              = "player_left"
	EvtPlacementStarted        = "placement_started"
	EvtPlayerReadyUpdate       = "player_ready_update"
	EvtGameStarted             = "game_started"
	EvtMoveResult              = "move_result"
	EvtGameFinished            = "game_finished"
	EvtPlayerPlacementComplete = "player_placement_complete"
	EvtBattleStarted           = "battle_started"
	EvtPlacementError          = "placement_error"
	EvtMoveRejected            = "move_rejected"
	EvtError                   = "error"
	EvtPong                    = "pong"
)

// Outbound push events.
const (
	CmdJoinRoom          = "join_room"
	CmdLeaveRoom         = "leave_room"
	CmdPlayerReady       = "player_ready"
	CmdPlacementComplete = "placement_complete"
	CmdMakeMove          = "make_move"
	CmdPing              = "ping"
)

type ClientMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// ServerMessage keeps Data raw so each handler decodes its own payload shape.
type ServerMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
