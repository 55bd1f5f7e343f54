package types

// Position is an [x, y] pair the way the server encodes ship cells.
type Position [2]int

// Room is the server's room record. A missing player2 arrives as null.
type Room struct {
	RoomCode     string  `json:"room_code"`
	Player1ID    string  `json:"player1_id"`
	Player2ID    string  `json:"player2_id"`
	Status       string  `json:"status"`
	CreatedAt    float64 `json:"created_at,omitempty"`
	Player1Ready bool    `json:"player1_ready"`
	Player2Ready bool    `json:"player2_ready"`
	HasGame      bool    `json:"has_game"`
}

// BoardMark is one resolved cell from a state fetch. Type is "hit" or "miss".
type BoardMark struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"`
}

type GameState struct {
	GameID                 string      `json:"game_id"`
	Status                 string      `json:"status"`
	CurrentTurn            string      `json:"current_turn"`
	Winner                 string      `json:"winner"`
	PlayerRole             string      `json:"player_role"`
	MyBoardHits            []BoardMark `json:"my_board_hits"`
	OpponentBoardHits      []BoardMark `json:"opponent_board_hits"`
	MyShipsRemaining       int         `json:"my_ships_remaining"`
	OpponentShipsRemaining int         `json:"opponent_ships_remaining"`
}

type RoomStateResponse struct {
	Room *Room      `json:"room"`
	Game *GameState `json:"game,omitempty"`
}

// REST requests

type TokenResponse struct {
	CSRFToken string `json:"csrf_token"`
}

type CreateRoomRequest struct {
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

type JoinRoomRequest struct {
	RoomCode   string `json:"room_code"`
	PlayerID   string `json:"player_id"`
	PlayerName string `json:"player_name"`
}

// PlayerRequest is the body of leave, ready, auto_place and surrender.
type PlayerRequest struct {
	RoomCode string `json:"room_code,omitempty"`
	PlayerID string `json:"player_id"`
}

type PlaceShipRequest struct {
	PlayerID  string     `json:"player_id"`
	Positions []Position `json:"positions"`
}

type AttackRequest struct {
	RoomCode string `json:"room_code,omitempty"`
	GameID   string `json:"game_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}

type CreateGameRequest struct {
	PlayerID string `json:"player_id"`
	VsAI     bool   `json:"vs_ai"`
}

// REST responses

type RoomResponse struct {
	Success  bool   `json:"success"`
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
	Room     *Room  `json:"room"`
}

type LeaveResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RoomDeleted bool   `json:"room_deleted"`
}

// ReadyResponse covers both ready endpoints: rooms answer with Room and
// GameID, AI games with Status and ReadyPlayers.
type ReadyResponse struct {
	Success      bool     `json:"success"`
	Room         *Room    `json:"room,omitempty"`
	GameID       string   `json:"game_id,omitempty"`
	Status       string   `json:"status,omitempty"`
	ReadyPlayers []string `json:"ready_players,omitempty"`
}

type PlaceShipResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	ShipsCount int    `json:"ships_count"`
}

type AutoPlaceResponse struct {
	Success       bool       `json:"success"`
	Message       string     `json:"message"`
	ShipsCount    int        `json:"ships_count"`
	ShipPositions []Position `json:"ship_positions"`
}

type AIShot struct {
	X             int        `json:"x"`
	Y             int        `json:"y"`
	Result        string     `json:"result"`
	Sunk          bool       `json:"sunk"`
	SunkPositions []Position `json:"sunk_positions"`
}

// AttackResponse is shared by room and AI attacks. AI games report sunk
// cells under ship_positions when the game ends on that shot.
type AttackResponse struct {
	Result        string     `json:"result"`
	Sunk          bool       `json:"sunk"`
	SunkPositions []Position `json:"sunk_positions"`
	ShipPositions []Position `json:"ship_positions,omitempty"`
	GameOver      bool       `json:"game_over"`
	NextTurn      string     `json:"next_turn"`
	Attacker      string     `json:"attacker,omitempty"`
	X             int        `json:"x"`
	Y             int        `json:"y"`
	Winner        string     `json:"winner,omitempty"`
	AIShots       []AIShot   `json:"ai_shots,omitempty"`
}

type CreateGameResponse struct {
	GameID string `json:"game_id"`
	Status string `json:"status"`
	Player string `json:"player"`
}

type SurrenderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Winner  string `json:"winner"`
}

type ErrorResponse struct {
	Success *bool  `json:"success,omitempty"`
	Error   string `json:"error"`
}

// Push channel payloads, server -> client

// RoomEvent: placement_started, player_ready_update, game_started, room_joined.
type RoomEvent struct {
	Room     *Room  `json:"room"`
	PlayerID string `json:"player_id,omitempty"`
	RoomCode string `json:"room_code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// PlayerEvent: player_joined, player_left.
type PlayerEvent struct {
	PlayerID string `json:"player_id"`
}

type Move struct {
	PlayerID      string     `json:"player_id"`
	PlayerRole    string     `json:"player_role"`
	X             int        `json:"x"`
	Y             int        `json:"y"`
	Result        string     `json:"result"`
	Sunk          bool       `json:"sunk"`
	SunkPositions []Position `json:"sunk_positions"`
}

type MoveGameState struct {
	Status      string `json:"status"`
	CurrentTurn string `json:"current_turn"`
	Winner      string `json:"winner"`
}

type MoveResultEvent struct {
	Move      Move          `json:"move"`
	GameState MoveGameState `json:"game_state"`
}

type GameFinishedEvent struct {
	Winner   string `json:"winner"`
	WinnerID string `json:"winner_id"`
	Room     *Room  `json:"room"`
}

type MoveRejectedEvent struct {
	Message     string `json:"message"`
	CurrentTurn string `json:"current_turn,omitempty"`
	X           *int   `json:"x,omitempty"`
	Y           *int   `json:"y,omitempty"`
}

type BattleGame struct {
	GameID      string            `json:"game_id"`
	Status      string            `json:"status"`
	CurrentTurn string            `json:"current_turn"`
	Players     map[string]string `json:"players"`
}

type BattleStartedEvent struct {
	Room *Room      `json:"room"`
	Game BattleGame `json:"game"`
}

type PlacementCompleteEvent struct {
	PlayerID     string   `json:"player_id"`
	ReadyPlayers []string `json:"ready_players"`
	ShipsCount   int      `json:"ships_count"`
}

// MessageEvent: error, placement_error.
type MessageEvent struct {
	Message string `json:"message"`
}

// Push channel payloads, client -> server

// RoomPayload: join_room, leave_room, player_ready, placement_complete.
type RoomPayload struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
}

type MakeMovePayload struct {
	RoomCode string `json:"room_code"`
	PlayerID string `json:"player_id"`
	X        int    `json:"x"`
	Y        int    `json:"y"`
}
