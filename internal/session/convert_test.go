package session

import (
	"encoding/json"
	"testing"

	"github.com/DoyleJ11/seabattle-client/internal/engine"
	itypes "github.com/DoyleJ11/seabattle-client/internal/types"
	"github.com/DoyleJ11/seabattle-client/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAIMoves(t *testing.T) {
	tests := []struct {
		name string
		res  types.AttackResponse
		want []engine.MoveResult
	}{
		{
			name: "miss without reply series",
			res:  types.AttackResponse{Result: "miss", NextTurn: "player2"},
			want: []engine.MoveResult{
				{Actor: engine.RolePlayer1, Cell: engine.Cell{X: 4, Y: 4}, Outcome: engine.OutcomeMiss, Sunk: []engine.Cell{}, NextTurn: engine.RolePlayer2},
			},
		},
		{
			name: "computer hits then misses",
			res: types.AttackResponse{Result: "miss", AIShots: []types.AIShot{
				{X: 0, Y: 0, Result: "hit"},
				{X: 0, Y: 1, Result: "miss"},
			}},
			want: []engine.MoveResult{
				{Actor: engine.RolePlayer1, Cell: engine.Cell{X: 4, Y: 4}, Outcome: engine.OutcomeMiss, Sunk: []engine.Cell{}, NextTurn: engine.RolePlayer2},
				{Actor: engine.RolePlayer2, Cell: engine.Cell{X: 0, Y: 0}, Outcome: engine.OutcomeHit, Sunk: []engine.Cell{}, NextTurn: engine.RolePlayer2},
				{Actor: engine.RolePlayer2, Cell: engine.Cell{X: 0, Y: 1}, Outcome: engine.OutcomeMiss, Sunk: []engine.Cell{}, NextTurn: engine.RolePlayer1},
			},
		},
		{
			name: "computer wins",
			res: types.AttackResponse{Result: "miss", GameOver: true, Winner: "player2", AIShots: []types.AIShot{
				{X: 9, Y: 9, Result: "hit", Sunk: true, SunkPositions: []types.Position{{9, 9}}},
			}},
			want: []engine.MoveResult{
				{Actor: engine.RolePlayer1, Cell: engine.Cell{X: 4, Y: 4}, Outcome: engine.OutcomeMiss, Sunk: []engine.Cell{}, NextTurn: engine.RolePlayer2},
				{Actor: engine.RolePlayer2, Cell: engine.Cell{X: 9, Y: 9}, Outcome: engine.OutcomeHit, Sunk: []engine.Cell{{X: 9, Y: 9}}, GameOver: true, Winner: engine.RolePlayer2, NextTurn: engine.RolePlayer1},
			},
		},
		{
			name: "player sinks the last ship",
			res: types.AttackResponse{Result: "hit", Sunk: true, GameOver: true, Winner: "player1",
				ShipPositions: []types.Position{{4, 4}, {4, 5}}},
			want: []engine.MoveResult{
				{Actor: engine.RolePlayer1, Cell: engine.Cell{X: 4, Y: 4}, Outcome: engine.OutcomeHit,
					Sunk: []engine.Cell{{X: 4, Y: 4}, {X: 4, Y: 5}}, GameOver: true, Winner: engine.RolePlayer1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := aiMoves(engine.Cell{X: 4, Y: 4}, tt.res)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAIMovesRejectsUnknownResult(t *testing.T) {
	_, err := aiMoves(engine.Cell{}, types.AttackResponse{Result: "hit", AIShots: []types.AIShot{{Result: "boom"}}})
	assert.ErrorIs(t, err, engine.ErrMalformedEvent)
}

func TestMoveFromAttackUnknownNextTurn(t *testing.T) {
	mv, err := moveFromAttack(engine.RolePlayer2, engine.Cell{X: 1, Y: 2}, types.AttackResponse{Result: "hit", NextTurn: "ai"})
	require.NoError(t, err)
	assert.Equal(t, engine.RoleNone, mv.NextTurn)
	assert.Equal(t, engine.RolePlayer2, mv.Actor)
}

func TestStateEvent(t *testing.T) {
	ev, err := stateEvent(types.RoomStateResponse{
		Room: &types.Room{RoomCode: "abc123", Player1ID: "a", Player2ID: "b", Status: "active", HasGame: true},
		Game: &types.GameState{
			Status:            "active",
			CurrentTurn:       "player2",
			MyBoardHits:       []types.BoardMark{{X: 1, Y: 1, Type: "hit"}},
			OpponentBoardHits: []types.BoardMark{{X: 2, Y: 3, Type: "miss"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, engine.EvtStateSynced, ev.Kind)
	assert.Equal(t, "ABC123", ev.Room.Code)
	require.NotNil(t, ev.Game)
	assert.Equal(t, engine.RolePlayer2, ev.Game.CurrentTurn)
	assert.Equal(t, []engine.Mark{{Cell: engine.Cell{X: 1, Y: 1}, Outcome: engine.OutcomeHit}}, ev.Game.MyBoard)
	assert.Equal(t, []engine.Mark{{Cell: engine.Cell{X: 2, Y: 3}, Outcome: engine.OutcomeMiss}}, ev.Game.OpponentBoard)

	_, err = stateEvent(types.RoomStateResponse{})
	assert.ErrorIs(t, err, engine.ErrMalformedEvent)
	_, err = stateEvent(types.RoomStateResponse{Room: &types.Room{Status: "paused"}})
	assert.ErrorIs(t, err, engine.ErrMalformedEvent)
	_, err = stateEvent(types.RoomStateResponse{
		Room: &types.Room{Status: "active"},
		Game: &types.GameState{Status: "active", MyBoardHits: []types.BoardMark{{Type: "sunk"}}},
	})
	assert.ErrorIs(t, err, engine.ErrMalformedEvent)
}

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestDecodePush(t *testing.T) {
	room := &types.Room{RoomCode: "ABC123", Player1ID: "a", Player2ID: "b", Status: "placement", HasGame: true}

	in, err := decodePush(itypes.EvtPlacementStarted, raw(t, types.RoomEvent{Room: room, Message: "Place your ships"}))
	require.NoError(t, err)
	require.NotNil(t, in.ev)
	assert.Equal(t, engine.EvtPlacementStarted, in.ev.Kind)
	assert.Equal(t, engine.StatusPlacement, in.ev.Room.Status)

	in, err = decodePush(itypes.EvtRoomJoined, raw(t, map[string]string{"room_code": "ABC123", "player_id": "a"}))
	require.NoError(t, err)
	assert.Nil(t, in.ev)
	assert.True(t, in.fetch)

	in, err = decodePush(itypes.EvtPlayerLeft, raw(t, types.PlayerEvent{PlayerID: "b"}))
	require.NoError(t, err)
	assert.Equal(t, engine.EvtPlayerLeft, in.ev.Kind)
	assert.Equal(t, "b", in.ev.PlayerID)
	assert.True(t, in.fetch)

	in, err = decodePush(itypes.EvtMoveResult, raw(t, types.MoveResultEvent{
		Move:      types.Move{PlayerRole: "player2", X: 5, Y: 6, Result: "hit", Sunk: true, SunkPositions: []types.Position{{5, 6}}},
		GameState: types.MoveGameState{Status: "finished", Winner: "player2"},
	}))
	require.NoError(t, err)
	mv := in.ev.Move
	require.NotNil(t, mv)
	assert.Equal(t, engine.RolePlayer2, mv.Actor)
	assert.True(t, mv.GameOver)
	assert.Equal(t, []engine.Cell{{X: 5, Y: 6}}, mv.Sunk)

	in, err = decodePush(itypes.EvtMoveRejected, raw(t, types.MoveRejectedEvent{Message: "Not your turn"}))
	require.NoError(t, err)
	assert.Equal(t, "Not your turn", in.ev.Reason)
	assert.True(t, in.fetch, "no turn in the rejection means the turn must be fetched")

	in, err = decodePush(itypes.EvtError, raw(t, types.MessageEvent{Message: "Room is full"}))
	require.NoError(t, err)
	assert.Nil(t, in.ev)
	assert.Equal(t, "Server error: Room is full", in.note)
}

func TestDecodePushMalformed(t *testing.T) {
	tests := []struct {
		name  string
		event string
		data  json.RawMessage
	}{
		{"empty", itypes.EvtMoveResult, nil},
		{"not json", itypes.EvtPlayerLeft, json.RawMessage(`{`)},
		{"missing room", itypes.EvtPlayerReadyUpdate, json.RawMessage(`{"player_id":"a"}`)},
		{"bad actor", itypes.EvtMoveResult, json.RawMessage(`{"move":{"player_role":"ai","result":"hit"}}`)},
		{"bad outcome", itypes.EvtMoveResult, json.RawMessage(`{"move":{"player_role":"player1","result":"sunk"}}`)},
		{"battle without turn", itypes.EvtBattleStarted, json.RawMessage(`{"game":{"status":"active"}}`)},
		{"bad winner", itypes.EvtGameFinished, json.RawMessage(`{"winner":"nobody"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodePush(tt.event, tt.data)
			assert.ErrorIs(t, err, engine.ErrMalformedEvent)
		})
	}

	_, err := decodePush("pong", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, engine.ErrUnsupportedEvent)
}
