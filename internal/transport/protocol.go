package transport

import (
	"encoding/json"

	"github.com/liars-games/liarsdice/internal/dice"
	"github.com/liars-games/liarsdice/internal/liarsdice/room"
)

// Client requests carry a correlation id; the matching response echoes it.
// Broadcasts originate in the room engine and carry no id.
const (
	msgCreateRoom  = "createRoom"
	msgJoinRoom    = "joinRoom"
	msgReconnect   = "reconnectToRoom"
	msgStartGame   = "startGame"
	msgPlaceBid    = "placeBid"
	msgChallenge   = "challenge"
	msgResetGame   = "resetGame"
	msgResponse    = "response"
)

type clientEnvelope struct {
	ID   uint64          `json:"id"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type serverEnvelope struct {
	ID   uint64      `json:"id"`
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type createRoomRequest struct {
	PlayerName string `json:"playerName"`
}

type joinRoomRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type reconnectRequest struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName"`
}

type roomRequest struct {
	RoomCode string `json:"roomCode"`
}

type placeBidRequest struct {
	RoomCode string   `json:"roomCode"`
	Bid      dice.Bid `json:"bid"`
}

type response struct {
	Success    bool          `json:"success"`
	RoomCode   string        `json:"roomCode,omitempty"`
	PlayerID   string        `json:"playerId,omitempty"`
	Players    []room.Player `json:"players,omitempty"`
	GameState  room.Phase    `json:"gameState,omitempty"`
	TurnIndex  *int          `json:"turnIndex,omitempty"`
	CurrentBid *dice.Bid     `json:"currentBid,omitempty"`
	Error      string        `json:"error,omitempty"`
	Message    string        `json:"message,omitempty"`
}
