package room

import "github.com/liars-games/liarsdice/internal/dice"

// Broadcast message types, room-scoped and fire-and-forget.
const (
	EventRoomUpdate         = "roomUpdate"
	EventPlayerJoined       = "playerJoined"
	EventPlayerLeft         = "playerLeft"
	EventPlayerDisconnected = "playerDisconnected"
	EventPlayerReconnected  = "playerReconnected"
	EventGameStarted        = "gameStarted"
	EventBidPlaced          = "bidPlaced"
	EventChallengeResult    = "challengeResult"
	EventNewRound           = "newRound"
	EventGameOver           = "gameOver"
	EventGameReset          = "gameReset"
)

type eventEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Snapshot is the full observable room state, sent to reconnecting clients
// and broadcast as roomUpdate.
type Snapshot struct {
	Players    []Player  `json:"players"`
	GameState  Phase     `json:"gameState"`
	TurnIndex  int       `json:"turnIndex"`
	CurrentBid *dice.Bid `json:"currentBid"`
}

type playerJoinedEvent struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type playerLeftEvent struct {
	PlayerID        string `json:"playerId"`
	PlayerName      string `json:"playerName"`
	NextPlayerIndex int    `json:"nextPlayerIndex"`
}

type playerDisconnectedEvent struct {
	PlayerName  string `json:"playerName"`
	PlayerIndex int    `json:"playerIndex"`
	// ReconnectGracePeriod is reported in milliseconds.
	ReconnectGracePeriod int64 `json:"reconnectGracePeriod"`
}

type playerReconnectedEvent struct {
	PlayerName  string `json:"playerName"`
	PlayerIndex int    `json:"playerIndex"`
}

type gameStartedEvent struct {
	Players   []Player `json:"players"`
	TurnIndex int      `json:"turnIndex"`
}

type bidPlacedEvent struct {
	Bid             dice.Bid `json:"bid"`
	NextPlayerIndex int      `json:"nextPlayerIndex"`
	PlayerName      string   `json:"playerName"`
	PlayerID        string   `json:"playerId"`
}

type challengeResultEvent struct {
	Players         []Player     `json:"players"`
	Outcome         dice.Outcome `json:"outcome"`
	ActualCount     int          `json:"actualCount"`
	Bid             dice.Bid     `json:"bid"`
	LoserName       string       `json:"loserName"`
	ChallengerName  string       `json:"challengerName"`
	BidderName      string       `json:"bidderName"`
	ChallengerIndex int          `json:"challengerIndex"`
	BidderIndex     int          `json:"bidderIndex"`
	LoserIndex      int          `json:"loserIndex"`
}

type newRoundEvent struct {
	Players    []Player  `json:"players"`
	TurnIndex  int       `json:"turnIndex"`
	CurrentBid *dice.Bid `json:"currentBid"`
}

type winner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type gameOverEvent struct {
	Winner winner `json:"winner"`
	Reason string `json:"reason"`
}

type gameResetEvent struct {
	Players   []Player `json:"players"`
	TurnIndex int      `json:"turnIndex"`
	GameState Phase    `json:"gameState"`
}
