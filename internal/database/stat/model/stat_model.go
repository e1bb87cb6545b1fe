package model

import (
	"time"

	"github.com/google/uuid"
)

type Conclusion string

const (
	ConclusionWinner      Conclusion = "winner"
	ConclusionParticipant Conclusion = "participant"
)

func NewStat(playerName string) Stat {
	return Stat{ID: uuid.New(), PlayerName: playerName, Conclusion: ConclusionParticipant, CreatedAt: time.Now()}
}

// Stat is one player's record for one finished game.
type Stat struct {
	ID         uuid.UUID `json:"-"`
	PlayerName string    `json:"playerName"`

	RoomCode   string     `json:"roomCode"`
	Conclusion Conclusion `json:"conclusion"`
	PlayersNum int        `json:"playersNum"`

	ChallengesWon  int `json:"challengesWon"`
	ChallengesLost int `json:"challengesLost"`
	DiceLost       int `json:"diceLost"`

	CreatedAt time.Time `json:"createdAt"`
}

// AggregationStat is the profile view accumulated over all stored games.
type AggregationStat struct {
	Games          int `json:"games"`
	Wins           int `json:"wins"`
	ChallengesWon  int `json:"challengesWon"`
	ChallengesLost int `json:"challengesLost"`
	DiceLost       int `json:"diceLost"`
}
