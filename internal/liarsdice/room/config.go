package room

import "time"

type Config struct {
	Code string

	// StartingDice is the dice count every seat begins with.
	StartingDice int

	// GracePeriod is how long a disconnected player keeps their turn before
	// it is forfeited. EvictAfter is how long the seat itself is held open.
	GracePeriod time.Duration
	EvictAfter  time.Duration

	// IdleRetention and FinishedRetention bound how long the registry sweep
	// keeps a room with no connected players, or a finished one, alive.
	IdleRetention     time.Duration
	FinishedRetention time.Duration

	// DoneFn receives the game summary when the room reaches game over.
	DoneFn func(summary Summary) error

	// EvictFn is called after a seat is permanently removed, so the registry
	// can drop its identity indexes.
	EvictFn func(code, playerName string)
}

// Summary is handed to DoneFn once per finished game.
type Summary struct {
	Code    string
	Winner  string
	Players []PlayerSummary
}

type PlayerSummary struct {
	Name           string
	Winner         bool
	ChallengesWon  int
	ChallengesLost int
	DiceLost       int
}
