package liarsdice

import (
	"time"

	"github.com/liars-games/liarsdice/internal/database"
)

type Config struct {
	// Logging all transitions at debug level
	Debug bool `envconfig:"LIARS_DEBUG" default:"false"`

	// Port on which health check, stats API and the websocket endpoint are
	// launched
	Port string `envconfig:"LIARS_PORT" default:"3002"`

	// profile port
	ProfPort string `envconfig:"LIARS_PROF_PORT" default:"8888"`

	// Origin allowed to open websocket connections
	AllowedOrigin string `envconfig:"LIARS_ALLOWED_ORIGIN" default:"http://localhost:3000"`

	// Number of items in the stat cache
	CacheSize int `envconfig:"LIARS_CACHE_SIZE" default:"1024"`

	// Dice every seat starts with
	StartingDice int `envconfig:"LIARS_STARTING_DICE" default:"5"`

	// How long a disconnected player keeps their turn
	GracePeriod time.Duration `envconfig:"LIARS_RECONNECT_GRACE" default:"90s"`

	// How long a disconnected player keeps their seat
	EvictAfter time.Duration `envconfig:"LIARS_EVICT_AFTER" default:"3m"`

	// Abandoned-room sweep cadence and retention windows
	SweepInterval     time.Duration `envconfig:"LIARS_SWEEP_INTERVAL" default:"2m"`
	IdleRetention     time.Duration `envconfig:"LIARS_IDLE_RETENTION" default:"5m"`
	FinishedRetention time.Duration `envconfig:"LIARS_FINISHED_RETENTION" default:"10m"`

	Db database.Config
}
