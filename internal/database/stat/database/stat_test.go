package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/liars-games/liarsdice/internal/cache/cachelru"
	"github.com/liars-games/liarsdice/internal/database"
	"github.com/liars-games/liarsdice/internal/database/stat/model"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()

	bdb, err := bolt.Open(filepath.Join(t.TempDir(), "stat-test.db"), 0o600, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = bdb.Close()
	})

	lru, err := cachelru.NewLRU(16)
	require.NoError(t, err)

	return New(&database.DB{DB: bdb}, lru)
}

func TestFetchByPlayerNameEmpty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	_, err := db.FetchByPlayerName("nobody")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddAndFetch(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	stat := model.NewStat("alice")
	stat.RoomCode = "AAAAAA"
	stat.Conclusion = model.ConclusionWinner
	stat.PlayersNum = 3
	stat.ChallengesWon = 2
	stat.DiceLost = 1
	require.NoError(t, db.Add(stat))

	list, err := db.FetchByPlayerName("alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "AAAAAA", list[0].RoomCode)
	assert.Equal(t, model.ConclusionWinner, list[0].Conclusion)

	// Second read is served from the cache and must agree.
	cached, err := db.FetchByPlayerName("alice")
	require.NoError(t, err)
	assert.Equal(t, list, cached)
}

func TestAddInvalidatesCache(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	require.NoError(t, db.Add(model.NewStat("bob")))
	first, err := db.FetchByPlayerName("bob")
	require.NoError(t, err)
	require.Len(t, first, 1)

	require.NoError(t, db.Add(model.NewStat("bob")))
	second, err := db.FetchByPlayerName("bob")
	require.NoError(t, err)
	assert.Len(t, second, 2)
}

func TestFetchProfileStat(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)

	win := model.NewStat("carol")
	win.Conclusion = model.ConclusionWinner
	win.ChallengesWon = 3
	win.ChallengesLost = 1
	win.DiceLost = 2
	require.NoError(t, db.Add(win))

	loss := model.NewStat("carol")
	loss.ChallengesLost = 4
	loss.DiceLost = 5
	require.NoError(t, db.Add(loss))

	agg, err := db.FetchProfileStat("carol")
	require.NoError(t, err)
	assert.Equal(t, 2, agg.Games)
	assert.Equal(t, 1, agg.Wins)
	assert.Equal(t, 3, agg.ChallengesWon)
	assert.Equal(t, 5, agg.ChallengesLost)
	assert.Equal(t, 7, agg.DiceLost)
}
