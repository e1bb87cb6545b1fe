package liarsdice

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/liars-games/liarsdice/internal/dice"
)

type nopSink struct {
	mtx    sync.Mutex
	closed bool
}

func (s *nopSink) Send(data []byte) bool {
	return true
}

func (s *nopSink) Close() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.closed = true
}

func testManagerConfig() *Config {
	return &Config{
		StartingDice:      5,
		GracePeriod:       time.Hour,
		EvictAfter:        2 * time.Hour,
		SweepInterval:     time.Hour,
		IdleRetention:     time.Minute,
		FinishedRetention: time.Minute,
	}
}

func TestGenerateRoomCode(t *testing.T) {
	t.Parallel()

	seen := map[string]struct{}{}
	for i := 0; i < 1000; i++ {
		code := generateRoomCode()
		require.Len(t, code, codeLength)
		for _, c := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, c), "unexpected rune %q", c)
		}
		seen[code] = struct{}{}
	}

	// 32^6 codes, a thousand draws should essentially never collide.
	assert.Greater(t, len(seen), 990)
}

func TestCreateAndJoinRoom(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	code, players, err := m.CreateRoom(ctx, "conn-1", "alice", &nopSink{})
	require.NoError(t, err)
	require.Len(t, players, 1)
	require.Len(t, code, codeLength)
	assert.Equal(t, 1, m.RoomCount())

	players, err = m.JoinRoom(ctx, "conn-2", code, "bob", &nopSink{})
	require.NoError(t, err)
	assert.Len(t, players, 2)
}

func TestCreateRoomRejectsSecondRoom(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	_, _, err := m.CreateRoom(ctx, "conn-1", "alice", &nopSink{})
	require.NoError(t, err)

	_, _, err = m.CreateRoom(ctx, "conn-9", "alice", &nopSink{})
	assert.ErrorIs(t, err, ErrAlreadyInRoom)
	assert.Equal(t, 1, m.RoomCount())
}

func TestJoinRoomUnknownCode(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)

	_, err := m.JoinRoom(context.Background(), "conn-1", "ZZZZZZ", "alice", &nopSink{})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestJoinRoomRejectsSeatedIdentity(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	codeA, _, err := m.CreateRoom(ctx, "conn-1", "alice", &nopSink{})
	require.NoError(t, err)
	codeB, _, err := m.CreateRoom(ctx, "conn-2", "bob", &nopSink{})
	require.NoError(t, err)

	_, err = m.JoinRoom(ctx, "conn-3", codeB, "alice", &nopSink{})
	assert.ErrorIs(t, err, ErrAlreadyInRoom)

	// Rejoining the room the identity already belongs to is a name clash,
	// not a cross-room conflict.
	_, err = m.JoinRoom(ctx, "conn-4", codeA, "alice", &nopSink{})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyInRoom)
}

func TestJoinRoomConcurrentDuplicateIdentity(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	codeA, _, err := m.CreateRoom(ctx, "conn-host-a", "hostA", &nopSink{})
	require.NoError(t, err)
	codeB, _, err := m.CreateRoom(ctx, "conn-host-b", "hostB", &nopSink{})
	require.NoError(t, err)

	// The same identity racing into two rooms must land exactly one seat.
	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("mallory-%d", i)
		errs := make([]error, 2)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, errs[0] = m.JoinRoom(ctx, "conn-a-"+name, codeA, name, &nopSink{})
		}()
		go func() {
			defer wg.Done()
			_, errs[1] = m.JoinRoom(ctx, "conn-b-"+name, codeB, name, &nopSink{})
		}()
		wg.Wait()

		joined := 0
		for _, err := range errs {
			if err == nil {
				joined++
			}
		}
		require.Equal(t, 1, joined, "identity %s joined %d rooms", name, joined)

		seated := 0
		for _, code := range []string{codeA, codeB} {
			r, err := m.lookup(code)
			require.NoError(t, err)
			for _, seatName := range r.PlayerNames() {
				if seatName == name {
					seated++
				}
			}
		}
		require.Equal(t, 1, seated, "identity %s holds %d seats", name, seated)
	}
}

func TestGameFlowThroughManager(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	code, _, err := m.CreateRoom(ctx, "conn-1", "alice", &nopSink{})
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, "conn-2", code, "bob", &nopSink{})
	require.NoError(t, err)

	require.NoError(t, m.StartGame(code, "conn-1"))

	r, err := m.lookup(code)
	require.NoError(t, err)

	turn := r.State().TurnIndex
	connID := "conn-1"
	other := "conn-2"
	if r.State().Players[turn].Name == "bob" {
		connID, other = other, connID
	}

	require.NoError(t, m.PlaceBid(code, connID, dice.Bid{Quantity: 1, Value: 2}))
	require.NoError(t, m.Challenge(code, other))
	assert.NoError(t, m.ResetGame(code, connID))

	assert.ErrorIs(t, m.PlaceBid("ZZZZZZ", connID, dice.Bid{Quantity: 1, Value: 2}), ErrRoomNotFound)
}

func TestDisconnectAndReconnect(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	code, _, err := m.CreateRoom(ctx, "conn-1", "alice", &nopSink{})
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, "conn-2", code, "bob", &nopSink{})
	require.NoError(t, err)
	require.NoError(t, m.StartGame(code, "conn-1"))

	m.Disconnect("conn-2")

	snapshot, err := m.Reconnect(ctx, "conn-2b", code, "bob", &nopSink{})
	require.NoError(t, err)
	require.Len(t, snapshot.Players, 2)
	for _, p := range snapshot.Players {
		if p.Name == "bob" {
			assert.True(t, p.Connected)
			assert.Equal(t, "conn-2b", p.ID)
		}
	}

	// Unknown connections are ignored.
	m.Disconnect("conn-unknown")
}

func TestReconnectUnknownRoom(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)

	_, err := m.Reconnect(context.Background(), "conn-1", "ZZZZZZ", "alice", &nopSink{})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSweepCollectsAbandonedRooms(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	code, _, err := m.CreateRoom(ctx, "conn-1", "alice", &nopSink{})
	require.NoError(t, err)

	logger := zap.NewNop().Sugar()

	// A room with a connected player is never collected.
	m.sweepOnce(time.Now().Add(time.Hour), logger)
	assert.Equal(t, 1, m.RoomCount())

	m.Disconnect("conn-1")

	m.sweepOnce(time.Now(), logger)
	assert.Equal(t, 1, m.RoomCount())

	m.sweepOnce(time.Now().Add(2*time.Minute), logger)
	assert.Equal(t, 0, m.RoomCount())

	// The identity indexes are released with the room.
	_, _, err = m.CreateRoom(ctx, "conn-1b", "alice", &nopSink{})
	require.NoError(t, err)
	_, err = m.JoinRoom(ctx, "conn-x", code, "carol", &nopSink{})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSweepReleasesEveryIndexOfTheRoom(t *testing.T) {
	t.Parallel()

	m := NewManager(testManagerConfig(), nil)
	ctx := context.Background()

	code, _, err := m.CreateRoom(ctx, "conn-1", "alice", &nopSink{})
	require.NoError(t, err)
	m.Disconnect("conn-1")

	// An index entry gained after the room went idle, as a join racing the
	// sweep would leave behind.
	m.mtx.Lock()
	m.playerRooms["straggler"] = code
	m.conns["conn-straggler"] = seatRef{roomCode: code, playerName: "straggler"}
	m.mtx.Unlock()

	m.sweepOnce(time.Now().Add(2*time.Minute), zap.NewNop().Sugar())
	require.Equal(t, 0, m.RoomCount())

	// The straggler's name is free again.
	_, _, err = m.CreateRoom(ctx, "conn-2", "straggler", &nopSink{})
	require.NoError(t, err)

	m.mtx.RLock()
	_, connHeld := m.conns["conn-straggler"]
	m.mtx.RUnlock()
	assert.False(t, connHeld)
}
