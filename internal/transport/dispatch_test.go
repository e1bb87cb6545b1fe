package transport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/liars-games/liarsdice/internal/liarsdice"
)

func newTestManager() *liarsdice.Manager {
	return liarsdice.NewManager(&liarsdice.Config{
		StartingDice:      5,
		GracePeriod:       time.Hour,
		EvictAfter:        2 * time.Hour,
		SweepInterval:     time.Hour,
		IdleRetention:     time.Hour,
		FinishedRetention: time.Hour,
	}, nil)
}

func newTestClient(manager *liarsdice.Manager, id string) *client {
	return &client{
		id:      id,
		manager: manager,
		logger:  zap.NewNop().Sugar(),
		limiter: rate.NewLimiter(rate.Inf, 0),
		send:    make(chan []byte, 16),
		done:    make(chan struct{}),
	}
}

func request(t *testing.T, id uint64, msgType string, data interface{}) []byte {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	frame, err := json.Marshal(clientEnvelope{ID: id, Type: msgType, Data: raw})
	require.NoError(t, err)

	return frame
}

func nextResponse(t *testing.T, c *client) (uint64, response) {
	t.Helper()

	// Room broadcasts share the send channel with responses; skip them.
	deadline := time.After(time.Second)
	for {
		select {
		case frame := <-c.send:
			var envelope struct {
				ID   uint64          `json:"id"`
				Type string          `json:"type"`
				Data json.RawMessage `json:"data"`
			}
			require.NoError(t, json.Unmarshal(frame, &envelope))
			if envelope.Type != msgResponse {
				continue
			}
			var resp response
			require.NoError(t, json.Unmarshal(envelope.Data, &resp))
			return envelope.ID, resp
		case <-deadline:
			t.Fatal("no response enqueued")
			return 0, response{}
		}
	}
}

func TestDispatchCreateRoom(t *testing.T) {
	t.Parallel()

	c := newTestClient(newTestManager(), "conn-1")
	c.dispatch(context.Background(), request(t, 7, msgCreateRoom, createRoomRequest{PlayerName: "alice"}))

	id, resp := nextResponse(t, c)
	assert.Equal(t, uint64(7), id)
	require.True(t, resp.Success)
	assert.Len(t, resp.RoomCode, 6)
	assert.Equal(t, "conn-1", resp.PlayerID)
	require.Len(t, resp.Players, 1)
	assert.Equal(t, "alice", resp.Players[0].Name)
}

func TestDispatchCreateRoomRequiresName(t *testing.T) {
	t.Parallel()

	c := newTestClient(newTestManager(), "conn-1")
	c.dispatch(context.Background(), request(t, 1, msgCreateRoom, createRoomRequest{}))

	_, resp := nextResponse(t, c)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
}

func TestDispatchJoinUnknownRoom(t *testing.T) {
	t.Parallel()

	c := newTestClient(newTestManager(), "conn-1")
	c.dispatch(context.Background(), request(t, 2, msgJoinRoom, joinRoomRequest{RoomCode: "ZZZZZZ", PlayerName: "bob"}))

	_, resp := nextResponse(t, c)
	assert.False(t, resp.Success)
	assert.Equal(t, "Room not found or game already started", resp.Message)
}

func TestDispatchJoinAndStart(t *testing.T) {
	t.Parallel()

	manager := newTestManager()
	ctx := context.Background()

	host := newTestClient(manager, "conn-1")
	host.dispatch(ctx, request(t, 1, msgCreateRoom, createRoomRequest{PlayerName: "alice"}))
	_, created := nextResponse(t, host)
	require.True(t, created.Success)

	guest := newTestClient(manager, "conn-2")
	guest.dispatch(ctx, request(t, 2, msgJoinRoom, joinRoomRequest{RoomCode: created.RoomCode, PlayerName: "bob"}))
	_, joined := nextResponse(t, guest)
	require.True(t, joined.Success)
	assert.Equal(t, "conn-2", joined.PlayerID)
	assert.Len(t, joined.Players, 2)

	host.dispatch(ctx, request(t, 3, msgStartGame, roomRequest{RoomCode: created.RoomCode}))
	_, started := nextResponse(t, host)
	assert.True(t, started.Success)
}

func TestDispatchStartGameRejectsSolo(t *testing.T) {
	t.Parallel()

	manager := newTestManager()
	ctx := context.Background()

	c := newTestClient(manager, "conn-1")
	c.dispatch(ctx, request(t, 1, msgCreateRoom, createRoomRequest{PlayerName: "alice"}))
	_, created := nextResponse(t, c)
	require.True(t, created.Success)

	c.dispatch(ctx, request(t, 2, msgStartGame, roomRequest{RoomCode: created.RoomCode}))
	_, started := nextResponse(t, c)
	assert.False(t, started.Success)
	assert.Equal(t, "not enough players", started.Message)
}

func TestDispatchReconnect(t *testing.T) {
	t.Parallel()

	manager := newTestManager()
	ctx := context.Background()

	host := newTestClient(manager, "conn-1")
	host.dispatch(ctx, request(t, 1, msgCreateRoom, createRoomRequest{PlayerName: "alice"}))
	_, created := nextResponse(t, host)
	require.True(t, created.Success)

	guest := newTestClient(manager, "conn-2")
	guest.dispatch(ctx, request(t, 2, msgJoinRoom, joinRoomRequest{RoomCode: created.RoomCode, PlayerName: "bob"}))
	_, joined := nextResponse(t, guest)
	require.True(t, joined.Success)

	manager.Disconnect("conn-2")

	revenant := newTestClient(manager, "conn-3")
	revenant.dispatch(ctx, request(t, 3, msgReconnect, reconnectRequest{RoomCode: created.RoomCode, PlayerName: "bob"}))
	_, resp := nextResponse(t, revenant)
	require.True(t, resp.Success)
	require.NotNil(t, resp.TurnIndex)
	assert.Len(t, resp.Players, 2)
}

func TestDispatchMalformedFrame(t *testing.T) {
	t.Parallel()

	c := newTestClient(newTestManager(), "conn-1")
	c.dispatch(context.Background(), []byte("{nope"))
	c.dispatch(context.Background(), request(t, 1, "teleport", roomRequest{}))

	select {
	case frame := <-c.send:
		t.Fatalf("unexpected frame %s", frame)
	default:
	}
}

func TestSendAfterClose(t *testing.T) {
	t.Parallel()

	c := newTestClient(newTestManager(), "conn-1")
	assert.True(t, c.Send([]byte("x")))

	close(c.done)
	assert.False(t, c.Send([]byte("x")))
}
