package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/liars-games/liarsdice/internal/liarsdice"
	"github.com/liars-games/liarsdice/internal/liarsdice/room"
)

// rejections are deliberate rule refusals. Their text goes back to the
// client verbatim, everything else is logged and masked.
var rejections = []error{
	liarsdice.ErrRoomNotFound,
	liarsdice.ErrAlreadyInRoom,
	room.ErrGameStarted,
	room.ErrNameTaken,
	room.ErrNotEnoughPlayers,
	room.ErrWrongPhase,
	room.ErrNotYourTurn,
	room.ErrInvalidBid,
	room.ErrNoCurrentBid,
	room.ErrSelfChallenge,
	room.ErrPlayerNotFound,
}

func isRejection(err error) bool {
	for _, sentinel := range rejections {
		if errors.Is(err, sentinel) {
			return true
		}
	}

	return false
}

func (c *client) dispatch(ctx context.Context, raw []byte) {
	var envelope clientEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Infof("connection %s sent a malformed frame: %v", c.id, err)
		return
	}

	switch envelope.Type {
	case msgCreateRoom:
		c.handleCreateRoom(ctx, envelope)
	case msgJoinRoom:
		c.handleJoinRoom(ctx, envelope)
	case msgReconnect:
		c.handleReconnect(ctx, envelope)
	case msgStartGame:
		c.handleStartGame(envelope)
	case msgPlaceBid:
		c.handlePlaceBid(envelope)
	case msgChallenge:
		c.handleChallenge(envelope)
	case msgResetGame:
		c.handleResetGame(envelope)
	default:
		c.logger.Infof("connection %s sent unknown message type %q", c.id, envelope.Type)
	}
}

func (c *client) handleCreateRoom(ctx context.Context, envelope clientEnvelope) {
	var request createRoomRequest
	if err := json.Unmarshal(envelope.Data, &request); err != nil || request.PlayerName == "" {
		c.reply(envelope.ID, response{Success: false, Error: "player name required"})
		return
	}

	roomCode, players, err := c.manager.CreateRoom(ctx, c.id, request.PlayerName, c)
	if err != nil {
		c.reply(envelope.ID, response{Success: false, Error: c.rejectionText(envelope.Type, err)})
		return
	}

	c.reply(envelope.ID, response{
		Success:  true,
		RoomCode: roomCode,
		PlayerID: c.id,
		Players:  players,
	})
}

func (c *client) handleJoinRoom(ctx context.Context, envelope clientEnvelope) {
	var request joinRoomRequest
	if err := json.Unmarshal(envelope.Data, &request); err != nil || request.PlayerName == "" {
		c.reply(envelope.ID, response{Success: false, Message: "player name required"})
		return
	}

	players, err := c.manager.JoinRoom(ctx, c.id, request.RoomCode, request.PlayerName, c)
	if err != nil {
		if errors.Is(err, liarsdice.ErrRoomNotFound) || errors.Is(err, room.ErrGameStarted) {
			c.reply(envelope.ID, response{Success: false, Message: "Room not found or game already started"})
			return
		}

		c.reply(envelope.ID, response{Success: false, Message: c.rejectionText(envelope.Type, err)})
		return
	}

	c.reply(envelope.ID, response{
		Success:  true,
		PlayerID: c.id,
		Players:  players,
	})
}

func (c *client) handleReconnect(ctx context.Context, envelope clientEnvelope) {
	var request reconnectRequest
	if err := json.Unmarshal(envelope.Data, &request); err != nil || request.PlayerName == "" {
		c.reply(envelope.ID, response{Success: false, Error: "player name required"})
		return
	}

	snapshot, err := c.manager.Reconnect(ctx, c.id, request.RoomCode, request.PlayerName, c)
	if err != nil {
		c.reply(envelope.ID, response{Success: false, Error: c.rejectionText(envelope.Type, err)})
		return
	}

	turnIdx := snapshot.TurnIndex
	c.reply(envelope.ID, response{
		Success:    true,
		Players:    snapshot.Players,
		GameState:  snapshot.GameState,
		TurnIndex:  &turnIdx,
		CurrentBid: snapshot.CurrentBid,
	})
}

func (c *client) handleStartGame(envelope clientEnvelope) {
	var request roomRequest
	if err := json.Unmarshal(envelope.Data, &request); err != nil {
		c.reply(envelope.ID, response{Success: false, Message: "room code required"})
		return
	}

	if err := c.manager.StartGame(request.RoomCode, c.id); err != nil {
		c.reply(envelope.ID, response{Success: false, Message: c.rejectionText(envelope.Type, err)})
		return
	}

	c.reply(envelope.ID, response{Success: true})
}

func (c *client) handlePlaceBid(envelope clientEnvelope) {
	var request placeBidRequest
	if err := json.Unmarshal(envelope.Data, &request); err != nil {
		c.reply(envelope.ID, response{Success: false, Error: "bid required"})
		return
	}

	if err := c.manager.PlaceBid(request.RoomCode, c.id, request.Bid); err != nil {
		c.reply(envelope.ID, response{Success: false, Error: c.rejectionText(envelope.Type, err)})
		return
	}

	c.reply(envelope.ID, response{Success: true})
}

func (c *client) handleChallenge(envelope clientEnvelope) {
	var request roomRequest
	if err := json.Unmarshal(envelope.Data, &request); err != nil {
		c.reply(envelope.ID, response{Success: false, Error: "room code required"})
		return
	}

	if err := c.manager.Challenge(request.RoomCode, c.id); err != nil {
		c.reply(envelope.ID, response{Success: false, Error: c.rejectionText(envelope.Type, err)})
		return
	}

	c.reply(envelope.ID, response{Success: true})
}

func (c *client) handleResetGame(envelope clientEnvelope) {
	var request roomRequest
	if err := json.Unmarshal(envelope.Data, &request); err != nil {
		c.reply(envelope.ID, response{Success: false, Error: "room code required"})
		return
	}

	if err := c.manager.ResetGame(request.RoomCode, c.id); err != nil {
		c.reply(envelope.ID, response{Success: false, Error: c.rejectionText(envelope.Type, err)})
		return
	}

	c.reply(envelope.ID, response{Success: true})
}

func (c *client) rejectionText(msgType string, err error) string {
	if isRejection(err) {
		return err.Error()
	}

	c.logger.Errorf("connection %s: %s failed: %v", c.id, msgType, err)

	return "unknown error"
}

func (c *client) reply(id uint64, resp response) {
	data, err := json.Marshal(serverEnvelope{ID: id, Type: msgResponse, Data: resp})
	if err != nil {
		c.logger.Errorf("marshal response for connection %s: %v", c.id, err)
		return
	}

	if !c.Send(data) {
		c.logger.Infof("connection %s dropped a response frame", c.id)
	}
}
