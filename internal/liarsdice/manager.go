// Package liarsdice holds the room registry and the connection session
// layer: one process-wide map from room code to room, plus the identity
// indexes used to reject duplicate seats and to route reconnects.
package liarsdice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	statDb "github.com/liars-games/liarsdice/internal/database/stat/database"
	statModel "github.com/liars-games/liarsdice/internal/database/stat/model"
	"github.com/liars-games/liarsdice/internal/dice"
	"github.com/liars-games/liarsdice/internal/liarsdice/room"
	"github.com/liars-games/liarsdice/internal/logging"
	"github.com/valyala/fastrand"
	"go.uber.org/zap"
)

var (
	ErrRoomNotFound  = errors.New("room not found")
	ErrAlreadyInRoom = errors.New("player already has an active room")
)

// codeAlphabet avoids faces that read ambiguously when typed from a screen.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
)

type seatRef struct {
	roomCode   string
	playerName string
}

func NewManager(config *Config, statDb *statDb.DB) *Manager {
	return &Manager{
		config:      config,
		statDb:      statDb,
		rooms:       map[string]*room.Room{},
		playerRooms: map[string]string{},
		conns:       map[string]seatRef{},
	}
}

type Manager struct {
	mtx sync.RWMutex

	config *Config
	statDb *statDb.DB
	// key: room code
	rooms map[string]*room.Room
	// key: player name holding an active seat
	playerRooms map[string]string
	// key: connection id
	conns map[string]seatRef
}

// CreateRoom allocates a fresh room with the caller as its first seat.
func (m *Manager) CreateRoom(ctx context.Context, connID, playerName string, sink room.Sink) (string, []room.Player, error) {
	m.mtx.Lock()
	if code, ok := m.playerRooms[playerName]; ok {
		m.mtx.Unlock()
		return code, nil, ErrAlreadyInRoom
	}

	code := generateRoomCode()
	for {
		if _, ok := m.rooms[code]; !ok {
			break
		}
		code = generateRoomCode()
	}

	r := room.New(ctx, room.Config{
		Code:              code,
		StartingDice:      m.config.StartingDice,
		GracePeriod:       m.config.GracePeriod,
		EvictAfter:        m.config.EvictAfter,
		IdleRetention:     m.config.IdleRetention,
		FinishedRetention: m.config.FinishedRetention,
		DoneFn:            m.appendStat,
		EvictFn:           m.dropSeatIndex,
	})
	m.rooms[code] = r
	m.playerRooms[playerName] = code
	m.conns[connID] = seatRef{roomCode: code, playerName: playerName}
	m.mtx.Unlock()

	players, err := r.Join(connID, playerName, sink)
	if err != nil {
		// Cannot happen on a fresh room; unwind the indexes anyway.
		m.mtx.Lock()
		delete(m.rooms, code)
		delete(m.playerRooms, playerName)
		delete(m.conns, connID)
		m.mtx.Unlock()
		return "", nil, fmt.Errorf("join fresh room: %w", err)
	}

	logging.FromContext(ctx).Named("manager").Infof("Room %s created by %s", code, playerName)
	return code, players, nil
}

// JoinRoom seats a new identity in an existing waiting room. The identity
// index is reserved under the write lock before the seat is taken, so two
// concurrent joins under the same name can never both pass the guard; a
// failed join releases the reservation.
func (m *Manager) JoinRoom(ctx context.Context, connID, roomCode, playerName string, sink room.Sink) ([]room.Player, error) {
	m.mtx.Lock()
	r, ok := m.rooms[roomCode]
	if !ok {
		m.mtx.Unlock()
		return nil, ErrRoomNotFound
	}
	boundCode, bound := m.playerRooms[playerName]
	if bound && boundCode != roomCode {
		m.mtx.Unlock()
		return nil, ErrAlreadyInRoom
	}
	m.playerRooms[playerName] = roomCode
	m.conns[connID] = seatRef{roomCode: roomCode, playerName: playerName}
	m.mtx.Unlock()

	players, err := r.Join(connID, playerName, sink)
	if err != nil {
		m.mtx.Lock()
		// Keep the index when the identity already held a seat here.
		if !bound && m.playerRooms[playerName] == roomCode {
			delete(m.playerRooms, playerName)
		}
		delete(m.conns, connID)
		m.mtx.Unlock()
		return nil, err
	}

	logging.FromContext(ctx).Named("manager").Infof("Player %s joined room %s", playerName, roomCode)
	return players, nil
}

// Reconnect rebinds a seated identity to a new connection. Idempotent: a
// repeated call with the same identity only refreshes the binding.
func (m *Manager) Reconnect(ctx context.Context, connID, roomCode, playerName string, sink room.Sink) (room.Snapshot, error) {
	r, err := m.lookup(roomCode)
	if err != nil {
		return room.Snapshot{}, err
	}

	snapshot, err := r.Reconnect(playerName, connID, sink)
	if err != nil {
		return room.Snapshot{}, err
	}

	m.mtx.Lock()
	m.playerRooms[playerName] = roomCode
	m.conns[connID] = seatRef{roomCode: roomCode, playerName: playerName}
	m.mtx.Unlock()

	logging.FromContext(ctx).Named("manager").Infof("Player %s reconnected to room %s", playerName, roomCode)
	return snapshot, nil
}

func (m *Manager) StartGame(roomCode, connID string) error {
	r, err := m.lookup(roomCode)
	if err != nil {
		return err
	}
	return r.Start(connID)
}

func (m *Manager) PlaceBid(roomCode, connID string, bid dice.Bid) error {
	r, err := m.lookup(roomCode)
	if err != nil {
		return err
	}
	return r.PlaceBid(connID, bid)
}

func (m *Manager) Challenge(roomCode, connID string) error {
	r, err := m.lookup(roomCode)
	if err != nil {
		return err
	}
	return r.Challenge(connID)
}

func (m *Manager) ResetGame(roomCode, connID string) error {
	r, err := m.lookup(roomCode)
	if err != nil {
		return err
	}
	return r.Reset(connID)
}

// Disconnect routes a transport-level drop to the owning room. The seat
// itself survives until the room's grace timers decide otherwise.
func (m *Manager) Disconnect(connID string) {
	m.mtx.Lock()
	ref, ok := m.conns[connID]
	delete(m.conns, connID)
	m.mtx.Unlock()

	if !ok {
		return
	}

	if r, err := m.lookup(ref.roomCode); err == nil {
		r.Disconnect(connID)
	}
}

// Sweep periodically evicts rooms with nobody left in them and finished
// rooms past their retention window.
func (m *Manager) Sweep(ctx context.Context) error {
	logger := logging.FromContext(ctx).Named("manager.sweep")
	ticker := time.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			m.sweepOnce(now, logger)
		}
	}
}

func (m *Manager) RoomCount() int {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return len(m.rooms)
}

func (m *Manager) sweepOnce(now time.Time, logger *zap.SugaredLogger) {
	m.mtx.RLock()
	candidates := make([]*room.Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		candidates = append(candidates, r)
	}
	m.mtx.RUnlock()

	for _, r := range candidates {
		if !r.Expired(now) {
			continue
		}

		code := r.Code()

		// The indexes are walked by value under the lock: a seat taken
		// after the expiry check still gets its entries released.
		m.mtx.Lock()
		delete(m.rooms, code)
		for name, bound := range m.playerRooms {
			if bound == code {
				delete(m.playerRooms, name)
			}
		}
		for connID, ref := range m.conns {
			if ref.roomCode == code {
				delete(m.conns, connID)
			}
		}
		m.mtx.Unlock()

		r.Close()
		logger.Infof("Swept abandoned room %s", code)
	}
}

func (m *Manager) lookup(roomCode string) (*room.Room, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	r, ok := m.rooms[roomCode]
	if !ok {
		return nil, ErrRoomNotFound
	}

	return r, nil
}

// dropSeatIndex is handed to each room as its EvictFn.
func (m *Manager) dropSeatIndex(roomCode, playerName string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	if m.playerRooms[playerName] == roomCode {
		delete(m.playerRooms, playerName)
	}
}

// appendStat persists one record per seat of a finished game.
func (m *Manager) appendStat(summary room.Summary) error {
	if m.statDb == nil {
		return nil
	}

	for _, p := range summary.Players {
		stat := statModel.NewStat(p.Name)
		stat.RoomCode = summary.Code
		stat.PlayersNum = len(summary.Players)
		stat.ChallengesWon = p.ChallengesWon
		stat.ChallengesLost = p.ChallengesLost
		stat.DiceLost = p.DiceLost
		if p.Winner {
			stat.Conclusion = statModel.ConclusionWinner
		}

		if err := m.statDb.Add(stat); err != nil {
			return fmt.Errorf("stat db add: %w", err)
		}
	}

	return nil
}

func generateRoomCode() string {
	code := make([]byte, codeLength)
	for i := range code {
		code[i] = codeAlphabet[fastrand.Uint32n(uint32(len(codeAlphabet)))]
	}

	return string(code)
}
