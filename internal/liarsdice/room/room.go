// Package room owns one game room: roster, turn pointer, current bid and
// phase. Every mutating action runs to completion under the room mutex, so
// two actions against the same room can never interleave; rooms share
// nothing, so distinct rooms proceed in parallel.
package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/liars-games/liarsdice/internal/dice"
	"github.com/liars-games/liarsdice/internal/logging"
	"github.com/valyala/fastrand"
	"go.uber.org/zap"
)

type Phase uint8

const (
	PhaseWaiting Phase = iota + 1
	PhasePlaying
	PhaseGameOver
)

func (p Phase) String() string {
	switch p {
	case PhaseWaiting:
		return "waiting"
	case PhasePlaying:
		return "playing"
	case PhaseGameOver:
		return "gameOver"
	}
	return "unknown"
}

func (p Phase) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Phase) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	switch s {
	case "waiting":
		*p = PhaseWaiting
	case "playing":
		*p = PhasePlaying
	case "gameOver":
		*p = PhaseGameOver
	default:
		return fmt.Errorf("unknown game state %q", s)
	}

	return nil
}

var (
	ErrGameStarted      = errors.New("game already started")
	ErrNameTaken        = errors.New("name already taken in this room")
	ErrNotEnoughPlayers = errors.New("not enough players")
	ErrWrongPhase       = errors.New("invalid game state")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidBid       = errors.New("invalid bid")
	ErrNoCurrentBid     = errors.New("no bid to challenge")
	ErrSelfChallenge    = errors.New("cannot challenge your own bid")
	ErrPlayerNotFound   = errors.New("player not found in room")
)

type seatTimers struct {
	forfeit *time.Timer
	evict   *time.Timer
}

type Room struct {
	config Config
	logger *zap.SugaredLogger

	mtx           sync.Mutex
	phase         Phase
	players       []*Player
	turnIdx       int
	currentBid    *dice.Bid
	lastBidderIdx int
	timers        map[string]*seatTimers

	createdAt  time.Time
	emptySince time.Time
	finishedAt time.Time
}

func New(ctx context.Context, config Config) *Room {
	return &Room{
		config:        config,
		logger:        logging.FromContext(ctx).Named("room"),
		phase:         PhaseWaiting,
		lastBidderIdx: -1,
		timers:        map[string]*seatTimers{},
		createdAt:     time.Now(),
	}
}

func (r *Room) Code() string {
	return r.config.Code
}

// Join seats a new player. Only possible before the game starts.
func (r *Room) Join(playerID, name string, sink Sink) ([]Player, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.phase != PhaseWaiting {
		return nil, ErrGameStarted
	}

	for _, p := range r.players {
		if p.Name == name {
			return nil, ErrNameTaken
		}
	}

	player := &Player{
		ID:        playerID,
		Name:      name,
		Dice:      []int{},
		DiceCount: r.config.StartingDice,
		Connected: true,
		sink:      sink,
	}
	r.players = append(r.players, player)
	r.updatePresenceLocked()

	r.logger.Infof("Player %s joined room %s, %d seated", name, r.config.Code, len(r.players))
	r.broadcastLocked(EventPlayerJoined, playerJoinedEvent{ID: playerID, Name: name})
	r.broadcastLocked(EventRoomUpdate, r.stateLocked())

	return r.rosterLocked(), nil
}

// Start rolls every seat's dice, picks a random first player and moves the
// room to the playing phase.
func (r *Room) Start(playerID string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.phase != PhaseWaiting {
		return ErrWrongPhase
	}
	if len(r.players) < 2 {
		return ErrNotEnoughPlayers
	}
	if _, _, ok := r.seatOfLocked(playerID); !ok {
		return ErrPlayerNotFound
	}

	for _, p := range r.players {
		p.Dice = dice.Roll(p.DiceCount)
	}

	r.phase = PhasePlaying
	r.currentBid = nil
	r.lastBidderIdx = -1
	r.turnIdx = r.randomActiveLocked()

	r.logger.Infof("Game started in room %s with %d players", r.config.Code, len(r.players))
	r.broadcastLocked(EventGameStarted, gameStartedEvent{Players: r.rosterLocked(), TurnIndex: r.turnIdx})

	return nil
}

// PlaceBid validates and applies the bid of the player at the turn pointer,
// then advances the turn. On rejection no state changes.
func (r *Room) PlaceBid(playerID string, bid dice.Bid) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.phase != PhasePlaying {
		return ErrWrongPhase
	}

	seat, player, ok := r.seatOfLocked(playerID)
	if !ok {
		return ErrPlayerNotFound
	}
	if seat != r.turnIdx {
		return ErrNotYourTurn
	}
	if !dice.ValidBid(bid, r.currentBid, r.endgameLocked()) {
		return ErrInvalidBid
	}

	r.currentBid = &bid
	r.lastBidderIdx = seat
	r.turnIdx = r.advanceLocked(seat)

	r.logger.Infof("Bid %dx%d by %s in room %s, next seat %d",
		bid.Quantity, bid.Value, player.Name, r.config.Code, r.turnIdx)
	r.broadcastLocked(EventBidPlaced, bidPlacedEvent{
		Bid:             bid,
		NextPlayerIndex: r.turnIdx,
		PlayerName:      player.Name,
		PlayerID:        player.ID,
	})

	return nil
}

// Challenge resolves the current bid against the dice actually in play. The
// loser gives up one die; the room then either finishes or starts a new
// round with the loser opening.
func (r *Room) Challenge(playerID string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.phase != PhasePlaying {
		return ErrWrongPhase
	}

	seat, challenger, ok := r.seatOfLocked(playerID)
	if !ok {
		return ErrPlayerNotFound
	}
	if seat != r.turnIdx {
		return ErrNotYourTurn
	}
	if r.currentBid == nil || r.lastBidderIdx < 0 {
		return ErrNoCurrentBid
	}
	if seat == r.lastBidderIdx {
		// Only a stale client can produce this; reject without mutation.
		return ErrSelfChallenge
	}

	endgame := r.endgameLocked()
	bid := *r.currentBid
	bidderIdx := r.lastBidderIdx
	bidder := r.players[bidderIdx]

	actual := dice.Actual(r.facesInPlayLocked(), bid, endgame)
	outcome := dice.ResolveChallenge(actual, bid, endgame)

	loserIdx := seat
	if outcome == dice.OutcomeSucceeded {
		loserIdx = bidderIdx
	}
	loser := r.players[loserIdx]
	loser.DiceCount--
	loser.diceLost++
	loser.challengesLost++
	if loserIdx == seat {
		bidder.challengesWon++
	} else {
		challenger.challengesWon++
	}
	if loser.DiceCount <= 0 {
		loser.Eliminated = true
	}

	r.logger.Infof("Challenge in room %s: %s vs %s, actual %d against %dx%d, %s loses a die",
		r.config.Code, challenger.Name, bidder.Name, actual, bid.Quantity, bid.Value, loser.Name)
	r.broadcastLocked(EventChallengeResult, challengeResultEvent{
		Players:         r.rosterLocked(),
		Outcome:         outcome,
		ActualCount:     actual,
		Bid:             bid,
		LoserName:       loser.Name,
		ChallengerName:  challenger.Name,
		BidderName:      bidder.Name,
		ChallengerIndex: seat,
		BidderIndex:     bidderIdx,
		LoserIndex:      loserIdx,
	})

	if len(r.activeSeatsLocked()) <= 1 {
		r.finishLocked()
		return nil
	}

	r.newRoundLocked(loserIdx)
	return nil
}

// Reset brings every seat back to the starting dice count and deals a fresh
// game.
func (r *Room) Reset(playerID string) error {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if _, _, ok := r.seatOfLocked(playerID); !ok {
		return ErrPlayerNotFound
	}

	for _, p := range r.players {
		p.DiceCount = r.config.StartingDice
		p.Eliminated = false
		p.Dice = dice.Roll(p.DiceCount)
	}

	r.phase = PhasePlaying
	r.currentBid = nil
	r.lastBidderIdx = -1
	r.finishedAt = time.Time{}
	r.turnIdx = r.randomActiveLocked()

	r.logger.Infof("Game reset in room %s", r.config.Code)
	r.broadcastLocked(EventGameReset, gameResetEvent{
		Players:   r.rosterLocked(),
		TurnIndex: r.turnIdx,
		GameState: r.phase,
	})

	return nil
}

// Disconnect marks the seat of the given connection as away and arms the
// forfeit and eviction timers. It reports whether the connection owned a
// seat here.
func (r *Room) Disconnect(playerID string) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	seat, player, ok := r.seatOfLocked(playerID)
	if !ok || !player.Connected {
		return false
	}

	player.Connected = false
	player.sink = nil
	r.updatePresenceLocked()

	name := player.Name
	r.stopTimersLocked(name)
	r.timers[name] = &seatTimers{
		forfeit: time.AfterFunc(r.config.GracePeriod, func() { r.forfeitTurn(name) }),
		evict:   time.AfterFunc(r.config.EvictAfter, func() { r.evictSeat(name) }),
	}

	r.logger.Infof("Player %s disconnected from room %s, %s to reconnect",
		name, r.config.Code, r.config.GracePeriod)
	r.broadcastLocked(EventPlayerDisconnected, playerDisconnectedEvent{
		PlayerName:           name,
		PlayerIndex:          seat,
		ReconnectGracePeriod: r.config.GracePeriod.Milliseconds(),
	})

	return true
}

// Reconnect rebinds a seated identity to a new connection and returns the
// full state snapshot for re-synchronization. Safe to call repeatedly.
func (r *Room) Reconnect(name, playerID string, sink Sink) (Snapshot, error) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	seat, player, ok := r.seatByNameLocked(name)
	if !ok {
		return Snapshot{}, ErrPlayerNotFound
	}

	r.stopTimersLocked(name)
	player.ID = playerID
	player.Connected = true
	player.sink = sink
	r.updatePresenceLocked()

	r.logger.Infof("Player %s reconnected to room %s", name, r.config.Code)
	r.broadcastLocked(EventPlayerReconnected, playerReconnectedEvent{PlayerName: name, PlayerIndex: seat})
	r.broadcastLocked(EventRoomUpdate, r.stateLocked())

	return r.stateLocked(), nil
}

// State returns a consistent snapshot for responses.
func (r *Room) State() Snapshot {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	return r.stateLocked()
}

// Expired reports whether the sweep may collect this room.
func (r *Room) Expired(now time.Time) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	if r.phase == PhaseGameOver && !r.finishedAt.IsZero() &&
		now.Sub(r.finishedAt) > r.config.FinishedRetention {
		return true
	}

	return !r.emptySince.IsZero() && now.Sub(r.emptySince) > r.config.IdleRetention
}

// PlayerNames lists the seated identities, for registry index cleanup.
func (r *Room) PlayerNames() []string {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	names := make([]string, len(r.players))
	for i, p := range r.players {
		names[i] = p.Name
	}

	return names
}

// Close stops all timers and drops the remaining connections.
func (r *Room) Close() {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	for name := range r.timers {
		r.stopTimersLocked(name)
	}
	for _, p := range r.players {
		if p.sink != nil {
			p.sink.Close()
			p.sink = nil
		}
	}
}

// forfeitTurn fires when the grace period lapses while the absent player
// still holds the turn. It re-checks the disconnect state under the room
// lock: a reconnect that won the race leaves the turn alone.
func (r *Room) forfeitTurn(name string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	seat, player, ok := r.seatByNameLocked(name)
	if !ok || player.Connected {
		return
	}
	if r.phase != PhasePlaying || r.turnIdx != seat {
		return
	}

	r.turnIdx = r.advanceLocked(seat)
	r.logger.Infof("Player %s forfeits the turn in room %s, next seat %d", name, r.config.Code, r.turnIdx)
	r.broadcastLocked(EventRoomUpdate, r.stateLocked())
}

// evictSeat fires when the seat hold expires: the player is removed from the
// roster permanently and every stored index is fixed up.
func (r *Room) evictSeat(name string) {
	if !r.removeSeat(name) {
		return
	}
	if r.config.EvictFn != nil {
		r.config.EvictFn(r.config.Code, name)
	}
}

func (r *Room) removeSeat(name string) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	seat, player, ok := r.seatByNameLocked(name)
	if !ok || player.Connected {
		return false
	}

	r.stopTimersLocked(name)
	r.players = append(r.players[:seat], r.players[seat+1:]...)
	r.updatePresenceLocked()

	bidderEvicted := false
	switch {
	case r.lastBidderIdx == seat:
		bidderEvicted = true
		r.lastBidderIdx = -1
	case r.lastBidderIdx > seat:
		r.lastBidderIdx--
	}
	turnHeld := r.turnIdx == seat
	if r.turnIdx > seat {
		r.turnIdx--
	}
	if turnHeld {
		r.turnIdx = r.nextActiveFromLocked(seat)
	}

	r.logger.Infof("Player %s evicted from room %s after grace expiry", name, r.config.Code)
	r.broadcastLocked(EventPlayerLeft, playerLeftEvent{
		PlayerID:        player.ID,
		PlayerName:      name,
		NextPlayerIndex: r.turnIdx,
	})

	if r.phase != PhasePlaying {
		r.broadcastLocked(EventRoomUpdate, r.stateLocked())
		return true
	}

	if len(r.activeSeatsLocked()) <= 1 {
		r.finishLocked()
		return true
	}

	if bidderEvicted && r.currentBid != nil {
		// The bid on the table has no owner anymore; abort the round.
		r.newRoundLocked(r.turnIdx)
		return true
	}

	r.broadcastLocked(EventRoomUpdate, r.stateLocked())
	return true
}

// newRoundLocked re-deals the surviving seats. The loser of the previous
// challenge opens, unless they are gone.
func (r *Room) newRoundLocked(loserIdx int) {
	r.currentBid = nil
	r.lastBidderIdx = -1

	for _, p := range r.players {
		if p.Eliminated {
			p.Dice = []int{}
			continue
		}
		p.Dice = dice.Roll(p.DiceCount)
	}

	if loserIdx >= 0 && loserIdx < len(r.players) && r.players[loserIdx].active() {
		r.turnIdx = loserIdx
	} else {
		r.turnIdx = r.nextActiveFromLocked(loserIdx)
	}

	r.logger.Infof("New round in room %s, seat %d opens", r.config.Code, r.turnIdx)
	r.broadcastLocked(EventNewRound, newRoundEvent{
		Players:    r.rosterLocked(),
		TurnIndex:  r.turnIdx,
		CurrentBid: nil,
	})
}

func (r *Room) finishLocked() {
	r.phase = PhaseGameOver
	r.finishedAt = time.Now()
	r.currentBid = nil
	r.lastBidderIdx = -1

	var champ *Player
	for _, p := range r.players {
		if p.active() {
			champ = p
			break
		}
	}
	if champ == nil {
		for _, p := range r.players {
			if !p.Eliminated {
				champ = p
				break
			}
		}
	}

	event := gameOverEvent{Reason: "game over"}
	summary := Summary{Code: r.config.Code}
	if champ != nil {
		event.Winner = winner{ID: champ.ID, Name: champ.Name}
		event.Reason = fmt.Sprintf("%s wins!", champ.Name)
		summary.Winner = champ.Name
	}
	for _, p := range r.players {
		summary.Players = append(summary.Players, PlayerSummary{
			Name:           p.Name,
			Winner:         champ != nil && p == champ,
			ChallengesWon:  p.challengesWon,
			ChallengesLost: p.challengesLost,
			DiceLost:       p.diceLost,
		})
	}

	r.logger.Infof("Game over in room %s: %s", r.config.Code, event.Reason)
	r.broadcastLocked(EventGameOver, event)

	if r.config.DoneFn != nil {
		// Stat persistence must not block the transition.
		go func() {
			if err := r.config.DoneFn(summary); err != nil {
				r.logger.Errorf("done function: %v", err)
			}
		}()
	}
}

// endgameLocked reports the sum-bidding variant: two surviving seats, one
// die each.
func (r *Room) endgameLocked() bool {
	var survivors []*Player
	for _, p := range r.players {
		if !p.Eliminated {
			survivors = append(survivors, p)
		}
	}
	if len(survivors) != 2 {
		return false
	}
	return survivors[0].DiceCount == 1 && survivors[1].DiceCount == 1
}

func (r *Room) facesInPlayLocked() []int {
	var faces []int
	for _, p := range r.players {
		if p.Eliminated {
			continue
		}
		faces = append(faces, p.Dice...)
	}

	return faces
}

func (r *Room) activeSeatsLocked() []int {
	var seats []int
	for i, p := range r.players {
		if p.active() {
			seats = append(seats, i)
		}
	}

	return seats
}

// advanceLocked returns the next seat after from that can act, wrapping
// around and skipping eliminated or disconnected players.
func (r *Room) advanceLocked(from int) int {
	n := len(r.players)
	for i := 1; i <= n; i++ {
		idx := (from + i) % n
		if r.players[idx].active() {
			return idx
		}
	}

	return from
}

// nextActiveFromLocked scans forward starting at the given seat inclusive.
func (r *Room) nextActiveFromLocked(from int) int {
	n := len(r.players)
	if n == 0 {
		return 0
	}
	if from < 0 || from >= n {
		from = 0
	}
	for i := 0; i < n; i++ {
		idx := (from + i) % n
		if r.players[idx].active() {
			return idx
		}
	}

	return from
}

func (r *Room) randomActiveLocked() int {
	seats := r.activeSeatsLocked()
	if len(seats) == 0 {
		return 0
	}

	return seats[fastrand.Uint32n(uint32(len(seats)))]
}

func (r *Room) seatOfLocked(playerID string) (int, *Player, bool) {
	for i, p := range r.players {
		if p.ID == playerID {
			return i, p, true
		}
	}

	return 0, nil, false
}

func (r *Room) seatByNameLocked(name string) (int, *Player, bool) {
	for i, p := range r.players {
		if p.Name == name {
			return i, p, true
		}
	}

	return 0, nil, false
}

func (r *Room) stopTimersLocked(name string) {
	timers, ok := r.timers[name]
	if !ok {
		return
	}
	timers.forfeit.Stop()
	timers.evict.Stop()
	delete(r.timers, name)
}

func (r *Room) updatePresenceLocked() {
	var connected int
	for _, p := range r.players {
		if p.Connected {
			connected++
		}
	}

	if connected == 0 {
		if r.emptySince.IsZero() {
			r.emptySince = time.Now()
		}
		return
	}
	r.emptySince = time.Time{}
}

func (r *Room) rosterLocked() []Player {
	players := make([]Player, len(r.players))
	for i, p := range r.players {
		cp := *p
		cp.Dice = append([]int(nil), p.Dice...)
		cp.sink = nil
		players[i] = cp
	}

	return players
}

func (r *Room) stateLocked() Snapshot {
	snapshot := Snapshot{
		Players:   r.rosterLocked(),
		GameState: r.phase,
		TurnIndex: r.turnIdx,
	}
	if r.currentBid != nil {
		bid := *r.currentBid
		snapshot.CurrentBid = &bid
	}

	return snapshot
}

func (r *Room) broadcastLocked(event string, data interface{}) {
	raw, err := json.Marshal(eventEnvelope{Type: event, Data: data})
	if err != nil {
		r.logger.Errorf("marshal %s event: %v", event, err)
		return
	}

	for _, p := range r.players {
		if p.sink == nil || !p.Connected {
			continue
		}
		if !p.sink.Send(raw) {
			r.logger.Debugf("room %s: %s event dropped for slow player %s", r.config.Code, event, p.Name)
		}
	}
}
