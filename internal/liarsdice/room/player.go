package room

// Sink is the outbound half of a player's connection. Send must not block:
// it reports false when the message was dropped because the connection is
// gone or its buffer is full.
type Sink interface {
	Send(data []byte) bool
	Close()
}

// Player is one seat in the room roster. The roster order is the turn order
// and is only ever resized by eviction, never by elimination.
type Player struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Dice       []int  `json:"dice"`
	DiceCount  int    `json:"diceCount"`
	Connected  bool   `json:"connected"`
	Eliminated bool   `json:"eliminated"`

	sink Sink

	challengesWon  int
	challengesLost int
	diceLost       int
}

func (p *Player) active() bool {
	return p.Connected && !p.Eliminated
}
