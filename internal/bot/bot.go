// Package bot picks moves for a computer seat. The heuristic only looks at
// the seat's own dice and the public table state, never at hidden hands.
package bot

import (
	"github.com/valyala/fastrand"

	"github.com/liars-games/liarsdice/internal/dice"
)

// Move is either a challenge of the standing bid or a new bid.
type Move struct {
	Challenge bool
	Bid       *dice.Bid
}

// Decide returns the computer move for the seat holding ownDice. totalDice
// counts every die still in play at the table. When there is no standing
// bid currentBid is nil and the move is always an opening bid.
func Decide(ownDice []int, totalDice int, currentBid *dice.Bid, endgame bool) Move {
	if len(ownDice) == 0 {
		// A seat without dice has no information to bid on.
		if currentBid != nil {
			return Move{Challenge: true}
		}
		return Move{Bid: &dice.Bid{Quantity: 1, Value: dice.MinBidValue}}
	}

	if endgame {
		return endgameMove(ownDice, currentBid)
	}

	return normalMove(ownDice, totalDice, currentBid)
}

func endgameMove(ownDice []int, currentBid *dice.Bid) Move {
	ownDie := ownDice[0]

	if currentBid == nil {
		value := ownDie + int(fastrand.Uint32n(3)) + 1
		if value > dice.MaxEndgameBid {
			value = dice.MaxEndgameBid
		}

		return Move{Bid: &dice.Bid{Quantity: 1, Value: value}}
	}

	// At twelve there is no higher sum left to bid.
	if currentBid.Value >= dice.MaxEndgameBid {
		return Move{Challenge: true}
	}

	challengeProbability := float64(currentBid.Value-ownDie) / float64(dice.MaxEndgameBid)
	if rand01() < challengeProbability {
		return Move{Challenge: true}
	}

	value := currentBid.Value + 1
	if value > dice.MaxEndgameBid {
		value = dice.MaxEndgameBid
	}

	return Move{Bid: &dice.Bid{Quantity: 1, Value: value}}
}

func normalMove(ownDice []int, totalDice int, currentBid *dice.Bid) Move {
	scale := float64(totalDice) / float64(len(ownDice))

	if currentBid == nil {
		best, count := mostCommonValue(ownDice)
		quantity := int(float64(count) * scale * 0.8)
		if quantity < 1 {
			quantity = 1
		}

		return Move{Bid: &dice.Bid{Quantity: quantity, Value: best}}
	}

	ownCount := dice.CountMatching(ownDice, currentBid.Value)
	estimatedTotal := int(float64(ownCount)*scale + 0.5)
	confidence := 0.6 + rand01()*0.2

	if float64(estimatedTotal) < float64(currentBid.Quantity)*confidence {
		challengeProbability := 1 - float64(estimatedTotal)/(float64(currentBid.Quantity)*confidence)
		if rand01() < challengeProbability {
			return Move{Challenge: true}
		}
	}

	next := raiseBid(*currentBid)

	// Back an overreaching raise off toward the standing quantity.
	probability := float64(next.Quantity) / float64(totalDice) * perDieChance(next.Value)
	if probability > 0.8 {
		reduced := int(float64(next.Quantity) * 0.8)
		if reduced < currentBid.Quantity {
			reduced = currentBid.Quantity
		}
		next.Quantity = reduced
	}

	// Raising the value past six or backing off the quantity can land on
	// the standing bid again. Raising the quantity always stays legal.
	if !dice.ValidBid(next, currentBid, false) {
		next = dice.Bid{Quantity: currentBid.Quantity + 1, Value: currentBid.Value}
	}

	return Move{Bid: &next}
}

func raiseBid(current dice.Bid) dice.Bid {
	risk := rand01()

	switch {
	case risk < 0.4:
		return dice.Bid{Quantity: current.Quantity + 1, Value: current.Value}
	case risk < 0.7:
		return dice.Bid{Quantity: current.Quantity, Value: bumpValue(current.Value)}
	default:
		return dice.Bid{Quantity: current.Quantity + 1, Value: bumpValue(current.Value)}
	}
}

func bumpValue(value int) int {
	if value >= dice.Sides {
		return dice.Sides
	}

	return value + 1
}

// mostCommonValue skips face one: ones are wild and cannot be bid on, they
// already count toward every other face.
func mostCommonValue(ownDice []int) (int, int) {
	best, bestCount := dice.MinBidValue, -1
	for value := dice.MinBidValue; value <= dice.Sides; value++ {
		count := dice.CountMatching(ownDice, value)
		if count > bestCount {
			best, bestCount = value, count
		}
	}

	return best, bestCount
}

// BidProbability estimates how likely a bid is to hold given only the
// seat's own dice, assuming an even spread behind the other cups.
func BidProbability(bid dice.Bid, ownDice []int, totalDice int) float64 {
	ownMatches := dice.CountMatching(ownDice, bid.Value)
	remaining := totalDice - len(ownDice)
	expectedOtherMatches := float64(remaining) * perDieChance(bid.Value)

	return (float64(ownMatches) + expectedOtherMatches) / float64(bid.Quantity)
}

func perDieChance(value int) float64 {
	chance := 1.0 / 6.0
	if value == 1 {
		chance += 1.0 / 6.0
	}

	return chance
}

func rand01() float64 {
	return float64(fastrand.Uint32()) / float64(1<<32)
}
