// Package dice holds the pure rules of the game: rolling, bid validation,
// counting and challenge resolution. Nothing in here touches room state.
package dice

import "github.com/valyala/fastrand"

const (
	Sides = 6

	// MinBidValue is the lowest face a player may bid on; ones are wild and
	// can never be named directly.
	MinBidValue = 2

	// MaxEndgameBid caps the sum variant played when two players hold one
	// die each.
	MaxEndgameBid = 12
)

// Bid is a claim about the dice in play. In the normal phase Quantity dice of
// face Value are claimed; in the endgame phase only Value is meaningful and
// claims the sum of the two remaining dice.
type Bid struct {
	Quantity int `json:"quantity"`
	Value    int `json:"value"`
}

type Outcome string

const (
	// OutcomeSucceeded means the bid was a lie and the bidder loses a die.
	OutcomeSucceeded Outcome = "succeeded"
	// OutcomeFailed means the bid held up and the challenger loses a die.
	OutcomeFailed Outcome = "failed"
)

// Roll returns n independent uniform faces in [1, Sides].
func Roll(n int) []int {
	faces := make([]int, n)
	for i := range faces {
		faces[i] = int(fastrand.Uint32n(Sides)) + 1
	}

	return faces
}

// ValidBid reports whether next may replace current. A nil current means the
// opening bid of a round.
func ValidBid(next Bid, current *Bid, endgame bool) bool {
	if endgame {
		if next.Value < MinBidValue || next.Value > MaxEndgameBid {
			return false
		}
		if current == nil {
			return true
		}
		return next.Value > current.Value
	}

	if next.Quantity <= 0 || next.Value < MinBidValue || next.Value > Sides {
		return false
	}
	if current == nil {
		return true
	}
	if next.Quantity < current.Quantity {
		return false
	}
	if next.Quantity == current.Quantity {
		// Face six is the ceiling: at equal quantity there is no higher
		// value left, only a greater quantity can follow.
		if current.Value == Sides {
			return false
		}
		return next.Value > current.Value
	}

	return true
}

// CountMatching applies the wildcard rule: faces equal to value plus all
// ones.
func CountMatching(faces []int, value int) int {
	var n int
	for _, face := range faces {
		if face == value || face == 1 {
			n++
		}
	}

	return n
}

// Sum is the endgame "actual": total of the dice still in play.
func Sum(faces []int) int {
	var n int
	for _, face := range faces {
		n += face
	}

	return n
}

// Actual computes the number a challenge is judged against for the given
// faces and bid.
func Actual(faces []int, bid Bid, endgame bool) int {
	if endgame {
		return Sum(faces)
	}
	return CountMatching(faces, bid.Value)
}

// ResolveChallenge decides a challenge from the already-computed actual.
// Fully determined by its inputs.
func ResolveChallenge(actual int, bid Bid, endgame bool) Outcome {
	if endgame {
		if actual < bid.Value {
			return OutcomeSucceeded
		}
		return OutcomeFailed
	}

	if actual >= bid.Quantity {
		return OutcomeFailed
	}
	return OutcomeSucceeded
}
