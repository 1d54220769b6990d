package trust

import "tokenwatch.org/internal/token"

const (
	// disputeQuorum is the minimum vote count before the dispute
	// predicate is evaluated.
	disputeQuorum = 3
	// disputedScoreCap caps the trust score of a disputed token.
	disputedScoreCap = 40
)

// TradeSide is the direction of a trade event.
type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// Valid reports whether the side is buy or sell.
func (s TradeSide) Valid() bool { return s == TradeBuy || s == TradeSell }

// EvaluateDispute recomputes the dispute state from a tally. Disputed when
// at least disputeQuorum votes exist and disagrees outnumber agrees; the
// score is then capped at disputedScoreCap. When the predicate is false the
// flag clears but the score is not restored.
func EvaluateDispute(tally token.VoteTally, score int) (newScore int, disputed bool) {
	if tally.Total() >= disputeQuorum && tally.Disagree > tally.Agree {
		if score > disputedScoreCap {
			score = disputedScoreCap
		}
		return token.ClampScore(score), true
	}
	return token.ClampScore(score), false
}

// ApplyTrade shifts the score by one point in the trade direction, clamped
// to [0,100]. Each call is a one-shot delta, not resubmission-safe.
func ApplyTrade(score int, side TradeSide) int {
	switch side {
	case TradeBuy:
		return token.ClampScore(score + 1)
	case TradeSell:
		return token.ClampScore(score - 1)
	}
	return token.ClampScore(score)
}
