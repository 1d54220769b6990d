package trust

import (
	"testing"

	"tokenwatch.org/internal/token"
)

func TestEvaluateDispute(t *testing.T) {
	cases := []struct {
		name      string
		tally     token.VoteTally
		score     int
		wantScore int
		wantFlag  bool
	}{
		{"below quorum", token.VoteTally{Agree: 0, Disagree: 2}, 90, 90, false},
		{"quorum but agrees win", token.VoteTally{Agree: 2, Disagree: 1}, 90, 90, false},
		{"quorum tie", token.VoteTally{Agree: 2, Disagree: 2}, 90, 90, false},
		{"disputed caps score", token.VoteTally{Agree: 1, Disagree: 2}, 90, 40, true},
		{"disputed keeps lower score", token.VoteTally{Agree: 0, Disagree: 3}, 25, 25, true},
		{"clear does not restore", token.VoteTally{Agree: 3, Disagree: 2}, 40, 40, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			score, flag := EvaluateDispute(tc.tally, tc.score)
			if score != tc.wantScore || flag != tc.wantFlag {
				t.Fatalf("got (%d,%t), want (%d,%t)", score, flag, tc.wantScore, tc.wantFlag)
			}
		})
	}
}

func TestEvaluateDisputeIdempotent(t *testing.T) {
	tally := token.VoteTally{Agree: 1, Disagree: 2}
	score, flag := EvaluateDispute(tally, 88)
	again, againFlag := EvaluateDispute(tally, score)
	if again != score || againFlag != flag {
		t.Fatalf("recomputation drifted: (%d,%t) then (%d,%t)", score, flag, again, againFlag)
	}
}

func TestApplyTrade(t *testing.T) {
	if got := ApplyTrade(40, TradeSell); got != 39 {
		t.Fatalf("sell at 40: got %d, want 39", got)
	}
	if got := ApplyTrade(0, TradeSell); got != 0 {
		t.Fatalf("sell at floor: got %d, want 0", got)
	}
	if got := ApplyTrade(100, TradeBuy); got != 100 {
		t.Fatalf("buy at ceiling: got %d, want 100", got)
	}
	if got := ApplyTrade(99, TradeBuy); got != 100 {
		t.Fatalf("buy at 99: got %d, want 100", got)
	}
}

func TestTradeSideValid(t *testing.T) {
	if !TradeBuy.Valid() || !TradeSell.Valid() {
		t.Fatal("buy/sell must be valid")
	}
	if TradeSide("hold").Valid() {
		t.Fatal("hold must be invalid")
	}
}
