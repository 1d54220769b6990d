package trust

import (
	"context"
	"errors"
	"sync"
	"testing"

	"tokenwatch.org/internal/audit"
	"tokenwatch.org/internal/token"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *token.Memory) {
	t.Helper()
	store := token.NewMemory()
	return New(store, opts...), store
}

func TestMintDefaults(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tok, err := s.Mint(ctx, "DemoCoin", "DEMO", "")
	if err != nil {
		t.Fatal(err)
	}
	if tok.TrustScore < 85 || tok.TrustScore > 94 {
		t.Fatalf("initial score %d outside [85,94]", tok.TrustScore)
	}
	if tok.IsDisputed {
		t.Fatal("fresh token must not be disputed")
	}
	if tok.TokenID == "" || tok.PolicyID == "" {
		t.Fatalf("missing identifiers: %+v", tok)
	}
	if tok.Source != token.SourceSimulation {
		t.Fatalf("unexpected source %q", tok.Source)
	}

	audits, err := s.Audits(ctx, tok.TokenID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(audits) != 1 || audits[0].Action != audit.ActionMint {
		t.Fatalf("expected one MINT entry, got %v", audits)
	}
}

func TestMintValidation(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.Mint(context.Background(), "", "DEMO", ""); !errors.Is(err, token.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if _, err := s.Mint(context.Background(), "DemoCoin", "  ", ""); !errors.Is(err, token.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestMintRoundTrip(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	minted, err := s.Mint(ctx, "DemoCoin", "DEMO", "creator-1")
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Token(ctx, minted.TokenID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "DemoCoin" || got.Symbol != "DEMO" || got.PolicyID != minted.PolicyID {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestDisputeScenario(t *testing.T) {
	s, _ := newTestService(t, WithScoreSource(func() int { return 90 }))
	ctx := context.Background()

	tok, err := s.Mint(ctx, "DemoCoin", "DEMO", "")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Vote(ctx, tok.TokenID, token.VoteDisagree, "w1"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Vote(ctx, tok.TokenID, token.VoteDisagree, "w2"); err != nil {
		t.Fatal(err)
	}
	tally, err := s.Vote(ctx, tok.TokenID, token.VoteAgree, "w3")
	if err != nil {
		t.Fatal(err)
	}

	if tally.Agree != 1 || tally.Disagree != 2 {
		t.Fatalf("tally = %+v, want {1,2}", tally)
	}

	got, err := s.Token(ctx, tok.TokenID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsDisputed {
		t.Fatal("token should be disputed at 3 votes with disagree majority")
	}
	if got.TrustScore != 40 {
		t.Fatalf("score = %d, want 40", got.TrustScore)
	}
}

func TestDisputeClearDoesNotRestoreScore(t *testing.T) {
	s, _ := newTestService(t, WithScoreSource(func() int { return 90 }))
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")
	s.mustVote(t, tok.TokenID, token.VoteDisagree, token.VoteDisagree, token.VoteAgree)

	// Two more agrees flip the majority; flag clears, score stays capped.
	s.mustVote(t, tok.TokenID, token.VoteAgree, token.VoteAgree)

	got, err := s.Token(ctx, tok.TokenID)
	if err != nil {
		t.Fatal(err)
	}
	if got.IsDisputed {
		t.Fatal("dispute should clear once agrees outnumber disagrees")
	}
	if got.TrustScore != 40 {
		t.Fatalf("score restored to %d; the cap must persist", got.TrustScore)
	}
}

func (s *Service) mustVote(t *testing.T, tokenID string, kinds ...token.VoteKind) {
	t.Helper()
	for _, k := range kinds {
		if _, err := s.Vote(context.Background(), tokenID, k, ""); err != nil {
			t.Fatal(err)
		}
	}
}

func TestVoteValidation(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.Vote(context.Background(), "tok_x", token.VoteKind("abstain"), ""); !errors.Is(err, token.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTallyReconcilesWithAuditTrail(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")
	votes := []token.VoteKind{
		token.VoteAgree, token.VoteDisagree, token.VoteAgree,
		token.VoteAgree, token.VoteDisagree,
	}
	s.mustVote(t, tok.TokenID, votes...)

	tally, err := s.Tally(ctx, tok.TokenID)
	if err != nil {
		t.Fatal(err)
	}
	if tally.Total() != len(votes) {
		t.Fatalf("tally total %d, want %d", tally.Total(), len(votes))
	}

	entries, err := s.Audits(ctx, tok.TokenID, 100)
	if err != nil {
		t.Fatal(err)
	}
	voteEntries := 0
	for _, e := range entries {
		if e.Action == audit.ActionVote {
			voteEntries++
		}
	}
	if voteEntries != tally.Total() {
		t.Fatalf("audit trail has %d VOTE entries, tally says %d", voteEntries, tally.Total())
	}
}

func TestTallyReadIdempotent(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")
	s.mustVote(t, tok.TokenID, token.VoteAgree)

	first, err := s.Tally(ctx, tok.TokenID)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Tally(ctx, tok.TokenID)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("tally changed between reads: %+v vs %+v", first, second)
	}
}

func TestTradeAdjustsScore(t *testing.T) {
	s, _ := newTestService(t, WithScoreSource(func() int { return 40 }))
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")

	res, err := s.Trade(ctx, tok.TokenID, TradeSell, 100, "trader-1")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewTrustScore != 39 {
		t.Fatalf("sell at 40: score %d, want 39", res.NewTrustScore)
	}
	if res.Fill.Quantity != 100 || res.Fill.TxID == "" {
		t.Fatalf("unexpected fill: %+v", res.Fill)
	}

	got, _ := s.Token(ctx, tok.TokenID)
	if got.IsDisputed {
		t.Fatal("trade must not touch the dispute flag")
	}
}

func TestTradeUnknownToken(t *testing.T) {
	s, _ := newTestService(t)
	if _, err := s.Trade(context.Background(), "tok_missing", TradeBuy, 1, ""); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTradeClampsAtBounds(t *testing.T) {
	s, _ := newTestService(t, WithScoreSource(func() int { return 100 }))
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")
	res, err := s.Trade(ctx, tok.TokenID, TradeBuy, 5, "")
	if err != nil {
		t.Fatal(err)
	}
	if res.NewTrustScore != 100 {
		t.Fatalf("buy at ceiling: score %d, want 100", res.NewTrustScore)
	}
}

func TestWhistleUnknownTokenLeavesNoTrace(t *testing.T) {
	s, store := newTestService(t)
	ctx := context.Background()

	_, err := s.Whistle(ctx, "tok_missing", "looks rugged", "addr1")
	if !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	entries, _ := store.ListAudit(ctx, "", 100)
	if len(entries) != 0 {
		t.Fatalf("audit trail should be empty, got %d entries", len(entries))
	}
	reports, _ := store.ListReports(ctx, "tok_missing")
	if len(reports) != 0 {
		t.Fatalf("no report should be stored, got %d", len(reports))
	}
}

func TestWhistleKnownToken(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")
	receipt, err := s.Whistle(ctx, tok.TokenID, "dev wallet dumped", "addr1")
	if err != nil {
		t.Fatal(err)
	}
	if receipt.ReportID == "" {
		t.Fatal("missing report id")
	}
	if !receipt.Proof.Simulated {
		t.Fatal("proof bundle must be labelled simulated")
	}

	entries, err := s.Audits(ctx, tok.TokenID, 100)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, e := range entries {
		if e.Action == audit.ActionZKWhistleblower {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a ZK_WHISTLEBLOWER_REPORT audit entry")
	}

	reports, err := s.Reports(ctx, tok.TokenID)
	if err != nil {
		t.Fatal(err)
	}
	if len(reports) != 1 || reports[0].ReporterID != "zk_anonymous" {
		t.Fatalf("unexpected reports: %v", reports)
	}
}

func TestConcurrentVotesAndTradesLoseNoUpdates(t *testing.T) {
	s, _ := newTestService(t, WithScoreSource(func() int { return 90 }))
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")

	var wg sync.WaitGroup
	const n = 50
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Vote(ctx, tok.TokenID, token.VoteAgree, "")
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Trade(ctx, tok.TokenID, TradeBuy, 1, "")
		}()
	}
	wg.Wait()

	tally, _ := s.Tally(ctx, tok.TokenID)
	if tally.Agree != n {
		t.Fatalf("lost votes: tally %d, want %d", tally.Agree, n)
	}

	entries, _ := s.Audits(ctx, tok.TokenID, 1000)
	trades := 0
	for _, e := range entries {
		if e.Action == audit.ActionTrade {
			trades++
		}
	}
	if trades != n {
		t.Fatalf("lost trades: %d audit entries, want %d", trades, n)
	}

	got, _ := s.Token(ctx, tok.TokenID)
	if got.TrustScore < 0 || got.TrustScore > 100 {
		t.Fatalf("score %d escaped [0,100]", got.TrustScore)
	}
}

func TestExplorerEnrichment(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	tok, _ := s.Mint(ctx, "DemoCoin", "DEMO", "")
	s.mustVote(t, tok.TokenID, token.VoteAgree, token.VoteDisagree)
	if _, err := s.Report(ctx, tok.TokenID, "r1", "sus"); err != nil {
		t.Fatal(err)
	}

	list, err := s.Explorer(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected one entry, got %d", len(list))
	}
	entry := list[0]
	if entry.Votes.Agree != 1 || entry.Votes.Disagree != 1 {
		t.Fatalf("votes = %+v", entry.Votes)
	}
	if entry.ReportCount != 1 {
		t.Fatalf("report count = %d, want 1", entry.ReportCount)
	}
}
