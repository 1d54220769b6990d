// Package trust implements the trust/dispute engine and the service facade
// over the token registry: minting, vote aggregation, trade effects,
// whistleblower reports and the audit trail.
package trust

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"tokenwatch.org/internal/audit"
	"tokenwatch.org/internal/ids"
	"tokenwatch.org/internal/obs"
	"tokenwatch.org/internal/proof"
	"tokenwatch.org/internal/token"
)

// ProvenanceFetcher supplies mint-time metadata for a policy. Failures are
// tolerated; minting falls back to an empty simulation blob.
type ProvenanceFetcher interface {
	FetchMetadata(ctx context.Context, policyID string) (blob map[string]any, source string, err error)
}

// Service owns every mutation of registry state. Mutations are serialized
// per token so concurrent votes and trades cannot lose updates, and each
// one appends exactly one audit entry describing the cause.
type Service struct {
	store  token.Store
	trail  *audit.Recorder
	proofs *proof.Builder
	chain  ProvenanceFetcher

	locks *keyLock

	scoreMu     sync.Mutex
	scoreSource func() int
}

// Option configures a Service.
type Option func(*Service)

// WithProvenance sets the mint-time metadata fetcher.
func WithProvenance(f ProvenanceFetcher) Option {
	return func(s *Service) { s.chain = f }
}

// WithProofBuilder overrides the decision-proof builder.
func WithProofBuilder(b *proof.Builder) Option {
	return func(s *Service) { s.proofs = b }
}

// WithScoreSource overrides the initial-score generator (tests).
func WithScoreSource(f func() int) Option {
	return func(s *Service) { s.scoreSource = f }
}

// New builds a Service over the given store.
func New(store token.Store, opts ...Option) *Service {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	s := &Service{
		store:  store,
		trail:  audit.NewRecorder(store),
		proofs: proof.NewBuilder(),
		locks:  newKeyLock(),
		// Demo default: fresh tokens start high, in [85,94].
		scoreSource: func() int { return 85 + rnd.Intn(10) },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Mint registers a new token with a fresh ID, policy and initial score.
func (s *Service) Mint(ctx context.Context, name, symbol, creator string) (token.Token, error) {
	name = strings.TrimSpace(name)
	symbol = strings.TrimSpace(symbol)
	if name == "" || symbol == "" {
		return token.Token{}, fmt.Errorf("%w: name and symbol are required", token.ErrValidation)
	}

	tokenID := ids.NewToken()
	policyID := ids.NewPolicy()

	s.scoreMu.Lock()
	score := token.ClampScore(s.scoreSource())
	s.scoreMu.Unlock()

	provenance := map[string]any{}
	source := token.SourceSimulation
	if s.chain != nil {
		if blob, src, err := s.chain.FetchMetadata(ctx, policyID); err == nil {
			provenance = blob
			if src != "" {
				source = src
			}
		} else {
			obs.LogRequest(map[string]any{
				"level": "warn", "msg": "metadata fetch failed during mint",
				"policyId": policyID, "error": err.Error(),
			})
		}
	}

	t := token.Token{
		TokenID:    tokenID,
		Name:       name,
		Symbol:     symbol,
		TrustScore: score,
		PolicyID:   policyID,
		Provenance: provenance,
		CreatedAt:  time.Now().UTC(),
		IsDisputed: false,
		Source:     source,
	}
	if err := s.store.InsertToken(ctx, t); err != nil {
		return token.Token{}, err
	}

	actor := strings.TrimSpace(creator)
	if actor == "" {
		actor = "system"
	}
	if _, err := s.trail.Record(ctx, audit.Entry{
		TokenID: tokenID,
		Action:  audit.ActionMint,
		Actor:   actor,
		Info:    fmt.Sprintf("Minted %s (%s)", name, symbol),
	}); err != nil {
		return token.Token{}, err
	}

	obs.MintsTotal.Inc()
	return t, nil
}

// Token fetches one token by ID.
func (s *Service) Token(ctx context.Context, tokenID string) (token.Token, error) {
	return s.store.GetToken(ctx, tokenID)
}

// TokenByPolicy fetches one token by policy ID.
func (s *Service) TokenByPolicy(ctx context.Context, policyID string) (token.Token, error) {
	return s.store.GetTokenByPolicyID(ctx, policyID)
}

// Tokens lists all tokens, newest first.
func (s *Service) Tokens(ctx context.Context) ([]token.Token, error) {
	return s.store.ListTokens(ctx)
}

// Tally returns the vote aggregate for a token, zero-valued when absent.
func (s *Service) Tally(ctx context.Context, tokenID string) (token.VoteTally, error) {
	return s.store.GetTally(ctx, tokenID)
}

// Vote records one community vote and re-evaluates the dispute state.
// Votes against unknown tokens are tallied but trigger no transition, which
// matches the registry's lazy tally semantics. There is no voter dedup.
func (s *Service) Vote(ctx context.Context, tokenID string, kind token.VoteKind, voterID string) (token.VoteTally, error) {
	if strings.TrimSpace(tokenID) == "" || !kind.Valid() {
		return token.VoteTally{}, fmt.Errorf("%w: tokenId and a vote of agree|disagree are required", token.ErrValidation)
	}

	release := s.locks.acquire(tokenID)
	defer release()

	tally, err := s.store.RecordVote(ctx, tokenID, kind)
	if err != nil {
		return token.VoteTally{}, err
	}

	actor := strings.TrimSpace(voterID)
	if actor == "" {
		actor = "anon"
	}
	info := fmt.Sprintf("%s vote (tally %d/%d)", kind, tally.Agree, tally.Disagree)

	tok, err := s.store.GetToken(ctx, tokenID)
	switch {
	case errors.Is(err, token.ErrNotFound):
		// Tally exists without a registry record; nothing to transition.
	case err != nil:
		return token.VoteTally{}, err
	default:
		newScore, disputed := EvaluateDispute(tally, tok.TrustScore)
		if newScore != tok.TrustScore || disputed != tok.IsDisputed {
			if err := s.store.UpdateTrust(ctx, tokenID, newScore, disputed); err != nil {
				return token.VoteTally{}, err
			}
			info += fmt.Sprintf(" | trust %d->%d, disputed=%t", tok.TrustScore, newScore, disputed)
			switch {
			case disputed && !tok.IsDisputed:
				obs.ActiveDisputes.Inc()
			case !disputed && tok.IsDisputed:
				obs.ActiveDisputes.Dec()
			}
		}
	}

	if _, err := s.trail.Record(ctx, audit.Entry{
		TokenID: tokenID,
		Action:  audit.ActionVote,
		Actor:   actor,
		Info:    info,
	}); err != nil {
		return token.VoteTally{}, err
	}

	obs.VotesTotal.WithLabelValues(string(kind)).Inc()
	return tally, nil
}

// Fill describes the simulated execution of a trade.
type Fill struct {
	Price    float64 `json:"price"`
	Quantity float64 `json:"quantity"`
	TxID     string  `json:"txId"`
}

// TradeResult is the outcome of one trade event.
type TradeResult struct {
	Fill          Fill `json:"fill"`
	NewTrustScore int  `json:"newTrustScore"`
}

// Trade applies a one-point score delta for a buy or sell. The dispute flag
// passes through unchanged. Replaying the same trade duplicates the effect;
// trades are events, not resubmission-safe operations.
func (s *Service) Trade(ctx context.Context, tokenID string, side TradeSide, amount float64, trader string) (TradeResult, error) {
	if strings.TrimSpace(tokenID) == "" || !side.Valid() || amount <= 0 {
		return TradeResult{}, fmt.Errorf("%w: tokenId, a side of buy|sell and a positive amount are required", token.ErrValidation)
	}

	release := s.locks.acquire(tokenID)
	defer release()

	tok, err := s.store.GetToken(ctx, tokenID)
	if err != nil {
		return TradeResult{}, err
	}

	newScore := ApplyTrade(tok.TrustScore, side)
	if err := s.store.UpdateTrust(ctx, tokenID, newScore, tok.IsDisputed); err != nil {
		return TradeResult{}, err
	}

	const price = 1.0 // simplified demo pricing
	actor := strings.TrimSpace(trader)
	if actor == "" {
		actor = "anonymous"
	}
	txid := ids.NewTx()
	if _, err := s.trail.Record(ctx, audit.Entry{
		TokenID: tokenID,
		Action:  audit.ActionTrade,
		Actor:   actor,
		Info: fmt.Sprintf("%s %g %s @ %g ADA | trust %d->%d",
			strings.ToUpper(string(side)), amount, tok.Symbol, price, tok.TrustScore, newScore),
		Txid: txid,
	}); err != nil {
		return TradeResult{}, err
	}

	obs.TradesTotal.WithLabelValues(string(side)).Inc()
	return TradeResult{
		Fill:          Fill{Price: price, Quantity: amount, TxID: txid},
		NewTrustScore: newScore,
	}, nil
}

// ReportReceipt acknowledges a plain (non-proof) report.
type ReportReceipt struct {
	ReportID string `json:"reportId"`
	Penalty  int    `json:"penalty"`
}

// Report files a plain community report against a known token.
func (s *Service) Report(ctx context.Context, tokenID, reporterID, text string) (ReportReceipt, error) {
	tokenID = strings.TrimSpace(tokenID)
	text = strings.TrimSpace(text)
	if tokenID == "" || text == "" {
		return ReportReceipt{}, fmt.Errorf("%w: tokenId and report text are required", token.ErrValidation)
	}
	if _, err := s.store.GetToken(ctx, tokenID); err != nil {
		return ReportReceipt{}, err
	}

	reporter := strings.TrimSpace(reporterID)
	if reporter == "" {
		reporter = "anon"
	}
	now := time.Now().UTC()
	if _, err := s.store.InsertReport(ctx, token.Report{
		TokenID:    tokenID,
		ReporterID: reporter,
		Text:       text,
		Timestamp:  now,
	}); err != nil {
		return ReportReceipt{}, err
	}

	txid := ids.NewTx()
	if _, err := s.trail.Record(ctx, audit.Entry{
		TokenID:      tokenID,
		Action:       audit.ActionWhistleblower,
		Actor:        reporter,
		Info:         text,
		AnalysisHash: ids.NewAnalysisRef(),
		Txid:         txid,
		Timestamp:    now,
	}); err != nil {
		return ReportReceipt{}, err
	}

	obs.ReportsTotal.Inc()
	return ReportReceipt{ReportID: txid, Penalty: 0}, nil
}

// WhistleReceipt acknowledges a proof-carrying whistleblower report.
type WhistleReceipt struct {
	ReportID string       `json:"reportId"`
	Proof    proof.Bundle `json:"zkProof"`
}

// Whistle files an anonymous report with a simulated decision proof. The
// token must exist: unknown IDs return ErrNotFound with no audit entry and
// no stored report.
func (s *Service) Whistle(ctx context.Context, tokenID, reportText, walletAddress string) (WhistleReceipt, error) {
	tokenID = strings.TrimSpace(tokenID)
	reportText = strings.TrimSpace(reportText)
	if tokenID == "" || reportText == "" {
		return WhistleReceipt{}, fmt.Errorf("%w: tokenId and reportText are required", token.ErrValidation)
	}
	if _, err := s.store.GetToken(ctx, tokenID); err != nil {
		return WhistleReceipt{}, err
	}

	now := time.Now().UTC()
	bundle, err := s.proofs.Build(tokenID, walletAddress, reportText, now)
	if err != nil {
		return WhistleReceipt{}, err
	}

	if _, err := s.store.InsertReport(ctx, token.Report{
		TokenID:    tokenID,
		ReporterID: "zk_anonymous",
		Text:       reportText,
		Timestamp:  now,
	}); err != nil {
		return WhistleReceipt{}, err
	}

	if _, err := s.trail.Record(ctx, audit.Entry{
		TokenID:   tokenID,
		Action:    audit.ActionZKWhistleblower,
		Actor:     "anonymous",
		Info:      fmt.Sprintf("Simulated ZK report. Commitment: %s...", bundle.Commitment[:16]),
		Timestamp: now,
	}); err != nil {
		return WhistleReceipt{}, err
	}

	obs.ReportsTotal.Inc()
	return WhistleReceipt{ReportID: ids.NewReportID(), Proof: bundle}, nil
}

// Publish records that an analysis for the token was published and returns
// the analysis reference.
func (s *Service) Publish(ctx context.Context, tokenID string) (string, error) {
	if strings.TrimSpace(tokenID) == "" {
		return "", fmt.Errorf("%w: tokenId is required", token.ErrValidation)
	}
	ref := ids.NewAnalysisRef()
	if _, err := s.trail.Record(ctx, audit.Entry{
		TokenID:      tokenID,
		Action:       audit.ActionPublish,
		Actor:        "system",
		Info:         "Analysis published",
		AnalysisHash: ref,
	}); err != nil {
		return "", err
	}
	return ref, nil
}

// RecordAnalysis stores the audit entry for a completed AI risk analysis.
func (s *Service) RecordAnalysis(ctx context.Context, policyID, explanation, decisionHash string) error {
	if explanation == "" {
		explanation = "Analysis complete"
	}
	_, err := s.trail.Record(ctx, audit.Entry{
		TokenID:      policyID,
		Action:       audit.ActionAnalysis,
		Actor:        "masumi_agent",
		Info:         explanation,
		AnalysisHash: decisionHash,
	})
	if err == nil {
		obs.AnalysesTotal.Inc()
	}
	return err
}

// Audits lists audit entries, optionally filtered by token, newest first.
func (s *Service) Audits(ctx context.Context, tokenID string, limit int) ([]audit.Entry, error) {
	return s.trail.List(ctx, tokenID, limit)
}

// Reports lists stored reports for a token.
func (s *Service) Reports(ctx context.Context, tokenID string) ([]token.Report, error) {
	return s.store.ListReports(ctx, tokenID)
}

// ExplorerToken is a registry token enriched with community signals.
type ExplorerToken struct {
	token.Token
	Votes         token.VoteTally `json:"votes"`
	ReportCount   int             `json:"reportCount"`
	IsUnderReview bool            `json:"isUnderReview"`
}

// Explorer returns every registry token with its tally and report count.
func (s *Service) Explorer(ctx context.Context) ([]ExplorerToken, error) {
	tokens, err := s.store.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]ExplorerToken, 0, len(tokens))
	for _, t := range tokens {
		tally, err := s.store.GetTally(ctx, t.TokenID)
		if err != nil {
			return nil, err
		}
		reports, err := s.store.ListReports(ctx, t.TokenID)
		if err != nil {
			return nil, err
		}
		if t.Source == "" {
			t.Source = token.SourceDatabase
		}
		out = append(out, ExplorerToken{
			Token:         t,
			Votes:         tally,
			ReportCount:   len(reports),
			IsUnderReview: t.IsDisputed,
		})
	}
	return out, nil
}
