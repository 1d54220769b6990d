package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tokenwatch.org/internal/chain"
	"tokenwatch.org/internal/factory"
	"tokenwatch.org/internal/stream"
	"tokenwatch.org/internal/token"
	"tokenwatch.org/internal/trust"
)

type mintRequest struct {
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
	Creator string `json:"creator"`
}

type voteRequest struct {
	TokenID string `json:"tokenId"`
	Vote    string `json:"vote"`
	VoterID string `json:"voterId"`
}

type tradeRequest struct {
	TokenID string  `json:"tokenId"`
	Side    string  `json:"side"`
	Amount  float64 `json:"amount"`
	Trader  string  `json:"trader"`
}

type whistleRequest struct {
	TokenID       string `json:"tokenId"`
	ReportText    string `json:"reportText"`
	WalletAddress string `json:"walletAddress"`
}

type reportRequest struct {
	TokenID    string `json:"tokenId"`
	ReporterID string `json:"reporterId"`
	Text       string `json:"text"`
}

func (a *API) handleMint(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req mintRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	t, err := a.trust.Mint(r.Context(), req.Name, req.Symbol, req.Creator)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.publish(stream.TokenEvent{
		Type:       stream.EventMint,
		TokenID:    t.TokenID,
		Symbol:     t.Symbol,
		TrustScore: t.TrustScore,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"token": t,
		"rug":   token.AssessRug(t.TrustScore),
	})
}

func (a *API) handleTokens(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tokens, err := a.trust.Tokens(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": tokens,
		"count": len(tokens),
	})
}

// handleTokenSubtree routes /api/tokens/latest and /api/tokens/real/{assetId}.
func (a *API) handleTokenSubtree(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/tokens/")

	switch {
	case path == "latest":
		a.latestAssets(w, r)
	case strings.HasPrefix(path, "real/"):
		assetID := strings.TrimPrefix(path, "real/")
		if assetID == "" || strings.Contains(assetID, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		a.realAsset(w, r, assetID)
	default:
		writeError(w, r, http.StatusNotFound, "resource not found")
	}
}

func (a *API) handleVote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req voteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tally, err := a.trust.Vote(r.Context(), req.TokenID, token.VoteKind(strings.ToLower(req.Vote)), req.VoterID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	resp := map[string]any{
		"tokenId": req.TokenID,
		"votes":   tally,
	}
	evt := stream.TokenEvent{Type: stream.EventVote, TokenID: req.TokenID}
	if t, err := a.trust.Token(r.Context(), req.TokenID); err == nil {
		resp["trustScore"] = t.TrustScore
		resp["isDisputed"] = t.IsDisputed
		evt.Symbol = t.Symbol
		evt.TrustScore = t.TrustScore
		evt.Disputed = t.IsDisputed
		if t.IsDisputed {
			evt.Type = stream.EventDispute
		}
	}
	a.publish(evt)

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleTrade(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.trust.Trade(r.Context(), req.TokenID, trust.TradeSide(strings.ToLower(req.Side)), req.Amount, req.Trader)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	a.publish(stream.TokenEvent{
		Type:       stream.EventTrade,
		TokenID:    req.TokenID,
		TrustScore: res.NewTrustScore,
		Detail:     strings.ToLower(req.Side),
	})

	writeJSON(w, http.StatusOK, res)
}

// handleWhistle accepts an anonymous proof-carrying report. Registry tokens
// go through the trust service; factory coins take a flat penalty instead.
func (a *API) handleWhistle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req whistleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := a.trust.Whistle(r.Context(), req.TokenID, req.ReportText, req.WalletAddress)
	switch {
	case err == nil:
		a.publish(stream.TokenEvent{Type: stream.EventReport, TokenID: req.TokenID})
		writeJSON(w, http.StatusCreated, receipt)
	case errors.Is(err, token.ErrNotFound):
		a.whistleOnCoin(w, r, req)
	default:
		handleDomainError(w, r, err)
	}
}

const coinReportPenalty = 3

func (a *API) whistleOnCoin(w http.ResponseWriter, r *http.Request, req whistleRequest) {
	if a.factory == nil {
		writeError(w, r, http.StatusNotFound, "token not found")
		return
	}
	coin, ok := a.factory.Penalize(req.TokenID, coinReportPenalty)
	if !ok {
		writeError(w, r, http.StatusNotFound, "token not found")
		return
	}

	bundle, err := a.proofs.Build(coin.TokenID, req.WalletAddress, req.ReportText, nowUTC())
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}

	a.publish(stream.TokenEvent{
		Type:       stream.EventReport,
		TokenID:    coin.TokenID,
		Symbol:     coin.Symbol,
		TrustScore: coin.TrustScore,
	})

	writeJSON(w, http.StatusCreated, map[string]any{
		"zkProof": bundle,
		"penalty": coinReportPenalty,
		"coin":    coin,
	})
}

func (a *API) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	receipt, err := a.trust.Report(r.Context(), req.TokenID, req.ReporterID, req.Text)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	a.publish(stream.TokenEvent{Type: stream.EventReport, TokenID: req.TokenID})
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) handleAudits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := parsePositiveInt("limit", r.URL.Query().Get("limit"), 50, 1, 200)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.trust.Audits(r.Context(), strings.TrimSpace(r.URL.Query().Get("tokenId")), limit)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": entries,
		"count": len(entries),
	})
}

func (a *API) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	tokenID := strings.TrimPrefix(r.URL.Path, "/api/publish/")
	if tokenID == "" || strings.Contains(tokenID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	ref, err := a.trust.Publish(r.Context(), tokenID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tokenId":      tokenID,
		"analysisHash": ref,
	})
}

// explorerRealAssets is how many chain assets top the mixed listing.
const explorerRealAssets = 3

// unratedTrustScore stands in for entries with no community score yet.
const unratedTrustScore = 50

type explorerTokenView struct {
	trust.ExplorerToken
	token.RugAssessment
}

type explorerCoinView struct {
	factory.Coin
	Votes         token.VoteTally `json:"votes"`
	ReportCount   int             `json:"reportCount"`
	IsUnderReview bool            `json:"isUnderReview"`
	token.RugAssessment
}

type explorerAssetView struct {
	chain.Asset
	TokenID       string          `json:"tokenId"`
	TrustScore    int             `json:"trust_score"`
	Votes         token.VoteTally `json:"votes"`
	ReportCount   int             `json:"reportCount"`
	IsUnderReview bool            `json:"isUnderReview"`
	token.RugAssessment
}

// handleExplorer serves the mixed listing: chain assets first, then factory
// coins, then registry tokens, every entry carrying its rug assessment.
// ?includeReal=false skips the chain section.
func (a *API) handleExplorer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tokens, err := a.trust.Explorer(r.Context())
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	items := make([]any, 0, len(tokens))
	if a.chain != nil && r.URL.Query().Get("includeReal") != "false" {
		// Upstream failure drops the chain section, not the listing.
		if assets, err := a.chain.FetchLatestAssets(r.Context(), explorerRealAssets); err == nil {
			for _, asset := range assets {
				items = append(items, explorerAssetView{
					Asset:         asset,
					TokenID:       asset.ID,
					TrustScore:    unratedTrustScore,
					Votes:         token.VoteTally{TokenID: asset.ID},
					RugAssessment: token.AssessRug(unratedTrustScore),
				})
			}
		}
	}
	if a.factory != nil {
		for _, coin := range a.factory.Coins(0) {
			items = append(items, explorerCoinView{
				Coin:          coin,
				Votes:         token.VoteTally{TokenID: coin.TokenID},
				RugAssessment: token.AssessRug(coin.TrustScore),
			})
		}
	}
	for _, t := range tokens {
		items = append(items, explorerTokenView{
			ExplorerToken: t,
			RugAssessment: token.AssessRug(t.TrustScore),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (a *API) publish(evt stream.TokenEvent) {
	if a.stream != nil {
		a.stream.Publish(evt)
	}
}
