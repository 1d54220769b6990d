package httpapi

import (
	"net/http"
	"strings"

	"tokenwatch.org/internal/chain"
	"tokenwatch.org/internal/proof"
	"tokenwatch.org/internal/token"
)

func (a *API) latestAssets(w http.ResponseWriter, r *http.Request) {
	if a.chain == nil {
		writeError(w, r, http.StatusServiceUnavailable, "chain provider not configured")
		return
	}
	count, err := parsePositiveInt("count", r.URL.Query().Get("count"), 5, 1, 20)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assets, err := a.chain.FetchLatestAssets(r.Context(), count)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": assets,
		"count": len(assets),
	})
}

func (a *API) realAsset(w http.ResponseWriter, r *http.Request, assetID string) {
	if a.chain == nil {
		writeError(w, r, http.StatusServiceUnavailable, "chain provider not configured")
		return
	}
	asset, err := a.chain.FetchAsset(r.Context(), assetID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

// handleRisk serves POST /risk/{policyId}/ask-masumi: a full risk verdict
// combining the trust-derived assessment with the advisor's explanation,
// sealed with a decision hash and written to the audit trail.
func (a *API) handleRisk(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/risk/")
	policyID, ok := strings.CutSuffix(path, "/ask-masumi")
	if !ok || policyID == "" || strings.Contains(policyID, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	asset, trustScore, scoreKnown := a.resolveRiskSubject(r, policyID)
	analysis, method := a.advisor.Analyze(r.Context(), asset)

	rugProb := analysis.RugProbability
	rugLabel := strings.ToUpper(analysis.RiskLevel)
	if scoreKnown {
		assessment := token.AssessRug(trustScore)
		rugProb = assessment.RugProbability
		rugLabel = assessment.RugLabel
	}

	now := nowUTC()
	summary, digest := proof.DecisionHash(policyID, rugProb, now)
	if err := a.trust.RecordAnalysis(r.Context(), policyID, analysis.Explanation, digest); err != nil {
		handleDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"policyId":        policyID,
		"rugProbability":  rugProb,
		"rugLabel":        rugLabel,
		"explanation":     analysis.Explanation,
		"suggestedAction": analysis.SuggestedAction,
		"confidence":      analysis.Confidence,
		"method":          method,
		"decision":        summary,
		"decisionHash":    digest,
		"timestamp":       now,
	})
}

// resolveRiskSubject finds what the policy refers to: a registry token, a
// factory coin, or an unknown asset left to the advisor alone.
func (a *API) resolveRiskSubject(r *http.Request, policyID string) (chain.Asset, int, bool) {
	if t, err := a.trust.TokenByPolicy(r.Context(), policyID); err == nil {
		return chain.Asset{
			ID:       t.TokenID,
			Name:     t.Name,
			Symbol:   t.Symbol,
			PolicyID: t.PolicyID,
			Metadata: t.Provenance,
			Source:   t.Source,
		}, t.TrustScore, true
	}
	if a.factory != nil {
		if coin, ok := a.factory.Coin(policyID); ok {
			return chain.Asset{
				ID:       coin.TokenID,
				Name:     coin.Name,
				Symbol:   coin.Symbol,
				PolicyID: coin.PolicyID,
				Source:   coin.Source,
			}, coin.TrustScore, true
		}
	}
	return chain.Asset{ID: policyID, PolicyID: policyID, Source: "unknown"}, 0, false
}

type identityRequest struct {
	Seed string `json:"seed"`
}

func (a *API) handleIdentity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req identityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	seed := strings.TrimSpace(req.Seed)

	// Wallet-addressed personas are sticky: once generated they persist
	// and repeat requests return the stored one.
	persist := a.identities != nil && strings.HasPrefix(seed, "addr")
	if persist {
		if id, err := a.identities.GetIdentity(r.Context(), seed); err == nil {
			writeJSON(w, http.StatusOK, id)
			return
		}
	}

	id := a.identity.Generate(r.Context(), seed)
	if persist {
		if err := a.identities.SaveIdentity(r.Context(), id); err != nil {
			handleDomainError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, id)
}
