package httpapi

import (
	"net/http"
	"strings"

	"tokenwatch.org/internal/factory"
	"tokenwatch.org/internal/token"
)

// coinView is a factory coin with its rug assessment attached.
type coinView struct {
	factory.Coin
	token.RugAssessment
}

func rateCoin(c factory.Coin) coinView {
	return coinView{Coin: c, RugAssessment: token.AssessRug(c.TrustScore)}
}

func (a *API) handleMemecoins(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.factory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "factory disabled")
		return
	}
	limit, err := parsePositiveInt("limit", r.URL.Query().Get("limit"), 50, 1, 100)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	coins := a.factory.Coins(limit)
	items := make([]coinView, 0, len(coins))
	for _, c := range coins {
		items = append(items, rateCoin(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

// handleMemecoinSubtree routes generate/batch/factory control and single
// coin lookups under /api/memecoins/.
func (a *API) handleMemecoinSubtree(w http.ResponseWriter, r *http.Request) {
	if a.factory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "factory disabled")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/memecoins/")

	switch path {
	case "generate":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		writeJSON(w, http.StatusCreated, a.factory.Generate())
		return
	case "batch":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		var req struct {
			Count int `json:"count"`
		}
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		coins := a.factory.GenerateBatch(req.Count)
		writeJSON(w, http.StatusCreated, map[string]any{
			"items": coins,
			"count": len(coins),
		})
		return
	case "factory/start":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		started := a.factory.Start()
		writeJSON(w, http.StatusOK, map[string]any{
			"running": true,
			"changed": started,
		})
		return
	case "factory/stop":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		stopped := a.factory.Stop()
		writeJSON(w, http.StatusOK, map[string]any{
			"running": false,
			"changed": stopped,
		})
		return
	}

	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	coin, ok := a.factory.Coin(path)
	if !ok {
		writeError(w, r, http.StatusNotFound, "coin not found")
		return
	}
	writeJSON(w, http.StatusOK, rateCoin(coin))
}

// handleMPM serves /api/mpm/{policyId} and /api/mpm/{policyId}/refresh.
func (a *API) handleMPM(w http.ResponseWriter, r *http.Request) {
	if a.market == nil {
		writeError(w, r, http.StatusServiceUnavailable, "market pulse disabled")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/api/mpm/")

	if policyID, ok := strings.CutSuffix(path, "/refresh"); ok {
		if r.Method != http.MethodPost {
			methodNotAllowed(w, r, http.MethodPost)
			return
		}
		if policyID == "" || strings.Contains(policyID, "/") {
			writeError(w, r, http.StatusNotFound, "resource not found")
			return
		}
		rec, err := a.market.Refresh(r.Context(), policyID, a.symbolFor(r, policyID))
		if err != nil {
			handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
		return
	}

	if path == "" || strings.Contains(path, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rec, err := a.market.Get(r.Context(), path)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// symbolFor resolves a display symbol for the policy, tolerating unknowns.
func (a *API) symbolFor(r *http.Request, policyID string) string {
	if t, err := a.trust.TokenByPolicy(r.Context(), policyID); err == nil {
		return t.Symbol
	}
	if a.factory != nil {
		if coin, ok := a.factory.Coin(policyID); ok {
			return coin.Symbol
		}
	}
	return "UNKNOWN"
}

func (a *API) handleGlobalStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.factory == nil {
		writeError(w, r, http.StatusServiceUnavailable, "factory disabled")
		return
	}
	writeJSON(w, http.StatusOK, a.factory.Stats())
}
