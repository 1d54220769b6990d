// Package httpapi is the HTTP surface of the registry: REST handlers,
// middleware and the SSE live feed.
package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tokenwatch.org/internal/ai"
	"tokenwatch.org/internal/audit"
	"tokenwatch.org/internal/auth"
	"tokenwatch.org/internal/chain"
	"tokenwatch.org/internal/factory"
	"tokenwatch.org/internal/mpm"
	"tokenwatch.org/internal/obs"
	"tokenwatch.org/internal/proof"
	"tokenwatch.org/internal/stream"
	"tokenwatch.org/internal/token"
	"tokenwatch.org/internal/trust"
)

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the registry services.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	trust      *trust.Service
	factory    *factory.Factory
	market     *mpm.Service
	chain      chain.Provider
	advisor    ai.Resilient
	identity   ai.IdentityGenerator
	identities ai.IdentityStore
	sessions   *auth.WalletSessions
	stream     *stream.Stream
	proofs     *proof.Builder
}

// Deps bundles the services the API serves.
type Deps struct {
	Trust      *trust.Service
	Factory    *factory.Factory
	Market     *mpm.Service
	Chain      chain.Provider // nil when no provider is configured
	Advisor    ai.Resilient
	Identity   ai.IdentityGenerator
	Identities ai.IdentityStore // nil when running on the in-memory store
	Sessions   *auth.WalletSessions
	Stream     *stream.Stream
}

// New wires the routes.
func New(rp ReadyProbe, version string, deps Deps) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		trust:      deps.Trust,
		factory:    deps.Factory,
		market:     deps.Market,
		chain:      deps.Chain,
		advisor:    deps.Advisor,
		identity:   deps.Identity,
		identities: deps.Identities,
		sessions:   deps.Sessions,
		stream:     deps.Stream,
		proofs:     proof.NewBuilder(),
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/api/health", a.Healthz)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// registry
	a.mux.HandleFunc("/api/simulate/mint", a.handleMint)
	a.mux.HandleFunc("/api/tokens", a.handleTokens)
	a.mux.HandleFunc("/api/tokens/", a.handleTokenSubtree)
	a.mux.HandleFunc("/api/vote", a.handleVote)
	a.mux.HandleFunc("/api/trade", a.handleTrade)
	a.mux.HandleFunc("/api/whistle", a.handleWhistle)
	a.mux.HandleFunc("/api/report", a.handleReport)
	a.mux.HandleFunc("/api/audits", a.handleAudits)
	a.mux.HandleFunc("/api/publish/", a.handlePublish)
	a.mux.HandleFunc("/api/explorer", a.handleExplorer)

	// meme factory + market pulse
	a.mux.HandleFunc("/api/memecoins", a.handleMemecoins)
	a.mux.HandleFunc("/api/memecoins/", a.handleMemecoinSubtree)
	a.mux.HandleFunc("/api/mpm/", a.handleMPM)
	a.mux.HandleFunc("/api/stats/global", a.handleGlobalStats)

	// risk analysis
	a.mux.HandleFunc("/risk/", a.handleRisk)
	a.mux.HandleFunc("/api/identity/generate", a.handleIdentity)

	// wallet sessions
	a.mux.HandleFunc("/api/auth/nonce", a.handleAuthNonce)
	a.mux.HandleFunc("/api/auth/login", a.handleAuthLogin)
	a.mux.HandleFunc("/api/auth/me", a.handleAuthMe)

	// live feed
	a.mux.HandleFunc("/api/stream", a.Stream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with instrumentation.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.mux)
}

// --- health handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "tokenwatch-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(name, raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(name + " must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New(name + " must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}

func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, token.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, token.ErrNotFound), errors.Is(err, chain.ErrAssetNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, chain.ErrNotConfigured):
		writeError(w, r, http.StatusServiceUnavailable, "chain provider not configured")
	case errors.Is(err, chain.ErrTimeout):
		writeError(w, r, http.StatusGatewayTimeout, "chain provider timed out")
	case errors.Is(err, chain.ErrUpstream):
		writeError(w, r, http.StatusBadGateway, "chain provider error")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func nowUTC() time.Time { return time.Now().UTC() }
