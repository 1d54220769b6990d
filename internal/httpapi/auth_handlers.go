package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"tokenwatch.org/internal/auth"
)

type loginRequest struct {
	Wallet    string `json:"wallet"`
	Nonce     string `json:"nonce"`
	Signature string `json:"signature"`
}

func (a *API) handleAuthNonce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if a.sessions == nil {
		writeError(w, r, http.StatusServiceUnavailable, "wallet sessions disabled")
		return
	}
	wallet := strings.TrimSpace(r.URL.Query().Get("wallet"))
	if wallet == "" {
		writeError(w, r, http.StatusBadRequest, "wallet query parameter is required")
		return
	}
	nonce, err := a.sessions.IssueNonce(wallet)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet": wallet,
		"nonce":  nonce,
	})
}

func (a *API) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.sessions == nil {
		writeError(w, r, http.StatusServiceUnavailable, "wallet sessions disabled")
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	tok, err := a.sessions.Login(req.Wallet, req.Nonce, req.Signature)
	switch {
	case errors.Is(err, auth.ErrUnknownNonce), errors.Is(err, auth.ErrBadSignature):
		writeError(w, r, http.StatusUnauthorized, err.Error())
		return
	case err != nil:
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  tok,
		"wallet": strings.TrimSpace(req.Wallet),
	})
}

func (a *API) handleAuthMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := bearerToken(r)
	if raw == "" {
		writeError(w, r, http.StatusUnauthorized, "bearer token required")
		return
	}
	claims, err := auth.ParseAndValidate(raw)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid token")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"wallet":    claims.Subject,
		"roles":     claims.Roles,
		"expiresAt": claims.ExpiresAt,
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
