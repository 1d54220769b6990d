// Package audit defines the append-only trail recorded for every
// state-changing action in the registry.
package audit

import (
	"context"
	"strings"
	"time"
)

// Action enumerates the auditable actions.
type Action string

const (
	ActionMint            Action = "MINT"
	ActionPublish         Action = "PUBLISH"
	ActionTrade           Action = "TRADE"
	ActionVote            Action = "VOTE"
	ActionWhistleblower   Action = "WHISTLEBLOWER_REPORT"
	ActionZKWhistleblower Action = "ZK_WHISTLEBLOWER_REPORT"
	ActionAnalysis        Action = "MASUMI_ANALYSIS"
)

// Entry is one audit record. Entries are never mutated after insertion and
// IDs are assigned monotonically by the store.
type Entry struct {
	ID           int64     `json:"id"`
	TokenID      string    `json:"tokenId"`
	Action       Action    `json:"action"`
	Actor        string    `json:"actor"`
	Info         string    `json:"info"`
	AnalysisHash string    `json:"analysisHash,omitempty"`
	Txid         string    `json:"txid,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Store persists audit entries.
type Store interface {
	// AppendAudit inserts the entry, assigning its ID, and returns it.
	AppendAudit(ctx context.Context, e Entry) (Entry, error)
	// ListAudit returns entries newest first. Empty tokenID means all
	// entries, capped at limit.
	ListAudit(ctx context.Context, tokenID string, limit int) ([]Entry, error)
}

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context for audit logging.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id from context if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}
