package token

import (
	"context"

	"tokenwatch.org/internal/audit"
)

// Store is the persistence contract for registry state. Implementations:
// Memory (tests, fallback), store/sqlite (default) and store/pg.
type Store interface {
	InsertToken(ctx context.Context, t Token) error
	GetToken(ctx context.Context, tokenID string) (Token, error)
	GetTokenByPolicyID(ctx context.Context, policyID string) (Token, error)
	// ListTokens returns every token, newest first.
	ListTokens(ctx context.Context) ([]Token, error)
	// UpdateTrust sets the score (already clamped by the caller) and the
	// dispute flag. Returns ErrNotFound for an unknown token.
	UpdateTrust(ctx context.Context, tokenID string, score int, disputed bool) error

	// RecordVote increments exactly one tally counter, creating the row
	// lazily, and returns the updated tally.
	RecordVote(ctx context.Context, tokenID string, kind VoteKind) (VoteTally, error)
	// GetTally returns the tally, zero-valued when absent.
	GetTally(ctx context.Context, tokenID string) (VoteTally, error)

	// InsertReport appends a report, assigning its ID.
	InsertReport(ctx context.Context, r Report) (Report, error)
	ListReports(ctx context.Context, tokenID string) ([]Report, error)

	audit.Store
}
