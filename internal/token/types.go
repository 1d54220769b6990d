// Package token holds the canonical registry records and the persistence
// contract shared by the in-memory, SQLite and Postgres stores.
package token

import (
	"errors"
	"time"
)

// Source tags where a token record originated.
const (
	SourceSimulation = "simulation"
	SourceDatabase   = "database"
	SourceChain      = "blockfrost"
)

// Token is a registry entry. Records are never hard-deleted; only the
// trust score and dispute flag mutate after mint.
type Token struct {
	TokenID    string         `json:"tokenId"`
	Name       string         `json:"name"`
	Symbol     string         `json:"symbol"`
	TrustScore int            `json:"trust_score"`
	PolicyID   string         `json:"policyId,omitempty"`
	Provenance map[string]any `json:"yaci_data,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	IsDisputed bool           `json:"isDisputed"`
	Source     string         `json:"source"`
}

// VoteKind is a community vote direction.
type VoteKind string

const (
	VoteAgree    VoteKind = "agree"
	VoteDisagree VoteKind = "disagree"
)

// Valid reports whether the kind is one of the two accepted values.
func (k VoteKind) Valid() bool {
	return k == VoteAgree || k == VoteDisagree
}

// VoteTally is the per-token vote aggregate. Counters only grow.
type VoteTally struct {
	TokenID  string `json:"tokenId,omitempty"`
	Agree    int    `json:"agree"`
	Disagree int    `json:"disagree"`
}

// Total is the number of votes recorded for the token.
func (t VoteTally) Total() int { return t.Agree + t.Disagree }

// Report is a community report against a token. Append-only.
type Report struct {
	ID         int64     `json:"id"`
	TokenID    string    `json:"tokenId"`
	ReporterID string    `json:"reporterId"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
}

var (
	// ErrNotFound indicates an unknown token, policy or record.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates missing or invalid input fields.
	ErrValidation = errors.New("invalid input")
)

// ClampScore bounds a trust score to the [0,100] range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
