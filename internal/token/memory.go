package token

import (
	"context"
	"sync"
	"time"

	"tokenwatch.org/internal/audit"
)

// Memory implements Store with in-process concurrency safety. Used by tests
// and as the fallback when no durable store is configured.
type Memory struct {
	mu       sync.RWMutex
	tokens   map[string]*Token
	order    []string // tokenIDs, oldest first
	tallies  map[string]*VoteTally
	reports  []Report
	audits   []audit.Entry
	reportID int64
	auditID  int64
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		tokens:  make(map[string]*Token),
		tallies: make(map[string]*VoteTally),
	}
}

func (m *Memory) InsertToken(ctx context.Context, t Token) error {
	if t.TokenID == "" {
		return ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := t
	m.tokens[t.TokenID] = &cp
	m.order = append(m.order, t.TokenID)
	return nil
}

func (m *Memory) GetToken(ctx context.Context, tokenID string) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[tokenID]
	if !ok {
		return Token{}, ErrNotFound
	}
	return copyToken(t), nil
}

func (m *Memory) GetTokenByPolicyID(ctx context.Context, policyID string) (Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.PolicyID == policyID {
			return copyToken(t), nil
		}
	}
	return Token{}, ErrNotFound
}

func (m *Memory) ListTokens(ctx context.Context) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Token, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if t, ok := m.tokens[m.order[i]]; ok {
			out = append(out, copyToken(t))
		}
	}
	return out, nil
}

func (m *Memory) UpdateTrust(ctx context.Context, tokenID string, score int, disputed bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[tokenID]
	if !ok {
		return ErrNotFound
	}
	t.TrustScore = ClampScore(score)
	t.IsDisputed = disputed
	return nil
}

func (m *Memory) RecordVote(ctx context.Context, tokenID string, kind VoteKind) (VoteTally, error) {
	if !kind.Valid() {
		return VoteTally{}, ErrValidation
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tally, ok := m.tallies[tokenID]
	if !ok {
		tally = &VoteTally{TokenID: tokenID}
		m.tallies[tokenID] = tally
	}
	if kind == VoteAgree {
		tally.Agree++
	} else {
		tally.Disagree++
	}
	return *tally, nil
}

func (m *Memory) GetTally(ctx context.Context, tokenID string) (VoteTally, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if tally, ok := m.tallies[tokenID]; ok {
		return *tally, nil
	}
	return VoteTally{TokenID: tokenID}, nil
}

func (m *Memory) InsertReport(ctx context.Context, r Report) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reportID++
	r.ID = m.reportID
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	m.reports = append(m.reports, r)
	return r, nil
}

func (m *Memory) ListReports(ctx context.Context, tokenID string) ([]Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Report
	for _, r := range m.reports {
		if r.TokenID == tokenID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) AppendAudit(ctx context.Context, e audit.Entry) (audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.auditID++
	e.ID = m.auditID
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	m.audits = append(m.audits, e)
	return e, nil
}

func (m *Memory) ListAudit(ctx context.Context, tokenID string, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []audit.Entry
	for i := len(m.audits) - 1; i >= 0 && len(out) < limit; i-- {
		e := m.audits[i]
		if tokenID == "" || e.TokenID == tokenID {
			out = append(out, e)
		}
	}
	return out, nil
}

func copyToken(t *Token) Token {
	out := *t
	if t.Provenance != nil {
		out.Provenance = make(map[string]any, len(t.Provenance))
		for k, v := range t.Provenance {
			out.Provenance[k] = v
		}
	}
	return out
}

var _ Store = (*Memory)(nil)
