// Package mpm tracks the "memes per minute" social-velocity metric. Values
// are sampled, not measured; the service exists for its storage and API
// surface, not its analytics.
package mpm

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// Record is the MPM reading for one policy, one row per policy.
type Record struct {
	PolicyID      string    `json:"policyId"`
	TokenSymbol   string    `json:"tokenSymbol"`
	WindowMinutes int       `json:"windowMinutes"`
	MPM           int       `json:"mpm"`
	Sentiment     string    `json:"sentiment"`
	SampleSize    int       `json:"sampleSize"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Store persists MPM records keyed by policy ID.
type Store interface {
	UpsertMPM(ctx context.Context, r Record) error
	// GetMPM returns token.ErrNotFound-compatible errors via the
	// implementing store when the policy has no record.
	GetMPM(ctx context.Context, policyID string) (Record, error)
}

const windowMinutes = 5

// Service samples and serves MPM readings.
type Service struct {
	store Store

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewService builds a Service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Get returns the stored reading for a policy.
func (s *Service) Get(ctx context.Context, policyID string) (Record, error) {
	return s.store.GetMPM(ctx, policyID)
}

// Refresh resamples the metric and upserts the record.
func (s *Service) Refresh(ctx context.Context, policyID, tokenSymbol string) (Record, error) {
	tokenSymbol = strings.TrimSpace(tokenSymbol)
	if tokenSymbol == "" {
		tokenSymbol = "UNKNOWN"
	}

	s.mu.Lock()
	value := s.rnd.Intn(100)
	sample := 50 + s.rnd.Intn(1000)
	s.mu.Unlock()

	r := Record{
		PolicyID:      policyID,
		TokenSymbol:   tokenSymbol,
		WindowMinutes: windowMinutes,
		MPM:           value,
		Sentiment:     sentimentFor(value),
		SampleSize:    sample,
		LastUpdated:   time.Now().UTC(),
	}
	if err := s.store.UpsertMPM(ctx, r); err != nil {
		return Record{}, err
	}
	return r, nil
}

func sentimentFor(mpm int) string {
	switch {
	case mpm > 80:
		return "PANIC"
	case mpm > 40:
		return "BULLISH"
	default:
		return "NEUTRAL"
	}
}
