// Package chain fetches on-chain asset data. The registry treats results as
// opaque provenance; callers must tolerate upstream failure.
package chain

import (
	"context"
	"errors"
)

// Asset is the provider-neutral view of an on-chain token.
type Asset struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	PolicyID string         `json:"policyId"`
	Quantity string         `json:"quantity,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Source   string         `json:"source"`
}

var (
	// ErrUpstream indicates the provider failed to answer.
	ErrUpstream = errors.New("chain provider failure")
	// ErrTimeout indicates the provider did not answer in time.
	ErrTimeout = errors.New("chain provider timeout")
	// ErrNotConfigured indicates no provider credentials are set.
	ErrNotConfigured = errors.New("chain provider not configured")
	// ErrAssetNotFound indicates the asset does not exist on-chain.
	ErrAssetNotFound = errors.New("asset not found on-chain")
)

// Provider is the on-chain data contract consumed by the API layer.
type Provider interface {
	FetchLatestAssets(ctx context.Context, n int) ([]Asset, error)
	FetchAsset(ctx context.Context, id string) (Asset, error)
	HealthCheck(ctx context.Context) error
}
