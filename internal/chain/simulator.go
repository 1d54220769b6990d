package chain

import (
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Simulator serves deterministic asset data derived from the requested ID,
// standing in for the chain when no provider is configured.
type Simulator struct{}

// NewSimulator returns a stateless simulator.
func NewSimulator() *Simulator { return &Simulator{} }

var simNames = []string{
	"SnekToken", "HoskyClone", "AdaWhale", "MintTest", "PreprodPup",
	"CharlieCoin", "VasilFan", "StakePool", "EpochEgg", "UtxOwl",
}

func (s *Simulator) FetchLatestAssets(ctx context.Context, n int) ([]Asset, error) {
	if n <= 0 {
		n = 5
	}
	if n > 20 {
		n = 20
	}
	assets := make([]Asset, 0, n)
	for i := 0; i < n; i++ {
		assets = append(assets, s.synthesize(fmt.Sprintf("simasset%d", i)))
	}
	return assets, nil
}

func (s *Simulator) FetchAsset(ctx context.Context, id string) (Asset, error) {
	if id == "" {
		return Asset{}, ErrAssetNotFound
	}
	return s.synthesize(id), nil
}

func (s *Simulator) HealthCheck(ctx context.Context) error { return nil }

// FetchMetadata satisfies the registry's provenance contract.
func (s *Simulator) FetchMetadata(ctx context.Context, policyID string) (map[string]any, string, error) {
	asset := s.synthesize(policyID)
	return map[string]any{
		"asset":     asset.ID,
		"policy_id": asset.PolicyID,
		"quantity":  asset.Quantity,
		"simulated": true,
	}, "simulation", nil
}

// synthesize maps an id to a stable asset the same way every call.
func (s *Simulator) synthesize(id string) Asset {
	sum := sha1.Sum([]byte(id))
	idx := int(binary.BigEndian.Uint32(sum[:4]) % uint32(len(simNames)))
	name := simNames[idx]
	qty := 1000 + binary.BigEndian.Uint32(sum[4:8])%1_000_000
	return Asset{
		ID:       id,
		Name:     name,
		Symbol:   name[:4],
		PolicyID: "policy" + hex.EncodeToString(sum[:8]),
		Quantity: fmt.Sprintf("%d", qty),
		Source:   "simulation",
	}
}

var _ Provider = (*Simulator)(nil)
