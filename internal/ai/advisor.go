// Package ai produces risk explanations for tokens. The real explanation
// comes from an upstream LLM; a rule-based advisor covers every failure so
// the API never depends on the upstream being up.
package ai

import (
	"context"
	"errors"
	"strconv"

	"tokenwatch.org/internal/chain"
)

// Analysis is a coarse risk verdict for one asset.
type Analysis struct {
	Explanation     string  `json:"explanation"`
	RugProbability  int     `json:"rug_probability"`
	RiskLevel       string  `json:"risk_level"`
	SuggestedAction string  `json:"suggested_action"`
	Confidence      float64 `json:"confidence"`
}

// Advisor explains the risk of an on-chain asset.
type Advisor interface {
	ExplainRisk(ctx context.Context, asset chain.Asset) (Analysis, error)
}

// ErrUnavailable indicates the upstream advisor could not answer.
var ErrUnavailable = errors.New("advisor unavailable")

// RuleBased is the deterministic fallback advisor. The heuristics are
// intentionally blunt; their job is a sane default, not accuracy.
type RuleBased struct{}

func (RuleBased) ExplainRisk(ctx context.Context, asset chain.Asset) (Analysis, error) {
	prob := 50
	reasons := "No metadata available; treating as unproven."

	if len(asset.Metadata) > 0 {
		prob -= 15
		reasons = "On-chain metadata present."
	}
	if qty, err := strconv.ParseUint(asset.Quantity, 10, 64); err == nil && qty > 1_000_000 {
		prob -= 10
		reasons += " Large circulating quantity suggests an established mint."
	}
	if asset.Source == "simulation" {
		prob += 20
		reasons += " Asset data is simulated, not observed on-chain."
	}
	if prob < 5 {
		prob = 5
	}
	if prob > 95 {
		prob = 95
	}

	return Analysis{
		Explanation:     reasons,
		RugProbability:  prob,
		RiskLevel:       riskLevelFor(prob),
		SuggestedAction: actionFor(prob),
		Confidence:      0.7,
	}, nil
}

// Resilient wraps a primary advisor with the rule-based fallback and
// reports which path produced the answer.
type Resilient struct {
	Primary  Advisor
	Fallback RuleBased
}

// Methods reported by Analyze.
const (
	MethodAI        = "ai_powered"
	MethodRuleBased = "rule_based"
)

// Analyze asks the primary advisor and degrades to the fallback on any
// error.
func (r Resilient) Analyze(ctx context.Context, asset chain.Asset) (Analysis, string) {
	if r.Primary != nil {
		if a, err := r.Primary.ExplainRisk(ctx, asset); err == nil {
			return a, MethodAI
		}
	}
	a, _ := r.Fallback.ExplainRisk(ctx, asset)
	return a, MethodRuleBased
}

func riskLevelFor(prob int) string {
	switch {
	case prob < 25:
		return "low"
	case prob < 50:
		return "medium"
	case prob < 75:
		return "high"
	default:
		return "critical"
	}
}

func actionFor(prob int) string {
	switch {
	case prob < 25:
		return "monitor"
	case prob < 75:
		return "caution"
	default:
		return "avoid"
	}
}
