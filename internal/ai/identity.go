package ai

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"
)

// Identity is a playful trader persona derived from a wallet seed.
type Identity struct {
	Username  string `json:"username"`
	Astrology string `json:"astrology"`
	Vibe      string `json:"vibe"`
	Seed      string `json:"seed,omitempty"`
	Method    string `json:"method"`
	CreatedAt string `json:"created_at,omitempty"`
}

// IdentityStore persists identities keyed by seed.
type IdentityStore interface {
	SaveIdentity(ctx context.Context, id Identity) error
	GetIdentity(ctx context.Context, seed string) (Identity, error)
}

var (
	fallbackNames = []string{
		"FallbackDoge", "DipBuyer9000", "SerStaker", "WenLamboWizard",
		"DiamondHoof", "ChartGoblin", "ApeOfEpochs", "RugRadar",
	}
	fallbackSigns = []string{
		"Aries rising, exit liquidity falling", "Taurus with a bear bias",
		"Gemini: long and short at once", "Leo of the order book",
		"Scorpio, stings on red candles", "Capricorn, compounding quietly",
	}
	fallbackVibes = []string{
		"buys the top with conviction", "only trades after midnight",
		"trusts the chart, never the team", "holds through anything",
	}
)

// IdentityGenerator creates personas, asking the model first and falling
// back to a deterministic pick when it cannot answer.
type IdentityGenerator struct {
	Model *Gemini
}

// Generate produces an identity for the seed. The zero seed gets the
// canonical fallback persona.
func (g IdentityGenerator) Generate(ctx context.Context, seed string) Identity {
	if g.Model != nil && seed != "" {
		if id, err := g.fromModel(ctx, seed); err == nil {
			return id
		}
	}
	return staticIdentity(seed)
}

func (g IdentityGenerator) fromModel(ctx context.Context, seed string) (Identity, error) {
	prompt := fmt.Sprintf(
		"Invent a meme trader persona for wallet %q. Answer with ONLY a JSON object with "+
			"keys username, astrology, vibe. Keep each value under 60 characters.", seed)

	var req generateRequest
	req.Contents = make([]struct {
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	}, 1)
	req.Contents[0].Parts = []struct {
		Text string `json:"text"`
	}{{Text: prompt}}

	text, err := g.Model.generate(ctx, req)
	if err != nil {
		return Identity{}, err
	}
	var id Identity
	if err := json.Unmarshal([]byte(extractJSON(text)), &id); err != nil || id.Username == "" {
		return Identity{}, fmt.Errorf("%w: malformed identity", ErrUnavailable)
	}
	id.Seed = seed
	id.Method = MethodAI
	id.CreatedAt = time.Now().UTC().Format(time.RFC3339)
	return id, nil
}

// staticIdentity picks stable values from the seed hash so repeat calls
// for the same wallet agree.
func staticIdentity(seed string) Identity {
	sum := sha256.Sum256([]byte(seed))
	pick := func(off int, n int) int {
		return int(binary.BigEndian.Uint32(sum[off:off+4]) % uint32(n))
	}
	return Identity{
		Username:  fallbackNames[pick(0, len(fallbackNames))],
		Astrology: fallbackSigns[pick(4, len(fallbackSigns))],
		Vibe:      fallbackVibes[pick(8, len(fallbackVibes))],
		Seed:      seed,
		Method:    MethodRuleBased,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}
