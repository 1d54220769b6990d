// Package factory generates the simulated meme-coin feed: random coins on
// a fixed interval, kept in a capped in-memory list disjoint from the
// registry.
package factory

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"tokenwatch.org/internal/ids"
	"tokenwatch.org/internal/obs"
	"tokenwatch.org/internal/token"
)

const (
	// maxCoins caps the retained list; older coins fall off the end.
	maxCoins = 100
	// initialBatch seeds the list at construction.
	initialBatch = 10
	// maxBatch bounds one manual batch request.
	maxBatch = 20
)

var (
	namePrefixes = []string{
		"Doge", "Pepe", "Moon", "Shiba", "Floki", "Wojak", "Chad",
		"Giga", "Baby", "Turbo", "Wen", "Hodl", "Degen", "Lambo",
	}
	nameSuffixes = []string{
		"Inu", "Rocket", "Mars", "Coin", "Classic", "AI", "Max",
		"Moon", "X", "Cash", "Punk", "Ape",
	}
)

// Coin is one generated meme coin.
type Coin struct {
	TokenID      string    `json:"tokenId"`
	Name         string    `json:"name"`
	Symbol       string    `json:"symbol"`
	TrustScore   int       `json:"trust_score"`
	PolicyID     string    `json:"policyId"`
	ReportsCount int       `json:"reports_count"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

// Stats is the aggregate view over live coins, with the demo baselines the
// dashboard expects.
type Stats struct {
	AvgTrust      int `json:"avgTrust"`
	TotalAudits   int `json:"totalAudits"`
	ScamsDetected int `json:"scamsDetected"`
	ActiveTokens  int `json:"activeTokens"`
}

// Factory owns the coin list and the auto-generation ticker.
type Factory struct {
	mu       sync.Mutex
	coins    []Coin // newest first
	rnd      *rand.Rand
	interval time.Duration
	cancel   context.CancelFunc
}

// New seeds a factory with an initial batch. The ticker is not started.
func New(interval time.Duration) *Factory {
	f := &Factory{
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
		interval: interval,
	}
	f.GenerateBatch(initialBatch)
	return f
}

// Generate creates one coin and prepends it to the list.
func (f *Factory) Generate() Coin {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.randomCoin()
	f.coins = append([]Coin{c}, f.coins...)
	if len(f.coins) > maxCoins {
		f.coins = f.coins[:maxCoins]
	}
	return c
}

// GenerateBatch creates up to maxBatch coins at once.
func (f *Factory) GenerateBatch(n int) []Coin {
	if n <= 0 {
		n = 5
	}
	if n > maxBatch {
		n = maxBatch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := make([]Coin, 0, n)
	for i := 0; i < n; i++ {
		batch = append(batch, f.randomCoin())
	}
	f.coins = append(append([]Coin{}, batch...), f.coins...)
	if len(f.coins) > maxCoins {
		f.coins = f.coins[:maxCoins]
	}
	return batch
}

func (f *Factory) randomCoin() Coin {
	name := namePrefixes[f.rnd.Intn(len(namePrefixes))] + nameSuffixes[f.rnd.Intn(len(nameSuffixes))]
	symbol := strings.ToUpper(name)
	if len(symbol) > 5 {
		symbol = symbol[:5]
	}
	return Coin{
		TokenID:    ids.NewToken(),
		Name:       name,
		Symbol:     symbol,
		TrustScore: 5 + f.rnd.Intn(91), // [5,95]
		PolicyID:   ids.NewPolicy(),
		Source:     "meme_factory",
		CreatedAt:  time.Now().UTC(),
	}
}

// Coins returns up to limit coins, newest first.
func (f *Factory) Coins(limit int) []Coin {
	if limit <= 0 || limit > maxCoins {
		limit = 50
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if limit > len(f.coins) {
		limit = len(f.coins)
	}
	out := make([]Coin, limit)
	copy(out, f.coins[:limit])
	return out
}

// Coin finds a coin by token ID.
func (f *Factory) Coin(id string) (Coin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.coins {
		if c.TokenID == id || c.PolicyID == id {
			return c, true
		}
	}
	return Coin{}, false
}

// Penalize applies a whistleblower hit to a coin: one more report and a
// trust deduction floored at zero.
func (f *Factory) Penalize(id string, deduction int) (Coin, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.coins {
		if f.coins[i].TokenID == id {
			f.coins[i].ReportsCount++
			f.coins[i].TrustScore = token.ClampScore(f.coins[i].TrustScore - deduction)
			return f.coins[i], true
		}
	}
	return Coin{}, false
}

// Stats aggregates the live list with the dashboard baselines.
func (f *Factory) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	scams := 0
	for _, c := range f.coins {
		total += c.TrustScore
		if c.TrustScore < 30 {
			scams++
		}
	}
	avg := 0
	if len(f.coins) > 0 {
		avg = (total + len(f.coins)/2) / len(f.coins)
	}
	return Stats{
		AvgTrust:      avg,
		TotalAudits:   1240 + len(f.coins),
		ScamsDetected: 42 + scams,
		ActiveTokens:  len(f.coins),
	}
}

// Start launches the auto-generation ticker. Returns false when already
// running.
func (f *Factory) Start() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel != nil {
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	f.cancel = cancel
	go f.run(ctx)
	return true
}

// Stop halts the ticker. Returns false when not running.
func (f *Factory) Stop() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cancel == nil {
		return false
	}
	f.cancel()
	f.cancel = nil
	return true
}

// Running reports whether the ticker is active.
func (f *Factory) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancel != nil
}

func (f *Factory) run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c := f.Generate()
			obs.LogRequest(map[string]any{
				"level": "info",
				"msg":   fmt.Sprintf("meme factory generated %s (%s) trust=%d", c.Name, c.Symbol, c.TrustScore),
			})
		}
	}
}
