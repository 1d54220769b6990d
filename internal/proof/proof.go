// Package proof builds the simulated decision proofs attached to
// whistleblower reports and risk analyses.
//
// This is a deterministic SHA-256 hash chain, not a proving system: there is
// no circuit, no witness and no verifier. Bundles are labelled Simulated so
// no consumer can mistake them for a cryptographic guarantee; they exist to
// give the audit trail a stable commitment hash.
package proof

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Points mirrors a Groth16 proof layout filled with digest slices.
type Points struct {
	PiA [2]string    `json:"pi_a"`
	PiB [2][2]string `json:"pi_b"`
	PiC [2]string    `json:"pi_c"`
}

// Bundle is the structured output of one Build call.
type Bundle struct {
	Protocol      string    `json:"protocol"`
	Curve         string    `json:"curve"`
	Commitment    string    `json:"commitment"`
	Nullifier     string    `json:"nullifier"`
	Proof         Points    `json:"proof"`
	PublicSignals []string  `json:"publicSignals"`
	Simulated     bool      `json:"simulated"`
	GeneratedAt   time.Time `json:"generatedAt"`
}

// Builder derives commitment bundles. The random source is injectable so
// tests can pin the per-call secret.
type Builder struct {
	random io.Reader
}

// NewBuilder returns a Builder backed by crypto/rand.
func NewBuilder() *Builder {
	return &Builder{random: rand.Reader}
}

// NewBuilderWithRandom returns a Builder reading secrets from r.
func NewBuilderWithRandom(r io.Reader) *Builder {
	return &Builder{random: r}
}

// Build derives the hash chain for one report:
//
//	nullifier  = H(secret || reporterKey)
//	commitment = H(nullifier || tokenID || millis(ts))
//	proof      = H(commitment || payload)
//
// The secret is a fresh 32-byte value per call and is not retained, so the
// chain is not reproducible afterwards.
func (b *Builder) Build(tokenID, reporterKey, payload string, ts time.Time) (Bundle, error) {
	if reporterKey == "" {
		reporterKey = "anonymous"
	}

	var secret [32]byte
	if _, err := io.ReadFull(b.random, secret[:]); err != nil {
		return Bundle{}, fmt.Errorf("read secret: %w", err)
	}

	nullifier := hexSHA256(hex.EncodeToString(secret[:]), reporterKey)
	commitment := hexSHA256(nullifier, tokenID, strconv.FormatInt(ts.UnixMilli(), 10))
	digest := hexSHA256(commitment, payload)

	return Bundle{
		Protocol:   "groth16-simulated",
		Curve:      "bn128",
		Commitment: commitment,
		Nullifier:  nullifier[:32],
		Proof: Points{
			PiA: [2]string{digest[:32], digest[32:64]},
			PiB: [2][2]string{
				{digest[:16], digest[16:32]},
				{digest[32:48], digest[48:64]},
			},
			PiC: [2]string{digest[:32], digest[32:64]},
		},
		PublicSignals: []string{commitment[:16]},
		Simulated:     true,
		GeneratedAt:   ts.UTC(),
	}, nil
}

// DecisionHash commits an analysis verdict to a stable summary string and
// its SHA-256 digest, stored alongside the audit entry.
func DecisionHash(policyID string, rugProbability int, ts time.Time) (summary, digest string) {
	summary = fmt.Sprintf("policyId=%s|rug=%d|ts=%d", policyID, rugProbability, ts.UnixMilli())
	sum := sha256.Sum256([]byte(summary))
	return summary, hex.EncodeToString(sum[:])
}

func hexSHA256(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
