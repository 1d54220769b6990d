package proof

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"testing"
	"time"
)

func TestBuildChain(t *testing.T) {
	secret := bytes.Repeat([]byte{0xAB}, 32)
	b := NewBuilderWithRandom(bytes.NewReader(secret))
	ts := time.UnixMilli(1700000000000)

	bundle, err := b.Build("tok_1", "wallet-1", "rugged my bag", ts)
	if err != nil {
		t.Fatal(err)
	}

	sum := func(parts ...string) string {
		h := sha256.New()
		for _, p := range parts {
			h.Write([]byte(p))
		}
		return hex.EncodeToString(h.Sum(nil))
	}
	nullifier := sum(hex.EncodeToString(secret), "wallet-1")
	commitment := sum(nullifier, "tok_1", strconv.FormatInt(ts.UnixMilli(), 10))
	digest := sum(commitment, "rugged my bag")

	if bundle.Commitment != commitment {
		t.Fatalf("commitment mismatch: %s", bundle.Commitment)
	}
	if bundle.Nullifier != nullifier[:32] {
		t.Fatalf("nullifier not truncated: %s", bundle.Nullifier)
	}
	if bundle.Proof.PiA[0] != digest[:32] || bundle.Proof.PiA[1] != digest[32:64] {
		t.Fatalf("pi_a mismatch: %v", bundle.Proof.PiA)
	}
	if len(bundle.PublicSignals) != 1 || bundle.PublicSignals[0] != commitment[:16] {
		t.Fatalf("public signals mismatch: %v", bundle.PublicSignals)
	}
	if !bundle.Simulated {
		t.Fatal("bundle must be labelled simulated")
	}
	if bundle.Protocol != "groth16-simulated" {
		t.Fatalf("unexpected protocol: %s", bundle.Protocol)
	}
}

func TestBuildDefaultsReporter(t *testing.T) {
	secret := bytes.Repeat([]byte{0x01}, 32)
	ts := time.UnixMilli(42)

	b1 := NewBuilderWithRandom(bytes.NewReader(secret))
	withDefault, err := b1.Build("tok_1", "", "text", ts)
	if err != nil {
		t.Fatal(err)
	}
	b2 := NewBuilderWithRandom(bytes.NewReader(secret))
	explicit, err := b2.Build("tok_1", "anonymous", "text", ts)
	if err != nil {
		t.Fatal(err)
	}
	if withDefault.Commitment != explicit.Commitment {
		t.Fatal("empty reporter key must hash as anonymous")
	}
}

func TestFreshSecretPerCall(t *testing.T) {
	b := NewBuilder()
	ts := time.Now()
	one, err := b.Build("tok_1", "k", "p", ts)
	if err != nil {
		t.Fatal(err)
	}
	two, err := b.Build("tok_1", "k", "p", ts)
	if err != nil {
		t.Fatal(err)
	}
	if one.Commitment == two.Commitment {
		t.Fatal("identical commitments across calls: secret not fresh")
	}
}

func TestDecisionHash(t *testing.T) {
	ts := time.UnixMilli(1700000000000)
	summary, digest := DecisionHash("policyabc", 72, ts)

	want := "policyId=policyabc|rug=72|ts=1700000000000"
	if summary != want {
		t.Fatalf("summary %q, want %q", summary, want)
	}
	sum := sha256.Sum256([]byte(want))
	if digest != hex.EncodeToString(sum[:]) {
		t.Fatalf("digest mismatch: %s", digest)
	}
}
