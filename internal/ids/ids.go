// Package ids generates the identifiers used across the registry.
package ids

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewToken returns a token identifier ("tok_" prefix, lowercase).
func NewToken() string {
	return "tok_" + strings.ToLower(New())
}

// NewPolicy returns a minting-policy identifier ("policy" prefix, lowercase).
func NewPolicy() string {
	return "policy" + strings.ToLower(New())
}

// NewTx returns a short transaction reference for demo fills.
func NewTx() string {
	return "tx_" + randomHex(6)
}

// NewReportID returns an opaque report identifier.
func NewReportID() string {
	return randomHex(8)
}

// NewAnalysisRef returns a published-analysis reference.
func NewAnalysisRef() string {
	return "hash_" + randomHex(8)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = cryptorand.Read(b)
	return hex.EncodeToString(b)
}
