package auth

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	nonceTTL   = 5 * time.Minute
	sessionTTL = 24 * time.Hour
)

// Login-flow errors.
var (
	ErrUnknownNonce = errors.New("nonce not issued or expired")
	ErrBadSignature = errors.New("signature rejected")
)

// WalletSessions runs the nonce-based wallet login. A wallet asks for a
// nonce, signs it, and trades the signature for a session JWT. Signature
// checking is presence-only in this build; the nonce is still single-use
// and expiring so replays fail.
type WalletSessions struct {
	mu     sync.Mutex
	nonces map[string]issuedNonce
	now    func() time.Time
}

type issuedNonce struct {
	nonce   string
	expires time.Time
}

// NewWalletSessions returns an empty session broker.
func NewWalletSessions() *WalletSessions {
	return &WalletSessions{
		nonces: make(map[string]issuedNonce),
		now:    time.Now,
	}
}

// IssueNonce creates a fresh single-use nonce for the wallet, replacing
// any previous one.
func (w *WalletSessions) IssueNonce(wallet string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return "", errors.New("wallet is required")
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	nonce := fmt.Sprintf("tokenwatch-login-%s-%d", hex.EncodeToString(buf), w.now().Unix())

	w.mu.Lock()
	w.sweepLocked()
	w.nonces[wallet] = issuedNonce{nonce: nonce, expires: w.now().Add(nonceTTL)}
	w.mu.Unlock()
	return nonce, nil
}

// Login consumes the wallet's nonce and returns a session token.
func (w *WalletSessions) Login(wallet, nonce, signature string) (string, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" || nonce == "" {
		return "", ErrUnknownNonce
	}
	if strings.TrimSpace(signature) == "" {
		return "", ErrBadSignature
	}

	w.mu.Lock()
	issued, ok := w.nonces[wallet]
	if ok {
		delete(w.nonces, wallet)
	}
	w.mu.Unlock()

	if !ok || issued.nonce != nonce || w.now().After(issued.expires) {
		return "", ErrUnknownNonce
	}
	return GenerateToken(wallet, []string{"wallet"}, sessionTTL)
}

func (w *WalletSessions) sweepLocked() {
	now := w.now()
	for wallet, issued := range w.nonces {
		if now.After(issued.expires) {
			delete(w.nonces, wallet)
		}
	}
}
