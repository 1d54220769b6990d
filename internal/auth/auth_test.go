package auth

import (
	"testing"
	"time"
)

func withSecret(t *testing.T, value string) {
	t.Helper()
	t.Setenv(secretEnvVariable, value)
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
}

func TestGenerateAndValidate(t *testing.T) {
	withSecret(t, "unit-test-secret")

	token, err := GenerateToken("addr1qwallet", []string{"Wallet", "wallet", ""}, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "addr1qwallet" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "wallet" {
		t.Fatalf("roles not deduplicated: %v", claims.Roles)
	}
}

func TestGenerateRequiresSecret(t *testing.T) {
	withSecret(t, "")
	if _, err := GenerateToken("addr1q", nil, time.Hour); err == nil {
		t.Fatal("expected error without secret")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	withSecret(t, "unit-test-secret")
	for _, tok := range []string{"", "  ", "not.a.jwt"} {
		if _, err := ParseAndValidate(tok); err == nil {
			t.Fatalf("expected rejection for %q", tok)
		}
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	withSecret(t, "secret-one")
	token, err := GenerateToken("addr1q", nil, time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	withSecret(t, "secret-two")
	if _, err := ParseAndValidate(token); err == nil {
		t.Fatal("expected rejection with rotated secret")
	}
}

func TestWalletLoginFlow(t *testing.T) {
	withSecret(t, "unit-test-secret")
	ws := NewWalletSessions()

	nonce, err := ws.IssueNonce("addr1qwallet")
	if err != nil {
		t.Fatalf("IssueNonce: %v", err)
	}

	token, err := ws.Login("addr1qwallet", nonce, "sig-bytes")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "addr1qwallet" {
		t.Fatalf("unexpected subject: %s", claims.Subject)
	}

	// Nonce is single-use.
	if _, err := ws.Login("addr1qwallet", nonce, "sig-bytes"); err != ErrUnknownNonce {
		t.Fatalf("expected ErrUnknownNonce on replay, got %v", err)
	}
}

func TestWalletLoginRejectsEmptySignature(t *testing.T) {
	withSecret(t, "unit-test-secret")
	ws := NewWalletSessions()
	nonce, _ := ws.IssueNonce("addr1qwallet")
	if _, err := ws.Login("addr1qwallet", nonce, "  "); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestWalletLoginExpiredNonce(t *testing.T) {
	withSecret(t, "unit-test-secret")
	ws := NewWalletSessions()
	now := time.Now()
	ws.now = func() time.Time { return now }

	nonce, _ := ws.IssueNonce("addr1qwallet")
	ws.now = func() time.Time { return now.Add(nonceTTL + time.Second) }

	if _, err := ws.Login("addr1qwallet", nonce, "sig"); err != ErrUnknownNonce {
		t.Fatalf("expected ErrUnknownNonce after expiry, got %v", err)
	}
}
