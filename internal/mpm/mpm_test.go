package mpm

import (
	"context"
	"errors"
	"testing"

	"tokenwatch.org/internal/token"
)

func TestRefreshAndGet(t *testing.T) {
	s := NewService(NewMemoryStore())
	ctx := context.Background()

	r, err := s.Refresh(ctx, "policyabc", "DEMO")
	if err != nil {
		t.Fatal(err)
	}
	if r.MPM < 0 || r.MPM > 99 {
		t.Fatalf("mpm %d outside [0,99]", r.MPM)
	}
	if r.SampleSize < 50 || r.SampleSize >= 1050 {
		t.Fatalf("sample size %d outside [50,1050)", r.SampleSize)
	}
	if r.WindowMinutes != windowMinutes {
		t.Fatalf("window %d, want %d", r.WindowMinutes, windowMinutes)
	}

	got, err := s.Get(ctx, "policyabc")
	if err != nil {
		t.Fatal(err)
	}
	if got != r {
		t.Fatalf("stored %+v, refreshed %+v", got, r)
	}
}

func TestGetUnknownPolicy(t *testing.T) {
	s := NewService(NewMemoryStore())
	if _, err := s.Get(context.Background(), "policymissing"); !errors.Is(err, token.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRefreshDefaultsSymbol(t *testing.T) {
	s := NewService(NewMemoryStore())
	r, err := s.Refresh(context.Background(), "policyabc", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if r.TokenSymbol != "UNKNOWN" {
		t.Fatalf("symbol %q, want UNKNOWN", r.TokenSymbol)
	}
}

func TestSentimentThresholds(t *testing.T) {
	cases := map[int]string{
		0:   "NEUTRAL",
		40:  "NEUTRAL",
		41:  "BULLISH",
		80:  "BULLISH",
		81:  "PANIC",
		99:  "PANIC",
	}
	for value, want := range cases {
		if got := sentimentFor(value); got != want {
			t.Fatalf("sentimentFor(%d)=%q, want %q", value, got, want)
		}
	}
}
