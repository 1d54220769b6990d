package chain

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchAsset(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("project_id") != "key-1" {
			t.Errorf("missing project_id header")
		}
		if r.URL.Path != "/assets/asset1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"asset":      "asset1",
			"policy_id":  "policyabc",
			"asset_name": "DEMO",
			"quantity":   "1000",
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL, "key-1", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	asset, err := c.FetchAsset(context.Background(), "asset1")
	if err != nil {
		t.Fatal(err)
	}
	if asset.PolicyID != "policyabc" || asset.Symbol != "DEMO" {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if asset.Source != "blockfrost" {
		t.Fatalf("source %q", asset.Source)
	}
}

func TestFetchAssetNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "key-1", time.Second)
	if _, err := c.FetchAsset(context.Background(), "missing"); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"asset": "a1", "quantity": "5"}})
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "key-1", 10*time.Second)
	assets, err := c.FetchLatestAssets(context.Background(), 1)
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if len(assets) != 1 || assets[0].ID != "a1" {
		t.Fatalf("unexpected assets: %v", assets)
	}
	if got := calls.Load(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestRetryBounded(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "key-1", 10*time.Second)
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if got := calls.Load(); got != maxRetries {
		t.Fatalf("expected %d attempts, got %d", maxRetries, got)
	}
}

func TestTimeoutSurfacesAsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer srv.Close()

	c, _ := NewClient(srv.URL, "key-1", 50*time.Millisecond)
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestNewClientRequiresConfig(t *testing.T) {
	if _, err := NewClient("", "key", time.Second); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if _, err := NewClient("http://x", "", time.Second); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCachedProviderServesStaleOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode([]map[string]any{{"asset": "a1", "quantity": "5"}})
	}))
	defer srv.Close()

	inner, _ := NewClient(srv.URL, "key-1", time.Second)
	cp := NewCachedProvider(inner)
	cp.ttl = time.Millisecond

	first, err := cp.FetchLatestAssets(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}

	fail.Store(true)
	time.Sleep(5 * time.Millisecond) // let the cache expire

	second, err := cp.FetchLatestAssets(context.Background(), 1)
	if err != nil {
		t.Fatalf("stale fallback should not error: %v", err)
	}
	if len(second) != len(first) || second[0].ID != first[0].ID {
		t.Fatalf("expected cached assets, got %v", second)
	}
}

func TestSimulatorDeterministic(t *testing.T) {
	s := NewSimulator()
	a1, err := s.FetchAsset(context.Background(), "policyabc")
	if err != nil {
		t.Fatal(err)
	}
	a2, _ := s.FetchAsset(context.Background(), "policyabc")
	if a1.Name != a2.Name || a1.PolicyID != a2.PolicyID {
		t.Fatalf("simulator not deterministic: %+v vs %+v", a1, a2)
	}
	if _, err := s.FetchAsset(context.Background(), ""); !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}
