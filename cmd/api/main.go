package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tokenwatch.org/internal/ai"
	"tokenwatch.org/internal/auth"
	"tokenwatch.org/internal/chain"
	"tokenwatch.org/internal/config"
	"tokenwatch.org/internal/factory"
	"tokenwatch.org/internal/httpapi"
	"tokenwatch.org/internal/mpm"
	"tokenwatch.org/internal/obs"
	"tokenwatch.org/internal/store/pg"
	"tokenwatch.org/internal/store/sqlite"
	"tokenwatch.org/internal/stream"
	"tokenwatch.org/internal/token"
	"tokenwatch.org/internal/trust"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.AuthSecret == "" {
		log.Printf("TOKENWATCH_AUTH_SECRET not set; wallet logins will be rejected")
	}

	// Store selection: Postgres when a DSN is set, SQLite otherwise. The
	// in-memory store only backs tests.
	var (
		registry   token.Store
		market     mpm.Store
		identities ai.IdentityStore
		probe      httpapi.ReadyProbe
		closeStore func() error
	)
	switch {
	case cfg.PGDSN != "":
		st, err := pg.Open(cfg.PGDSN)
		if err != nil {
			log.Fatalf("open postgres: %v", err)
		}
		registry, market = st, st
		probe = httpapi.ReadyProbe{DB: st.DB()}
		closeStore = st.Close
		log.Printf("using postgres store")
	default:
		st, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("open sqlite: %v", err)
		}
		registry, market, identities = st, st, st
		probe = httpapi.ReadyProbe{DB: st.DB()}
		closeStore = st.Close
		log.Printf("using sqlite store at %s", cfg.SQLitePath)
	}

	// Chain provider: real Blockfrost client behind a cache when a key is
	// configured, deterministic simulator otherwise.
	var (
		provider chain.Provider
		fetcher  trust.ProvenanceFetcher
	)
	if client, err := chain.NewClient(cfg.BlockfrostURL, cfg.BlockfrostKey, cfg.ChainTimeout); err == nil {
		provider = chain.NewCachedProvider(client)
		fetcher = client
		log.Printf("chain provider: blockfrost")
	} else {
		sim := chain.NewSimulator()
		provider = sim
		fetcher = sim
		log.Printf("chain provider: simulator (%v)", err)
	}

	svc := trust.New(registry, trust.WithProvenance(fetcher))

	advisor := ai.Resilient{}
	identity := ai.IdentityGenerator{}
	if model, err := ai.NewGemini(cfg.GeminiURL, cfg.GeminiKey, cfg.AdvisorTimeout); err == nil {
		advisor.Primary = model
		identity.Model = model
		log.Printf("advisor: gemini")
	} else {
		log.Printf("advisor: rule-based only")
	}

	fac := factory.New(cfg.FactoryInterval)
	fac.Start()
	defer fac.Stop()

	feed := stream.New()

	api := httpapi.New(probe, version, httpapi.Deps{
		Trust:      svc,
		Factory:    fac,
		Market:     mpm.NewService(market),
		Chain:      provider,
		Advisor:    advisor,
		Identity:   identity,
		Identities: identities,
		Sessions:   auth.NewWalletSessions(),
		Stream:     feed,
	})

	var handler http.Handler = api.Handler()
	handler = httpapi.RateLimit(handler, cfg.RateBurst, cfg.RatePerSec)
	handler = httpapi.MaxBodyBytes(handler, 1<<20)
	handler = httpapi.CORS(handler)
	handler = httpapi.SecurityHeaders(handler)
	handler = httpapi.Logging(handler)
	handler = httpapi.RequestID(handler)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0, // SSE connections stay open
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting tokenwatch-api %s on %s", version, srv.Addr)
	obs.SetReady(true)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if closeStore != nil {
		_ = closeStore()
	}
	log.Println("Stopped")
}
