package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"resource-ratelimit/ratelimit"
	"resource-ratelimit/ratelimit/domain"
	"resource-ratelimit/ratelimit/infra"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

// notesResource é um recurso de exemplo: só declara Get e Post; Put, Delete
// e Patch não existem no tipo base.
type notesResource struct{}

func (notesResource) Get(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]string{"notes": "all"})
}

func (notesResource) Post(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]string{"created": "ok"})
}

func main() {
	// .env é opcional; variáveis já exportadas têm precedência
	_ = godotenv.Load()

	points := getenvIntDefault("RATE_POINTS", 5)
	duration := getenvIntDefault("RATE_DURATION", 1)
	blockDuration := getenvIntDefault("RATE_BLOCK_DURATION", 0)
	trustProxy := getenvBoolDefault("TRUST_PROXY", false)
	depth := getenvIntDefault("TRUSTED_PROXY_DEPTH", 0)

	store := infra.NewStore(domain.Config{
		Points:        points,
		Duration:      duration,
		BlockDuration: blockDuration,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	store.StartJanitor(ctx)

	stats := infra.NewMemoryStatsStore(infra.WithTrackKeys(true))

	limiter := ratelimit.New(ratelimit.Options{
		Consumer:            store,
		Trust:               domain.TrustPolicy{TrustProxy: trustProxy, TrustedProxyDepth: depth},
		Stats:               stats,
		AddRateLimitHeaders: true,
	})

	// só o POST passa pelo gate; GET fica livre
	notes := limiter.WrapResource(notesResource{}, ratelimit.ResourceOptions{
		Methods:       []string{"post"},
		MaxConcurrent: 50,
	})

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Mount("/notes", notes.Routes())
	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"total":   stats.Total(),
			"byRoute": stats.ByRoute(),
			"byKey":   stats.ByKey(),
		})
	})

	addr := getenvDefault("LISTEN_ADDR", ":8081")

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("example server listening on %s (points=%d duration=%ds)", addr, points, duration)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
