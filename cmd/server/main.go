package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/freeeve/minimalists/api/internal/auth"
	"github.com/freeeve/minimalists/api/internal/config"
	"github.com/freeeve/minimalists/api/internal/handler"
	"github.com/freeeve/minimalists/api/internal/logger"
	"github.com/freeeve/minimalists/api/internal/metrics"
	"github.com/freeeve/minimalists/api/internal/middleware"
	"github.com/freeeve/minimalists/api/internal/repository/postgres"
	redisrepo "github.com/freeeve/minimalists/api/internal/repository/redis"
	"github.com/freeeve/minimalists/api/internal/service"
)

func main() {
	logger.Init()
	cfg, err := config.Load(os.Getenv("MIN_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	log.Info().Str("port", cfg.Server.Port).Int("tickRate", cfg.Match.TickRate).Msg("Config loaded")

	catalog, err := config.LoadCatalog(cfg.Match.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Match.CatalogPath).Msg("Catalog load failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := postgres.Connect(cfg.Database.URL, cfg.Database.MaxOpen, cfg.Database.MaxIdle)
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer db.Close()

	// Redis
	redisClient, err := redisrepo.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("Redis connection failed")
	}
	defer redisClient.Close()

	// Metrics
	matchMetrics := metrics.NewMatchMetricsCollector()
	aiMetrics := metrics.NewAIMetricsCollector()
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		if err := matchMetrics.Register(); err != nil {
			log.Fatal().Err(err).Msg("Register match metrics")
		}
		if err := aiMetrics.Register(); err != nil {
			log.Fatal().Err(err).Msg("Register AI metrics")
		}
	}

	matchRepo := postgres.NewMatchRepo(db)
	jwtMgr := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.SeatTokenTTL)

	// WebSocket hub
	wsHub := handler.NewHub()
	wsHub.SetObserver(matchMetrics)

	// Services
	matchSvc := service.NewMatchService(matchRepo, redisClient, wsHub, jwtMgr, service.Options{
		TickRate:        cfg.Match.TickRate,
		MaxDuration:     cfg.Match.MaxDuration,
		SnapshotEvery:   cfg.Redis.SnapshotEvery,
		SnapshotTTL:     cfg.Redis.SnapshotTTL,
		MaxLive:         cfg.Match.MaxLive,
		DefaultNeutrals: cfg.Match.DefaultNeutrals,
		Catalog:         catalog,
	})
	matchSvc.SetMetrics(matchMetrics)
	matchSvc.SetDecisionRecorder(aiMetrics)

	// Abort matches a previous process left marked live
	if _, err := matchSvc.ReapStale(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to reap stale matches (non-fatal)")
	}

	// Handlers
	matchHandler := handler.NewMatchHandler(matchSvc)
	wsHandler := handler.NewWSHandler(wsHub, jwtMgr, matchSvc)

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	go sweepLimiter(ctx, limiter)

	// Router
	mux := http.NewServeMux()
	seatMw := auth.Middleware(jwtMgr)
	seated := func(h http.HandlerFunc) http.Handler {
		return middleware.Chain(h, seatMw, limiter.Middleware)
	}

	// Health
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status, code := "ok", http.StatusOK
		if err := db.PingContext(r.Context()); err != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		} else if err := redisClient.Ping(r.Context()); err != nil {
			status, code = "redis unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		w.Write([]byte(`{"status":"` + status + `"}`))
	})
	if cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, metrics.Handler())
	}

	// Public match routes
	mux.Handle("POST /api/v1/matches", limiter.Middleware(http.HandlerFunc(matchHandler.CreateMatch)))
	mux.HandleFunc("GET /api/v1/matches", matchHandler.ListMatches)
	mux.HandleFunc("GET /api/v1/matches/history", matchHandler.History)
	mux.HandleFunc("GET /api/v1/matches/{id}", matchHandler.GetMatch)
	mux.HandleFunc("GET /api/v1/matches/{id}/result", matchHandler.GetResult)

	// Seat-token routes
	mux.Handle("POST /api/v1/matches/{id}/commands", seated(matchHandler.SubmitCommand))
	mux.Handle("POST /api/v1/matches/{id}/pause", seated(matchHandler.Pause))
	mux.Handle("POST /api/v1/matches/{id}/resume", seated(matchHandler.Resume))

	// WebSocket (optional seat token via query param)
	mux.HandleFunc("GET /api/v1/ws", wsHandler.ServeWS)

	// Apply global middleware
	root := middleware.Chain(mux, middleware.Logger, middleware.CORS(cfg.Server.CORSOrigin), middleware.JSON)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      root,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	if err := matchSvc.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Live matches did not stop in time")
	}
	log.Info().Msg("Server stopped")
}

// sweepLimiter drops idle rate-limit buckets until ctx is done.
func sweepLimiter(ctx context.Context, l *middleware.RateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.Sweep(); n > 0 {
				log.Debug().Int("count", n).Msg("Swept idle rate limit buckets")
			}
		}
	}
}
