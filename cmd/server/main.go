package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ichi-a/geo-shock/internal/auth"
	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/config"
	"github.com/ichi-a/geo-shock/internal/db"
	geodns "github.com/ichi-a/geo-shock/internal/dns"
	"github.com/ichi-a/geo-shock/internal/geo"
	"github.com/ichi-a/geo-shock/internal/handlers"
	"github.com/ichi-a/geo-shock/internal/ingest"
	"github.com/ichi-a/geo-shock/internal/kafka"
	"github.com/ichi-a/geo-shock/internal/proxy"
	"github.com/ichi-a/geo-shock/internal/ratelimit"
	"github.com/ichi-a/geo-shock/internal/server"
	"github.com/ichi-a/geo-shock/internal/session"
	"github.com/ichi-a/geo-shock/internal/sse"
	geotls "github.com/ichi-a/geo-shock/internal/tls"
	"github.com/ichi-a/geo-shock/internal/tracker"
	"github.com/ichi-a/geo-shock/internal/ws"
)

func main() {
	configPath := flag.String("config", os.Getenv("GEO_CONFIG"), "path to config.yaml")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := server.SetupLogger(server.LogOptions{Level: cfg.Log.Level, Path: cfg.Log.Path})
	slog.SetDefault(logger)
	if cfg.UsesFallbackSalt() {
		logger.Warn("no salt configured, fingerprints use the built-in fallback; set LOG_SALT")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rules, err := classify.LoadRules(cfg.RulesFile)
	if err != nil {
		logger.Error("failed to load rules", "err", err)
		os.Exit(1)
	}

	// Connect to PostgreSQL
	if cfg.DatabaseURL == "" {
		logger.Error("database_url is required")
		os.Exit(1)
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Error("failed to connect to database", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	// Identity verification
	var resolver geodns.Resolver = net.DefaultResolver
	if cfg.Verify.Nameserver != "" {
		resolver = geodns.NewUpstreamResolver(cfg.Verify.Nameserver, cfg.Verify.Timeout)
	}
	var cache geodns.Cache = geodns.NewMemoryCache(cfg.Verify.CacheSize, cfg.Verify.CacheTTL)
	if cfg.RedisURL != "" {
		rc, err := geodns.NewRedisCache(ctx, cfg.RedisURL, cfg.Verify.CacheTTL, logger)
		if err != nil {
			logger.Warn("redis unavailable, using in-process verification cache", "err", err)
		} else {
			defer rc.Close()
			cache = rc
		}
	}
	verifier := geodns.NewVerifier(rules.Verify, resolver, cache, geodns.Options{
		Timeout: cfg.Verify.Timeout,
		Rate:    cfg.Verify.Rate,
		Burst:   cfg.Verify.Burst,
		Salt:    cfg.Salt,
	}, logger)

	pipeline, err := classify.NewPipeline(rules, cfg.Salt, verifier, logger)
	if err != nil {
		logger.Error("failed to compile rules", "err", err)
		os.Exit(1)
	}

	var asnSource tracker.ASNSource
	if cfg.GeoIP.ASNPath != "" {
		asnDB, err := geo.OpenASN(cfg.GeoIP.ASNPath)
		if err != nil {
			logger.Warn("asn database unavailable", "err", err)
		} else {
			defer asnDB.Close()
			asnSource = asnDB
		}
	}

	// Sinks
	sinks := []ingest.Sink{database}
	var publisher *kafka.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = kafka.Dial(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
		if err != nil {
			logger.Warn("kafka mirror disabled", "err", err)
		} else {
			sinks = append(sinks, publisher)
		}
	}

	recorder := ingest.New(pipeline, sinks, ingest.Options{
		QueueSize: cfg.Ingest.QueueSize,
		Timeout:   cfg.Ingest.Timeout,
	}, logger)

	sseHub := sse.NewHub(logger)
	pgListener := sse.NewPGListener(database.Pool, sseHub, logger)
	limiter := ratelimit.New(cfg.Ingest.Rate, cfg.Ingest.Burst)

	analyzer := session.NewAnalyzer(database, session.Options{
		Lookback:      cfg.Analysis.Lookback,
		Gap:           cfg.Analysis.SessionGap,
		BatchGap:      cfg.Analysis.BatchGap,
		LinkThreshold: cfg.Analysis.LinkFollowThreshold,
		Links:         rules.Links,
	}, logger)

	// HTTP handlers
	clientKey := handlers.ClientKey(cfg.Server.TrustProxy)
	ingestHandler := handlers.NewIngestHandler(recorder, limiter, clientKey, rules.Traps, logger)
	adminHandler := handlers.NewAdminHandler(database, analyzer, logger)
	statsHandler := handlers.NewStatsHandler(database, pipeline.Origins(), time.Local, logger)
	streamHandler := handlers.NewStreamHandler(sseHub, database, logger)
	feed := ws.NewFeed(database, sseHub, logger)
	track := tracker.New(recorder, tracker.Options{Skip: rules.Skip, Traps: rules.Traps, ASN: asnSource})

	var site http.Handler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})
	if cfg.Server.Upstream != "" {
		p, err := proxy.NewHandler(cfg.Server.Upstream, logger)
		if err != nil {
			logger.Error("invalid upstream", "err", err)
			os.Exit(1)
		}
		site = p
	}

	// Build router
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/ping", handlers.Ping(database, logger))
	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/api/log", ingestHandler.Log)
	r.With(limiter.Middleware(func(req *http.Request) string { return "stats:" + clientKey(req) })).
		Get("/api/stats", statsHandler.Stats)
	r.Route("/api/admin", func(admin chi.Router) {
		admin.Post("/login", auth.Login(cfg.Admin.Token, len(cfg.Server.TLSDomains) > 0))
		admin.Post("/logout", auth.Logout)

		admin.Group(func(g chi.Router) {
			g.Use(auth.RequireAdmin(cfg.Admin.Token))
			g.Get("/crawlers", adminHandler.Crawlers)
			g.Get("/logs", adminHandler.Logs)
			g.Get("/stream", streamHandler.HandleSSE)
			g.Get("/ws", feed.HandleWS)
		})
	})

	// Everything else is a site page: observe it, then serve it.
	r.With(track.Middleware).Handle("/*", site)

	if cfg.Admin.Token == "" {
		logger.Warn("admin.token is empty, admin routes are locked")
	}

	// Start background goroutines
	for i := 0; i < cfg.Ingest.Workers; i++ {
		go server.RunWithRecovery(ctx, logger, fmt.Sprintf("ingest-%d", i), recorder.Work)
	}
	go server.RunWithRecovery(ctx, logger, "pg-listener", pgListener.Listen)
	go server.RunWithRecovery(ctx, logger, "ratelimit-cleanup", limiter.CleanupLoop)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE + WebSocket need unlimited write time
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("shutdown signal received")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	if len(cfg.Server.TLSDomains) > 0 {
		cm := geotls.NewCertManager(geotls.Options{
			Domains: cfg.Server.TLSDomains,
			Email:   cfg.Server.ACMEEmail,
			Staging: cfg.Server.ACMEStaging,
		}, logger)
		err = cm.ServeTLS(ctx, srv)
	} else {
		logger.Info("server starting", "port", cfg.Server.Port)
		err = srv.ListenAndServe()
	}
	if err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}

	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Warn("kafka close failed", "err", err)
		}
	}
	logger.Info("server stopped", "dropped_pending", recorder.Pending())
}
