// Command server runs the koperasi security service: session auth, the
// permission evaluator, rate limiting, and the audit trail behind one HTTP
// surface. Wiring lives here; behavior lives in the internal packages.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"kopguard/internal/audit"
	auditmetrics "kopguard/internal/audit/metrics"
	auditmemory "kopguard/internal/audit/store/memory"
	auditpostgres "kopguard/internal/audit/store/postgres"
	"kopguard/internal/permission"
	permmetrics "kopguard/internal/permission/metrics"
	permmw "kopguard/internal/permission/middleware"
	permmemory "kopguard/internal/permission/store/memory"
	permpostgres "kopguard/internal/permission/store/postgres"
	"kopguard/internal/platform/config"
	"kopguard/internal/platform/httpserver"
	"kopguard/internal/platform/kafka"
	"kopguard/internal/platform/logger"
	"kopguard/internal/platform/redis"
	rlmetrics "kopguard/internal/ratelimit/metrics"
	rlmw "kopguard/internal/ratelimit/middleware"
	rlservice "kopguard/internal/ratelimit/service"
	rlmemory "kopguard/internal/ratelimit/store/memory"
	rlredis "kopguard/internal/ratelimit/store/redis"
	"kopguard/internal/ratelimit/suspicion"
	transporthttp "kopguard/internal/transport/http"
)

func main() {
	// .env is developer convenience; production sets real env vars.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel)

	if err := run(cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audit store: postgres when configured, in-memory otherwise.
	var (
		auditStore audit.Store
		alertStore audit.AlertStore
	)
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		pgStore := auditpostgres.New(db)
		auditStore = pgStore
		alertStore = pgStore
		log.Info("audit store: postgres")
	} else {
		auditStore = auditmemory.NewInMemoryStore()
		alertStore = auditmemory.NewInMemoryAlertStore()
		log.Warn("audit store: in-memory, entries are lost on restart")
	}

	// Optional Kafka fan-out for critical alerts.
	alerterOpts := []audit.AlerterOption{
		audit.WithAlertMetrics(auditmetrics.New()),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka.Brokers, cfg.Kafka.AlertTopic)
		if err != nil {
			return err
		}
		defer producer.Close()
		alerterOpts = append(alerterOpts, audit.WithAlertProducer(producer))
		log.Info("alert stream: kafka", "topic", cfg.Kafka.AlertTopic)
	}

	alerter := audit.NewWebhookAlerter(cfg.Audit.WebhookURL, cfg.Audit.WebhookTimeout, alertStore, log, alerterOpts...)
	audits := audit.NewLogger(auditStore, log, cfg.Audit.SensitiveFields, cfg.Audit.RetentionDays,
		audit.WithAlerter(alerter),
		audit.WithProductionMode(cfg.IsProduction()),
		audit.WithEnabled(cfg.Audit.Enabled),
	)

	// Member and resource directory: postgres when configured.
	var (
		members   permmw.MemberDirectory
		resources permission.ResourceDirectory
	)
	if cfg.DatabaseURL != "" {
		directory, err := permpostgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer directory.Close()
		members = directory
		resources = directory
	} else {
		directory := permmemory.NewInMemoryDirectory()
		members = directory
		resources = directory
		log.Warn("member directory: in-memory demo mode")
	}

	evaluator := permission.NewEvaluator(resources, audits, log,
		permission.WithMetrics(permmetrics.New()))

	// Rate limit counters: redis when configured, in-process otherwise.
	var counters rlservice.CounterStore
	if cfg.RedisURL != "" {
		client, err := redis.New(cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		counters = rlredis.NewCounterStore(client.Client)
		log.Info("rate limit store: redis")
	} else {
		counters = rlmemory.NewInMemoryCounterStore()
	}
	limiter := rlservice.New(counters, audits, log,
		rlservice.WithMetrics(rlmetrics.New()))

	router := transporthttp.NewRouter(transporthttp.Deps{
		Auth: transporthttp.NewAuthHandler(
			transporthttp.StaticVerifier{Password: os.Getenv("DEMO_LOGIN_PASSWORD")},
			members, audits, log, cfg.JWTSigningKey),
		Business:  transporthttp.NewBusinessHandler(audits, log),
		Admin:     transporthttp.NewAdminHandler(audits, limiter, cfg.RateLimits, log),
		Gate:      permmw.NewGate(evaluator),
		Sessions:  permmw.NewAuthenticator(cfg.JWTSigningKey, members, log),
		RateLimit: rlmw.New(limiter, cfg.RateLimits, log),
		Suspicion: suspicion.NewScanner(audits, log),
	})

	srv := httpserver.New(cfg.Addr, router)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting kopguard", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		err := limiter.RunSweeper(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	group.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return group.Wait()
}
