package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"clubsched/internal/api"
	"clubsched/internal/audit"
	"clubsched/internal/config"
	"clubsched/internal/db"
	"clubsched/internal/engine"
	"clubsched/internal/events"
	"clubsched/internal/ledger"
	"clubsched/internal/metrics"
	"clubsched/internal/schedule"
)

func main() {
	_ = godotenv.Load()

	output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	logger := zerolog.New(output).With().Timestamp().Logger()

	cfg, err := config.Load(os.Getenv("CLUBSCHED_CONFIG_PATH"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open db error")
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.EnsureDefaultWeek(ctx, cfg.Facility.DefaultOpen, cfg.Facility.DefaultClose); err != nil {
		logger.Fatal().Err(err).Msg("seed weekday rules error")
	}

	ruleStore := schedule.NewStore(database, &logger)
	var rdb *redis.Client
	if cfg.Redis.Address != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		ruleStore.UseRedisCache(rdb, cfg.RulesTTL())
	}

	resolver := schedule.NewResolver(ruleStore, schedule.Params{
		SlotDuration: cfg.SlotDuration(),
		MinNotice:    cfg.MinNotice(),
		MaxAdvance:   cfg.MaxAdvance(),
		Location:     cfg.Location(),
	})
	capacityLedger := ledger.New(database, cfg.Facility.MaxGuests)

	bus := events.NewBus()
	audit.NewRecorder(database, &logger).Attach(bus)

	metrics.Register()

	eng := engine.New(database, resolver, capacityLedger, bus, engine.Options{
		AutoConfirm: cfg.Facility.AutoConfirm,
		LockTimeout: cfg.LockTimeout(),
		BusyRetries: cfg.Booking.BusyRetries,
		BusyBackoff: cfg.BusyBackoff(),
	}, &logger)

	if cfg.Audit.Enabled {
		exporter := audit.NewExporter(database, cfg.Audit.ExportPath,
			time.Duration(cfg.Audit.IntervalHours)*time.Hour, &logger)
		exporter.Start()
		defer exporter.Stop()
	}

	if cfg.Backup.Enabled {
		backup := db.NewBackup(cfg.Database.Path, db.BackupOptions{
			StoragePath:   cfg.Backup.StoragePath,
			Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
			RetentionDays: cfg.Backup.RetentionDays,
		}, &logger)
		go backup.Run(ctx)
	}

	if cfg.Monitoring.HealthCheckPort == 0 {
		cfg.Monitoring.HealthCheckPort = 8090
	}
	go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, rdb, &logger)

	if cfg.Monitoring.PrometheusEnabled {
		if cfg.Monitoring.PrometheusPort == 0 {
			cfg.Monitoring.PrometheusPort = 9090
		}
		go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
	}

	server := api.NewServer(eng, database, ruleStore, api.Options{
		Port:          cfg.API.Port,
		RatePerSecond: cfg.API.RatePerSecond,
		RateBurst:     cfg.API.RateBurst,
	}, &logger)

	logger.Info().Int("port", cfg.API.Port).Msg("scheduling engine started")
	if err := server.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("api server error")
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, rdb *redis.Client, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if rdb != nil {
			if err := rdb.Ping(ctxPing).Err(); err != nil {
				http.Error(w, "redis not ready", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
