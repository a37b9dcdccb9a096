package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"staybooking/internal/api"
	"staybooking/internal/config"
	"staybooking/internal/database"
	"staybooking/internal/domain"
	"staybooking/internal/events"
	"staybooking/internal/geocode"
	"staybooking/internal/logging"
	"staybooking/internal/metrics"
	"staybooking/internal/notify"
	"staybooking/internal/repository"
	"staybooking/internal/service"
	"staybooking/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, logging.Component(logger, "database"))
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	geocoder, err := geocode.New(cfg.Geocoding)
	if err != nil {
		return err
	}

	redisClient := initRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	geoIndex, err := initGeoIndex(ctx, cfg, db, redisClient, logger)
	if err != nil {
		return err
	}

	bus := events.NewEventBus(logging.Component(logger, "events"))
	if fwd := initKafka(cfg, logger); fwd != nil {
		fwd.Attach(bus)
		defer fwd.Close()
	}
	initTelegram(cfg, bus, logger)

	geoWorker := worker.NewGeoSyncWorker(db, geoIndex, redisClient, worker.RetryPolicy{
		MaxRetries:    cfg.GeoSync.MaxRetries,
		InitialDelay:  time.Duration(cfg.GeoSync.InitialDelaySeconds) * time.Second,
		MaxDelay:      time.Duration(cfg.GeoSync.MaxDelaySeconds) * time.Second,
		BackoffFactor: 2,
	}, time.Duration(cfg.GeoSync.PollIntervalSeconds)*time.Second, logging.Component(logger, "geo-sync"))
	go geoWorker.Start(ctx)

	if err := seedStays(ctx, cfg, db, geocoder, geoWorker, logger); err != nil {
		logger.Warn().Err(err).Msg("seed stays failed, continuing")
	}

	stays := service.NewStayService(db, geocoder, geoWorker, bus, logging.Component(logger, "stays"))
	reservations := service.NewReservationService(db, db, bus, cfg.Reservations.MaxBookingDays, logging.Component(logger, "reservations"))
	search := service.NewSearchService(geoIndex, db, db, cfg.Search.DefaultRadiusKm, cfg.Search.MaxRadiusKm, logging.Component(logger, "search"))

	if cfg.Backup.Enabled {
		backup := database.NewBackupService(db, cfg.Backup, logging.Component(logger, "backup"))
		go backup.Start(ctx)
	}

	readiness := api.NewReadiness(2 * time.Second)
	readiness.Add("sqlite", db.PingContext)
	if redisClient != nil {
		readiness.Add("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	startMetrics(ctx, cfg, logger)

	return startServers(ctx, cfg, stays, reservations, search, readiness, logger)
}

func loadConfigAndLogger() (*config.Config, *zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, baseLogger, closer, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	client := repository.NewRedisClient(cfg.Redis)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing with in-memory geo index")
		_ = client.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return client
}

// initGeoIndex rebuilds the geo index from SQLite, the source of truth for locations.
func initGeoIndex(ctx context.Context, cfg *config.Config, db *database.DB, client *redis.Client, logger *zerolog.Logger) (domain.GeoIndex, error) {
	locations, err := db.StayLocations(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stay locations: %w", err)
	}

	memory := repository.NewMemoryGeoIndex()
	memory.Warm(locations)
	if client == nil {
		logger.Info().Int("stays", memory.Len()).Msg("using in-memory geo index")
		return memory, nil
	}

	redisIndex := repository.NewRedisGeoIndex(client, cfg.Redis.GeoKey)
	failover := repository.NewFailoverGeoIndex(redisIndex, memory, logging.Component(logger, "geo-index"))
	// через failover: то, что Redis не принял, догонится при восстановлении
	failed := 0
	for id, p := range locations {
		if err := failover.Index(ctx, id, p); err != nil {
			failed++
		}
	}
	if failed > 0 {
		logger.Warn().Int("failed", failed).Msg("redis geo reindex incomplete, serving from memory")
	}
	if err := metrics.WatchGeoIndex(failover.Degraded, failover.Missed); err != nil {
		logger.Warn().Err(err).Msg("geo index gauges not registered")
	}

	logger.Info().Int("stays", len(locations)).Str("key", cfg.Redis.GeoKey).Msg("using redis geo index with in-memory fallback")
	return failover, nil
}

func initKafka(cfg *config.Config, logger *zerolog.Logger) *events.KafkaForwarder {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	producer, err := events.NewKafkaProducer(cfg.Kafka)
	if err != nil {
		logger.Warn().Err(err).Msg("kafka init failed, continuing without event forwarding")
		return nil
	}
	logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka connected")
	return events.NewKafkaForwarder(producer, cfg.Kafka.Topic)
}

func initTelegram(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) {
	if cfg.Telegram.BotToken == "" {
		return
	}
	bot, err := notify.NewBotAPI(cfg.Telegram)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return
	}
	notify.NewTelegramNotifier(bot, cfg.Telegram.ChatID).Attach(bus)
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifications enabled")
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

func startServers(
	ctx context.Context,
	cfg *config.Config,
	stays *service.StayService,
	reservations *service.ReservationService,
	search *service.SearchService,
	readiness *api.Readiness,
	logger *zerolog.Logger,
) error {
	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		var err error
		grpcServer, err = api.NewGRPCServer(&cfg.API, readiness, logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.WatchHealth(ctx, 10*time.Second)
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	var httpServer *api.HTTPServer
	if cfg.API.HTTP.Enabled {
		httpServer = api.NewHTTPServer(cfg.API, stays, reservations, search, readiness, logging.Component(logger, "http"))
		go func() {
			if err := httpServer.Start(); err != nil {
				logger.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	logger.Info().Bool("grpc", grpcServer != nil).Bool("http", httpServer != nil).Msg("staybooking started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if httpServer != nil {
		_ = httpServer.Shutdown(shutdownCtx)
	}

	logger.Info().Msg("staybooking stopped")
	return nil
}
