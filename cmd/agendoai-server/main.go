package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/Rauan19/agendoai-sub000/internal/cache"
	"github.com/Rauan19/agendoai-sub000/internal/config"
	"github.com/Rauan19/agendoai-sub000/internal/events"
	"github.com/Rauan19/agendoai-sub000/internal/health"
	"github.com/Rauan19/agendoai-sub000/internal/service/bookings"
	"github.com/Rauan19/agendoai-sub000/internal/service/schedule"
	"github.com/Rauan19/agendoai-sub000/internal/service/slots"
	"github.com/Rauan19/agendoai-sub000/internal/store"
	"github.com/Rauan19/agendoai-sub000/internal/store/postgres"
	"github.com/Rauan19/agendoai-sub000/internal/telemetry"
	grpcTransport "github.com/Rauan19/agendoai-sub000/internal/transport/grpc"
	"github.com/Rauan19/agendoai-sub000/internal/transport/httpapi"
)

const serviceName = "agendoai-server"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load(".env")
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting",
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("log_level", cfg.LogLevel),
		slog.String("timezone", cfg.Location.String()),
		slog.Int("break_minutes", cfg.BreakMinutes),
	)

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:     cfg.OTelEnabled,
		ServiceName: serviceName,
		Endpoint:    cfg.OTelEndpoint,
		SampleRatio: cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return err
	}
	defer func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}()

	checks := []health.Check{{Name: "db", Fn: postgres.Ping(db)}}

	// A nil cache.Client keeps the catalog uncached.
	var cacheClient cache.Client
	var limiter httpapi.Limiter = httpapi.NewLocalLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		defer func() { _ = rdb.Close() }()
		cacheClient = rdb
		limiter = httpapi.NewRedisLimiter(rdb, cfg.RateLimitPerMinute, time.Minute, "agendoai:rl")
		checks = append(checks, health.Check{Name: "redis", Fn: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		log.Info("redis enabled", slog.String("redis_addr", cfg.RedisAddr))
	}

	ledger := postgres.NewLedgerRepo(db)
	scheduleRepo := postgres.NewScheduleRepo(db)
	blockRepo := postgres.NewBlockRepo(db)
	browseCatalog, bookingCatalog := catalogs(db, cacheClient, cfg, log)

	slotSvc := slots.NewService(scheduleRepo, blockRepo, ledger, browseCatalog, slots.Config{
		BreakMinutes: cfg.BreakMinutes,
		Location:     cfg.Location,
	}, log)
	bookingSvc := bookings.NewService(ledger, scheduleRepo, blockRepo, bookingCatalog, bookings.Config{
		BreakMinutes: cfg.BreakMinutes,
		Location:     cfg.Location,
	}, log)
	scheduleSvc := schedule.NewService(scheduleRepo, blockRepo, browseCatalog, log)

	publisher := events.NewPublisher(postgres.NewOutboxRepo(db), log, events.PublisherConfig{
		Brokers:   cfg.KafkaBrokers,
		PollEvery: cfg.OutboxPollInterval,
		BatchSize: cfg.OutboxBatchSize,
	})
	if publisher.Enabled() {
		checks = append(checks, health.Check{Name: "kafka", Fn: publisher.Ping})
	}
	checker := health.NewChecker(2*time.Second, checks...)

	gin.SetMode(gin.ReleaseMode)
	router := httpapi.NewHandler(slotSvc, bookingSvc, scheduleSvc, checker, log).Router(httpapi.Options{
		BodyLimitBytes: cfg.HTTPBodyLimitBytes,
		RequestTimeout: cfg.HTTPRequestTimeout,
		AllowedOrigins: cfg.CORSOrigins,
		Limiter:        limiter,
		TrustedProxies: cfg.TrustedProxies,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "agendoai.http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpcTransport.NewServer(checker, grpcTransport.NewBookingServer(slotSvc, bookingSvc, log), log, cfg.GRPCRequestTimeout)
	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return publisher.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received")
		shutdown(log, httpServer, grpcServer, cfg.ShutdownTimeout)
		return nil
	})

	return g.Wait()
}

// catalogs returns the catalog for browsing paths, cached when Redis is
// configured, and the uncached one the booking guard checks against.
func catalogs(db *bun.DB, cacheClient cache.Client, cfg config.Config, log *slog.Logger) (browse, booking store.Catalog) {
	repo := postgres.NewCatalogRepo(db)
	return cache.NewCatalogCache(repo, cacheClient, cfg.RedisCatalogTTL, log), repo
}

func shutdown(log *slog.Logger, httpServer *http.Server, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
