package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/auth"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/cache"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/config"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/events"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/events/kafka"
	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/ledger"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/logging"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/metrics"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/middleware"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/provisioning"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/storage"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/storage/memory"
	mongostore "github.com/sheikh-saqib/p2p-balance-ledger/internal/storage/mongo"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/storage/postgres"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/users"
)

const shutdownTimeout = 10 * time.Second

func main() {
	boot := zap.Must(zap.NewProduction())

	cfg, err := config.Load(boot)
	if err != nil {
		boot.Fatal("invalid configuration", zap.Error(err))
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		boot.Fatal("failed to build logger", zap.Error(err))
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	accountStore, userStore, closeStores, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStores()

	guarded := storage.NewBreakerStore(accountStore, storage.BreakerSettings{
		ConsecutiveFailures: cfg.BreakerMaxFailures,
		OpenTimeout:         10 * time.Second,
		HalfOpenRequests:    1,
	}, logger)

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		logger.Info("publishing transfer events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	} else {
		publisher = events.NewLogPublisher(logger)
	}

	l := ledger.NewLedger(guarded,
		ledger.WithPublisher(publisher, cfg.KafkaTopic),
		ledger.WithLogger(logger),
		ledger.WithMetrics(m),
		ledger.WithStoreTimeout(cfg.StoreTimeout),
		ledger.WithRetry(cfg.TransferMaxRetries, cfg.TransferRetryBase),
	)

	var searchCache users.SearchCache
	if cfg.RedisAddr != "" {
		rdb, err := cache.NewClient(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, user search is not cached", zap.Error(err))
		} else {
			defer rdb.Close()
			searchCache = cache.NewViewCache[[]users.UserView](rdb, cfg.SearchCacheTTL, logger)
		}
	}

	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	userSvc := users.NewService(userStore, provisioning.NewProvisioner(guarded, nil, logger), tokens, searchCache, logger)
	limiter := middleware.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: newRouter(routerDeps{
			users:    userSvc,
			ledger:   l,
			tokens:   tokens,
			limiter:  limiter,
			metrics:  m,
			registry: reg,
			logger:   logger,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", srv.Addr), zap.String("store", cfg.StoreBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				limiter.Sweep()
			}
		}
	})
	return g.Wait()
}

// openStores connects the configured backend. The returned func releases it.
func openStores(ctx context.Context, cfg *config.Config, logger *zap.Logger) (interfaces.AccountStore, interfaces.UserStore, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
		}
		if err := postgres.Migrate(db, logger); err != nil {
			db.Close()
			return nil, nil, nil, err
		}
		return postgres.NewPostgresAccountStore(db), postgres.NewPostgresUserStore(db), func() { db.Close() }, nil

	case config.BackendMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := mongostore.Connect(connectCtx, cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongostore.EnsureIndexes(connectCtx, db); err != nil {
			client.Disconnect(context.Background())
			return nil, nil, nil, err
		}
		closeFn := func() { client.Disconnect(context.Background()) }
		return mongostore.NewMongoAccountStore(client, db), mongostore.NewMongoUserStore(db), closeFn, nil

	default:
		logger.Warn("using in-memory store, data is lost on restart")
		return memory.NewMemoryAccountStore(), memory.NewMemoryUserStore(), func() {}, nil
	}
}
