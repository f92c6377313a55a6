package main

import (
	"context"
	"errors"
	"fmt"
	"github.com/redis/go-redis/v9"
	"github.com/rookgm/reviewmart/config"
	"github.com/rookgm/reviewmart/internal/auth"
	handler "github.com/rookgm/reviewmart/internal/handler/http"
	"github.com/rookgm/reviewmart/internal/logger"
	"github.com/rookgm/reviewmart/internal/payment"
	"github.com/rookgm/reviewmart/internal/ratelimit"
	"github.com/rookgm/reviewmart/internal/repository"
	"github.com/rookgm/reviewmart/internal/repository/memory"
	"github.com/rookgm/reviewmart/internal/repository/postgres"
	"github.com/rookgm/reviewmart/internal/service"
	"github.com/rookgm/reviewmart/internal/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// storage holds repositories of one backend
type storage struct {
	tasks    repository.TaskRepository
	wallets  repository.WalletRepository
	settings repository.SettingsRepository
	refunds  repository.RefundRepository
	close    func()
}

// openStorage connects to postgres and migrates it, in-memory storage is used when dsn is empty
func openStorage(ctx context.Context, dsn string) (*storage, error) {
	if dsn == "" {
		logger.Log.Warn("Database DSN is empty, using in-memory storage")
		store := memory.New()
		return &storage{
			tasks:    store,
			wallets:  store,
			settings: store,
			refunds:  store,
			close:    func() {},
		}, nil
	}

	db, err := postgres.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return &storage{
		tasks:    postgres.NewTaskRepository(db),
		wallets:  postgres.NewWalletRepository(db),
		settings: postgres.NewSettingsRepository(db),
		refunds:  postgres.NewRefundRepository(db),
		close:    db.Close,
	}, nil
}

// newLimiter returns redis backed limiter, in-memory one when addr is empty
func newLimiter(ctx context.Context, addr string) (ratelimit.Limiter, func()) {
	if addr == "" {
		return ratelimit.NewMemoryLimiter(nil), func() {}
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		// limiter lets requests through while redis is down
		logger.Log.Warn("Redis is not ready", zap.String("addr", addr), zap.Error(err))
	}

	return ratelimit.NewRedisLimiter(rdb), func() {
		if err := rdb.Close(); err != nil {
			logger.Log.Warn("Error closing redis client", zap.Error(err))
		}
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// create new config
	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// initialize logger
	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer logger.Log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStorage(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer store.close()

	limiter, closeLimiter := newLimiter(ctx, cfg.RedisAddr)
	defer closeLimiter()

	tokenKey, err := cfg.TokenKeyBytes()
	if err != nil {
		return err
	}
	token := auth.NewAuthToken(tokenKey)

	// dependency injection
	gateways := payment.NewFactory(store.settings, payment.Endpoints{
		RazorpayAPIURL: cfg.RazorpayAPIURL,
		PayUPaymentURL: cfg.PayUPaymentURL,
		PayUInfoURL:    cfg.PayUInfoURL,
	}, payment.WithTimeout(cfg.GatewayTimeout))

	taskService := service.NewTaskService(store.tasks)
	balanceService := service.NewBalanceService(store.wallets, cfg.MinWithdrawal)
	paymentService := service.NewPaymentService(gateways, store.refunds, cfg.ReceiptPrefix)

	router := newRouter(handlers{
		task:    handler.NewTaskHandler(taskService),
		balance: handler.NewBalanceHandler(balanceService),
		payment: handler.NewPaymentHandler(paymentService),
		admin:   handler.NewAdminHandler(balanceService),
	}, token, limiter, logger.Log)

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Log.Info("Running server", zap.String("addr", cfg.ServerAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		worker.NewRefundReconciler(paymentService, cfg.RefundPollInterval).Run(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
