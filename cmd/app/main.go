package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"advisor-live-chat/internal/config"
	"advisor-live-chat/internal/domain/ports/adapter"
	"advisor-live-chat/internal/infra/api"
	pg "advisor-live-chat/internal/infra/db/postgres"
	"advisor-live-chat/internal/infra/i18n"
	"advisor-live-chat/internal/infra/logging"
	"advisor-live-chat/internal/infra/metrics"
	"advisor-live-chat/internal/infra/notify"
	"advisor-live-chat/internal/infra/orders"
	red "advisor-live-chat/internal/infra/redis"
	"advisor-live-chat/internal/infra/sched"
	"advisor-live-chat/internal/infra/web"
	"advisor-live-chat/internal/infra/worker"
	"advisor-live-chat/internal/usecase"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (noop external collaborators)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.PoolSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()
	if err := pg.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("schema")
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	sessionCache := red.NewSessionCache(redisClient, 5*time.Second)
	locker := red.NewLocker(redisClient)
	rateLimiter := red.NewRateLimiter(redisClient)
	availRepo := red.NewAvailabilityRepo(redisClient)

	// ---- Repositories ----
	sessionRepo := pg.NewChatSessionRepo(pool, sessionCache)
	txManager := pg.NewTxManager(pool)

	// ---- i18n ----
	tr, err := i18n.NewTranslator(i18n.LocalesFS, "en")
	if err != nil {
		logger.Fatal().Err(err).Msg("i18n")
	}

	// ---- Notification sink ----
	notifyPool := worker.NewPool(4, logger)
	notifyPool.Start(ctx)
	defer notifyPool.Stop()

	var sink adapter.Notifier = notify.NoopNotifier{}
	if cfg.Telegram.Token != "" && !cfg.Runtime.Dev {
		tg, err := notify.NewTelegramNotifier(cfg.Telegram.Token, cfg.Telegram.ChatIDs, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("telegram notifier")
		}
		sink = tg
	}
	notifier := notify.NewAsyncNotifier(sink, notifyPool, logger)

	// ---- Order subsystem ----
	var orderSvc adapter.OrderService = orders.NoopOrderService{}
	if cfg.Orders.BaseURL != "" && !cfg.Runtime.Dev {
		orderSvc, err = orders.NewHTTPOrderService(cfg.Orders.BaseURL, cfg.Orders.Token, cfg.Orders.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("order service")
		}
	}

	// ---- Use cases ----
	sessUC := usecase.NewSessionUseCase(sessionRepo, txManager, orderSvc, notifier, locker, tr, cfg.Chat.AdminIDs, cfg.Chat.AcceptLockTTL, logger)
	msgUC := usecase.NewMessageUseCase(sessionRepo, rateLimiter, cfg.Chat.MaxMessageBytes, cfg.Chat.RateLimit, cfg.Chat.RateWindow, logger)
	availUC := usecase.NewAvailabilityUseCase(availRepo, sessionRepo)

	// ---- Expiry sweep ----
	sweeper := sched.NewExpiryWorker(cfg.Chat.SweepInterval, sessUC, logger)
	go func() {
		if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("expiry worker stopped")
		}
	}()

	// ---- Periodic stats ----
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := pool.Stat()
				metrics.SetDBPoolStats(st.TotalConns(), st.IdleConns(), st.AcquiredConns())
				if counts, err := sessionRepo.CountByStatus(ctx, nil); err == nil {
					metrics.SetSessionsTotal(counts)
				}
			}
		}
	}()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Web.JWTSecret, cfg.Web.SecureCookie, "", cfg.Web.SessionTTL)
	webSrv := web.NewServer(sessUC, msgUC, availUC, tr, cfg.Web.AdminAPIKey, auth, logger)
	apiSrv := api.NewServer(sessUC, cfg.Web.PaymentCallbackPath, logger)

	rootMux := http.NewServeMux()
	apiSrv.Register(rootMux)
	rootMux.Handle("/", webSrv.Router())

	server := &http.Server{Addr: fmt.Sprintf(":%d", cfg.Web.Port), Handler: rootMux}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
