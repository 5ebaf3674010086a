package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	jwtpkg "accounthub/backend/internal/auth/jwt"
	"accounthub/backend/internal/config"
	"accounthub/backend/internal/event"
	"accounthub/backend/internal/geoip"
	"accounthub/backend/internal/health"
	"accounthub/backend/internal/logger"
	"accounthub/backend/internal/monitoring"
	"accounthub/backend/internal/notify"
	"accounthub/backend/internal/service"
	"accounthub/backend/internal/storage"
	"accounthub/backend/internal/storage/memory"
	"accounthub/backend/internal/storage/postgres"
	redisstore "accounthub/backend/internal/storage/redis"
	httptransport "accounthub/backend/internal/transport/http"
	"accounthub/backend/internal/ws"
)

// main 启动账户服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting accounthub server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.Bool("open_signup", cfg.Accounts.OpenSignup),
	)

	// 初始化存储层
	var store storage.Store
	if cfg.Database.Type != "" && cfg.Database.DSN != "" {
		store, err = initializeDatabaseStorage(cfg)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database storage", zap.String("type", cfg.Database.Type))
	} else {
		// 内存存储仅用于开发环境
		store = memory.NewStore()
		log.Info("using memory storage (development mode)")
	}
	defer store.Close()

	// 可选的 Redis 缓存（会话默认值 + 重发限流）
	var cache *redisstore.Cache
	if cfg.Redis.Enabled {
		cache, err = redisstore.NewCache(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			panic(fmt.Sprintf("failed to connect redis: %v", err))
		}
		defer cache.Close()
		log.Info("redis cache connected", zap.String("address", cfg.Redis.Address))
	}

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewChecker(store, cache, log)

	// 事件总线贯穿所有服务
	bus := event.NewBus(log)
	metrics.BindEvents(bus)

	// 通知器：配置了 SMTP 就走真实投递，否则降级为日志输出
	var notifier notify.Notifier
	if cfg.SMTP.Host != "" {
		notifier = notify.NewSMTPNotifier(notify.SMTPConfig{
			Host:         cfg.SMTP.Host,
			Port:         cfg.SMTP.Port,
			Username:     cfg.SMTP.Username,
			Password:     cfg.SMTP.Password,
			From:         cfg.SMTP.From,
			MaxPerSecond: cfg.SMTP.RatePerSecond,
		})
		log.Info("using SMTP notifier", zap.String("host", cfg.SMTP.Host))
	} else {
		notifier = notify.NewLogNotifier(log)
		log.Info("SMTP not configured, notifications go to log")
	}

	// 可选的 GeoIP 会话默认值推断
	var resolver geoip.Resolver
	if cfg.GeoIP.Enabled {
		httpResolver := geoip.NewHTTPResolver(cfg.GeoIP.Endpoint)
		resolver = httpResolver
		if cache != nil {
			resolver = geoip.NewCachedResolver(httpResolver, cache, cfg.GeoIP.CacheTTL)
		}
		log.Info("geoip resolver enabled", zap.String("endpoint", cfg.GeoIP.Endpoint))
	}

	// 初始化服务层
	codeService := service.NewSignupCodeService(store, bus, notifier, cfg.Accounts.SignupCodeExpiry)
	emailService := service.NewEmailAddressService(store, store)
	confirmService := service.NewConfirmationService(
		store, emailService, store, bus, notifier,
		cfg.Accounts.ConfirmationExpiry, cfg.Accounts.ConfirmURL,
	)
	if cache != nil && cfg.Accounts.MaxSendsPerWindow > 0 {
		confirmService.SetSendLimiter(cache, cfg.Accounts.ResendWindow, cfg.Accounts.MaxSendsPerWindow)
	}
	accountService := service.NewAccountService(
		store, codeService, confirmService, bus, notifier,
		cfg.Accounts.OpenSignup, cfg.Accounts.NotifyPasswordChange,
	)
	settingsService := service.NewSettingsService(store, resolver, cache)

	jwtManager := jwtpkg.NewManager(
		cfg.JWT.Secret,
		cfg.JWT.Issuer,
		cfg.JWT.AccessExpiry,
		cfg.JWT.RefreshExpiry,
	)
	log.Info("JWT configuration",
		zap.String("issuer", cfg.JWT.Issuer),
		zap.Duration("access_expiry", cfg.JWT.AccessExpiry),
		zap.Duration("refresh_expiry", cfg.JWT.RefreshExpiry),
	)

	// 创建 WebSocket Hub 并挂接事件流
	wsHub := ws.NewHub(cfg.CORS.AllowedOrigins, jwtManager, log)
	wsHub.BindEvents(bus)

	// 创建 HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:          cfg,
		AccountService:  accountService,
		EmailService:    emailService,
		ConfirmService:  confirmService,
		SettingsService: settingsService,
		CodeService:     codeService,
		JWTManager:      jwtManager,
		WebSocketHub:    wsHub,
		Metrics:         metrics,
		HealthChecker:   healthChecker,
		Logger:          log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// WebSocket Hub goroutine
	group.Go(func() error {
		log.Info("starting WebSocket hub")
		wsHub.Run(groupCtx)
		return nil
	})

	// 定时清理过期确认记录 goroutine
	group.Go(func() error {
		ticker := time.NewTicker(1 * time.Hour)
		defer ticker.Stop()

		log.Info("starting expired confirmation sweep task", zap.Duration("interval", 1*time.Hour))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("confirmation sweep task stopped")
				return nil
			case <-ticker.C:
				count, err := confirmService.DeleteExpiredConfirmations()
				if err != nil {
					log.Error("failed to sweep expired confirmations", zap.Error(err))
				} else if count > 0 {
					metrics.ConfirmationsSwept.Add(float64(count))
					log.Info("expired confirmations swept", zap.Int("count", count))
				}
			}
		}
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	// 等待所有 goroutine 完成
	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}

// initializeDatabaseStorage 按配置创建数据库存储。
func initializeDatabaseStorage(cfg *config.Config) (storage.Store, error) {
	switch cfg.Database.Type {
	case "postgres":
		return postgres.NewStore(cfg.Database.DSN)
	case "mysql":
		return postgres.NewMySQLStore(cfg.Database.DSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Database.Type)
	}
}
