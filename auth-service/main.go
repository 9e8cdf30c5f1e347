package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/tvloc02/EventVer1-sub001/auth-service/handlers"
	"github.com/tvloc02/EventVer1-sub001/auth-service/middleware"
	_ "github.com/tvloc02/EventVer1-sub001/docs"
	"github.com/tvloc02/EventVer1-sub001/shared/accounts"
	"github.com/tvloc02/EventVer1-sub001/shared/clients"
	"github.com/tvloc02/EventVer1-sub001/shared/config"
	"github.com/tvloc02/EventVer1-sub001/shared/database"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
	"github.com/tvloc02/EventVer1-sub001/shared/metrics"
	"github.com/tvloc02/EventVer1-sub001/shared/session"
	"github.com/tvloc02/EventVer1-sub001/shared/token"
	"github.com/tvloc02/EventVer1-sub001/shared/utils/cache"
)

func main() {
	cfg := config.LoadConfig()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", "auth")
	cfg.Report(context.Background(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "auth service stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log logging.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(cfg.MetricsEnabled, reg)

	redisClient, err := cache.Connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	store := cache.NewRevocationStore(redisClient, cfg.StoreTimeout(), m)
	defer store.Close()
	if err := store.TestConnection(ctx); err != nil {
		return err
	}

	accountStore, closeDB, err := openAccountStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	opts := token.Options{
		AccessSecret:  []byte(cfg.JWTAccessSecret),
		RefreshSecret: []byte(cfg.JWTRefreshSecret),
		Issuer:        cfg.JWTIssuer,
		Audience:      cfg.JWTAudience,
		AccessExpiry:  cfg.AccessExpiry(),
		RefreshExpiry: cfg.RefreshExpiry(),
		Metrics:       m,
	}
	issuer := token.NewIssuer(opts)
	verifier := token.NewVerifier(opts)

	audit := accounts.NewAuditRecorder(accountStore, log.With("component", "audit"))
	defer audit.Close()
	svc, err := accounts.NewService(accounts.Config{
		Store:              accountStore,
		Issuer:             issuer,
		Mailer:             clients.NewNotificationClient(cfg.NotificationServiceURL, 10*time.Second),
		Logger:             log.With("component", "accounts"),
		Events:             audit,
		FrontendURL:        cfg.FrontendURL,
		LockoutMaxFailures: cfg.GetLockoutMaxFailures(),
		LockoutWindow:      cfg.GetLockoutWindow(),
		ResetMaxAttempts:   cfg.GetPasswordResetMaxAttempts(),
		ResetWindow:        cfg.GetPasswordResetWindow(),
	})
	if err != nil {
		return err
	}
	defer svc.Wait()

	mgr, err := session.NewManager(session.Config{
		Issuer:        issuer,
		Verifier:      verifier,
		Store:         store,
		Accounts:      svc,
		Logger:        log.With("component", "session"),
		Metrics:       m,
		Events:        audit,
		Rotate:        cfg.RefreshRotation,
		SweepInterval: cfg.SweepInterval(),
	})
	if err != nil {
		return err
	}
	svc.SetSessions(mgr)

	if cfg.SuperAdminPassword != "" {
		if _, err := svc.EnsureSuperAdmin(ctx, cfg.SuperAdminEmail, cfg.SuperAdminPassword, "Super", "Admin"); err != nil {
			log.Warn(ctx, "could not ensure super admin", "error", err)
		}
	}

	mgr.Start(ctx)
	defer mgr.Stop()

	rateLimiter := middleware.NewRateLimiter(30 * time.Minute)
	defer rateLimiter.Stop()

	h := handlers.NewAuthHandler(handlers.Deps{
		Sessions: mgr,
		Accounts: svc,
		Issuer:   issuer,
		Verifier: verifier,
		Stats:    store,
		Logger:   log.With("component", "http"),
	})

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.FrontendURL},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID", "X-Client-Platform"},
		ExposeHeaders:    []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(router, h, rateLimiter, handlers.RouteLimits{
		General: middleware.RateLimitConfig{
			MaxRequests:   cfg.GetRateLimitMaxRequests(),
			TimeWindow:    cfg.GetRateLimitTimeWindow(),
			BlockDuration: cfg.GetRateLimitBlockDuration(),
		},
		Login: middleware.RateLimitConfig{
			MaxRequests:   cfg.GetLoginRateLimitMaxAttempts(),
			TimeWindow:    cfg.GetLoginRateLimitWindow(),
			BlockDuration: cfg.GetLoginRateLimitBlock(),
		},
		PasswordReset: middleware.RateLimitConfig{
			MaxRequests:   cfg.GetPasswordResetMaxAttempts(),
			TimeWindow:    cfg.GetPasswordResetWindow(),
			BlockDuration: cfg.GetPasswordResetBlock(),
		},
	})

	// Health check
	router.GET("/health", func(c *gin.Context) {
		status, code := "healthy", http.StatusOK
		if err := store.Ping(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "service": "auth"})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              ":" + cfg.AuthServicePort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "auth service starting", "port", cfg.AuthServicePort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down auth service")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openAccountStore connects the account database selected by DB_DRIVER.
func openAccountStore(ctx context.Context, cfg *config.Config, log logging.Logger) (accounts.Store, func(), error) {
	if cfg.DBDriver == "mongo" {
		client, err := database.ConnectMongo(ctx, cfg.MongoURI, log)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.MongoDB)
		if err := database.EnsureMongoIndexes(ctx, db, log); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, nil, err
		}
		return accounts.NewMongoStore(db), func() { _ = client.Disconnect(context.Background()) }, nil
	}

	db, err := database.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Migrate(ctx, db, log); err != nil {
		_ = database.Close(db)
		return nil, nil, err
	}
	return accounts.NewGormStore(db), func() { _ = database.Close(db) }, nil
}
