package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tvloc02/EventVer1-sub001/notification-service/config"
	"github.com/tvloc02/EventVer1-sub001/notification-service/handlers"
	"github.com/tvloc02/EventVer1-sub001/notification-service/services"
	"github.com/tvloc02/EventVer1-sub001/shared/logging"
)

// Notification service delivers the account emails the auth service asks
// for: verification links, password reset links and password change notices.
func main() {
	cfg := config.LoadNotificationConfig()
	log := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).With("service", "notification-service")
	cfg.Report(context.Background(), log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sender services.Sender = services.NewLogSender(log)
	if cfg.SMTP.Enabled() {
		sender = services.NewSMTPSender(cfg.SMTP)
	} else {
		log.Warn(ctx, "SMTP_HOST not set, emails will only be logged")
	}
	emailService := services.NewEmailService(sender, log.With("component", "email"))

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "notification-service",
			"status":  "healthy",
			"smtp":    cfg.SMTP.Enabled(),
		})
	})
	handlers.RegisterRoutes(router, handlers.NewEmailHandler(emailService))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info(ctx, "notification service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(ctx, "server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "shutdown failed", "error", err)
		os.Exit(1)
	}
	log.Info(shutdownCtx, "notification service stopped")
}
