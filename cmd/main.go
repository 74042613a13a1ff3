package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"neembleeat/internal/app"
	"neembleeat/internal/config"
	"neembleeat/internal/logging"
	"neembleeat/internal/monitoring"
	"neembleeat/internal/server"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
)

func main() {
	flag.Parse()

	// Initialize context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.MetricsConfig.Port = *metricsPort
	}

	log := logging.New(cfg.LogLevel)
	if log.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize services
	a, err := app.New(cfg, log, nil)
	if err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}
	defer a.Close()

	if err := a.SignIn(ctx); err != nil {
		log.WithError(err).Warn("Continuing without a signed-in user")
	}
	a.Start(ctx)

	// Initialize API server
	srv := server.New(server.Deps{
		View:     a.View,
		Carts:    a.Carts,
		Checkout: a.Checkout,
		Items:    a.Dashboard,
		Redirect: a.Redirect,
		Events:   a.TableEvents,
	}, server.Config{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		PollInterval:   cfg.Session.PollInterval,
		Debug:          gin.Mode() == gin.DebugMode,
	}, log)

	// Start metrics server
	if cfg.MetricsConfig.Enabled {
		go startMetricsServer(log, a.Metrics, cfg.MetricsConfig.Port, cfg.MetricsConfig.Path)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info("Shutting down servers...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("API server shutdown error")
		}

		cancel() // Cancel main context
	}()

	// Start server
	log.Infof("Starting API server on port %d (backend %s)", cfg.Server.Port, cfg.API.BaseURL)
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("API server error: %v", err)
	}
}

func startMetricsServer(log logrus.FieldLogger, metrics *monitoring.Metrics, port int, path string) {
	metricsRouter := gin.New()
	metricsRouter.Use(gin.Recovery())
	metricsRouter.GET(path, gin.WrapH(metrics.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	log.Infof("Starting metrics server on port %d", port)
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		log.WithError(err).Error("Metrics server error")
	}
}
