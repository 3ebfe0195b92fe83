// Package main runs the wallet HTTP API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kalpe/internal/app"
	"kalpe/internal/config"
	"kalpe/internal/handlers"
	"kalpe/internal/logger"
	"kalpe/internal/metrics"
	"kalpe/internal/middleware"
	"kalpe/internal/routes"
	"kalpe/internal/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 15 * time.Second
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load(config.NewViper())
	if err != nil {
		logger.New("info", "kalpe-wallet").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.AppName)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, dbCheck, closeDB, err := app.OpenStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer func() {
		if err := closeDB(); err != nil {
			log.WithError(err).Warn("failed to close database connection")
		}
	}()

	walletCache, cacheCheck, closeCache := app.OpenCache(ctx, cfg, log)
	defer func() {
		if err := closeCache(); err != nil {
			log.WithError(err).Warn("failed to close redis connection")
		}
	}()

	publisher := app.OpenPublisher(cfg, log)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.WithError(err).Warn("failed to close event publisher")
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewPrometheusCollector(registry)

	services := app.Build(app.Options{
		Store:     store,
		Cache:     walletCache,
		Publisher: publisher,
		Metrics:   collector,
		Log:       log,
		Wallet:    cfg.Wallet,
	})

	checks := map[string]handlers.HealthCheck{}
	if dbCheck != nil {
		checks["database"] = handlers.HealthCheck(dbCheck)
	}
	if cacheCheck != nil {
		checks["redis"] = handlers.HealthCheck(cacheCheck)
	}

	server := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return utils.Respond(c, e.Code, fiber.Map{"error": e.Message})
			}
			log.WithError(err).WithField("path", c.Path()).Error("unhandled request error")
			return utils.InternalError(c, "internal server error")
		},
	})
	server.Use(recover.New())
	server.Use(cors.New(cors.Config{
		AllowOrigins: config.GetEnv("CORS_ALLOW_ORIGINS", "*"),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE",
	}))
	server.Use(fiberlogger.New(fiberlogger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	routes.SetupRoutes(server, routes.Handlers{
		Auth:         middleware.NewAuthMiddleware(cfg.JWTSecret, log),
		Wallet:       handlers.NewWalletHandler(services.Orchestrator),
		Transaction:  handlers.NewTransactionHandler(services.Orchestrator),
		Admin:        handlers.NewAdminHandler(services.Orchestrator, cfg.Wallet.Location, cfg.Wallet.StaleProcessingAfter),
		FraudRules:   handlers.NewFraudRuleHandler(services.Rules),
		Health:       handlers.NewHealthHandler(version, checks),
		MetricsRoute: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := server.ShutdownWithTimeout(shutdownTimeout); err != nil {
			log.WithError(err).Error("graceful shutdown failed")
		}
	}()

	log.WithField("port", cfg.Port).Info("starting server")
	if err := server.Listen(":" + cfg.Port); err != nil {
		log.WithError(err).Error("server stopped")
	}
}
