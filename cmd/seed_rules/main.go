package main

import (
	"context"

	"kalpe/internal/app"
	"kalpe/internal/config"
	"kalpe/internal/logger"
	"kalpe/internal/services/fraud"
)

func main() {
	config.LoadEnv()
	cfg, err := config.Load(config.NewViper())
	if err != nil {
		logger.New("info", "seed_rules").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.AppName+"-seed")
	if cfg.StoreDriver == config.StoreDriverMemory {
		log.Fatal("seeding the in-memory store has no effect; set STORE_DRIVER=postgres")
	}

	ctx := context.Background()
	store, _, closeDB, err := app.OpenStore(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer closeDB()

	ruleCache, _, closeCache := app.OpenCache(ctx, cfg, log)
	defer closeCache()

	services := app.Build(app.Options{Store: store, Cache: ruleCache, Log: log, Wallet: cfg.Wallet})
	created, err := services.Rules.Seed(ctx, fraud.DefaultRules())
	if err != nil {
		log.WithError(err).Fatal("failed to seed fraud rules")
	}
	if created == 0 {
		log.Info("fraud rules already exist")
		return
	}
	log.WithField("created", created).Info("fraud rules seeded")
}
