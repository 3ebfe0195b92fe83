// Package main runs one maintenance pass: transactions stuck in PROCESSING
// are failed, then a calendar day is reconciled against the ledger.
//
//	sweeper --date 2025-01-31 --actor ops-batch
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kalpe/internal/app"
	"kalpe/internal/config"
	"kalpe/internal/logger"
	"kalpe/internal/services/reconciliation"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	config.LoadEnv()
	v := config.NewViper()

	flags := pflag.NewFlagSet("sweeper", pflag.ExitOnError)
	flags.String("date", "", "day to reconcile as YYYY-MM-DD (default: yesterday)")
	flags.String("actor", "system", "name recorded as the reconciler")
	flags.Bool("skip-reconcile", false, "only recover stale transactions")
	flags.Duration("stale-after", 0, "override STALE_PROCESSING_AFTER")
	_ = flags.Parse(os.Args[1:])
	if err := v.BindPFlags(flags); err != nil {
		logger.New("info", "sweeper").WithError(err).Fatal("failed to bind flags")
	}

	cfg, err := config.Load(v)
	if err != nil {
		logger.New("info", "sweeper").WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.AppName+"-sweeper")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, options{
		date:          v.GetString("date"),
		actor:         v.GetString("actor"),
		skipReconcile: v.GetBool("skip-reconcile"),
		staleAfter:    v.GetDuration("stale-after"),
	}); err != nil {
		log.WithError(err).Fatal("sweep failed")
	}
}

type options struct {
	date          string
	actor         string
	skipReconcile bool
	staleAfter    time.Duration
}

func run(ctx context.Context, cfg *config.Config, log *logrus.Logger, opts options) error {
	store, _, closeDB, err := app.OpenStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeDB()

	walletCache, _, closeCache := app.OpenCache(ctx, cfg, log)
	defer closeCache()
	publisher := app.OpenPublisher(cfg, log)
	defer publisher.Close()

	services := app.Build(app.Options{
		Store:     store,
		Cache:     walletCache,
		Publisher: publisher,
		Log:       log,
		Wallet:    cfg.Wallet,
	})
	orch := services.Orchestrator

	staleAfter := cfg.Wallet.StaleProcessingAfter
	if opts.staleAfter > 0 {
		staleAfter = opts.staleAfter
	}
	recovery, err := orch.RecoverStale(ctx, staleAfter)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"scanned":   recovery.Scanned,
		"recovered": recovery.Recovered,
		"skipped":   len(recovery.Skipped),
	}).Info("stale transaction recovery finished")

	if opts.skipReconcile {
		return nil
	}

	date := time.Now().In(cfg.Wallet.Location).AddDate(0, 0, -1)
	if opts.date != "" {
		if date, err = reconciliation.ParseDate(opts.date, cfg.Wallet.Location); err != nil {
			return err
		}
	}
	result, err := orch.ReconcileDay(ctx, date, opts.actor)
	if err != nil {
		return err
	}
	entry := log.WithFields(logrus.Fields{
		"date":       result.Date,
		"total":      result.Total,
		"reconciled": result.Reconciled,
		"failed":     result.Failed,
	})
	for _, e := range result.Errors {
		log.WithFields(logrus.Fields{"reference": e.Reference, "error": e.Error}).Warn("transaction did not reconcile")
	}
	entry.Info("reconciliation finished")
	return nil
}
