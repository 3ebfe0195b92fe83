// Package app wires the wallet services together. The server, the sweeper
// and the seeding tool share it so every binary runs the same graph.
package app

import (
	"time"

	"kalpe/internal/config"
	"kalpe/internal/events"
	"kalpe/internal/metrics"
	"kalpe/internal/repositories"
	"kalpe/internal/services/fraud"
	"kalpe/internal/services/ledger"
	"kalpe/internal/services/orchestrator"
	"kalpe/internal/services/reconciliation"
	"kalpe/internal/services/transaction"
	"kalpe/internal/services/wallet"

	"github.com/sirupsen/logrus"
)

// Cache is satisfied by both the Redis cache and cache.NoopCache.
type Cache interface {
	wallet.SummaryCache
	fraud.RuleCache
}

type Options struct {
	Store     repositories.Store
	Cache     Cache
	Publisher events.Publisher
	Metrics   metrics.Collector
	Log       logrus.FieldLogger
	Wallet    config.WalletConfig
	Clock     func() time.Time
}

type Services struct {
	Wallets      wallet.Service
	Ledger       *ledger.Recorder
	Engine       *transaction.Engine
	Rules        *fraud.RuleService
	Scorer       *fraud.Scorer
	Auditor      *reconciliation.Auditor
	Orchestrator *orchestrator.Service
}

// Build constructs every service on top of opts.Store.
func Build(opts Options) *Services {
	if opts.Metrics == nil {
		opts.Metrics = metrics.NoopCollector{}
	}
	if opts.Publisher == nil {
		opts.Publisher = events.NewLogPublisher(opts.Log)
	}
	loc := opts.Wallet.Location
	if loc == nil {
		loc = time.UTC
	}

	wallets := wallet.NewService(opts.Store, opts.Cache, wallet.WalletConfig{
		Currency:     opts.Wallet.Currency,
		Location:     loc,
		DailyLimit:   opts.Wallet.DailyLimit,
		MonthlyLimit: opts.Wallet.MonthlyLimit,
		Clock:        opts.Clock,
	}, opts.Metrics, opts.Log)
	rec := ledger.NewRecorder(opts.Store, opts.Log)
	engine := transaction.NewEngine(transaction.EngineConfig{
		Store:    opts.Store,
		Wallets:  wallets,
		Ledger:   rec,
		Metrics:  opts.Metrics,
		Log:      opts.Log,
		Currency: opts.Wallet.Currency,
		Clock:    opts.Clock,
	})
	rules := fraud.NewRuleService(opts.Store, opts.Cache, opts.Metrics, opts.Log)
	scorer := fraud.NewScorer(opts.Store, rules, engine, opts.Metrics, opts.Log)
	auditor := reconciliation.NewAuditor(opts.Store, loc, opts.Metrics, opts.Log)

	return &Services{
		Wallets: wallets,
		Ledger:  rec,
		Engine:  engine,
		Rules:   rules,
		Scorer:  scorer,
		Auditor: auditor,
		Orchestrator: orchestrator.NewService(orchestrator.Config{
			Store:     opts.Store,
			Wallets:   wallets,
			Engine:    engine,
			Ledger:    rec,
			Scorer:    scorer,
			Auditor:   auditor,
			Publisher: opts.Publisher,
			Metrics:   opts.Metrics,
			Log:       opts.Log,
			Location:  loc,
			Clock:     opts.Clock,
		}),
	}
}
