package transaction

import (
	"time"

	"kalpe/internal/metrics"
	"kalpe/internal/repositories"
	"kalpe/internal/services/ledger"
	"kalpe/internal/services/wallet"

	"github.com/sirupsen/logrus"
)

// EngineConfig wires the engine's collaborators.
type EngineConfig struct {
	Store      repositories.Store
	Wallets    wallet.Service
	Ledger     *ledger.Recorder
	References *ReferenceGenerator
	Metrics    metrics.Collector
	Log        logrus.FieldLogger
	Currency   string
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// RecoveryResult reports what a stale sweep did.
type RecoveryResult struct {
	Scanned   int      `json:"scanned"`
	Recovered int      `json:"recovered"`
	Skipped   []string `json:"skipped,omitempty"`
}
