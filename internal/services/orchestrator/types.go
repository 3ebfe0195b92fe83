package orchestrator

import (
	"time"

	"kalpe/internal/events"
	"kalpe/internal/metrics"
	"kalpe/internal/models"
	"kalpe/internal/repositories"
	"kalpe/internal/services/fraud"
	"kalpe/internal/services/ledger"
	"kalpe/internal/services/reconciliation"
	"kalpe/internal/services/transaction"
	"kalpe/internal/services/wallet"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Config wires the orchestrator to the components it coordinates.
type Config struct {
	Store     repositories.Store
	Wallets   wallet.Service
	Engine    *transaction.Engine
	Ledger    *ledger.Recorder
	Scorer    *fraud.Scorer
	Auditor   *reconciliation.Auditor
	Publisher events.Publisher
	Metrics   metrics.Collector
	Log       logrus.FieldLogger
	// Location is the zone calendar days are taken in. Defaults to UTC.
	Location *time.Location
	Clock    func() time.Time
}

// PaymentRequest describes a payment from a patient to a provider.
type PaymentRequest struct {
	SenderAccountID   string
	ReceiverAccountID string
	Type              models.TransactionType
	Amount            decimal.Decimal
	Fee               decimal.Decimal
	Description       string
	ExternalReference string
	Metadata          models.Metadata
}

// History lists an account's recent transactions by direction.
type History struct {
	AccountID     string                `json:"account_id"`
	Days          int                   `json:"days"`
	Sent          []*models.Transaction `json:"sent_transactions"`
	Received      []*models.Transaction `json:"received_transactions"`
	SentCount     int                   `json:"sent_count"`
	ReceivedCount int                   `json:"received_count"`
	SentTotal     decimal.Decimal       `json:"sent_total"`
	ReceivedTotal decimal.Decimal       `json:"received_total"`
}
