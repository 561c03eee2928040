package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"balance-api/internal/monitoring"
	"balance-api/internal/repository"
)

// LedgerSweeper periodically aggregates the ledger, exports the totals as
// metrics and checks that no committed account violates non-negativity. The
// store's guarded updates make a violation impossible in normal operation, so
// a hit here means external interference with the collection.
type LedgerSweeper struct {
	accounts repository.AccountRepository
	metrics  monitoring.MetricsService
	audit    *logrus.Logger
}

// NewLedgerSweeper creates the periodic sweep job.
func NewLedgerSweeper(
	accounts repository.AccountRepository,
	metrics monitoring.MetricsService,
	audit *logrus.Logger,
) *LedgerSweeper {
	return &LedgerSweeper{
		accounts: accounts,
		metrics:  metrics,
		audit:    audit,
	}
}

// Sweep runs one aggregation pass.
func (s *LedgerSweeper) Sweep(ctx context.Context) error {
	totals, err := s.accounts.Totals(ctx)
	if err != nil {
		logrus.WithError(err).Error("Ledger sweep failed")
		return err
	}

	s.metrics.SetLedgerTotals(totals.Accounts, totals.Total)

	if totals.MinBalance < 0 {
		s.audit.WithFields(logrus.Fields{
			"min_balance": totals.MinBalance,
			"accounts":    totals.Accounts,
		}).Error("Ledger invariant violated: negative balance found")
	}

	logrus.WithFields(logrus.Fields{
		"accounts":          totals.Accounts,
		"total_minor_units": totals.Total,
	}).Debug("Ledger sweep completed")
	return nil
}
