package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"balance-api/internal/external"
	"balance-api/internal/models"
	"balance-api/internal/monitoring"
	"balance-api/internal/repository"
)

// BalanceService validates mutation intents and translates store outcomes into
// caller-facing results. It holds no business state of its own; concurrency
// control lives entirely in the store's atomic primitives, which is what keeps
// the guarantees intact when multiple service instances run.
type BalanceService interface {
	// GetBalance returns the user's current balance.
	GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error)

	// SetBalance overwrites the balance. Rejects negative amounts.
	SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) error

	// AddBalance credits the user and returns the new balance. Rejects
	// non-positive amounts.
	AddBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	// SubtractBalance debits the user and returns the new balance. Rejects
	// non-positive amounts; returns models.ErrInsufficientFunds when the
	// balance does not cover the amount.
	SubtractBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error)

	// CanAfford reports whether the current balance covers the amount. Advisory
	// only: it does not reserve funds, so a later SubtractBalance may still fail
	// if concurrent debits land in between. Callers must handle that rejection
	// rather than rely on this check.
	CanAfford(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error)
}

type balanceService struct {
	accounts repository.AccountRepository
	events   external.EventPublisher
	metrics  monitoring.MetricsService
}

// NewBalanceService creates the balance service.
func NewBalanceService(
	accounts repository.AccountRepository,
	events external.EventPublisher,
	metrics monitoring.MetricsService,
) BalanceService {
	return &balanceService{
		accounts: accounts,
		events:   events,
		metrics:  metrics,
	}
}

func (s *balanceService) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	start := time.Now()
	minor, err := s.accounts.Get(ctx, userID)
	if err != nil {
		s.metrics.RecordBalanceOperation("get", "error", time.Since(start))
		return decimal.Zero, err
	}
	s.metrics.RecordBalanceOperation("get", "ok", time.Since(start))
	return models.FromMinorUnits(minor), nil
}

func (s *balanceService) SetBalance(ctx context.Context, userID int64, amount decimal.Decimal) error {
	minor, err := models.ToMinorUnits(amount)
	if err != nil {
		s.metrics.RecordRejection("set", "invalid_amount")
		return err
	}
	if minor < 0 {
		s.metrics.RecordRejection("set", "negative_amount")
		return fmt.Errorf("%w: %s", models.ErrNegativeAmount, amount.String())
	}

	start := time.Now()
	if err := s.accounts.Set(ctx, userID, minor); err != nil {
		s.metrics.RecordBalanceOperation("set", "error", time.Since(start))
		return err
	}
	s.metrics.RecordBalanceOperation("set", "ok", time.Since(start))

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"amount":  amount.String(),
	}).Info("Balance set")

	s.publishChange(ctx, userID, string(models.OperationSet), amount, amount)
	return nil
}

func (s *balanceService) AddBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	minor, err := models.ToMinorUnits(amount)
	if err != nil {
		s.metrics.RecordRejection("add", "invalid_amount")
		return decimal.Zero, err
	}
	if minor <= 0 {
		s.metrics.RecordRejection("add", "non_positive_amount")
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrNonPositiveAmount, amount.String())
	}

	start := time.Now()
	newMinor, err := s.accounts.Add(ctx, userID, minor)
	if err != nil {
		s.metrics.RecordBalanceOperation("add", "error", time.Since(start))
		return decimal.Zero, err
	}
	s.metrics.RecordBalanceOperation("add", "ok", time.Since(start))

	newBalance := models.FromMinorUnits(newMinor)
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"amount":      amount.String(),
		"new_balance": newBalance.String(),
	}).Info("Balance credited")

	s.publishChange(ctx, userID, string(models.OperationAdd), amount, newBalance)
	return newBalance, nil
}

func (s *balanceService) SubtractBalance(ctx context.Context, userID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	minor, err := models.ToMinorUnits(amount)
	if err != nil {
		s.metrics.RecordRejection("subtract", "invalid_amount")
		return decimal.Zero, err
	}
	if minor <= 0 {
		s.metrics.RecordRejection("subtract", "non_positive_amount")
		return decimal.Zero, fmt.Errorf("%w: %s", models.ErrNonPositiveAmount, amount.String())
	}

	start := time.Now()
	newMinor, err := s.accounts.Subtract(ctx, userID, minor)
	if err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) {
			s.metrics.RecordRejection("subtract", "insufficient_funds")
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
				"amount":  amount.String(),
			}).Warn("Insufficient balance for subtraction")
			return decimal.Zero, err
		}
		s.metrics.RecordBalanceOperation("subtract", "error", time.Since(start))
		return decimal.Zero, err
	}
	s.metrics.RecordBalanceOperation("subtract", "ok", time.Since(start))

	newBalance := models.FromMinorUnits(newMinor)
	logrus.WithFields(logrus.Fields{
		"user_id":     userID,
		"amount":      amount.String(),
		"new_balance": newBalance.String(),
	}).Info("Balance debited")

	s.publishChange(ctx, userID, string(models.OperationSubtract), amount, newBalance)
	return newBalance, nil
}

func (s *balanceService) CanAfford(ctx context.Context, userID int64, amount decimal.Decimal) (bool, error) {
	minor, err := models.ToMinorUnits(amount)
	if err != nil {
		return false, err
	}

	current, err := s.accounts.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	account := models.Account{UserID: userID, Balance: current}
	return account.HasSufficientBalance(minor), nil
}

// publishChange announces a committed mutation. Best-effort: the mutation has
// already committed, so a publish failure is logged and swallowed.
func (s *balanceService) publishChange(ctx context.Context, userID int64, operation string, amount, newBalance decimal.Decimal) {
	event := &external.BalanceChangedEvent{
		UserID:     userID,
		Operation:  operation,
		Amount:     amount,
		NewBalance: newBalance,
	}
	if err := s.events.PublishBalanceChanged(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"user_id":   userID,
			"operation": operation,
		}).Error("Failed to publish balance event")
	}
}
