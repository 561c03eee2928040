package repository

import (
	"context"
	"fmt"
	"sync"

	"balance-api/internal/models"
)

// memoryAccountRepository keeps balances in process memory behind a single
// mutex, preserving the atomicity contract of the MongoDB store. Used in tests
// and local development; a mutex is an acceptable substitute there because only
// one instance runs.
type memoryAccountRepository struct {
	mu       sync.Mutex
	balances map[int64]int64
}

// NewMemoryAccountRepository creates an in-memory balance store.
func NewMemoryAccountRepository() AccountRepository {
	return &memoryAccountRepository{
		balances: make(map[int64]int64),
	}
}

func (r *memoryAccountRepository) Get(ctx context.Context, userID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.balances[userID], nil
}

func (r *memoryAccountRepository) Set(ctx context.Context, userID int64, amount int64) error {
	if amount < 0 {
		return fmt.Errorf("%w: %d", models.ErrNegativeAmount, amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] = amount
	return nil
}

func (r *memoryAccountRepository) Add(ctx context.Context, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", models.ErrNonPositiveAmount, amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.balances[userID] += amount
	return r.balances[userID], nil
}

func (r *memoryAccountRepository) Subtract(ctx context.Context, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("%w: %d", models.ErrNonPositiveAmount, amount)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.balances[userID] < amount {
		return 0, models.ErrInsufficientFunds
	}
	r.balances[userID] -= amount
	return r.balances[userID], nil
}

func (r *memoryAccountRepository) Totals(ctx context.Context) (*LedgerTotals, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	totals := &LedgerTotals{}
	first := true
	for _, balance := range r.balances {
		totals.Accounts++
		totals.Total += balance
		if first || balance < totals.MinBalance {
			totals.MinBalance = balance
			first = false
		}
	}
	return totals, nil
}
