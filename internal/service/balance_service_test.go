package service

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"balance-api/internal/external"
	"balance-api/internal/models"
	"balance-api/internal/monitoring"
	"balance-api/internal/repository"
)

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Get(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Set(ctx context.Context, userID int64, amount int64) error {
	args := m.Called(ctx, userID, amount)
	return args.Error(0)
}

func (m *MockAccountRepository) Add(ctx context.Context, userID int64, amount int64) (int64, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Subtract(ctx context.Context, userID int64, amount int64) (int64, error) {
	args := m.Called(ctx, userID, amount)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepository) Totals(ctx context.Context) (*repository.LedgerTotals, error) {
	args := m.Called(ctx)
	return args.Get(0).(*repository.LedgerTotals), args.Error(1)
}

// recordingPublisher captures published events for assertions.
type recordingPublisher struct {
	mu     sync.Mutex
	events []*external.BalanceChangedEvent
}

func (p *recordingPublisher) PublishBalanceChanged(ctx context.Context, event *external.BalanceChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBalanceService_GetBalance(t *testing.T) {
	repo := new(MockAccountRepository)
	repo.On("Get", mock.Anything, int64(1)).Return(int64(12345), nil)

	svc := NewBalanceService(repo, external.NewNoopPublisher(), monitoring.NoopMetrics{})

	balance, err := svc.GetBalance(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, dec("123.45").Equal(balance))
	repo.AssertExpectations(t)
}

func TestBalanceService_SetBalance(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		setupMocks  func(*MockAccountRepository)
		expectedErr error
	}{
		{
			name:   "sets balance in minor units",
			amount: "250.00",
			setupMocks: func(r *MockAccountRepository) {
				r.On("Set", mock.Anything, int64(1), int64(25000)).Return(nil)
			},
		},
		{
			name:   "zero is a valid set",
			amount: "0",
			setupMocks: func(r *MockAccountRepository) {
				r.On("Set", mock.Anything, int64(1), int64(0)).Return(nil)
			},
		},
		{
			name:        "negative amount rejected before storage",
			amount:      "-5",
			setupMocks:  func(r *MockAccountRepository) {},
			expectedErr: models.ErrNegativeAmount,
		},
		{
			name:        "sub-cent amount rejected",
			amount:      "1.005",
			setupMocks:  func(r *MockAccountRepository) {},
			expectedErr: models.ErrInvalidAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAccountRepository)
			tt.setupMocks(repo)
			svc := NewBalanceService(repo, external.NewNoopPublisher(), monitoring.NoopMetrics{})

			err := svc.SetBalance(context.Background(), 1, dec(tt.amount))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
			} else {
				assert.NoError(t, err)
			}
			repo.AssertExpectations(t)
		})
	}
}

func TestBalanceService_AddBalance(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		setupMocks  func(*MockAccountRepository)
		expected    string
		expectedErr error
	}{
		{
			name:   "credits and returns new balance",
			amount: "10.50",
			setupMocks: func(r *MockAccountRepository) {
				r.On("Add", mock.Anything, int64(1), int64(1050)).Return(int64(6050), nil)
			},
			expected: "60.50",
		},
		{
			name:        "zero rejected",
			amount:      "0",
			setupMocks:  func(r *MockAccountRepository) {},
			expectedErr: models.ErrNonPositiveAmount,
		},
		{
			name:        "negative rejected",
			amount:      "-1",
			setupMocks:  func(r *MockAccountRepository) {},
			expectedErr: models.ErrNonPositiveAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAccountRepository)
			tt.setupMocks(repo)
			svc := NewBalanceService(repo, external.NewNoopPublisher(), monitoring.NoopMetrics{})

			newBalance, err := svc.AddBalance(context.Background(), 1, dec(tt.amount))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.expected).Equal(newBalance))
			repo.AssertExpectations(t)
		})
	}
}

func TestBalanceService_SubtractBalance(t *testing.T) {
	tests := []struct {
		name        string
		amount      string
		setupMocks  func(*MockAccountRepository)
		expected    string
		expectedErr error
	}{
		{
			name:   "debits and returns new balance",
			amount: "40.00",
			setupMocks: func(r *MockAccountRepository) {
				r.On("Subtract", mock.Anything, int64(1), int64(4000)).Return(int64(6000), nil)
			},
			expected: "60.00",
		},
		{
			name:   "insufficient funds passes through",
			amount: "500",
			setupMocks: func(r *MockAccountRepository) {
				r.On("Subtract", mock.Anything, int64(1), int64(50000)).
					Return(int64(0), models.ErrInsufficientFunds)
			},
			expectedErr: models.ErrInsufficientFunds,
		},
		{
			name:        "zero rejected before storage",
			amount:      "0",
			setupMocks:  func(r *MockAccountRepository) {},
			expectedErr: models.ErrNonPositiveAmount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockAccountRepository)
			tt.setupMocks(repo)
			svc := NewBalanceService(repo, external.NewNoopPublisher(), monitoring.NoopMetrics{})

			newBalance, err := svc.SubtractBalance(context.Background(), 1, dec(tt.amount))
			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.expected).Equal(newBalance))
			repo.AssertExpectations(t)
		})
	}
}

func TestBalanceService_CanAfford(t *testing.T) {
	repo := new(MockAccountRepository)
	repo.On("Get", mock.Anything, int64(1)).Return(int64(10000), nil)

	svc := NewBalanceService(repo, external.NewNoopPublisher(), monitoring.NoopMetrics{})
	ctx := context.Background()

	affordable, err := svc.CanAfford(ctx, 1, dec("100.00"))
	require.NoError(t, err)
	assert.True(t, affordable)

	affordable, err = svc.CanAfford(ctx, 1, dec("100.01"))
	require.NoError(t, err)
	assert.False(t, affordable)
}

func TestBalanceService_PublishesCommittedMutations(t *testing.T) {
	repo := new(MockAccountRepository)
	repo.On("Add", mock.Anything, int64(5), int64(1000)).Return(int64(1000), nil)

	events := &recordingPublisher{}
	svc := NewBalanceService(repo, events, monitoring.NoopMetrics{})

	_, err := svc.AddBalance(context.Background(), 5, dec("10"))
	require.NoError(t, err)

	require.Len(t, events.events, 1)
	event := events.events[0]
	assert.Equal(t, int64(5), event.UserID)
	assert.Equal(t, "add", event.Operation)
	assert.True(t, dec("10").Equal(event.Amount))
	assert.True(t, dec("10").Equal(event.NewBalance))
}

// End-to-end flows against the in-memory store.
func TestBalanceService_Lifecycle(t *testing.T) {
	svc := NewBalanceService(repository.NewMemoryAccountRepository(), external.NewNoopPublisher(), monitoring.NoopMetrics{})
	ctx := context.Background()
	userID := int64(100)

	// Unknown users read as zero
	balance, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	// Credit creates the account implicitly
	balance, err = svc.AddBalance(ctx, userID, dec("150.00"))
	require.NoError(t, err)
	assert.True(t, dec("150.00").Equal(balance))

	// Debit within funds
	balance, err = svc.SubtractBalance(ctx, userID, dec("60.00"))
	require.NoError(t, err)
	assert.True(t, dec("90.00").Equal(balance))

	// Overdraw rejected, balance unchanged
	_, err = svc.SubtractBalance(ctx, userID, dec("90.01"))
	assert.ErrorIs(t, err, models.ErrInsufficientFunds)
	balance, err = svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, dec("90.00").Equal(balance))

	// Set overwrites
	require.NoError(t, svc.SetBalance(ctx, userID, dec("10")))
	balance, err = svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, dec("10.00").Equal(balance))
}

// Two racing debits of 60.00 against a balance of 100.00: exactly one commits.
func TestBalanceService_ConcurrentDebits(t *testing.T) {
	svc := NewBalanceService(repository.NewMemoryAccountRepository(), external.NewNoopPublisher(), monitoring.NoopMetrics{})
	ctx := context.Background()
	userID := int64(200)

	require.NoError(t, svc.SetBalance(ctx, userID, dec("100.00")))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.SubtractBalance(ctx, userID, dec("60.00"))
		}(i)
	}
	wg.Wait()

	var successes, insufficient int
	for _, err := range errs {
		if err == nil {
			successes++
		} else if assert.ErrorIs(t, err, models.ErrInsufficientFunds) {
			insufficient++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)

	balance, err := svc.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, dec("40.00").Equal(balance))
}
