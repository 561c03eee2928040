package conversation

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"balance-api/internal/external"
	"balance-api/internal/models"
	"balance-api/internal/monitoring"
	"balance-api/internal/repository"
	"balance-api/internal/service"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// fakeSessionRepository is an in-memory stand-in for the Redis session store.
type fakeSessionRepository struct {
	sessions map[string]*models.WizardSession
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: make(map[string]*models.WizardSession)}
}

func (f *fakeSessionRepository) Get(ctx context.Context, chatID string) (*models.WizardSession, error) {
	session, ok := f.sessions[chatID]
	if !ok {
		return nil, nil
	}
	copied := *session
	return &copied, nil
}

func (f *fakeSessionRepository) Save(ctx context.Context, session *models.WizardSession) error {
	copied := *session
	f.sessions[session.ChatID] = &copied
	return nil
}

func (f *fakeSessionRepository) Delete(ctx context.Context, chatID string) error {
	delete(f.sessions, chatID)
	return nil
}

type MockUserDirectory struct {
	mock.Mock
}

func (m *MockUserDirectory) Resolve(ctx context.Context, identifier string) (*external.DirectoryUser, error) {
	args := m.Called(ctx, identifier)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*external.DirectoryUser), args.Error(1)
}

func newTestWizard(t *testing.T, directory external.UserDirectory) (*Wizard, service.BalanceService, *fakeSessionRepository) {
	t.Helper()
	sessions := newFakeSessionRepository()
	balances := service.NewBalanceService(
		repository.NewMemoryAccountRepository(),
		external.NewNoopPublisher(),
		monitoring.NoopMetrics{},
	)
	wizard := NewWizard(sessions, balances, directory, EnglishRenderer{}, monitoring.NoopMetrics{})
	return wizard, balances, sessions
}

func TestWizard_AddFlow(t *testing.T) {
	directory := new(MockUserDirectory)
	directory.On("Resolve", mock.Anything, "@alice").Return(&external.DirectoryUser{
		UserID:   101,
		Username: "alice",
	}, nil)

	wizard, balances, sessions := newTestWizard(t, directory)
	ctx := context.Background()

	reply, err := wizard.Start(ctx, "chat-1", 9)
	require.NoError(t, err)
	assert.Equal(t, EnglishRenderer{}.PromptUser(), reply)

	reply, err = wizard.Advance(ctx, "chat-1", "@alice")
	require.NoError(t, err)
	assert.Contains(t, reply, "balance of 0.00")
	assert.Contains(t, reply, "add, subtract or set")

	reply, err = wizard.Advance(ctx, "chat-1", "add")
	require.NoError(t, err)
	assert.Contains(t, reply, "amount to add")

	reply, err = wizard.Advance(ctx, "chat-1", "150.00")
	require.NoError(t, err)
	assert.Contains(t, reply, "Added 150.00")
	assert.Contains(t, reply, "New balance: 150.00")

	// Session is gone once the flow completes
	_, ok := sessions.sessions["chat-1"]
	assert.False(t, ok)

	balance, err := balances.GetBalance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "150.00", balance.StringFixed(2))
	directory.AssertExpectations(t)
}

func TestWizard_SubtractInsufficientFundsEndsFlow(t *testing.T) {
	directory := new(MockUserDirectory)
	directory.On("Resolve", mock.Anything, "101").Return(&external.DirectoryUser{UserID: 101}, nil)

	wizard, balances, sessions := newTestWizard(t, directory)
	ctx := context.Background()
	require.NoError(t, balances.SetBalance(ctx, 101, dec("50")))

	_, err := wizard.Start(ctx, "chat-2", 9)
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-2", "101")
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-2", "subtract")
	require.NoError(t, err)

	reply, err := wizard.Advance(ctx, "chat-2", "80")
	require.NoError(t, err)
	assert.Equal(t, EnglishRenderer{}.InsufficientFunds(), reply)

	// A refusal still completes the flow and leaves the balance untouched
	_, ok := sessions.sessions["chat-2"]
	assert.False(t, ok)
	balance, err := balances.GetBalance(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "50.00", balance.StringFixed(2))
}

func TestWizard_UnknownUserReprompts(t *testing.T) {
	directory := new(MockUserDirectory)
	directory.On("Resolve", mock.Anything, "nobody").Return(nil, models.ErrUserNotFound)
	directory.On("Resolve", mock.Anything, "@bob").Return(&external.DirectoryUser{
		UserID:   202,
		Username: "bob",
	}, nil)

	wizard, _, sessions := newTestWizard(t, directory)
	ctx := context.Background()

	_, err := wizard.Start(ctx, "chat-3", 9)
	require.NoError(t, err)

	reply, err := wizard.Advance(ctx, "chat-3", "nobody")
	require.NoError(t, err)
	assert.Equal(t, EnglishRenderer{}.UserNotFound(), reply)

	// Still waiting for a user; a valid one moves the flow forward
	session := sessions.sessions["chat-3"]
	require.NotNil(t, session)
	assert.Equal(t, models.StateAwaitingUser, session.State)

	reply, err = wizard.Advance(ctx, "chat-3", "@bob")
	require.NoError(t, err)
	assert.Contains(t, reply, "Choose an operation")
}

func TestWizard_UnknownOperationReprompts(t *testing.T) {
	directory := new(MockUserDirectory)
	directory.On("Resolve", mock.Anything, "101").Return(&external.DirectoryUser{UserID: 101}, nil)

	wizard, _, sessions := newTestWizard(t, directory)
	ctx := context.Background()

	_, err := wizard.Start(ctx, "chat-4", 9)
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-4", "101")
	require.NoError(t, err)

	reply, err := wizard.Advance(ctx, "chat-4", "multiply")
	require.NoError(t, err)
	assert.Equal(t, EnglishRenderer{}.UnknownOperation(), reply)
	assert.Equal(t, models.StateAwaitingOperation, sessions.sessions["chat-4"].State)

	// Operation matching is case-insensitive
	reply, err = wizard.Advance(ctx, "chat-4", "  SET ")
	require.NoError(t, err)
	assert.Contains(t, reply, "amount to set")
}

func TestWizard_InvalidAmountReprompts(t *testing.T) {
	directory := new(MockUserDirectory)
	directory.On("Resolve", mock.Anything, "101").Return(&external.DirectoryUser{UserID: 101}, nil)

	wizard, _, sessions := newTestWizard(t, directory)
	ctx := context.Background()

	_, err := wizard.Start(ctx, "chat-5", 9)
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-5", "101")
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-5", "add")
	require.NoError(t, err)

	for _, input := range []string{"lots", "-5", "0", "1.005"} {
		reply, err := wizard.Advance(ctx, "chat-5", input)
		require.NoError(t, err)
		assert.Equal(t, EnglishRenderer{}.InvalidAmount(), reply, "input %q", input)
		assert.Equal(t, models.StateAwaitingAmount, sessions.sessions["chat-5"].State)
	}

	reply, err := wizard.Advance(ctx, "chat-5", "25")
	require.NoError(t, err)
	assert.Contains(t, reply, "Added 25.00")
}

func TestWizard_SetFlow(t *testing.T) {
	directory := new(MockUserDirectory)
	directory.On("Resolve", mock.Anything, "101").Return(&external.DirectoryUser{UserID: 101}, nil)

	wizard, balances, _ := newTestWizard(t, directory)
	ctx := context.Background()
	require.NoError(t, balances.SetBalance(ctx, 101, dec("75")))

	_, err := wizard.Start(ctx, "chat-6", 9)
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-6", "101")
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-6", "set")
	require.NoError(t, err)

	// Zero is a valid set, unlike add and subtract
	reply, err := wizard.Advance(ctx, "chat-6", "0")
	require.NoError(t, err)
	assert.Equal(t, EnglishRenderer{}.SetSuccess(dec("0")), reply)

	balance, err := balances.GetBalance(ctx, 101)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())
}

func TestWizard_CancelAndNoSession(t *testing.T) {
	directory := new(MockUserDirectory)
	wizard, _, sessions := newTestWizard(t, directory)
	ctx := context.Background()

	reply, err := wizard.Advance(ctx, "chat-7", "anything")
	require.NoError(t, err)
	assert.Equal(t, EnglishRenderer{}.NoActiveSession(), reply)

	_, err = wizard.Start(ctx, "chat-7", 9)
	require.NoError(t, err)
	reply, err = wizard.Cancel(ctx, "chat-7")
	require.NoError(t, err)
	assert.Equal(t, EnglishRenderer{}.Cancelled(), reply)
	_, ok := sessions.sessions["chat-7"]
	assert.False(t, ok)
}

func TestWizard_StartReplacesExistingSession(t *testing.T) {
	directory := new(MockUserDirectory)
	directory.On("Resolve", mock.Anything, "101").Return(&external.DirectoryUser{UserID: 101}, nil)

	wizard, _, sessions := newTestWizard(t, directory)
	ctx := context.Background()

	_, err := wizard.Start(ctx, "chat-8", 9)
	require.NoError(t, err)
	_, err = wizard.Advance(ctx, "chat-8", "101")
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingOperation, sessions.sessions["chat-8"].State)

	// Restart discards the gathered state
	_, err = wizard.Start(ctx, "chat-8", 9)
	require.NoError(t, err)
	assert.Equal(t, models.StateAwaitingUser, sessions.sessions["chat-8"].State)
	assert.Zero(t, sessions.sessions["chat-8"].TargetUserID)
}
