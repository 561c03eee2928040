package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"balance-api/internal/external"
	"balance-api/internal/models"
	"balance-api/internal/monitoring"
	"balance-api/internal/repository"
	"balance-api/internal/service"
)

// Wizard drives the multi-step admin balance flow as an explicit state machine:
// AwaitingUser -> AwaitingOperation -> AwaitingAmount -> done. The balance
// service is invoked exactly once, at the final transition; every earlier step
// only gathers input. Invalid input re-prompts without changing state.
type Wizard struct {
	sessions  repository.SessionRepository
	balances  service.BalanceService
	directory external.UserDirectory
	render    Renderer
	metrics   monitoring.MetricsService
}

// NewWizard creates the admin balance wizard.
func NewWizard(
	sessions repository.SessionRepository,
	balances service.BalanceService,
	directory external.UserDirectory,
	render Renderer,
	metrics monitoring.MetricsService,
) *Wizard {
	return &Wizard{
		sessions:  sessions,
		balances:  balances,
		directory: directory,
		render:    render,
		metrics:   metrics,
	}
}

// Start opens a fresh session for the chat, replacing any in-progress one, and
// returns the first prompt.
func (w *Wizard) Start(ctx context.Context, chatID string, adminID int64) (string, error) {
	session := &models.WizardSession{
		SessionID: uuid.New().String(),
		ChatID:    chatID,
		AdminID:   adminID,
		State:     models.StateAwaitingUser,
		CreatedAt: time.Now(),
	}
	if err := w.sessions.Save(ctx, session); err != nil {
		return "", err
	}

	w.metrics.RecordWizardTransition("start", string(models.StateAwaitingUser))
	logrus.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"admin_id": adminID,
	}).Info("Balance wizard started")

	return w.render.PromptUser(), nil
}

// Advance feeds one free-text input into the session's current state and
// returns the reply to present.
func (w *Wizard) Advance(ctx context.Context, chatID string, input string) (string, error) {
	session, err := w.sessions.Get(ctx, chatID)
	if err != nil {
		return "", err
	}
	if session == nil {
		return w.render.NoActiveSession(), nil
	}

	switch session.State {
	case models.StateAwaitingUser:
		return w.handleUserInput(ctx, session, input)
	case models.StateAwaitingOperation:
		return w.handleOperationInput(ctx, session, input)
	case models.StateAwaitingAmount:
		return w.handleAmountInput(ctx, session, input)
	default:
		// Unknown state in a stored session; drop it and restart the flow.
		if err := w.sessions.Delete(ctx, chatID); err != nil {
			return "", err
		}
		return w.render.NoActiveSession(), nil
	}
}

// Cancel abandons any in-progress session for the chat.
func (w *Wizard) Cancel(ctx context.Context, chatID string) (string, error) {
	if err := w.sessions.Delete(ctx, chatID); err != nil {
		return "", err
	}
	return w.render.Cancelled(), nil
}

func (w *Wizard) handleUserInput(ctx context.Context, session *models.WizardSession, input string) (string, error) {
	user, err := w.directory.Resolve(ctx, input)
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return w.render.UserNotFound(), nil
		}
		return "", err
	}

	balance, err := w.balances.GetBalance(ctx, user.UserID)
	if err != nil {
		return "", err
	}

	session.TargetUserID = user.UserID
	session.TargetDisplay = user.Display()
	session.State = models.StateAwaitingOperation
	if err := w.sessions.Save(ctx, session); err != nil {
		return "", err
	}

	w.metrics.RecordWizardTransition(string(models.StateAwaitingUser), string(models.StateAwaitingOperation))
	return w.render.UserSummary(session.TargetDisplay, balance), nil
}

func (w *Wizard) handleOperationInput(ctx context.Context, session *models.WizardSession, input string) (string, error) {
	var operation models.BalanceOperation
	switch strings.ToLower(strings.TrimSpace(input)) {
	case string(models.OperationAdd):
		operation = models.OperationAdd
	case string(models.OperationSubtract):
		operation = models.OperationSubtract
	case string(models.OperationSet):
		operation = models.OperationSet
	default:
		return w.render.UnknownOperation(), nil
	}

	session.Operation = operation
	session.State = models.StateAwaitingAmount
	if err := w.sessions.Save(ctx, session); err != nil {
		return "", err
	}

	w.metrics.RecordWizardTransition(string(models.StateAwaitingOperation), string(models.StateAwaitingAmount))
	return w.render.PromptAmount(string(operation), session.TargetDisplay), nil
}

func (w *Wizard) handleAmountInput(ctx context.Context, session *models.WizardSession, input string) (string, error) {
	amount, err := models.ParseDecimal(input)
	if err != nil {
		return w.render.InvalidAmount(), nil
	}
	minor, err := models.ToMinorUnits(amount)
	if err != nil {
		return w.render.InvalidAmount(), nil
	}

	// Re-prompt in place on amounts the operation will refuse anyway, mirroring
	// the unparsable-input path: the admin stays in the amount step.
	switch session.Operation {
	case models.OperationAdd, models.OperationSubtract:
		if minor <= 0 {
			return w.render.InvalidAmount(), nil
		}
	case models.OperationSet:
		if minor < 0 {
			return w.render.InvalidAmount(), nil
		}
	}

	reply, err := w.applyOperation(ctx, session, amount)
	if err != nil {
		return "", err
	}

	// The flow is complete whether the operation succeeded or was refused;
	// a refusal is an outcome, not a reason to hold the session open.
	if err := w.sessions.Delete(ctx, session.ChatID); err != nil {
		return "", err
	}
	w.metrics.RecordWizardTransition(string(models.StateAwaitingAmount), "done")

	logrus.WithFields(logrus.Fields{
		"chat_id":   session.ChatID,
		"admin_id":  session.AdminID,
		"target":    session.TargetUserID,
		"operation": session.Operation,
	}).Info("Balance wizard completed")

	return reply, nil
}

// applyOperation performs the selected mutation and renders the outcome.
// Business rejections become replies; transient failures propagate as errors.
func (w *Wizard) applyOperation(ctx context.Context, session *models.WizardSession, amount decimal.Decimal) (string, error) {
	switch session.Operation {
	case models.OperationAdd:
		newBalance, err := w.balances.AddBalance(ctx, session.TargetUserID, amount)
		switch {
		case err == nil:
			return w.render.AddSuccess(amount, newBalance), nil
		case models.IsBusinessRejection(err):
			return w.render.InvalidAmount(), nil
		default:
			return "", err
		}

	case models.OperationSubtract:
		newBalance, err := w.balances.SubtractBalance(ctx, session.TargetUserID, amount)
		switch {
		case err == nil:
			return w.render.SubtractSuccess(amount, newBalance), nil
		case errors.Is(err, models.ErrInsufficientFunds):
			return w.render.InsufficientFunds(), nil
		case models.IsBusinessRejection(err):
			return w.render.InvalidAmount(), nil
		default:
			return "", err
		}

	case models.OperationSet:
		err := w.balances.SetBalance(ctx, session.TargetUserID, amount)
		switch {
		case err == nil:
			return w.render.SetSuccess(amount), nil
		case models.IsBusinessRejection(err):
			return w.render.InvalidAmount(), nil
		default:
			return "", err
		}

	default:
		return w.render.OperationFailed(), nil
	}
}
