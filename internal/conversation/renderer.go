package conversation

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Renderer maps wizard outcomes to user-facing text. The chat transport owns
// presentation entirely; localized renderers implement this interface without
// touching the flow logic.
type Renderer interface {
	PromptUser() string
	UserNotFound() string
	UserSummary(display string, balance decimal.Decimal) string
	UnknownOperation() string
	PromptAmount(operation string, display string) string
	InvalidAmount() string
	AddSuccess(amount, newBalance decimal.Decimal) string
	SubtractSuccess(amount, newBalance decimal.Decimal) string
	InsufficientFunds() string
	SetSuccess(amount decimal.Decimal) string
	OperationFailed() string
	Cancelled() string
	NoActiveSession() string
}

// EnglishRenderer is the default plain-English renderer.
type EnglishRenderer struct{}

func (EnglishRenderer) PromptUser() string {
	return "Enter the target user's ID or @username."
}

func (EnglishRenderer) UserNotFound() string {
	return "User not found. Enter a valid user ID or @username."
}

func (EnglishRenderer) UserSummary(display string, balance decimal.Decimal) string {
	return fmt.Sprintf("%s has a balance of %s. Choose an operation: add, subtract or set.",
		display, balance.StringFixed(2))
}

func (EnglishRenderer) UnknownOperation() string {
	return "Unknown operation. Reply with add, subtract or set."
}

func (EnglishRenderer) PromptAmount(operation string, display string) string {
	return fmt.Sprintf("Enter the amount to %s for %s.", operation, display)
}

func (EnglishRenderer) InvalidAmount() string {
	return "That is not a valid amount. Enter a number like 10 or 9.99."
}

func (EnglishRenderer) AddSuccess(amount, newBalance decimal.Decimal) string {
	return fmt.Sprintf("Added %s. New balance: %s.", amount.StringFixed(2), newBalance.StringFixed(2))
}

func (EnglishRenderer) SubtractSuccess(amount, newBalance decimal.Decimal) string {
	return fmt.Sprintf("Subtracted %s. New balance: %s.", amount.StringFixed(2), newBalance.StringFixed(2))
}

func (EnglishRenderer) InsufficientFunds() string {
	return "The user's balance does not cover that amount. Nothing was changed."
}

func (EnglishRenderer) SetSuccess(amount decimal.Decimal) string {
	return fmt.Sprintf("Balance set to %s.", amount.StringFixed(2))
}

func (EnglishRenderer) OperationFailed() string {
	return "The operation could not be completed. Please try again."
}

func (EnglishRenderer) Cancelled() string {
	return "Balance management cancelled."
}

func (EnglishRenderer) NoActiveSession() string {
	return "No balance management session is active. Start one first."
}
