package models

import "time"

// Wizard states for the admin balance flow. The balance service is only ever
// invoked on the AwaitingAmount -> Done transition.
type WizardState string

const (
	StateAwaitingUser      WizardState = "awaiting_user"
	StateAwaitingOperation WizardState = "awaiting_operation"
	StateAwaitingAmount    WizardState = "awaiting_amount"
)

// BalanceOperation names a guarded mutation selected in the wizard.
type BalanceOperation string

const (
	OperationAdd      BalanceOperation = "add"
	OperationSubtract BalanceOperation = "subtract"
	OperationSet      BalanceOperation = "set"
)

// WizardSession is the per-chat state of an in-progress admin balance flow.
// Sessions live in Redis under a TTL; an expired session simply restarts the flow.
type WizardSession struct {
	SessionID     string           `json:"session_id"`
	ChatID        string           `json:"chat_id"`
	AdminID       int64            `json:"admin_id"`
	State         WizardState      `json:"state"`
	TargetUserID  int64            `json:"target_user_id,omitempty"`
	TargetDisplay string           `json:"target_display,omitempty"`
	Operation     BalanceOperation `json:"operation,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}
