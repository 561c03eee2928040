package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccountHelpers(t *testing.T) {
	account := &Account{UserID: 1, Balance: 2550}

	assert.Equal(t, "25.50", account.BalanceDecimal().StringFixed(CurrencyExponent))
	assert.True(t, account.HasSufficientBalance(2550))
	assert.False(t, account.HasSufficientBalance(2551))
	assert.NoError(t, account.Validate())

	// Structural failures are their own error kind, not identity or
	// business rejections
	err := (&Account{UserID: 0, Balance: 0}).Validate()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrUserNotFound)

	err = (&Account{UserID: 1, Balance: -1}).Validate()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNegativeAmount)
	assert.False(t, IsBusinessRejection(err))
}
