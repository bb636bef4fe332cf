package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestKindForType(t *testing.T) {
	assert.Equal(t, KindSucceeded, KindForType("payment_intent.succeeded"))
	assert.Equal(t, KindFailed, KindForType("payment_intent.payment_failed"))
	assert.Equal(t, KindIgnored, KindForType("charge.refunded"))
	assert.Equal(t, KindIgnored, KindForType(""))
}

func TestSettlementFromMinor(t *testing.T) {
	st := SettlementFromMinor(19390, 610)

	assert.True(t, st.Net.Equal(decimal.RequireFromString("193.90")))
	assert.True(t, st.Fee.Equal(decimal.RequireFromString("6.10")))
	assert.Equal(t, "193.90", st.Net.StringFixed(2))

	zero := SettlementFromMinor(0, 0)
	assert.True(t, zero.Net.IsZero())
}
