package shared

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWithinTolerance(t *testing.T) {
	a := decimal.RequireFromString("100.00")
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("100.01"), DefaultTolerance))
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("99.99"), DefaultTolerance))
	assert.False(t, WithinTolerance(a, decimal.RequireFromString("100.02"), DefaultTolerance))
}

func TestRoundMoney(t *testing.T) {
	assert.Equal(t, "10.13", RoundMoney(decimal.RequireFromString("10.125")).StringFixed(2))
}

func TestFormatMoneyIncludesAmount(t *testing.T) {
	out := FormatMoney(decimal.RequireFromString("1234.5"))
	assert.Contains(t, out, "$")
	assert.Contains(t, out, "234")
}
