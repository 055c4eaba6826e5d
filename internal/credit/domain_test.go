package credit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestDeriveStatus(t *testing.T) {
	limit := decimal.NewFromInt(1000)
	require.Equal(t, StatusActive, DeriveStatus(decimal.Zero, limit))
	require.Equal(t, StatusActive, DeriveStatus(limit, limit))
	require.Equal(t, StatusDelinquent, DeriveStatus(decimal.NewFromInt(1001), limit))
	require.Equal(t, StatusDelinquent, DeriveStatus(decimal.NewFromInt(1), decimal.Zero))
}

func TestAvailableCreditNeverNegative(t *testing.T) {
	c := Client{CreditLimit: decimal.NewFromInt(100), CurrentDebt: decimal.NewFromInt(150)}
	require.True(t, c.AvailableCredit().IsZero())
	c.CurrentDebt = decimal.NewFromInt(40)
	require.Equal(t, "60", c.AvailableCredit().String())
}
