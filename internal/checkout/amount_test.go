package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestAmountCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"10.00", 1000},
		{"0.01", 1},
		{"7.505", 751},
		{"7.504", 750},
		{"2.675", 268},
		{"123.45", 12345},
	}
	for _, tc := range cases {
		got := AmountCents(decimal.RequireFromString(tc.in))
		assert.Equal(t, tc.want, got, "amount %s", tc.in)
	}
}
