package checkout

import "github.com/shopspring/decimal"

// AmountCents converts a decimal money value into integer cents, rounding
// half-away-from-zero so 0.005 becomes a full cent.
func AmountCents(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
