package enums

import "fmt"

// PaymentType distinguishes the up-front borrowing payment from a late fine.
type PaymentType string

const (
	PaymentTypePayment PaymentType = "PAYMENT"
	PaymentTypeFine    PaymentType = "FINE"
)

var validPaymentTypes = []PaymentType{
	PaymentTypePayment,
	PaymentTypeFine,
}

// IsValid reports whether the value matches the canonical payment type enum.
func (t PaymentType) IsValid() bool {
	for _, candidate := range validPaymentTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParsePaymentType converts the raw string to PaymentType.
func ParsePaymentType(value string) (PaymentType, error) {
	for _, candidate := range validPaymentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment type %q", value)
}
