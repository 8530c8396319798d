// internal/app/system/money/money.go

// Package money centralizes the platform-fee split. Amounts are minor
// currency units (cents) end to end, which keeps the conservation
// invariant exact: TeacherShare + PlatformFee == Amount, always.
package money

import (
	"fmt"
	"math"
)

// Split divides a paid amount between the platform and the teacher.
// The fee is rounded to the nearest cent and the teacher share is the
// remainder, never independently rounded, so no cent is created or lost.
type Split struct {
	Amount       int64
	PlatformFee  int64
	TeacherShare int64
}

// SplitFee applies feeRate (e.g. 0.10) to amount minor units.
func SplitFee(amount int64, feeRate float64) Split {
	fee := int64(math.Round(float64(amount) * feeRate))
	return Split{
		Amount:       amount,
		PlatformFee:  fee,
		TeacherShare: amount - fee,
	}
}

// ValidateFeeRate rejects rates outside [0, 1).
func ValidateFeeRate(rate float64) error {
	if rate < 0 || rate >= 1 {
		return fmt.Errorf("platform fee rate must be in [0, 1), got %v", rate)
	}
	return nil
}

// Format renders minor units as a major-unit decimal string, e.g.
// 10000 -> "100.00". Used in notifications and logs only; arithmetic
// stays in minor units.
func Format(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d", sign, amount/100, amount%100)
}
