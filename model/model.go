package model

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a suffix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

var (
	daysPerYear     = decimal.NewFromInt(365)
	percent         = decimal.NewFromInt(100)
	monthsPerYear   = decimal.NewFromInt(12)
	daysPerMonth    = decimal.NewFromInt(30)
	interestScale   = int32(6)
	simpleInterestD = daysPerYear.Mul(percent) // 36500
)

// EligibleToBorrow reports whether the address may request a loan from the
// circle: it must be a member, carry no active loan, and the circle must be
// active. Pure function over a circle snapshot, safe to call concurrently.
func EligibleToBorrow(circle *Circle, address string) bool {
	if circle == nil || circle.Status != CircleStatusActive {
		return false
	}
	member := circle.GetMember(address)
	if member == nil {
		return false
	}
	return !member.HasActiveLoan
}

// MaxBorrowable returns the largest loan the circle will extend: a fixed
// fraction of the original pool size. capRatio is a policy value, 0.8 by
// default, carried in configuration. The comparison base is the static pool
// total, not the currently contributed amount.
func MaxBorrowable(circle *Circle, capRatio decimal.Decimal) decimal.Decimal {
	return circle.TotalAmount.Mul(capRatio)
}

// SimpleInterest computes principal * rate * days / 36500 in decimal
// arithmetic. Non-positive principal or days, or a negative rate, yield a
// zero interest rather than an error; interest estimates are forgiving of
// incomplete input and validation happens at the workflow layer.
func SimpleInterest(principal, annualRatePct decimal.Decimal, days int) decimal.Decimal {
	if principal.Sign() <= 0 || annualRatePct.Sign() < 0 || days <= 0 {
		return decimal.Zero
	}
	return principal.Mul(annualRatePct).Mul(decimal.NewFromInt(int64(days))).Div(simpleInterestD)
}

// CompoundInterest computes interest with monthly compounding over a
// fractional number of months (days / 30, not floored). The exponentiation
// runs in float64; the result is a display-only estimate and is rounded to
// six places. Stored amounts never pass through this path.
func CompoundInterest(principal, annualRatePct decimal.Decimal, days int) decimal.Decimal {
	if principal.Sign() <= 0 || annualRatePct.Sign() < 0 || days <= 0 {
		return decimal.Zero
	}
	p, _ := principal.Float64()
	rate, _ := annualRatePct.Div(percent).Div(monthsPerYear).Float64()
	months, _ := decimal.NewFromInt(int64(days)).Div(daysPerMonth).Float64()
	amount := p*math.Pow(1+rate, months) - p
	return decimal.NewFromFloat(amount).Round(interestScale)
}

// TotalRepayment is the amount owed at maturity.
func TotalRepayment(principal, interest decimal.Decimal) decimal.Decimal {
	return principal.Add(interest)
}
