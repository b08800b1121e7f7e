// Package core provides the bill domain types and amount handling.
//
// Amounts are kept as float64 because the persisted snapshot stores them as
// plain JSON numbers; totals are formatted with exactly two decimals.
package core

import (
	"math"
	"math/big"
	"strconv"
	"strings"
)

// ParseAmount converts the raw amount text into a number.
//
// Surrounding whitespace is ignored. Anything that is not a finite decimal
// number is rejected with ErrInvalidAmount, including the empty string.
// No sign or range check is applied.
//
// Examples:
//   ParseAmount("250.5")  -> 250.5, nil
//   ParseAmount(" 12 ")   -> 12, nil
//   ParseAmount("1e3")    -> 1000, nil
//   ParseAmount("12,50")  -> 0, ErrInvalidAmount
func ParseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}
	lower := strings.ToLower(s)
	// strconv accepts these spellings but a numeric input never produces them
	if strings.Contains(lower, "inf") || strings.Contains(lower, "nan") || strings.HasPrefix(lower, "0x") || strings.Contains(s, "_") {
		return 0, ErrInvalidAmount
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, ErrInvalidAmount
	}
	return v, nil
}

// FormatAmount renders v with exactly two decimal digits, e.g. "250.50".
//
// Rounding works on the exact binary value and sends ties away from zero:
// 0.125 is exactly representable and becomes "0.13", while 2.675 is stored
// slightly below itself and becomes "2.67". A negative value that rounds to
// zero keeps its sign ("-0.00"); negative zero itself prints "0.00".
func FormatAmount(v float64) string {
	r := new(big.Rat).SetFloat64(math.Abs(v))
	if r == nil {
		return strconv.FormatFloat(v, 'f', 2, 64)
	}
	r.Mul(r, big.NewRat(100, 1))

	cents, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Lsh(rem, 1).Cmp(r.Denom()) >= 0 {
		cents.Add(cents, big.NewInt(1))
	}

	digits := cents.String()
	if len(digits) < 3 {
		digits = strings.Repeat("0", 3-len(digits)) + digits
	}
	s := digits[:len(digits)-2] + "." + digits[len(digits)-2:]
	if v < 0 {
		return "-" + s
	}
	return s
}

// Sum adds the amounts of bills accepted by keep. A nil keep selects all.
func Sum(bills []Bill, keep func(Bill) bool) float64 {
	var total float64
	for _, b := range bills {
		if keep == nil || keep(b) {
			total += b.Amount
		}
	}
	return total
}
