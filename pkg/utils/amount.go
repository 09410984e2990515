package utils

import (
	"github.com/shopspring/decimal"
)

// FormatAmount renders a base-unit amount in major units with the given
// number of decimals, e.g. FormatAmount(1500000000, 9) == "1.5".
func FormatAmount(amount uint64, decimals int32) string {
	d := decimal.NewFromUint64(amount).Shift(-decimals)
	return d.String()
}

// ParseAmount converts a major-unit string into base units. Fractions finer
// than the given precision are rejected rather than rounded.
func ParseAmount(s string, decimals int32) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	if d.IsNegative() {
		return 0, ErrNegativeAmount
	}
	shifted := d.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrAmountPrecision
	}
	if shifted.GreaterThan(decimal.NewFromUint64(^uint64(0))) {
		return 0, ErrAmountOverflow
	}
	return shifted.BigInt().Uint64(), nil
}
