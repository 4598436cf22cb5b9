package token

import (
	"math"
	"math/big"
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not numeric, are negative,
// or do not fit a u64 once scaled by the mint decimals.
var ErrInvalidAmount = errors.New("invalid token amount")

var maxBaseUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ToBaseUnits converts a UI amount such as "1.5" into base units of a mint
// with the given decimals, rounding half away from zero.
func ToBaseUnits(uiAmount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(uiAmount))
	if err != nil {
		return 0, errors.Wrapf(ErrInvalidAmount, "%q is not a number", uiAmount)
	}

	return fromDecimal(d, decimals)
}

func fromDecimal(d decimal.Decimal, decimals uint8) (uint64, error) {
	if d.IsNegative() {
		return 0, errors.Wrapf(ErrInvalidAmount, "%s is negative", d)
	}

	scaled := d.Shift(int32(decimals)).Round(0)
	if scaled.GreaterThan(maxBaseUnits) {
		return 0, errors.Wrapf(ErrInvalidAmount, "%s with %d decimals overflows u64", d, decimals)
	}

	return scaled.BigInt().Uint64(), nil
}

// ToUIAmount renders base units as a UI amount string.
func ToUIAmount(baseUnits uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(baseUnits), -int32(decimals)).String()
}
