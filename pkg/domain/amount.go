package domain

import (
	"fmt"
	"math"
)

// Drops is a monetary amount in the ledger's smallest unit.
// 1 XRP = 1,000,000 drops. All internal arithmetic is integer drops; decimal
// XRP exists only at the display boundary.
type Drops int64

const DropsPerXRP = 1_000_000

// FromXRP converts a decimal XRP amount to drops, truncating sub-drop
// precision the way the ledger does.
func FromXRP(xrp float64) Drops {
	return Drops(math.Trunc(xrp * DropsPerXRP))
}

// XRP returns the decimal display value.
func (d Drops) XRP() float64 {
	return float64(d) / DropsPerXRP
}

func (d Drops) String() string {
	return fmt.Sprintf("%d drops", int64(d))
}

// Currency names a ledger asset. The platform allocates XRP natively and
// RLUSD as an issued stable token, with independent per-currency totals.
type Currency string

const (
	CurrencyXRP   Currency = "XRP"
	CurrencyRLUSD Currency = "RLUSD"
)

// ParseCurrency validates a currency name.
func ParseCurrency(s string) (Currency, error) {
	switch Currency(s) {
	case CurrencyXRP, CurrencyRLUSD:
		return Currency(s), nil
	case "":
		return CurrencyXRP, nil
	default:
		return "", fmt.Errorf("unsupported currency: %q", s)
	}
}

func (c Currency) String() string { return string(c) }
