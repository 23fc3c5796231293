package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RateEntry is one normalized exchange rate produced by a rate source.
// The admin API expects rate serialized as a decimal string, which is
// shopspring's default JSON encoding.
type RateEntry struct {
	From CurrencyCode    `json:"from_currency"`
	To   CurrencyCode    `json:"to_currency"`
	Rate decimal.Decimal `json:"rate"`
}

func (r RateEntry) String() string {
	return fmt.Sprintf("%s -> %s: %s", r.From, r.To, r.Rate)
}

type CurrencyCode string

const (
	CurrencyUAH CurrencyCode = "UAH"
	CurrencyUSD CurrencyCode = "USD"
	CurrencyEUR CurrencyCode = "EUR"
	CurrencyRUB CurrencyCode = "RUB"
)

// InverseRate computes 1/sell at six significant digits, the precision the
// rate pipeline has always carried.
func InverseRate(sell decimal.Decimal) decimal.Decimal {
	return roundSig(decimal.New(1, 0).DivRound(sell, 12), 6)
}

func roundSig(d decimal.Decimal, figs int32) decimal.Decimal {
	if d.IsZero() {
		return d
	}
	places := -d.Exponent() - int32(d.NumDigits()) + figs
	return d.Round(places)
}
