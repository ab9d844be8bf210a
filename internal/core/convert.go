package core

import (
	"github.com/shopspring/decimal"
)

// divisionPrecision bounds the digits kept when converting through the base
// currency. Results are rounded to money precision by callers that persist them.
const divisionPrecision = 16

// Rates maps currency code to units per one unit of BaseCurrency.
type Rates map[string]decimal.Decimal

// RatesFrom builds a rate table from currency records.
func RatesFrom(currencies []Currency) Rates {
	rates := make(Rates, len(currencies))
	for _, c := range currencies {
		rates[c.Code] = c.Rate
	}
	return rates
}

// Convert moves amount from one currency to another through the base
// currency. Identical codes return amount untouched; a code missing from
// rates, or carrying a non-positive rate, yields a *ConversionError.
func Convert(amount decimal.Decimal, from, to string, rates Rates) (decimal.Decimal, error) {
	if from == to {
		return amount, nil
	}
	fromRate, ok := rates[from]
	if !ok || !fromRate.IsPositive() {
		return decimal.Zero, &ConversionError{From: from, To: to}
	}
	toRate, ok := rates[to]
	if !ok || !toRate.IsPositive() {
		return decimal.Zero, &ConversionError{From: from, To: to}
	}
	inBase := amount.DivRound(fromRate, divisionPrecision)
	return inBase.Mul(toRate), nil
}

// FormatAmount renders amount with the currency's symbol, or with the code
// and a space when the currency is unknown.
func FormatAmount(amount decimal.Decimal, code string, currencies []Currency) string {
	for _, c := range currencies {
		if c.Code == code {
			return c.Symbol + MoneyString(amount)
		}
	}
	return code + " " + MoneyString(amount)
}
