package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyCOP Currency = "COP"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
)

// SupportedCurrencies is the allow-list accepted at the API boundary.
var SupportedCurrencies = []Currency{CurrencyUSD, CurrencyCOP, CurrencyEUR, CurrencyGBP}

func (c Currency) Valid() bool {
	if len(c) != 3 {
		return false
	}
	return strings.ToUpper(string(c)) == string(c)
}

// Money is an immutable non-negative amount in a single currency, kept at 2 decimal places.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Currency        `json:"currency"`
}

func NewMoney(amount decimal.Decimal, currency Currency) (Money, error) {
	if !currency.Valid() {
		return Money{}, newError(ErrValidation, "currency must be a 3-letter upper-case code, got %q", currency)
	}
	if amount.IsNegative() {
		return Money{}, newError(ErrValidation, "amount must not be negative, got %s", amount.String())
	}
	return Money{Amount: amount.Round(2), Currency: currency}, nil
}

func MustMoney(amount string, currency Currency) Money {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		panic(err)
	}
	m, err := NewMoney(d, currency)
	if err != nil {
		panic(err)
	}
	return m
}

func ZeroMoney(currency Currency) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

func (m Money) Add(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, mismatch(m, o)
	}
	return NewMoney(m.Amount.Add(o.Amount), m.Currency)
}

func (m Money) Sub(o Money) (Money, error) {
	if m.Currency != o.Currency {
		return Money{}, mismatch(m, o)
	}
	return NewMoney(m.Amount.Sub(o.Amount), m.Currency)
}

// MulRate multiplies by a non-negative factor, e.g. 0.02 for a 2% insurance premium.
func (m Money) MulRate(rate decimal.Decimal) (Money, error) {
	return NewMoney(m.Amount.Mul(rate), m.Currency)
}

// GreaterThan fails on currency mismatch rather than guessing an exchange rate.
func (m Money) GreaterThan(o Money) (bool, error) {
	if m.Currency != o.Currency {
		return false, mismatch(m, o)
	}
	return m.Amount.GreaterThan(o.Amount), nil
}

func (m Money) IsZero() bool { return m.Amount.IsZero() }

func (m Money) IsPositive() bool { return m.Amount.IsPositive() }

func (m Money) Equal(o Money) bool {
	return m.Currency == o.Currency && m.Amount.Equal(o.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(2), m.Currency)
}

func mismatch(a, b Money) error {
	return newError(ErrCurrencyMismatch, "currency mismatch: %s vs %s", a.Currency, b.Currency)
}
