package model

import (
	"errors"
	"fmt"
	"strings"
)

type Currency string

// USD is the anchor currency every cross rate is triangulated through.
const USD Currency = "USD"

const pairSeparator = "_"

var (
	ErrInvalidCurrency = errors.New("invalid currency code")
	ErrInvalidPair     = errors.New("invalid currency pair")
)

// NewCurrency normalises a raw code (trim, upper-case).
func NewCurrency(code string) Currency {
	return Currency(strings.ToUpper(strings.TrimSpace(code)))
}

// Validate accepts 2 to 10 ASCII letters. Codes can never contain the pair
// separator, which keeps fingerprints unambiguous.
func (c Currency) Validate() error {
	if len(c) < 2 || len(c) > 10 {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return fmt.Errorf("%w: %q", ErrInvalidCurrency, string(c))
		}
	}
	return nil
}

func (c Currency) String() string {
	return string(c)
}

// CurrencyPair is an ordered (from, to) pair rendered as FROM_TO.
type CurrencyPair struct {
	From Currency `json:"from"`
	To   Currency `json:"to"`
}

func NewCurrencyPair(from, to Currency) CurrencyPair {
	return CurrencyPair{From: from, To: to}
}

// ParseCurrencyPair parses the FROM_TO wire form.
func ParseCurrencyPair(raw string) (CurrencyPair, error) {
	parts := strings.Split(strings.TrimSpace(raw), pairSeparator)
	if len(parts) != 2 {
		return CurrencyPair{}, fmt.Errorf("%w: %q", ErrInvalidPair, raw)
	}

	pair := CurrencyPair{From: NewCurrency(parts[0]), To: NewCurrency(parts[1])}
	if err := pair.Validate(); err != nil {
		return CurrencyPair{}, err
	}
	return pair, nil
}

func (p CurrencyPair) Validate() error {
	if err := p.From.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPair, err)
	}
	if err := p.To.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPair, err)
	}
	return nil
}

// IsAnchored reports whether either leg is the anchor currency, in which
// case the store holds the pair directly.
func (p CurrencyPair) IsAnchored() bool {
	return p.From == USD || p.To == USD
}

func (p CurrencyPair) SameCurrency() bool {
	return p.From == p.To
}

// Inverse returns the pair with its legs swapped.
func (p CurrencyPair) Inverse() CurrencyPair {
	return CurrencyPair{From: p.To, To: p.From}
}

func (p CurrencyPair) String() string {
	return string(p.From) + pairSeparator + string(p.To)
}
