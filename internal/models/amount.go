package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Prices and increments are kept to a fixed precision. Anything outside it
// is refused before any arithmetic touches it.
const (
	MaxAmountScale  = 8  // digits after the point
	MaxAmountDigits = 15 // digits before the point
)

var ErrAmountOutOfRange = errors.New("amount out of range")

// CheckAmount reports whether d fits the supported precision. It never
// formats d, so it is safe on hostile input.
func CheckAmount(d decimal.Decimal) error {
	exp := int64(d.Exponent())
	if exp < -MaxAmountScale {
		return fmt.Errorf("%w: more than %d decimal places", ErrAmountOutOfRange, MaxAmountScale)
	}
	if int64(d.NumDigits())+exp > MaxAmountDigits {
		return fmt.Errorf("%w: more than %d integer digits", ErrAmountOutOfRange, MaxAmountDigits)
	}
	return nil
}

// Amount is a decimal that refuses, at decode time, values outside the
// supported precision. Request bodies use it for prices.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	if err := CheckAmount(d); err != nil {
		return err
	}
	a.Decimal = d
	return nil
}
