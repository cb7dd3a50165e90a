package domain

import "github.com/shopspring/decimal"

// CurrencyPlaces is the number of decimal places prices are rounded to (CLP has none).
var CurrencyPlaces int32 = 0

var hundred = decimal.NewFromInt(100)

// FinalPrice computes price - price*discount/100, rounded half away from zero to
// CurrencyPlaces. Discounts outside (0, 100] are clamped so the result is never negative
// and never above the list price.
func FinalPrice(price, discount decimal.Decimal) decimal.Decimal {
	if !discount.IsPositive() {
		return price.Round(CurrencyPlaces)
	}
	if discount.GreaterThan(hundred) {
		discount = hundred
	}
	off := price.Mul(discount).Div(hundred)
	return price.Sub(off).Round(CurrencyPlaces)
}

// Savings returns how much the discount takes off the list price, at currency precision.
func Savings(price, discount decimal.Decimal) decimal.Decimal {
	return price.Round(CurrencyPlaces).Sub(FinalPrice(price, discount))
}
