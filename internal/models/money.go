package models

import "github.com/shopspring/decimal"

func init() {
	// Prices go over the wire as JSON numbers, e.g. 50.5 rather than "50.5".
	decimal.MarshalJSONWithoutQuotes = true
}

// Money rounds to the two decimal places stored in NUMERIC(10,2) columns.
func Money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
