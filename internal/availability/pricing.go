package availability

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PriceTable holds fallback registration prices (USD) indexed by TLD.
type PriceTable map[string]decimal.Decimal

var fallbackPrice = decimal.RequireFromString("19.99")

// DefaultPriceTable returns the built-in price list used when the primary authority does not
// quote a price.
func DefaultPriceTable() PriceTable {
	return PriceTable{
		"com":  decimal.RequireFromString("12.99"),
		"net":  decimal.RequireFromString("14.99"),
		"org":  decimal.RequireFromString("12.99"),
		"io":   decimal.RequireFromString("39.99"),
		"ai":   decimal.RequireFromString("79.99"),
		"app":  decimal.RequireFromString("17.99"),
		"dev":  decimal.RequireFromString("15.99"),
		"tech": decimal.RequireFromString("49.99"),
		"co":   decimal.RequireFromString("29.99"),
		"xyz":  decimal.RequireFromString("2.99"),
	}
}

// PriceFor returns the table price for tld, or the generic fallback.
func (t PriceTable) PriceFor(tld string) decimal.Decimal {
	if price, ok := t[strings.ToLower(strings.TrimSpace(tld))]; ok {
		return price
	}
	return fallbackPrice
}
