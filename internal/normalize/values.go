package normalize

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// priceScale drops binary floating point noise carried by raw spreadsheet
// numbers (89.900000000000006 -> 89.9).
const priceScale = 10

var nonPrice = regexp.MustCompile(`[^0-9.]+`)

// CleanPrice strips everything but digits and dots from raw and parses the
// remainder. Currency symbols, thousands separators and whitespace are
// discarded; anything left that is not a number yields an invalid result.
//
//	CleanPrice("RM 1,234.50") -> 1234.5
//	CleanPrice("N/A")         -> invalid
func CleanPrice(raw string) decimal.NullDecimal {
	stripped := nonPrice.ReplaceAllString(raw, "")
	if stripped == "" {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(stripped)
	if err != nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d.Round(priceScale), Valid: true}
}

// FormatPrice renders a price for output.
func FormatPrice(p decimal.NullDecimal) string {
	if !p.Valid {
		return ""
	}
	return p.Decimal.String()
}

// Key returns the matching key for a raw cell: trimmed and upper-cased.
func Key(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// PromoName folds a promotion name for comparison.
func PromoName(raw string) string {
	return cases.Fold().String(strings.TrimSpace(raw))
}

// SamePromotion reports whether two promotion names are equal after
// trimming and case folding.
func SamePromotion(a, b string) bool {
	return PromoName(a) == PromoName(b)
}

// Records coerces the key and (optionally) price of every row in ds.
//
// PARAMETERS:
//   - ds: a dataset whose headers have been resolved
//   - keyHeader: the column holding the matching key
//   - priceHeader: the column holding the price, "" to skip price coercion
func Records(ds *types.Dataset, keyHeader, priceHeader string) []types.Record {
	records := make([]types.Record, 0, len(ds.Rows))
	for _, row := range ds.Rows {
		rec := types.Record{
			Row: row,
			Key: Key(row.Get(keyHeader)),
		}
		if priceHeader != "" {
			rec.Price = CleanPrice(row.Get(priceHeader))
		}
		records = append(records, rec)
	}
	return records
}
