// =============================================================================
// GDEC Price Checker - Dataset Normalizer
// =============================================================================
//
// Turns raw sheet rows into header-keyed datasets and coerces the two fields
// reconciliation depends on: the matching key and the price.
//
// LAYOUT:
//   rows [0, HeaderRow)             -> Dataset.Preamble (kept verbatim)
//   row  HeaderRow                  -> Dataset.Headers
//   rows (HeaderRow, DataStartRow)  -> Dataset.Notes (kept verbatim)
//   rows [DataStartRow, ...)        -> Dataset.Rows (fully empty rows dropped)
//
// =============================================================================

package normalize

import (
	"fmt"
	"strings"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// PromotionHeaderRow is the 0-based row of the campaign list header.
const PromotionHeaderRow = 5

// Layout locates the header and first data row in a raw sheet, 0-based.
// A DataStartRow at or before HeaderRow means "the row after the header".
type Layout struct {
	HeaderRow    int
	DataStartRow int
}

func (l Layout) dataStart() int {
	if l.DataStartRow <= l.HeaderRow {
		return l.HeaderRow + 1
	}
	return l.DataStartRow
}

// Table builds a dataset from raw rows.
//
// PARAMETERS:
//   - raw: the sheet as returned by the reader, rows may be ragged
//   - layout: where the header and data start
//
// RETURNS:
//   - the dataset, or an error if the sheet has no header row
func Table(raw [][]string, layout Layout) (*types.Dataset, error) {
	if layout.HeaderRow < 0 {
		return nil, fmt.Errorf("header row must not be negative")
	}
	if len(raw) <= layout.HeaderRow {
		return nil, fmt.Errorf("sheet has %d rows, header expected at row %d", len(raw), layout.HeaderRow+1)
	}

	ds := &types.Dataset{
		Headers: cleanHeaders(raw[layout.HeaderRow]),
	}
	for i := 0; i < layout.HeaderRow; i++ {
		ds.Preamble = append(ds.Preamble, raw[i])
	}

	start := layout.dataStart()
	for i := layout.HeaderRow + 1; i < start && i < len(raw); i++ {
		ds.Notes = append(ds.Notes, raw[i])
	}

	for i := start; i < len(raw); i++ {
		if isRowEmpty(raw[i]) {
			continue
		}
		fields := make(map[string]string, len(ds.Headers))
		for col, header := range ds.Headers {
			if col < len(raw[i]) {
				fields[header] = strings.TrimSpace(raw[i][col])
			} else {
				fields[header] = ""
			}
		}
		ds.Rows = append(ds.Rows, types.Row{Number: i + 1, Fields: fields})
	}
	return ds, nil
}

// Promotion extracts the campaign list dataset from raw rows with the header
// at headerRow. Key and price coercion happen in Records once the headers
// have been resolved.
func Promotion(raw [][]string, headerRow int) (*types.Dataset, error) {
	return Table(raw, Layout{HeaderRow: headerRow})
}

// cleanHeaders trims header text, names blank headers after their column and
// suffixes repeats (".1", ".2") so every header is a unique key.
func cleanHeaders(raw []string) []string {
	cleaned := make([]string, len(raw))
	seen := make(map[string]int, len(raw))

	for i, header := range raw {
		header = strings.TrimSpace(header)
		if header == "" {
			header = fmt.Sprintf("Column_%d", i+1)
		}
		if n, dup := seen[header]; dup {
			seen[header] = n + 1
			header = fmt.Sprintf("%s.%d", header, n+1)
		} else {
			seen[header] = 0
		}
		cleaned[i] = header
	}
	return cleaned
}

func isRowEmpty(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
