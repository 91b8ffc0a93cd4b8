// =============================================================================
// GDEC Price Checker - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - xlsxparser / csvparser (reading)
//   - normalize, headers, policy (the reconciliation core)
//   - engine (orchestration)
//   - xlsxwriter (materialization)
//
// =============================================================================

package types

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// LOGICAL FIELDS
// =============================================================================

// Field is the logical name of a column, independent of the header text a
// particular export happens to use.
type Field string

const (
	FieldKey               Field = "key"
	FieldProductID         Field = "product_id"
	FieldPrice             Field = "price"
	FieldRecommendedPrice  Field = "recommended_price"
	FieldWindowStart       Field = "window_start"
	FieldWindowEnd         Field = "window_end"
	FieldPromoName         Field = "promo_name"
	FieldDiscountedPrice   Field = "discounted_price"
	FieldScheduleStartDate Field = "start_date"
	FieldScheduleEndDate   Field = "end_date"
	FieldScheduleStartTime Field = "start_time"
	FieldScheduleEndTime   Field = "end_time"
)

// FieldSpec names the header text expected for a logical field.
type FieldSpec struct {
	Field  Field
	Header string

	// Text marks the column as one that must be written back as literal text
	// (identifiers, date-times).
	Text bool
}

// Mapping binds logical fields to the actual header present in a dataset.
type Mapping map[Field]string

// Header returns the resolved header for a field, or "" if unmapped.
func (m Mapping) Header(f Field) string {
	return m[f]
}

// =============================================================================
// DATASET
// =============================================================================

// Row is a single data row keyed by header.
type Row struct {
	// Number is the 1-based row number in the source sheet.
	// Zero for rows created during reconciliation.
	Number int

	// Fields maps header -> cell value. A missing key or "" is an absent value.
	Fields map[string]string
}

// Get returns the value stored under a header.
func (r Row) Get(header string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[header]
}

// Clone returns a copy of the row whose Fields can be modified freely.
func (r Row) Clone() Row {
	fields := make(map[string]string, len(r.Fields))
	for k, v := range r.Fields {
		fields[k] = v
	}
	return Row{Number: r.Number, Fields: fields}
}

// Dataset is an ordered sequence of rows read from one sheet.
type Dataset struct {
	// Source is the file (or upload) name the dataset came from.
	Source string

	// Sheet is the sheet the rows were read from.
	Sheet string

	// Headers in column order.
	Headers []string

	// Rows in source order.
	Rows []Row

	// Preamble holds raw rows found above the header row.
	Preamble [][]string

	// Notes holds raw rows found between the header row and the first data row.
	Notes [][]string
}

// Distinct returns the distinct non-empty values of a column, in order of
// first appearance.
func (d *Dataset) Distinct(header string) []string {
	seen := make(map[string]bool)
	var values []string
	for _, row := range d.Rows {
		v := row.Get(header)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		values = append(values, v)
	}
	return values
}

// =============================================================================
// NORMALIZED RECORDS
// =============================================================================

// Record is a row after key and price coercion.
type Record struct {
	Row Row

	// Key is the trimmed, upper-cased matching key. Empty keys never match.
	Key string

	// Price is the coerced price; Valid is false when the cell is missing or
	// could not be parsed. A missing price is never zero.
	Price decimal.NullDecimal
}

// =============================================================================
// RESULT PARTITIONS
// =============================================================================

// Disposition is the category a row is assigned to by a run.
type Disposition string

const (
	Eligible   Disposition = "eligible"
	Escalation Disposition = "escalation"
	Unaffected Disposition = "unaffected"
)

// Partition is one named output collection (one sheet in the workbook).
type Partition struct {
	Disposition Disposition
	Name        string
	Headers     []string
	Rows        []Row

	// TextColumns are headers whose values are written as literal text.
	TextColumns []string

	// Preamble and Notes are raw layout rows carried from the target sheet.
	Preamble [][]string
	Notes    [][]string
}

// IsText reports whether a header is declared as a text column.
func (p *Partition) IsText(header string) bool {
	for _, h := range p.TextColumns {
		if h == header {
			return true
		}
	}
	return false
}

// Stats counts what happened during a run.
type Stats struct {
	TargetRows    int `json:"target_rows"`
	PromotionRows int `json:"promotion_rows"`
	SelectedRows  int `json:"selected_rows"`
	Eligible      int `json:"eligible"`
	Escalated     int `json:"escalated"`
	Unaffected    int `json:"unaffected"`
	Appended      int `json:"appended"`
	PassedOver    int `json:"passed_over"`
}
