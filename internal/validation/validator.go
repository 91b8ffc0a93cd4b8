// =============================================================================
// GDEC Price Checker - Input Validation
// =============================================================================
//
// Checks performed on a dataset before it is reconciled:
//   1. Layout: fixed-layout exports must have enough columns; their headers
//      are replaced by the canonical names
//   2. Headers: every logical field is reported as exact, fuzzy or missing
//
// Header issues are collected, not returned one by one, so a front-end can
// show the whole picture when a file is selected.
//
// =============================================================================

package validation

import (
	"fmt"
	"strings"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/headers"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// =============================================================================
// LAYOUT
// =============================================================================

// ApplyFixedColumns replaces the first len(columns) headers of ds with
// columns and drops any further columns. Rows are re-keyed accordingly.
//
// RETURNS:
//   - a *errs.SchemaError if ds has fewer columns than required
func ApplyFixedColumns(ds *types.Dataset, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	if len(ds.Headers) < len(columns) {
		return &errs.SchemaError{Source: ds.Source, Want: len(columns), Got: len(ds.Headers)}
	}

	old := ds.Headers[:len(columns)]
	for i, row := range ds.Rows {
		fields := make(map[string]string, len(columns))
		for col, header := range columns {
			fields[header] = row.Get(old[col])
		}
		ds.Rows[i].Fields = fields
	}
	ds.Headers = append([]string(nil), columns...)
	return nil
}

// =============================================================================
// HEADER REPORT
// =============================================================================

// Issue is a single finding about a dataset's headers.
type Issue struct {
	// Severity is "error" (the run would fail) or "warning".
	Severity string

	Dataset string
	Field   types.Field

	// Expected is the configured header text, Found what it resolved to.
	Expected string
	Found    string

	Message string
}

// String renders the issue for display.
func (i Issue) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", strings.ToUpper(i.Severity), i.Dataset, i.Field, i.Message)
}

// Report is the outcome of checking a dataset's headers.
type Report struct {
	Dataset string
	Mapping types.Mapping
	Issues  []Issue
}

// OK reports whether the dataset can be reconciled.
func (r *Report) OK() bool {
	for _, i := range r.Issues {
		if i.Severity == "error" {
			return false
		}
	}
	return true
}

// CheckHeaders resolves every field spec against ds and reports fields that
// only matched approximately or did not match at all.
func CheckHeaders(dataset string, ds *types.Dataset, specs []types.FieldSpec) *Report {
	report := &Report{Dataset: dataset, Mapping: make(types.Mapping)}

	for _, spec := range specs {
		m, ok := headers.Resolve(ds.Headers, spec.Header)
		switch {
		case !ok:
			report.Issues = append(report.Issues, Issue{
				Severity: "error",
				Dataset:  dataset,
				Field:    spec.Field,
				Expected: spec.Header,
				Message:  fmt.Sprintf("no column resembles %q", spec.Header),
			})
		case !m.Exact():
			report.Mapping[spec.Field] = m.Header
			report.Issues = append(report.Issues, Issue{
				Severity: "warning",
				Dataset:  dataset,
				Field:    spec.Field,
				Expected: spec.Header,
				Found:    m.Header,
				Message:  fmt.Sprintf("using %q for %q (similarity %.2f)", m.Header, spec.Header, m.Ratio),
			})
		default:
			report.Mapping[spec.Field] = m.Header
		}
	}
	return report
}

// FormatIssues formats issues for display, one per line.
func FormatIssues(issues []Issue) string {
	if len(issues) == 0 {
		return "No issues found."
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d issue(s):\n", len(issues)))
	for n, i := range issues {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", n+1, i))
	}
	return sb.String()
}
