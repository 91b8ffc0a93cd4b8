package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

func TestApplyFixedColumns(t *testing.T) {
	ds := &types.Dataset{
		Source:  "deal.xlsx",
		Headers: []string{"Product", "SKU", "Price", "Notes"},
		Rows: []types.Row{
			{Number: 2, Fields: map[string]string{"Product": "P1", "SKU": "S1", "Price": "9", "Notes": "x"}},
		},
	}
	columns := []string{"Product_id (required)", "SKU_id (required)", "Deal Price (required)"}

	require.NoError(t, ApplyFixedColumns(ds, columns))
	assert.Equal(t, columns, ds.Headers)
	assert.Equal(t, map[string]string{
		"Product_id (required)": "P1",
		"SKU_id (required)":     "S1",
		"Deal Price (required)": "9",
	}, ds.Rows[0].Fields)
	assert.Equal(t, 2, ds.Rows[0].Number)
}

func TestApplyFixedColumnsTooFew(t *testing.T) {
	ds := &types.Dataset{Source: "deal.xlsx", Headers: []string{"Product", "SKU"}}

	err := ApplyFixedColumns(ds, []string{"a", "b", "c"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrInvalidSchema))
	assert.Contains(t, err.Error(), "deal.xlsx")
}

func TestApplyFixedColumnsNone(t *testing.T) {
	ds := &types.Dataset{Headers: []string{"a"}}
	require.NoError(t, ApplyFixedColumns(ds, nil))
	assert.Equal(t, []string{"a"}, ds.Headers)
}

func TestCheckHeaders(t *testing.T) {
	ds := &types.Dataset{Headers: []string{"Shop Sku", "Campaign Price"}}
	specs := []types.FieldSpec{
		{Field: types.FieldKey, Header: "Shop SKU"},
		{Field: types.FieldPrice, Header: "Campaign Price"},
		{Field: types.FieldRecommendedPrice, Header: "Recommended Price"},
	}

	report := CheckHeaders("target", ds, specs)

	assert.False(t, report.OK())
	require.Len(t, report.Issues, 2)
	assert.Equal(t, "warning", report.Issues[0].Severity)
	assert.Equal(t, "Shop Sku", report.Issues[0].Found)
	assert.Equal(t, "error", report.Issues[1].Severity)
	assert.Equal(t, types.FieldRecommendedPrice, report.Issues[1].Field)
	assert.Equal(t, "Campaign Price", report.Mapping[types.FieldPrice])

	out := FormatIssues(report.Issues)
	assert.Contains(t, out, "Found 2 issue(s)")
	assert.Contains(t, out, "[ERROR] target recommended_price")
}

func TestCheckHeadersClean(t *testing.T) {
	ds := &types.Dataset{Headers: []string{"Variation ID"}}
	report := CheckHeaders("promotion", ds, []types.FieldSpec{{Field: types.FieldKey, Header: "Variation ID"}})

	assert.True(t, report.OK())
	assert.Empty(t, report.Issues)
	assert.Equal(t, "No issues found.", FormatIssues(report.Issues))
}
