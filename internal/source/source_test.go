package source

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
)

func lookup(t *testing.T, platform policy.Platform, mode policy.Mode) *policy.Policy {
	t.Helper()
	p, err := policy.NewRegistry().Lookup(platform, mode)
	require.NoError(t, err)
	return p
}

// workbook builds a workbook whose sheets hold the given rows.
func workbook(t *testing.T, sheets map[string][][]string, order ...string) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}
	return f
}

func save(t *testing.T, f *excelize.File, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadTargetXLSX(t *testing.T) {
	f := workbook(t, map[string][][]string{
		"Products": {
			{"Shop Sku", "Campaign Price", "Recommended Price"},
			{"SKU-1", "", "10"},
		},
		"Other": {{"ignored"}},
	}, "Products", "Other")
	path := save(t, f, "target.xlsx")

	ds, err := LoadTarget(lookup(t, policy.Lazada, policy.Regular), path)
	require.NoError(t, err)
	assert.Equal(t, path, ds.Source)
	assert.Equal(t, "Products", ds.Sheet)
	assert.Equal(t, []string{"Shop Sku", "Campaign Price", "Recommended Price"}, ds.Headers)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "10", ds.Rows[0].Get("Recommended Price"))
}

func TestLoadTargetCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "target.CSV")
	require.NoError(t, os.WriteFile(path, []byte("Variation ID;Campaign Price;Recommended Campaign Price\nV1;;5\n"), 0644))

	ds, err := LoadTarget(lookup(t, policy.Shopee, policy.Regular), path)
	require.NoError(t, err)
	assert.Empty(t, ds.Sheet)
	assert.Equal(t, "V1", ds.Rows[0].Get("Variation ID"))
}

func TestReadTargetAppliesLayout(t *testing.T) {
	f := workbook(t, map[string][][]string{
		"Template": {
			{"Shop SKU", "SpecialPrice", "SpecialPrice Start", "SpecialPrice End"},
			{"mandatory"},
			{"format"},
			{"example"},
			{"LZ-1"},
		},
	}, "Template")
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	ds, err := ReadTarget(lookup(t, policy.Lazada, policy.Manual), bytes.NewReader(buf.Bytes()), "upload.xlsx")
	require.NoError(t, err)
	assert.Len(t, ds.Notes, 3)
	require.Len(t, ds.Rows, 1)
	assert.Equal(t, "LZ-1", ds.Rows[0].Get("Shop SKU"))
}

func TestReadTargetFixedColumns(t *testing.T) {
	p := lookup(t, policy.TikTok, policy.Manual)

	csv := "Product ID,SKU ID,Price,Stock\nP1,S1,9.9,3\n"
	ds, err := ReadTarget(p, bytes.NewReader([]byte(csv)), "deals.csv")
	require.NoError(t, err)
	assert.Equal(t, p.FixedColumns, ds.Headers)
	assert.Equal(t, "S1", ds.Rows[0].Get("SKU_id (required)"))

	_, err = ReadTarget(p, bytes.NewReader([]byte("Product ID,SKU ID\nP1,S1\n")), "deals.csv")
	assert.True(t, errors.Is(err, errs.ErrInvalidSchema))
}

func TestLoadPromotion(t *testing.T) {
	f := workbook(t, map[string][][]string{
		"Summary":             {{"x"}},
		"Lzd | Campaign List": {{"Campaign List"}, {}, {}, {}, {}, {"Promo Name (Scheme)", "SHOP SKU"}, {"Mega", "A"}},
	}, "Summary", "Lzd | Campaign List")
	path := save(t, f, "promo.xlsx")

	promo, err := LoadPromotion(lookup(t, policy.Lazada, policy.Regular), path)
	require.NoError(t, err)
	assert.Equal(t, "Lzd | Campaign List", promo.Sheet)
	require.Len(t, promo.Rows, 7)
	assert.Equal(t, []string{"Mega", "A"}, promo.Rows[6])

	_, err = LoadPromotion(lookup(t, policy.Shopee, policy.Regular), path)
	assert.True(t, errors.Is(err, errs.ErrSourceUnavailable))
}

func TestReadPromotionRejectsCSV(t *testing.T) {
	_, err := ReadPromotion(lookup(t, policy.Lazada, policy.Regular), bytes.NewReader(nil), "promo.csv")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrSourceUnavailable))
}
