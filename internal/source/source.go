// =============================================================================
// GDEC Price Checker - Source Loading
// =============================================================================
//
// Loads the two inputs of a reconciliation the way a policy describes them:
//
//   Target:    first sheet of an .xlsx export, or a .csv export, laid out
//              with the policy's header and data rows
//   Promotion: the named campaign list sheet of the brand's .xlsx workbook,
//              returned raw; header extraction happens in the engine
//
// Files can be loaded from disk or from an upload stream.
//
// =============================================================================

package source

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/csvparser"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/normalize"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/policy"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/validation"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/xlsxparser"
)

// Promotion is the raw campaign list of a brand workbook.
type Promotion struct {
	Source string
	Sheet  string
	Rows   [][]string
}

// isCSV reports whether name looks like a CSV export.
func isCSV(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}

// =============================================================================
// TARGET
// =============================================================================

// LoadTarget reads the target export at path.
func LoadTarget(p *policy.Policy, path string) (*types.Dataset, error) {
	if isCSV(path) {
		rows, err := csvparser.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return layoutTarget(p, path, "", rows)
	}

	sheet, err := xlsxparser.ReadFile(path, xlsxparser.First)
	if err != nil {
		return nil, err
	}
	return layoutTarget(p, path, sheet.Name, sheet.Rows)
}

// ReadTarget reads an uploaded target export. name decides the format.
func ReadTarget(p *policy.Policy, r io.Reader, name string) (*types.Dataset, error) {
	if isCSV(name) {
		rows, err := csvparser.Read(r, name)
		if err != nil {
			return nil, err
		}
		return layoutTarget(p, name, "", rows)
	}

	sheet, err := xlsxparser.Read(r, name, xlsxparser.First)
	if err != nil {
		return nil, err
	}
	return layoutTarget(p, name, sheet.Name, sheet.Rows)
}

func layoutTarget(p *policy.Policy, source, sheet string, rows [][]string) (*types.Dataset, error) {
	ds, err := normalize.Table(rows, p.TargetLayout)
	if err != nil {
		return nil, errs.NewSourceError("read", source, err)
	}
	ds.Source = source
	ds.Sheet = sheet

	if err := validation.ApplyFixedColumns(ds, p.FixedColumns); err != nil {
		return nil, err
	}
	return ds, nil
}

// =============================================================================
// PROMOTION
// =============================================================================

// LoadPromotion reads the policy's campaign list sheet from the workbook at
// path.
func LoadPromotion(p *policy.Policy, path string) (*Promotion, error) {
	if err := checkPromotionName(path); err != nil {
		return nil, err
	}
	sheet, err := xlsxparser.ReadFile(path, xlsxparser.Named(p.PromotionSheet))
	if err != nil {
		return nil, err
	}
	return &Promotion{Source: path, Sheet: sheet.Name, Rows: sheet.Rows}, nil
}

// ReadPromotion reads the campaign list sheet from an uploaded workbook.
func ReadPromotion(p *policy.Policy, r io.Reader, name string) (*Promotion, error) {
	if err := checkPromotionName(name); err != nil {
		return nil, err
	}
	sheet, err := xlsxparser.Read(r, name, xlsxparser.Named(p.PromotionSheet))
	if err != nil {
		return nil, err
	}
	return &Promotion{Source: name, Sheet: sheet.Name, Rows: sheet.Rows}, nil
}

func checkPromotionName(name string) error {
	if isCSV(name) {
		return errs.NewSourceError("open", name, fmt.Errorf("campaign list must be an .xlsx workbook"))
	}
	return nil
}
