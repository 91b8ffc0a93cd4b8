// =============================================================================
// GDEC Price Checker - XLSX Reader
// =============================================================================
//
// Reads one sheet of a marketplace workbook as raw rows. Cells are read as
// their stored values rather than their displayed text, so identifiers keep
// every digit and prices keep their precision. Dates stored as dates arrive
// as Excel serial numbers and are interpreted by the normalizer.
//
// SHEET SELECTION:
//   By name:  exact match first, then a trimmed case-insensitive match
//   By index: 0 is the first sheet
//
// =============================================================================

package xlsxparser

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
)

// Selector chooses a sheet by name, or by index when Name is empty.
type Selector struct {
	Name  string
	Index int
}

// First selects the first sheet.
var First = Selector{}

// Named selects a sheet by name.
func Named(name string) Selector {
	return Selector{Name: name}
}

func (s Selector) String() string {
	if s.Name != "" {
		return fmt.Sprintf("sheet %q", s.Name)
	}
	return fmt.Sprintf("sheet #%d", s.Index+1)
}

// Sheet is the raw content of one worksheet.
type Sheet struct {
	Source string
	Name   string
	Rows   [][]string
}

// ReadFile opens path and reads the selected sheet.
//
// RETURNS:
//   - the sheet
//   - a *errs.SourceError if the file cannot be opened or lacks the sheet
func ReadFile(path string, sel Selector) (*Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errs.NewSourceError("open", path, err)
	}
	defer f.Close()

	return readSheet(f, path, sel)
}

// Read reads the selected sheet from an in-memory workbook (an upload).
// name is used in error messages.
func Read(r io.Reader, name string, sel Selector) (*Sheet, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errs.NewSourceError("open", name, err)
	}
	defer f.Close()

	return readSheet(f, name, sel)
}

// SheetNames lists the sheets of the workbook at path.
func SheetNames(path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errs.NewSourceError("open", path, err)
	}
	defer f.Close()

	return f.GetSheetList(), nil
}

func readSheet(f *excelize.File, source string, sel Selector) (*Sheet, error) {
	name, err := resolveSheet(f, sel)
	if err != nil {
		return nil, errs.NewSourceError("read", source, err)
	}

	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errs.NewSourceError("read", source, fmt.Errorf("failed to read rows of %q: %w", name, err))
	}
	return &Sheet{Source: source, Name: name, Rows: rows}, nil
}

func resolveSheet(f *excelize.File, sel Selector) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("workbook has no sheets")
	}

	if sel.Name == "" {
		if sel.Index < 0 || sel.Index >= len(sheets) {
			return "", fmt.Errorf("%s not found (workbook has %d)", sel, len(sheets))
		}
		return sheets[sel.Index], nil
	}

	for _, name := range sheets {
		if name == sel.Name {
			return name, nil
		}
	}
	want := strings.ToLower(strings.TrimSpace(sel.Name))
	for _, name := range sheets {
		if strings.ToLower(strings.TrimSpace(name)) == want {
			return name, nil
		}
	}
	return "", fmt.Errorf("%s not found (have %s)", sel, strings.Join(sheets, ", "))
}
