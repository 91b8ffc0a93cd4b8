// =============================================================================
// GDEC Price Checker - XLSX Writer Module
// =============================================================================
//
// This module materializes the partitions of a reconciliation into a single
// workbook, one sheet per partition, in the order the engine emitted them.
//
// SHEET LAYOUT:
//   Preamble rows      <- rows above the target header, verbatim
//   Header row
//   Notes rows         <- rows between header and data, verbatim
//   Data rows
//
// CELL RULES:
//   - Identifier columns are stored as text with the "@" number format so
//     Excel never turns a SKU into a float or scientific notation.
//   - Other cells that look like plain decimal numbers are stored as numbers.
//     Leading zeros and values longer than 15 digits stay text.
//   - Column width is the longest value in the column plus 2, capped at 255.
//
// =============================================================================

package xlsxwriter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/errs"
	"github.com/Charlesssyyy/GDEC-Price-Checker/internal/types"
)

// TextNumFmt is the built-in "@" (text) number format.
const TextNumFmt = 49

const (
	widthPadding = 2
	maxWidth     = 255
	maxDigits    = 15
)

var plainNumber = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?$`)

// =============================================================================
// WORKBOOK GENERATION
// =============================================================================

// Build lays out partitions as the sheets of a new workbook. The caller owns
// the returned file and must Close it.
func Build(partitions []types.Partition) (*excelize.File, error) {
	if len(partitions) == 0 {
		return nil, fmt.Errorf("no partitions to write")
	}

	f := excelize.NewFile()
	textStyle, err := f.NewStyle(&excelize.Style{NumFmt: TextNumFmt})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create text style: %w", err)
	}

	for i, p := range partitions {
		if i == 0 {
			err = f.SetSheetName(f.GetSheetName(0), p.Name)
		} else {
			_, err = f.NewSheet(p.Name)
		}
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to create sheet %q: %w", p.Name, err)
		}
		if err := writeSheet(f, textStyle, &p); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sheet %q: %w", p.Name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write builds the workbook and writes it to w.
func Write(w io.Writer, partitions []types.Partition) error {
	f, err := Build(partitions)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveFile writes the workbook to path. The file is written next to its
// destination first and renamed into place, so a failed run never leaves a
// truncated workbook behind.
func SaveFile(path string, partitions []types.Partition) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pricecheck-*.xlsx")
	if err != nil {
		return errs.NewSourceError("create", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := Write(tmp, partitions); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return errs.NewSourceError("write", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errs.NewSourceError("write", path, err)
	}
	return nil
}

// =============================================================================
// SHEET GENERATION
// =============================================================================

func writeSheet(f *excelize.File, textStyle int, p *types.Partition) error {
	sheet := p.Name
	row := 1

	for _, raw := range p.Preamble {
		if err := writeStrings(f, sheet, row, raw); err != nil {
			return err
		}
		row++
	}

	headerRow := row
	if err := writeStrings(f, sheet, row, p.Headers); err != nil {
		return err
	}
	row++

	for _, raw := range p.Notes {
		if err := writeStrings(f, sheet, row, raw); err != nil {
			return err
		}
		row++
	}

	for col, header := range p.Headers {
		if !p.IsText(header) {
			continue
		}
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColStyle(sheet, name, textStyle); err != nil {
			return err
		}
	}

	for _, r := range p.Rows {
		for col, header := range p.Headers {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			value := r.Get(header)
			if err := setCell(f, sheet, cell, value, p.IsText(header)); err != nil {
				return err
			}
			if p.IsText(header) {
				if err := f.SetCellStyle(sheet, cell, cell, textStyle); err != nil {
					return err
				}
			}
		}
		row++
	}

	// Header cells are plain text even in "@" columns.
	if len(p.Headers) > 0 {
		first, _ := excelize.CoordinatesToCellName(1, headerRow)
		last, _ := excelize.CoordinatesToCellName(len(p.Headers), headerRow)
		if err := f.SetCellStyle(sheet, first, last, 0); err != nil {
			return err
		}
	}

	for col, width := range ColumnWidths(p.Headers, p.Rows) {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, name, name, width); err != nil {
			return err
		}
	}
	return nil
}

func writeStrings(f *excelize.File, sheet string, row int, values []string) error {
	for col, v := range values {
		if v == "" {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if err := f.SetCellStr(sheet, cell, v); err != nil {
			return err
		}
	}
	return nil
}

func setCell(f *excelize.File, sheet, cell, value string, text bool) error {
	if value == "" {
		return nil
	}
	if !text {
		if n, ok := numeric(value); ok {
			return f.SetCellValue(sheet, cell, n)
		}
	}
	return f.SetCellStr(sheet, cell, value)
}

// numeric reports whether value can be stored as a number without changing
// what the user sees.
func numeric(value string) (float64, bool) {
	if !plainNumber.MatchString(value) {
		return 0, false
	}
	digits := 0
	for _, c := range value {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	if digits > maxDigits {
		return 0, false
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ColumnWidths returns the display width of every header column: the longest
// header or value in characters plus 2, capped at 255.
func ColumnWidths(headers []string, rows []types.Row) []float64 {
	widths := make([]float64, len(headers))
	for i, header := range headers {
		longest := utf8.RuneCountInString(header)
		for _, r := range rows {
			if n := utf8.RuneCountInString(r.Get(header)); n > longest {
				longest = n
			}
		}
		w := longest + widthPadding
		if w > maxWidth {
			w = maxWidth
		}
		widths[i] = float64(w)
	}
	return widths
}
